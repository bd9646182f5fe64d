package repository

import (
	"context"
	"time"

	"github.com/rosterly/rosterd/internal/domain"
)

type ListAssignmentsInput struct {
	ScheduleID *string
	EmployeeID *string
	ShiftID    *string
	Status     domain.AssignmentStatus
	DateFrom   *time.Time
	DateTo     *time.Time
	CursorTime *time.Time // cursor on (created_at DESC, id DESC)
	CursorID   string
	Limit      int
}

// BulkError is one failed row of a bulk create.
type BulkError struct {
	Index      int    `json:"index"`
	EmployeeID string `json:"employee_id"`
	ShiftID    string `json:"shift_id"`
	Code       string `json:"error_kind"`
	Message    string `json:"message"`
}

// BulkResult enumerates the partial-success outcome of a bulk create.
type BulkResult struct {
	Created        []*domain.Assignment `json:"created"`
	Errors         []BulkError          `json:"errors"`
	TotalProcessed int                  `json:"total_processed"`
	TotalCreated   int                  `json:"total_created"`
	TotalErrors    int                  `json:"total_errors"`
}

type AssignmentRepository interface {
	Create(ctx context.Context, a *domain.Assignment) (*domain.Assignment, error)
	// CreateBulk inserts rows inside one outer transaction with a savepoint
	// per item: a failing row rolls back only its own savepoint and is
	// reported in the result; the successful subset commits. precheck, when
	// non-nil, is consulted per index before the insert is attempted.
	CreateBulk(ctx context.Context, items []*domain.Assignment, precheck func(i int) *domain.Error) (*BulkResult, error)
	GetByID(ctx context.Context, id string) (*domain.Assignment, error)
	List(ctx context.Context, input ListAssignmentsInput) ([]*domain.Assignment, error)
	// ListBySchedule returns the schedule's assignments with Shift attached
	// (two-step bulk fetch, O(1) queries).
	ListBySchedule(ctx context.Context, scheduleID string) ([]*domain.Assignment, error)
	Update(ctx context.Context, a *domain.Assignment) (*domain.Assignment, error)
	// SetStatus performs a guarded transition: it only succeeds when the
	// current status is in allowedFrom.
	SetStatus(ctx context.Context, id string, to domain.AssignmentStatus, allowedFrom []domain.AssignmentStatus, confirmedAt *time.Time, declineReason *string) (*domain.Assignment, error)
	Delete(ctx context.Context, id string) error
	// AutoConfirm transitions assignments still awaiting a response past the
	// cutoff to confirmed. Returns the transitioned rows.
	AutoConfirm(ctx context.Context, cutoff time.Time) ([]*domain.Assignment, error)
}
