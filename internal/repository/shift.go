package repository

import (
	"context"
	"time"

	"github.com/rosterly/rosterd/internal/domain"
)

type ListShiftsInput struct {
	DateFrom     *time.Time
	DateTo       *time.Time
	DepartmentID *string
	Type         domain.ShiftType
	Offset       int
	Limit        int
}

type ShiftRepository interface {
	Create(ctx context.Context, s *domain.Shift) (*domain.Shift, error)
	// CreateBulk inserts all shifts in one transaction, all-or-nothing.
	CreateBulk(ctx context.Context, shifts []*domain.Shift) ([]*domain.Shift, error)
	GetByID(ctx context.Context, id string) (*domain.Shift, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Shift, error)
	List(ctx context.Context, input ListShiftsInput) ([]*domain.Shift, int, error)
	Update(ctx context.Context, s *domain.Shift) (*domain.Shift, error)
	// Delete fails when assignments reference the shift unless force, which
	// cancels the referencing assignments in the same transaction.
	Delete(ctx context.Context, id string, force bool) error
	HasAssignments(ctx context.Context, shiftID string) (bool, error)
	// ListRange returns every shift in [from, to], optionally scoped to a
	// department. Used for solver snapshots.
	ListRange(ctx context.Context, from, to time.Time, departmentID *string) ([]*domain.Shift, error)
}
