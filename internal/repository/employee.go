package repository

import (
	"context"
	"time"

	"github.com/rosterly/rosterd/internal/domain"
)

type ListEmployeesInput struct {
	Search       string // case-insensitive substring over name and email
	Role         domain.Role
	DepartmentID *string
	IsActive     *bool
	CursorTime   *time.Time // cursor on (created_at DESC, id DESC)
	CursorID     string
	Limit        int
}

type HistoryPage struct {
	CursorTime *time.Time
	CursorID   string
	Limit      int
}

type EmployeeRepository interface {
	Create(ctx context.Context, e *domain.Employee) (*domain.Employee, error)
	GetByID(ctx context.Context, id string) (*domain.Employee, error)
	GetByEmail(ctx context.Context, email string) (*domain.Employee, error)
	List(ctx context.Context, input ListEmployeesInput) ([]*domain.Employee, error)
	Update(ctx context.Context, e *domain.Employee) (*domain.Employee, error)
	// Delete hard-deletes. Callers must have verified no future assignments
	// exist; the FK is RESTRICT so a race still fails cleanly.
	Delete(ctx context.Context, id string) error

	// UpdatePassword stores the new hash and appends the old one to the
	// password history, trimmed to domain.PasswordHistoryDepth, in one
	// transaction.
	UpdatePassword(ctx context.Context, id, newHash string, mustChange bool) error
	PasswordHistory(ctx context.Context, id string) ([]string, error)

	// RecordLoginFailure increments the counter and locks the account when
	// the threshold is reached. Returns whether the account is now locked.
	RecordLoginFailure(ctx context.Context, id string, lockThreshold int) (bool, error)
	ResetLoginFailures(ctx context.Context, id string) error
	SetLocked(ctx context.Context, id string, locked bool) error

	// SetRole / SetStatus / SetDepartment write the change and its history
	// row in a single transaction; if the history insert fails the change
	// rolls back.
	SetRole(ctx context.Context, id string, role domain.Role, changedBy string, reason *string) error
	SetStatus(ctx context.Context, id string, active bool, changedBy string, reason *string) error
	SetDepartment(ctx context.Context, id string, departmentID *string, changedBy string, reason *string) error

	History(ctx context.Context, id, field string, page HistoryPage) ([]*domain.HistoryEntry, error)
	CountFutureAssignments(ctx context.Context, employeeID string, from time.Time) (int, error)
	// GetByIDs bulk-fetches employees for eager loads.
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Employee, error)
	// ListActive returns every active employee, optionally scoped to a
	// department. Used for solver snapshots and rule-parser name resolution.
	ListActive(ctx context.Context, departmentID *string) ([]*domain.Employee, error)
}
