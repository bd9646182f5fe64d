package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/repository"
)

const assignmentCols = `id, schedule_id, employee_id, shift_id, status, priority, notes,
	assigned_by, assigned_at, confirmed_at, decline_reason, conflicts_resolved,
	auto_assigned, created_at, updated_at`

const insertAssignment = `
	INSERT INTO schedule_assignments (
		schedule_id, employee_id, shift_id, status, priority, notes,
		assigned_by, auto_assigned
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING ` + assignmentCols

type AssignmentRepository struct {
	pool *pgxpool.Pool
}

func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

func (r *AssignmentRepository) Create(ctx context.Context, a *domain.Assignment) (*domain.Assignment, error) {
	row := r.pool.QueryRow(ctx, insertAssignment,
		a.ScheduleID, a.EmployeeID, a.ShiftID, a.Status, a.Priority,
		a.Notes, a.AssignedBy, a.AutoAssigned)

	created, err := scanAssignment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.E(domain.KindConflict, domain.CodeDuplicateAssignment,
				"employee already assigned to this shift in this schedule")
		}
		return nil, err
	}
	return created, nil
}

// CreateBulk inserts each row under its own savepoint inside one outer
// transaction. A failing row rolls back only its savepoint; the successful
// subset commits together. pgx nests transactions as savepoints, so the
// inner Begin/Rollback pair is exactly SAVEPOINT / ROLLBACK TO.
func (r *AssignmentRepository) CreateBulk(ctx context.Context, items []*domain.Assignment, precheck func(i int) *domain.Error) (*repository.BulkResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result := &repository.BulkResult{TotalProcessed: len(items)}

	for i, a := range items {
		if precheck != nil {
			if derr := precheck(i); derr != nil {
				result.Errors = append(result.Errors, repository.BulkError{
					Index:      i,
					EmployeeID: a.EmployeeID,
					ShiftID:    a.ShiftID,
					Code:       derr.Code,
					Message:    derr.Message,
				})
				continue
			}
		}

		sp, err := tx.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("savepoint %d: %w", i, err)
		}

		row := sp.QueryRow(ctx, insertAssignment,
			a.ScheduleID, a.EmployeeID, a.ShiftID, a.Status, a.Priority,
			a.Notes, a.AssignedBy, a.AutoAssigned)
		created, err := scanAssignment(row)
		if err != nil {
			_ = sp.Rollback(ctx)
			result.Errors = append(result.Errors, bulkError(i, a, err))
			continue
		}
		if err := sp.Commit(ctx); err != nil {
			return nil, fmt.Errorf("release savepoint %d: %w", i, err)
		}
		result.Created = append(result.Created, created)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	result.TotalCreated = len(result.Created)
	result.TotalErrors = len(result.Errors)
	return result, nil
}

func bulkError(i int, a *domain.Assignment, err error) repository.BulkError {
	be := repository.BulkError{
		Index:      i,
		EmployeeID: a.EmployeeID,
		ShiftID:    a.ShiftID,
		Code:       "internal",
		Message:    "insert failed",
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case isUniqueViolation(err):
			be.Code = domain.CodeDuplicateAssignment
			be.Message = "employee already assigned to this shift in this schedule"
		case isForeignKeyViolation(err) && strings.Contains(pgErr.ConstraintName, "shift"):
			be.Code = domain.CodeShiftNotFound
			be.Message = "shift does not exist"
		case isForeignKeyViolation(err):
			be.Code = domain.CodeEmployeeInactive
			be.Message = "employee does not exist"
		}
	}
	return be
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*domain.Assignment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+assignmentCols+` FROM schedule_assignments WHERE id = $1`, id)
	return scanAssignment(row)
}

func (r *AssignmentRepository) List(ctx context.Context, input repository.ListAssignmentsInput) ([]*domain.Assignment, error) {
	args := []any{}
	where := []string{"TRUE"}

	if input.ScheduleID != nil {
		args = append(args, *input.ScheduleID)
		where = append(where, fmt.Sprintf("a.schedule_id = $%d", len(args)))
	}
	if input.EmployeeID != nil {
		args = append(args, *input.EmployeeID)
		where = append(where, fmt.Sprintf("a.employee_id = $%d", len(args)))
	}
	if input.ShiftID != nil {
		args = append(args, *input.ShiftID)
		where = append(where, fmt.Sprintf("a.shift_id = $%d", len(args)))
	}
	if input.Status != "" {
		args = append(args, input.Status)
		where = append(where, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if input.DateFrom != nil {
		args = append(args, *input.DateFrom)
		where = append(where, fmt.Sprintf("s.date >= $%d", len(args)))
	}
	if input.DateTo != nil {
		args = append(args, *input.DateTo)
		where = append(where, fmt.Sprintf("s.date <= $%d", len(args)))
	}
	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(a.created_at, a.id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	cols := "a." + strings.ReplaceAll(assignmentCols, ", ", ", a.")
	query := fmt.Sprintf(`
		SELECT %s
		FROM schedule_assignments a
		JOIN shifts s ON s.id = a.shift_id
		WHERE %s
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $%d`, cols, strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []*domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, r.attachShifts(ctx, out)
}

// ListBySchedule returns the schedule's assignments with shifts attached via
// a two-step bulk fetch — one query for rows, one for the referenced shifts.
func (r *AssignmentRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]*domain.Assignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assignmentCols+` FROM schedule_assignments WHERE schedule_id = $1`,
		scheduleID)
	if err != nil {
		return nil, fmt.Errorf("list schedule assignments: %w", err)
	}
	defer rows.Close()

	var out []*domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, r.attachShifts(ctx, out)
}

func (r *AssignmentRepository) attachShifts(ctx context.Context, assignments []*domain.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(assignments))
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if _, ok := seen[a.ShiftID]; !ok {
			seen[a.ShiftID] = struct{}{}
			ids = append(ids, a.ShiftID)
		}
	}

	shiftRows, err := r.pool.Query(ctx,
		`SELECT `+shiftCols+` FROM shifts WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("bulk fetch shifts: %w", err)
	}
	defer shiftRows.Close()

	byID := make(map[string]*domain.Shift, len(ids))
	for shiftRows.Next() {
		s, err := scanShift(shiftRows)
		if err != nil {
			return err
		}
		byID[s.ID] = s
	}
	if err := shiftRows.Err(); err != nil {
		return err
	}

	for _, a := range assignments {
		a.Shift = byID[a.ShiftID]
	}
	return nil
}

func (r *AssignmentRepository) Update(ctx context.Context, a *domain.Assignment) (*domain.Assignment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE schedule_assignments SET
			priority = $2, notes = $3, conflicts_resolved = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+assignmentCols,
		a.ID, a.Priority, a.Notes, a.ConflictsResolved)
	return scanAssignment(row)
}

// SetStatus performs a guarded transition, failing when the current status
// is not in allowedFrom.
func (r *AssignmentRepository) SetStatus(ctx context.Context, id string, to domain.AssignmentStatus, allowedFrom []domain.AssignmentStatus, confirmedAt *time.Time, declineReason *string) (*domain.Assignment, error) {
	from := make([]string, len(allowedFrom))
	for i, s := range allowedFrom {
		from[i] = string(s)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE schedule_assignments
		SET status = $2,
		    confirmed_at = COALESCE($3, confirmed_at),
		    decline_reason = COALESCE($4, decline_reason),
		    updated_at = NOW()
		WHERE id = $1 AND status = ANY($5)
		RETURNING `+assignmentCols,
		id, to, confirmedAt, declineReason, from)

	updated, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, domain.ErrAssignmentNotFound) {
			if _, getErr := r.GetByID(ctx, id); getErr == nil {
				return nil, domain.E(domain.KindConflict, "invalid_transition",
					fmt.Sprintf("assignment cannot transition to %s", to))
			}
			return nil, domain.ErrAssignmentNotFound
		}
		return nil, err
	}
	return updated, nil
}

func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedule_assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAssignmentNotFound
	}
	return nil
}

// AutoConfirm flips assignments still awaiting a response past the cutoff to
// confirmed. Run periodically by the sweeper.
func (r *AssignmentRepository) AutoConfirm(ctx context.Context, cutoff time.Time) ([]*domain.Assignment, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE schedule_assignments
		SET status = 'confirmed', confirmed_at = NOW(), updated_at = NOW()
		WHERE status IN ('assigned', 'pending') AND assigned_at <= $1
		RETURNING `+assignmentCols, cutoff)
	if err != nil {
		return nil, fmt.Errorf("auto-confirm: %w", err)
	}
	defer rows.Close()

	var out []*domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAssignment(row rowScanner) (*domain.Assignment, error) {
	var a domain.Assignment
	err := row.Scan(
		&a.ID, &a.ScheduleID, &a.EmployeeID, &a.ShiftID, &a.Status,
		&a.Priority, &a.Notes, &a.AssignedBy, &a.AssignedAt, &a.ConfirmedAt,
		&a.DeclineReason, &a.ConflictsResolved, &a.AutoAssigned,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("scan assignment: %w", err)
	}
	return &a, nil
}
