package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/repository"
)

const shiftCols = `id, date, start_min, end_min, shift_type, department_id,
	required_staff, priority, requirements, overnight, created_at, updated_at`

type ShiftRepository struct {
	pool *pgxpool.Pool
}

func NewShiftRepository(pool *pgxpool.Pool) *ShiftRepository {
	return &ShiftRepository{pool: pool}
}

func (r *ShiftRepository) Create(ctx context.Context, s *domain.Shift) (*domain.Shift, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO shifts (date, start_min, end_min, shift_type, department_id,
			required_staff, priority, requirements, overnight)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+shiftCols,
		s.Date, s.Start, s.End, s.Type, s.DepartmentID,
		s.RequiredStaff, s.Priority, s.Requirements, s.Overnight)
	return scanShift(row)
}

func (r *ShiftRepository) CreateBulk(ctx context.Context, shifts []*domain.Shift) ([]*domain.Shift, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	out := make([]*domain.Shift, 0, len(shifts))
	for i, s := range shifts {
		row := tx.QueryRow(ctx, `
			INSERT INTO shifts (date, start_min, end_min, shift_type, department_id,
				required_staff, priority, requirements, overnight)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING `+shiftCols,
			s.Date, s.Start, s.End, s.Type, s.DepartmentID,
			s.RequiredStaff, s.Priority, s.Requirements, s.Overnight)
		created, err := scanShift(row)
		if err != nil {
			return nil, fmt.Errorf("bulk insert shift %d: %w", i, err)
		}
		out = append(out, created)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return out, nil
}

func (r *ShiftRepository) GetByID(ctx context.Context, id string) (*domain.Shift, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+shiftCols+` FROM shifts WHERE id = $1`, id)
	return scanShift(row)
}

func (r *ShiftRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Shift, error) {
	if len(ids) == 0 {
		return map[string]*domain.Shift{}, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+shiftCols+` FROM shifts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("bulk fetch shifts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.Shift, len(ids))
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}

func (r *ShiftRepository) List(ctx context.Context, input repository.ListShiftsInput) ([]*domain.Shift, int, error) {
	args := []any{}
	where := []string{"TRUE"}

	if input.DateFrom != nil {
		args = append(args, *input.DateFrom)
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if input.DateTo != nil {
		args = append(args, *input.DateTo)
		where = append(where, fmt.Sprintf("date <= $%d", len(args)))
	}
	if input.DepartmentID != nil {
		args = append(args, *input.DepartmentID)
		where = append(where, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if input.Type != "" {
		args = append(args, input.Type)
		where = append(where, fmt.Sprintf("shift_type = $%d", len(args)))
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM shifts WHERE %s`, cond), args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count shifts: %w", err)
	}

	args = append(args, input.Limit, input.Offset)
	query := fmt.Sprintf(`
		SELECT %s FROM shifts
		WHERE %s
		ORDER BY date, start_min, id
		LIMIT $%d OFFSET $%d`, shiftCols, cond, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list shifts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *ShiftRepository) Update(ctx context.Context, s *domain.Shift) (*domain.Shift, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE shifts SET
			date = $2, start_min = $3, end_min = $4, shift_type = $5,
			department_id = $6, required_staff = $7, priority = $8,
			requirements = $9, overnight = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING `+shiftCols,
		s.ID, s.Date, s.Start, s.End, s.Type, s.DepartmentID,
		s.RequiredStaff, s.Priority, s.Requirements, s.Overnight)
	return scanShift(row)
}

func (r *ShiftRepository) Delete(ctx context.Context, id string, force bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if force {
		if _, err = tx.Exec(ctx, `
			UPDATE schedule_assignments
			SET status = 'cancelled', updated_at = NOW()
			WHERE shift_id = $1 AND status NOT IN ('completed', 'declined', 'cancelled')`,
			id); err != nil {
			return fmt.Errorf("cancel shift assignments: %w", err)
		}
		if _, err = tx.Exec(ctx,
			`DELETE FROM schedule_assignments WHERE shift_id = $1`, id); err != nil {
			return fmt.Errorf("remove shift assignments: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM shifts WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.E(domain.KindConflict, "shift_in_use",
				"shift has assignments; pass force to delete")
		}
		return fmt.Errorf("delete shift: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrShiftNotFound
	}
	return tx.Commit(ctx)
}

func (r *ShiftRepository) HasAssignments(ctx context.Context, shiftID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM schedule_assignments WHERE shift_id = $1)`, shiftID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check shift assignments: %w", err)
	}
	return exists, nil
}

func (r *ShiftRepository) ListRange(ctx context.Context, from, to time.Time, departmentID *string) ([]*domain.Shift, error) {
	args := []any{from, to}
	where := "date >= $1 AND date <= $2"
	if departmentID != nil {
		args = append(args, *departmentID)
		where += " AND department_id = $3"
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM shifts WHERE %s ORDER BY date, start_min, id`,
		shiftCols, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list shift range: %w", err)
	}
	defer rows.Close()

	var out []*domain.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanShift(row rowScanner) (*domain.Shift, error) {
	var s domain.Shift
	err := row.Scan(
		&s.ID, &s.Date, &s.Start, &s.End, &s.Type, &s.DepartmentID,
		&s.RequiredStaff, &s.Priority, &s.Requirements, &s.Overnight,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrShiftNotFound
		}
		return nil, fmt.Errorf("scan shift: %w", err)
	}
	return &s, nil
}
