package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/repository"
)

const scheduleCols = `id, title, week_start, week_end, status, created_by,
	approved_by, version, parent_id, created_at, updated_at`

type ScheduleRepository struct {
	pool *pgxpool.Pool
}

func NewScheduleRepository(pool *pgxpool.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO schedules (title, week_start, week_end, status, created_by, parent_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+scheduleCols,
		s.Title, s.WeekStart, s.WeekEnd, s.Status, s.CreatedBy, s.ParentID)
	return scanSchedule(row)
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*domain.Schedule, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+scheduleCols+` FROM schedules WHERE id = $1`, id)
	return scanSchedule(row)
}

func (r *ScheduleRepository) List(ctx context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, int, error) {
	args := []any{}
	where := []string{"TRUE"}

	if input.Status != "" {
		args = append(args, input.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if input.WeekFrom != nil {
		args = append(args, *input.WeekFrom)
		where = append(where, fmt.Sprintf("week_start >= $%d", len(args)))
	}
	if input.WeekTo != nil {
		args = append(args, *input.WeekTo)
		where = append(where, fmt.Sprintf("week_end <= $%d", len(args)))
	}
	if input.CreatedBy != "" {
		args = append(args, input.CreatedBy)
		where = append(where, fmt.Sprintf("created_by = $%d", len(args)))
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM schedules WHERE %s`, cond), args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	args = append(args, input.Limit, input.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM schedules
		WHERE %s
		ORDER BY week_start DESC, id DESC
		LIMIT $%d OFFSET $%d`, scheduleCols, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var out []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *ScheduleRepository) Update(ctx context.Context, s *domain.Schedule, expectedVersion int) (*domain.Schedule, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE schedules
		SET title = $2, week_start = $3, week_end = $4,
		    version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $5
		RETURNING `+scheduleCols,
		s.ID, s.Title, s.WeekStart, s.WeekEnd, expectedVersion)

	updated, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			// Distinguish stale version from missing row.
			if _, getErr := r.GetByID(ctx, s.ID); getErr == nil {
				return nil, domain.ErrVersionMismatch
			}
			return nil, domain.ErrScheduleNotFound
		}
		return nil, err
	}
	return updated, nil
}

func (r *ScheduleRepository) SetStatus(ctx context.Context, id string, status domain.ScheduleStatus, approvedBy *string) (*domain.Schedule, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE schedules
		SET status = $2,
		    approved_by = COALESCE($3, approved_by),
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+scheduleCols,
		id, status, approvedBy)
	return scanSchedule(row)
}

func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	// Assignments cascade via the FK.
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func scanSchedule(row rowScanner) (*domain.Schedule, error) {
	var s domain.Schedule
	err := row.Scan(
		&s.ID, &s.Title, &s.WeekStart, &s.WeekEnd, &s.Status, &s.CreatedBy,
		&s.ApprovedBy, &s.Version, &s.ParentID, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	return &s, nil
}
