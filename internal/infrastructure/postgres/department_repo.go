package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rosterly/rosterd/internal/domain"
)

type DepartmentRepository struct {
	pool *pgxpool.Pool
}

func NewDepartmentRepository(pool *pgxpool.Pool) *DepartmentRepository {
	return &DepartmentRepository{pool: pool}
}

const departmentCols = `id, name, parent_id, created_at, updated_at`

func (r *DepartmentRepository) Create(ctx context.Context, d *domain.Department) (*domain.Department, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO departments (name, parent_id)
		VALUES ($1, $2)
		RETURNING `+departmentCols,
		d.Name, d.ParentID)

	created, err := scanDepartment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDepartmentNameTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *DepartmentRepository) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+departmentCols+` FROM departments WHERE id = $1`, id)
	return scanDepartment(row)
}

func (r *DepartmentRepository) List(ctx context.Context) ([]*domain.Department, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+departmentCols+` FROM departments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	var out []*domain.Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DepartmentRepository) Update(ctx context.Context, d *domain.Department) (*domain.Department, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE departments SET name = $2, parent_id = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+departmentCols,
		d.ID, d.Name, d.ParentID)

	updated, err := scanDepartment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDepartmentNameTaken
		}
		return nil, err
	}
	return updated, nil
}

func (r *DepartmentRepository) Delete(ctx context.Context, id string, force bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if force {
		// Reparent children to the deleted node's parent, detach members.
		if _, err = tx.Exec(ctx, `
			UPDATE departments
			SET parent_id = (SELECT parent_id FROM departments WHERE id = $1),
			    updated_at = NOW()
			WHERE parent_id = $1`, id); err != nil {
			return fmt.Errorf("reparent children: %w", err)
		}
		if _, err = tx.Exec(ctx, `
			UPDATE employees SET department_id = NULL, updated_at = NOW()
			WHERE department_id = $1`, id); err != nil {
			return fmt.Errorf("detach members: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.E(domain.KindConflict, "department_in_use",
				"department has members or children")
		}
		return fmt.Errorf("delete department: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDepartmentNotFound
	}
	return tx.Commit(ctx)
}

// Subtree loads the whole subtree rooted at id with one recursive query and
// stitches the child pointers in memory.
func (r *DepartmentRepository) Subtree(ctx context.Context, id string) (*domain.Department, error) {
	rows, err := r.pool.Query(ctx, `
		WITH RECURSIVE tree AS (
			SELECT `+departmentCols+` FROM departments WHERE id = $1
			UNION ALL
			SELECT d.id, d.name, d.parent_id, d.created_at, d.updated_at
			FROM departments d
			JOIN tree t ON d.parent_id = t.id
		)
		SELECT `+departmentCols+` FROM tree`, id)
	if err != nil {
		return nil, fmt.Errorf("department subtree: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*domain.Department)
	var ordered []*domain.Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		byID[d.ID] = d
		ordered = append(ordered, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ordered) == 0 {
		return nil, domain.ErrDepartmentNotFound
	}

	for _, d := range ordered[1:] {
		if d.ParentID != nil {
			if parent, ok := byID[*d.ParentID]; ok {
				parent.Children = append(parent.Children, d)
			}
		}
	}
	return ordered[0], nil
}

func (r *DepartmentRepository) HasActiveMembers(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM employees WHERE department_id = $1 AND is_active)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check members: %w", err)
	}
	return exists, nil
}

func (r *DepartmentRepository) HasChildren(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM departments WHERE parent_id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check children: %w", err)
	}
	return exists, nil
}

// IsAncestor walks up from id and reports whether candidate appears on the
// path (including id itself). Used to reject reparenting that would form a
// cycle.
func (r *DepartmentRepository) IsAncestor(ctx context.Context, id, candidate string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		WITH RECURSIVE up AS (
			SELECT id, parent_id FROM departments WHERE id = $1
			UNION ALL
			SELECT d.id, d.parent_id FROM departments d JOIN up ON d.id = up.parent_id
		)
		SELECT EXISTS (SELECT 1 FROM up WHERE id = $2)`, id, candidate,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ancestry: %w", err)
	}
	return exists, nil
}

func scanDepartment(row rowScanner) (*domain.Department, error) {
	var d domain.Department
	err := row.Scan(&d.ID, &d.Name, &d.ParentID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDepartmentNotFound
		}
		return nil, fmt.Errorf("scan department: %w", err)
	}
	return &d, nil
}
