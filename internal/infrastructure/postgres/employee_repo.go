package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/repository"
)

const employeeCols = `id, email, password_hash, role, department_id, first_name, last_name,
	phone, hire_date, hourly_rate, max_hours_per_week, qualifications, availability,
	is_active, email_verified, account_locked, failed_login_attempts, password_must_change,
	created_at, updated_at`

type EmployeeRepository struct {
	pool *pgxpool.Pool
}

func NewEmployeeRepository(pool *pgxpool.Pool) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

func (r *EmployeeRepository) Create(ctx context.Context, e *domain.Employee) (*domain.Employee, error) {
	query := `
		INSERT INTO employees (
			email, password_hash, role, department_id, first_name, last_name,
			phone, hire_date, hourly_rate, max_hours_per_week, qualifications,
			availability, is_active, email_verified, password_must_change
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + employeeCols

	row := r.pool.QueryRow(ctx, query,
		strings.ToLower(e.Email), e.PasswordHash, e.Role, e.DepartmentID,
		e.FirstName, e.LastName, e.Phone, e.HireDate, e.HourlyRate,
		e.MaxHoursPerWeek, e.Qualifications, e.Availability,
		e.IsActive, e.EmailVerified, e.PasswordMustChange,
	)

	created, err := scanEmployee(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+employeeCols+` FROM employees WHERE id = $1`, id)
	return scanEmployee(row)
}

func (r *EmployeeRepository) GetByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+employeeCols+` FROM employees WHERE email = $1`, strings.ToLower(email))
	return scanEmployee(row)
}

func (r *EmployeeRepository) List(ctx context.Context, input repository.ListEmployeesInput) ([]*domain.Employee, error) {
	args := []any{}
	where := []string{"TRUE"}

	if input.Search != "" {
		args = append(args, "%"+strings.ToLower(input.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(LOWER(first_name || ' ' || last_name) LIKE $%d OR email LIKE $%d)", n, n))
	}
	if input.Role != "" {
		args = append(args, input.Role)
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if input.DepartmentID != nil {
		args = append(args, *input.DepartmentID)
		where = append(where, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if input.IsActive != nil {
		args = append(args, *input.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	query := fmt.Sprintf(`
		SELECT %s FROM employees
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`,
		employeeCols, strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var out []*domain.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EmployeeRepository) Update(ctx context.Context, e *domain.Employee) (*domain.Employee, error) {
	query := `
		UPDATE employees SET
			first_name = $2, last_name = $3, phone = $4, hire_date = $5,
			hourly_rate = $6, max_hours_per_week = $7, qualifications = $8,
			availability = $9, email_verified = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + employeeCols

	row := r.pool.QueryRow(ctx, query,
		e.ID, e.FirstName, e.LastName, e.Phone, e.HireDate,
		e.HourlyRate, e.MaxHoursPerWeek, e.Qualifications, e.Availability,
		e.EmailVerified,
	)
	return scanEmployee(row)
}

func (r *EmployeeRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.E(domain.KindConflict, domain.CodeAuthorizationDenied,
				"employee still referenced by assignments")
		}
		return fmt.Errorf("delete employee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEmployeeNotFound
	}
	return nil
}

// UpdatePassword stores the new hash and pushes the old one into
// password_history, trimming the history to the retention depth. All in one
// transaction — the password never changes without its history row.
func (r *EmployeeRepository) UpdatePassword(ctx context.Context, id, newHash string, mustChange bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var oldHash string
	err = tx.QueryRow(ctx,
		`UPDATE employees
		 SET password_hash = $2, password_must_change = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING (SELECT password_hash FROM employees WHERE id = $1)`,
		id, newHash, mustChange,
	).Scan(&oldHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrEmployeeNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	if _, err = tx.Exec(ctx,
		`INSERT INTO password_history (employee_id, password_hash) VALUES ($1, $2)`,
		id, oldHash,
	); err != nil {
		return fmt.Errorf("insert password history: %w", err)
	}

	if _, err = tx.Exec(ctx, `
		DELETE FROM password_history
		WHERE employee_id = $1 AND id NOT IN (
			SELECT id FROM password_history
			WHERE employee_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		)`, id, domain.PasswordHistoryDepth,
	); err != nil {
		return fmt.Errorf("trim password history: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *EmployeeRepository) PasswordHistory(ctx context.Context, id string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT password_hash FROM password_history
		WHERE employee_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, id, domain.PasswordHistoryDepth)
	if err != nil {
		return nil, fmt.Errorf("password history: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan password history: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

func (r *EmployeeRepository) RecordLoginFailure(ctx context.Context, id string, lockThreshold int) (bool, error) {
	var locked bool
	err := r.pool.QueryRow(ctx, `
		UPDATE employees
		SET failed_login_attempts = failed_login_attempts + 1,
		    account_locked = (failed_login_attempts + 1 >= $2),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING account_locked`,
		id, lockThreshold,
	).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrEmployeeNotFound
		}
		return false, fmt.Errorf("record login failure: %w", err)
	}
	return locked, nil
}

func (r *EmployeeRepository) ResetLoginFailures(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE employees SET failed_login_attempts = 0, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}

func (r *EmployeeRepository) SetLocked(ctx context.Context, id string, locked bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE employees
		SET account_locked = $2, failed_login_attempts = 0, updated_at = NOW()
		WHERE id = $1`, id, locked)
	if err != nil {
		return fmt.Errorf("set locked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEmployeeNotFound
	}
	return nil
}

func (r *EmployeeRepository) SetRole(ctx context.Context, id string, role domain.Role, changedBy string, reason *string) error {
	return r.auditedUpdate(ctx, id, "role", changedBy, reason,
		`UPDATE employees SET role = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING (SELECT role FROM employees WHERE id = $1), role`,
		role)
}

func (r *EmployeeRepository) SetStatus(ctx context.Context, id string, active bool, changedBy string, reason *string) error {
	return r.auditedUpdate(ctx, id, "status", changedBy, reason,
		`UPDATE employees SET is_active = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING (SELECT CASE WHEN is_active THEN 'active' ELSE 'inactive' END
		            FROM employees WHERE id = $1),
		           CASE WHEN is_active THEN 'active' ELSE 'inactive' END`,
		active)
}

func (r *EmployeeRepository) SetDepartment(ctx context.Context, id string, departmentID *string, changedBy string, reason *string) error {
	return r.auditedUpdate(ctx, id, "department", changedBy, reason,
		`UPDATE employees SET department_id = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING COALESCE((SELECT department_id::TEXT FROM employees WHERE id = $1), ''),
		           COALESCE(department_id::TEXT, '')`,
		departmentID)
}

// auditedUpdate applies a single-column change and writes its history row in
// the same transaction. The update query must RETURNING (old, new) as text.
func (r *EmployeeRepository) auditedUpdate(ctx context.Context, id, field, changedBy string, reason *string, query string, value any) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var oldValue, newValue string
	if err = tx.QueryRow(ctx, query, id, value).Scan(&oldValue, &newValue); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrEmployeeNotFound
		}
		return fmt.Errorf("update employee %s: %w", field, err)
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO employee_history (employee_id, field, old_value, new_value, changed_by, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, field, oldValue, newValue, changedBy, reason,
	); err != nil {
		return fmt.Errorf("insert %s history: %w", field, err)
	}

	return tx.Commit(ctx)
}

func (r *EmployeeRepository) History(ctx context.Context, id, field string, page repository.HistoryPage) ([]*domain.HistoryEntry, error) {
	args := []any{id, field}
	where := "employee_id = $1 AND field = $2"
	if page.CursorTime != nil {
		args = append(args, *page.CursorTime, page.CursorID)
		where += fmt.Sprintf(" AND (changed_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}
	args = append(args, page.Limit)

	query := fmt.Sprintf(`
		SELECT id, employee_id, field, old_value, new_value, changed_by, reason, changed_at
		FROM employee_history
		WHERE %s
		ORDER BY changed_at DESC, id DESC
		LIMIT $%d`, where, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s history: %w", field, err)
	}
	defer rows.Close()

	var out []*domain.HistoryEntry
	for rows.Next() {
		var h domain.HistoryEntry
		if err := rows.Scan(&h.ID, &h.EmployeeID, &h.Field, &h.OldValue,
			&h.NewValue, &h.ChangedByID, &h.Reason, &h.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

func (r *EmployeeRepository) CountFutureAssignments(ctx context.Context, employeeID string, from time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM schedule_assignments a
		JOIN shifts s ON s.id = a.shift_id
		WHERE a.employee_id = $1
		  AND s.date >= $2
		  AND a.status NOT IN ('cancelled', 'declined', 'completed')`,
		employeeID, from,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count future assignments: %w", err)
	}
	return count, nil
}

func (r *EmployeeRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Employee, error) {
	if len(ids) == 0 {
		return map[string]*domain.Employee{}, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+employeeCols+` FROM employees WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("bulk fetch employees: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.Employee, len(ids))
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out[e.ID] = e
	}
	return out, rows.Err()
}

func (r *EmployeeRepository) ListActive(ctx context.Context, departmentID *string) ([]*domain.Employee, error) {
	args := []any{}
	where := "is_active"
	if departmentID != nil {
		args = append(args, *departmentID)
		where += " AND department_id = $1"
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM employees WHERE %s ORDER BY last_name, first_name`,
		employeeCols, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list active employees: %w", err)
	}
	defer rows.Close()

	var out []*domain.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEmployee(row rowScanner) (*domain.Employee, error) {
	var e domain.Employee
	err := row.Scan(
		&e.ID, &e.Email, &e.PasswordHash, &e.Role, &e.DepartmentID,
		&e.FirstName, &e.LastName, &e.Phone, &e.HireDate, &e.HourlyRate,
		&e.MaxHoursPerWeek, &e.Qualifications, &e.Availability,
		&e.IsActive, &e.EmailVerified, &e.AccountLocked,
		&e.FailedLoginAttempts, &e.PasswordMustChange,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("scan employee: %w", err)
	}
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
