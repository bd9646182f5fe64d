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

const ruleCols = `id, rule_type, employee_id, priority, active, source_text,
	payload, confidence, created_at`

type RuleRepository struct {
	pool *pgxpool.Pool
}

func NewRuleRepository(pool *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{pool: pool}
}

func (r *RuleRepository) Create(ctx context.Context, rule *domain.Rule) (*domain.Rule, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO rules (rule_type, employee_id, priority, active, source_text, payload, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+ruleCols,
		rule.Type, rule.EmployeeID, rule.Priority, rule.Active,
		rule.SourceText, rule.Payload, rule.Confidence)
	return scanRule(row)
}

func (r *RuleRepository) GetByID(ctx context.Context, id string) (*domain.Rule, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ruleCols+` FROM rules WHERE id = $1`, id)
	return scanRule(row)
}

func (r *RuleRepository) List(ctx context.Context, input repository.ListRulesInput) ([]*domain.Rule, int, error) {
	args := []any{}
	where := []string{"TRUE"}

	if input.Type != "" {
		args = append(args, input.Type)
		where = append(where, fmt.Sprintf("rule_type = $%d", len(args)))
	}
	if input.EmployeeID != nil {
		args = append(args, *input.EmployeeID)
		where = append(where, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if input.Active != nil {
		args = append(args, *input.Active)
		where = append(where, fmt.Sprintf("active = $%d", len(args)))
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM rules WHERE %s`, cond), args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rules: %w", err)
	}

	args = append(args, input.Limit, input.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM rules
		WHERE %s
		ORDER BY priority DESC, created_at DESC
		LIMIT $%d OFFSET $%d`, ruleCols, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rule)
	}
	return out, total, rows.Err()
}

func (r *RuleRepository) Update(ctx context.Context, rule *domain.Rule) (*domain.Rule, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE rules SET priority = $2, active = $3, payload = $4
		WHERE id = $1
		RETURNING `+ruleCols,
		rule.ID, rule.Priority, rule.Active, rule.Payload)
	return scanRule(row)
}

func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}

func (r *RuleRepository) ListActive(ctx context.Context) ([]*domain.Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleCols+` FROM rules
		WHERE active
		ORDER BY employee_id NULLS FIRST, priority DESC`)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	var out []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func scanRule(row rowScanner) (*domain.Rule, error) {
	var r domain.Rule
	err := row.Scan(
		&r.ID, &r.Type, &r.EmployeeID, &r.Priority, &r.Active,
		&r.SourceText, &r.Payload, &r.Confidence, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, fmt.Errorf("scan rule: %w", err)
	}
	return &r, nil
}
