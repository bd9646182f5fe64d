package repository

import (
	"context"

	"github.com/rosterly/rosterd/internal/domain"
)

type ListRulesInput struct {
	Type       domain.RuleType
	EmployeeID *string
	Active     *bool
	Offset     int
	Limit      int
}

type RuleRepository interface {
	Create(ctx context.Context, r *domain.Rule) (*domain.Rule, error)
	GetByID(ctx context.Context, id string) (*domain.Rule, error)
	List(ctx context.Context, input ListRulesInput) ([]*domain.Rule, int, error)
	Update(ctx context.Context, r *domain.Rule) (*domain.Rule, error)
	Delete(ctx context.Context, id string) error
	// ListActive returns every active rule, global rules first. Used for
	// solver snapshots.
	ListActive(ctx context.Context) ([]*domain.Rule, error)
}
