package repository

import (
	"context"

	"github.com/rosterly/rosterd/internal/domain"
)

type DepartmentRepository interface {
	Create(ctx context.Context, d *domain.Department) (*domain.Department, error)
	GetByID(ctx context.Context, id string) (*domain.Department, error)
	List(ctx context.Context) ([]*domain.Department, error)
	Update(ctx context.Context, d *domain.Department) (*domain.Department, error)
	// Delete fails unless the department has no active members and no
	// children; force reparents children to the deleted node's parent and
	// clears members' department in the same transaction.
	Delete(ctx context.Context, id string, force bool) error

	// Subtree returns the department with Children populated recursively.
	Subtree(ctx context.Context, id string) (*domain.Department, error)
	HasActiveMembers(ctx context.Context, id string) (bool, error)
	HasChildren(ctx context.Context, id string) (bool, error)
	// IsAncestor reports whether candidate is id itself or one of its
	// ancestors. Used for cycle prevention on reparent.
	IsAncestor(ctx context.Context, id, candidate string) (bool, error)
}
