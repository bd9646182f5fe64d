package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rosterly/rosterd/internal/auth"
	"github.com/rosterly/rosterd/internal/cache"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/repository"
)

type DepartmentUsecase struct {
	departments repository.DepartmentRepository
	caches      *cache.Caches
	logger      *slog.Logger
}

func NewDepartmentUsecase(departments repository.DepartmentRepository, caches *cache.Caches, logger *slog.Logger) *DepartmentUsecase {
	return &DepartmentUsecase{
		departments: departments,
		caches:      caches,
		logger:      logger.With("component", "department"),
	}
}

func (u *DepartmentUsecase) Create(ctx context.Context, actor Actor, name string, parentID *string) (*domain.Department, error) {
	if !actor.Can(auth.PermDepartmentWrite) {
		return nil, forbidden("not allowed to create departments")
	}
	if err := validateDepartmentName(name); err != nil {
		return nil, err
	}
	if parentID != nil {
		if _, err := u.departments.GetByID(ctx, *parentID); err != nil {
			return nil, err
		}
	}

	created, err := u.departments.Create(ctx, &domain.Department{
		Name:     strings.TrimSpace(name),
		ParentID: parentID,
	})
	if err != nil {
		return nil, fmt.Errorf("create department: %w", err)
	}
	u.caches.DepartmentTree.InvalidateAll(ctx)
	return created, nil
}

func (u *DepartmentUsecase) Get(ctx context.Context, actor Actor, id string) (*domain.Department, error) {
	if !actor.Can(auth.PermDepartmentRead) {
		return nil, forbidden("not allowed to view departments")
	}
	return u.departments.GetByID(ctx, id)
}

func (u *DepartmentUsecase) List(ctx context.Context, actor Actor) ([]*domain.Department, error) {
	if !actor.Can(auth.PermDepartmentRead) {
		return nil, forbidden("not allowed to list departments")
	}
	return u.departments.List(ctx)
}

// Subtree returns the department with its descendants, cached because the
// hierarchy changes rarely and the recursive query is the expensive one.
func (u *DepartmentUsecase) Subtree(ctx context.Context, actor Actor, id string) ([]*domain.Department, error) {
	if !actor.Can(auth.PermDepartmentRead) {
		return nil, forbidden("not allowed to view departments")
	}
	return u.caches.DepartmentTree.Get(ctx, id, func(ctx context.Context) ([]*domain.Department, error) {
		root, err := u.departments.Subtree(ctx, id)
		if err != nil {
			return nil, err
		}
		return []*domain.Department{root}, nil
	})
}

type UpdateDepartmentInput struct {
	Name     *string
	ParentID *string
	// ClearParent detaches the department from its parent. ParentID wins if
	// both are set.
	ClearParent bool
}

func (u *DepartmentUsecase) Update(ctx context.Context, actor Actor, id string, input UpdateDepartmentInput) (*domain.Department, error) {
	if !actor.Can(auth.PermDepartmentWrite) {
		return nil, forbidden("not allowed to update departments")
	}
	dept, err := u.departments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if err := validateDepartmentName(*input.Name); err != nil {
			return nil, err
		}
		dept.Name = strings.TrimSpace(*input.Name)
	}
	if input.ParentID != nil {
		if *input.ParentID == id {
			return nil, domain.Validation("department cannot be its own parent", nil)
		}
		// Reparenting under a descendant would create a cycle.
		cyclic, err := u.departments.IsAncestor(ctx, *input.ParentID, id)
		if err != nil {
			return nil, fmt.Errorf("check hierarchy: %w", err)
		}
		if cyclic {
			return nil, domain.Validation("cannot move a department under its own descendant", nil)
		}
		if _, err := u.departments.GetByID(ctx, *input.ParentID); err != nil {
			return nil, err
		}
		dept.ParentID = input.ParentID
	} else if input.ClearParent {
		dept.ParentID = nil
	}

	updated, err := u.departments.Update(ctx, dept)
	if err != nil {
		return nil, fmt.Errorf("update department: %w", err)
	}
	u.caches.DepartmentTree.InvalidateAll(ctx)
	return updated, nil
}

// Delete removes a department. Without force it refuses while active
// members or children remain; with force children are reparented and
// members detached.
func (u *DepartmentUsecase) Delete(ctx context.Context, actor Actor, id string, force bool) error {
	if !actor.Can(auth.PermDepartmentWrite) {
		return forbidden("not allowed to delete departments")
	}
	if _, err := u.departments.GetByID(ctx, id); err != nil {
		return err
	}

	if !force {
		hasMembers, err := u.departments.HasActiveMembers(ctx, id)
		if err != nil {
			return fmt.Errorf("check members: %w", err)
		}
		if hasMembers {
			return domain.E(domain.KindConflict, "", "department still has active members")
		}
		hasChildren, err := u.departments.HasChildren(ctx, id)
		if err != nil {
			return fmt.Errorf("check children: %w", err)
		}
		if hasChildren {
			return domain.E(domain.KindConflict, "", "department still has child departments")
		}
	}

	if err := u.departments.Delete(ctx, id, force); err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	u.caches.DepartmentTree.InvalidateAll(ctx)
	u.logger.Info("department deleted", "department_id", id, "force", force, "by", actor.ID)
	return nil
}

func validateDepartmentName(name string) error {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < 2 || len(trimmed) > 100 {
		return domain.Validation("invalid department", map[string]string{
			"name": "must be between 2 and 100 characters",
		})
	}
	return nil
}
