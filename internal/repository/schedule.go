package repository

import (
	"context"
	"time"

	"github.com/rosterly/rosterd/internal/domain"
)

type ListSchedulesInput struct {
	Status    domain.ScheduleStatus
	WeekFrom  *time.Time
	WeekTo    *time.Time
	CreatedBy string
	Offset    int
	Limit     int
}

type ScheduleRepository interface {
	Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	GetByID(ctx context.Context, id string) (*domain.Schedule, error)
	List(ctx context.Context, input ListSchedulesInput) ([]*domain.Schedule, int, error)
	// Update writes title/week bounds and bumps version. Fails with
	// domain.ErrVersionMismatch when expectedVersion does not match.
	Update(ctx context.Context, s *domain.Schedule, expectedVersion int) (*domain.Schedule, error)
	// SetStatus transitions the workflow state, recording approved_by for
	// approval, and bumps version.
	SetStatus(ctx context.Context, id string, status domain.ScheduleStatus, approvedBy *string) (*domain.Schedule, error)
	// Delete cascades to the schedule's assignments.
	Delete(ctx context.Context, id string) error
}
