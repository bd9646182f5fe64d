package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/rosterly/rosterd/internal/auth"
	"github.com/rosterly/rosterd/internal/cache"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/repository"
)

type ShiftUsecase struct {
	shifts      repository.ShiftRepository
	departments repository.DepartmentRepository
	caches      *cache.Caches
	logger      *slog.Logger
}

func NewShiftUsecase(
	shifts repository.ShiftRepository,
	departments repository.DepartmentRepository,
	caches *cache.Caches,
	logger *slog.Logger,
) *ShiftUsecase {
	return &ShiftUsecase{
		shifts:      shifts,
		departments: departments,
		caches:      caches,
		logger:      logger.With("component", "shift"),
	}
}

type ShiftInput struct {
	Date          time.Time
	Start         domain.Clock
	End           domain.Clock
	Type          domain.ShiftType
	DepartmentID  *string
	RequiredStaff int
	Priority      int
	Requirements  []string
}

func (in ShiftInput) toShift() *domain.Shift {
	return &domain.Shift{
		Date:          in.Date.UTC().Truncate(24 * time.Hour),
		Start:         in.Start,
		End:           in.End,
		Type:          in.Type,
		DepartmentID:  in.DepartmentID,
		RequiredStaff: in.RequiredStaff,
		Priority:      in.Priority,
		Requirements:  in.Requirements,
	}
}

func (u *ShiftUsecase) Create(ctx context.Context, actor Actor, input ShiftInput) (*domain.Shift, error) {
	if !actor.Can(auth.PermShiftWrite) {
		return nil, forbidden("not allowed to create shifts")
	}
	shift := input.toShift()
	if err := validateShift(shift); err != nil {
		return nil, err
	}
	if shift.DepartmentID != nil {
		if _, err := u.departments.GetByID(ctx, *shift.DepartmentID); err != nil {
			return nil, err
		}
	}

	created, err := u.shifts.Create(ctx, shift)
	if err != nil {
		return nil, fmt.Errorf("create shift: %w", err)
	}
	return created, nil
}

// CreateBulk validates every row first and inserts all-or-nothing: one
// invalid row fails the whole batch before any insert happens.
func (u *ShiftUsecase) CreateBulk(ctx context.Context, actor Actor, inputs []ShiftInput) ([]*domain.Shift, error) {
	if !actor.Can(auth.PermShiftWrite) {
		return nil, forbidden("not allowed to create shifts")
	}
	if len(inputs) == 0 {
		return nil, domain.Validation("empty shift batch", nil)
	}
	if len(inputs) > 500 {
		return nil, domain.Validation("at most 500 shifts per batch", nil)
	}

	shifts := make([]*domain.Shift, len(inputs))
	seen := map[string]struct{}{}
	for i, in := range inputs {
		s := in.toShift()
		if err := validateShift(s); err != nil {
			return nil, domain.Validation(
				fmt.Sprintf("shift %d: %s", i, err.Error()), nil)
		}
		if s.DepartmentID != nil {
			if _, ok := seen[*s.DepartmentID]; !ok {
				if _, err := u.departments.GetByID(ctx, *s.DepartmentID); err != nil {
					return nil, err
				}
				seen[*s.DepartmentID] = struct{}{}
			}
		}
		shifts[i] = s
	}

	created, err := u.shifts.CreateBulk(ctx, shifts)
	if err != nil {
		return nil, fmt.Errorf("bulk create shifts: %w", err)
	}
	u.logger.Info("shifts bulk created", "count", len(created), "by", actor.ID)
	return created, nil
}

func (u *ShiftUsecase) Get(ctx context.Context, actor Actor, id string) (*domain.Shift, error) {
	if !actor.Can(auth.PermShiftRead) {
		return nil, forbidden("not allowed to view shifts")
	}
	shift, err := u.caches.Shift.Get(ctx, id, func(ctx context.Context) (domain.Shift, error) {
		s, err := u.shifts.GetByID(ctx, id)
		if err != nil {
			return domain.Shift{}, err
		}
		return *s, nil
	})
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

type ListShiftsResult struct {
	Shifts []*domain.Shift
	Total  int
}

func (u *ShiftUsecase) List(ctx context.Context, actor Actor, input repository.ListShiftsInput) (ListShiftsResult, error) {
	if !actor.Can(auth.PermShiftRead) {
		return ListShiftsResult{}, forbidden("not allowed to list shifts")
	}
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = clampLimit(input.Limit)
	}
	shifts, total, err := u.shifts.List(ctx, input)
	if err != nil {
		return ListShiftsResult{}, fmt.Errorf("list shifts: %w", err)
	}
	return ListShiftsResult{Shifts: shifts, Total: total}, nil
}

type UpdateShiftInput struct {
	Date          *time.Time
	Start         *domain.Clock
	End           *domain.Clock
	Type          *domain.ShiftType
	RequiredStaff *int
	Priority      *int
	Requirements  []string
}

// Update edits a shift. Timing and staffing fields are frozen once any
// assignment references the shift.
func (u *ShiftUsecase) Update(ctx context.Context, actor Actor, id string, input UpdateShiftInput) (*domain.Shift, error) {
	if !actor.Can(auth.PermShiftWrite) {
		return nil, forbidden("not allowed to update shifts")
	}
	shift, err := u.shifts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	timingChange := input.Date != nil || input.Start != nil || input.End != nil ||
		input.RequiredStaff != nil
	if timingChange {
		assigned, err := u.shifts.HasAssignments(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("check assignments: %w", err)
		}
		if assigned {
			return nil, domain.E(domain.KindConflict, "",
				"shift timing is frozen while assignments exist")
		}
	}

	if input.Date != nil {
		shift.Date = input.Date.UTC().Truncate(24 * time.Hour)
	}
	if input.Start != nil {
		shift.Start = *input.Start
	}
	if input.End != nil {
		shift.End = *input.End
	}
	if input.Type != nil {
		shift.Type = *input.Type
	}
	if input.RequiredStaff != nil {
		shift.RequiredStaff = *input.RequiredStaff
	}
	if input.Priority != nil {
		shift.Priority = *input.Priority
	}
	if input.Requirements != nil {
		shift.Requirements = input.Requirements
	}
	if err := validateShift(shift); err != nil {
		return nil, err
	}

	updated, err := u.shifts.Update(ctx, shift)
	if err != nil {
		return nil, fmt.Errorf("update shift: %w", err)
	}
	u.caches.Shift.Invalidate(ctx, id)
	return updated, nil
}

// Delete removes a shift. Without force it refuses while assignments
// reference it; with force the referencing assignments are cancelled.
func (u *ShiftUsecase) Delete(ctx context.Context, actor Actor, id string, force bool) error {
	if !actor.Can(auth.PermShiftWrite) {
		return forbidden("not allowed to delete shifts")
	}
	if _, err := u.shifts.GetByID(ctx, id); err != nil {
		return err
	}
	if !force {
		assigned, err := u.shifts.HasAssignments(ctx, id)
		if err != nil {
			return fmt.Errorf("check assignments: %w", err)
		}
		if assigned {
			return domain.E(domain.KindConflict, "",
				"shift has assignments; delete with force to cancel them")
		}
	}

	if err := u.shifts.Delete(ctx, id, force); err != nil {
		return fmt.Errorf("delete shift: %w", err)
	}
	u.caches.Shift.Invalidate(ctx, id)
	u.caches.ScheduleAssignments.InvalidateAll(ctx)
	u.logger.Info("shift deleted", "shift_id", id, "force", force, "by", actor.ID)
	return nil
}

func validateShift(s *domain.Shift) error {
	fields := map[string]string{}
	if s.Date.IsZero() {
		fields["date"] = "required"
	}
	if s.Start >= s.End {
		fields["start"] = "must be before end"
	}
	if s.Start < 0 || s.End > domain.MinutesPerDay {
		fields["end"] = "must fall within a single day"
	}
	if !s.Type.Valid() {
		fields["type"] = "unknown shift type"
	}
	if s.RequiredStaff < 1 {
		fields["required_staff"] = "must be at least 1"
	}
	if s.Priority < 1 || s.Priority > 10 {
		fields["priority"] = "must be between 1 and 10"
	}
	if len(s.Requirements) > domain.MaxQualifications {
		fields["requirements"] = "at most " + strconv.Itoa(domain.MaxQualifications) + " tags"
	}
	if len(fields) > 0 {
		return domain.Validation("invalid shift", fields)
	}
	return nil
}
