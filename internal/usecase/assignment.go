package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rosterly/rosterd/internal/auth"
	"github.com/rosterly/rosterd/internal/broadcast"
	"github.com/rosterly/rosterd/internal/cache"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/locks"
	"github.com/rosterly/rosterd/internal/repository"
	"github.com/rosterly/rosterd/internal/solver"
)

type AssignmentUsecase struct {
	assignments   repository.AssignmentRepository
	schedules     repository.ScheduleRepository
	shifts        repository.ShiftRepository
	employees     repository.EmployeeRepository
	notifications repository.NotificationRepository
	hub           *broadcast.Hub
	caches        *cache.Caches
	locks         *locks.Keyed
	confirmWindow time.Duration
	logger        *slog.Logger
}

func NewAssignmentUsecase(
	assignments repository.AssignmentRepository,
	schedules repository.ScheduleRepository,
	shifts repository.ShiftRepository,
	employees repository.EmployeeRepository,
	notifications repository.NotificationRepository,
	hub *broadcast.Hub,
	caches *cache.Caches,
	keyed *locks.Keyed,
	confirmWindow time.Duration,
	logger *slog.Logger,
) *AssignmentUsecase {
	if confirmWindow <= 0 {
		confirmWindow = 48 * time.Hour
	}
	return &AssignmentUsecase{
		assignments:   assignments,
		schedules:     schedules,
		shifts:        shifts,
		employees:     employees,
		notifications: notifications,
		hub:           hub,
		caches:        caches,
		locks:         keyed,
		confirmWindow: confirmWindow,
		logger:        logger.With("component", "assignment"),
	}
}

type AssignmentInput struct {
	ScheduleID string
	EmployeeID string
	ShiftID    string
	Priority   int
	Notes      *string
}

// Create validates and inserts one assignment. Writes to a schedule are
// serialized under a per-schedule lock so concurrent creates cannot slip
// past the overlap check.
func (u *AssignmentUsecase) Create(ctx context.Context, actor Actor, input AssignmentInput) (*domain.Assignment, error) {
	if !actor.Can(auth.PermAssignmentWrite) {
		return nil, forbidden("not allowed to create assignments")
	}
	if err := u.locks.Lock(ctx, input.ScheduleID); err != nil {
		return nil, err
	}
	defer u.locks.Unlock(input.ScheduleID)

	v, err := u.validate(ctx, input)
	if err != nil {
		return nil, err
	}

	created, err := u.assignments.Create(ctx, &domain.Assignment{
		ScheduleID: input.ScheduleID,
		EmployeeID: input.EmployeeID,
		ShiftID:    input.ShiftID,
		Status:     domain.AssignmentAssigned,
		Priority:   input.Priority,
		Notes:      input.Notes,
		AssignedBy: actor.ID,
		AssignedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}
	created.Shift = v.shift

	u.caches.ScheduleAssignments.InvalidatePattern(ctx, input.ScheduleID+"*")
	u.hub.Publish(broadcast.ScheduleTopic(input.ScheduleID), broadcast.EventAssignmentCreated, created)
	u.hub.Publish(broadcast.EmployeeTopic(input.EmployeeID), broadcast.EventAssignmentCreated, created)
	u.notify(ctx, input.EmployeeID, domain.PriorityMedium,
		"New shift assignment",
		fmt.Sprintf("You have been assigned a %s shift on %s (%s-%s). Please confirm within %d hours.",
			v.shift.Type, v.shift.Date.Format("Mon Jan 2"), v.shift.Start, v.shift.End,
			int(u.confirmWindow.Hours())),
		"/assignments/"+created.ID)
	return created, nil
}

// CreateBulk inserts a batch with partial success: rows that fail
// validation or insertion are reported per index while the rest commit.
// Every row must target the same schedule.
func (u *AssignmentUsecase) CreateBulk(ctx context.Context, actor Actor, scheduleID string, inputs []AssignmentInput) (*repository.BulkResult, error) {
	if !actor.Can(auth.PermAssignmentWrite) {
		return nil, forbidden("not allowed to create assignments")
	}
	if len(inputs) == 0 {
		return nil, domain.Validation("empty assignment batch", nil)
	}
	if len(inputs) > 500 {
		return nil, domain.Validation("at most 500 assignments per batch", nil)
	}
	for i := range inputs {
		if inputs[i].ScheduleID != scheduleID {
			return nil, domain.Validation(
				fmt.Sprintf("assignment %d targets a different schedule", i), nil)
		}
	}

	if err := u.locks.Lock(ctx, scheduleID); err != nil {
		return nil, err
	}
	defer u.locks.Unlock(scheduleID)

	// Pre-validate each row, then track in-batch state so a later row
	// conflicting with an earlier accepted one is rejected too.
	items := make([]*domain.Assignment, len(inputs))
	precomputed := make([]*domain.Error, len(inputs))
	now := time.Now().UTC()
	taken := map[string]bool{}               // schedule|employee|shift
	accepted := map[string][]*domain.Shift{} // employeeID -> shifts accepted so far
	for i, in := range inputs {
		items[i] = &domain.Assignment{
			ScheduleID: in.ScheduleID,
			EmployeeID: in.EmployeeID,
			ShiftID:    in.ShiftID,
			Status:     domain.AssignmentAssigned,
			Priority:   in.Priority,
			Notes:      in.Notes,
			AssignedBy: actor.ID,
			AssignedAt: now,
		}
		v, err := u.validate(ctx, in)
		if err != nil {
			var de *domain.Error
			if errors.As(err, &de) {
				precomputed[i] = de
				continue
			}
			return nil, err
		}
		key := in.ScheduleID + "|" + in.EmployeeID + "|" + in.ShiftID
		if taken[key] {
			precomputed[i] = domain.E(domain.KindConflict, domain.CodeDuplicateAssignment,
				"duplicate assignment within the batch")
			continue
		}
		overlapped := false
		for _, s := range accepted[in.EmployeeID] {
			if s.Overlaps(v.shift) {
				precomputed[i] = domain.E(domain.KindConflict, domain.CodeOverlapConflict,
					"overlaps an earlier assignment in the batch")
				overlapped = true
				break
			}
		}
		if overlapped {
			continue
		}
		taken[key] = true
		accepted[in.EmployeeID] = append(accepted[in.EmployeeID], v.shift)
	}

	result, err := u.assignments.CreateBulk(ctx, items, func(i int) *domain.Error {
		return precomputed[i]
	})
	if err != nil {
		return nil, fmt.Errorf("bulk create assignments: %w", err)
	}

	u.caches.ScheduleAssignments.InvalidatePattern(ctx, scheduleID+"*")
	for _, a := range result.Created {
		u.hub.Publish(broadcast.ScheduleTopic(scheduleID), broadcast.EventAssignmentCreated, a)
		u.hub.Publish(broadcast.EmployeeTopic(a.EmployeeID), broadcast.EventAssignmentCreated, a)
	}
	u.logger.Info("assignments bulk created", "schedule_id", scheduleID,
		"created", result.TotalCreated, "errors", result.TotalErrors, "by", actor.ID)
	return result, nil
}

func (u *AssignmentUsecase) Get(ctx context.Context, actor Actor, id string) (*domain.Assignment, error) {
	a, err := u.assignments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleEmployee && !actor.Is(a.EmployeeID) {
		return nil, forbidden("employees may only view their own assignments")
	}
	if !actor.Can(auth.PermAssignmentRead) && !actor.Is(a.EmployeeID) {
		return nil, forbidden("not allowed to view this assignment")
	}
	return a, nil
}

type ListAssignmentsResult struct {
	Assignments []*domain.Assignment
	NextCursor  *string
}

func (u *AssignmentUsecase) List(ctx context.Context, actor Actor, input repository.ListAssignmentsInput, cursorStr string) (ListAssignmentsResult, error) {
	if actor.Role == domain.RoleEmployee {
		// Employees list only their own rows, whatever the filter says.
		own := actor.ID
		input.EmployeeID = &own
	} else if !actor.Can(auth.PermAssignmentRead) {
		return ListAssignmentsResult{}, forbidden("not allowed to list assignments")
	}
	limit := clampLimit(input.Limit)
	cursorTime, cursorID, err := decodeCursor(cursorStr)
	if err != nil {
		return ListAssignmentsResult{}, err
	}
	input.CursorTime = cursorTime
	input.CursorID = cursorID
	input.Limit = limit + 1

	rows, err := u.assignments.List(ctx, input)
	if err != nil {
		return ListAssignmentsResult{}, fmt.Errorf("list assignments: %w", err)
	}
	result := ListAssignmentsResult{Assignments: rows}
	if len(rows) > limit {
		result.Assignments = rows[:limit]
		last := result.Assignments[limit-1]
		next := encodeCursor(last.CreatedAt, last.ID)
		result.NextCursor = &next
	}
	return result, nil
}

// BySchedule returns the schedule's assignments through the read cache.
func (u *AssignmentUsecase) BySchedule(ctx context.Context, actor Actor, scheduleID string) ([]domain.Assignment, error) {
	if !actor.Can(auth.PermAssignmentRead) {
		return nil, forbidden("not allowed to list assignments")
	}
	page, err := u.caches.ScheduleAssignments.Get(ctx, scheduleID, func(ctx context.Context) (cache.AssignmentPage, error) {
		rows, err := u.assignments.ListBySchedule(ctx, scheduleID)
		if err != nil {
			return cache.AssignmentPage{}, err
		}
		out := make([]domain.Assignment, len(rows))
		for i, r := range rows {
			out[i] = *r
		}
		return cache.AssignmentPage{Assignments: out}, nil
	})
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleEmployee {
		// Filter into a fresh slice; the cached page is shared.
		own := make([]domain.Assignment, 0, len(page.Assignments))
		for _, a := range page.Assignments {
			if actor.Is(a.EmployeeID) {
				own = append(own, a)
			}
		}
		return own, nil
	}
	return page.Assignments, nil
}

type UpdateAssignmentInput struct {
	Priority *int
	Notes    *string
	Status   *domain.AssignmentStatus
}

// Update edits priority, notes, or performs a manager-driven status
// transition guarded by the state machine.
func (u *AssignmentUsecase) Update(ctx context.Context, actor Actor, id string, input UpdateAssignmentInput) (*domain.Assignment, error) {
	if !actor.Can(auth.PermAssignmentWrite) {
		return nil, forbidden("not allowed to update assignments")
	}
	a, err := u.assignments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Status != nil && *input.Status != a.Status {
		if !input.Status.Valid() {
			return nil, domain.Validation("unknown assignment status", nil)
		}
		if !domain.CanTransition(a.Status, *input.Status) {
			return nil, domain.E(domain.KindConflict, "",
				fmt.Sprintf("cannot move assignment from %s to %s", a.Status, *input.Status))
		}
		a.Status = *input.Status
	}
	if input.Priority != nil {
		a.Priority = *input.Priority
	}
	if input.Notes != nil {
		a.Notes = input.Notes
	}

	updated, err := u.assignments.Update(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("update assignment: %w", err)
	}
	u.caches.ScheduleAssignments.InvalidatePattern(ctx, a.ScheduleID+"*")
	u.hub.Publish(broadcast.ScheduleTopic(a.ScheduleID), broadcast.EventAssignmentUpdated, updated)
	u.hub.Publish(broadcast.EmployeeTopic(a.EmployeeID), broadcast.EventAssignmentUpdated, updated)
	return updated, nil
}

// Confirm accepts an assignment. Employees confirm their own rows within
// the response window; staff with the write permission may confirm any
// confirmable row at any time.
func (u *AssignmentUsecase) Confirm(ctx context.Context, actor Actor, id string) (*domain.Assignment, error) {
	a, err := u.assignments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := u.respondGuard(actor, a); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updated, err := u.assignments.SetStatus(ctx, id, domain.AssignmentConfirmed,
		[]domain.AssignmentStatus{domain.AssignmentAssigned, domain.AssignmentPending},
		&now, nil)
	if err != nil {
		return nil, err
	}
	u.caches.ScheduleAssignments.InvalidatePattern(ctx, a.ScheduleID+"*")
	u.hub.Publish(broadcast.ScheduleTopic(a.ScheduleID), broadcast.EventAssignmentConfirmed, updated)
	u.hub.Publish(broadcast.EmployeeTopic(a.EmployeeID), broadcast.EventAssignmentConfirmed, updated)
	return updated, nil
}

// Decline rejects an assignment with a mandatory reason and alerts the
// assigner so the slot can be refilled.
func (u *AssignmentUsecase) Decline(ctx context.Context, actor Actor, id, reason string) (*domain.Assignment, error) {
	if reason == "" {
		return nil, domain.Validation("a decline reason is required",
			map[string]string{"reason": "required"})
	}
	a, err := u.assignments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := u.respondGuard(actor, a); err != nil {
		return nil, err
	}

	updated, err := u.assignments.SetStatus(ctx, id, domain.AssignmentDeclined,
		[]domain.AssignmentStatus{domain.AssignmentAssigned, domain.AssignmentPending},
		nil, &reason)
	if err != nil {
		return nil, err
	}
	u.caches.ScheduleAssignments.InvalidatePattern(ctx, a.ScheduleID+"*")
	u.hub.Publish(broadcast.ScheduleTopic(a.ScheduleID), broadcast.EventAssignmentDeclined, updated)
	u.hub.Publish(broadcast.EmployeeTopic(a.EmployeeID), broadcast.EventAssignmentDeclined, updated)
	u.notify(ctx, a.AssignedBy, domain.PriorityHigh,
		"Assignment declined",
		fmt.Sprintf("An assignment was declined: %s. The shift needs to be refilled.", reason),
		"/schedules/"+a.ScheduleID)
	return updated, nil
}

// respondGuard checks who may answer an assignment and whether the response
// window is still open for self-service answers.
func (u *AssignmentUsecase) respondGuard(actor Actor, a *domain.Assignment) error {
	if !a.Status.Confirmable() {
		return domain.E(domain.KindConflict, "",
			fmt.Sprintf("assignment is already %s", a.Status))
	}
	if actor.Is(a.EmployeeID) {
		if time.Since(a.AssignedAt) > u.confirmWindow {
			return domain.Validation("the response window has closed", nil)
		}
		return nil
	}
	if !actor.Can(auth.PermAssignmentWrite) {
		return forbidden("not allowed to respond to this assignment")
	}
	return nil
}

func (u *AssignmentUsecase) Delete(ctx context.Context, actor Actor, id string) error {
	if !actor.Can(auth.PermAssignmentWrite) {
		return forbidden("not allowed to delete assignments")
	}
	a, err := u.assignments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	sched, err := u.schedules.GetByID(ctx, a.ScheduleID)
	if err != nil {
		return err
	}
	if !sched.Status.Editable() {
		return domain.E(domain.KindConflict, domain.CodeScheduleNotEditable,
			"assignments can only be removed from draft or pending schedules")
	}

	if err := u.assignments.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	u.caches.ScheduleAssignments.InvalidatePattern(ctx, a.ScheduleID+"*")
	u.hub.Publish(broadcast.ScheduleTopic(a.ScheduleID), broadcast.EventAssignmentDeleted,
		map[string]string{"assignment_id": id})
	u.hub.Publish(broadcast.EmployeeTopic(a.EmployeeID), broadcast.EventAssignmentDeleted,
		map[string]string{"assignment_id": id})
	return nil
}

// Conflict is one finding of a dry-run conflict check.
type Conflict struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CheckConflicts runs the validation pipeline without writing, returning
// every finding instead of stopping at the first.
func (u *AssignmentUsecase) CheckConflicts(ctx context.Context, actor Actor, input AssignmentInput) ([]Conflict, error) {
	if !actor.Can(auth.PermAssignmentRead) {
		return nil, forbidden("not allowed to check assignments")
	}
	var conflicts []Conflict
	if _, err := u.validate(ctx, input); err != nil {
		var de *domain.Error
		if !errors.As(err, &de) {
			return nil, err
		}
		conflicts = append(conflicts, Conflict{Code: de.Code, Message: de.Message})
	}
	return conflicts, nil
}

// ApplySolverPlan materializes a solver plan into assignment rows under the
// schedule lock. Existing auto-assigned rows are replaced; manual rows are
// kept and the plan is expected to respect them as prior assignments.
func (u *AssignmentUsecase) ApplySolverPlan(ctx context.Context, actor Actor, scheduleID string, plan *solver.Plan) (*repository.BulkResult, error) {
	if !actor.Can(auth.PermSolverRun) {
		return nil, forbidden("not allowed to apply generated plans")
	}
	sched, err := u.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if !sched.Status.Editable() {
		return nil, domain.E(domain.KindConflict, domain.CodeScheduleNotEditable,
			"generated plans can only be applied to draft or pending schedules")
	}

	if err := u.locks.Lock(ctx, scheduleID); err != nil {
		return nil, err
	}
	defer u.locks.Unlock(scheduleID)

	existing, err := u.assignments.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("load existing assignments: %w", err)
	}
	manual := map[string]bool{} // employee|shift already manually assigned
	for _, a := range existing {
		if a.AutoAssigned && !a.Status.Terminal() && a.Status != domain.AssignmentConfirmed {
			if err := u.assignments.Delete(ctx, a.ID); err != nil {
				return nil, fmt.Errorf("clear stale auto assignment: %w", err)
			}
			continue
		}
		manual[a.EmployeeID+"|"+a.ShiftID] = true
	}

	now := time.Now().UTC()
	items := make([]*domain.Assignment, 0, len(plan.Assignments))
	for _, pa := range plan.Assignments {
		if manual[pa.EmployeeID+"|"+pa.ShiftID] {
			continue
		}
		items = append(items, &domain.Assignment{
			ScheduleID:   scheduleID,
			EmployeeID:   pa.EmployeeID,
			ShiftID:      pa.ShiftID,
			Status:       domain.AssignmentAssigned,
			AssignedBy:   actor.ID,
			AssignedAt:   now,
			AutoAssigned: true,
		})
	}

	result, err := u.assignments.CreateBulk(ctx, items, nil)
	if err != nil {
		return nil, fmt.Errorf("apply plan: %w", err)
	}

	u.caches.ScheduleAssignments.InvalidatePattern(ctx, scheduleID+"*")
	for _, a := range result.Created {
		u.hub.Publish(broadcast.ScheduleTopic(scheduleID), broadcast.EventAssignmentCreated, a)
		u.hub.Publish(broadcast.EmployeeTopic(a.EmployeeID), broadcast.EventAssignmentCreated, a)
	}
	u.logger.Info("solver plan applied", "schedule_id", scheduleID,
		"created", result.TotalCreated, "errors", result.TotalErrors,
		"status", plan.Status, "by", actor.ID)
	return result, nil
}

type validation struct {
	schedule *domain.Schedule
	employee *domain.Employee
	shift    *domain.Shift
}

// validate runs the creation pipeline in a fixed order so clients get
// stable error codes: editable schedule, active employee, shift existence,
// duplicate, overlap, qualification, availability.
func (u *AssignmentUsecase) validate(ctx context.Context, input AssignmentInput) (*validation, error) {
	sched, err := u.schedules.GetByID(ctx, input.ScheduleID)
	if err != nil {
		return nil, err
	}
	if !sched.Status.Editable() {
		return nil, domain.E(domain.KindConflict, domain.CodeScheduleNotEditable,
			fmt.Sprintf("schedule is %s; assignments require draft or pending", sched.Status))
	}

	emp, err := u.employees.GetByID(ctx, input.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !emp.IsActive {
		return nil, domain.E(domain.KindConflict, domain.CodeEmployeeInactive,
			"employee account is deactivated")
	}

	shift, err := u.shifts.GetByID(ctx, input.ShiftID)
	if err != nil {
		return nil, domain.E(domain.KindValidation, domain.CodeShiftNotFound,
			"shift does not exist")
	}

	dayStart := shift.Date
	dayEnd := shift.Date.Add(24 * time.Hour)
	existing, err := u.assignments.List(ctx, repository.ListAssignmentsInput{
		EmployeeID: &input.EmployeeID,
		DateFrom:   &dayStart,
		DateTo:     &dayEnd,
		Limit:      200,
	})
	if err != nil {
		return nil, fmt.Errorf("load existing assignments: %w", err)
	}
	shiftIDs := make([]string, 0, len(existing))
	for _, a := range existing {
		if a.Status.Terminal() {
			continue
		}
		if a.ScheduleID == input.ScheduleID && a.ShiftID == input.ShiftID {
			return nil, domain.E(domain.KindConflict, domain.CodeDuplicateAssignment,
				"employee is already assigned to this shift in this schedule")
		}
		shiftIDs = append(shiftIDs, a.ShiftID)
	}
	if len(shiftIDs) > 0 {
		others, err := u.shifts.GetByIDs(ctx, shiftIDs)
		if err != nil {
			return nil, fmt.Errorf("load conflicting shifts: %w", err)
		}
		for _, other := range others {
			if other.ID != shift.ID && shift.Overlaps(other) {
				return nil, domain.E(domain.KindConflict, domain.CodeOverlapConflict,
					fmt.Sprintf("overlaps an existing %s shift (%s-%s)",
						other.Type, other.Start, other.End))
			}
		}
	}

	if !emp.HasQualifications(shift.Requirements) {
		return nil, domain.E(domain.KindConflict, domain.CodeQualificationMissing,
			"employee lacks a required qualification")
	}
	if len(emp.Availability) > 0 && !emp.Availability.Allows(shift.Weekday(), shift.Interval()) {
		return nil, domain.E(domain.KindConflict, domain.CodeAvailabilityViolation,
			"shift falls outside the employee's availability")
	}

	return &validation{schedule: sched, employee: emp, shift: shift}, nil
}

func (u *AssignmentUsecase) notify(ctx context.Context, recipientID string, priority domain.NotificationPriority, title, body, actionURL string) {
	_, err := u.notifications.Create(ctx, &domain.Notification{
		RecipientID: recipientID,
		Category:    "assignment",
		Priority:    priority,
		Title:       title,
		Body:        body,
		ActionURL:   &actionURL,
	})
	if err != nil {
		u.logger.Error("creating notification", "recipient_id", recipientID, "error", err)
		return
	}
	u.caches.Notifications.InvalidatePattern(ctx, recipientID+"*")
	u.hub.Publish(broadcast.EmployeeTopic(recipientID), broadcast.EventNotificationCreated,
		map[string]string{"title": title, "category": "assignment"})
}
