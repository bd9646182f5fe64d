package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rosterly/rosterd/internal/auth"
	"github.com/rosterly/rosterd/internal/broadcast"
	"github.com/rosterly/rosterd/internal/cache"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/repository"
)

type ScheduleUsecase struct {
	schedules     repository.ScheduleRepository
	assignments   repository.AssignmentRepository
	notifications repository.NotificationRepository
	hub           *broadcast.Hub
	caches        *cache.Caches
	logger        *slog.Logger
}

func NewScheduleUsecase(
	schedules repository.ScheduleRepository,
	assignments repository.AssignmentRepository,
	notifications repository.NotificationRepository,
	hub *broadcast.Hub,
	caches *cache.Caches,
	logger *slog.Logger,
) *ScheduleUsecase {
	return &ScheduleUsecase{
		schedules:     schedules,
		assignments:   assignments,
		notifications: notifications,
		hub:           hub,
		caches:        caches,
		logger:        logger.With("component", "schedule"),
	}
}

type ScheduleInput struct {
	Title     string
	WeekStart time.Time
	WeekEnd   time.Time
}

func (u *ScheduleUsecase) Create(ctx context.Context, actor Actor, input ScheduleInput) (*domain.Schedule, error) {
	if !actor.Can(auth.PermScheduleWrite) {
		return nil, forbidden("not allowed to create schedules")
	}
	if err := validateScheduleSpan(input.Title, input.WeekStart, input.WeekEnd); err != nil {
		return nil, err
	}

	created, err := u.schedules.Create(ctx, &domain.Schedule{
		Title:     input.Title,
		WeekStart: input.WeekStart.UTC().Truncate(24 * time.Hour),
		WeekEnd:   input.WeekEnd.UTC().Truncate(24 * time.Hour),
		Status:    domain.ScheduleDraft,
		CreatedBy: actor.ID,
		Version:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	return created, nil
}

func (u *ScheduleUsecase) Get(ctx context.Context, actor Actor, id string, withAssignments bool) (*domain.Schedule, error) {
	if !actor.Can(auth.PermScheduleRead) {
		return nil, forbidden("not allowed to view schedules")
	}
	sched, err := u.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if withAssignments {
		rows, err := u.assignments.ListBySchedule(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load assignments: %w", err)
		}
		if actor.Role == domain.RoleEmployee {
			// Employees see the schedule frame with only their own rows.
			own := rows[:0:0]
			for _, a := range rows {
				if actor.Is(a.EmployeeID) {
					own = append(own, a)
				}
			}
			rows = own
		}
		sched.Assignments = rows
	}
	return sched, nil
}

type ListSchedulesResult struct {
	Schedules []*domain.Schedule
	Total     int
}

func (u *ScheduleUsecase) List(ctx context.Context, actor Actor, input repository.ListSchedulesInput) (ListSchedulesResult, error) {
	if !actor.Can(auth.PermScheduleRead) {
		return ListSchedulesResult{}, forbidden("not allowed to list schedules")
	}
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = clampLimit(input.Limit)
	}
	rows, total, err := u.schedules.List(ctx, input)
	if err != nil {
		return ListSchedulesResult{}, fmt.Errorf("list schedules: %w", err)
	}
	return ListSchedulesResult{Schedules: rows, Total: total}, nil
}

type UpdateScheduleInput struct {
	Title     *string
	WeekStart *time.Time
	WeekEnd   *time.Time
	// Version is the client's last-seen version for optimistic concurrency.
	Version int
}

// Update edits title and week bounds under optimistic concurrency. A stale
// version fails with domain.ErrVersionMismatch. Week bounds are frozen once
// the schedule leaves the editable states.
func (u *ScheduleUsecase) Update(ctx context.Context, actor Actor, id string, input UpdateScheduleInput) (*domain.Schedule, error) {
	if !actor.Can(auth.PermScheduleWrite) {
		return nil, forbidden("not allowed to update schedules")
	}
	sched, err := u.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if (input.WeekStart != nil || input.WeekEnd != nil) && !sched.Status.Editable() {
		return nil, domain.E(domain.KindConflict, domain.CodeScheduleNotEditable,
			"week bounds are frozen once the schedule is approved")
	}

	if input.Title != nil {
		sched.Title = *input.Title
	}
	if input.WeekStart != nil {
		sched.WeekStart = input.WeekStart.UTC().Truncate(24 * time.Hour)
	}
	if input.WeekEnd != nil {
		sched.WeekEnd = input.WeekEnd.UTC().Truncate(24 * time.Hour)
	}
	if err := validateScheduleSpan(sched.Title, sched.WeekStart, sched.WeekEnd); err != nil {
		return nil, err
	}

	updated, err := u.schedules.Update(ctx, sched, input.Version)
	if err != nil {
		return nil, err
	}
	u.caches.ScheduleAssignments.InvalidatePattern(ctx, id+"*")
	return updated, nil
}

// Submit moves a draft into pending review.
func (u *ScheduleUsecase) Submit(ctx context.Context, actor Actor, id string) (*domain.Schedule, error) {
	if !actor.Can(auth.PermSchedulePropose) {
		return nil, forbidden("not allowed to submit schedules")
	}
	return u.transition(ctx, id, domain.SchedulePending, nil,
		[]domain.ScheduleStatus{domain.ScheduleDraft})
}

// Approve moves a draft or pending schedule to approved, recording the
// approver.
func (u *ScheduleUsecase) Approve(ctx context.Context, actor Actor, id string) (*domain.Schedule, error) {
	if !actor.Can(auth.PermScheduleApprove) {
		return nil, forbidden("not allowed to approve schedules")
	}
	return u.transition(ctx, id, domain.ScheduleApproved, &actor.ID,
		[]domain.ScheduleStatus{domain.ScheduleDraft, domain.SchedulePending})
}

// Publish makes an approved schedule live, notifies every assigned employee
// and broadcasts the event.
func (u *ScheduleUsecase) Publish(ctx context.Context, actor Actor, id string) (*domain.Schedule, error) {
	if !actor.Can(auth.PermScheduleApprove) {
		return nil, forbidden("not allowed to publish schedules")
	}
	sched, err := u.transition(ctx, id, domain.SchedulePublished, nil,
		[]domain.ScheduleStatus{domain.ScheduleApproved})
	if err != nil {
		return nil, err
	}

	rows, err := u.assignments.ListBySchedule(ctx, id)
	if err != nil {
		u.logger.Error("loading assignments for publish fan-out", "schedule_id", id, "error", err)
		rows = nil
	}
	notified := map[string]bool{}
	for _, a := range rows {
		if notified[a.EmployeeID] || a.Status.Terminal() {
			continue
		}
		notified[a.EmployeeID] = true
		u.notify(ctx, a.EmployeeID, "schedule", domain.PriorityHigh,
			"Schedule published",
			fmt.Sprintf("The schedule %q for the week of %s is now live.",
				sched.Title, sched.WeekStart.Format("Jan 2")),
			"/schedules/"+id)
	}

	u.hub.Publish(broadcast.ScheduleTopic(id), broadcast.EventSchedulePublished, sched)
	u.logger.Info("schedule published", "schedule_id", id, "by", actor.ID,
		"employees_notified", len(notified))
	return sched, nil
}

// Archive retires a published schedule.
func (u *ScheduleUsecase) Archive(ctx context.Context, actor Actor, id string) (*domain.Schedule, error) {
	if !actor.Can(auth.PermScheduleApprove) {
		return nil, forbidden("not allowed to archive schedules")
	}
	sched, err := u.transition(ctx, id, domain.ScheduleArchived, nil,
		[]domain.ScheduleStatus{domain.SchedulePublished})
	if err != nil {
		return nil, err
	}
	u.hub.Publish(broadcast.ScheduleTopic(id), broadcast.EventScheduleArchived, sched)
	return sched, nil
}

// Delete removes a schedule and, by cascade, its assignments. Published
// schedules must be archived first.
func (u *ScheduleUsecase) Delete(ctx context.Context, actor Actor, id string) error {
	if !actor.Can(auth.PermScheduleWrite) {
		return forbidden("not allowed to delete schedules")
	}
	sched, err := u.schedules.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sched.Status == domain.SchedulePublished {
		return domain.E(domain.KindConflict, "",
			"archive the schedule before deleting it")
	}
	if err := u.schedules.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	u.caches.ScheduleAssignments.InvalidatePattern(ctx, id+"*")
	u.logger.Info("schedule deleted", "schedule_id", id, "by", actor.ID)
	return nil
}

func (u *ScheduleUsecase) transition(ctx context.Context, id string, to domain.ScheduleStatus, approvedBy *string, allowedFrom []domain.ScheduleStatus) (*domain.Schedule, error) {
	sched, err := u.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, s := range allowedFrom {
		if sched.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, domain.E(domain.KindConflict, "",
			fmt.Sprintf("cannot move a %s schedule to %s", sched.Status, to))
	}
	return u.schedules.SetStatus(ctx, id, to, approvedBy)
}

func (u *ScheduleUsecase) notify(ctx context.Context, recipientID, category string, priority domain.NotificationPriority, title, body, actionURL string) {
	_, err := u.notifications.Create(ctx, &domain.Notification{
		RecipientID: recipientID,
		Category:    category,
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
		map[string]string{"title": title, "category": category})
}

func validateScheduleSpan(title string, start, end time.Time) error {
	fields := map[string]string{}
	if len(title) < 1 || len(title) > 200 {
		fields["title"] = "must be between 1 and 200 characters"
	}
	if start.IsZero() || end.IsZero() {
		fields["week_start"] = "both week bounds are required"
	} else {
		if end.Before(start) {
			fields["week_end"] = "must not be before week_start"
		}
		if end.Sub(start) > 7*24*time.Hour {
			fields["week_end"] = "span must not exceed 7 days"
		}
	}
	if len(fields) > 0 {
		return domain.Validation("invalid schedule", fields)
	}
	return nil
}
