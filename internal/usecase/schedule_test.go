package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rosterly/rosterd/internal/broadcast"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/usecase"
)

type scheduleEnv struct {
	schedules     *fakeSchedules
	assignments   *fakeAssignments
	notifications *fakeNotifications
	hub           *broadcast.Hub
	uc            *usecase.ScheduleUsecase
}

func newScheduleEnv(t *testing.T) *scheduleEnv {
	t.Helper()
	shifts := newFakeShifts()
	env := &scheduleEnv{
		schedules:     newFakeSchedules(),
		assignments:   newFakeAssignments(shifts),
		notifications: newFakeNotifications(),
		hub:           broadcast.NewHub(0, discardLogger()),
	}
	t.Cleanup(env.hub.Close)
	env.uc = usecase.NewScheduleUsecase(
		env.schedules, env.assignments, env.notifications,
		env.hub, newTestCaches(), discardLogger())
	return env
}

func TestCreateSchedule_RejectsSpanOverSevenDays(t *testing.T) {
	env := newScheduleEnv(t)

	_, err := env.uc.Create(context.Background(), managerActor, usecase.ScheduleInput{
		Title:     "Too long",
		WeekStart: testWeek,
		WeekEnd:   testWeek.Add(9 * 24 * time.Hour),
	})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestScheduleWorkflow_DraftToArchived(t *testing.T) {
	env := newScheduleEnv(t)
	sched, err := env.uc.Create(context.Background(), managerActor, usecase.ScheduleInput{
		Title:     "Week 35",
		WeekStart: testWeek,
		WeekEnd:   testWeek.Add(6 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sched.Status != domain.ScheduleDraft {
		t.Fatalf("status = %s, want draft", sched.Status)
	}

	if _, err := env.uc.Submit(context.Background(), managerActor, sched.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	approved, err := env.uc.Approve(context.Background(), managerActor, sched.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != managerActor.ID {
		t.Errorf("approved_by = %v, want %s", approved.ApprovedBy, managerActor.ID)
	}

	published, err := env.uc.Publish(context.Background(), managerActor, sched.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.Status != domain.SchedulePublished {
		t.Errorf("status = %s, want published", published.Status)
	}

	archived, err := env.uc.Archive(context.Background(), managerActor, sched.ID)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if archived.Status != domain.ScheduleArchived {
		t.Errorf("status = %s, want archived", archived.Status)
	}
}

func TestPublish_RequiresApprovedStatus(t *testing.T) {
	env := newScheduleEnv(t)
	sched, _ := env.uc.Create(context.Background(), managerActor, usecase.ScheduleInput{
		Title: "Week 35", WeekStart: testWeek, WeekEnd: testWeek.Add(6 * 24 * time.Hour),
	})

	_, err := env.uc.Publish(context.Background(), managerActor, sched.ID)
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("want conflict publishing a draft, got %v", err)
	}
}

func TestPublish_NotifiesAssignedEmployeesOnce(t *testing.T) {
	env := newScheduleEnv(t)
	sched, _ := env.uc.Create(context.Background(), managerActor, usecase.ScheduleInput{
		Title: "Week 35", WeekStart: testWeek, WeekEnd: testWeek.Add(6 * 24 * time.Hour),
	})
	// Two assignments for the same employee produce a single notification.
	env.assignments.Create(context.Background(), &domain.Assignment{
		ScheduleID: sched.ID, EmployeeID: "emp-1", ShiftID: "s1",
		Status: domain.AssignmentAssigned, AssignedBy: "mgr-1", AssignedAt: time.Now(),
	})
	env.assignments.Create(context.Background(), &domain.Assignment{
		ScheduleID: sched.ID, EmployeeID: "emp-1", ShiftID: "s2",
		Status: domain.AssignmentAssigned, AssignedBy: "mgr-1", AssignedAt: time.Now(),
	})

	env.uc.Submit(context.Background(), managerActor, sched.ID)
	env.uc.Approve(context.Background(), managerActor, sched.ID)
	if _, err := env.uc.Publish(context.Background(), managerActor, sched.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}

	count, _ := env.notifications.UnreadCount(context.Background(), "emp-1")
	if count != 1 {
		t.Errorf("notifications = %d, want 1", count)
	}
}

func TestUpdateSchedule_StaleVersionFails(t *testing.T) {
	env := newScheduleEnv(t)
	sched, _ := env.uc.Create(context.Background(), managerActor, usecase.ScheduleInput{
		Title: "Week 35", WeekStart: testWeek, WeekEnd: testWeek.Add(6 * 24 * time.Hour),
	})

	title := "Week 35 v2"
	if _, err := env.uc.Update(context.Background(), managerActor, sched.ID, usecase.UpdateScheduleInput{
		Title: &title, Version: sched.Version,
	}); err != nil {
		t.Fatalf("first update: %v", err)
	}

	// Replaying with the original version must fail.
	_, err := env.uc.Update(context.Background(), managerActor, sched.ID, usecase.UpdateScheduleInput{
		Title: &title, Version: sched.Version,
	})
	if !errors.Is(err, domain.ErrVersionMismatch) {
		t.Fatalf("want ErrVersionMismatch, got %v", err)
	}
}

func TestUpdateSchedule_WeekBoundsFrozenAfterApproval(t *testing.T) {
	env := newScheduleEnv(t)
	sched, _ := env.uc.Create(context.Background(), managerActor, usecase.ScheduleInput{
		Title: "Week 35", WeekStart: testWeek, WeekEnd: testWeek.Add(6 * 24 * time.Hour),
	})
	env.uc.Approve(context.Background(), managerActor, sched.ID)

	newStart := testWeek.Add(7 * 24 * time.Hour)
	_, err := env.uc.Update(context.Background(), managerActor, sched.ID, usecase.UpdateScheduleInput{
		WeekStart: &newStart, Version: sched.Version + 1,
	})
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("want conflict, got %v", err)
	}
}

func TestDeleteSchedule_PublishedMustBeArchivedFirst(t *testing.T) {
	env := newScheduleEnv(t)
	sched, _ := env.uc.Create(context.Background(), managerActor, usecase.ScheduleInput{
		Title: "Week 35", WeekStart: testWeek, WeekEnd: testWeek.Add(6 * 24 * time.Hour),
	})
	env.uc.Approve(context.Background(), managerActor, sched.ID)
	env.uc.Publish(context.Background(), managerActor, sched.ID)

	if err := env.uc.Delete(context.Background(), managerActor, sched.ID); domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("want conflict, got %v", err)
	}

	env.uc.Archive(context.Background(), managerActor, sched.ID)
	if err := env.uc.Delete(context.Background(), managerActor, sched.ID); err != nil {
		t.Fatalf("delete after archive: %v", err)
	}
}

func TestScheduleRead_EmployeeAllowed(t *testing.T) {
	env := newScheduleEnv(t)
	sched, _ := env.uc.Create(context.Background(), managerActor, usecase.ScheduleInput{
		Title: "Week 35", WeekStart: testWeek, WeekEnd: testWeek.Add(6 * 24 * time.Hour),
	})

	if _, err := env.uc.Get(context.Background(),
		usecase.Actor{ID: "emp-1", Role: domain.RoleEmployee}, sched.ID, false); err != nil {
		t.Fatalf("employee read: %v", err)
	}

	_, err := env.uc.Create(context.Background(),
		usecase.Actor{ID: "emp-1", Role: domain.RoleEmployee}, usecase.ScheduleInput{
			Title: "Nope", WeekStart: testWeek, WeekEnd: testWeek.Add(24 * time.Hour),
		})
	if domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("want forbidden, got %v", err)
	}
}

func TestCreateSchedule_AllowsSingleDaySpan(t *testing.T) {
	env := newScheduleEnv(t)

	sched, err := env.uc.Create(context.Background(), managerActor, usecase.ScheduleInput{
		Title:     "Inventory day",
		WeekStart: testWeek,
		WeekEnd:   testWeek,
	})
	if err != nil {
		t.Fatalf("single-day schedule rejected: %v", err)
	}
	if !sched.WeekStart.Equal(sched.WeekEnd) {
		t.Errorf("bounds = %v..%v, want equal", sched.WeekStart, sched.WeekEnd)
	}
}

func TestScheduleGet_EmployeeSeesOnlyOwnEmbeddedRows(t *testing.T) {
	env := newScheduleEnv(t)
	sched, err := env.uc.Create(context.Background(), managerActor, usecase.ScheduleInput{
		Title: "Week 35", WeekStart: testWeek, WeekEnd: testWeek.Add(6 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i, empID := range []string{"emp-1", "emp-2"} {
		if _, err := env.assignments.add(&domain.Assignment{
			ScheduleID: sched.ID, EmployeeID: empID, ShiftID: fmt.Sprintf("shift-%d", i),
			Status: domain.AssignmentAssigned, AssignedBy: "mgr-1",
		}); err != nil {
			t.Fatalf("seed assignment: %v", err)
		}
	}

	got, err := env.uc.Get(context.Background(),
		usecase.Actor{ID: "emp-1", Role: domain.RoleEmployee}, sched.ID, true)
	if err != nil {
		t.Fatalf("employee get: %v", err)
	}
	if len(got.Assignments) != 1 || got.Assignments[0].EmployeeID != "emp-1" {
		t.Fatalf("embedded rows = %+v, want only emp-1's", got.Assignments)
	}

	full, err := env.uc.Get(context.Background(), managerActor, sched.ID, true)
	if err != nil {
		t.Fatalf("manager get: %v", err)
	}
	if len(full.Assignments) != 2 {
		t.Errorf("manager sees %d rows, want 2", len(full.Assignments))
	}
}
