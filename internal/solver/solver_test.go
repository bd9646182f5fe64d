package solver

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/rosterly/rosterd/internal/domain"
)

var monday = time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC) // a Monday

func weekdayAvailability(start, end domain.Clock) domain.Availability {
	a := domain.Availability{}
	for _, d := range []string{"monday", "tuesday", "wednesday", "thursday", "friday"} {
		a[d] = domain.DayWindow{Available: true, Start: start, End: end}
	}
	return a
}

func testEmployee(id string, quals []string, avail domain.Availability) domain.Employee {
	return domain.Employee{
		ID:              id,
		FirstName:       id,
		Role:            domain.RoleEmployee,
		HourlyRate:      20,
		MaxHoursPerWeek: 40,
		Qualifications:  quals,
		Availability:    avail,
		IsActive:        true,
	}
}

func testShift(id string, date time.Time, start, end domain.Clock, staff int, reqs []string) domain.Shift {
	return domain.Shift{
		ID:            id,
		Date:          date,
		Start:         start,
		End:           end,
		Type:          domain.ShiftMorning,
		RequiredStaff: staff,
		Priority:      5,
		Requirements:  reqs,
	}
}

func TestSolveCoverageFromScratch(t *testing.T) {
	in := Input{
		Employees: []domain.Employee{
			testEmployee("emp-a", []string{"general"}, weekdayAvailability(9*60, 17*60)),
			testEmployee("emp-b", []string{"general"}, weekdayAvailability(9*60, 17*60)),
		},
		Shifts:     []domain.Shift{testShift("shift-1", monday, 9*60, 17*60, 1, []string{"general"})},
		TimeBudget: time.Second,
	}

	plan := Solve(context.Background(), in)
	if plan.Status != StatusOptimal {
		t.Fatalf("status = %v, want optimal", plan.Status)
	}
	if len(plan.Assignments) != 1 {
		t.Fatalf("assignments = %d, want 1", len(plan.Assignments))
	}
	if got := plan.Assignments[0].EmployeeID; got != "emp-a" && got != "emp-b" {
		t.Errorf("assigned %q, want emp-a or emp-b", got)
	}
	if len(plan.Unassigned) != 0 {
		t.Errorf("unassigned = %v, want empty", plan.Unassigned)
	}
}

func TestSolveQualificationGate(t *testing.T) {
	in := Input{
		Employees: []domain.Employee{
			testEmployee("emp-a", []string{"cashier"}, weekdayAvailability(0, domain.MinutesPerDay)),
			testEmployee("emp-b", []string{"cook"}, weekdayAvailability(0, domain.MinutesPerDay)),
		},
		Shifts:     []domain.Shift{testShift("shift-1", monday, 9*60, 17*60, 1, []string{"cook"})},
		TimeBudget: time.Second,
	}

	plan := Solve(context.Background(), in)
	if len(plan.Assignments) != 1 || plan.Assignments[0].EmployeeID != "emp-b" {
		t.Fatalf("assignments = %+v, want only emp-b", plan.Assignments)
	}
}

func TestSolveAvailabilityRule(t *testing.T) {
	sarahID := "emp-sarah"
	in := Input{
		Employees: []domain.Employee{
			testEmployee(sarahID, []string{"general"}, weekdayAvailability(0, domain.MinutesPerDay)),
		},
		Shifts: []domain.Shift{testShift("shift-1", monday, 18*60, 22*60, 1, []string{"general"})},
		Rules: []domain.Rule{{
			ID:         "rule-1",
			Type:       domain.RuleAvailability,
			EmployeeID: &sarahID,
			Active:     true,
			Payload: domain.RulePayload{Availability: &domain.AvailabilityRule{
				Days:     []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
				Window:   &domain.Interval{Start: 17 * 60, End: domain.MinutesPerDay - 1},
				Negation: true,
			}},
		}},
		TimeBudget: time.Second,
	}

	plan := Solve(context.Background(), in)
	if len(plan.Assignments) != 0 {
		t.Fatalf("assignments = %+v, want none", plan.Assignments)
	}
	if plan.Status != StatusInfeasible {
		t.Errorf("status = %v, want infeasible", plan.Status)
	}
	if len(plan.Unassigned) != 1 || plan.Unassigned[0].Reason != ReasonNoAvailable {
		t.Errorf("unassigned = %+v, want shift-1 with %s", plan.Unassigned, ReasonNoAvailable)
	}
}

func TestSolveNoOverlapPerEmployee(t *testing.T) {
	in := Input{
		Employees: []domain.Employee{
			testEmployee("emp-a", nil, weekdayAvailability(0, domain.MinutesPerDay)),
		},
		Shifts: []domain.Shift{
			testShift("shift-1", monday, 9*60, 13*60, 1, nil),
			testShift("shift-2", monday, 12*60, 16*60, 1, nil),
		},
		TimeBudget: time.Second,
	}

	plan := Solve(context.Background(), in)
	if len(plan.Assignments) != 1 {
		t.Fatalf("assignments = %d, want 1 (overlap must block the second)", len(plan.Assignments))
	}
	if len(plan.Unassigned) != 1 {
		t.Fatalf("unassigned = %+v, want one entry", plan.Unassigned)
	}
}

func TestSolveMaxHoursCap(t *testing.T) {
	emp := testEmployee("emp-a", nil, weekdayAvailability(0, domain.MinutesPerDay))
	emp.MaxHoursPerWeek = 8
	in := Input{
		Employees: []domain.Employee{emp},
		Shifts: []domain.Shift{
			testShift("shift-1", monday, 9*60, 17*60, 1, nil),
			testShift("shift-2", monday.AddDate(0, 0, 1), 9*60, 17*60, 1, nil),
		},
		TimeBudget: time.Second,
	}

	plan := Solve(context.Background(), in)
	if len(plan.Assignments) != 1 {
		t.Fatalf("assignments = %d, want 1 (weekly cap is 8h)", len(plan.Assignments))
	}
	if len(plan.Unassigned) != 1 || plan.Unassigned[0].Reason != ReasonHoursExhausted {
		t.Errorf("unassigned = %+v, want %s", plan.Unassigned, ReasonHoursExhausted)
	}
}

func TestSolveMinRestRule(t *testing.T) {
	rest := 12
	in := Input{
		Employees: []domain.Employee{
			testEmployee("emp-a", nil, weekdayAvailability(0, domain.MinutesPerDay)),
		},
		Shifts: []domain.Shift{
			// Ends Monday 22:00; next starts Tuesday 06:00 = 8h rest, below
			// the 12h floor.
			testShift("shift-1", monday, 14*60, 22*60, 1, nil),
			testShift("shift-2", monday.AddDate(0, 0, 1), 6*60, 14*60, 1, nil),
		},
		Rules: []domain.Rule{{
			ID:     "rule-1",
			Type:   domain.RuleRestriction,
			Active: true,
			Payload: domain.RulePayload{
				Restriction: &domain.RestrictionRule{MinRestHours: &rest},
			},
		}},
		TimeBudget: time.Second,
	}

	plan := Solve(context.Background(), in)
	if len(plan.Assignments) != 1 {
		t.Fatalf("assignments = %d, want 1 (rest floor must block the second)", len(plan.Assignments))
	}
}

func TestSolveCoverageOrUnassignedInvariant(t *testing.T) {
	in := Input{
		Employees: []domain.Employee{
			testEmployee("emp-a", []string{"general"}, weekdayAvailability(8*60, 18*60)),
			testEmployee("emp-b", []string{"general"}, weekdayAvailability(8*60, 18*60)),
		},
		Shifts: []domain.Shift{
			testShift("shift-1", monday, 9*60, 17*60, 2, []string{"general"}),
			testShift("shift-2", monday, 9*60, 17*60, 1, []string{"general"}),
			testShift("shift-3", monday, 20*60, 23*60, 1, nil),
		},
		TimeBudget: time.Second,
	}

	plan := Solve(context.Background(), in)

	counts := map[string]int{}
	for _, a := range plan.Assignments {
		counts[a.ShiftID]++
	}
	unassigned := map[string]bool{}
	for _, u := range plan.Unassigned {
		if u.Reason == "" {
			t.Errorf("unassigned shift %s has no reason", u.ShiftID)
		}
		unassigned[u.ShiftID] = true
	}
	for _, s := range in.Shifts {
		if counts[s.ID] != s.RequiredStaff && !unassigned[s.ID] {
			t.Errorf("shift %s: %d/%d staffed but not reported unassigned",
				s.ID, counts[s.ID], s.RequiredStaff)
		}
	}
}

func TestSolveDeterministic(t *testing.T) {
	in := Input{
		Employees: []domain.Employee{
			testEmployee("emp-a", []string{"general"}, weekdayAvailability(8*60, 18*60)),
			testEmployee("emp-b", []string{"general"}, weekdayAvailability(8*60, 18*60)),
			testEmployee("emp-c", []string{"general"}, weekdayAvailability(8*60, 18*60)),
		},
		Shifts: []domain.Shift{
			testShift("shift-1", monday, 9*60, 13*60, 2, []string{"general"}),
			testShift("shift-2", monday, 13*60, 17*60, 1, []string{"general"}),
			testShift("shift-3", monday.AddDate(0, 0, 1), 9*60, 17*60, 2, []string{"general"}),
		},
		Seed:       42,
		TimeBudget: 200 * time.Millisecond,
	}

	first := Solve(context.Background(), in)
	if first.Seed != 42 {
		t.Errorf("seed = %d, want 42", first.Seed)
	}
	for i := 0; i < 3; i++ {
		again := Solve(context.Background(), in)
		if !reflect.DeepEqual(first.Assignments, again.Assignments) {
			t.Fatalf("run %d differs:\n%+v\nvs\n%+v", i, first.Assignments, again.Assignments)
		}
	}
}

func TestSolveCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := Input{
		Employees: []domain.Employee{
			testEmployee("emp-a", nil, weekdayAvailability(0, domain.MinutesPerDay)),
		},
		Shifts:     []domain.Shift{testShift("shift-1", monday, 9*60, 17*60, 1, nil)},
		TimeBudget: time.Second,
	}

	plan := Solve(ctx, in)
	if plan.Status != StatusCancelled {
		t.Errorf("status = %v, want cancelled", plan.Status)
	}
}

func TestSolveEmptyShifts(t *testing.T) {
	plan := Solve(context.Background(), Input{TimeBudget: time.Second})
	if plan.Status != StatusOptimal {
		t.Errorf("status = %v, want optimal for empty input", plan.Status)
	}
	if len(plan.Assignments) != 0 || len(plan.Unassigned) != 0 {
		t.Errorf("empty input produced assignments %v unassigned %v", plan.Assignments, plan.Unassigned)
	}
}

func TestSolveStabilityPrefersPriorPlan(t *testing.T) {
	in := Input{
		Employees: []domain.Employee{
			testEmployee("emp-a", nil, weekdayAvailability(8*60, 18*60)),
			testEmployee("emp-b", nil, weekdayAvailability(8*60, 18*60)),
		},
		Shifts:     []domain.Shift{testShift("shift-1", monday, 9*60, 17*60, 1, nil)},
		Prior:      []domain.Assignment{{EmployeeID: "emp-b", ShiftID: "shift-1"}},
		Seed:       7,
		TimeBudget: time.Second,
	}

	plan := Solve(context.Background(), in)
	if len(plan.Assignments) != 1 || plan.Assignments[0].EmployeeID != "emp-b" {
		t.Fatalf("assignments = %+v, want prior holder emp-b", plan.Assignments)
	}
	tags := plan.Assignments[0].RationaleTags
	found := false
	for _, tag := range tags {
		if tag == "prior_assignment" {
			found = true
		}
	}
	if !found {
		t.Errorf("rationale %v missing prior_assignment", tags)
	}
}

func TestPoolBusy(t *testing.T) {
	pool := NewPool(1, 50*time.Millisecond)

	// Occupy the only worker slot for the duration of the test.
	pool.slots <- struct{}{}
	defer func() { <-pool.slots }()

	_, err := pool.Run(context.Background(), Input{TimeBudget: 10 * time.Millisecond})
	if domain.KindOf(err) != domain.KindDependency {
		t.Errorf("kind = %v, want dependency_unavailable", domain.KindOf(err))
	}
}

func TestPoolRunsSolve(t *testing.T) {
	pool := NewPool(2, time.Second)

	in := Input{
		Employees: []domain.Employee{
			testEmployee("emp-a", nil, weekdayAvailability(0, domain.MinutesPerDay)),
		},
		Shifts:     []domain.Shift{testShift("shift-1", monday, 9*60, 17*60, 1, nil)},
		TimeBudget: time.Second,
	}
	plan, err := pool.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Assignments) != 1 {
		t.Errorf("assignments = %d, want 1", len(plan.Assignments))
	}
}
