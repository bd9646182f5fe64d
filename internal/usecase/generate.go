package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rosterly/rosterd/internal/auth"
	"github.com/rosterly/rosterd/internal/broadcast"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/repository"
	"github.com/rosterly/rosterd/internal/solver"
)

// GenerateUsecase snapshots the store and runs the solver through its
// worker pool. The solver itself never touches the repositories.
type GenerateUsecase struct {
	schedules   repository.ScheduleRepository
	shifts      repository.ShiftRepository
	employees   repository.EmployeeRepository
	rules       repository.RuleRepository
	assignments repository.AssignmentRepository
	pool        *solver.Pool
	hub         *broadcast.Hub
	timeBudget  time.Duration
	logger      *slog.Logger
}

func NewGenerateUsecase(
	schedules repository.ScheduleRepository,
	shifts repository.ShiftRepository,
	employees repository.EmployeeRepository,
	rules repository.RuleRepository,
	assignments repository.AssignmentRepository,
	pool *solver.Pool,
	hub *broadcast.Hub,
	timeBudget time.Duration,
	logger *slog.Logger,
) *GenerateUsecase {
	if timeBudget <= 0 {
		timeBudget = solver.DefaultTimeBudget
	}
	return &GenerateUsecase{
		schedules:   schedules,
		shifts:      shifts,
		employees:   employees,
		rules:       rules,
		assignments: assignments,
		pool:        pool,
		hub:         hub,
		timeBudget:  timeBudget,
		logger:      logger.With("component", "generate"),
	}
}

type GenerateInput struct {
	ScheduleID   string
	DepartmentID *string
	Weights      solver.Weights
	Seed         int64
	// Progress streams per-shift construction progress to the schedule's
	// realtime topic while the solver runs.
	Progress bool
}

// Generate produces a fresh plan for the schedule's week from scratch.
func (u *GenerateUsecase) Generate(ctx context.Context, actor Actor, input GenerateInput) (*solver.Plan, error) {
	if !actor.Can(auth.PermSolverRun) {
		return nil, forbidden("not allowed to run the scheduler")
	}
	in, err := u.snapshot(ctx, input, false)
	if err != nil {
		return nil, err
	}
	return u.run(ctx, input.ScheduleID, in)
}

// Optimize re-plans with the current assignments as the stability anchor,
// so the solver prefers keeping what is already in place.
func (u *GenerateUsecase) Optimize(ctx context.Context, actor Actor, input GenerateInput) (*solver.Plan, error) {
	if !actor.Can(auth.PermSolverRun) {
		return nil, forbidden("not allowed to run the scheduler")
	}
	in, err := u.snapshot(ctx, input, true)
	if err != nil {
		return nil, err
	}
	return u.run(ctx, input.ScheduleID, in)
}

// ValidationIssue is one finding of a schedule validation run.
type ValidationIssue struct {
	ShiftID string `json:"shift_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validate checks the current assignments against the hard constraints
// without changing anything.
func (u *GenerateUsecase) Validate(ctx context.Context, actor Actor, scheduleID string) ([]ValidationIssue, error) {
	if !actor.Can(auth.PermScheduleRead) {
		return nil, forbidden("not allowed to validate schedules")
	}
	sched, err := u.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	rows, err := u.assignments.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}

	issues := []ValidationIssue{}
	byEmployee := map[string][]*domain.Assignment{}
	empIDs := []string{}
	for _, a := range rows {
		if a.Status.Terminal() {
			continue
		}
		if len(byEmployee[a.EmployeeID]) == 0 {
			empIDs = append(empIDs, a.EmployeeID)
		}
		byEmployee[a.EmployeeID] = append(byEmployee[a.EmployeeID], a)
	}
	emps, err := u.employees.GetByIDs(ctx, empIDs)
	if err != nil {
		return nil, fmt.Errorf("load employees: %w", err)
	}

	for employeeID, list := range byEmployee {
		emp := emps[employeeID]
		var weekMinutes int
		for i, a := range list {
			if a.Shift == nil {
				continue
			}
			weekMinutes += int(a.Shift.Duration().Minutes())
			for _, b := range list[i+1:] {
				if b.Shift != nil && a.Shift.Overlaps(b.Shift) {
					issues = append(issues, ValidationIssue{
						ShiftID: a.ShiftID,
						Code:    domain.CodeOverlapConflict,
						Message: fmt.Sprintf("employee %s holds overlapping shifts", employeeID),
					})
				}
			}
			if emp != nil {
				if !emp.HasQualifications(a.Shift.Requirements) {
					issues = append(issues, ValidationIssue{
						ShiftID: a.ShiftID,
						Code:    domain.CodeQualificationMissing,
						Message: fmt.Sprintf("employee %s lacks a required qualification", employeeID),
					})
				}
				if len(emp.Availability) > 0 && !emp.Availability.Allows(a.Shift.Weekday(), a.Shift.Interval()) {
					issues = append(issues, ValidationIssue{
						ShiftID: a.ShiftID,
						Code:    domain.CodeAvailabilityViolation,
						Message: fmt.Sprintf("shift falls outside employee %s's availability", employeeID),
					})
				}
			}
		}
		if emp != nil && weekMinutes > emp.MaxHoursPerWeek*60 {
			issues = append(issues, ValidationIssue{
				Code: "max_hours_exceeded",
				Message: fmt.Sprintf("employee %s is scheduled %d minutes over their weekly cap",
					employeeID, weekMinutes-emp.MaxHoursPerWeek*60),
			})
		}
	}

	// Under-covered shifts in the week that have no (or not enough) rows.
	shifts, err := u.shifts.ListRange(ctx, sched.WeekStart, sched.WeekEnd, nil)
	if err != nil {
		return nil, fmt.Errorf("load shifts: %w", err)
	}
	covered := map[string]int{}
	for _, a := range rows {
		if !a.Status.Terminal() {
			covered[a.ShiftID]++
		}
	}
	for _, s := range shifts {
		if covered[s.ID] < s.RequiredStaff {
			issues = append(issues, ValidationIssue{
				ShiftID: s.ID,
				Code:    "under_covered",
				Message: fmt.Sprintf("shift has %d of %d required staff", covered[s.ID], s.RequiredStaff),
			})
		}
	}
	return issues, nil
}

// snapshot loads the solver input for the schedule's week in one place so
// the run itself is a pure function of the snapshot.
func (u *GenerateUsecase) snapshot(ctx context.Context, input GenerateInput, withPrior bool) (solver.Input, error) {
	sched, err := u.schedules.GetByID(ctx, input.ScheduleID)
	if err != nil {
		return solver.Input{}, err
	}
	if !sched.Status.Editable() {
		return solver.Input{}, domain.E(domain.KindConflict, domain.CodeScheduleNotEditable,
			"plans can only be generated for draft or pending schedules")
	}

	emps, err := u.employees.ListActive(ctx, input.DepartmentID)
	if err != nil {
		return solver.Input{}, fmt.Errorf("load employees: %w", err)
	}
	shifts, err := u.shifts.ListRange(ctx, sched.WeekStart, sched.WeekEnd, input.DepartmentID)
	if err != nil {
		return solver.Input{}, fmt.Errorf("load shifts: %w", err)
	}
	ruleRows, err := u.rules.ListActive(ctx)
	if err != nil {
		return solver.Input{}, fmt.Errorf("load rules: %w", err)
	}

	in := solver.Input{
		Employees:  make([]domain.Employee, len(emps)),
		Shifts:     make([]domain.Shift, len(shifts)),
		Rules:      make([]domain.Rule, len(ruleRows)),
		Weights:    input.Weights,
		Seed:       input.Seed,
		TimeBudget: u.timeBudget,
	}
	for i, e := range emps {
		in.Employees[i] = *e
	}
	for i, s := range shifts {
		in.Shifts[i] = *s
	}
	for i, r := range ruleRows {
		in.Rules[i] = *r
	}

	if input.Progress {
		topic := broadcast.ScheduleTopic(input.ScheduleID)
		in.Progress = func(done, total int) {
			u.hub.Publish(topic, broadcast.EventGenerateProgress,
				map[string]int{"done": done, "total": total})
		}
	}

	if withPrior {
		prior, err := u.assignments.ListBySchedule(ctx, input.ScheduleID)
		if err != nil {
			return solver.Input{}, fmt.Errorf("load prior assignments: %w", err)
		}
		in.Prior = make([]domain.Assignment, 0, len(prior))
		for _, a := range prior {
			if !a.Status.Terminal() {
				in.Prior = append(in.Prior, *a)
			}
		}
	}
	return in, nil
}

func (u *GenerateUsecase) run(ctx context.Context, scheduleID string, in solver.Input) (*solver.Plan, error) {
	start := time.Now()
	plan, err := u.pool.Run(ctx, in)
	if err != nil {
		return nil, err
	}
	u.logger.Info("solver run finished",
		"schedule_id", scheduleID,
		"status", plan.Status,
		"assignments", len(plan.Assignments),
		"unassigned", len(plan.Unassigned),
		"elapsed", time.Since(start))
	return plan, nil
}
