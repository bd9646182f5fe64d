// Package solver generates assignment plans for a week of shifts. Solve is a
// pure function over a snapshot of employees, shifts and rules; it never
// touches the store, which keeps it deterministic and testable in isolation.
package solver

import (
	"time"

	"github.com/rosterly/rosterd/internal/domain"
)

// Status is the terminal state of one solver run.
type Status string

const (
	// StatusOptimal means the local search converged within the budget.
	StatusOptimal Status = "optimal"
	// StatusFeasible means the budget expired while improvements were still
	// being found; the plan carries the relative gap.
	StatusFeasible Status = "feasible"
	// StatusInfeasible means hard constraints left shifts uncoverable.
	StatusInfeasible Status = "infeasible"
	// StatusTimeout means the budget expired before any solution existed.
	StatusTimeout Status = "timeout_no_solution"
	// StatusCancelled means the caller's context was cancelled mid-run.
	StatusCancelled Status = "cancelled"
)

// Weights tunes the soft objectives. Zero value means "use defaults".
type Weights struct {
	Cost       float64 `json:"cost"`
	Fairness   float64 `json:"fairness"`
	Preference float64 `json:"preference"`
	Stability  float64 `json:"stability"`
	Spread     float64 `json:"spread"`
}

// DefaultWeights orders cost >= fairness >= preference >= stability >= spread.
func DefaultWeights() Weights {
	return Weights{Cost: 1.0, Fairness: 0.8, Preference: 0.6, Stability: 0.4, Spread: 0.2}
}

func (w Weights) isZero() bool {
	return w == Weights{}
}

// Input is the snapshot one run solves over.
type Input struct {
	Employees []domain.Employee
	Shifts    []domain.Shift
	Rules     []domain.Rule
	// Prior carries the previously published plan; the stability objective
	// penalizes departures from it.
	Prior   []domain.Assignment
	Weights Weights
	// Seed makes runs reproducible; 0 picks a fixed default.
	Seed int64
	// TimeBudget caps the run; 0 means DefaultTimeBudget.
	TimeBudget time.Duration
	// Progress, when set, is called after each shift is staffed during
	// construction. It must not mutate the input.
	Progress func(done, total int)
}

const (
	DefaultTimeBudget = 10 * time.Second
	DefaultMinRest    = 8 * time.Hour

	// cancelCheckEvery bounds how long the search runs between context
	// checks.
	cancelCheckEvery = 100 * time.Millisecond
)

// PlannedAssignment is one (employee, shift) pair in the result.
type PlannedAssignment struct {
	EmployeeID    string   `json:"employee_id"`
	ShiftID       string   `json:"shift_id"`
	RationaleTags []string `json:"rationale_tags"`
}

// UnassignedShift explains why a shift's coverage is short.
type UnassignedShift struct {
	ShiftID string `json:"shift_id"`
	Reason  string `json:"reason"`
}

// Unassigned reasons.
const (
	ReasonNoQualified    = "no_qualified_employees"
	ReasonNoAvailable    = "no_available_employees"
	ReasonShortStaffed   = "insufficient_eligible_employees"
	ReasonHoursExhausted = "eligible_employees_at_hour_limit"
)

// Metrics summarizes the plan's quality.
type Metrics struct {
	TotalCost          float64 `json:"total_cost"`
	FairnessStddev     float64 `json:"fairness_stddev"`
	PreferencesHonored int     `json:"preferences_honored"`
	PreferencesTotal   int     `json:"preferences_total"`
}

// Plan is the solver output. The caller (assignment engine) applies it; the
// solver never writes.
type Plan struct {
	Status      Status              `json:"status"`
	Objective   float64             `json:"objective"`
	Gap         *float64            `json:"gap,omitempty"`
	Assignments []PlannedAssignment `json:"assignments"`
	Unassigned  []UnassignedShift   `json:"unassigned_shifts"`
	Metrics     Metrics             `json:"metrics"`
	Seed        int64               `json:"seed"`
}
