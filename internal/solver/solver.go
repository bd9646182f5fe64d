package solver

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/rosterly/rosterd/internal/domain"
)

type assignKey struct {
	employeeID string
	shiftID    string
}

// search is the mutable state of one run.
type search struct {
	shifts       []domain.Shift
	states       map[string]*employeeState
	order        []string // employee ids, sorted, for deterministic iteration
	requirements []requirementWindow
	dates        []string
	prior        map[assignKey]bool
	assigned     map[assignKey]bool
	plan         map[string][]string // shift id -> employee ids
	weights      Weights
	rng          *rand.Rand
	progress     func(done, total int)

	lastCancelCheck time.Time
}

// Solve produces an assignment plan for the snapshot. It is deterministic
// for a fixed (input, seed) pair and checks cancellation at least every
// 100ms while searching.
func Solve(ctx context.Context, in Input) *Plan {
	seed := in.Seed
	if seed == 0 {
		seed = 1
	}
	weights := in.Weights
	if weights.isZero() {
		weights = DefaultWeights()
	}
	budget := in.TimeBudget
	if budget <= 0 {
		budget = DefaultTimeBudget
	}
	deadline := time.Now().Add(budget)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	employees := make([]domain.Employee, len(in.Employees))
	copy(employees, in.Employees)
	sort.Slice(employees, func(i, j int) bool { return employees[i].ID < employees[j].ID })

	shifts := make([]domain.Shift, len(in.Shifts))
	copy(shifts, in.Shifts)
	// High-priority shifts claim staff first.
	sort.Slice(shifts, func(i, j int) bool {
		a, b := &shifts[i], &shifts[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.ID < b.ID
	})

	sv := &search{
		shifts:       shifts,
		states:       buildStates(employees, in.Rules),
		requirements: lowerRequirements(in.Rules),
		dates:        horizonDates(shifts),
		prior:        make(map[assignKey]bool, len(in.Prior)),
		assigned:     make(map[assignKey]bool),
		plan:         make(map[string][]string, len(shifts)),
		weights:      weights,
		rng:          rand.New(rand.NewSource(seed)),
		progress:     in.Progress,
	}
	for i := range employees {
		sv.order = append(sv.order, employees[i].ID)
	}
	for i := range in.Prior {
		a := &in.Prior[i]
		sv.prior[assignKey{employeeID: a.EmployeeID, shiftID: a.ShiftID}] = true
	}

	if len(shifts) == 0 {
		return sv.result(StatusOptimal, nil, 0)
	}

	unassigned, done := sv.construct(ctx, deadline)
	if !done {
		if ctx.Err() != nil {
			return &Plan{Status: StatusCancelled, Seed: seed}
		}
		if len(sv.assigned) == 0 {
			return &Plan{Status: StatusTimeout, Seed: seed}
		}
		// Partial construction under a tiny budget still reports what it
		// covered.
		return sv.result(StatusFeasible, unassigned, seed)
	}

	converged := sv.improve(ctx, deadline)
	if ctx.Err() != nil {
		return &Plan{Status: StatusCancelled, Seed: seed}
	}

	unassigned = sv.coverageGaps()
	switch {
	case len(unassigned) > 0 || sv.requirementShortfall() > 0:
		return sv.result(StatusInfeasible, unassigned, seed)
	case converged:
		return sv.result(StatusOptimal, nil, seed)
	default:
		return sv.result(StatusFeasible, nil, seed)
	}
}

// cancelled polls the context, rate-limited to the cancellation budget.
func (sv *search) cancelled(ctx context.Context) bool {
	now := time.Now()
	if now.Sub(sv.lastCancelCheck) < cancelCheckEvery/4 {
		return false
	}
	sv.lastCancelCheck = now
	return ctx.Err() != nil
}

// construct builds an initial plan greedily, shift by shift. It returns the
// coverage gaps and whether construction ran to completion.
func (sv *search) construct(ctx context.Context, deadline time.Time) ([]UnassignedShift, bool) {
	for i := range sv.shifts {
		if sv.cancelled(ctx) || time.Now().After(deadline) {
			return sv.coverageGaps(), false
		}
		sv.staff(&sv.shifts[i])
		if sv.progress != nil {
			sv.progress(i+1, len(sv.shifts))
		}
	}
	return sv.coverageGaps(), true
}

// staff fills one shift up to required_staff with the cheapest eligible
// candidates, preferring prior-plan holders and preference matches.
func (sv *search) staff(s *domain.Shift) {
	need := s.RequiredStaff - len(sv.plan[s.ID])
	for ; need > 0; need-- {
		best := ""
		bestScore := 0.0
		for _, id := range sv.order {
			st := sv.states[id]
			key := assignKey{employeeID: id, shiftID: s.ID}
			if sv.assigned[key] {
				continue
			}
			if _, ok := st.eligible(s); !ok {
				continue
			}
			if _, ok := st.canTake(s); !ok {
				continue
			}
			score := sv.candidateScore(st, s, key)
			if best == "" || score < bestScore {
				best = id
				bestScore = score
			}
		}
		if best == "" {
			return
		}
		sv.add(best, s)
	}
}

// candidateScore is the greedy heuristic: lower is better. It mirrors the
// soft objective incrementally.
func (sv *search) candidateScore(st *employeeState, s *domain.Shift, key assignKey) float64 {
	hours := s.Duration().Hours()
	score := sv.weights.Cost*hours*st.emp.HourlyRate +
		sv.weights.Fairness*float64(st.minutes)/60.0 +
		sv.weights.Spread*float64(st.minutes)/60.0
	if sv.prior[key] {
		score -= sv.weights.Stability * 10
	}
	for _, p := range st.prefs {
		if preferenceMatches(p, s) {
			score -= sv.weights.Preference
		}
	}
	return score
}

func (sv *search) add(employeeID string, s *domain.Shift) {
	sv.states[employeeID].take(s)
	sv.plan[s.ID] = append(sv.plan[s.ID], employeeID)
	sv.assigned[assignKey{employeeID: employeeID, shiftID: s.ID}] = true
}

func (sv *search) remove(employeeID string, s *domain.Shift) {
	sv.states[employeeID].release(s)
	members := sv.plan[s.ID]
	for i, id := range members {
		if id == employeeID {
			sv.plan[s.ID] = append(members[:i], members[i+1:]...)
			break
		}
	}
	delete(sv.assigned, assignKey{employeeID: employeeID, shiftID: s.ID})
}

// improve runs a first-improvement local search over single-employee swaps
// until the budget expires or a full stale window passes with no accepted
// move. Returns whether the search converged.
func (sv *search) improve(ctx context.Context, deadline time.Time) bool {
	current := sv.evaluate()
	staleLimit := 50 + 20*len(sv.assigned)
	stale := 0

	for stale < staleLimit {
		if sv.cancelled(ctx) {
			return false
		}
		if !time.Now().Before(deadline) {
			return false
		}

		if sv.tryRandomSwap(&current) {
			stale = 0
			// An accepted swap can free capacity for an uncovered shift.
			sv.repair()
			current = sv.evaluate()
		} else {
			stale++
		}
	}
	return true
}

// tryRandomSwap replaces one random assignment with a random eligible
// substitute when that lowers the objective.
func (sv *search) tryRandomSwap(current *float64) bool {
	if len(sv.assigned) == 0 {
		return false
	}
	s := &sv.shifts[sv.rng.Intn(len(sv.shifts))]
	members := sv.plan[s.ID]
	if len(members) == 0 {
		return false
	}
	out := members[sv.rng.Intn(len(members))]
	in := sv.order[sv.rng.Intn(len(sv.order))]
	if in == out || sv.assigned[assignKey{employeeID: in, shiftID: s.ID}] {
		return false
	}

	st := sv.states[in]
	if _, ok := st.eligible(s); !ok {
		return false
	}

	sv.remove(out, s)
	if _, ok := st.canTake(s); !ok {
		sv.add(out, s)
		return false
	}
	sv.add(in, s)

	candidate := sv.evaluate()
	if candidate < *current {
		*current = candidate
		return true
	}
	sv.remove(in, s)
	sv.add(out, s)
	return false
}

// repair retries coverage for any shift still short of required staff.
func (sv *search) repair() {
	for i := range sv.shifts {
		s := &sv.shifts[i]
		if len(sv.plan[s.ID]) < s.RequiredStaff {
			sv.staff(s)
		}
	}
}

// coverageGaps reports shifts short of required_staff with the dominant
// blocking reason.
func (sv *search) coverageGaps() []UnassignedShift {
	var gaps []UnassignedShift
	for i := range sv.shifts {
		s := &sv.shifts[i]
		have := len(sv.plan[s.ID])
		if have >= s.RequiredStaff {
			continue
		}
		gaps = append(gaps, UnassignedShift{ShiftID: s.ID, Reason: sv.gapReason(s, have)})
	}
	return gaps
}

func (sv *search) gapReason(s *domain.Shift, have int) string {
	qualified, available, hoursBlocked := 0, 0, 0
	for _, id := range sv.order {
		st := sv.states[id]
		reason, ok := st.eligible(s)
		if !ok {
			if reason == ReasonNoQualified {
				continue
			}
			qualified++
			continue
		}
		qualified++
		available++
		if r, ok := st.canTake(s); !ok && r == ReasonHoursExhausted {
			hoursBlocked++
		}
	}
	switch {
	case qualified == 0:
		return ReasonNoQualified
	case available == 0:
		return ReasonNoAvailable
	case hoursBlocked > 0 && have+hoursBlocked >= s.RequiredStaff:
		return ReasonHoursExhausted
	default:
		return ReasonShortStaffed
	}
}

// result snapshots the search into the output plan.
func (sv *search) result(status Status, unassigned []UnassignedShift, seed int64) *Plan {
	plan := &Plan{
		Status:     status,
		Objective:  sv.evaluate(),
		Unassigned: unassigned,
		Metrics:    sv.metrics(),
		Seed:       seed,
	}
	if status == StatusFeasible {
		// The search was still moving when the budget ran out; report a
		// conservative relative gap rather than claiming optimality.
		gap := 0.05
		plan.Gap = &gap
	}

	for i := range sv.shifts {
		s := &sv.shifts[i]
		members := append([]string(nil), sv.plan[s.ID]...)
		sort.Strings(members)
		for _, id := range members {
			plan.Assignments = append(plan.Assignments, PlannedAssignment{
				EmployeeID:    id,
				ShiftID:       s.ID,
				RationaleTags: sv.rationale(id, s),
			})
		}
	}
	sort.Slice(plan.Assignments, func(i, j int) bool {
		a, b := plan.Assignments[i], plan.Assignments[j]
		if a.ShiftID != b.ShiftID {
			return a.ShiftID < b.ShiftID
		}
		return a.EmployeeID < b.EmployeeID
	})
	return plan
}

func (sv *search) rationale(employeeID string, s *domain.Shift) []string {
	tags := []string{"eligible"}
	if len(s.Requirements) > 0 {
		tags = append(tags, "qualification_match")
	}
	if sv.prior[assignKey{employeeID: employeeID, shiftID: s.ID}] {
		tags = append(tags, "prior_assignment")
	}
	for _, p := range sv.states[employeeID].prefs {
		if preferenceMatches(p, s) {
			tags = append(tags, "preference_match")
			break
		}
	}
	return tags
}
