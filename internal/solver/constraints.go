package solver

import (
	"time"

	"github.com/rosterly/rosterd/internal/domain"
)

// employeeState tracks one employee's feasibility inputs and the running
// totals the hard constraints are checked against.
type employeeState struct {
	emp *domain.Employee

	// Constraints lowered from the rule set.
	blocked    []availabilityConstraint // negated availability rules
	allowed    []availabilityConstraint // positive "only available" rules
	maxMinutes int                      // weekly cap in minutes
	minRest    time.Duration            // 0 = no rest floor demanded

	// Preference rules scored by the soft objective.
	prefs []*domain.PreferenceRule

	// Mutable during search.
	shifts  []*domain.Shift
	minutes int
}

type availabilityConstraint struct {
	days   map[string]bool // empty = every day
	window *domain.Interval
}

func (c availabilityConstraint) appliesOn(day string) bool {
	return len(c.days) == 0 || c.days[day]
}

// buildStates lowers the rule set into per-employee constraint records. Rules
// with a nil employee id apply to everyone.
func buildStates(employees []domain.Employee, rules []domain.Rule) map[string]*employeeState {
	states := make(map[string]*employeeState, len(employees))
	for i := range employees {
		e := &employees[i]
		states[e.ID] = &employeeState{
			emp:        e,
			maxMinutes: e.MaxHoursPerWeek * 60,
		}
	}

	for i := range rules {
		r := &rules[i]
		if !r.Active {
			continue
		}
		apply := func(f func(*employeeState)) {
			if r.EmployeeID != nil {
				if st, ok := states[*r.EmployeeID]; ok {
					f(st)
				}
				return
			}
			for _, st := range states {
				f(st)
			}
		}

		switch r.Type {
		case domain.RuleAvailability:
			a := r.Payload.Availability
			if a == nil {
				continue
			}
			c := availabilityConstraint{days: daySet(a.Days), window: a.Window}
			apply(func(st *employeeState) {
				if a.Negation {
					st.blocked = append(st.blocked, c)
				} else {
					st.allowed = append(st.allowed, c)
				}
			})
		case domain.RuleRestriction:
			restr := r.Payload.Restriction
			if restr == nil {
				continue
			}
			apply(func(st *employeeState) {
				if restr.MaxHoursPerWeek != nil && *restr.MaxHoursPerWeek*60 < st.maxMinutes {
					st.maxMinutes = *restr.MaxHoursPerWeek * 60
				}
				if restr.MinRestHours != nil {
					rest := time.Duration(*restr.MinRestHours) * time.Hour
					if rest == 0 {
						rest = DefaultMinRest
					}
					if rest > st.minRest {
						st.minRest = rest
					}
				}
			})
		case domain.RulePreference:
			p := r.Payload.Preference
			if p == nil {
				continue
			}
			apply(func(st *employeeState) {
				st.prefs = append(st.prefs, p)
			})
		}
	}
	return states
}

func daySet(days []string) map[string]bool {
	if len(days) == 0 {
		return nil
	}
	set := make(map[string]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	return set
}

// eligible runs the static hard constraints: qualification, the availability
// map, and availability rules. It ignores the mutable totals, which canTake
// checks against the current partial plan.
func (st *employeeState) eligible(s *domain.Shift) (string, bool) {
	if !st.emp.IsActive {
		return ReasonNoAvailable, false
	}
	if !st.emp.HasQualifications(s.Requirements) {
		return ReasonNoQualified, false
	}

	day := domain.WeekdayKey(s.Weekday())
	iv := s.Interval()
	if !st.emp.Availability.Allows(s.Weekday(), iv) {
		return ReasonNoAvailable, false
	}
	for _, c := range st.blocked {
		if !c.appliesOn(day) {
			continue
		}
		if c.window == nil || c.window.Overlaps(iv) {
			return ReasonNoAvailable, false
		}
	}
	for _, c := range st.allowed {
		if !c.appliesOn(day) {
			continue
		}
		if c.window != nil && !c.window.Contains(iv) {
			return ReasonNoAvailable, false
		}
	}
	return "", true
}

// canTake checks the dynamic constraints against the employee's current
// shifts: overlap, the weekly hour cap, and the rest floor.
func (st *employeeState) canTake(s *domain.Shift) (string, bool) {
	if st.minutes+int(s.Duration().Minutes()) > st.maxMinutes {
		return ReasonHoursExhausted, false
	}
	for _, held := range st.shifts {
		if held.Overlaps(s) {
			return ReasonNoAvailable, false
		}
		if st.minRest > 0 && restBetween(held, s) < st.minRest {
			return ReasonNoAvailable, false
		}
	}
	return "", true
}

func (st *employeeState) take(s *domain.Shift) {
	st.shifts = append(st.shifts, s)
	st.minutes += int(s.Duration().Minutes())
}

func (st *employeeState) release(s *domain.Shift) {
	for i, held := range st.shifts {
		if held.ID == s.ID {
			st.shifts = append(st.shifts[:i], st.shifts[i+1:]...)
			st.minutes -= int(s.Duration().Minutes())
			return
		}
	}
}

// restBetween is the gap between two shifts as absolute times. Overlapping
// or back-to-back shifts yield zero.
func restBetween(a, b *domain.Shift) time.Duration {
	aStart := shiftStart(a)
	bStart := shiftStart(b)
	if aStart.After(bStart) {
		a, b = b, a
		aStart = bStart
	}
	gap := shiftStart(b).Sub(shiftEnd(a))
	if gap < 0 {
		return 0
	}
	return gap
}

func shiftStart(s *domain.Shift) time.Time {
	return s.Date.Add(time.Duration(s.Start) * time.Minute)
}

func shiftEnd(s *domain.Shift) time.Time {
	return s.Date.Add(time.Duration(s.End) * time.Minute)
}
