package solver

import (
	"math"
	"sort"

	"github.com/rosterly/rosterd/internal/domain"
)

// requirementWindow is one lowered global requirement rule: a minimum
// distinct headcount during a window, optionally holding a qualification.
type requirementWindow struct {
	window        domain.Interval
	minHeadcount  int
	qualification *string
}

func lowerRequirements(rules []domain.Rule) []requirementWindow {
	var reqs []requirementWindow
	for i := range rules {
		r := &rules[i]
		if !r.Active || r.Type != domain.RuleRequirement || r.Payload.Requirement == nil {
			continue
		}
		p := r.Payload.Requirement
		reqs = append(reqs, requirementWindow{
			window:        p.Window,
			minHeadcount:  p.MinHeadcount,
			qualification: p.Qualification,
		})
	}
	return reqs
}

// hardPenalty dominates every soft term so the search never trades a hard
// violation for soft gains.
const hardPenalty = 1e9

// evaluate scores the current plan. Lower is better. The plan is the map
// from shift id to the employees assigned to it.
func (sv *search) evaluate() float64 {
	var cost, spread float64
	honored, total := sv.preferenceScore()
	changes := sv.stabilityChanges()

	hours := make(map[string]float64, len(sv.states))
	for id, st := range sv.states {
		h := float64(st.minutes) / 60.0
		hours[id] = h
		cost += h * st.emp.HourlyRate
		spread += h * h
	}

	obj := sv.weights.Cost*cost +
		sv.weights.Fairness*stddev(hours) +
		sv.weights.Preference*float64(total-honored) +
		sv.weights.Stability*float64(changes) +
		sv.weights.Spread*spread/10.0

	if short := sv.requirementShortfall(); short > 0 {
		obj += hardPenalty * float64(short)
	}
	return obj
}

func (sv *search) metrics() Metrics {
	var cost float64
	hours := make(map[string]float64, len(sv.states))
	for id, st := range sv.states {
		h := float64(st.minutes) / 60.0
		hours[id] = h
		cost += h * st.emp.HourlyRate
	}
	honored, total := sv.preferenceScore()
	return Metrics{
		TotalCost:          math.Round(cost*100) / 100,
		FairnessStddev:     math.Round(stddev(hours)*100) / 100,
		PreferencesHonored: honored,
		PreferencesTotal:   total,
	}
}

// preferenceScore counts (assignment, applicable preference rule) pairs and
// how many of them the plan honors.
func (sv *search) preferenceScore() (honored, total int) {
	for _, st := range sv.states {
		if len(st.prefs) == 0 {
			continue
		}
		for _, s := range st.shifts {
			for _, p := range st.prefs {
				total++
				if preferenceMatches(p, s) {
					honored++
				}
			}
		}
	}
	return honored, total
}

func preferenceMatches(p *domain.PreferenceRule, s *domain.Shift) bool {
	if len(p.Days) > 0 {
		day := domain.WeekdayKey(s.Weekday())
		found := false
		for _, d := range p.Days {
			if d == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(p.Windows) > 0 {
		iv := s.Interval()
		found := false
		for _, w := range p.Windows {
			if w.Contains(iv) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(p.ShiftTypes) > 0 {
		found := false
		for _, t := range p.ShiftTypes {
			if t == s.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// stabilityChanges counts prior-plan assignments the current plan dropped.
func (sv *search) stabilityChanges() int {
	changes := 0
	for key := range sv.prior {
		if !sv.assigned[key] {
			changes++
		}
	}
	return changes
}

// requirementShortfall sums, over every requirement window and calendar date
// in the horizon, how many distinct employees the plan is short.
func (sv *search) requirementShortfall() int {
	if len(sv.requirements) == 0 {
		return 0
	}
	short := 0
	for _, date := range sv.dates {
		for _, req := range sv.requirements {
			have := sv.headcountIn(date, req)
			// Only enforce on dates where shifts overlap the window at
			// all; an empty day is a shift-supply problem, not a plan
			// defect.
			if sv.shiftsOverlapping(date, req.window) == 0 {
				continue
			}
			if have < req.minHeadcount {
				short += req.minHeadcount - have
			}
		}
	}
	return short
}

func (sv *search) headcountIn(date string, req requirementWindow) int {
	seen := map[string]bool{}
	for id, st := range sv.states {
		if req.qualification != nil && !st.emp.HasQualifications([]string{*req.qualification}) {
			continue
		}
		for _, s := range st.shifts {
			if dateKey(s) == date && s.Interval().Overlaps(req.window) {
				seen[id] = true
				break
			}
		}
	}
	return len(seen)
}

func (sv *search) shiftsOverlapping(date string, w domain.Interval) int {
	n := 0
	for i := range sv.shifts {
		s := &sv.shifts[i]
		if dateKey(s) == date && s.Interval().Overlaps(w) {
			n++
		}
	}
	return n
}

func stddev(values map[string]float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

func dateKey(s *domain.Shift) string {
	return s.Date.Format("2006-01-02")
}

func horizonDates(shifts []domain.Shift) []string {
	set := map[string]bool{}
	for i := range shifts {
		set[dateKey(&shifts[i])] = true
	}
	dates := make([]string, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}
