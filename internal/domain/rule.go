package domain

import "time"

type RuleType string

const (
	RuleAvailability RuleType = "availability"
	RuleRequirement  RuleType = "requirement"
	RulePreference   RuleType = "preference"
	RuleRestriction  RuleType = "restriction"
)

func (t RuleType) Valid() bool {
	switch t {
	case RuleAvailability, RuleRequirement, RulePreference, RuleRestriction:
		return true
	}
	return false
}

// AvailabilityRule restricts (negation=true) or grants availability for an
// employee on a set of weekdays, optionally within a window.
type AvailabilityRule struct {
	Days     []string  `json:"days"` // lowercase weekday names
	Window   *Interval `json:"window,omitempty"`
	Negation bool      `json:"negation"`
}

// RequirementRule demands a minimum headcount during a time window,
// optionally holding a qualification.
type RequirementRule struct {
	Window        Interval `json:"window"`
	MinHeadcount  int      `json:"min_headcount"`
	Qualification *string  `json:"qualification,omitempty"`
}

// PreferenceRule records soft preferences the solver scores against.
type PreferenceRule struct {
	Days       []string    `json:"days,omitempty"`
	Windows    []Interval  `json:"windows,omitempty"`
	ShiftTypes []ShiftType `json:"shift_types,omitempty"`
}

// RestrictionRule caps weekly hours or demands minimum rest between shifts.
type RestrictionRule struct {
	MaxHoursPerWeek *int `json:"max_hours_per_week,omitempty"`
	MinRestHours    *int `json:"min_rest_hours,omitempty"`
}

// RulePayload is the tagged variant carried by a Rule; exactly one case is
// set, matching the rule type.
type RulePayload struct {
	Availability *AvailabilityRule `json:"availability,omitempty"`
	Requirement  *RequirementRule  `json:"requirement,omitempty"`
	Preference   *PreferenceRule   `json:"preference,omitempty"`
	Restriction  *RestrictionRule  `json:"restriction,omitempty"`
}

type Rule struct {
	ID         string
	Type       RuleType
	EmployeeID *string // nil = global
	Priority   int
	Active     bool
	SourceText string
	Payload    RulePayload
	Confidence float64
	CreatedAt  time.Time
}
