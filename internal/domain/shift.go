package domain

import "time"

type ShiftType string

const (
	ShiftMorning    ShiftType = "morning"
	ShiftEvening    ShiftType = "evening"
	ShiftNight      ShiftType = "night"
	ShiftManagement ShiftType = "management"
	ShiftEmergency  ShiftType = "emergency"
)

func (t ShiftType) Valid() bool {
	switch t {
	case ShiftMorning, ShiftEvening, ShiftNight, ShiftManagement, ShiftEmergency:
		return true
	}
	return false
}

type Shift struct {
	ID           string
	Date         time.Time // calendar date, midnight UTC
	Start        Clock
	End          Clock
	Type         ShiftType
	DepartmentID *string
	RequiredStaff int      // >= 1
	Priority     int       // [1, 10]
	Requirements []string  // qualification tags employees must cover
	Overnight    bool      // stored, but intervals are treated as single-day
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s *Shift) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

func (s *Shift) Duration() time.Duration {
	return s.Interval().Duration()
}

func (s *Shift) Weekday() time.Weekday {
	return s.Date.Weekday()
}

// Overlaps reports whether two shifts share a date and their [start,end)
// windows intersect.
func (s *Shift) Overlaps(other *Shift) bool {
	if !sameDate(s.Date, other.Date) {
		return false
	}
	return s.Interval().Overlaps(other.Interval())
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
