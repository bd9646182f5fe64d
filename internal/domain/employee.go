package domain

import (
	"time"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleSupervisor Role = "supervisor"
	RoleScheduler  Role = "scheduler"
	RoleEmployee   Role = "employee"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleSupervisor, RoleScheduler, RoleEmployee:
		return true
	}
	return false
}

// DayWindow is one weekday's availability window.
type DayWindow struct {
	Available bool  `json:"available"`
	Start     Clock `json:"start"`
	End       Clock `json:"end"`
}

// Availability maps lowercase weekday names to windows. Stored as JSONB.
type Availability map[string]DayWindow

// For looks up the window for a weekday. Missing days count as unavailable.
func (a Availability) For(d time.Weekday) (DayWindow, bool) {
	w, ok := a[WeekdayKey(d)]
	return w, ok
}

// Allows reports whether the whole [start,end) window on the given weekday
// falls inside the employee's availability.
func (a Availability) Allows(d time.Weekday, iv Interval) bool {
	w, ok := a.For(d)
	if !ok || !w.Available {
		return false
	}
	return Interval{Start: w.Start, End: w.End}.Contains(iv)
}

const (
	MaxQualifications = 20
	MaxHourlyRate     = 1000.0
	MaxWeeklyHours    = 168
)

type Employee struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	DepartmentID *string

	FirstName string
	LastName  string
	Phone     *string
	HireDate  *time.Time

	HourlyRate      float64 // [0, 1000], 2-decimal
	MaxHoursPerWeek int     // [1, 168]

	Qualifications []string
	Availability   Availability

	IsActive            bool
	EmailVerified       bool
	AccountLocked       bool
	FailedLoginAttempts int
	PasswordMustChange  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e *Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

// HasQualifications reports whether the employee covers every required tag.
func (e *Employee) HasQualifications(required []string) bool {
	for _, req := range required {
		found := false
		for _, q := range e.Qualifications {
			if q == req {
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

// PasswordHistoryDepth is how many prior hashes are retained for the reuse
// check.
const PasswordHistoryDepth = 5

// HistoryEntry is one immutable audit row for a role, status or department
// change.
type HistoryEntry struct {
	ID          string
	EmployeeID  string
	Field       string // "role", "status", "department"
	OldValue    string
	NewValue    string
	ChangedByID string
	Reason      *string
	ChangedAt   time.Time
}
