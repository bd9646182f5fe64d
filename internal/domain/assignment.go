package domain

import "time"

type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentConfirmed AssignmentStatus = "confirmed"
	AssignmentDeclined  AssignmentStatus = "declined"
	AssignmentCancelled AssignmentStatus = "cancelled"
	AssignmentCompleted AssignmentStatus = "completed"
)

func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentAssigned, AssignmentPending, AssignmentConfirmed,
		AssignmentDeclined, AssignmentCancelled, AssignmentCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentDeclined || s == AssignmentCancelled || s == AssignmentCompleted
}

// Confirmable reports whether the employee response window applies.
func (s AssignmentStatus) Confirmable() bool {
	return s == AssignmentAssigned || s == AssignmentPending
}

// Assignment binds one employee to one shift within one schedule.
// (schedule_id, employee_id, shift_id) is unique.
type Assignment struct {
	ID         string
	ScheduleID string
	EmployeeID string
	ShiftID    string

	Status   AssignmentStatus
	Priority int
	Notes    *string

	AssignedBy        string
	AssignedAt        time.Time
	ConfirmedAt       *time.Time
	DeclineReason     *string
	ConflictsResolved bool
	AutoAssigned      bool

	CreatedAt time.Time
	UpdatedAt time.Time

	// Joined fields, populated by eager loads.
	Employee *Employee
	Shift    *Shift
}

// CanTransition reports whether the assignment state machine allows
// from -> to.
func CanTransition(from, to AssignmentStatus) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case AssignmentConfirmed:
		return from.Confirmable()
	case AssignmentDeclined:
		return from.Confirmable()
	case AssignmentCancelled:
		return from == AssignmentAssigned || from == AssignmentPending || from == AssignmentConfirmed
	case AssignmentCompleted:
		return from == AssignmentConfirmed
	case AssignmentPending:
		return from == AssignmentAssigned
	}
	return false
}
