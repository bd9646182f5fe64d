package domain

import "time"

type ScheduleStatus string

const (
	ScheduleDraft     ScheduleStatus = "draft"
	SchedulePending   ScheduleStatus = "pending"
	ScheduleApproved  ScheduleStatus = "approved"
	SchedulePublished ScheduleStatus = "published"
	ScheduleArchived  ScheduleStatus = "archived"
)

func (s ScheduleStatus) Valid() bool {
	switch s {
	case ScheduleDraft, SchedulePending, ScheduleApproved, SchedulePublished, ScheduleArchived:
		return true
	}
	return false
}

// Editable reports whether assignment rows may still be created or removed.
func (s ScheduleStatus) Editable() bool {
	return s == ScheduleDraft || s == SchedulePending
}

type Schedule struct {
	ID         string
	Title      string
	WeekStart  time.Time
	WeekEnd    time.Time // week_end - week_start <= 7 days
	Status     ScheduleStatus
	CreatedBy  string
	ApprovedBy *string
	Version    int // monotonic, bumped on every write
	ParentID   *string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Assignments is populated by eager loads, not stored on the row.
	Assignments []*Assignment
}
