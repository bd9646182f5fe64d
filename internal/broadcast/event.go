// Package broadcast pushes domain events to connected realtime clients over
// websockets. Delivery is at-least-once with per-topic monotonic sequence
// numbers; clients deduplicate on event_id and resync when they fall behind.
package broadcast

import "time"

// Event types.
const (
	EventAssignmentCreated   = "assignment.created"
	EventAssignmentUpdated   = "assignment.updated"
	EventAssignmentDeleted   = "assignment.deleted"
	EventAssignmentConfirmed = "assignment.confirmed"
	EventAssignmentDeclined  = "assignment.declined"
	EventSchedulePublished   = "schedule.published"
	EventScheduleArchived    = "schedule.archived"
	EventNotificationCreated = "notification.created"
	EventGenerateProgress    = "schedule.generate.progress"
	EventPresence            = "presence"
	EventResyncRequired      = "resync_required"
)

// Envelope is the wire shape of one pushed event.
type Envelope struct {
	EventID string    `json:"event_id"`
	Topic   string    `json:"topic"`
	Seq     uint64    `json:"seq"`
	Type    string    `json:"type"`
	Payload any       `json:"payload,omitempty"`
	TS      time.Time `json:"ts"`
}

// Topic name builders. Assignments fan out under their schedule.
func ScheduleTopic(scheduleID string) string { return "schedule:" + scheduleID }
func EmployeeTopic(employeeID string) string { return "employee:" + employeeID }
func PresenceTopic(scheduleID string) string { return "presence:" + scheduleID }

// frame is a client -> server control message.
type frame struct {
	Op     string   `json:"op"` // subscribe | unsubscribe | ping | presence
	Topics []string `json:"topics,omitempty"`
	// LastSeq maps topic to the last sequence the client saw, for replay on
	// reconnect.
	LastSeq map[string]uint64 `json:"last_seq,omitempty"`
	Topic   string            `json:"topic,omitempty"`
	State   string            `json:"state,omitempty"` // typing | editing | idle
}
