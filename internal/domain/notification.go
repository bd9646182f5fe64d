package domain

import "time"

type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

type Notification struct {
	ID          string
	RecipientID string
	Category    string
	Priority    NotificationPriority
	Title       string
	Body        string
	IsRead      bool
	ActionURL   *string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
}
