package cache

import "github.com/rosterly/rosterd/internal/domain"

// Cached page shapes. Pages carry the cursor alongside the rows so a cached
// page serves the whole response.

type AssignmentPage struct {
	Assignments []domain.Assignment `json:"assignments"`
	NextCursor  string              `json:"next_cursor,omitempty"`
}

type NotificationPage struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
}
