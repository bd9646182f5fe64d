package domain

import "time"

type Department struct {
	ID        string
	Name      string
	ParentID  *string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Children is populated by hierarchy queries, not stored.
	Children []*Department
}
