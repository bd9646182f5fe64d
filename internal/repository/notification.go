package repository

import (
	"context"
	"time"

	"github.com/rosterly/rosterd/internal/domain"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, offset, limit int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
