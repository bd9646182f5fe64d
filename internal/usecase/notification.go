package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rosterly/rosterd/internal/cache"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/repository"
)

type NotificationUsecase struct {
	notifications repository.NotificationRepository
	caches        *cache.Caches
	logger        *slog.Logger
}

func NewNotificationUsecase(notifications repository.NotificationRepository, caches *cache.Caches, logger *slog.Logger) *NotificationUsecase {
	return &NotificationUsecase{
		notifications: notifications,
		caches:        caches,
		logger:        logger.With("component", "notification"),
	}
}

// List returns the actor's own notifications. The first page of the unread
// view is cached; deeper pages go straight to the store.
func (u *NotificationUsecase) List(ctx context.Context, actor Actor, unreadOnly bool, offset, limit int) (cache.NotificationPage, error) {
	limit = clampLimit(limit)
	if offset == 0 && unreadOnly {
		return u.caches.Notifications.Get(ctx, actor.ID+"|unread", func(ctx context.Context) (cache.NotificationPage, error) {
			return u.load(ctx, actor.ID, true, 0, limit)
		})
	}
	return u.load(ctx, actor.ID, unreadOnly, offset, limit)
}

func (u *NotificationUsecase) MarkRead(ctx context.Context, actor Actor, id string) error {
	// Scoped to the recipient; marking someone else's row is a not-found.
	if err := u.notifications.MarkRead(ctx, id, actor.ID); err != nil {
		return err
	}
	u.caches.Notifications.InvalidatePattern(ctx, actor.ID+"*")
	return nil
}

func (u *NotificationUsecase) UnreadCount(ctx context.Context, actor Actor) (int, error) {
	return u.notifications.UnreadCount(ctx, actor.ID)
}

func (u *NotificationUsecase) load(ctx context.Context, recipientID string, unreadOnly bool, offset, limit int) (cache.NotificationPage, error) {
	rows, err := u.notifications.ListByRecipient(ctx, recipientID, unreadOnly, offset, limit)
	if err != nil {
		return cache.NotificationPage{}, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := u.notifications.UnreadCount(ctx, recipientID)
	if err != nil {
		return cache.NotificationPage{}, fmt.Errorf("count unread: %w", err)
	}
	page := cache.NotificationPage{
		Notifications: make([]domain.Notification, len(rows)),
		UnreadCount:   unread,
	}
	for i, n := range rows {
		page.Notifications[i] = *n
	}
	return page, nil
}
