package usecase_test

import (
	"context"
	"testing"

	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/usecase"
)

func TestNotifications_ListAndMarkRead(t *testing.T) {
	repo := newFakeNotifications()
	uc := usecase.NewNotificationUsecase(repo, newTestCaches(), discardLogger())
	actor := usecase.Actor{ID: "emp-1", Role: domain.RoleEmployee}

	first, _ := repo.Create(context.Background(), &domain.Notification{
		RecipientID: "emp-1", Category: "assignment",
		Priority: domain.PriorityMedium, Title: "New shift assignment",
	})
	repo.Create(context.Background(), &domain.Notification{
		RecipientID: "emp-2", Category: "assignment",
		Priority: domain.PriorityMedium, Title: "Someone else's",
	})

	page, err := uc.List(context.Background(), actor, false, 0, 20)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Notifications) != 1 {
		t.Fatalf("notifications = %d, want 1 (scoped to recipient)", len(page.Notifications))
	}
	if page.UnreadCount != 1 {
		t.Errorf("unread = %d, want 1", page.UnreadCount)
	}

	if err := uc.MarkRead(context.Background(), actor, first.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	count, _ := uc.UnreadCount(context.Background(), actor)
	if count != 0 {
		t.Errorf("unread after read = %d, want 0", count)
	}
}

func TestMarkRead_OtherRecipientNotFound(t *testing.T) {
	repo := newFakeNotifications()
	uc := usecase.NewNotificationUsecase(repo, newTestCaches(), discardLogger())

	n, _ := repo.Create(context.Background(), &domain.Notification{
		RecipientID: "emp-1", Category: "assignment",
		Priority: domain.PriorityMedium, Title: "Private",
	})

	err := uc.MarkRead(context.Background(), usecase.Actor{ID: "emp-2", Role: domain.RoleEmployee}, n.ID)
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("want not found, got %v", err)
	}
}
