package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rosterly/rosterd/internal/transport/http/middleware"
	"github.com/rosterly/rosterd/internal/usecase"
)

type NotificationHandler struct {
	notifications *usecase.NotificationUsecase
	errs          Errors
	logger        *slog.Logger
}

func NewNotificationHandler(notifications *usecase.NotificationUsecase, errs Errors, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, errs: errs, logger: logger.With("component", "notification_handler")}
}

func (h *NotificationHandler) List(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"
	page, err := h.notifications.List(c.Request.Context(), middleware.Actor(c),
		unreadOnly, queryInt(c, "offset", 0), queryInt(c, "limit", 0))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": renderNotifications(page.Notifications),
		"unread_count":  page.UnreadCount,
	})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.notifications.MarkRead(c.Request.Context(), middleware.Actor(c), c.Param("id")); err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.notifications.UnreadCount(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}
