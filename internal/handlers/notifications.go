package handlers

import (
	goerrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pawhaven/pawhaven/internal/middleware"
	"github.com/pawhaven/pawhaven/internal/services"
	"github.com/pawhaven/pawhaven/pkg/errors"
	"github.com/pawhaven/pawhaven/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for notifications and the bell.
type NotificationHandler struct {
	notifications *services.NotificationService
	actions       *services.ActionService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(notifications *services.NotificationService, actions *services.ActionService) (*NotificationHandler, error) {
	if notifications == nil {
		return nil, goerrors.New("notification handler: notification service is required")
	}
	if actions == nil {
		return nil, goerrors.New("notification handler: action service is required")
	}
	return &NotificationHandler{
		notifications: notifications,
		actions:       actions,
	}, nil
}

// List returns the caller's notifications without channel filtering.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	items, err := h.notifications.ListForUser(requestContext(c), services.ListNotificationsInput{
		UserID: userID,
		Limit:  parseIntQuery(c, "limit", 25),
		Offset: parseIntQuery(c, "offset", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// MarkAsRead marks every unread notification for the caller as read.
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.notifications.MarkAllRead(requestContext(c), userID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Unified returns the bell view: unread count plus in-app rows, newest first.
func (h *NotificationHandler) Unified(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	bell, err := h.notifications.UnifiedBell(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, bell)
}

// MarkAllRead marks unread in-app rows as read, leaving email rows untouched.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.notifications.MarkAllBellRead(requestContext(c), userID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// MarkRead marks a single notification owned by the caller as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	dto, err := h.notifications.MarkRead(requestContext(c), userID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// ExecuteAction runs an embedded notification action.
func (h *NotificationHandler) ExecuteAction(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	result, err := h.actions.Execute(requestContext(c), services.ExecuteActionInput{
		NotificationID: strings.TrimSpace(c.Param("id")),
		ActionName:     strings.TrimSpace(c.Param("action")),
		ActingUserID:   userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}
