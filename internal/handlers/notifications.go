package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/collegedesk/collegedesk/internal/realtime"
	"github.com/collegedesk/collegedesk/internal/services"
	"github.com/collegedesk/collegedesk/pkg/errors"
	"github.com/collegedesk/collegedesk/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for the notification store and
// the realtime stream.
type NotificationHandler struct {
	service *services.NotificationService
	hub     *realtime.Hub
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(service *services.NotificationService, hub *realtime.Hub) *NotificationHandler {
	return &NotificationHandler{service: service, hub: hub}
}

// List returns notifications for the authenticated recipient, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	recipient := currentUsername(c)
	if recipient == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	items, err := h.service.ListForRecipient(requestContext(c), services.ListNotificationsInput{
		Recipient:  recipient,
		Limit:      parseIntQuery(c, "limit", 50),
		Offset:     parseIntQuery(c, "offset", 0),
		UnreadOnly: c.Query("unread") == "true",
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// MarkRead flips one notification to read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	dto, err := h.service.MarkRead(requestContext(c), currentUsername(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// ReadAll deletes every unread notification for the recipient and reports the
// count. This is the portal's "mark all as read" action.
func (h *NotificationHandler) ReadAll(c *gin.Context) {
	removed, err := h.service.DeleteAllUnread(requestContext(c), currentUsername(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": removed})
}

// Delete removes one notification.
func (h *NotificationHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := h.service.Delete(requestContext(c), currentUsername(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Stream upgrades to a WebSocket joined to the caller's own room. The room is
// taken from the authenticated identity, never from the client.
func (h *NotificationHandler) Stream(c *gin.Context) {
	recipient := currentUsername(c)
	if recipient == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	h.hub.Serve(recipient, c.Writer, c.Request)
}
