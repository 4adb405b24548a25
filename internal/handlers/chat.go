package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/collegedesk/collegedesk/internal/models"
	"github.com/collegedesk/collegedesk/internal/services"
	appErrors "github.com/collegedesk/collegedesk/pkg/errors"
	"github.com/collegedesk/collegedesk/pkg/response"
)

// ChatHandler exposes HTTP endpoints for DDPU-to-college conversations.
type ChatHandler struct {
	service *services.ChatService
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(service *services.ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

type sendChatRequest struct {
	College string `json:"college"`
	Body    string `json:"body" validate:"required,max=4000"`
}

// Send posts a message into a conversation. Colleges always write into their
// own thread; the regulator must name the college.
func (h *ChatHandler) Send(c *gin.Context) {
	var req sendChatRequest
	if !bindAndValidate(c, &req) {
		return
	}

	college := req.College
	if currentRole(c) == models.RoleCollege {
		college = currentUsername(c)
	} else if college == "" {
		response.Error(c, appErrors.NewBadRequest("college is required"))
		return
	}

	msg, err := h.service.Send(requestContext(c), services.SendChatInput{
		College:    college,
		SenderRole: currentRole(c),
		Body:       req.Body,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, msg)
}

// History returns a conversation in chronological order.
func (h *ChatHandler) History(c *gin.Context) {
	college := roleOrCollege(c, "college")
	if college == "" {
		response.Error(c, appErrors.NewBadRequest("college is required"))
		return
	}

	messages, err := h.service.History(requestContext(c), college, parseIntQuery(c, "limit", 100))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, messages)
}

// Conversations lists every college with an active thread. DDPU only.
func (h *ChatHandler) Conversations(c *gin.Context) {
	colleges, err := h.service.Conversations(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, colleges)
}
