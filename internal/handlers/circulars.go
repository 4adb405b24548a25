package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/collegedesk/collegedesk/internal/services"
	"github.com/collegedesk/collegedesk/pkg/response"
)

// CircularHandler exposes HTTP endpoints for circulars.
type CircularHandler struct {
	service *services.CircularService
}

// NewCircularHandler constructs a CircularHandler.
func NewCircularHandler(service *services.CircularService) *CircularHandler {
	return &CircularHandler{service: service}
}

type publishCircularRequest struct {
	Title         string `json:"title" validate:"required,max=255"`
	Body          string `json:"body" validate:"max=8000"`
	AttachmentURL string `json:"attachment_url"`
}

// Publish stores a circular and fans it out to every college. DDPU only.
func (h *CircularHandler) Publish(c *gin.Context) {
	var req publishCircularRequest
	if !bindAndValidate(c, &req) {
		return
	}

	circular, err := h.service.Publish(requestContext(c), services.PublishCircularInput{
		Title:         req.Title,
		Body:          req.Body,
		AttachmentURL: req.AttachmentURL,
		IssuedBy:      currentUsername(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, circular)
}

// List returns circulars, newest first.
func (h *CircularHandler) List(c *gin.Context) {
	items, err := h.service.List(requestContext(c), parseIntQuery(c, "limit", 50))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Get returns one circular.
func (h *CircularHandler) Get(c *gin.Context) {
	circular, err := h.service.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, circular)
}

// Delete removes a circular. DDPU only.
func (h *CircularHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
