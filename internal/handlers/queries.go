package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/collegedesk/collegedesk/internal/models"
	"github.com/collegedesk/collegedesk/internal/services"
	appErrors "github.com/collegedesk/collegedesk/pkg/errors"
	"github.com/collegedesk/collegedesk/pkg/response"
)

// QueryHandler exposes HTTP endpoints for queries and responses.
type QueryHandler struct {
	service *services.QueryService
}

// NewQueryHandler constructs a QueryHandler.
func NewQueryHandler(service *services.QueryService) *QueryHandler {
	return &QueryHandler{service: service}
}

type createQueryRequest struct {
	Kind        string   `json:"kind" validate:"required,oneof=file link"`
	Subject     string   `json:"subject" validate:"required,max=255"`
	Description string   `json:"description" validate:"max=4000"`
	DueDate     string   `json:"due_date" validate:"required"`
	FileURL     string   `json:"file_url"`
	Link        string   `json:"link"`
	Targets     []string `json:"targets" validate:"required,min=1"`
}

// Create issues a new query to the target colleges. DDPU only.
func (h *QueryHandler) Create(c *gin.Context) {
	var req createQueryRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("due_date must be an RFC 3339 timestamp or YYYY-MM-DD date"))
		return
	}

	dto, err := h.service.Create(requestContext(c), services.CreateQueryInput{
		Kind:        req.Kind,
		Subject:     req.Subject,
		Description: req.Description,
		DueDate:     dueDate,
		FileURL:     req.FileURL,
		Link:        req.Link,
		IssuedBy:    currentUsername(c),
		Targets:     req.Targets,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, dto)
}

// List returns queries. Colleges see only queries targeting them.
func (h *QueryHandler) List(c *gin.Context) {
	input := services.ListQueriesInput{Kind: c.Query("kind")}
	if currentRole(c) == models.RoleCollege {
		input.College = currentUsername(c)
	}

	items, err := h.service.List(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Get returns one query with its responses.
func (h *QueryHandler) Get(c *gin.Context) {
	dto, err := h.service.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

type respondRequest struct {
	FileURL string `json:"file_url" validate:"required"`
}

// Respond records the calling college's file response.
func (h *QueryHandler) Respond(c *gin.Context) {
	var req respondRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.service.Respond(requestContext(c), services.RespondInput{
		QueryID: c.Param("id"),
		College: currentUsername(c),
		FileURL: req.FileURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

// OpenLink marks a link query as responded for the calling college and
// returns the external link.
func (h *QueryHandler) OpenLink(c *gin.Context) {
	link, err := h.service.OpenLink(requestContext(c), c.Param("id"), currentUsername(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"link": link})
}

// Delete removes a query with its responses. DDPU only.
func (h *QueryHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func parseDueDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	// Bare dates are interpreted as end of that UTC day.
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return t.Add(24*time.Hour - time.Second), nil
}
