package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/collegedesk/collegedesk/internal/services"
	"github.com/collegedesk/collegedesk/pkg/response"
)

// StatsHandler exposes dashboard aggregates. DDPU only.
type StatsHandler struct {
	service *services.StatsService
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(service *services.StatsService) *StatsHandler {
	return &StatsHandler{service: service}
}

// Overview returns the portal-wide counters.
func (h *StatsHandler) Overview(c *gin.Context) {
	overview, err := h.service.Overview(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, overview)
}

// ResponseRates returns per-query response progress for recent queries.
func (h *StatsHandler) ResponseRates(c *gin.Context) {
	rates, err := h.service.ResponseRates(requestContext(c), parseIntQuery(c, "limit", 20))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rates)
}
