package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/collegedesk/collegedesk/internal/services"
	"github.com/collegedesk/collegedesk/pkg/response"
)

// AttendanceHandler exposes HTTP endpoints for the daily attendance guard.
type AttendanceHandler struct {
	service *services.AttendanceService
}

// NewAttendanceHandler constructs an AttendanceHandler.
func NewAttendanceHandler(service *services.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// Mark records today's attendance for the calling college.
func (h *AttendanceHandler) Mark(c *gin.Context) {
	entry, err := h.service.Mark(requestContext(c), currentUsername(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, entry)
}

// Status reports whether the calling college has marked today and whether the
// window is currently open.
func (h *AttendanceHandler) Status(c *gin.Context) {
	marked, windowOpen, err := h.service.StatusToday(requestContext(c), currentUsername(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"marked":      marked,
		"window_open": windowOpen,
	})
}

// ListForDay returns every entry for one day. DDPU only. Defaults to today.
func (h *AttendanceHandler) ListForDay(c *gin.Context) {
	day := c.Query("day")
	if day == "" {
		day = h.service.Window().DayKey(time.Now())
	}

	entries, err := h.service.ListForDay(requestContext(c), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"day": day, "entries": entries})
}

// History returns recent attendance entries for one college.
func (h *AttendanceHandler) History(c *gin.Context) {
	college := roleOrCollege(c, "college")
	entries, err := h.service.HistoryForCollege(requestContext(c), college, parseIntQuery(c, "limit", 30))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, entries)
}
