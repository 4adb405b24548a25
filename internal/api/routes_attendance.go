package api

import (
	"github.com/gin-gonic/gin"

	"github.com/collegedesk/collegedesk/internal/handlers"
)

func registerAttendanceRoutes(api *gin.RouterGroup, deps Deps, requireDDPU, requireCollege gin.HandlerFunc) {
	h := handlers.NewAttendanceHandler(deps.Attendance)

	attendance := api.Group("/attendance")
	{
		attendance.POST("", requireCollege, h.Mark)
		attendance.GET("/status", requireCollege, h.Status)
		attendance.GET("/day", requireDDPU, h.ListForDay)
		attendance.GET("/history", h.History)
	}
}
