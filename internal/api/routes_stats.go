package api

import (
	"github.com/gin-gonic/gin"

	"github.com/collegedesk/collegedesk/internal/handlers"
)

func registerStatsRoutes(api *gin.RouterGroup, deps Deps, requireDDPU gin.HandlerFunc) {
	if deps.Stats == nil {
		return
	}
	h := handlers.NewStatsHandler(deps.Stats)

	stats := api.Group("/stats", requireDDPU)
	{
		stats.GET("/overview", h.Overview)
		stats.GET("/response-rates", h.ResponseRates)
	}
}
