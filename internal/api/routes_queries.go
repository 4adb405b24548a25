package api

import (
	"github.com/gin-gonic/gin"

	"github.com/collegedesk/collegedesk/internal/handlers"
)

func registerQueryRoutes(api *gin.RouterGroup, deps Deps, requireDDPU, requireCollege gin.HandlerFunc) {
	h := handlers.NewQueryHandler(deps.Queries)

	queries := api.Group("/queries")
	{
		queries.GET("", h.List)
		queries.GET("/:id", h.Get)
		queries.POST("", requireDDPU, h.Create)
		queries.DELETE("/:id", requireDDPU, h.Delete)
		queries.POST("/:id/respond", requireCollege, h.Respond)
		queries.POST("/:id/open", requireCollege, h.OpenLink)
	}
}
