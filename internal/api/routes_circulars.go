package api

import (
	"github.com/gin-gonic/gin"

	"github.com/collegedesk/collegedesk/internal/handlers"
)

func registerCircularRoutes(api *gin.RouterGroup, deps Deps, requireDDPU gin.HandlerFunc) {
	h := handlers.NewCircularHandler(deps.Circulars)

	circulars := api.Group("/circulars")
	{
		circulars.GET("", h.List)
		circulars.GET("/:id", h.Get)
		circulars.POST("", requireDDPU, h.Publish)
		circulars.DELETE("/:id", requireDDPU, h.Delete)
	}
}
