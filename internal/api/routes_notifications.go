package api

import (
	"github.com/gin-gonic/gin"

	"github.com/collegedesk/collegedesk/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, deps Deps) {
	h := handlers.NewNotificationHandler(deps.Notifications, deps.Hub)

	notifications := api.Group("/notifications")
	{
		notifications.GET("", h.List)
		notifications.GET("/stream", h.Stream)
		notifications.POST("/read-all", h.ReadAll)
		notifications.POST("/:id/read", h.MarkRead)
		notifications.DELETE("/:id", h.Delete)
	}
}
