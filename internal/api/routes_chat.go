package api

import (
	"github.com/gin-gonic/gin"

	"github.com/collegedesk/collegedesk/internal/handlers"
)

func registerChatRoutes(api *gin.RouterGroup, deps Deps, requireDDPU gin.HandlerFunc) {
	h := handlers.NewChatHandler(deps.Chat)

	chat := api.Group("/chat")
	{
		chat.POST("/messages", h.Send)
		chat.GET("/messages", h.History)
		chat.GET("/conversations", requireDDPU, h.Conversations)
	}
}
