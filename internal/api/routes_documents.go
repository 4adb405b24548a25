package api

import (
	"github.com/gin-gonic/gin"

	"github.com/collegedesk/collegedesk/internal/handlers"
)

func registerDocumentRoutes(api *gin.RouterGroup, deps Deps, requireDDPU, requireCollege gin.HandlerFunc) {
	h := handlers.NewDocumentHandler(deps.Documents)

	documents := api.Group("/documents")
	{
		documents.GET("/categories", h.ListCategories)
		documents.POST("/categories", requireDDPU, h.CreateCategory)
		documents.GET("/categories/:id/uploads", requireDDPU, h.ListUploads)
		documents.POST("/categories/:id/remind", requireDDPU, h.RemindPending)
		documents.POST("/categories/:id/upload", requireCollege, h.Upload)
	}
}
