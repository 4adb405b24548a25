package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/collegedesk/collegedesk/internal/services"
	"github.com/collegedesk/collegedesk/pkg/response"
)

// DocumentHandler exposes HTTP endpoints for compliance document collection.
type DocumentHandler struct {
	service *services.DocumentService
}

// NewDocumentHandler constructs a DocumentHandler.
func NewDocumentHandler(service *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

type createCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=4000"`
}

// CreateCategory opens a new document request and notifies every college.
// DDPU only.
func (h *DocumentHandler) CreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if !bindAndValidate(c, &req) {
		return
	}

	category, err := h.service.CreateCategory(requestContext(c), services.CreateCategoryInput{
		Name:        req.Name,
		Description: req.Description,
		IssuedBy:    currentUsername(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, category)
}

// ListCategories returns every document category.
func (h *DocumentHandler) ListCategories(c *gin.Context) {
	categories, err := h.service.ListCategories(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, categories)
}

type uploadDocumentRequest struct {
	FileURL string `json:"file_url" validate:"required"`
}

// Upload stores or replaces the calling college's submission for a category.
func (h *DocumentHandler) Upload(c *gin.Context) {
	var req uploadDocumentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	upload, err := h.service.Upload(requestContext(c), services.UploadDocumentInput{
		CategoryID: c.Param("id"),
		College:    currentUsername(c),
		FileURL:    req.FileURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, upload)
}

// ListUploads returns every submission against a category. DDPU only.
func (h *DocumentHandler) ListUploads(c *gin.Context) {
	uploads, err := h.service.ListUploads(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, uploads)
}

// RemindPending emails every college that has not yet uploaded. DDPU only.
func (h *DocumentHandler) RemindPending(c *gin.Context) {
	count, err := h.service.RemindPending(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reminded": count})
}
