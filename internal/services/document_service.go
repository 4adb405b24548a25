package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/collegedesk/collegedesk/internal/models"
	"github.com/collegedesk/collegedesk/internal/realtime"
	apperrors "github.com/collegedesk/collegedesk/pkg/errors"
	"github.com/collegedesk/collegedesk/pkg/logger"
	"github.com/collegedesk/collegedesk/pkg/mail"
)

// CreateCategoryInput defines a document request issued to all colleges.
type CreateCategoryInput struct {
	Name        string
	Description string
	IssuedBy    string
}

// UploadDocumentInput captures one college submission against a category.
type UploadDocumentInput struct {
	CategoryID string
	College    string
	FileURL    string
}

// DocumentService manages compliance document requests and uploads.
type DocumentService struct {
	db            *gorm.DB
	notifications *NotificationService
	users         *UserService
	hub           *realtime.Hub
	courier       *mail.Courier
	log           *zap.Logger
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(db *gorm.DB, notifications *NotificationService, users *UserService, hub *realtime.Hub, courier *mail.Courier) (*DocumentService, error) {
	if db == nil {
		return nil, errors.New("document service: db is required")
	}
	if notifications == nil {
		return nil, errors.New("document service: notification service is required")
	}
	if users == nil {
		return nil, errors.New("document service: user service is required")
	}
	return &DocumentService{
		db:            db,
		notifications: notifications,
		users:         users,
		hub:           hub,
		courier:       courier,
		log:           logger.WithModule("documents"),
	}, nil
}

// CreateCategory persists the document request and notifies every college.
func (s *DocumentService) CreateCategory(ctx context.Context, input CreateCategoryInput) (*models.DocumentCategory, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required")
	}

	category := models.DocumentCategory{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		IssuedBy:    strings.TrimSpace(input.IssuedBy),
	}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, fmt.Errorf("document service: create category: %w", err)
	}

	colleges, err := s.users.ListColleges(ctx)
	if err != nil {
		s.log.Warn("listing colleges failed", zap.String("category_id", category.ID), zap.Error(err))
		return &category, nil
	}

	recipients := make([]emailRecipient, 0, len(colleges))
	for _, college := range colleges {
		if _, err := s.notifications.Create(ctx, CreateNotificationInput{
			Recipient: college.Username,
			Kind:      models.NotificationKindDocument,
			Title:     fmt.Sprintf("Documents requested: %s", category.Name),
			Message:   fmt.Sprintf("The DDPU office has requested documents under %q.", category.Name),
			Metadata:  map[string]any{"category_id": category.ID},
		}); err != nil {
			s.log.Warn("document notification failed",
				zap.String("category_id", category.ID),
				zap.String("college", college.Username), zap.Error(err))
		}

		recipients = append(recipients, emailRecipient{
			College: college.Username,
			Address: college.Email,
			Data: mail.TemplateData{
				College: college.Username,
				Subject: category.Name,
			},
		})
	}

	if err := sendFanout(ctx, s.courier, s.log, mail.TemplateNewDocumentCategory, recipients); err != nil {
		s.log.Warn("document email fan-out incomplete", zap.String("category_id", category.ID), zap.Error(err))
	}

	return &category, nil
}

// Upload records a college submission. Re-uploading replaces the previous file.
func (s *DocumentService) Upload(ctx context.Context, input UploadDocumentInput) (*models.DocumentUpload, error) {
	ctx = ensureContext(ctx)

	college := strings.TrimSpace(input.College)
	if college == "" {
		return nil, apperrors.NewBadRequest("college is required")
	}
	fileURL := strings.TrimSpace(input.FileURL)
	if fileURL == "" {
		return nil, apperrors.NewBadRequest("file url is required")
	}

	var category models.DocumentCategory
	if err := s.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(input.CategoryID)).
		First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("document service: load category: %w", err)
	}

	var upload models.DocumentUpload
	err := s.db.WithContext(ctx).
		Where("category_id = ? AND college = ?", category.ID, college).
		First(&upload).Error
	switch {
	case err == nil:
		if err := s.db.WithContext(ctx).Model(&upload).Update("file_url", fileURL).Error; err != nil {
			return nil, fmt.Errorf("document service: replace upload: %w", err)
		}
		upload.FileURL = fileURL
	case errors.Is(err, gorm.ErrRecordNotFound):
		upload = models.DocumentUpload{
			CategoryID: category.ID,
			College:    college,
			FileURL:    fileURL,
		}
		if err := s.db.WithContext(ctx).Create(&upload).Error; err != nil {
			return nil, fmt.Errorf("document service: create upload: %w", err)
		}
	default:
		return nil, fmt.Errorf("document service: load upload: %w", err)
	}

	if _, err := s.notifications.Create(ctx, CreateNotificationInput{
		Recipient: models.RoleDDPU,
		Kind:      models.NotificationKindDocument,
		Title:     fmt.Sprintf("%s uploaded documents for %s", college, category.Name),
		Message:   fmt.Sprintf("%s has submitted a file under %q.", college, category.Name),
		Metadata:  map[string]any{"category_id": category.ID, "college": college},
	}); err != nil {
		s.log.Warn("upload notification failed",
			zap.String("category_id", category.ID), zap.String("college", college), zap.Error(err))
	}

	return &upload, nil
}

// RemindPending emails every college that has not uploaded for the category.
func (s *DocumentService) RemindPending(ctx context.Context, categoryID string) (int, error) {
	ctx = ensureContext(ctx)

	var category models.DocumentCategory
	if err := s.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(categoryID)).
		First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.ErrNotFound
		}
		return 0, fmt.Errorf("document service: load category: %w", err)
	}

	var uploaded []string
	if err := s.db.WithContext(ctx).Model(&models.DocumentUpload{}).
		Where("category_id = ?", category.ID).
		Pluck("college", &uploaded).Error; err != nil {
		return 0, fmt.Errorf("document service: list uploads: %w", err)
	}
	done := make(map[string]struct{}, len(uploaded))
	for _, college := range uploaded {
		done[college] = struct{}{}
	}

	colleges, err := s.users.ListColleges(ctx)
	if err != nil {
		return 0, fmt.Errorf("document service: list colleges: %w", err)
	}

	var recipients []emailRecipient
	for _, college := range colleges {
		if _, ok := done[college.Username]; ok {
			continue
		}
		recipients = append(recipients, emailRecipient{
			College: college.Username,
			Address: college.Email,
			Data: mail.TemplateData{
				College: college.Username,
				Subject: category.Name,
			},
		})
	}

	if err := sendFanout(ctx, s.courier, s.log, mail.TemplateDocumentReminder, recipients); err != nil {
		s.log.Warn("document reminder fan-out incomplete", zap.String("category_id", category.ID), zap.Error(err))
	}

	return len(recipients), nil
}

// ListCategories returns document requests newest-first.
func (s *DocumentService) ListCategories(ctx context.Context) ([]models.DocumentCategory, error) {
	ctx = ensureContext(ctx)

	var categories []models.DocumentCategory
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("document service: list categories: %w", err)
	}
	return categories, nil
}

// ListUploads returns submissions for a category.
func (s *DocumentService) ListUploads(ctx context.Context, categoryID string) ([]models.DocumentUpload, error) {
	ctx = ensureContext(ctx)

	var uploads []models.DocumentUpload
	if err := s.db.WithContext(ctx).
		Where("category_id = ?", strings.TrimSpace(categoryID)).
		Order("created_at ASC").
		Find(&uploads).Error; err != nil {
		return nil, fmt.Errorf("document service: list uploads: %w", err)
	}
	return uploads, nil
}
