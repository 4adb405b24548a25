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

// PublishCircularInput defines attributes for publishing a circular.
type PublishCircularInput struct {
	Title         string
	Body          string
	AttachmentURL string
	IssuedBy      string
}

// CircularService publishes DDPU circulars and fans them out to every college.
type CircularService struct {
	db            *gorm.DB
	notifications *NotificationService
	users         *UserService
	hub           *realtime.Hub
	courier       *mail.Courier
	log           *zap.Logger
}

// NewCircularService constructs a CircularService.
func NewCircularService(db *gorm.DB, notifications *NotificationService, users *UserService, hub *realtime.Hub, courier *mail.Courier) (*CircularService, error) {
	if db == nil {
		return nil, errors.New("circular service: db is required")
	}
	if notifications == nil {
		return nil, errors.New("circular service: notification service is required")
	}
	if users == nil {
		return nil, errors.New("circular service: user service is required")
	}
	return &CircularService{
		db:            db,
		notifications: notifications,
		users:         users,
		hub:           hub,
		courier:       courier,
		log:           logger.WithModule("circulars"),
	}, nil
}

// Publish persists the circular and then notifies every college. The circular
// stays saved even when a downstream notification or email fails.
func (s *CircularService) Publish(ctx context.Context, input PublishCircularInput) (*models.Circular, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("title is required")
	}

	circular := models.Circular{
		Title:         title,
		Body:          strings.TrimSpace(input.Body),
		AttachmentURL: strings.TrimSpace(input.AttachmentURL),
		IssuedBy:      strings.TrimSpace(input.IssuedBy),
	}

	if err := s.db.WithContext(ctx).Create(&circular).Error; err != nil {
		return nil, fmt.Errorf("circular service: create circular: %w", err)
	}

	s.fanOut(ctx, &circular)
	return &circular, nil
}

func (s *CircularService) fanOut(ctx context.Context, circular *models.Circular) {
	colleges, err := s.users.ListColleges(ctx)
	if err != nil {
		s.log.Warn("listing colleges failed", zap.String("circular_id", circular.ID), zap.Error(err))
		return
	}

	rooms := make([]string, 0, len(colleges))
	recipients := make([]emailRecipient, 0, len(colleges))
	for _, college := range colleges {
		rooms = append(rooms, college.Username)

		if _, err := s.notifications.Create(ctx, CreateNotificationInput{
			Recipient: college.Username,
			Kind:      models.NotificationKindCircular,
			Title:     circular.Title,
			Message:   fmt.Sprintf("A new circular %q has been published.", circular.Title),
			Link:      circular.AttachmentURL,
			Metadata:  map[string]any{"circular_id": circular.ID},
		}); err != nil {
			s.log.Warn("circular notification failed",
				zap.String("circular_id", circular.ID),
				zap.String("college", college.Username), zap.Error(err))
		}

		recipients = append(recipients, emailRecipient{
			College: college.Username,
			Address: college.Email,
			Data: mail.TemplateData{
				College: college.Username,
				Subject: circular.Title,
			},
		})
	}

	if s.hub != nil {
		s.hub.EmitToRooms(rooms, realtime.Message{
			Event: realtime.EventCircularPublished,
			Data: map[string]any{
				"circular_id": circular.ID,
				"title":       circular.Title,
			},
		})
	}

	if err := sendFanout(ctx, s.courier, s.log, mail.TemplateNewCircular, recipients); err != nil {
		s.log.Warn("circular email fan-out incomplete", zap.String("circular_id", circular.ID), zap.Error(err))
	}
}

// List returns circulars newest-first.
func (s *CircularService) List(ctx context.Context, limit int) ([]models.Circular, error) {
	ctx = ensureContext(ctx)

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var circulars []models.Circular
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&circulars).Error; err != nil {
		return nil, fmt.Errorf("circular service: list circulars: %w", err)
	}
	return circulars, nil
}

// Get loads one circular by id.
func (s *CircularService) Get(ctx context.Context, id string) (*models.Circular, error) {
	ctx = ensureContext(ctx)

	var circular models.Circular
	if err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).First(&circular).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("circular service: load circular: %w", err)
	}
	return &circular, nil
}

// Delete removes a circular.
func (s *CircularService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).Delete(&models.Circular{})
	if result.Error != nil {
		return fmt.Errorf("circular service: delete circular: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
