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
)

// SendChatInput defines one message in a DDPU/college conversation. College
// names the conversation; SenderRole says which side wrote it.
type SendChatInput struct {
	College    string
	SenderRole string
	Body       string
}

// ChatService stores the two-party conversations between the DDPU office and
// each college and pushes new messages to the other side.
type ChatService struct {
	db            *gorm.DB
	notifications *NotificationService
	hub           *realtime.Hub
	log           *zap.Logger
}

// NewChatService constructs a ChatService.
func NewChatService(db *gorm.DB, notifications *NotificationService, hub *realtime.Hub) (*ChatService, error) {
	if db == nil {
		return nil, errors.New("chat service: db is required")
	}
	if notifications == nil {
		return nil, errors.New("chat service: notification service is required")
	}
	return &ChatService{
		db:            db,
		notifications: notifications,
		hub:           hub,
		log:           logger.WithModule("chat"),
	}, nil
}

// Send persists the message, pushes it to the receiving side's room and
// records a notification for the receiver.
func (s *ChatService) Send(ctx context.Context, input SendChatInput) (*models.ChatMessage, error) {
	ctx = ensureContext(ctx)

	college := strings.TrimSpace(input.College)
	if college == "" {
		return nil, apperrors.NewBadRequest("college is required")
	}
	role := strings.TrimSpace(input.SenderRole)
	if role != models.RoleDDPU && role != models.RoleCollege {
		return nil, apperrors.NewBadRequest("sender role must be ddpu or college")
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, apperrors.NewBadRequest("message body is required")
	}

	message := models.ChatMessage{
		College:    college,
		SenderRole: role,
		Body:       body,
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, fmt.Errorf("chat service: create message: %w", err)
	}

	recipient := college
	senderLabel := "DDPU office"
	if role == models.RoleCollege {
		recipient = models.RoleDDPU
		senderLabel = college
	}

	if s.hub != nil {
		s.hub.EmitToRoom(recipient, realtime.Message{
			Event: realtime.EventChatMessage,
			Data:  message,
		})
	}

	if _, err := s.notifications.Create(ctx, CreateNotificationInput{
		Recipient: recipient,
		Kind:      models.NotificationKindChat,
		Title:     fmt.Sprintf("New message from %s", senderLabel),
		Message:   body,
		Metadata:  map[string]any{"college": college},
	}); err != nil {
		s.log.Warn("chat notification failed",
			zap.String("college", college), zap.Error(err))
	}

	return &message, nil
}

// History returns the last messages of one conversation in chronological order.
func (s *ChatService) History(ctx context.Context, college string, limit int) ([]models.ChatMessage, error) {
	ctx = ensureContext(ctx)

	college = strings.TrimSpace(college)
	if college == "" {
		return nil, apperrors.NewBadRequest("college is required")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var messages []models.ChatMessage
	if err := s.db.WithContext(ctx).
		Where("college = ?", college).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("chat service: load history: %w", err)
	}

	// Reverse into chronological order for display.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Conversations lists the colleges the DDPU office has exchanged messages with.
func (s *ChatService) Conversations(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)

	var colleges []string
	if err := s.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Distinct("college").
		Order("college ASC").
		Pluck("college", &colleges).Error; err != nil {
		return nil, fmt.Errorf("chat service: list conversations: %w", err)
	}
	return colleges, nil
}
