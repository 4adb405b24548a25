package services

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/collegedesk/collegedesk/internal/models"
	"github.com/collegedesk/collegedesk/internal/realtime"
	"github.com/collegedesk/collegedesk/pkg/crypto"
	apperrors "github.com/collegedesk/collegedesk/pkg/errors"
	"github.com/collegedesk/collegedesk/pkg/logger"
	"github.com/collegedesk/collegedesk/pkg/metrics"
)

var validNotificationKinds = map[string]struct{}{
	models.NotificationKindChat:      {},
	models.NotificationKindQuery:     {},
	models.NotificationKindCircular:  {},
	models.NotificationKindLinkQuery: {},
	models.NotificationKindDocument:  {},
}

// NotificationDTO represents the API-friendly notification payload. Message
// holds the decrypted plaintext.
type NotificationDTO struct {
	ID        string         `json:"id"`
	Recipient string         `json:"recipient"`
	Kind      string         `json:"kind"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Link      string         `json:"link,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	Recipient string
	Kind      string
	Title     string
	Message   string
	Link      string
	Metadata  map[string]any
}

// ListNotificationsInput defines filters for querying a recipient's notifications.
type ListNotificationsInput struct {
	Recipient  string
	Limit      int
	Offset     int
	UnreadOnly bool
}

// NotificationService manages the durable per-recipient notification store.
// Messages are encrypted at rest and only decrypted at the read boundary.
type NotificationService struct {
	db  *gorm.DB
	hub *realtime.Hub
	key []byte
	log *zap.Logger
}

// NewNotificationService constructs a NotificationService. The encryption key
// is derived from the configured secret; an empty secret is rejected so
// messages are never silently stored in the clear.
func NewNotificationService(db *gorm.DB, hub *realtime.Hub, encryptionSecret string) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	if strings.TrimSpace(encryptionSecret) == "" {
		return nil, errors.New("notification service: encryption secret is required")
	}

	key := sha256.Sum256([]byte(encryptionSecret))
	return &NotificationService{
		db:  db,
		hub: hub,
		key: key[:],
		log: logger.WithModule("notifications"),
	}, nil
}

// Create encrypts and persists a notification, then pushes it to the
// recipient's room. Persistence errors propagate to the caller; push delivery
// is best-effort.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	recipient := strings.TrimSpace(input.Recipient)
	if recipient == "" {
		return nil, apperrors.NewBadRequest("recipient is required")
	}
	kind := strings.TrimSpace(input.Kind)
	if _, ok := validNotificationKinds[kind]; !ok {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown notification kind %q", kind))
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("title is required")
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, apperrors.NewBadRequest("message is required")
	}

	encrypted, err := crypto.EncryptMessage(message, s.key)
	if err != nil {
		return nil, fmt.Errorf("notification service: encrypt message: %w", err)
	}

	notification := models.Notification{
		Recipient: recipient,
		Kind:      kind,
		Title:     title,
		Message:   encrypted,
		Link:      strings.TrimSpace(input.Link),
	}

	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		notification.Metadata = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	metrics.NotificationsCreated.WithLabelValues(kind).Inc()

	dto := s.mapNotification(notification)
	if s.hub != nil {
		s.hub.EmitToRoom(recipient, realtime.Message{
			Event: realtime.EventNotification,
			Data:  dto,
		})
	}

	return &dto, nil
}

// ListForRecipient returns the recipient's notifications newest-first. A
// record whose message fails to decrypt degrades to the raw stored value and
// is logged instead of failing the batch.
func (s *NotificationService) ListForRecipient(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)

	recipient := strings.TrimSpace(input.Recipient)
	if recipient == "" {
		return nil, apperrors.NewBadRequest("recipient is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	tx := s.db.WithContext(ctx).Where("recipient = ?", recipient)
	if input.UnreadOnly {
		tx = tx.Where("is_read = ?", false)
	}

	var rows []models.Notification
	if err := tx.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, s.mapNotification(row))
	}
	return items, nil
}

// MarkRead flips the read flag on a recipient's notification. Marking an
// already-read notification is a no-op, not an error.
func (s *NotificationService) MarkRead(ctx context.Context, recipient, notificationID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	var notification models.Notification
	if err := s.db.WithContext(ctx).
		Where("id = ? AND recipient = ?", notificationID, recipient).
		First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}

	if !notification.IsRead {
		if err := s.db.WithContext(ctx).Model(&notification).
			Update("is_read", true).Error; err != nil {
			return nil, fmt.Errorf("notification service: mark read: %w", err)
		}
		notification.IsRead = true
	}

	dto := s.mapNotification(notification)
	return &dto, nil
}

// DeleteAllUnread removes every unread notification for the recipient and
// returns the number deleted. Read notifications are untouched. This is the
// portal's "mark all as read" action; its contract is deliberately destructive.
func (s *NotificationService) DeleteAllUnread(ctx context.Context, recipient string) (int64, error) {
	ctx = ensureContext(ctx)

	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return 0, apperrors.NewBadRequest("recipient is required")
	}

	result := s.db.WithContext(ctx).
		Where("recipient = ? AND is_read = ?", recipient, false).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: delete unread: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// Delete removes one notification owned by the recipient.
func (s *NotificationService) Delete(ctx context.Context, recipient, notificationID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("id = ? AND recipient = ?", notificationID, recipient).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("notification service: delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *NotificationService) mapNotification(row models.Notification) NotificationDTO {
	message, err := crypto.DecryptMessage(row.Message, s.key)
	if err != nil {
		s.log.Warn("notification decrypt failed, returning stored value",
			zap.String("notification_id", row.ID), zap.Error(err))
		message = row.Message
	}

	return NotificationDTO{
		ID:        row.ID,
		Recipient: row.Recipient,
		Kind:      row.Kind,
		Title:     row.Title,
		Message:   message,
		Link:      row.Link,
		Metadata:  decodeJSONMap(row.Metadata),
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func decodeJSONMap(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
