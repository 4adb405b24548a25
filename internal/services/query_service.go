package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/collegedesk/collegedesk/internal/models"
	"github.com/collegedesk/collegedesk/internal/realtime"
	apperrors "github.com/collegedesk/collegedesk/pkg/errors"
	"github.com/collegedesk/collegedesk/pkg/logger"
	"github.com/collegedesk/collegedesk/pkg/mail"
)

// DueChecker runs an immediate due-date evaluation for a single query, used to
// catch due dates that are already inside the reminder window at creation time.
type DueChecker interface {
	CheckQuery(ctx context.Context, queryID string) error
}

// CreateQueryInput defines attributes for issuing a query to target colleges.
type CreateQueryInput struct {
	Kind        string
	Subject     string
	Description string
	DueDate     time.Time
	FileURL     string
	Link        string
	IssuedBy    string
	Targets     []string
}

// RespondInput captures a college's file response to a standard query.
type RespondInput struct {
	QueryID string
	College string
	FileURL string
}

// ListQueriesInput filters query listings.
type ListQueriesInput struct {
	College string
	Kind    string
}

// QueryDTO is the API shape of a query with its per-college responses.
type QueryDTO struct {
	ID          string                 `json:"id"`
	Kind        string                 `json:"kind"`
	Subject     string                 `json:"subject"`
	Description string                 `json:"description,omitempty"`
	DueDate     time.Time              `json:"due_date"`
	FileURL     string                 `json:"file_url,omitempty"`
	Link        string                 `json:"link,omitempty"`
	IssuedBy    string                 `json:"issued_by,omitempty"`
	Targets     []string               `json:"targets"`
	Responses   []models.QueryResponse `json:"responses,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// QueryService manages DDPU-issued queries and the per-college response
// lifecycle, including the creation-time fan-out of notifications, push
// events and emails.
type QueryService struct {
	db            *gorm.DB
	notifications *NotificationService
	users         *UserService
	hub           *realtime.Hub
	courier       *mail.Courier
	checker       DueChecker
	log           *zap.Logger
}

// NewQueryService constructs a QueryService. The hub, courier and checker are
// optional collaborators; a nil value disables that side effect.
func NewQueryService(db *gorm.DB, notifications *NotificationService, users *UserService, hub *realtime.Hub, courier *mail.Courier) (*QueryService, error) {
	if db == nil {
		return nil, errors.New("query service: db is required")
	}
	if notifications == nil {
		return nil, errors.New("query service: notification service is required")
	}
	if users == nil {
		return nil, errors.New("query service: user service is required")
	}
	return &QueryService{
		db:            db,
		notifications: notifications,
		users:         users,
		hub:           hub,
		courier:       courier,
		log:           logger.WithModule("queries"),
	}, nil
}

// SetDueChecker wires the immediate due-date check invoked after Create.
func (s *QueryService) SetDueChecker(checker DueChecker) {
	s.checker = checker
}

// Create persists the query with one pending response row per target college,
// then fans out a notification, a push event and an email per college. The
// fan-out is fire-and-forget once the primary write succeeds.
func (s *QueryService) Create(ctx context.Context, input CreateQueryInput) (*QueryDTO, error) {
	ctx = ensureContext(ctx)

	kind := strings.TrimSpace(input.Kind)
	if kind != models.QueryKindFile && kind != models.QueryKindLink {
		return nil, apperrors.NewBadRequest("kind must be file or link")
	}
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, apperrors.NewBadRequest("subject is required")
	}
	if input.DueDate.IsZero() {
		return nil, apperrors.NewBadRequest("due date is required")
	}
	if kind == models.QueryKindLink && strings.TrimSpace(input.Link) == "" {
		return nil, apperrors.NewBadRequest("link is required for link queries")
	}

	targets := normaliseNames(input.Targets)
	if len(targets) == 0 {
		return nil, apperrors.NewBadRequest("at least one target college is required")
	}

	query := models.Query{
		Kind:        kind,
		Subject:     subject,
		Description: strings.TrimSpace(input.Description),
		DueDate:     input.DueDate.UTC(),
		FileURL:     strings.TrimSpace(input.FileURL),
		Link:        strings.TrimSpace(input.Link),
		IssuedBy:    strings.TrimSpace(input.IssuedBy),
		Targets:     encodeNames(targets),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&query).Error; err != nil {
			return fmt.Errorf("query service: create query: %w", err)
		}
		for _, college := range targets {
			response := models.QueryResponse{
				QueryID: query.ID,
				College: college,
				Status:  models.ResponseStatusPending,
			}
			if err := tx.Create(&response).Error; err != nil {
				return fmt.Errorf("query service: create response row: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.fanOutCreated(ctx, &query, targets)

	if s.checker != nil {
		if err := s.checker.CheckQuery(ctx, query.ID); err != nil {
			s.log.Warn("immediate due check failed", zap.String("query_id", query.ID), zap.Error(err))
		}
	}

	dto := mapQuery(query)
	return &dto, nil
}

func (s *QueryService) fanOutCreated(ctx context.Context, query *models.Query, targets []string) {
	event := realtime.EventQueryCreated
	kind := models.NotificationKindQuery
	template := mail.TemplateNewQuery
	if query.Kind == models.QueryKindLink {
		event = realtime.EventLinkQueryCreated
		kind = models.NotificationKindLinkQuery
		template = mail.TemplateNewLinkQuery
	}

	message := fmt.Sprintf("A new query %q is due on %s.", query.Subject, query.DueDate.Format(dayKeyFormat))

	for _, college := range targets {
		if _, err := s.notifications.Create(ctx, CreateNotificationInput{
			Recipient: college,
			Kind:      kind,
			Title:     query.Subject,
			Message:   message,
			Link:      query.Link,
			Metadata:  map[string]any{"query_id": query.ID},
		}); err != nil {
			s.log.Warn("query notification failed",
				zap.String("query_id", query.ID), zap.String("college", college), zap.Error(err))
		}
	}

	if s.hub != nil {
		s.hub.EmitToRooms(targets, realtime.Message{
			Event: event,
			Data: map[string]any{
				"query_id": query.ID,
				"subject":  query.Subject,
				"due_date": query.DueDate,
			},
		})
	}

	emails, err := s.users.CollegeEmails(ctx, targets)
	if err != nil {
		s.log.Warn("resolving college emails failed", zap.String("query_id", query.ID), zap.Error(err))
		return
	}

	recipients := make([]emailRecipient, 0, len(targets))
	for _, college := range targets {
		recipients = append(recipients, emailRecipient{
			College: college,
			Address: emails[college],
			Data: mail.TemplateData{
				College: college,
				Subject: query.Subject,
				DueDate: query.DueDate.Format(dayKeyFormat),
				Link:    query.Link,
			},
		})
	}

	if err := sendFanout(ctx, s.courier, s.log, template, recipients); err != nil {
		s.log.Warn("query email fan-out incomplete", zap.String("query_id", query.ID), zap.Error(err))
	}
}

// Respond records a college's file upload against a standard query. The
// Pending to Responded transition is a single conditional update so two
// concurrent responses cannot both win.
func (s *QueryService) Respond(ctx context.Context, input RespondInput) (*models.QueryResponse, error) {
	ctx = ensureContext(ctx)

	college := strings.TrimSpace(input.College)
	if college == "" {
		return nil, apperrors.NewBadRequest("college is required")
	}
	fileURL := strings.TrimSpace(input.FileURL)
	if fileURL == "" {
		return nil, apperrors.NewBadRequest("file url is required")
	}

	query, err := s.loadQuery(ctx, input.QueryID)
	if err != nil {
		return nil, err
	}
	if query.Kind != models.QueryKindFile {
		return nil, apperrors.NewBadRequest("link queries are answered by opening the link")
	}
	if !containsName(decodeNames(query.Targets), college) {
		return nil, apperrors.ErrForbidden
	}

	response, err := s.settleResponse(ctx, query.ID, college, fileURL)
	if err != nil {
		return nil, err
	}

	s.notifyResponded(ctx, query, college)
	return response, nil
}

// OpenLink marks a link query Responded for the college and returns the link.
// Opening an already-opened link is idempotent.
func (s *QueryService) OpenLink(ctx context.Context, queryID, college string) (string, error) {
	ctx = ensureContext(ctx)

	college = strings.TrimSpace(college)
	query, err := s.loadQuery(ctx, queryID)
	if err != nil {
		return "", err
	}
	if query.Kind != models.QueryKindLink {
		return "", apperrors.NewBadRequest("not a link query")
	}
	if !containsName(decodeNames(query.Targets), college) {
		return "", apperrors.ErrForbidden
	}

	if _, err := s.settleResponse(ctx, query.ID, college, ""); err != nil {
		if !errors.Is(err, apperrors.ErrAlreadyResponded) {
			return "", err
		}
	} else {
		s.notifyResponded(ctx, query, college)
	}

	return query.Link, nil
}

// settleResponse flips the college's response row from Pending to Responded.
// The conditional update plus the unique (query, college) index keeps the
// transition upsert-by-college with exactly one winner under races.
func (s *QueryService) settleResponse(ctx context.Context, queryID, college, fileURL string) (*models.QueryResponse, error) {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":       models.ResponseStatusResponded,
		"responded_at": now,
	}
	if fileURL != "" {
		updates["file_url"] = fileURL
	}

	result := s.db.WithContext(ctx).Model(&models.QueryResponse{}).
		Where("query_id = ? AND college = ? AND status = ?", queryID, college, models.ResponseStatusPending).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("query service: settle response: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		// Either already responded, or the pending row is missing (query
		// created before this college was targeted). Create-or-conflict
		// resolves the race.
		response := models.QueryResponse{
			QueryID:     queryID,
			College:     college,
			Status:      models.ResponseStatusResponded,
			RespondedAt: &now,
			FileURL:     fileURL,
		}

		var existing models.QueryResponse
		err := s.db.WithContext(ctx).
			Where("query_id = ? AND college = ?", queryID, college).
			First(&existing).Error
		switch {
		case err == nil:
			return nil, apperrors.ErrAlreadyResponded
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := s.db.WithContext(ctx).Create(&response).Error; err != nil {
				if isUniqueConstraintError(err) {
					return nil, apperrors.ErrAlreadyResponded
				}
				return nil, fmt.Errorf("query service: create response: %w", err)
			}
			return &response, nil
		default:
			return nil, fmt.Errorf("query service: load response: %w", err)
		}
	}

	var response models.QueryResponse
	if err := s.db.WithContext(ctx).
		Where("query_id = ? AND college = ?", queryID, college).
		First(&response).Error; err != nil {
		return nil, fmt.Errorf("query service: reload response: %w", err)
	}
	return &response, nil
}

func (s *QueryService) notifyResponded(ctx context.Context, query *models.Query, college string) {
	if _, err := s.notifications.Create(ctx, CreateNotificationInput{
		Recipient: models.RoleDDPU,
		Kind:      models.NotificationKindQuery,
		Title:     fmt.Sprintf("%s responded to %q", college, query.Subject),
		Message:   fmt.Sprintf("%s has responded to the query %q.", college, query.Subject),
		Metadata:  map[string]any{"query_id": query.ID, "college": college},
	}); err != nil {
		s.log.Warn("response notification failed",
			zap.String("query_id", query.ID), zap.String("college", college), zap.Error(err))
	}
}

// List returns queries, optionally restricted to those targeting one college
// or to one kind. Responses are preloaded.
func (s *QueryService) List(ctx context.Context, input ListQueriesInput) ([]QueryDTO, error) {
	ctx = ensureContext(ctx)

	tx := s.db.WithContext(ctx).Preload("Responses").Order("created_at DESC")
	if kind := strings.TrimSpace(input.Kind); kind != "" {
		tx = tx.Where("kind = ?", kind)
	}

	var rows []models.Query
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query service: list queries: %w", err)
	}

	college := strings.TrimSpace(input.College)
	items := make([]QueryDTO, 0, len(rows))
	for _, row := range rows {
		if college != "" && !containsName(decodeNames(row.Targets), college) {
			continue
		}
		dto := mapQuery(row)
		if college != "" {
			dto.Responses = filterResponses(row.Responses, college)
		}
		items = append(items, dto)
	}
	return items, nil
}

// Get loads one query with its responses.
func (s *QueryService) Get(ctx context.Context, queryID string) (*QueryDTO, error) {
	ctx = ensureContext(ctx)

	var query models.Query
	if err := s.db.WithContext(ctx).Preload("Responses").
		Where("id = ?", strings.TrimSpace(queryID)).
		First(&query).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("query service: load query: %w", err)
	}

	dto := mapQuery(query)
	return &dto, nil
}

// Delete removes the query with its responses and reminder log entries.
func (s *QueryService) Delete(ctx context.Context, queryID string) error {
	ctx = ensureContext(ctx)

	queryID = strings.TrimSpace(queryID)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", queryID).Delete(&models.Query{})
		if result.Error != nil {
			return fmt.Errorf("query service: delete query: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		if err := tx.Where("query_id = ?", queryID).Delete(&models.QueryResponse{}).Error; err != nil {
			return fmt.Errorf("query service: delete responses: %w", err)
		}
		if err := tx.Where("query_id = ?", queryID).Delete(&models.ReminderLog{}).Error; err != nil {
			return fmt.Errorf("query service: delete reminder logs: %w", err)
		}
		return nil
	})
}

func (s *QueryService) loadQuery(ctx context.Context, queryID string) (*models.Query, error) {
	var query models.Query
	if err := s.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(queryID)).
		First(&query).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("query service: load query: %w", err)
	}
	return &query, nil
}

func mapQuery(row models.Query) QueryDTO {
	return QueryDTO{
		ID:          row.ID,
		Kind:        row.Kind,
		Subject:     row.Subject,
		Description: row.Description,
		DueDate:     row.DueDate,
		FileURL:     row.FileURL,
		Link:        row.Link,
		IssuedBy:    row.IssuedBy,
		Targets:     decodeNames(row.Targets),
		Responses:   row.Responses,
		CreatedAt:   row.CreatedAt,
	}
}

func filterResponses(responses []models.QueryResponse, college string) []models.QueryResponse {
	var out []models.QueryResponse
	for _, response := range responses {
		if response.College == college {
			out = append(out, response)
		}
	}
	return out
}
