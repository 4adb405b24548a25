package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/collegedesk/collegedesk/internal/models"
	apperrors "github.com/collegedesk/collegedesk/pkg/errors"
	"github.com/collegedesk/collegedesk/pkg/logger"
	"github.com/collegedesk/collegedesk/pkg/mail"
	"github.com/collegedesk/collegedesk/pkg/metrics"
)

// ReminderService scans open queries and sends at most one email per
// (query, college, phase). The sent marker is a ReminderLog row claimed with a
// single insert before sending; the composite unique index makes the claim a
// compare-and-set, so repeated scans never resend a phase.
type ReminderService struct {
	db            *gorm.DB
	users         *UserService
	courier       *mail.Courier
	thresholdDays int
	now           func() time.Time
	log           *zap.Logger
}

// NewReminderService constructs a ReminderService. thresholdDays controls how
// many days before the due date the reminder phase opens.
func NewReminderService(db *gorm.DB, users *UserService, courier *mail.Courier, thresholdDays int) (*ReminderService, error) {
	if db == nil {
		return nil, errors.New("reminder service: db is required")
	}
	if users == nil {
		return nil, errors.New("reminder service: user service is required")
	}
	if thresholdDays <= 0 {
		thresholdDays = 2
	}
	return &ReminderService{
		db:            db,
		users:         users,
		courier:       courier,
		thresholdDays: thresholdDays,
		now:           time.Now,
		log:           logger.WithModule("reminders"),
	}, nil
}

// WithClock overrides the time source, used by tests.
func (s *ReminderService) WithClock(now func() time.Time) *ReminderService {
	s.now = now
	return s
}

// Run performs one full scan over open queries. Errors for one (query,
// college) pair are collected and do not stop the remaining pairs; a
// credential fault from the email transport aborts the run.
func (s *ReminderService) Run(ctx context.Context) error {
	ctx = ensureContext(ctx)

	var queries []models.Query
	if err := s.db.WithContext(ctx).Preload("Responses").Find(&queries).Error; err != nil {
		return fmt.Errorf("reminder service: load queries: %w", err)
	}

	var errs error
	for i := range queries {
		err := s.checkQuery(ctx, &queries[i])
		if err == nil {
			continue
		}
		errs = multierr.Append(errs, err)
		if mail.IsAuthError(err) {
			s.log.Error("aborting reminder run on credential fault", zap.Error(err))
			return errs
		}
	}
	return errs
}

// CheckQuery evaluates a single query immediately, used right after creation
// so due dates already inside the reminder window are not missed until the
// next periodic run.
func (s *ReminderService) CheckQuery(ctx context.Context, queryID string) error {
	ctx = ensureContext(ctx)

	var query models.Query
	if err := s.db.WithContext(ctx).Preload("Responses").
		Where("id = ?", strings.TrimSpace(queryID)).
		First(&query).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("reminder service: load query: %w", err)
	}
	return s.checkQuery(ctx, &query)
}

func (s *ReminderService) checkQuery(ctx context.Context, query *models.Query) error {
	phase, daysLeft := s.phaseFor(query.DueDate)
	if phase == "" {
		return nil
	}

	pending := pendingColleges(query)
	if len(pending) == 0 {
		return nil
	}

	emails, err := s.users.CollegeEmails(ctx, pending)
	if err != nil {
		return fmt.Errorf("reminder service: resolve emails: %w", err)
	}

	template := templateFor(query.Kind, phase)
	var errs error
	for _, college := range pending {
		claimed, err := s.claim(ctx, query.ID, college, phase)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !claimed {
			continue
		}

		err = sendFanout(ctx, s.courier, s.log, template, []emailRecipient{{
			College: college,
			Address: emails[college],
			Data: mail.TemplateData{
				College:  college,
				Subject:  query.Subject,
				DueDate:  query.DueDate.Format(dayKeyFormat),
				Link:     query.Link,
				DaysLeft: daysLeft,
			},
		}})
		if err != nil {
			// Release the claim so a later run can retry. The claim is
			// only kept once the send has actually gone out.
			s.release(ctx, query.ID, college, phase)
			errs = multierr.Append(errs, err)
			if mail.IsAuthError(err) {
				return errs
			}
			continue
		}

		metrics.RemindersSent.WithLabelValues(phase).Inc()
	}
	return errs
}

// phaseFor returns the active phase for a due date, or "" when outside both
// windows. daysLeft is zero or negative once the query is overdue.
func (s *ReminderService) phaseFor(dueDate time.Time) (phase string, daysLeft int) {
	now := s.now().UTC()
	if now.After(dueDate) {
		return models.ReminderPhaseOverdue, 0
	}

	remaining := dueDate.Sub(now)
	daysLeft = int((remaining + 24*time.Hour - time.Nanosecond) / (24 * time.Hour))
	if remaining <= time.Duration(s.thresholdDays)*24*time.Hour {
		return models.ReminderPhaseBeforeDue, daysLeft
	}
	return "", daysLeft
}

// claim inserts the (query, college, phase) marker. A duplicate means another
// run already sent this phase.
func (s *ReminderService) claim(ctx context.Context, queryID, college, phase string) (bool, error) {
	entry := models.ReminderLog{
		QueryID: queryID,
		College: college,
		Phase:   phase,
		SentAt:  s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		if isUniqueConstraintError(err) {
			return false, nil
		}
		return false, fmt.Errorf("reminder service: claim marker: %w", err)
	}
	return true, nil
}

func (s *ReminderService) release(ctx context.Context, queryID, college, phase string) {
	if err := s.db.WithContext(ctx).
		Where("query_id = ? AND college = ? AND phase = ?", queryID, college, phase).
		Delete(&models.ReminderLog{}).Error; err != nil {
		s.log.Warn("releasing reminder claim failed",
			zap.String("query_id", queryID), zap.String("college", college),
			zap.String("phase", phase), zap.Error(err))
	}
}

func pendingColleges(query *models.Query) []string {
	responded := make(map[string]struct{}, len(query.Responses))
	for _, response := range query.Responses {
		if response.Status == models.ResponseStatusResponded {
			responded[response.College] = struct{}{}
		}
	}

	var pending []string
	for _, college := range decodeNames(query.Targets) {
		if _, ok := responded[college]; !ok {
			pending = append(pending, college)
		}
	}
	return pending
}

func templateFor(kind, phase string) mail.Template {
	if phase == models.ReminderPhaseOverdue {
		if kind == models.QueryKindLink {
			return mail.TemplateDueDateWarningLinkQuery
		}
		return mail.TemplateDueDateWarning
	}
	if kind == models.QueryKindLink {
		return mail.TemplateDueDateReminderLinkQuery
	}
	return mail.TemplateDueDateReminder
}
