package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/collegedesk/collegedesk/internal/models"
	apperrors "github.com/collegedesk/collegedesk/pkg/errors"
	"github.com/collegedesk/collegedesk/pkg/metrics"
)

const dayKeyFormat = "2006-01-02"

// AttendanceWindow describes the daily window during which marks are accepted.
// Hours are zone-local; open is inclusive, close is exclusive.
type AttendanceWindow struct {
	Location  *time.Location
	OpenHour  int
	CloseHour int
}

// Contains reports whether t falls inside the window. The decision is made in
// the configured zone, never the host zone.
func (w AttendanceWindow) Contains(t time.Time) bool {
	local := t.In(w.Location)
	hour := local.Hour()
	return hour >= w.OpenHour && hour < w.CloseHour
}

// DayKey returns the zone-local calendar date for t.
func (w AttendanceWindow) DayKey(t time.Time) string {
	return t.In(w.Location).Format(dayKeyFormat)
}

// AttendanceService gates attendance marking to the daily window and enforces
// at most one mark per college per day.
type AttendanceService struct {
	db     *gorm.DB
	window AttendanceWindow
	now    func() time.Time
}

// NewAttendanceService constructs an AttendanceService for the named IANA zone.
func NewAttendanceService(db *gorm.DB, timezone string, openHour, closeHour int) (*AttendanceService, error) {
	if db == nil {
		return nil, errors.New("attendance service: db is required")
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("attendance service: load timezone %q: %w", timezone, err)
	}

	return &AttendanceService{
		db:     db,
		window: AttendanceWindow{Location: loc, OpenHour: openHour, CloseHour: closeHour},
		now:    time.Now,
	}, nil
}

// WithClock overrides the time source, used by tests.
func (s *AttendanceService) WithClock(now func() time.Time) *AttendanceService {
	s.now = now
	return s
}

// Window exposes the configured window.
func (s *AttendanceService) Window() AttendanceWindow {
	return s.window
}

// Mark records the college as present for today's zone-local date. The insert
// is a single atomic write; a unique constraint violation from a concurrent
// mark is reported as AlreadyMarked, not a server fault.
func (s *AttendanceService) Mark(ctx context.Context, college string) (*models.AttendanceEntry, error) {
	ctx = ensureContext(ctx)

	college = strings.TrimSpace(college)
	if college == "" {
		return nil, apperrors.NewBadRequest("college is required")
	}

	now := s.now()
	if !s.window.Contains(now) {
		metrics.AttendanceMarks.WithLabelValues("window_closed").Inc()
		return nil, apperrors.ErrOutsideWindow
	}

	entry := models.AttendanceEntry{
		Day:      s.window.DayKey(now),
		College:  college,
		Status:   "present",
		MarkedAt: now.UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		if isUniqueConstraintError(err) {
			metrics.AttendanceMarks.WithLabelValues("duplicate").Inc()
			return nil, apperrors.ErrAlreadyMarked
		}
		return nil, fmt.Errorf("attendance service: create entry: %w", err)
	}

	metrics.AttendanceMarks.WithLabelValues("marked").Inc()
	return &entry, nil
}

// StatusToday reports whether the college has already marked today and whether
// the window is currently open.
func (s *AttendanceService) StatusToday(ctx context.Context, college string) (marked, windowOpen bool, err error) {
	ctx = ensureContext(ctx)

	now := s.now()
	windowOpen = s.window.Contains(now)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.AttendanceEntry{}).
		Where("day = ? AND college = ?", s.window.DayKey(now), strings.TrimSpace(college)).
		Count(&count).Error; err != nil {
		return false, windowOpen, fmt.Errorf("attendance service: count entries: %w", err)
	}

	return count > 0, windowOpen, nil
}

// ListForDay returns every entry recorded for the given zone-local date.
func (s *AttendanceService) ListForDay(ctx context.Context, day string) ([]models.AttendanceEntry, error) {
	ctx = ensureContext(ctx)

	day = strings.TrimSpace(day)
	if _, err := time.Parse(dayKeyFormat, day); err != nil {
		return nil, apperrors.NewBadRequest("day must be formatted YYYY-MM-DD")
	}

	var entries []models.AttendanceEntry
	if err := s.db.WithContext(ctx).
		Where("day = ?", day).
		Order("marked_at ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("attendance service: list entries: %w", err)
	}
	return entries, nil
}

// HistoryForCollege returns the college's marks newest-first.
func (s *AttendanceService) HistoryForCollege(ctx context.Context, college string, limit int) ([]models.AttendanceEntry, error) {
	ctx = ensureContext(ctx)

	if limit <= 0 || limit > 365 {
		limit = 31
	}

	var entries []models.AttendanceEntry
	if err := s.db.WithContext(ctx).
		Where("college = ?", strings.TrimSpace(college)).
		Order("day DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("attendance service: list history: %w", err)
	}
	return entries, nil
}
