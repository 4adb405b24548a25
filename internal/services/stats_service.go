package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/collegedesk/collegedesk/internal/models"
)

// StatsOverview summarises portal activity for the dashboard.
type StatsOverview struct {
	Colleges         int64 `json:"colleges"`
	Queries          int64 `json:"queries"`
	OpenQueries      int64 `json:"open_queries"`
	PendingResponses int64 `json:"pending_responses"`
	Circulars        int64 `json:"circulars"`
	Notifications    int64 `json:"notifications"`
	AttendanceToday  int64 `json:"attendance_today"`
}

// StatsService computes dashboard counters.
type StatsService struct {
	db     *gorm.DB
	window AttendanceWindow
	now    func() time.Time
}

// NewStatsService constructs a StatsService. The window supplies the zone used
// for the attendance-today counter.
func NewStatsService(db *gorm.DB, window AttendanceWindow) (*StatsService, error) {
	if db == nil {
		return nil, errors.New("stats service: db is required")
	}
	return &StatsService{db: db, window: window, now: time.Now}, nil
}

// Overview returns the dashboard counters.
func (s *StatsService) Overview(ctx context.Context) (*StatsOverview, error) {
	ctx = ensureContext(ctx)

	var overview StatsOverview

	counts := []struct {
		dest  *int64
		count func(tx *gorm.DB) *gorm.DB
	}{
		{&overview.Colleges, func(tx *gorm.DB) *gorm.DB {
			return tx.Model(&models.User{}).Where("role = ?", models.RoleCollege)
		}},
		{&overview.Queries, func(tx *gorm.DB) *gorm.DB {
			return tx.Model(&models.Query{})
		}},
		{&overview.OpenQueries, func(tx *gorm.DB) *gorm.DB {
			return tx.Model(&models.Query{}).
				Where("id IN (?)", tx.Session(&gorm.Session{NewDB: true}).
					Model(&models.QueryResponse{}).
					Select("query_id").
					Where("status = ?", models.ResponseStatusPending))
		}},
		{&overview.PendingResponses, func(tx *gorm.DB) *gorm.DB {
			return tx.Model(&models.QueryResponse{}).Where("status = ?", models.ResponseStatusPending)
		}},
		{&overview.Circulars, func(tx *gorm.DB) *gorm.DB {
			return tx.Model(&models.Circular{})
		}},
		{&overview.Notifications, func(tx *gorm.DB) *gorm.DB {
			return tx.Model(&models.Notification{})
		}},
		{&overview.AttendanceToday, func(tx *gorm.DB) *gorm.DB {
			return tx.Model(&models.AttendanceEntry{}).Where("day = ?", s.window.DayKey(s.now()))
		}},
	}

	for _, c := range counts {
		if err := c.count(s.db.WithContext(ctx)).Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("stats service: count: %w", err)
		}
	}

	return &overview, nil
}

// ResponseRate reports, per query, how many targets have responded.
type ResponseRate struct {
	QueryID   string `json:"query_id"`
	Subject   string `json:"subject"`
	Targets   int    `json:"targets"`
	Responded int    `json:"responded"`
}

// ResponseRates returns per-query completion counts, newest queries first.
func (s *StatsService) ResponseRates(ctx context.Context, limit int) ([]ResponseRate, error) {
	ctx = ensureContext(ctx)

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var queries []models.Query
	if err := s.db.WithContext(ctx).Preload("Responses").
		Order("created_at DESC").
		Limit(limit).
		Find(&queries).Error; err != nil {
		return nil, fmt.Errorf("stats service: list queries: %w", err)
	}

	rates := make([]ResponseRate, 0, len(queries))
	for _, query := range queries {
		responded := 0
		for _, response := range query.Responses {
			if response.Status == models.ResponseStatusResponded {
				responded++
			}
		}
		rates = append(rates, ResponseRate{
			QueryID:   query.ID,
			Subject:   query.Subject,
			Targets:   len(decodeNames(query.Targets)),
			Responded: responded,
		})
	}
	return rates, nil
}
