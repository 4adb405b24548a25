package reminders

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/collegedesk/collegedesk/internal/services"
	"github.com/collegedesk/collegedesk/pkg/logger"
)

const defaultSpec = "@daily"

// Scheduler runs the due-date reminder scan on a cron schedule. The scan
// itself is idempotent, so overlapping or repeated runs are safe.
type Scheduler struct {
	reminders *services.ReminderService
	cron      *cron.Cron
	schedule  string
	timeout   time.Duration
	log       *zap.Logger
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithSchedule overrides the cron specification for the reminder scan.
func WithSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// WithSendTimeout bounds how long one scheduled scan may run.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewScheduler constructs a Scheduler around the reminder service.
func NewScheduler(reminders *services.ReminderService, opts ...Option) (*Scheduler, error) {
	if reminders == nil {
		return nil, errors.New("reminder scheduler: reminder service is required")
	}

	scheduler := &Scheduler{
		reminders: reminders,
		schedule:  defaultSpec,
		log:       logger.WithModule("reminder-scheduler"),
	}
	for _, opt := range opts {
		opt(scheduler)
	}

	if scheduler.cron == nil {
		scheduler.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return scheduler, nil
}

// Start registers the scan job and launches the scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		ctx := context.Background()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		if err := s.reminders.Run(ctx); err != nil {
			s.log.Warn("reminder scan completed with errors", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for a running scan to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes one scan immediately, used at startup and in tests.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.reminders.Run(ctx)
}
