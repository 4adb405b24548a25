package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/collegedesk/collegedesk/internal/api"
	"github.com/collegedesk/collegedesk/internal/app"
	"github.com/collegedesk/collegedesk/internal/app/reminders"
	iauth "github.com/collegedesk/collegedesk/internal/auth"
	"github.com/collegedesk/collegedesk/internal/database"
	"github.com/collegedesk/collegedesk/internal/realtime"
	"github.com/collegedesk/collegedesk/internal/services"
	"github.com/collegedesk/collegedesk/pkg/logger"
	"github.com/collegedesk/collegedesk/pkg/mail"
)

// runtimeStack bundles long-lived components used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Hub       *realtime.Hub
	Scheduler *reminders.Scheduler
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, services, scheduler and router.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         cfg.Auth.JWT.Secret,
		Issuer:         cfg.Auth.JWT.Issuer,
		AccessTokenTTL: cfg.Auth.JWT.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}
	courier := mail.NewCourier(mailer)
	if !cfg.Email.SMTP.Enabled {
		log.Info("smtp delivery disabled; emails will be skipped")
	}

	stack.Hub = realtime.NewHub()

	users, err := services.NewUserService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}

	notifications, err := services.NewNotificationService(stack.DB, stack.Hub, cfg.Vault.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}

	queries, err := services.NewQueryService(stack.DB, notifications, users, stack.Hub, courier)
	if err != nil {
		return nil, fmt.Errorf("initialise query service: %w", err)
	}

	circulars, err := services.NewCircularService(stack.DB, notifications, users, stack.Hub, courier)
	if err != nil {
		return nil, fmt.Errorf("initialise circular service: %w", err)
	}

	chat, err := services.NewChatService(stack.DB, notifications, stack.Hub)
	if err != nil {
		return nil, fmt.Errorf("initialise chat service: %w", err)
	}

	attendance, err := services.NewAttendanceService(stack.DB, cfg.Attendance.Timezone, cfg.Attendance.OpenHour, cfg.Attendance.CloseHour)
	if err != nil {
		return nil, fmt.Errorf("initialise attendance service: %w", err)
	}

	documents, err := services.NewDocumentService(stack.DB, notifications, users, stack.Hub, courier)
	if err != nil {
		return nil, fmt.Errorf("initialise document service: %w", err)
	}

	stats, err := services.NewStatsService(stack.DB, attendance.Window())
	if err != nil {
		return nil, fmt.Errorf("initialise stats service: %w", err)
	}

	reminderSvc, err := services.NewReminderService(stack.DB, users, courier, cfg.Reminders.ThresholdDays)
	if err != nil {
		return nil, fmt.Errorf("initialise reminder service: %w", err)
	}
	queries.SetDueChecker(reminderSvc)

	stack.Scheduler, err = reminders.NewScheduler(reminderSvc,
		reminders.WithSchedule(cfg.Reminders.Schedule),
		reminders.WithSendTimeout(cfg.Reminders.SendTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise reminder scheduler: %w", err)
	}
	if err := stack.Scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start reminder scheduler: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Deps{
		DB:            stack.DB,
		JWT:           jwtSvc,
		Config:        cfg,
		Hub:           stack.Hub,
		Users:         users,
		Notifications: notifications,
		Queries:       queries,
		Circulars:     circulars,
		Chat:          chat,
		Attendance:    attendance,
		Documents:     documents,
		Stats:         stats,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		stopCtx := s.Scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
			log.Warn("reminder scheduler stop timed out")
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.MigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
