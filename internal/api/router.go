package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/collegedesk/collegedesk/internal/app"
	iauth "github.com/collegedesk/collegedesk/internal/auth"
	"github.com/collegedesk/collegedesk/internal/handlers"
	"github.com/collegedesk/collegedesk/internal/middleware"
	"github.com/collegedesk/collegedesk/internal/models"
	"github.com/collegedesk/collegedesk/internal/realtime"
	"github.com/collegedesk/collegedesk/internal/services"
)

// Deps bundles everything the router needs. All fields are required except
// Stats, which falls back to a handler-less registration when nil.
type Deps struct {
	DB            *gorm.DB
	JWT           *iauth.JWTService
	Config        *app.Config
	Hub           *realtime.Hub
	Users         *services.UserService
	Notifications *services.NotificationService
	Queries       *services.QueryService
	Circulars     *services.CircularService
	Chat          *services.ChatService
	Attendance    *services.AttendanceService
	Documents     *services.DocumentService
	Stats         *services.StatsService
}

// NewRouter builds the Gin engine, wires middleware and registers all portal
// routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("realtime hub must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	// Basic rate limiting: 100 requests/minute per IP+path
	r.Use(middleware.RateLimit(100, time.Minute))

	r.NoRoute(middleware.NotFoundHandler)

	// Health endpoint (public)
	r.GET("/health", handlers.Health(deps.DB))

	if deps.Config.Monitoring.Prometheus.Enabled {
		endpoint := deps.Config.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(deps.Users, deps.JWT)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/login", authHandler.Login)
	}

	requireAuth := middleware.Auth(deps.JWT)
	requireDDPU := middleware.RequireRole(models.RoleDDPU)
	requireCollege := middleware.RequireRole(models.RoleCollege)

	api := r.Group("/api")
	api.Use(requireAuth)

	// Authenticated auth routes
	api.GET("/auth/me", authHandler.Me)
	api.POST("/auth/password", authHandler.ChangePassword)
	api.GET("/colleges", requireDDPU, authHandler.ListColleges)
	api.POST("/colleges", requireDDPU, authHandler.RegisterCollege)

	registerNotificationRoutes(api, deps)
	registerQueryRoutes(api, deps, requireDDPU, requireCollege)
	registerCircularRoutes(api, deps, requireDDPU)
	registerChatRoutes(api, deps, requireDDPU)
	registerAttendanceRoutes(api, deps, requireDDPU, requireCollege)
	registerDocumentRoutes(api, deps, requireDDPU, requireCollege)
	registerStatsRoutes(api, deps, requireDDPU)

	return r, nil
}
