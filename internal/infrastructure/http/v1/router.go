// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"shajara/internal/core/tx"
	"shajara/internal/domain/audit"
	"shajara/internal/domain/auth"
	"shajara/internal/domain/marriage"
	"shajara/internal/domain/mutation"
	"shajara/internal/domain/profile"
	"shajara/internal/domain/suggestion"
	"shajara/internal/domain/undo"
	"shajara/internal/infrastructure/http/v1/handlers"
	"shajara/internal/infrastructure/http/v1/middleware"
	"shajara/pkg/logger"
)

// RouterConfig holds the wired services the router exposes.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Pool is the PostgreSQL connection pool (health checks)
	Pool *pgxpool.Pool

	// Redis is the cache client; nil disables cache-backed features
	Redis *redis.Client

	// AuthService handles registration, login, and token verification
	AuthService *auth.Service

	// MutationService is the single write path for tree data
	MutationService *mutation.Service

	// UndoService is the compensation engine
	UndoService *undo.Service

	// SuggestionService is the propose-and-review path
	SuggestionService *suggestion.Service

	// Resolver answers read-only permission checks (cache-backed)
	Resolver handlers.LevelResolver

	// Profiles and Marriages serve read endpoints directly
	Profiles  profile.Repository
	Marriages marriage.Repository

	// AuditLog serves the audit feed
	AuditLog audit.Repository

	// TxManager bounds read and permission-check statements
	TxManager         tx.Manager
	ReadTimeout       time.Duration
	PermissionTimeout time.Duration
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Redis)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()
	authHandler := handlers.NewAuthHandler(baseHandler, cfg.AuthService)
	profileHandler := handlers.NewProfileHandler(
		baseHandler, cfg.MutationService, cfg.Profiles, cfg.Marriages, cfg.TxManager, cfg.ReadTimeout)
	marriageHandler := handlers.NewMarriageHandler(baseHandler, cfg.MutationService)
	permissionHandler := handlers.NewPermissionHandler(baseHandler, cfg.Resolver, cfg.TxManager, cfg.PermissionTimeout)
	auditHandler := handlers.NewAuditHandler(baseHandler, cfg.AuditLog, cfg.TxManager, cfg.ReadTimeout)
	undoHandler := handlers.NewUndoHandler(baseHandler, cfg.UndoService)
	suggestionHandler := handlers.NewSuggestionHandler(baseHandler, cfg.SuggestionService)

	// API v1
	v1 := router.Group("/api/v1")
	{
		// Public auth endpoints; protected ones get the JWT middleware.
		publicAuth := v1.Group("/auth")
		protectedAuth := v1.Group("/auth")
		protectedAuth.Use(middleware.Auth(cfg.AuthService))
		authHandler.RegisterRoutes(publicAuth, protectedAuth)

		// Everything else requires an authenticated actor.
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.AuthService))

		profiles := protected.Group("/profiles")
		profileHandler.RegisterRoutes(profiles)
		profiles.GET("/:id/suggestions", suggestionHandler.PendingForTarget)

		marriageHandler.RegisterRoutes(protected.Group("/marriages"))
		permissionHandler.RegisterRoutes(protected.Group("/permissions"))
		auditHandler.RegisterRoutes(protected.Group("/audit"))
		undoHandler.RegisterRoutes(protected.Group("/undo"))
		suggestionHandler.RegisterRoutes(protected.Group("/suggestions"))
	}

	return router
}
