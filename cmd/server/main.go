// Package main is the entry point for the shajara API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"shajara/internal/config"
	"shajara/internal/domain/auth"
	"shajara/internal/domain/mutation"
	"shajara/internal/domain/permission"
	"shajara/internal/domain/suggestion"
	"shajara/internal/domain/undo"
	"shajara/internal/infrastructure/cache"
	v1 "shajara/internal/infrastructure/http/v1"
	"shajara/internal/infrastructure/storage/postgres"
	"shajara/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting shajara server")

	// --- Database ---
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txm := postgres.NewTxManager(pool)
	locker := postgres.NewAdvisoryLocker(txm)

	// --- Redis (optional, permission cache only) ---
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warnw("redis unavailable, permission cache disabled", "error", err)
			rdb = nil
		} else {
			log.Info("redis connection established")
		}
	}

	// --- Repositories ---
	profileRepo := postgres.NewProfileRepo(txm)
	marriageRepo := postgres.NewMarriageRepo(txm)
	graphRepo := postgres.NewGraphRepo(txm, profileRepo)
	suggestionRepo := postgres.NewSuggestionRepo(txm)
	accountRepo := postgres.NewAccountRepo(txm)
	auditRepo, err := postgres.NewAuditRepo(txm)
	if err != nil {
		log.Fatalw("failed to initialize audit repository", "error", err)
	}

	// --- Permission resolver ---
	// The mutation and undo paths resolve against the live graph; only the
	// read-only check endpoint goes through the cache.
	resolver := permission.NewResolverWithDepth(graphRepo, cfg.Limits.MaxDepth)
	cachedResolver := cache.NewCachedResolver(resolver, rdb, cfg.Undo.PermissionCacheTTL)

	// --- Services ---
	authService := auth.NewService(accountRepo, profileRepo, txm, cfg.JWTSecret, 24*time.Hour)

	mutationService := mutation.NewService(
		profileRepo,
		marriageRepo,
		auditRepo,
		resolver,
		graphRepo,
		txm,
		locker,
		cfg.Timeouts.Mutation,
		cfg.Timeouts.Undo,
		mutation.Limits{
			BatchSize:      cfg.Limits.BatchSize,
			MaxDescendants: cfg.Limits.MaxDescendants,
			MaxDepth:       cfg.Limits.MaxDepth,
		},
	)

	undoService := undo.NewService(
		profileRepo,
		marriageRepo,
		auditRepo,
		resolver,
		txm,
		locker,
		undo.Policy{
			AdminWindow: cfg.Undo.AdminWindow,
			SelfWindow:  cfg.Undo.SelfWindow,
		},
		cfg.Timeouts.Undo,
	)

	suggestionService := suggestion.NewService(
		suggestionRepo,
		profileRepo,
		auditRepo,
		resolver,
		mutationService,
		txm,
		cfg.Timeouts.Mutation,
	)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:            log,
		Pool:              pool.Pool,
		Redis:             rdb,
		AuthService:       authService,
		MutationService:   mutationService,
		UndoService:       undoService,
		SuggestionService: suggestionService,
		Resolver:          cachedResolver,
		Profiles:          profileRepo,
		Marriages:         marriageRepo,
		AuditLog:          auditRepo,
		TxManager:         txm,
		ReadTimeout:       cfg.Timeouts.Read,
		PermissionTimeout: cfg.Timeouts.Permission,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	if rdb != nil {
		_ = rdb.Close()
	}

	log.Info("server stopped")
}
