package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
	"github.com/aryan0dhankhar/leavedesk/internal/featureflags"
	"github.com/aryan0dhankhar/leavedesk/internal/handler"
	"github.com/aryan0dhankhar/leavedesk/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/leavedesk/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/leavedesk/internal/observability/tracing"
	"github.com/aryan0dhankhar/leavedesk/internal/repository"
	"github.com/aryan0dhankhar/leavedesk/internal/security"
	"github.com/aryan0dhankhar/leavedesk/internal/security/auth"
	"github.com/aryan0dhankhar/leavedesk/internal/security/middleware"
	"github.com/aryan0dhankhar/leavedesk/internal/security/ratelimit"
	"github.com/aryan0dhankhar/leavedesk/internal/server"
	"github.com/aryan0dhankhar/leavedesk/internal/service"
	"github.com/aryan0dhankhar/leavedesk/internal/worker"
	"github.com/aryan0dhankhar/leavedesk/pkg/config"
	"github.com/aryan0dhankhar/leavedesk/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting leavedesk", slog.String("environment", cfg.Environment), slog.String("store", cfg.Store))
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, using an insecure development secret")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing
	shutdownTracing, err := tracing.Init(ctx, log, "leavedesk", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Store
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore()

	// 5. Redis (optional) and rate limiter
	limitCfg := ratelimit.DefaultConfig()
	limitCfg.Requests = cfg.RateLimitRequests
	limitCfg.Window = cfg.RateLimitWindow
	limitCfg.Disabled = cfg.RateLimitDisabled

	var redisPinger handler.Pinger
	var limiter *ratelimit.Limiter
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Error("failed to connect to redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		redisPinger = redisClient

		limiter, err = ratelimit.NewRedisLimiter(redisClient.Raw(), limitCfg, log)
		if err != nil {
			log.Error("failed to create rate limiter", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		limiter = ratelimit.NewMemoryLimiter(limitCfg, log)
	}

	// 6. Services
	clk := clock.WallClock
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL, clk)
	authz := security.NewAuthorizationService(log)
	authService := service.NewAuthService(store.Users(), tokens, log)
	leaveService := service.NewLeaveService(store, authz, clk, log)
	reportService := service.NewReportService(store, clk, log)
	adminService := service.NewAdminService(store, clk, log)

	created, err := adminService.SeedAdmin(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	if err != nil {
		log.Error("failed to seed admin account", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if created {
		log.Info("seeded admin account", slog.String("email", cfg.SeedAdminEmail))
	}

	// 7. Background workers
	if featureflags.Enabled(featureflags.StatsWorker) {
		statsWorker := worker.NewStatsWorker(store.LeaveRequests(), clk, log, cfg.StatsInterval)
		go statsWorker.Start(ctx)
	}

	// 8. HTTP surface
	rootHandler := server.NewRouter(server.Deps{
		Auth:               handler.NewAuthHandler(authService, log),
		Leaves:             handler.NewLeaveHandler(leaveService, reportService, log),
		Admin:              handler.NewAdminHandler(adminService, leaveService, reportService, log),
		Health:             handler.NewHealthHandler(store, redisPinger, log),
		Gate:               middleware.NewGate(tokens, log),
		Limiter:            limiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:             log,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Int64("rate_limit", cfg.RateLimitRequests),
		slog.Duration("rate_limit_window", cfg.RateLimitWindow),
		slog.Bool("rate_limit_disabled", cfg.RateLimitDisabled),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

// openStore returns the configured store and a function releasing it
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}

	dbCfg := database.DefaultConfig()
	dbCfg.Host = cfg.Database.Host
	dbCfg.Port = cfg.Database.Port
	dbCfg.User = cfg.Database.User
	dbCfg.Password = cfg.Database.Password
	dbCfg.Database = cfg.Database.Name
	dbCfg.SSLMode = cfg.Database.SSLMode
	dbCfg.MaxOpenConns = cfg.Database.MaxOpenConns

	pool, err := database.NewConnectionPool(ctx, dbCfg, log)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	closeFn := func() {
		if err := pool.Close(); err != nil {
			log.Error("failed to close database", slog.String("error", err.Error()))
		}
	}
	return repository.NewPostgresStore(pool.GetDB(), log), closeFn, nil
}
