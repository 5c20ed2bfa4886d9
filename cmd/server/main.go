package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"keygate.backend/internal/config"
	"keygate.backend/internal/infrastructure/authorization"
	"keygate.backend/internal/infrastructure/jobs"
	"keygate.backend/internal/infrastructure/metrics"
	"keygate.backend/internal/infrastructure/notification"
	"keygate.backend/internal/infrastructure/repositories"
	"keygate.backend/internal/interfaces/http/handlers"
	"keygate.backend/internal/migrate"
	"keygate.backend/internal/usecases"
	"keygate.backend/pkg/jwt"
	"keygate.backend/pkg/logger"
	"keygate.backend/pkg/redis"
)

const (
	serviceName     = "keygate-backend"
	serviceVersion  = "1.0.0"
	shutdownTimeout = 15 * time.Second
	relayRetryMin   = 500 * time.Millisecond
	relayRetryMax   = 30 * time.Second
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt:    false,
			TranslateError: true,
		})
	}
	runMigrations = migrate.UpDB
	getStdDB      = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
	runServer     = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

// app holds everything built from the configuration.
type app struct {
	router     *gin.Engine
	dispatcher *notification.Dispatcher
	broker     *notification.RedisBroker
	sweep      *jobs.ExpirySweepJob
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	ctx := context.Background()
	logger.Info(ctx, "Logger initialized", zap.String("env", cfg.Server.Env))

	if cfg.Redis.Enabled() {
		if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
			logger.Error(ctx, "Failed to initialize Redis", zap.Error(err))
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		logger.Info(ctx, "Redis initialized")
	} else {
		logger.Warn(ctx, "REDIS_URL not set: events stay on this instance and idempotency keys are ignored")
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		logger.Warn(ctx, "Database not available, endpoints will return errors", zap.Error(err))
	} else {
		logger.Info(ctx, "Connected to PostgreSQL via GORM")
		if cfg.Database.AutoMigrate {
			if err := runMigrations(ctx, sqlDB); err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
			logger.Info(ctx, "Migrations applied")
		}
	}

	a, err := buildApp(cfg, db, sqlDB, metrics.Default())
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.dispatcher.Start(runCtx)
	if a.broker != nil {
		go superviseRelay(runCtx, a.broker.Run, relayRetryMin, relayRetryMax)
	}
	if a.sweep != nil {
		go a.sweep.Start(runCtx)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info(ctx, "Shutting down server")

		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info(ctx, "Keygate backend starting",
		zap.String("port", cfg.Server.Port),
		zap.Duration("sweep_interval", cfg.Lifecycle.SweepInterval),
	)

	err = runServer(srv)
	if a.sweep != nil {
		a.sweep.Stop()
	}
	a.dispatcher.Stop()
	cancel()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// buildApp wires repositories, usecases and handlers.
func buildApp(cfg *config.Config, db *gorm.DB, sqlDB *sql.DB, m *metrics.Metrics) (*app, error) {
	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry)

	enforcer, err := authorization.NewEnforcer()
	if err != nil {
		return nil, fmt.Errorf("failed to load authorization policy: %w", err)
	}
	authz := authorization.NewAuthorizer(enforcer)

	userRepo := repositories.NewUserRepository(db)
	keyRepo := repositories.NewKeyRepository(db)
	keyHistoryRepo := repositories.NewKeyHistoryRepository(db)
	inviteRepo := repositories.NewInviteRepository(db)
	bindingRepo := repositories.NewBindingCodeRepository(db)
	activityRepo := repositories.NewActivityLogRepository(db)
	uow := repositories.NewUnitOfWork(db)

	// With redis the broker echoes every instance's events into the hub,
	// so the hub must not also be a direct sink.
	hub := notification.NewHub(m)
	var broker *notification.RedisBroker
	var sinks []notification.Sink
	if cfg.Redis.Enabled() {
		broker = notification.NewRedisBroker(hub)
		sinks = append(sinks, broker)
	} else {
		sinks = append(sinks, hub)
	}
	if cfg.Discord.WebhookURL != "" {
		sinks = append(sinks, notification.NewWebhookSink(cfg.Discord.WebhookURL, cfg.Discord.WebhookTimeout))
	}
	dispatcher := notification.NewDispatcher(cfg.Lifecycle.DispatcherQueueSize, m, sinks...)

	now := func() time.Time { return time.Now().UTC() }
	settings := usecases.Settings{
		Now:              now,
		CodeMaxAttempts:  cfg.Lifecycle.CodeMaxAttempts,
		InviteExpiryDays: cfg.Lifecycle.InviteExpiryDays,
		QuotaPeriod:      cfg.Lifecycle.QuotaPeriod,
		BindingCodeTTL:   cfg.Discord.BindingCodeTTL,
	}

	history := usecases.NewHistoryRecorder(keyHistoryRepo, activityRepo, now)
	quota := usecases.NewQuotaTracker(userRepo, settings.QuotaPeriod, now)
	keyUsecase := usecases.NewKeyUsecase(uow, keyRepo, history, authz, dispatcher, m, settings)
	inviteUsecase := usecases.NewInviteUsecase(uow, inviteRepo, userRepo, quota, history, authz, m, settings)
	authUsecase := usecases.NewAuthUsecase(uow, userRepo, inviteUsecase, history, dispatcher, jwtService, settings)
	userUsecase := usecases.NewUserUsecase(uow, userRepo, history, authz, dispatcher, settings)
	discordUsecase := usecases.NewDiscordUsecase(uow, userRepo, bindingRepo, history, authz, settings)
	logUsecase := usecases.NewLogUsecase(activityRepo, authz)

	checks := map[string]handlers.HealthCheck{
		"database": sqlDB.PingContext,
	}
	if cfg.Redis.Enabled() {
		checks["redis"] = func(ctx context.Context) error {
			c := redis.GetClient()
			if c == nil {
				return redis.ErrNotInitialized
			}
			return c.Ping(ctx).Err()
		}
	}

	router := newRouter(routeDeps{
		authHandler:    handlers.NewAuthHandler(authUsecase),
		keyHandler:     handlers.NewKeyHandler(keyUsecase),
		inviteHandler:  handlers.NewInviteHandler(inviteUsecase),
		userHandler:    handlers.NewUserHandler(userUsecase),
		discordHandler: handlers.NewDiscordHandler(discordUsecase),
		logHandler:     handlers.NewLogHandler(logUsecase),
		wsHandler:      handlers.NewWSHandler(hub, authz, keyUsecase),
		healthHandler:  handlers.NewHealthHandler(serviceName, serviceVersion, checks),
		tokens:         jwtService,
		accounts:       authUsecase,
		idempotency:    cfg.Redis.Enabled(),
	})

	a := &app{router: router, dispatcher: dispatcher, broker: broker}
	if cfg.Lifecycle.SweepInterval > 0 {
		a.sweep = jobs.NewExpirySweepJob(cfg.Lifecycle.SweepInterval, keyUsecase, inviteUsecase)
	}
	return a, nil
}

// superviseRelay keeps the Redis event relay running until ctx is done,
// restarting it with a doubling delay capped at maxDelay. A run that stayed
// up longer than maxDelay resets the delay.
func superviseRelay(ctx context.Context, run func(ctx context.Context, ready chan<- struct{}) error, minDelay, maxDelay time.Duration) {
	delay := minDelay
	for {
		started := time.Now()
		err := run(ctx, nil)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) > maxDelay {
			delay = minDelay
		}
		logger.Warn(ctx, "Redis event relay stopped, restarting",
			zap.Error(err),
			zap.Duration("retry_in", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if delay *= 2; delay > maxDelay {
			delay = maxDelay
		}
	}
}
