package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
	"github.com/davinaleong/project-pulse-auth/internal/core/port"
	"github.com/davinaleong/project-pulse-auth/internal/infra/config"
	"github.com/davinaleong/project-pulse-auth/internal/infra/database"
	kafkainfra "github.com/davinaleong/project-pulse-auth/internal/infra/kafka"
	"github.com/davinaleong/project-pulse-auth/internal/infra/logger"
	"github.com/davinaleong/project-pulse-auth/internal/infra/mail"
	redisinfra "github.com/davinaleong/project-pulse-auth/internal/infra/redis"
	"github.com/davinaleong/project-pulse-auth/internal/infra/security"
	"github.com/davinaleong/project-pulse-auth/internal/infra/telemetry"
	postgresrepo "github.com/davinaleong/project-pulse-auth/internal/repository/postgres"
	redisrepo "github.com/davinaleong/project-pulse-auth/internal/repository/redis"
	"github.com/davinaleong/project-pulse-auth/internal/transport/http/middleware"
	"github.com/davinaleong/project-pulse-auth/internal/transport/http/routes"
	"github.com/davinaleong/project-pulse-auth/internal/usecase"
)

const recoverySweepInterval = time.Hour

// Application owns the wired service graph and the HTTP server lifecycle.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	metrics  *telemetry.Provider
	tracer   *telemetry.TracerProvider
	producer *kafkainfra.Producer
	recovery *usecase.RecoveryService
}

// New wires configuration, infrastructure, repositories, services, and the
// HTTP transport into a runnable application.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	telemetryProvider, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
	}

	if err := security.ConfigureArgon2(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	accounts := postgresrepo.NewAccountRepository(pool)
	sessions := postgresrepo.NewSessionRepository(pool)
	recoveryTokens := postgresrepo.NewRecoveryTokenRepository(pool)

	lockoutStore := redisrepo.NewLockoutRepository(redisClient.Client(), cfg.Redis.LockoutPrefix)

	rateLimitTTL := 2 * maxDuration(cfg.Recovery.Window, cfg.RateLimit.WindowDuration)
	if rateLimitTTL <= 0 {
		rateLimitTTL = 2 * time.Hour
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), cfg.Redis.RateLimitPrefix, rateLimitTTL)

	var eventPublisher port.EventPublisher
	var producer *kafkainfra.Producer
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka disabled, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	mailer := mail.NewLoggingMailer(log)
	validator := security.DefaultPasswordValidator()

	lockoutService := usecase.NewLockoutService(lockoutStore, cfg.Lockout.MaxFailures, cfg.Lockout.Cooldown)
	tokenService := usecase.NewTokenService(cfg, accounts, sessions)

	recoveryService := usecase.NewRecoveryService(recoveryTokens, rateLimitStore, log)
	recoveryService.WithRateLimit(cfg.Recovery.MaxRequests, cfg.Recovery.Window)
	recoveryService.WithTTL(domain.RecoveryPurposePasswordReset, cfg.Recovery.ResetTTL)
	recoveryService.WithTTL(domain.RecoveryPurposeEmailVerify, cfg.Recovery.VerifyTTL)

	statusStore := postgresrepo.NewAccountStatusStore(pool, accounts, sessions, recoveryTokens)

	authService := usecase.NewAuthService(accounts, lockoutService, tokenService, eventPublisher, log)
	adminService := usecase.NewAdminService(accounts, statusStore, eventPublisher, log)
	registrationService := usecase.NewRegistrationService(accounts, recoveryService, mailer, eventPublisher, validator, log)
	passwordResetService := usecase.NewPasswordResetService(accounts, sessions, recoveryService, mailer, eventPublisher, validator, log)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     httpMetrics,
		Telemetry:   telemetryProvider,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:          authService,
			Registration:  registrationService,
			PasswordReset: passwordResetService,
			Admin:         adminService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		metrics:  telemetryProvider,
		tracer:   tracer,
		producer: producer,
		recovery: recoveryService,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
// A background sweeper deletes expired recovery tokens while the server runs.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.pool.Close()
	defer func() {
		_ = a.redis.Close()
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			_ = a.tracer.Shutdown(context.Background())
		}
	}()

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go a.sweepRecoveryTokens(sweepCtx)
	if a.producer != nil {
		go a.watchPublishErrors(sweepCtx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func (a *Application) sweepRecoveryTokens(ctx context.Context) {
	ticker := time.NewTicker(recoverySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := a.recovery.SweepExpired(ctx)
			if err != nil {
				a.logger.Warn("recovery token sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				a.logger.Info("expired recovery tokens removed", zap.Int("count", removed))
			}
		case <-ctx.Done():
			return
		}
	}
}

// watchPublishErrors drains the producer's delivery failure channel into the
// failure counter. The producer already logs each failure; this keeps the
// channel from filling and surfaces the failure rate on /metrics.
func (a *Application) watchPublishErrors(ctx context.Context) {
	for {
		select {
		case _, ok := <-a.producer.Errors():
			if !ok {
				return
			}
			a.metrics.RecordPublishFailure()
		case <-ctx.Done():
			return
		}
	}
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
