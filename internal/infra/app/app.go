package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ordexa/catalog-iam/internal/core/port"
	"github.com/ordexa/catalog-iam/internal/infra/config"
	"github.com/ordexa/catalog-iam/internal/infra/database"
	kafkainfra "github.com/ordexa/catalog-iam/internal/infra/kafka"
	"github.com/ordexa/catalog-iam/internal/infra/logger"
	redisinfra "github.com/ordexa/catalog-iam/internal/infra/redis"
	"github.com/ordexa/catalog-iam/internal/infra/security"
	"github.com/ordexa/catalog-iam/internal/infra/telemetry"
	postgresrepo "github.com/ordexa/catalog-iam/internal/repository/postgres"
	redisrepo "github.com/ordexa/catalog-iam/internal/repository/redis"
	"github.com/ordexa/catalog-iam/internal/transport/http/middleware"
	"github.com/ordexa/catalog-iam/internal/transport/http/routes"
	"github.com/ordexa/catalog-iam/internal/usecase"
)

const (
	rateLimitKeyPrefix  = "iam:rate-limit"
	revocationKeyPrefix = "iam:revoked-session"
	challengeKeyPrefix  = "iam:2fa-challenge"
)

// Application owns the wired service graph and the HTTP server lifecycle.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	kafka  *kafkainfra.Producer
}

// New wires configuration into a runnable application.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	keyProvider, err := security.NewFileKeyProvider(cfg.JWT.KeyDirectory)
	if err != nil {
		return nil, fmt.Errorf("init key provider: %w", err)
	}
	jwtManager := security.NewJWTManager(keyProvider)

	argonCfg := security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}
	if err := security.ConfigureArgon2(argonCfg); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}
	hasher := security.NewArgon2Hasher()

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	revocationStore := redisrepo.NewSessionRevocationStore(redisClient.Client(), revocationKeyPrefix)
	challengeStore := redisrepo.NewTwoFactorChallengeStore(redisClient.Client(), challengeKeyPrefix)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: rateLimitKeyPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	var eventPublisher port.EventPublisher
	var kafkaProducer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			kafkaProducer = producer
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	passwordPolicy := security.NewPasswordPolicy()
	totpProvider := security.NewTOTPProvider(cfg.Security.TOTPIssuer)

	auditRecorder := usecase.NewAuditRecorder(repos.SecurityEvents, log)

	authService := usecase.NewAuthService(
		cfg,
		repos.Accounts,
		challengeStore,
		revocationStore,
		hasher,
		totpProvider,
		jwtManager,
		eventPublisher,
		auditRecorder,
		metrics,
		log,
	)

	registrationService := usecase.NewRegistrationService(cfg, repos.Accounts, repos.Tokens, passwordPolicy, hasher, eventPublisher, auditRecorder, log)
	twoFactorService := usecase.NewTwoFactorService(repos.Accounts, totpProvider, hasher, auditRecorder, log)
	approvalService := usecase.NewApprovalService(repos.Accounts, eventPublisher, auditRecorder, log)
	passwordResetService := usecase.NewPasswordResetService(cfg, repos.Accounts, repos.Tokens, passwordPolicy, hasher, eventPublisher, auditRecorder, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     httpMetrics,
		JWTManager:  jwtManager,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:          authService,
			Registration:  registrationService,
			TwoFactor:     twoFactorService,
			Approval:      approvalService,
			PasswordReset: passwordResetService,
			Audit:         auditRecorder,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		kafka:  kafkaProducer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.kafka != nil {
			_ = a.kafka.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting catalog IAM API",
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
