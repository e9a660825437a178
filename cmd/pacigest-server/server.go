package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/pacigest/pacigest/internal/config"
	"github.com/pacigest/pacigest/internal/domain/account"
	"github.com/pacigest/pacigest/internal/domain/billing"
	"github.com/pacigest/pacigest/internal/domain/clinical"
	"github.com/pacigest/pacigest/internal/domain/identity"
	"github.com/pacigest/pacigest/internal/domain/medication"
	"github.com/pacigest/pacigest/internal/domain/reminder"
	"github.com/pacigest/pacigest/internal/domain/scheduling"
	"github.com/pacigest/pacigest/internal/domain/stats"
	"github.com/pacigest/pacigest/internal/platform/apperr"
	"github.com/pacigest/pacigest/internal/platform/auth"
	"github.com/pacigest/pacigest/internal/platform/db"
	"github.com/pacigest/pacigest/internal/platform/middleware"
	"github.com/pacigest/pacigest/internal/platform/notification"
	"github.com/pacigest/pacigest/internal/platform/scheduler"
)

const version = "1.0.0"

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// newServer builds the echo instance with every route mounted. The pool is
// only used once requests arrive.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, mailer *notification.Manager) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.Audit(logger))

	liveness := func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"status":  "ok",
			"name":    "PaciGest Plus API",
			"version": version,
		})
	}
	e.GET("/", liveness)
	e.GET("/health", liveness)
	e.GET("/health/db", db.HealthHandler(pool))

	tx := db.PoolTxRunner{Pool: pool}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)

	accountSvc := account.NewService(account.NewUserRepo(pool), tokens, mailer, account.Config{
		TrialDays:           cfg.TrialDays,
		VerificationCodeTTL: cfg.VerificationCodeTTL,
		ResetTokenTTL:       cfg.ResetTokenTTL,
		FrontendURL:         cfg.FrontendURL,
	}, logger)
	identitySvc := identity.NewService(identity.NewPatientRepo(pool), identity.NewDoctorDirectory(pool))
	schedulingSvc := scheduling.NewService(scheduling.NewAppointmentRepo(pool), identitySvc, tx)
	clinicalSvc := clinical.NewService(clinical.NewRecordRepo(pool), clinical.NewFileRepo(pool), identitySvc, clinical.NewAppointmentDirectory(pool))
	medicationSvc := medication.NewService(medication.NewPrescriptionRepo(pool), identitySvc, medication.NewReferences(pool))
	billingSvc := billing.NewService(billing.NewPaymentRepo(pool), billing.NewSubscriptionStore(pool), tx, logger)
	statsSvc := stats.NewService(stats.NewRepo(pool))

	api := e.Group("/api")
	api.Use(middleware.RateLimit(middleware.PerSecond(cfg.RateLimitRPS, cfg.RateLimitBurst)))
	authLimiter := middleware.RateLimit(middleware.PerMinute(cfg.AuthRateLimitPerMinute))
	protected := api.Group("", auth.Authenticate(tokens, accountSvc))
	subscription := auth.RequireSubscription(billingSvc)

	account.NewHandler(accountSvc).RegisterRoutes(api, protected, authLimiter)
	identity.NewHandler(identitySvc).RegisterRoutes(protected)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(protected)
	clinical.NewHandler(clinicalSvc).RegisterRoutes(protected, subscription)
	medication.NewHandler(medicationSvc).RegisterRoutes(protected, subscription)
	billing.NewHandler(billingSvc, cfg.PaymentWebhookSecret).RegisterRoutes(api, protected)
	stats.NewHandler(statsSvc).RegisterRoutes(protected, subscription)

	// The authenticated group's catch-all shadows the /api one; unknown
	// paths answer 404 without asking for a token.
	api.RouteNotFound("", echo.NotFoundHandler)
	api.RouteNotFound("/*", echo.NotFoundHandler)

	return e
}

// jobTimeout bounds one job run and its lease.
const jobTimeout = 5 * time.Minute

// newLocker returns the redis lease when REDIS_URL is set so only one
// replica, or one manual run, ticks at a time.
func newLocker(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (scheduler.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return scheduler.NoopLocker{}, func() {}, nil
	}
	client, err := scheduler.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, func() {}, err
	}
	logger.Info().Msg("connected to redis")
	return scheduler.NewRedisLocker(client), func() { _ = client.Close() }, nil
}

func newReminders(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, mailer *notification.Manager) *reminder.Service {
	return reminder.NewService(reminder.NewStore(pool), mailer, scheduler.SystemClock{}, reminder.Config{
		Window:       cfg.ReminderWindow,
		TrialWarning: cfg.TrialWarning,
	}, logger)
}

// newRunner schedules the reminder job.
func newRunner(ctx context.Context, cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, mailer *notification.Manager) (*scheduler.Runner, func(), error) {
	locker, cleanup, err := newLocker(ctx, cfg, logger)
	if err != nil {
		return nil, cleanup, err
	}

	runner := scheduler.NewRunner(logger, locker, jobTimeout)
	if cfg.ReminderEnabled {
		if err := runner.Add(cfg.ReminderSchedule, newReminders(cfg, logger, pool, mailer)); err != nil {
			cleanup()
			return nil, func() {}, err
		}
	}
	return runner, cleanup, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	if cfg.PaymentWebhookSecret == "" {
		logger.Warn().Msg("PAYMENT_WEBHOOK_SECRET is not set; payments cannot be settled")
	}
	if !cfg.EmailEnabled() {
		logger.Warn().Msg("RESEND_API_KEY is not set; e-mails are written to the log")
	}
	mailer := notification.NewManager(notification.NewEmailSender(cfg.ResendAPIKey, cfg.EmailFrom, logger), nil, logger)

	e := newServer(cfg, logger, pool, mailer)

	runner, closeRedis, err := newRunner(ctx, cfg, logger, pool, mailer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up scheduler")
	}
	defer closeRedis()
	runner.Start()

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	runner.Stop(ctx)
	if err := e.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
