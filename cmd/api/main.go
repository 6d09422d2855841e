package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/danielthames360/baby-spa-sub004/internal/api/router"
	"github.com/danielthames360/baby-spa-sub004/internal/appointments"
	"github.com/danielthames360/baby-spa-sub004/internal/booking"
	appconfig "github.com/danielthames360/baby-spa-sub004/internal/config"
	"github.com/danielthames360/baby-spa-sub004/internal/events"
	"github.com/danielthames360/baby-spa-sub004/internal/ledger"
	"github.com/danielthames360/baby-spa-sub004/internal/live"
	"github.com/danielthames360/baby-spa-sub004/internal/notify"
	"github.com/danielthames360/baby-spa-sub004/internal/observability/metrics"
	"github.com/danielthames360/baby-spa-sub004/internal/schedule"
	"github.com/danielthames360/baby-spa-sub004/internal/storage"
	"github.com/danielthames360/baby-spa-sub004/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting baby-spa booking core",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	// Separate database/sql handle for the history archive read side.
	archiveDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open archive database", "error", err)
		os.Exit(1)
	}
	defer archiveDB.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, caching and rate limiting disabled", "error", err)
		redisClient = nil
	}

	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)

	calculator := schedule.NewCalculator(schedule.Settings{
		BucketMinutes:       cfg.SlotBucketMinutes,
		StaffCapacity:       cfg.StaffSlotCapacity,
		PortalCapacity:      cfg.PortalSlotCapacity,
		PortalSameDayBuffer: cfg.PortalSameDayBuffer,
	})
	cache := schedule.NewAvailabilityCache(redisClient, cfg.AvailabilityCacheTTL, logger)
	limiter := booking.NewPortalLimiter(redisClient, cfg.PortalBookingLimit, cfg.PortalBookingWindow)
	hub := live.NewHub(logger)

	scheduleService := schedule.NewService(pool, calculator, cache, logger)
	transitionService := appointments.NewService(pool,
		func(db storage.Querier) appointments.PaymentCounter { return ledger.NewRepository(db) },
		cfg.NoShowThreshold, logger, bookingMetrics)
	ledgerService := ledger.NewService(pool, cfg.VoidReasonMinLength, logger, bookingMetrics)
	orchestrator := booking.NewOrchestrator(pool, calculator, cache, limiter, hub, booking.Settings{
		PortalSameDayBuffer: cfg.PortalSameDayBuffer,
		MinCancelLead:       cfg.MinCancelLead,
		MaxClientClockSkew:  cfg.MaxClientClockSkew,
	}, logger, bookingMetrics)

	notifier := notify.NewService(buildEmailSender(ctx, cfg, logger),
		notify.NewWhatsAppClient(cfg.WhatsAppEndpoint, cfg.WhatsAppToken, logger), logger)
	deliverer := events.NewDeliverer(events.NewOutboxStore(pool), notifier, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxInterval)
	go deliverer.Start(ctx)

	r := router.New(&router.Config{
		Logger:          logger,
		ScheduleHandler: schedule.NewHandler(scheduleService, logger),
		BookingHandler: booking.NewHandler(orchestrator, transitionService,
			appointments.NewHistoryArchive(archiveDB), logger),
		LedgerHandler:      ledger.NewHandler(ledgerService, logger),
		LiveHub:            hub,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		JWTSecret:          cfg.AdminJWTSecret,
		CORSAllowedOrigins: []string{"*"},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// buildEmailSender picks the configured provider, falling back to the
// logging stub so development environments never send real mail.
func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Error("failed to load AWS config, using stub email sender", "error", err)
			return notify.NewStubEmailSender(logger)
		}
		if sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger); sender != nil {
			return sender
		}
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender
		}
	}
	return notify.NewStubEmailSender(logger)
}
