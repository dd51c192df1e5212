package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/allballa/dental-scheduler/internal/api/router"
	"github.com/allballa/dental-scheduler/internal/bridge"
	appconfig "github.com/allballa/dental-scheduler/internal/config"
	"github.com/allballa/dental-scheduler/internal/extraction"
	"github.com/allballa/dental-scheduler/internal/http/handlers"
	"github.com/allballa/dental-scheduler/internal/notify"
	"github.com/allballa/dental-scheduler/internal/observability/metrics"
	"github.com/allballa/dental-scheduler/internal/scheduling"
	"github.com/allballa/dental-scheduler/internal/store"
	"github.com/allballa/dental-scheduler/internal/telephony"
	"github.com/allballa/dental-scheduler/pkg/logging"
)

func main() {
	// Load .env for local development; missing file is fine.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dental-scheduler API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Postgres
	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slotStore := store.New(pool, logger, cfg.DBConnectRetries, cfg.DBConnectDelay)

	// Redis transcript store
	var transcripts *bridge.TranscriptStore
	if cfg.RedisAddr != "" {
		redisOpts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, call transcripts disabled", "error", err)
		} else {
			transcripts = bridge.NewTranscriptStore(redisClient, cfg.TranscriptTTL)
		}
	}

	// Metrics
	registry := prometheus.NewRegistry()
	callMetrics := metrics.NewCallMetrics(registry)

	// Extraction + confirmation detection
	extractor := extraction.NewClient(cfg.OpenAIChatURL, cfg.OpenAIAPIKey, cfg.OpenAIChatModel, logger)
	detector := scheduling.NewDetector(extractor, logger)

	// Twilio call placement and WhatsApp notifications
	twilioClient := telephony.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	var notifier *notify.Service
	if cfg.WhatsAppFrom != "" {
		sender := notify.NewWhatsAppSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.WhatsAppFrom, logger)
		notifier = notify.NewService(sender, cfg.WhatsAppTo, logger)
	}

	streams := bridge.NewHandler(bridge.HandlerConfig{
		RealtimeURL:   cfg.OpenAIRealtimeURL,
		APIKey:        cfg.OpenAIAPIKey,
		Voice:         cfg.OpenAIVoice,
		DialRetries:   cfg.AIDialRetries,
		DialDelay:     cfg.AIDialDelay,
		AIReadTimeout: cfg.AIReadTimeout,
		GoodbyeGrace:  cfg.GoodbyeGrace,
		PatientID:     int64(cfg.DefaultPatientID),
		DoctorID:      int64(cfg.DefaultDoctorID),
	}, bridge.HandlerOptions{
		Calls:       slotStore,
		Booker:      slotStore,
		Detector:    detector,
		Extractor:   extractor,
		Notifier:    notifier,
		Transcripts: transcripts,
		Metrics:     callMetrics,
		Logger:      logger,
	})

	callControl := handlers.NewCallControlHandler(handlers.CallControlConfig{
		Placer:       twilioClient,
		Verifier:     slotStore,
		Appointments: slotStore,
		Transcripts:  transcripts,
		Logger:       logger,
		PublicHost:   cfg.PublicHost,
		CallTo:       cfg.CallToNumber,
	})

	r := router.New(&router.Config{
		Logger:               logger,
		CallControl:          callControl,
		Streams:              streams,
		MetricsHandler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		OperatorSecret:       cfg.AdminJWTSecret,
		WebhookRatePerSecond: 10,
		WebhookBurst:         20,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
		// Media-stream websockets are long-lived; only bound the
		// read/write of the initial exchange.
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
