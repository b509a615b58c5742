package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowsentinel/intake/internal/buffer"
	"github.com/flowsentinel/intake/internal/config"
	"github.com/flowsentinel/intake/internal/dispatcher"
	"github.com/flowsentinel/intake/internal/failure"
	"github.com/flowsentinel/intake/internal/handlers"
	"github.com/flowsentinel/intake/internal/logging"
	"github.com/flowsentinel/intake/internal/normalizer"
	"github.com/flowsentinel/intake/internal/ratelimit"
	"github.com/flowsentinel/intake/internal/retention"
	"github.com/flowsentinel/intake/internal/server"
	"github.com/flowsentinel/intake/internal/service"
	"github.com/flowsentinel/intake/internal/sink"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("intake"))
	logging.SetDefault(logger)

	slog.Info("Starting intake service",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("log_format", cfg.Logging.Format),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}
	slog.Info("Sink configured",
		slog.String("sink_url", cfg.Sink.URL),
		slog.String("table", cfg.Sink.Table),
	)

	// Initialize rate limiter
	var rateLimiter ratelimit.Limiter
	if cfg.Ingestion.RateLimitEnabled {
		limiter, err := ratelimit.NewRedis(ratelimit.Config{
			URL:    cfg.Redis.URL,
			Limit:  cfg.Ingestion.RateLimitRequests,
			Window: cfg.Ingestion.RateLimitWindow,
		})
		if err != nil {
			slog.Warn("Failed to initialize Redis rate limiter, continuing without rate limiting",
				slog.String("error", err.Error()))
			rateLimiter = &ratelimit.NoOpLimiter{}
		} else {
			rateLimiter = limiter
			slog.Info("Rate limiting enabled",
				slog.Int("requests", cfg.Ingestion.RateLimitRequests),
				slog.Duration("window", cfg.Ingestion.RateLimitWindow),
			)
		}
	} else {
		rateLimiter = &ratelimit.NoOpLimiter{}
		slog.Info("Rate limiting disabled in configuration")
	}
	defer rateLimiter.Close()

	// Initialize failure channel
	var failureWriter failure.Writer
	switch cfg.Failure.Backend {
	case "jetstream":
		jsWriter, err := failure.NewJetStreamWriter(context.Background(), cfg.Failure.NATSURL)
		if err != nil {
			log.Fatalf("Failed to initialize JetStream failure writer: %v", err)
		}
		failureWriter = jsWriter
		slog.Info("Failure channel enabled", slog.String("backend", "jetstream"), slog.String("nats_url", cfg.Failure.NATSURL))
	case "log", "":
		failureWriter = failure.NewLogWriter(logger.Logger)
		slog.Info("Failure channel enabled", slog.String("backend", "log"))
	default:
		log.Fatalf("Unknown failure backend: %s (supported: log, jetstream)", cfg.Failure.Backend)
	}
	defer failureWriter.Close()

	// Initialize the write path: normalizer -> buffer -> dispatcher -> sink
	norm := normalizer.New(cfg.Ingestion.MaxPayloadSize, cfg.Ingestion.SourceTag)
	buf := buffer.New(cfg.Buffer.Capacity, cfg.Buffer.BatchSize)

	questdbSink := sink.NewQuestDB(sink.QuestDBConfig{
		URL:     cfg.Sink.URL,
		Table:   cfg.Sink.Table,
		Timeout: cfg.Sink.WriteTimeout,
	})

	disp := dispatcher.New(buf, questdbSink, failureWriter, logger.Logger, dispatcher.Config{
		BatchSize:     cfg.Buffer.BatchSize,
		BatchInterval: cfg.Buffer.BatchInterval,
		WriteTimeout:  cfg.Sink.WriteTimeout,
		Retry: dispatcher.RetryPolicy{
			MaxAttempts: cfg.Sink.MaxAttempts,
			Base:        cfg.Sink.BackoffBase,
			Multiplier:  cfg.Sink.BackoffFactor,
			MaxInterval: cfg.Sink.BackoffMaxWait,
		},
	})

	dispCtx, dispCancel := context.WithCancel(context.Background())
	defer dispCancel()
	if err := disp.Start(dispCtx); err != nil {
		log.Fatalf("Failed to start dispatcher: %v", err)
	}

	// Initialize retention sweeper when a pgwire DSN is configured
	var sweeper *retention.Sweeper
	if cfg.QuestDB.DSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		sweeper, err = retention.New(ctx, retention.Config{
			DSN:           cfg.QuestDB.DSN,
			Table:         cfg.Sink.Table,
			RetentionDays: cfg.QuestDB.RetentionDays,
			SweepInterval: cfg.QuestDB.SweepInterval,
		}, logger.Logger)
		if err != nil {
			cancel()
			log.Fatalf("Failed to connect to QuestDB for retention: %v", err)
		}
		if err := sweeper.EnsureSchema(ctx); err != nil {
			slog.Warn("Failed to ensure table schema, writes may fail until the table exists",
				slog.String("error", err.Error()))
		}
		cancel()
		if err := sweeper.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start retention sweeper: %v", err)
		}
	} else {
		slog.Info("No QuestDB DSN configured, retention sweeping disabled")
	}

	// Initialize ingestion service and HTTP surface
	intakeService := service.NewIntakeService(norm, buf)
	handler := handlers.NewEventHandler(intakeService, rateLimiter, cfg.Buffer.BatchInterval, logger.Logger)
	router := server.NewRouter(handler)

	// Create server with config values
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Intake service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown: stop accepting, then flush what the buffer holds
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if err := disp.Stop(); err != nil {
		slog.Error("Dispatcher stop failed", slog.String("error", err.Error()))
	}

	if sweeper != nil {
		if err := sweeper.Stop(); err != nil {
			slog.Error("Retention sweeper stop failed", slog.String("error", err.Error()))
		}
	}

	slog.Info("Server stopped")
}
