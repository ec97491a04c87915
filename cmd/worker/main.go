// Package main is the entry point for the delivery worker.
//
// The worker runs only the background machinery: the minute-tick scheduler
// with the daily lesson delivery job. Deploy it separately when the
// interactive bot and delivery should scale independently; run it alongside
// the bot binary with SCHEDULER_ENABLED=false on the bot side.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/toeic-hub/toeic-daily-bot/config"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
	"github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/external/openai"
	tgclient "github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/external/telegram"
	"github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/messaging"
	"github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/persistence/postgres"
	"github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/scheduler"
	"github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/scheduler/jobs"
	"github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := setupLogger(cfg.Observability)
	slog.SetDefault(log)

	log.Info("starting toeic-daily-bot worker",
		"version", cfg.App.Version,
		"environment", string(cfg.App.Environment),
	)

	if cfg.OpenAI.Disabled {
		return fmt.Errorf("worker requires OpenAI; set OPENAI_API_KEY or do not run the worker")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.URL == "" {
		return fmt.Errorf("database URL is not configured")
	}

	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("database connection: %w", err)
	}
	defer dbConn.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	learnerRepo := postgres.NewLearnerRepository(dbConn)
	questionRepo := postgres.NewQuestionRepository(dbConn)
	progressRepo := postgres.NewProgressRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT BUS & EXTERNAL CLIENTS
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultEventBusConfig()
	busCfg.Logger = log
	eventBus := messaging.NewEventBus(busCfg)
	defer func() { _ = eventBus.Close() }()

	// Audit trail: every domain event lands in the structured log.
	_ = eventBus.SubscribeAll(func(ctx context.Context, event shared.Event) error {
		log.Debug("domain event",
			"type", string(event.EventType()),
			"aggregate_id", event.AggregateID(),
		)
		return nil
	})

	ids := service.NewUUIDGenerator()

	lessonGenerator, err := openai.NewClient(openai.Config{
		APIKey:   cfg.OpenAI.APIKey,
		Model:    cfg.OpenAI.Model,
		TTSModel: cfg.OpenAI.TTSModel,
		TTSVoice: cfg.OpenAI.TTSVoice,
	}, questionRepo, ids, log)
	if err != nil {
		return fmt.Errorf("openai client: %w", err)
	}

	transportCfg := tgclient.DefaultClientConfig(cfg.Telegram.Token)
	transportCfg.Logger = log
	transport := tgclient.NewClient(transportCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{Logger: log})

	deliveryJob := jobs.NewDailyDeliveryJob(
		learnerRepo,
		progressRepo,
		lessonGenerator,
		lessonGenerator,
		transport,
		eventBus,
		log,
		jobs.DailyDeliveryConfig{
			SkipWeekends:   true,
			ListeningCount: cfg.Delivery.ListeningPerLesson,
			GrammarCount:   cfg.Delivery.GrammarPerLesson,
			Concurrency:    cfg.Delivery.MaxConcurrentLearners,
			Timeout:        cfg.Scheduler.JobTimeout,
		},
	)

	if err := sched.Register(deliveryJob, scheduler.MustParseCronExpression(scheduler.EveryMinute)); err != nil {
		return fmt.Errorf("register delivery job: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	log.Info("worker started, delivery job scheduled")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", "signal", sig.String())

	if err := sched.Stop(); err != nil {
		log.Warn("scheduler shutdown", "error", err)
	}

	log.Info("shutdown complete")
	return nil
}

// setupLogger builds the process-wide slog logger.
func setupLogger(cfg config.ObservabilityConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
