// Package main is the entry point for the TOEIC daily practice bot.
//
// The architecture follows Clean Architecture and DDD:
//   - Domain: learners, questions, responses, progress analytics
//   - Application: use case orchestration (Commands/Queries)
//   - Infrastructure: Postgres, Redis, OpenAI, Telegram API, scheduler
//   - Interface: Telegram bot handlers, operational HTTP endpoints
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
	"github.com/toeic-hub/toeic-daily-bot/internal/application/command"
	"github.com/toeic-hub/toeic-daily-bot/internal/application/query"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
	"github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/external/openai"
	tgclient "github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/external/telegram"
	"github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/messaging"
	"github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/persistence/postgres"
	"github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/persistence/redis"
	"github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/scheduler"
	"github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/scheduler/jobs"
	"github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/service"
	httpserver "github.com/toeic-hub/toeic-daily-bot/internal/interface/http"
	httphandlers "github.com/toeic-hub/toeic-daily-bot/internal/interface/http/handlers"
	tgbot "github.com/toeic-hub/toeic-daily-bot/internal/interface/telegram"
	"github.com/toeic-hub/toeic-daily-bot/pkg/logger"
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
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg.Observability)
	slog.SetDefault(log)

	log.Info("starting toeic-daily-bot",
		"version", cfg.App.Version,
		"environment", string(cfg.App.Environment),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.URL == "" {
		return fmt.Errorf("database URL is not configured")
	}

	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("database connection: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.AutoMigrate {
		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		log.Info("migrations completed")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (optional; the bot degrades to uncached reads without it)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var progressCache *redis.ProgressCache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			progressCache = redis.NewProgressCache(redisCache, log)
			log.Info("Redis connection established")
		}
	}

	// Typed nils must not leak into the optional cache interfaces.
	var snapshotCache query.SnapshotCache
	var invalidator command.ProgressCache
	if progressCache != nil {
		snapshotCache = progressCache
		invalidator = progressCache
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	learnerRepo := postgres.NewLearnerRepository(dbConn)
	questionRepo := postgres.NewQuestionRepository(dbConn)
	responseRepo := postgres.NewResponseRepository(dbConn)
	progressRepo := postgres.NewProgressRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	busCfg := messaging.DefaultEventBusConfig()
	busCfg.Logger = log
	eventBus := messaging.NewEventBus(busCfg)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// Audit trail: every domain event lands in the structured log.
	_ = eventBus.SubscribeAll(func(ctx context.Context, event shared.Event) error {
		log.Debug("domain event",
			"type", string(event.EventType()),
			"aggregate_id", event.AggregateID(),
		)
		return nil
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 8. APPLICATION LAYER (Commands / Queries)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")
	ids := service.NewUUIDGenerator()

	recomputeCmd := command.NewRecomputeProgressHandler(
		learnerRepo, responseRepo, progressRepo, ids, invalidator, eventBus, nil)
	recordAnswerCmd := command.NewRecordAnswerHandler(
		learnerRepo, questionRepo, responseRepo, recomputeCmd, ids, eventBus)
	registerCmd := command.NewRegisterLearnerHandler(learnerRepo, ids, eventBus)
	updatePrefsCmd := command.NewUpdatePreferencesHandler(learnerRepo, eventBus)
	setSubscriptionCmd := command.NewSetSubscriptionHandler(learnerRepo, eventBus)

	progressQuery := query.NewGetProgressSummaryHandler(learnerRepo, progressRepo, snapshotCache)
	historyQuery := query.NewGetProgressHistoryHandler(learnerRepo, progressRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. EXTERNAL CLIENTS (OpenAI, Telegram transport)
	// ─────────────────────────────────────────────────────────────────────────
	var lessonGenerator *openai.Client
	if !cfg.OpenAI.Disabled {
		log.Info("initializing OpenAI client...", "model", cfg.OpenAI.Model)
		lessonGenerator, err = openai.NewClient(openai.Config{
			APIKey:   cfg.OpenAI.APIKey,
			Model:    cfg.OpenAI.Model,
			TTSModel: cfg.OpenAI.TTSModel,
			TTSVoice: cfg.OpenAI.TTSVoice,
		}, questionRepo, ids, log)
		if err != nil {
			return fmt.Errorf("openai client: %w", err)
		}
	} else {
		log.Warn("OpenAI disabled, daily lesson delivery will not run")
	}

	transportCfg := tgclient.DefaultClientConfig(cfg.Telegram.Token)
	transportCfg.Logger = log
	transportCfg.Debug = cfg.App.Debug
	transport := tgclient.NewClient(transportCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. SCHEDULER (daily lesson delivery, minute-tick)
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled && lessonGenerator != nil {
		log.Info("initializing scheduler...")
		sched = scheduler.New(scheduler.Config{Logger: log})

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
		log.Info("scheduler started")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. HTTP SERVER (health probes, read-only progress API)
	// ─────────────────────────────────────────────────────────────────────────
	var httpSrv *httpserver.Server
	if cfg.HTTP.Enabled {
		log.Info("starting HTTP server...", "port", cfg.HTTP.Port)

		checker := httphandlers.NewCompositeHealthChecker(cfg.App.Version)
		checker.AddCheck("postgres", dbConn.Ping)
		if redisCache != nil {
			checker.AddCheck("redis", redisCache.Ping)
		}

		httpCfg := httpserver.DefaultConfig()
		httpCfg.Host = cfg.HTTP.Host
		httpCfg.Port = cfg.HTTP.Port
		httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
		httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
		httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

		httpSrv = httpserver.NewServer(httpCfg, httpserver.Dependencies{
			GetProgressSummaryHandler: progressQuery,
			GetProgressHistoryHandler: historyQuery,
			Logger:                    newHTTPLogger(cfg.Observability),
			HealthChecker:             checker,
		})

		go func() {
			if err := <-httpSrv.StartAsync(); err != nil {
				log.Error("HTTP server failed", "error", err)
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 12. TELEGRAM BOT
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting Telegram bot...")
	botCfg := tgbot.DefaultBotConfig(cfg.Telegram.Token)
	botCfg.PollingTimeout = cfg.Telegram.PollingTimeout
	botCfg.MaxConcurrentUpdates = cfg.Telegram.MaxConcurrentUpdates
	botCfg.UserRateLimit = cfg.Telegram.UserRateLimit
	botCfg.Debug = cfg.App.Debug
	botCfg.Logger = log
	botCfg.GracefulShutdownTimeout = cfg.App.ShutdownTimeout

	bot, err := tgbot.NewBot(botCfg, tgbot.BotDependencies{
		LearnerRepo:        learnerRepo,
		RegisterCmd:        registerCmd,
		UpdatePrefsCmd:     updatePrefsCmd,
		SetSubscriptionCmd: setSubscriptionCmd,
		RecordAnswerCmd:    recordAnswerCmd,
		ProgressQuery:      progressQuery,
	})
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	if err := bot.Start(ctx); err != nil {
		return fmt.Errorf("start bot: %w", err)
	}
	log.Info("bot started, waiting for updates")

	// ─────────────────────────────────────────────────────────────────────────
	// 13. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	// Stop taking new updates first, then the background machinery.
	if err := bot.Stop(shutdownCtx); err != nil {
		log.Warn("bot shutdown", "error", err)
	}
	if sched != nil {
		if err := sched.Stop(); err != nil {
			log.Warn("scheduler shutdown", "error", err)
		}
	}
	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP server shutdown", "error", err)
		}
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

// newHTTPLogger builds the request logger used by the HTTP interface.
func newHTTPLogger(cfg config.ObservabilityConfig) *logger.Logger {
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.LogLevel),
		AddCaller: false,
	})
}
