package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/toeic-hub/toeic-daily-bot/internal/application/command"
	"github.com/toeic-hub/toeic-daily-bot/internal/application/query"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/external/telegram"
	"github.com/toeic-hub/toeic-daily-bot/internal/interface/telegram/handler"
	"github.com/toeic-hub/toeic-daily-bot/internal/interface/telegram/handler/callback"
	"github.com/toeic-hub/toeic-daily-bot/internal/interface/telegram/middleware"
	"github.com/toeic-hub/toeic-daily-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// BotConfig contains configuration for the Telegram bot.
type BotConfig struct {
	// Token is the Telegram Bot API token.
	Token string

	// PollingTimeout is the long polling timeout in seconds.
	PollingTimeout int

	// Debug enables debug logging.
	Debug bool

	// Logger for structured logging.
	Logger *slog.Logger

	// MaxConcurrentUpdates limits concurrent update processing.
	MaxConcurrentUpdates int

	// UserRateLimit is the per-user message budget per minute.
	UserRateLimit int

	// GracefulShutdownTimeout bounds the wait for in-flight handlers on stop.
	GracefulShutdownTimeout time.Duration
}

// DefaultBotConfig returns sensible defaults.
func DefaultBotConfig(token string) BotConfig {
	return BotConfig{
		Token:                   token,
		PollingTimeout:          30,
		Debug:                   false,
		MaxConcurrentUpdates:    100,
		UserRateLimit:           20,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// BotDependencies contains everything the bot's handlers need.
type BotDependencies struct {
	LearnerRepo learner.Repository

	RegisterCmd        *command.RegisterLearnerHandler
	UpdatePrefsCmd     *command.UpdatePreferencesHandler
	SetSubscriptionCmd *command.SetSubscriptionHandler
	RecordAnswerCmd    *command.RecordAnswerHandler

	ProgressQuery *query.GetProgressSummaryHandler
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

// Bot is the Telegram bot controller: it receives updates, runs them
// through middleware, and routes them to handlers.
type Bot struct {
	config BotConfig
	client *telegram.Client
	router *Router
	logger *slog.Logger

	rateLimiter *middleware.RateLimiter
	recovery    *middleware.RecoveryMiddleware

	running   bool
	runningMu sync.RWMutex
	updateSem chan struct{}
	wg        sync.WaitGroup

	stats *BotStats
}

// BotStats holds runtime statistics.
type BotStats struct {
	mu              sync.RWMutex
	StartedAt       time.Time
	UpdatesReceived int64
	UpdatesHandled  int64
	ErrorsCount     int64
	CommandsCount   map[string]int64
}

// NewBot creates the bot and wires every command and callback handler.
func NewBot(config BotConfig, deps BotDependencies) (*Bot, error) {
	if config.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MaxConcurrentUpdates <= 0 {
		config.MaxConcurrentUpdates = 100
	}

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if config.UserRateLimit > 0 {
		rateLimitCfg.MaxRequests = config.UserRateLimit
	}

	clientConfig := telegram.DefaultClientConfig(config.Token)
	clientConfig.Logger = config.Logger
	client := telegram.NewClient(clientConfig)

	progressCard := presenter.NewProgressCardPresenter()
	feedback := presenter.NewFeedbackPresenter()

	startHandler := handler.NewStartHandler(deps.RegisterCmd)
	statsHandler := handler.NewStatsHandler(deps.ProgressQuery, progressCard)
	settingsHandler := handler.NewSettingsHandler(deps.LearnerRepo, deps.UpdatePrefsCmd)
	subscribeHandler := handler.NewSubscribeHandler(deps.SetSubscriptionCmd)
	helpHandler := handler.NewHelpHandler()
	answerHandler := callback.NewAnswerHandler(deps.LearnerRepo, deps.RecordAnswerCmd, feedback)

	router := NewRouter(RouterConfig{
		Logger: config.Logger,
		Debug:  config.Debug,
	})

	router.RegisterCommand("start", CommandHandlerFunc(func(ctx context.Context, cmdCtx CommandContext) error {
		req := handler.StartRequest{TelegramID: cmdCtx.TelegramID}
		if cmdCtx.Message != nil && cmdCtx.Message.From != nil {
			req.FirstName = cmdCtx.Message.From.FirstName
			req.Username = cmdCtx.Message.From.Username
		}
		resp, err := startHandler.Handle(ctx, req)
		if err != nil {
			return err
		}
		return sendResponse(ctx, cmdCtx.Client, cmdCtx.ChatID, resp)
	}))

	router.RegisterCommand("stats", CommandHandlerFunc(func(ctx context.Context, cmdCtx CommandContext) error {
		resp, err := statsHandler.Handle(ctx, handler.StatsRequest{TelegramID: cmdCtx.TelegramID})
		if err != nil {
			return err
		}
		return sendResponse(ctx, cmdCtx.Client, cmdCtx.ChatID, resp)
	}))

	router.RegisterCommand("settings", CommandHandlerFunc(func(ctx context.Context, cmdCtx CommandContext) error {
		resp, err := settingsHandler.Handle(ctx, handler.SettingsRequest{
			TelegramID: cmdCtx.TelegramID,
			Args:       cmdCtx.Args,
		})
		if err != nil {
			return err
		}
		return sendResponse(ctx, cmdCtx.Client, cmdCtx.ChatID, resp)
	}))

	router.RegisterCommand("subscribe", CommandHandlerFunc(func(ctx context.Context, cmdCtx CommandContext) error {
		resp, err := subscribeHandler.Handle(ctx, handler.SubscribeRequest{TelegramID: cmdCtx.TelegramID, Active: true})
		if err != nil {
			return err
		}
		return sendResponse(ctx, cmdCtx.Client, cmdCtx.ChatID, resp)
	}))

	router.RegisterCommand("unsubscribe", CommandHandlerFunc(func(ctx context.Context, cmdCtx CommandContext) error {
		resp, err := subscribeHandler.Handle(ctx, handler.SubscribeRequest{TelegramID: cmdCtx.TelegramID, Active: false})
		if err != nil {
			return err
		}
		return sendResponse(ctx, cmdCtx.Client, cmdCtx.ChatID, resp)
	}))

	router.RegisterCommand("help", CommandHandlerFunc(func(ctx context.Context, cmdCtx CommandContext) error {
		resp, err := helpHandler.Handle(ctx)
		if err != nil {
			return err
		}
		return sendResponse(ctx, cmdCtx.Client, cmdCtx.ChatID, resp)
	}))

	router.RegisterCallbackPrefix(telegram.AnswerCallbackPrefix+":", answerCallbackRoute(answerHandler))

	bot := &Bot{
		config:      config,
		client:      client,
		router:      router,
		logger:      config.Logger,
		rateLimiter: middleware.NewRateLimiter(rateLimitCfg),
		recovery:    middleware.NewRecoveryMiddleware(middleware.DefaultRecoveryConfig()),
		updateSem:   make(chan struct{}, config.MaxConcurrentUpdates),
		stats: &BotStats{
			CommandsCount: make(map[string]int64),
		},
	}

	return bot, nil
}

// answerCallbackRoute adapts the answer handler to the callback route.
func answerCallbackRoute(h *callback.AnswerHandler) CallbackHandler {
	return callbackHandlerFunc(func(ctx context.Context, cbCtx CallbackContext) error {
		questionID, choice, ok := telegram.ParseAnswerCallback(cbCtx.Data)
		if !ok {
			return nil
		}

		// How long the question sat unanswered, from the keyboard
		// message timestamp. Clock skew or a missing message yield zero,
		// which records as "not reported".
		var timeTaken int
		if cbCtx.MessageDate > 0 {
			if secs := int(time.Since(time.Unix(cbCtx.MessageDate, 0)).Seconds()); secs > 0 {
				timeTaken = secs
			}
		}

		resp, err := h.Handle(ctx, callback.AnswerRequest{
			TelegramID:       cbCtx.TelegramID,
			QuestionID:       questionID,
			Choice:           choice,
			TimeTakenSeconds: timeTaken,
		})
		if err != nil {
			return err
		}

		_ = cbCtx.Client.AnswerCallbackQuery(ctx, cbCtx.QueryID, resp.Toast, false)

		if resp.Text == "" {
			return nil
		}
		_, err = cbCtx.Client.SendHTML(ctx, cbCtx.ChatID, resp.Text)
		return err
	})
}

// callbackHandlerFunc adapts a function to CallbackHandler.
type callbackHandlerFunc func(ctx context.Context, cbCtx CallbackContext) error

func (f callbackHandlerFunc) Handle(ctx context.Context, cbCtx CallbackContext) error {
	return f(ctx, cbCtx)
}

// sendResponse sends a handler response to a chat.
func sendResponse(ctx context.Context, client *telegram.Client, chatID int64, resp *handler.Response) error {
	if resp == nil || resp.Text == "" {
		return nil
	}

	params := telegram.SendMessageParams{
		ChatID:    chatID,
		Text:      resp.Text,
		ParseMode: "HTML",
	}
	if resp.Keyboard != nil {
		params.ReplyMarkup = resp.Keyboard
	}

	_, err := client.SendMessage(ctx, params)
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start verifies the token and begins long polling. It blocks until the
// context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.runningMu.Lock()
	if b.running {
		b.runningMu.Unlock()
		return errors.New("bot is already running")
	}
	b.running = true
	b.stats.StartedAt = time.Now()
	b.runningMu.Unlock()

	me, err := b.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify bot token: %w", err)
	}
	b.logger.Info("bot verified",
		"id", me.ID,
		"username", me.Username,
	)

	b.logger.Info("starting long polling")
	return b.client.StartPolling(ctx, func(ctx context.Context, update *telegram.Update) error {
		return b.handleUpdate(ctx, update)
	})
}

// Stop waits for in-flight handlers, bounded by the shutdown timeout.
func (b *Bot) Stop(ctx context.Context) error {
	b.runningMu.Lock()
	if !b.running {
		b.runningMu.Unlock()
		return nil
	}
	b.running = false
	b.runningMu.Unlock()

	b.logger.Info("stopping telegram bot")

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("all handlers completed")
	case <-time.After(b.config.GracefulShutdownTimeout):
		b.logger.Warn("graceful shutdown timeout exceeded")
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// IsRunning reports whether the bot is polling.
func (b *Bot) IsRunning() bool {
	b.runningMu.RLock()
	defer b.runningMu.RUnlock()
	return b.running
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// handleUpdate processes a single Telegram update.
func (b *Bot) handleUpdate(ctx context.Context, update *telegram.Update) error {
	select {
	case b.updateSem <- struct{}{}:
		defer func() { <-b.updateSem }()
	case <-ctx.Done():
		return ctx.Err()
	}

	b.wg.Add(1)
	defer b.wg.Done()

	b.stats.mu.Lock()
	b.stats.UpdatesReceived++
	b.stats.mu.Unlock()

	start := time.Now()

	var err error
	switch {
	case update.Message != nil:
		err = b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		err = b.handleCallbackQuery(ctx, update.CallbackQuery)
	default:
		return nil
	}

	if err != nil {
		b.stats.mu.Lock()
		b.stats.ErrorsCount++
		b.stats.mu.Unlock()
		b.logger.Error("failed to handle update",
			"update_id", update.UpdateID,
			"error", err,
			"duration", time.Since(start),
		)
	} else {
		b.stats.mu.Lock()
		b.stats.UpdatesHandled++
		b.stats.mu.Unlock()
	}

	return err
}

// handleMessage processes an incoming message.
func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) error {
	if msg == nil || msg.From == nil {
		return nil
	}

	cmd := telegram.ExtractCommand(msg)
	if cmd == "" {
		// Plain text outside a command; nothing to do.
		return nil
	}

	telegramID := msg.From.ID
	chatID := msg.Chat.ID

	b.stats.mu.Lock()
	b.stats.CommandsCount[cmd]++
	b.stats.mu.Unlock()

	limit := b.rateLimiter.Check(telegramID)
	if !limit.Allowed {
		text := fmt.Sprintf("⏳ Too many requests. Try again in %d seconds.", int(limit.RetryAfter.Seconds())+1)
		_, err := b.client.SendHTML(ctx, chatID, text)
		return err
	}

	result := b.recovery.Execute(ctx, telegramID, "/"+cmd, func() error {
		return b.router.HandleCommand(ctx, cmd, CommandContext{
			TelegramID: telegramID,
			ChatID:     chatID,
			MessageID:  msg.MessageID,
			Args:       telegram.ExtractCommandArgs(msg),
			Message:    msg,
			Client:     b.client,
		})
	})

	if result.Recovered {
		_, err := b.client.SendHTML(ctx, chatID, result.UserMessage)
		return err
	}
	return result.Err
}

// handleCallbackQuery processes an inline keyboard callback.
func (b *Bot) handleCallbackQuery(ctx context.Context, cq *telegram.CallbackQuery) error {
	if cq == nil || cq.From == nil {
		return nil
	}

	telegramID := cq.From.ID
	var chatID, messageID, messageDate int64
	if cq.Message != nil {
		chatID = cq.Message.Chat.ID
		messageID = cq.Message.MessageID
		messageDate = cq.Message.Date
	}

	limit := b.rateLimiter.Check(telegramID)
	if !limit.Allowed {
		return b.client.AnswerCallbackQuery(ctx, cq.ID, "⏳ Slow down a little.", true)
	}

	result := b.recovery.Execute(ctx, telegramID, "callback:"+cq.Data, func() error {
		return b.router.HandleCallback(ctx, cq.Data, CallbackContext{
			TelegramID:  telegramID,
			ChatID:      chatID,
			MessageID:   messageID,
			MessageDate: messageDate,
			QueryID:     cq.ID,
			Data:        cq.Data,
			Client:      b.client,
		})
	})

	if result.Recovered {
		_ = b.client.AnswerCallbackQuery(ctx, cq.ID, "", false)
		if chatID != 0 {
			_, _ = b.client.SendHTML(ctx, chatID, result.UserMessage)
		}
		return nil
	}
	return result.Err
}

// ══════════════════════════════════════════════════════════════════════════════
// INTROSPECTION
// ══════════════════════════════════════════════════════════════════════════════

// Client returns the Telegram client for direct API access.
func (b *Bot) Client() *telegram.Client {
	return b.client
}

// Stats returns a snapshot of runtime statistics.
func (b *Bot) Stats() map[string]interface{} {
	b.stats.mu.RLock()
	defer b.stats.mu.RUnlock()

	commands := make(map[string]int64, len(b.stats.CommandsCount))
	for k, v := range b.stats.CommandsCount {
		commands[k] = v
	}

	return map[string]interface{}{
		"started_at":       b.stats.StartedAt,
		"uptime":           time.Since(b.stats.StartedAt).String(),
		"updates_received": b.stats.UpdatesReceived,
		"updates_handled":  b.stats.UpdatesHandled,
		"errors_count":     b.stats.ErrorsCount,
		"commands_count":   commands,
		"running":          b.IsRunning(),
	}
}
