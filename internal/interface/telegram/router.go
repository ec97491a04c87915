// Package telegram implements the Telegram bot interface for the TOEIC
// daily practice bot. It is the entry point for all learner interactions:
// commands, answer callbacks, and the bot lifecycle.
package telegram

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/external/telegram"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// Routes incoming updates to registered handlers.
// ══════════════════════════════════════════════════════════════════════════════

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// Debug enables debug logging for routing decisions.
	Debug bool
}

// CommandContext carries a parsed command through routing.
type CommandContext struct {
	// TelegramID is the user's Telegram ID.
	TelegramID int64

	// ChatID is the chat the command was sent in.
	ChatID int64

	// MessageID is the ID of the message containing the command.
	MessageID int64

	// Args is the text after the command.
	Args string

	// Message is the original Telegram message.
	Message *telegram.Message

	// Client is the Telegram client for sending responses.
	Client *telegram.Client
}

// CallbackContext carries a callback query through routing.
type CallbackContext struct {
	// TelegramID is the user's Telegram ID.
	TelegramID int64

	// ChatID is the chat the callback originated in.
	ChatID int64

	// MessageID is the message carrying the inline keyboard.
	MessageID int64

	// MessageDate is the Unix timestamp the keyboard message was sent
	// at; zero when Telegram omitted the message.
	MessageDate int64

	// QueryID is the callback query ID (for answering).
	QueryID string

	// Data is the callback data string.
	Data string

	// Client is the Telegram client for sending responses.
	Client *telegram.Client
}

// CommandHandler processes one bot command.
type CommandHandler interface {
	Handle(ctx context.Context, cmdCtx CommandContext) error
}

// CallbackHandler processes one callback query.
type CallbackHandler interface {
	Handle(ctx context.Context, cbCtx CallbackContext) error
}

// CommandHandlerFunc adapts a function to CommandHandler.
type CommandHandlerFunc func(ctx context.Context, cmdCtx CommandContext) error

// Handle implements CommandHandler.
func (f CommandHandlerFunc) Handle(ctx context.Context, cmdCtx CommandContext) error {
	return f(ctx, cmdCtx)
}

// Router routes Telegram updates to registered handlers.
type Router struct {
	config RouterConfig
	logger *slog.Logger

	mu               sync.RWMutex
	commandHandlers  map[string]CommandHandler
	callbackHandlers map[string]CallbackHandler

	// unknownCommand handles commands with no registered handler.
	unknownCommand CommandHandler
}

// NewRouter creates a new router.
func NewRouter(config RouterConfig) *Router {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	r := &Router{
		config:           config,
		logger:           config.Logger,
		commandHandlers:  make(map[string]CommandHandler),
		callbackHandlers: make(map[string]CallbackHandler),
	}
	r.unknownCommand = CommandHandlerFunc(r.handleUnknownCommand)

	return r
}

// RegisterCommand registers a handler for a command (without the leading "/").
func (r *Router) RegisterCommand(command string, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commandHandlers[command] = handler

	if r.config.Debug {
		r.logger.Debug("registered command handler", "command", command)
	}
}

// RegisterCallbackPrefix registers a handler for callbacks matching a prefix.
// The prefix should include the trailing delimiter (e.g. "ans:").
func (r *Router) RegisterCallbackPrefix(prefix string, handler CallbackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.callbackHandlers[prefix] = handler

	if r.config.Debug {
		r.logger.Debug("registered callback prefix handler", "prefix", prefix)
	}
}

// SetUnknownCommandHandler replaces the handler for unknown commands.
func (r *Router) SetUnknownCommandHandler(handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unknownCommand = handler
}

// HandleCommand routes a command to its handler.
func (r *Router) HandleCommand(ctx context.Context, command string, cmdCtx CommandContext) error {
	r.mu.RLock()
	h, ok := r.commandHandlers[command]
	unknown := r.unknownCommand
	r.mu.RUnlock()

	if !ok {
		if r.config.Debug {
			r.logger.Debug("no handler for command", "command", command)
		}
		return unknown.Handle(ctx, cmdCtx)
	}

	return h.Handle(ctx, cmdCtx)
}

// HandleCallback routes a callback query by longest matching prefix.
func (r *Router) HandleCallback(ctx context.Context, data string, cbCtx CallbackContext) error {
	r.mu.RLock()
	var (
		matchedPrefix  string
		matchedHandler CallbackHandler
	)
	for prefix, h := range r.callbackHandlers {
		if strings.HasPrefix(data, prefix) && len(prefix) > len(matchedPrefix) {
			matchedPrefix = prefix
			matchedHandler = h
		}
	}
	r.mu.RUnlock()

	if matchedHandler == nil {
		r.logger.Warn("unknown callback", "data", data)
		return nil
	}

	return matchedHandler.Handle(ctx, cbCtx)
}

// RegisteredCommands returns the registered command names.
func (r *Router) RegisteredCommands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make([]string, 0, len(r.commandHandlers))
	for cmd := range r.commandHandlers {
		commands = append(commands, cmd)
	}
	return commands
}

// handleUnknownCommand replies with the command list.
func (r *Router) handleUnknownCommand(ctx context.Context, cmdCtx CommandContext) error {
	text := "❓ <b>Unknown command</b>\n\n" +
		"Available commands:\n" +
		"• /start — subscribe to daily practice\n" +
		"• /stats — your progress today\n" +
		"• /settings — delivery time, timezone, difficulty, target\n" +
		"• /subscribe — resume daily lessons\n" +
		"• /unsubscribe — pause daily lessons\n" +
		"• /help — how the bot works"

	_, err := cmdCtx.Client.SendHTML(ctx, cmdCtx.ChatID, text)
	return err
}
