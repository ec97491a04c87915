// Package middleware contains Telegram bot middlewares for update processing.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOVERY MIDDLEWARE
// Catches panics in handlers so one broken handler never takes the bot down.
// Stack traces go to the log; the user sees a generic apology.
// ══════════════════════════════════════════════════════════════════════════════

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	// EnableStackTrace enables capturing stack traces.
	EnableStackTrace bool

	// UserErrorMessage is the message sent to users when a panic occurs.
	UserErrorMessage string

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultRecoveryConfig returns sensible defaults.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		EnableStackTrace: true,
		UserErrorMessage: "😔 Something went wrong. Please try again in a minute.",
	}
}

// PanicInfo describes a recovered panic.
type PanicInfo struct {
	// PanicValue is the raw panic value.
	PanicValue interface{}

	// StackTrace is the formatted stack trace.
	StackTrace string

	// TelegramID is the Telegram user ID, if known.
	TelegramID int64

	// Operation names the command or callback being processed.
	Operation string

	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

// RecoveryResult reports whether a panic was recovered.
type RecoveryResult struct {
	// Recovered is true when the handler panicked.
	Recovered bool

	// UserMessage is the text to send to the user after a panic.
	UserMessage string

	// Err is the handler's error when it returned normally.
	Err error
}

// RecoveryMiddleware recovers from handler panics.
type RecoveryMiddleware struct {
	config RecoveryConfig
	logger *slog.Logger
}

// NewRecoveryMiddleware creates a new recovery middleware.
func NewRecoveryMiddleware(config RecoveryConfig) *RecoveryMiddleware {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &RecoveryMiddleware{
		config: config,
		logger: config.Logger,
	}
}

// Execute runs fn, converting any panic into a RecoveryResult.
func (m *RecoveryMiddleware) Execute(ctx context.Context, telegramID int64, operation string, fn func() error) (result RecoveryResult) {
	defer func() {
		if r := recover(); r != nil {
			info := PanicInfo{
				PanicValue: r,
				TelegramID: telegramID,
				Operation:  operation,
				Timestamp:  time.Now().UTC(),
			}
			if m.config.EnableStackTrace {
				info.StackTrace = string(debug.Stack())
			}

			m.logger.Error("panic recovered in handler",
				"operation", operation,
				"telegram_id", telegramID,
				"panic", fmt.Sprintf("%v", r),
				"stack", info.StackTrace,
			)

			result = RecoveryResult{
				Recovered:   true,
				UserMessage: m.config.UserErrorMessage,
			}
		}
	}()

	return RecoveryResult{Err: fn()}
}
