package telegram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_DispatchesRegisteredCommand(t *testing.T) {
	router := NewRouter(RouterConfig{})

	var handled string
	router.RegisterCommand("stats", CommandHandlerFunc(func(ctx context.Context, cmdCtx CommandContext) error {
		handled = "stats:" + cmdCtx.Args
		return nil
	}))

	err := router.HandleCommand(context.Background(), "stats", CommandContext{Args: "week"})
	require.NoError(t, err)
	assert.Equal(t, "stats:week", handled)
}

func TestRouter_UnknownCommandFallsBack(t *testing.T) {
	router := NewRouter(RouterConfig{})

	var fellBack bool
	router.SetUnknownCommandHandler(CommandHandlerFunc(func(ctx context.Context, cmdCtx CommandContext) error {
		fellBack = true
		return nil
	}))

	err := router.HandleCommand(context.Background(), "nope", CommandContext{})
	require.NoError(t, err)
	assert.True(t, fellBack)
}

func TestRouter_CallbackLongestPrefixWins(t *testing.T) {
	router := NewRouter(RouterConfig{})

	var matched string
	router.RegisterCallbackPrefix("ans:", callbackHandlerFunc(func(ctx context.Context, cbCtx CallbackContext) error {
		matched = "short"
		return nil
	}))
	router.RegisterCallbackPrefix("ans:special:", callbackHandlerFunc(func(ctx context.Context, cbCtx CallbackContext) error {
		matched = "long"
		return nil
	}))

	err := router.HandleCallback(context.Background(), "ans:special:q1", CallbackContext{Data: "ans:special:q1"})
	require.NoError(t, err)
	assert.Equal(t, "long", matched)

	err = router.HandleCallback(context.Background(), "ans:q1:A", CallbackContext{Data: "ans:q1:A"})
	require.NoError(t, err)
	assert.Equal(t, "short", matched)
}

func TestRouter_UnknownCallbackIsIgnored(t *testing.T) {
	router := NewRouter(RouterConfig{})

	err := router.HandleCallback(context.Background(), "mystery:1", CallbackContext{Data: "mystery:1"})
	assert.NoError(t, err)
}

func TestRouter_RegisteredCommands(t *testing.T) {
	router := NewRouter(RouterConfig{})
	router.RegisterCommand("start", CommandHandlerFunc(func(ctx context.Context, cmdCtx CommandContext) error { return nil }))
	router.RegisterCommand("stats", CommandHandlerFunc(func(ctx context.Context, cmdCtx CommandContext) error { return nil }))

	assert.ElementsMatch(t, []string{"start", "stats"}, router.RegisteredCommands())
}
