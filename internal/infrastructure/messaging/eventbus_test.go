package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

func TestEventBus_DeliversToSubscribers(t *testing.T) {
	bus := NewEventBus(DefaultEventBusConfig())
	defer bus.Close()

	var (
		mu       sync.Mutex
		received []shared.EventType
	)
	err := bus.Subscribe(shared.EventAnswerRecorded, func(ctx context.Context, e shared.Event) error {
		mu.Lock()
		received = append(received, e.EventType())
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	bus.Publish(context.Background(), shared.NewBaseEvent(shared.EventAnswerRecorded, "learner-1"))
	bus.Publish(context.Background(), shared.NewBaseEvent(shared.EventLessonDelivered, "learner-1"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1 && received[0] == shared.EventAnswerRecorded
	}, time.Second, 10*time.Millisecond)
}

func TestEventBus_SubscribeAllSeesEveryEvent(t *testing.T) {
	bus := NewEventBus(DefaultEventBusConfig())
	defer bus.Close()

	var (
		mu    sync.Mutex
		count int
	)
	require.NoError(t, bus.SubscribeAll(func(ctx context.Context, e shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	bus.Publish(context.Background(), shared.NewBaseEvent(shared.EventAnswerRecorded, "a"))
	bus.Publish(context.Background(), shared.NewBaseEvent(shared.EventProgressRecomputed, "a"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	}, time.Second, 10*time.Millisecond)
}

func TestEventBus_PanickingHandlerDoesNotCrash(t *testing.T) {
	bus := NewEventBus(DefaultEventBusConfig())

	require.NoError(t, bus.Subscribe(shared.EventAnswerRecorded, func(ctx context.Context, e shared.Event) error {
		panic("boom")
	}))

	bus.Publish(context.Background(), shared.NewBaseEvent(shared.EventAnswerRecorded, "a"))

	// Close waits for all in-flight handlers.
	require.NoError(t, bus.Close())

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalPublished)
}

func TestEventBus_ClosedBusRejectsSubscribe(t *testing.T) {
	bus := NewEventBus(DefaultEventBusConfig())
	require.NoError(t, bus.Close())

	err := bus.Subscribe(shared.EventAnswerRecorded, func(ctx context.Context, e shared.Event) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestEventBus_MetricsTrackFailures(t *testing.T) {
	bus := NewEventBus(DefaultEventBusConfig())

	require.NoError(t, bus.Subscribe(shared.EventDeliveryFailed, func(ctx context.Context, e shared.Event) error {
		return assert.AnError
	}))

	bus.Publish(context.Background(), shared.NewBaseEvent(shared.EventDeliveryFailed, "a"))
	require.NoError(t, bus.Close())

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.HandlerFailures)
	assert.Equal(t, float64(0), snap.HandlerSuccessRate)
}
