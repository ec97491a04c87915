// Package messaging implements the in-process event bus that fans domain
// events out to subscribers. Publishing is fire-and-forget: command handlers
// and the delivery job never fail because a subscriber did.
package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// Handler processes a single domain event.
type Handler func(ctx context.Context, event shared.Event) error

// ErrEventBusClosed is returned when subscribing to a closed bus.
var ErrEventBusClosed = errors.New("event bus is closed")

// EventBus is an in-memory event bus. Suitable for a single-instance bot;
// handlers run asynchronously on a bounded worker pool.
type EventBus struct {
	mu             sync.RWMutex
	handlers       map[shared.EventType][]Handler
	allHandlers    []Handler
	workerPool     chan struct{}
	handlerTimeout time.Duration
	logger         *slog.Logger
	metrics        *Metrics
	closed         bool
	closeCh        chan struct{}
	wg             sync.WaitGroup
}

// EventBusConfig contains configuration for EventBus.
type EventBusConfig struct {
	// WorkerPoolSize is the number of concurrent handler executions.
	WorkerPoolSize int

	// HandlerTimeout bounds each handler invocation.
	HandlerTimeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultEventBusConfig returns sensible defaults.
func DefaultEventBusConfig() EventBusConfig {
	return EventBusConfig{
		WorkerPoolSize: 10,
		HandlerTimeout: 30 * time.Second,
	}
}

// NewEventBus creates a new in-memory event bus.
func NewEventBus(config EventBusConfig) *EventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = 30 * time.Second
	}

	return &EventBus{
		handlers:       make(map[shared.EventType][]Handler),
		allHandlers:    make([]Handler, 0),
		workerPool:     make(chan struct{}, config.WorkerPoolSize),
		handlerTimeout: config.HandlerTimeout,
		logger:         config.Logger,
		metrics:        NewMetrics(),
		closeCh:        make(chan struct{}),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *EventBus) Subscribe(eventType shared.EventType, handler Handler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("subscribed handler", "event_type", eventType)

	return nil
}

// SubscribeAll registers a handler for all events.
func (b *EventBus) SubscribeAll(handler Handler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.allHandlers = append(b.allHandlers, handler)
	b.logger.Debug("subscribed global handler")

	return nil
}

// Publish sends an event to all subscribed handlers. It never blocks on
// handler execution and never returns an error to the caller.
func (b *EventBus) Publish(ctx context.Context, event shared.Event) {
	if event == nil {
		return
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}

	handlers := make([]Handler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	b.mu.RUnlock()

	b.metrics.RecordPublish(event.EventType())

	if len(handlers) == 0 {
		b.logger.Debug("no handlers for event", "event_type", event.EventType())
		return
	}

	for _, handler := range handlers {
		b.executeAsync(event, handler)
	}
}

// executeAsync executes a handler asynchronously using the worker pool.
func (b *EventBus) executeAsync(event shared.Event, handler Handler) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		select {
		case b.workerPool <- struct{}{}:
			defer func() { <-b.workerPool }()
		case <-b.closeCh:
			return
		}

		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("event handler panicked",
					"event_type", event.EventType(),
					"panic", r,
				)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), b.handlerTimeout)
		defer cancel()

		start := time.Now()
		err := handler(ctx, event)
		duration := time.Since(start)

		b.metrics.RecordHandlerExecution(event.EventType(), duration, err == nil)

		if err != nil {
			b.logger.Error("event handler failed",
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"duration", duration,
				"error", err,
			)
		}
	}()
}

// Close waits for pending handlers and shuts the bus down.
func (b *EventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	b.mu.Unlock()

	b.wg.Wait()

	b.logger.Info("event bus closed")
	return nil
}

// Metrics returns the current metrics.
func (b *EventBus) Metrics() *Metrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics tracks event bus performance.
type Metrics struct {
	mu sync.RWMutex

	publishedTotal       map[shared.EventType]int64
	handlerExecutions    int64
	handlerSuccesses     int64
	handlerFailures      int64
	handlerTotalDuration time.Duration
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		publishedTotal: make(map[shared.EventType]int64),
	}
}

// RecordPublish records a published event.
func (m *Metrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.publishedTotal[eventType]++
}

// RecordHandlerExecution records a handler execution.
func (m *Metrics) RecordHandlerExecution(eventType shared.EventType, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlerExecutions++
	m.handlerTotalDuration += duration

	if success {
		m.handlerSuccesses++
	} else {
		m.handlerFailures++
	}
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var published int64
	for _, v := range m.publishedTotal {
		published += v
	}

	avgDuration := time.Duration(0)
	if m.handlerExecutions > 0 {
		avgDuration = m.handlerTotalDuration / time.Duration(m.handlerExecutions)
	}

	successRate := 1.0
	if m.handlerExecutions > 0 {
		successRate = float64(m.handlerSuccesses) / float64(m.handlerExecutions)
	}

	return MetricsSnapshot{
		TotalPublished:         published,
		TotalHandlerExecs:      m.handlerExecutions,
		HandlerFailures:        m.handlerFailures,
		HandlerSuccessRate:     successRate,
		AverageHandlerDuration: avgDuration,
	}
}

// MetricsSnapshot is a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	TotalPublished         int64
	TotalHandlerExecs      int64
	HandlerFailures        int64
	HandlerSuccessRate     float64
	AverageHandlerDuration time.Duration
}
