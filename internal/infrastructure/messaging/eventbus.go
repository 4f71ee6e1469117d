// Package messaging implements the in-process event bus of ClassMark Hub.
package messaging

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/shared"
)

var (
	// ErrEventBusClosed is returned when operations are attempted on a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("handler panicked")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// Config configures InMemoryEventBus.
type Config struct {
	// Async runs handlers on a bounded pool of goroutines.
	Async bool

	// Workers bounds concurrent async handlers.
	Workers int

	Logger *slog.Logger

	// Observe, when set, is called after every handler run.
	Observe func(eventType shared.EventType, took time.Duration, err error)
}

// DefaultConfig returns async delivery with 8 workers.
func DefaultConfig() Config {
	return Config{Async: true, Workers: 8}
}

// InMemoryEventBus implements shared.EventBus inside one process.
// Publish never fails because of a handler: handler errors and panics are logged.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[shared.EventType][]shared.EventHandler
	all      []shared.EventHandler
	closed   bool

	async   bool
	slots   chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger
	observe func(shared.EventType, time.Duration, error)

	published atomic.Int64
	failed    atomic.Int64
}

// NewInMemoryEventBus creates a bus.
func NewInMemoryEventBus(cfg Config) *InMemoryEventBus {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	return &InMemoryEventBus{
		handlers: make(map[shared.EventType][]shared.EventHandler),
		async:    cfg.Async,
		slots:    make(chan struct{}, cfg.Workers),
		logger:   cfg.Logger,
		observe:  cfg.Observe,
	}
}

// Subscribe registers a handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// SubscribeAll registers a handler for every event.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	b.all = append(b.all, handler)
	return nil
}

// Publish delivers event to its subscribers.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	specific := b.handlers[event.EventType()]
	handlers := make([]shared.EventHandler, 0, len(specific)+len(b.all))
	handlers = append(handlers, specific...)
	handlers = append(handlers, b.all...)
	// Add to the wait group under the read lock so Close cannot miss it.
	if b.async {
		b.wg.Add(len(handlers))
	}
	b.mu.RUnlock()

	b.published.Add(1)

	for _, h := range handlers {
		if b.async {
			go func(h shared.EventHandler) {
				defer b.wg.Done()
				b.slots <- struct{}{}
				defer func() { <-b.slots }()
				b.run(event, h)
			}(h)
			continue
		}
		b.run(event, h)
	}
	return nil
}

func (b *InMemoryEventBus) run(event shared.Event, h shared.EventHandler) {
	start := time.Now()
	err := safeCall(event, h)
	took := time.Since(start)

	if err != nil {
		b.failed.Add(1)
		b.logger.Error("event handler failed",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
	}
	if b.observe != nil {
		b.observe(event.EventType(), took, err)
	}
}

func safeCall(event shared.Event, h shared.EventHandler) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrHandlerPanic, p, debug.Stack())
		}
	}()
	return h(event)
}

// Close stops accepting events and waits for running handlers.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// Stats reports published events and failed handler runs.
func (b *InMemoryEventBus) Stats() (published, failed int64) {
	return b.published.Load(), b.failed.Load()
}
