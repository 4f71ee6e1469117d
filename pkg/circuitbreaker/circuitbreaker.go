// Package circuitbreaker stops calling a failing dependency for a while and
// lets callers fall back to a slower path.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a breaker.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-down has elapsed.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrOpen is returned while the breaker rejects calls.
	ErrOpen = errors.New("circuit breaker is open")

	// ErrProbeLimit is returned when all half-open probe slots are taken.
	ErrProbeLimit = errors.New("circuit breaker probe limit reached")
)

// Settings configure a breaker.
type Settings struct {
	Name string

	// OpenAfter consecutive failures trip the breaker.
	OpenAfter int

	// CloseAfter consecutive half-open successes close it again.
	CloseAfter int

	// CoolDown is how long the breaker stays open.
	CoolDown time.Duration

	// Probes is the number of concurrent calls allowed while half-open.
	Probes int

	// OnTransition is called with the lock held; keep it short.
	OnTransition func(name string, from, to State)

	// Counts decides whether an error counts against the dependency.
	// Nil counts every non-nil error.
	Counts func(error) bool
}

// Option mutates Settings.
type Option func(*Settings)

// WithOpenAfter sets the failure threshold.
func WithOpenAfter(n int) Option {
	return func(s *Settings) {
		if n > 0 {
			s.OpenAfter = n
		}
	}
}

// WithCloseAfter sets the success threshold.
func WithCloseAfter(n int) Option {
	return func(s *Settings) {
		if n > 0 {
			s.CloseAfter = n
		}
	}
}

// WithCoolDown sets how long the breaker stays open.
func WithCoolDown(d time.Duration) Option {
	return func(s *Settings) {
		if d > 0 {
			s.CoolDown = d
		}
	}
}

// WithProbes sets the half-open concurrency.
func WithProbes(n int) Option {
	return func(s *Settings) {
		if n > 0 {
			s.Probes = n
		}
	}
}

// WithOnTransition registers a state change callback.
func WithOnTransition(fn func(name string, from, to State)) Option {
	return func(s *Settings) { s.OnTransition = fn }
}

// WithCounts sets the failure classifier.
func WithCounts(fn func(error) bool) Option {
	return func(s *Settings) { s.Counts = fn }
}

// Breaker is safe for concurrent use.
type Breaker struct {
	settings Settings
	now      func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	probes    int
	openedAt  time.Time
}

// New creates a closed breaker.
func New(name string, opts ...Option) *Breaker {
	s := Settings{
		Name:       name,
		OpenAfter:  5,
		CloseAfter: 2,
		CoolDown:   30 * time.Second,
		Probes:     1,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &Breaker{settings: s, now: time.Now}
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.settings.Name
}

// State returns the current state, moving open to half-open when the
// cool-down has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	return b.state
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// ExecuteWithFallback runs fallback when the breaker rejects the call.
// Errors returned by fn itself are passed through unchanged.
func (b *Breaker) ExecuteWithFallback(ctx context.Context, fn func(context.Context) error, fallback func(context.Context, error) error) error {
	err := b.Execute(ctx, fn)
	if errors.Is(err, ErrOpen) || errors.Is(err, ErrProbeLimit) {
		return fallback(ctx, err)
	}
	return err
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
	b.failures = 0
}

func (b *Breaker) refresh() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.CoolDown {
		b.transition(StateHalfOpen)
	}
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refresh()
	switch b.state {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if b.probes >= b.settings.Probes {
			return ErrProbeLimit
		}
		b.probes++
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := err != nil
	if failed && b.settings.Counts != nil {
		failed = b.settings.Counts(err)
	}

	if b.state == StateHalfOpen && b.probes > 0 {
		b.probes--
	}

	if failed {
		b.successes = 0
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.settings.OpenAfter {
			b.transition(StateOpen)
		}
		return
	}

	b.failures = 0
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.settings.CloseAfter {
			b.transition(StateClosed)
		}
	}
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.successes = 0
	b.probes = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}
	if to == StateClosed {
		b.failures = 0
	}
	if b.settings.OnTransition != nil {
		b.settings.OnTransition(b.settings.Name, from, to)
	}
}

// CacheBreaker is tuned for Redis, which every caller treats as optional:
// give up on it quickly and retry after a short pause.
func CacheBreaker(onTransition func(name string, from, to State), opts ...Option) *Breaker {
	base := []Option{
		WithOpenAfter(3),
		WithCloseAfter(1),
		WithCoolDown(10 * time.Second),
		WithProbes(1),
		WithOnTransition(onTransition),
	}
	return New("redis-cache", append(base, opts...)...)
}
