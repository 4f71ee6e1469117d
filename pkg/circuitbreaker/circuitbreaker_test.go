package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail(context.Context) error { return errBoom }
func ok(context.Context) error   { return nil }

func newTestBreaker(now *time.Time, opts ...Option) *Breaker {
	b := New("test", opts...)
	b.now = func() time.Time { return *now }
	return b
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	b := newTestBreaker(&now, WithOpenAfter(3), WithCoolDown(time.Minute))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Execute(ctx, fail), errBoom)
	}
	require.NoError(t, b.Execute(ctx, ok), "success resets the failure streak")
	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, fail)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	var transitions []string
	b := newTestBreaker(&now,
		WithOpenAfter(1),
		WithCloseAfter(2),
		WithCoolDown(10*time.Second),
		WithOnTransition(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		}),
	)
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	require.Equal(t, StateOpen, b.State())

	now = now.Add(10 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Execute(ctx, ok))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Execute(ctx, ok))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	b := newTestBreaker(&now, WithOpenAfter(1), WithCoolDown(time.Second))
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	now = now.Add(time.Second)
	_ = b.Execute(ctx, fail)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_Fallback(t *testing.T) {
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	b := newTestBreaker(&now, WithOpenAfter(1))
	ctx := context.Background()

	_ = b.Execute(ctx, fail)

	var got error
	err := b.ExecuteWithFallback(ctx, ok, func(_ context.Context, reason error) error {
		got = reason
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, got, ErrOpen)
}

func TestBreaker_CountsFilter(t *testing.T) {
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	notFound := errors.New("not found")
	b := newTestBreaker(&now, WithOpenAfter(1), WithCounts(func(err error) bool { return !errors.Is(err, notFound) }))

	_ = b.Execute(context.Background(), func(context.Context) error { return notFound })
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_Reset(t *testing.T) {
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	b := newTestBreaker(&now, WithOpenAfter(1))
	_ = b.Execute(context.Background(), fail)
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}
