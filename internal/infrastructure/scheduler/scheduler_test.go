package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	fn   func(context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Description() string           { return "test job" }
func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestParseCron(t *testing.T) {
	base := time.Date(2026, 3, 4, 8, 7, 30, 0, time.UTC) // Wednesday

	tests := []struct {
		expr string
		want time.Time
	}{
		{"* * * * *", time.Date(2026, 3, 4, 8, 8, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 3, 4, 8, 15, 0, 0, time.UTC)},
		{"0 21 * * *", time.Date(2026, 3, 4, 21, 0, 0, 0, time.UTC)},
		{"30 7 * * 1-5", time.Date(2026, 3, 5, 7, 30, 0, 0, time.UTC)},
		{"0 0 * * 0", time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)},
		{"5,10 8 * * *", time.Date(2026, 3, 4, 8, 10, 0, 0, time.UTC)},
		{"0 9 1 * *", time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := ParseCron(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Next(base))
			assert.Equal(t, tt.expr, c.String())
		})
	}
}

func TestParseCron_Invalid(t *testing.T) {
	for _, expr := range []string{"", "* * * *", "60 * * * *", "* 24 * * *", "* * 0 * *", "*/0 * * * *", "5-1 * * * *", "a * * * *"} {
		_, err := ParseCron(expr)
		assert.Error(t, err, expr)
	}
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("@every 5m")
	require.NoError(t, err)
	assert.Equal(t, Every(5*time.Minute), s)
	assert.Equal(t, "@every 5m0s", s.String())

	s, err = ParseSchedule("*/5 * * * *")
	require.NoError(t, err)
	assert.IsType(t, &Cron{}, s)

	_, err = ParseSchedule("@every soon")
	assert.Error(t, err)
}

func TestScheduler_Register(t *testing.T) {
	s := New(Config{Logger: quiet()})
	job := funcJob{name: "a", fn: func(context.Context) error { return nil }}

	require.NoError(t, s.Register(job, Every(time.Minute)))
	assert.ErrorIs(t, s.Register(job, Every(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, Every(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(funcJob{name: "b"}, nil), ErrNilSchedule)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "@every 1m0s", jobs[0].Schedule)
}

func TestScheduler_RunNow(t *testing.T) {
	var results []JobResult
	s := New(Config{Logger: quiet(), OnResult: func(r JobResult) { results = append(results, r) }})
	boom := errors.New("boom")
	require.NoError(t, s.Register(funcJob{name: "fail", fn: func(context.Context) error { return boom }}, Every(time.Hour)))
	require.NoError(t, s.Register(funcJob{name: "panic", fn: func(context.Context) error { panic("x") }}, Every(time.Hour)))

	assert.ErrorIs(t, s.RunNow(context.Background(), "fail"), boom)
	assert.Error(t, s.RunNow(context.Background(), "panic"))
	assert.ErrorIs(t, s.RunNow(context.Background(), "missing"), ErrJobNotFound)

	require.Len(t, results, 2)
	assert.True(t, results[0].Manual)

	info := s.Jobs()
	assert.Equal(t, "fail", info[0].Name)
	assert.Equal(t, int64(1), info[0].FailCount)
	assert.Equal(t, "boom", info[0].LastError)
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := New(Config{Logger: quiet(), Tick: 5 * time.Millisecond})
	var runs atomic.Int32
	require.NoError(t, s.Register(funcJob{name: "tick", fn: func(context.Context) error {
		runs.Add(1)
		return nil
	}}, Every(10*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrNotStarted)
}

func TestScheduler_NoOverlap(t *testing.T) {
	s := New(Config{Logger: quiet(), Tick: 2 * time.Millisecond})
	var running, maxRunning atomic.Int32
	release := make(chan struct{})
	require.NoError(t, s.Register(funcJob{name: "slow", fn: func(ctx context.Context) error {
		n := running.Add(1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		running.Add(-1)
		return nil
	}}, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return running.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.ErrorIs(t, s.RunNow(context.Background(), "slow"), ErrJobRunning)
	close(release)
	require.NoError(t, s.Stop())
	assert.Equal(t, int32(1), maxRunning.Load())
}
