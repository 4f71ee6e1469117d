// Package scheduler runs background jobs of the ClassMark worker, such as
// closing finished class meetings.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Job is a unit of background work.
type Job interface {
	// Name is unique within a scheduler.
	Name() string

	// Run executes the job. ctx is cancelled when the scheduler stops.
	Run(ctx context.Context) error

	Description() string
}

// Schedule yields the next run time after t.
type Schedule interface {
	Next(t time.Time) time.Time
	String() string
}

// JobResult is the outcome of one run.
type JobResult struct {
	JobName   string
	StartedAt time.Time
	Duration  time.Duration
	Manual    bool
	Err       error
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name        string
	Description string
	Schedule    string
	Running     bool
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastError   string
}

var (
	ErrNilJob           = errors.New("job cannot be nil")
	ErrNilSchedule      = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists = errors.New("job already exists")
	ErrJobNotFound      = errors.New("job not found")
	ErrJobRunning       = errors.New("job is already running")
	ErrAlreadyStarted   = errors.New("scheduler is already running")
	ErrNotStarted       = errors.New("scheduler is not running")
)

type entry struct {
	job       Job
	schedule  Schedule
	running   bool
	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	failCount int64
	lastErr   error
}

// Config configures a Scheduler.
type Config struct {
	Logger   *slog.Logger
	Location *time.Location

	// Tick is how often due jobs are checked.
	Tick time.Duration

	// OnResult is called after every run.
	OnResult func(JobResult)
}

// Scheduler starts registered jobs when their schedule comes due. A job never
// overlaps with itself: a due job that is still running is skipped.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*entry
	cancel  context.CancelFunc
	ctx     context.Context
	wg      sync.WaitGroup
	started bool

	logger   *slog.Logger
	loc      *time.Location
	tick     time.Duration
	onResult func(JobResult)
	now      func() time.Time
}

// New creates a stopped scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	return &Scheduler{
		jobs:     make(map[string]*entry),
		logger:   cfg.Logger,
		loc:      cfg.Location,
		tick:     cfg.Tick,
		onResult: cfg.OnResult,
		now:      time.Now,
	}
}

// Register adds a job.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}
	e := &entry{job: job, schedule: schedule, nextRun: schedule.Next(s.now().In(s.loc))}
	s.jobs[name] = e

	s.logger.Info("job registered",
		"job", name,
		"schedule", schedule.String(),
		"next_run", e.nextRun.Format(time.RFC3339),
	)
	return nil
}

// Start launches the loop. Stop or cancelling ctx ends it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	s.wg.Add(1)
	go s.loop(s.ctx)

	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop cancels running jobs and waits for them.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now().In(s.loc)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.jobs {
		if e.nextRun.IsZero() || now.Before(e.nextRun) {
			continue
		}
		e.nextRun = e.schedule.Next(now)
		if e.running {
			s.logger.Warn("job still running, skipping", "job", e.job.Name())
			continue
		}
		e.running = true
		s.wg.Add(1)
		go func(e *entry) {
			defer s.wg.Done()
			_ = s.execute(ctx, e, false)
		}(e)
	}
}

// RunNow runs a job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if e.running {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	e.running = true
	s.mu.Unlock()

	return s.execute(ctx, e, true)
}

func (s *Scheduler) execute(ctx context.Context, e *entry, manual bool) error {
	name := e.job.Name()
	started := s.now()

	err := safeRun(ctx, e.job)
	result := JobResult{JobName: name, StartedAt: started, Duration: time.Since(started), Manual: manual, Err: err}

	s.mu.Lock()
	e.running = false
	e.lastRun = started
	e.runCount++
	e.lastErr = err
	if err != nil {
		e.failCount++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", name, "duration", result.Duration.String(), "manual", manual, "error", err)
	} else {
		s.logger.Info("job completed", "job", name, "duration", result.Duration.String(), "manual", manual)
	}
	if s.onResult != nil {
		s.onResult(result)
	}
	return err
}

func safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), p)
		}
	}()
	return job.Run(ctx)
}

// Jobs lists registered jobs sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for name, e := range s.jobs {
		info := JobInfo{
			Name:        name,
			Description: e.job.Description(),
			Schedule:    e.schedule.String(),
			Running:     e.running,
			LastRun:     e.lastRun,
			NextRun:     e.nextRun,
			RunCount:    e.runCount,
			FailCount:   e.failCount,
		}
		if e.lastErr != nil {
			info.LastError = e.lastErr.Error()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
