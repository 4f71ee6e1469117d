// Package jobs contains the background jobs run by the ClassMark worker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/classmark/classmark-hub/internal/application/command"
	"github.com/classmark/classmark-hub/pkg/timeutil"
)

// Closer closes the class meetings of one day.
type Closer interface {
	Handle(ctx context.Context, cmd command.CloseAttendanceCommand) (*command.CloseAttendanceResult, error)
}

// CloseAttendanceJob records automatic absences for meetings that have ended.
// The first run of every campus day also closes the previous day, so
// meetings that ended while the worker was down are not left open.
type CloseAttendanceJob struct {
	closer  Closer
	clock   *timeutil.Clock
	timeout time.Duration
	logger  *slog.Logger

	mu         sync.Mutex
	caughtUpOn time.Time
}

// NewCloseAttendanceJob creates the job.
func NewCloseAttendanceJob(closer Closer, clock *timeutil.Clock, timeout time.Duration, logger *slog.Logger) *CloseAttendanceJob {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &CloseAttendanceJob{closer: closer, clock: clock, timeout: timeout, logger: logger}
}

// Name implements scheduler.Job.
func (j *CloseAttendanceJob) Name() string { return "close_attendance" }

// Description implements scheduler.Job.
func (j *CloseAttendanceJob) Description() string {
	return "marks enrolled students without a mark absent once a class has ended"
}

// Run implements scheduler.Job.
func (j *CloseAttendanceJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	today := j.clock.Today()

	j.mu.Lock()
	catchUp := !j.caughtUpOn.Equal(today)
	j.mu.Unlock()

	if catchUp {
		yesterday := today.AddDate(0, 0, -1)
		if err := j.close(ctx, yesterday); err != nil {
			return err
		}
		j.mu.Lock()
		j.caughtUpOn = today
		j.mu.Unlock()
	}

	return j.close(ctx, today)
}

func (j *CloseAttendanceJob) close(ctx context.Context, day time.Time) error {
	res, err := j.closer.Handle(ctx, command.CloseAttendanceCommand{Date: day})
	if err != nil {
		return fmt.Errorf("close attendance for %s: %w", timeutil.FormatDateStr(day), err)
	}
	if res.AbsencesRecorded > 0 || res.EntriesSkipped > 0 {
		j.logger.Info("attendance closed",
			"class_date", timeutil.FormatDateStr(day),
			"entries_closed", res.EntriesClosed,
			"entries_skipped", res.EntriesSkipped,
			"absences", res.AbsencesRecorded,
		)
	}
	return nil
}
