// Package main is the entry point of the ClassMark worker.
//
// The worker runs periodic jobs. Today that is closing finished class
// meetings: enrolled students without a mark are recorded absent once the
// grace period after the class end has passed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/classmark/classmark-hub/config"
	"github.com/classmark/classmark-hub/internal/application/command"
	"github.com/classmark/classmark-hub/internal/bootstrap"
	"github.com/classmark/classmark-hub/internal/infrastructure/scheduler"
	"github.com/classmark/classmark-hub/internal/infrastructure/scheduler/jobs"
	"github.com/classmark/classmark-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := bootstrap.NewLogger(cfg).With(logger.Component("worker"))
	if !cfg.Scheduler.Enabled {
		log.Info("scheduler disabled, nothing to do")
		return nil
	}
	log.Info("starting ClassMark worker",
		logger.String("timezone", cfg.App.Timezone),
		logger.String("close_attendance", cfg.Scheduler.CloseAttendanceSchedule),
		logger.Duration("grace", cfg.Attendance.AutoAbsentGrace),
	)

	schedule, err := scheduler.ParseSchedule(cfg.Scheduler.CloseAttendanceSchedule)
	if err != nil {
		return fmt.Errorf("invalid SCHEDULER_CLOSE_ATTENDANCE: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. INFRASTRUCTURE
	// ─────────────────────────────────────────────────────────────────────────
	infra, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. JOBS
	// ─────────────────────────────────────────────────────────────────────────
	closer := command.NewCloseAttendanceHandler(
		infra.Schedules,
		infra.Enrollments,
		infra.Records,
		infra.Settings,
		infra.Bus,
		infra.Clock,
		cfg.Attendance.AutoAbsentGrace,
		command.NewUUID,
	)

	sched := scheduler.New(scheduler.Config{
		Logger:   log.Slog(),
		Location: cfg.App.Location,
		Tick:     cfg.Scheduler.Tick,
		OnResult: func(r scheduler.JobResult) {
			infra.Metrics.ObserveJob(r.JobName, r.Duration, r.Err)
		},
	})

	job := jobs.NewCloseAttendanceJob(closer, infra.Clock, cfg.Scheduler.JobTimeout, log.Slog())
	if err := sched.Register(job, schedule); err != nil {
		return fmt.Errorf("failed to register %s: %w", job.Name(), err)
	}

	// Catch up on meetings that ended while the worker was down.
	if err := sched.RunNow(ctx, job.Name()); err != nil {
		log.Warn("initial close_attendance run failed", logger.Err(err))
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. METRICS ENDPOINT
	// ─────────────────────────────────────────────────────────────────────────
	var metricsSrv *http.Server
	errCh := make(chan error, 1)
	if cfg.Observability.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", infra.Metrics.Handler())
		metricsSrv = &http.Server{
			Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Observability.MetricsPort)),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("serving metrics", logger.String("address", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		runErr = fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop", logger.Err(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown", logger.Err(err))
		}
	}

	log.Info("ClassMark worker stopped")
	return runErr
}

