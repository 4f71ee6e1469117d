// Package main is the entry point of the ClassMark API.
//
// The API serves group configuration, weekly schedules, enrollments with
// conflict detection, and attendance marking over HTTP.
//
// Usage:
//
//	classmark-api              serve the API
//	classmark-api hash-key K   print the bcrypt hash of API key K for API_KEY_HASHES
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/classmark/classmark-hub/config"
	"github.com/classmark/classmark-hub/internal/application/command"
	"github.com/classmark/classmark-hub/internal/application/query"
	"github.com/classmark/classmark-hub/internal/bootstrap"
	httpserver "github.com/classmark/classmark-hub/internal/interface/http"
	"github.com/classmark/classmark-hub/internal/interface/http/handlers"
	"github.com/classmark/classmark-hub/pkg/logger"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-key" {
		if err := hashKey(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "hash-key: %v\n", err)
			os.Exit(2)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func hashKey(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: classmark-api hash-key <key>")
	}
	hash, err := handlers.HashAPIKey(args[0])
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := bootstrap.NewLogger(cfg)
	log.Info("starting ClassMark API",
		logger.String("timezone", cfg.App.Timezone),
		logger.Bool("redis", !cfg.Redis.Disabled),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. INFRASTRUCTURE
	// ─────────────────────────────────────────────────────────────────────────
	infra, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. COMMANDS AND QUERIES
	// ─────────────────────────────────────────────────────────────────────────
	deps := httpserver.Dependencies{
		CreateGroup:    command.NewCreateGroupHandler(infra.Groups, infra.Bus, command.NewUUID),
		ConfigureGroup: command.NewConfigureGroupHandler(infra.Groups, infra.Refresher, infra.Bus),
		AddSchedule:    command.NewAddScheduleHandler(infra.Groups, infra.Schedules, infra.Bus, command.NewUUID),
		EnrollStudent: command.NewEnrollStudentHandler(
			infra.Groups, infra.Schedules, infra.Enrollments, infra.Locker, infra.Bus, command.NewUUID,
		),
		UnenrollStudent: command.NewUnenrollStudentHandler(infra.Enrollments, infra.Locker, infra.Bus),
		MarkAttendance: command.NewMarkAttendanceHandler(
			infra.Schedules, infra.Enrollments, infra.Records, infra.Settings, infra.Bus, infra.Clock, command.NewUUID,
		),

		GetGroup:           query.NewGetGroupHandler(infra.Groups, infra.Schedules),
		ListGroups:         query.NewListGroupsHandler(infra.Groups),
		CheckConflict:      query.NewCheckConflictHandler(infra.Schedules, infra.Enrollments),
		GetGroupAttendance: query.NewGetGroupAttendanceHandler(infra.Groups, infra.Enrollments, infra.Records),

		Logger:        log,
		HealthChecker: infra.HealthChecker(),
		Metrics:       infra.Metrics,
	}
	if cfg.Observability.MetricsEnabled {
		deps.MetricsHandler = infra.Metrics.Handler()
	}

	if len(cfg.HTTP.APIKeyHashes) > 0 {
		auth, err := handlers.NewAPIKeyAuth(cfg.HTTP.APIKeyHeader, cfg.HTTP.APIKeyHashes)
		if err != nil {
			return fmt.Errorf("failed to configure API keys: %w", err)
		}
		deps.Auth = auth
	} else {
		log.Warn("no API keys configured, /api routes are open")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	srvCfg := httpserver.DefaultConfig()
	srvCfg.Host = cfg.HTTP.Host
	srvCfg.Port = cfg.HTTP.Port
	srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	srvCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	srvCfg.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	srvCfg.EnableCORS = cfg.HTTP.EnableCORS
	srvCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	srvCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	srvCfg.APIKeyHeader = cfg.HTTP.APIKeyHeader

	server := httpserver.NewServer(srvCfg, deps)
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err, ok := <-errCh:
		if ok && err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", logger.Err(err))
	}
	log.Info("ClassMark API stopped")
	return nil
}
