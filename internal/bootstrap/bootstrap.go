// Package bootstrap opens the infrastructure shared by the api and worker
// processes: Postgres, the optional Redis layer, the event bus and metrics.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/classmark/classmark-hub/config"
	"github.com/classmark/classmark-hub/internal/application/command"
	"github.com/classmark/classmark-hub/internal/domain/enrollment"
	"github.com/classmark/classmark-hub/internal/domain/group"
	"github.com/classmark/classmark-hub/internal/infrastructure/messaging"
	"github.com/classmark/classmark-hub/internal/infrastructure/metrics"
	"github.com/classmark/classmark-hub/internal/infrastructure/persistence/postgres"
	"github.com/classmark/classmark-hub/internal/infrastructure/persistence/redis"
	"github.com/classmark/classmark-hub/internal/interface/http/handlers"
	"github.com/classmark/classmark-hub/pkg/logger"
	"github.com/classmark/classmark-hub/pkg/retry"
	"github.com/classmark/classmark-hub/pkg/timeutil"
)

// Infra is the wired infrastructure of one process.
type Infra struct {
	Config *config.Config
	Log    *logger.Logger
	Clock  *timeutil.Clock

	DB *postgres.Connection

	// Cache is nil when Redis is disabled or was unreachable at startup.
	Cache *redis.Cache

	Groups      *postgres.GroupRepository
	Schedules   *postgres.ScheduleRepository
	Enrollments *postgres.EnrollmentRepository
	Records     *postgres.AttendanceRepository

	// Settings is the Redis cache in front of Groups, or Groups itself.
	Settings group.SettingsSource

	// Refresher and Locker are nil without Redis.
	Refresher command.SettingsRefresher
	Locker    enrollment.Locker

	Bus     *messaging.InMemoryEventBus
	Metrics *metrics.Metrics
}

// NewLogger builds the process logger from the observability settings.
func NewLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
	}).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)
}

// Open connects to the stores and wires the shared components. Postgres is
// required; Redis failures degrade to uncached, unlocked operation.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Infra, error) {
	in := &Infra{
		Config: cfg,
		Log:    log,
		Clock:  timeutil.NewClock(cfg.App.Location),
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 1. POSTGRES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database")
	db, err := retry.Value(ctx, retry.Startup(onRetry(log, "postgres")), func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, postgresConfig(cfg.Database))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	in.DB = db

	if cfg.Database.AutoMigrate {
		applied, err := postgres.NewMigrator(db, postgres.GetMigrations()).Migrate(ctx)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations applied", logger.Int("count", applied))
	}

	in.Groups = postgres.NewGroupRepository(db)
	in.Schedules = postgres.NewScheduleRepository(db)
	in.Enrollments = postgres.NewEnrollmentRepository(db)
	in.Records = postgres.NewAttendanceRepository(db)
	in.Settings = in.Groups

	// ─────────────────────────────────────────────────────────────────────────
	// 2. REDIS (OPTIONAL)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Redis.Disabled {
		log.Info("redis disabled, settings are read from postgres")
	} else {
		in.openRedis(ctx)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT BUS AND METRICS
	// ─────────────────────────────────────────────────────────────────────────
	in.Metrics = metrics.New(cfg.Observability.MetricsEnabled)
	in.Bus = messaging.NewInMemoryEventBus(messaging.Config{
		Async:   true,
		Workers: 8,
		Logger:  log.Slog(),
		Observe: in.Metrics.ObserveHandler,
	})
	if err := in.Metrics.Subscribe(in.Bus); err != nil {
		in.Close()
		return nil, fmt.Errorf("failed to subscribe metrics: %w", err)
	}

	return in, nil
}

func (in *Infra) openRedis(ctx context.Context) {
	log := in.Log.With(logger.Component("redis"))
	rc := in.Config.Redis

	policy := retry.Startup(onRetry(in.Log, "redis"))
	policy.Attempts = 3
	cache, err := retry.Value(ctx, policy, func(ctx context.Context) (*redis.Cache, error) {
		return redis.NewCache(ctx, redis.Config{
			Host:         rc.Host,
			Port:         rc.Port,
			Password:     rc.Password,
			DB:           rc.DB,
			PoolSize:     rc.PoolSize,
			MinIdleConns: rc.MinIdleConns,
			MaxRetries:   3,
			DialTimeout:  rc.DialTimeout,
			ReadTimeout:  rc.ReadTimeout,
			WriteTimeout: rc.WriteTimeout,
		})
	})
	if err != nil {
		log.Warn("redis unavailable, continuing without cache and enrollment locks", logger.Err(err))
		return
	}

	breaker := redis.NewBreaker(log)
	settings := redis.NewSettingsCache(cache, in.Groups, breaker, rc.SettingsTTL, log)
	in.Cache = cache
	in.Settings = settings
	in.Refresher = settings
	in.Locker = redis.NewEnrollmentLocker(cache, breaker, rc.LockTTL, log)
	log.Info("redis connected")
}

// HealthChecker reports Postgres as critical and Redis as optional.
func (in *Infra) HealthChecker() *handlers.CompositeHealthChecker {
	hc := handlers.NewCompositeHealthChecker(in.Config.App.Version)
	hc.AddCheck("postgres", handlers.NewPingCheck(in.DB))
	if in.Cache != nil {
		hc.AddOptionalCheck("redis", handlers.NewPingCheck(in.Cache))
	}
	return hc
}

// Close drains the bus and closes the stores.
func (in *Infra) Close() {
	if in.Bus != nil {
		if err := in.Bus.Close(); err != nil {
			in.Log.Warn("event bus close", logger.Err(err))
		}
	}
	if in.Cache != nil {
		if err := in.Cache.Close(); err != nil {
			in.Log.Warn("redis close", logger.Err(err))
		}
	}
	if in.DB != nil {
		in.DB.Close()
	}
}

func postgresConfig(dc config.DatabaseConfig) postgres.Config {
	pc := postgres.DefaultConfig()
	pc.URL = dc.URL
	pc.MaxConns = int32(dc.MaxConns)
	pc.MinConns = int32(dc.MinConns)
	if dc.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = dc.ConnMaxLifetime
	}
	if dc.ConnMaxIdleTime > 0 {
		pc.MaxConnIdleTime = dc.ConnMaxIdleTime
	}
	return pc
}

func onRetry(log *logger.Logger, target string) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		log.Warn("connection attempt failed",
			logger.String("target", target),
			logger.Int("attempt", attempt),
			logger.Duration("retry_in", delay),
			logger.Err(err),
		)
	}
}
