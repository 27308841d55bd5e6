// Package main is the entrypoint for the scheduling hub background worker.
//
// The worker owns the periodic jobs of the system, most importantly the
// sweep that promotes academic periods whose scheduled opening time has
// arrived. It shares the persistence layer with any other process, so
// promotions stay safe under concurrent deployments.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/thesis-hub/thesis-scheduling-hub/config"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/application/command"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/period"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/shared"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/infrastructure/messaging"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/infrastructure/persistence/memory"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/infrastructure/persistence/postgres"
	redisinfra "github.com/thesis-hub/thesis-scheduling-hub/internal/infrastructure/persistence/redis"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/infrastructure/scheduler"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/infrastructure/scheduler/jobs"
	"github.com/thesis-hub/thesis-scheduling-hub/pkg/timeutil"
)

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
	// CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting scheduling hub worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// POSTGRES
	// ─────────────────────────────────────────────────────────────────────────
	conn, err := connectDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		conn.Close()
	}()
	log.Info("database connection established")

	migrator := postgres.NewMigrator(conn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// ACTIVE-PERIOD CACHE
	// ─────────────────────────────────────────────────────────────────────────
	periodCache, closeCache, err := buildPeriodCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	// ─────────────────────────────────────────────────────────────────────────
	// EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultConfig()
	busCfg.Logger = log
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()

	if err := bus.SubscribeAll(func(evt shared.Event) error {
		log.Debug("domain event",
			"event_type", evt.EventType(),
			"aggregate_id", evt.AggregateID(),
		)
		return nil
	}); err != nil {
		return fmt.Errorf("subscribe event logger: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// APPLICATION SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	pool := conn.Pool()
	uowFactory := postgres.NewUnitOfWorkFactory(conn)
	settings := postgres.NewSettingsStore(pool, cfg.Scheduling.Defaults())
	audits := postgres.NewAuditRepository(pool, log)
	clock := timeutil.SystemClock{}

	periodService := command.NewPeriodService(
		uowFactory, periodCache, settings, bus, audits, clock, log,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler disabled, worker will only hold connections open")
	} else {
		sched := scheduler.New(scheduler.Config{
			Logger:   log,
			Timezone: cfg.App.Location,
		})

		promote := jobs.NewPromotePeriodsJob(periodService, log)
		if err := sched.Register(promote, scheduler.Every(cfg.Scheduler.PromoteInterval)); err != nil {
			return fmt.Errorf("register %s: %w", promote.Name(), err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler")
			_ = sched.Stop()
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("scheduling hub worker is running",
		"promote_interval", cfg.Scheduler.PromoteInterval.String(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown", "timeout", cfg.App.ShutdownTimeout.String())
	return nil
}

// connectDatabase opens the pgx pool from either DATABASE_URL or the
// individual DB_* settings.
func connectDatabase(ctx context.Context, cfg *config.Config) (*postgres.Connection, error) {
	if cfg.Database.URL != "" {
		return postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.Host = cfg.Database.Host
	pgCfg.Port = cfg.Database.Port
	pgCfg.User = cfg.Database.User
	pgCfg.Password = cfg.Database.Password
	pgCfg.Database = cfg.Database.Name
	pgCfg.SSLMode = cfg.Database.SSLMode
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	pgCfg.ConnectTimeout = cfg.Database.ConnectTimeout
	return postgres.NewConnection(ctx, pgCfg)
}

// buildPeriodCache returns the Redis-backed active-period cache, or the
// in-process one when Redis is disabled or unreachable. Cache loss only
// costs read performance, so a failed Redis connection is not fatal.
func buildPeriodCache(ctx context.Context, cfg *config.Config, log *slog.Logger) (period.Cache, func(), error) {
	ttl := cfg.Scheduling.ActivePeriodTTL

	if cfg.Redis.Disabled {
		log.Info("redis disabled, using in-process period cache")
		return memory.NewPeriodCache(ttl, timeutil.SystemClock{}), func() {}, nil
	}

	redisCfg := redisinfra.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	client, err := redisinfra.NewClient(ctx, redisCfg)
	if err != nil {
		log.Warn("redis unreachable, falling back to in-process period cache", "error", err)
		return memory.NewPeriodCache(ttl, timeutil.SystemClock{}), func() {}, nil
	}

	log.Info("redis connection established", "addr", redisCfg.Addr())
	closeFn := func() {
		log.Info("closing redis connection")
		_ = client.Close()
	}
	return redisinfra.NewPeriodCache(client, ttl), closeFn, nil
}

// setupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if cfg.App.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Log.Format == "text" || cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
