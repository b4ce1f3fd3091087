package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"textflow/internal/cache"
	"textflow/internal/config"
	"textflow/internal/db"
	"textflow/internal/dispatch"
	"textflow/internal/extensions"
	"textflow/internal/extensions/builtin"
	"textflow/internal/logger"
	"textflow/internal/metrics"
	"textflow/internal/tasks"
)

const sweepBatchSize = 20

// Sweeper process for the local job runner. Periodically claims pending
// job rows left behind by crashed or restarted servers and runs them,
// then prunes finished rows past the retention window.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zlog, err := logger.New(cfg.IsDev())
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	var rdb *redis.Client
	if cfg.CacheConfigured() {
		rdb, err = cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			zlog.Fatal("failed to configure shared cache", zap.Error(err))
		}
	}

	metrics.Init()

	aggregates := cache.New(database, rdb, cfg, zlog)
	registry := extensions.New(cfg, zlog, builtin.All(builtin.Deps{
		Phones:         database,
		Tags:           database,
		DefaultService: cfg.DefaultService,
		Log:            zlog,
	}))

	table := dispatch.NewTable()
	exec := dispatch.NewExecutor(table, database, zlog)
	tasks.RegisterAll(table, tasks.Deps{
		Cache:    aggregates,
		Registry: registry,
		Store:    database,
		Log:      zlog,
	})

	runner := dispatch.NewLocalRunner(exec, false, zlog)

	zlog.Info("sweeper started",
		zap.Duration("interval", cfg.SweepInterval),
		zap.Int("retention_days", cfg.JobRetentionDays))

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		runner.Sweep(ctx, sweepBatchSize)

		if n, err := database.ClearOldJobs(ctx, cfg.JobRetentionDays); err != nil {
			zlog.Error("failed to clear old jobs", zap.Error(err))
		} else if n > 0 {
			zlog.Info("cleared old jobs", zap.Int64("count", n))
		}

		select {
		case <-ctx.Done():
			zlog.Info("sweeper exited")
			return
		case <-ticker.C:
		}
	}
}
