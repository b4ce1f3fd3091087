package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

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

// Queue worker process. Consumes task and job events from Kafka and
// executes them against the same registration table the server uses.
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

	worker, err := dispatch.NewWorker(cfg, exec, zlog)
	if err != nil {
		zlog.Fatal("failed to start queue worker", zap.Error(err))
	}

	zlog.Info("worker started",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("group", cfg.KafkaGroupID))

	if err := worker.Run(ctx); err != nil {
		zlog.Fatal("worker stopped", zap.Error(err))
	}
	zlog.Info("worker exited")
}
