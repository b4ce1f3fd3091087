package main

import (
	"context"
	"log"

	awslambda "github.com/aws/aws-lambda-go/lambda"
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

// Lambda entry point. Each invocation carries a single queue event; the
// execution deadline of the invocation becomes the time budget handed to
// the task.
func main() {
	ctx := context.Background()

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

	awslambda.Start(dispatch.NewLambdaHandler(exec, zlog))
}
