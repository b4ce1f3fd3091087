package main

import (
	"context"
	"log"
	"os"
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
	"textflow/internal/handlers"
	"textflow/internal/logger"
	"textflow/internal/metrics"
	"textflow/internal/server"
	"textflow/internal/tasks"
)

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

	// Initialize database
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		zlog.Fatal("failed to run migrations", zap.Error(err))
	}
	zlog.Info("migrations completed")

	// Shared cache is optional; without it every cache operation degrades
	// to a direct durable read.
	var rdb *redis.Client
	if cfg.CacheConfigured() {
		rdb, err = cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			zlog.Fatal("failed to configure shared cache", zap.Error(err))
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			zlog.Fatal("shared cache unreachable", zap.Error(err))
		}
	} else {
		zlog.Warn("no shared cache configured, aggregate reads go straight to the database")
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

	dispatcher, err := dispatch.Select(ctx, cfg, exec, zlog)
	if err != nil {
		zlog.Fatal("failed to select job runner", zap.Error(err))
	}

	srv := server.New(cfg)
	app := srv.App

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(database)
	orgHandler := handlers.NewOrganizationHandler(aggregates, zlog)
	campaignHandler := handlers.NewCampaignHandler(aggregates, registry, zlog)
	tagHandler := handlers.NewTagHandler(database, aggregates, registry, dispatcher, zlog)

	app.Get("/healthz", healthHandler.Check)

	api := app.Group("/api")
	api.Get("/organizations/:id", orgHandler.Get)
	api.Post("/organizations/:id/clear-cache", orgHandler.ClearCache)
	api.Get("/campaigns/:id", campaignHandler.Get)
	api.Get("/campaigns/:id/stats", campaignHandler.Stats)
	api.Post("/campaigns/:id/editors", campaignHandler.Editors)
	api.Post("/campaigns/:id/request-batch", campaignHandler.RequestBatch)
	api.Post("/campaigns/:id/contacts/:contactID/tags", tagHandler.Update)

	// Graceful shutdown
	go func() {
		if err := srv.Start(); err != nil {
			zlog.Error("server error", zap.Error(err))
		}
	}()

	zlog.Info("server started", zap.String("addr", cfg.ServerAddr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")
	if err := srv.Shutdown(); err != nil {
		zlog.Fatal("server forced to shutdown", zap.Error(err))
	}
	zlog.Info("server exited")
}
