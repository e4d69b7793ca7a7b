package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/shopmedia/internal/api"
	"github.com/timmy/shopmedia/internal/config"
	"github.com/timmy/shopmedia/internal/logger"
	"github.com/timmy/shopmedia/internal/service"
	"github.com/timmy/shopmedia/internal/shopify"
	"github.com/timmy/shopmedia/internal/source/catalog"
	"github.com/timmy/shopmedia/internal/storage"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.NewFromEnv(logger.LoadFromEnv().Override(cfg.Log.Level, cfg.Log.Format))
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	ctx := context.Background()

	// One throttle for the whole process: every shop session waits on it.
	throttle := shopify.NewThrottle(cfg.Shopify.ThrottleInterval, nil)
	gatewayCfg := cfg.GetShopifyConfig()
	guard, err := shopify.NewMemoryGuard(cfg.Pagination.MemoryLimitMB)
	if err != nil {
		appLogger.WithError(err).Warn("Memory guard disabled")
	} else if guard != nil {
		gatewayCfg.Guard = guard
	}
	gateway := shopify.NewGateway(gatewayCfg, throttle)

	sources, err := catalog.Build(cfg.Extract, cfg.Pagination.PageSize)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to build image sources")
	}

	// Originals are archived only when a bucket is configured for it.
	var archive *storage.Archive
	if cfg.Replace.BackupEnabled {
		objectStorage, err := storage.NewStorage(ctx, cfg.GetStorageConfig())
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize backup storage")
		}
		archive = storage.NewArchive(objectStorage, cfg.Storage.Prefix)
	}

	fetcher := service.NewFetcher(cfg.Analyze.Timeout, cfg.Analyze.MaxBytes, cfg.Shopify.UserAgent)

	services := api.Services{
		Media: service.NewMediaService(gateway, sources, appLogger, &service.MediaConfig{
			Concurrent: cfg.Extract.Concurrent,
		}),
		Analyze: service.NewAnalyzeService(fetcher, appLogger, &service.AnalyzeConfig{
			Workers:        cfg.Analyze.Workers,
			LargeThreshold: cfg.Analyze.LargeThreshold,
		}),
		Replace: service.NewReplaceService(gateway, archive, fetcher, appLogger, &service.ReplaceConfig{
			FileReadyAttempts: cfg.Replace.FileReadyAttempts,
			FileReadyDelay:    cfg.Replace.FileReadyDelay,
			SearchMaxPages:    cfg.Replace.SearchMaxPages,
			PageSize:          cfg.Pagination.PageSize,
		}),
		Store: service.NewStoreService(gateway),
	}

	router := api.SetupRouter(services, cfg, appLogger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":     cfg.Server.Port,
			"mode":     cfg.Server.Mode,
			"sources":  len(sources),
			"throttle": throttle.Interval().String(),
			"backup":   archive != nil,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Replacements in flight get time to finish their current step.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
