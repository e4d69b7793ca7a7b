package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bytedance/sonic"

	"github.com/timmy/shopmedia/internal/config"
	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/logger"
	"github.com/timmy/shopmedia/internal/service"
	"github.com/timmy/shopmedia/internal/shopify"
	"github.com/timmy/shopmedia/internal/source/catalog"
)

// scanReport is what the scan writes: the aggregation plus, with -analyze,
// measured images and their savings estimate.
type scanReport struct {
	*domain.AggregationResult
	Optimization *service.OptimizationReport `json:"optimization,omitempty"`
}

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		Output:      os.Stderr,
		ServiceName: "shopmedia-scan",
	})
	logger.SetDefaultLogger(appLogger)

	shop := flag.String("shop", "", "Shop domain, e.g. demo.myshopify.com")
	token := flag.String("token", os.Getenv("SHOPIFY_ACCESS_TOKEN"), "Admin API access token")
	sources := flag.String("sources", "", "Comma-separated categories to scan (default: config or all)")
	analyze := flag.Bool("analyze", false, "Download every image and estimate optimization savings")
	out := flag.String("out", "", "Write JSON here instead of stdout")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *sources != "" {
		cfg.Extract.Sources = strings.Split(*sources, ",")
	}

	cred, err := domain.NewCredential(*shop, *token)
	if err != nil {
		appLogger.WithError(err).Fatal("Both -shop and -token (or SHOPIFY_ACCESS_TOKEN) are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	gatewayCfg := cfg.GetShopifyConfig()
	if guard, err := shopify.NewMemoryGuard(cfg.Pagination.MemoryLimitMB); err == nil && guard != nil {
		gatewayCfg.Guard = guard
	}
	gateway := shopify.NewGateway(gatewayCfg, shopify.NewThrottle(cfg.Shopify.ThrottleInterval, nil))

	srcs, err := catalog.Build(cfg.Extract, cfg.Pagination.PageSize)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to build image sources")
	}

	appLogger.WithFields(logger.Fields{
		logger.FieldShop: cred.Shop,
		"sources":        len(srcs),
		"analyze":        *analyze,
	}).Info("Starting scan")

	media := service.NewMediaService(gateway, srcs, appLogger, &service.MediaConfig{Concurrent: cfg.Extract.Concurrent})
	result, err := media.Aggregate(ctx, cred)
	if err != nil {
		appLogger.WithError(err).Fatal("Scan failed")
	}

	report := scanReport{AggregationResult: result}
	if *analyze {
		fetcher := service.NewFetcher(cfg.Analyze.Timeout, cfg.Analyze.MaxBytes, cfg.Shopify.UserAgent)
		analyzer := service.NewAnalyzeService(fetcher, appLogger, &service.AnalyzeConfig{
			Workers:        cfg.Analyze.Workers,
			LargeThreshold: cfg.Analyze.LargeThreshold,
		})
		report.Optimization = service.Optimize(analyzer.Analyze(ctx, result.Images))
	}

	data, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to encode result")
	}
	data = append(data, '\n')

	if *out == "" {
		_, err = os.Stdout.Write(data)
	} else {
		err = os.WriteFile(*out, data, 0o644)
	}
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to write result")
	}

	appLogger.WithFields(logger.Fields{
		logger.FieldCount: result.Stats.TotalFiles,
		"skipped":         result.Skipped,
	}).Info("Scan completed")
}
