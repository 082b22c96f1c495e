package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/api"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/config"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/fetcher"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/jobs"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/logging"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/metrics"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/parser"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/pipeline"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/queue"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/storage"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listingParser, err := parser.NewListingParser(cfg.Scraper.BaseURL, cfg.Scraper.PerPageLimit)
	if err != nil {
		logger.Fatal("failed to build parser", zap.Error(err))
	}

	f := fetcher.New(fetcher.Options{
		UserAgents: cfg.Scraper.UserAgents,
		DelayMin:   cfg.Scraper.DelayMin,
		DelayMax:   cfg.Scraper.DelayMax,
		MaxRetries: cfg.Scraper.MaxRetries,
		RetryDelay: cfg.Scraper.RetryDelay,
		Timeout:    cfg.Scraper.Timeout,
	}, logger)

	m := metrics.New()
	pl := pipeline.New(f, listingParser, cfg.Scraper.BaseURL, cfg.Scraper.Workers, m, logger)

	if cfg.Redis.Enabled {
		cache := queue.NewFetchCache(cfg.Redis.Addr, cfg.Redis.FetchTTL)
		defer cache.Close()
		if err := cache.Ping(ctx); err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		pl.WithCache(cache)
	}

	var store jobs.RunStore
	if cfg.Database.Enabled {
		pg, err := storage.New(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pg.Close()
		store = pg
	}

	manager := jobs.NewManager(pl, store, logger)
	if err := manager.Hydrate(ctx); err != nil {
		logger.Warn("failed to hydrate record set", zap.Error(err))
	}
	go manager.StartWorker(ctx)

	handlers := api.NewHandlers(manager, logger, func(format string) {
		m.ExportsGenerated.WithLabelValues(format).Inc()
	})
	server := api.NewServer(cfg.Server, handlers, logger)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
