package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/config"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/exporter"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/fetcher"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/logging"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/parser"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/pipeline"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/queue"
	"go.uber.org/zap"
)

func main() {
	query := flag.String("query", "", "search query to scrape")
	pages := flag.Int("pages", 0, "number of result pages to fetch (default from config)")
	outDir := flag.String("out", "", "output directory (default from config)")
	formats := flag.String("formats", "", "comma-separated export formats: csv,json,xlsx")
	flag.Parse()

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

	if *query == "" {
		logger.Fatal("a search query is required, pass -query")
	}
	if *pages <= 0 {
		*pages = cfg.Scraper.MaxPages
	}
	if *outDir == "" {
		*outDir = cfg.Export.OutputDir
	}
	exportFormats := cfg.Export.Formats
	if *formats != "" {
		exportFormats = strings.Split(*formats, ",")
	}

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

	pl := pipeline.New(f, listingParser, cfg.Scraper.BaseURL, cfg.Scraper.Workers, nil, logger)

	if cfg.Redis.Enabled {
		cache := queue.NewFetchCache(cfg.Redis.Addr, cfg.Redis.FetchTTL)
		defer cache.Close()
		pl.WithCache(cache)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rs, summary, err := pl.Run(ctx, *query, *pages)
	if err != nil {
		logger.Fatal("scrape failed", zap.Error(err))
	}

	logger.Info("scrape finished",
		zap.Int("records", summary.RecordCount),
		zap.Int("pages_fetched", summary.PagesFetched),
		zap.Int("pages_failed", summary.PagesFailed),
		zap.Bool("blocked", summary.Blocked))

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logger.Fatal("failed to create output directory", zap.Error(err))
	}

	records := rs.Records()
	stamp := time.Now().UTC().Format("20060102_150405")
	for _, name := range exportFormats {
		format, err := exporter.ParseFormat(name)
		if err != nil {
			logger.Warn("skipping format", zap.String("format", name), zap.Error(err))
			continue
		}

		data, err := exporter.Export(records, format)
		if err != nil {
			logger.Error("export failed", zap.String("format", string(format)), zap.Error(err))
			continue
		}

		path := filepath.Join(*outDir, fmt.Sprintf("products_%s_%s.%s", sanitize(*query), stamp, format.Ext()))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			logger.Error("failed to write export", zap.String("path", path), zap.Error(err))
			continue
		}
		logger.Info("export written", zap.String("path", path), zap.Int("records", len(records)))
	}
}

func sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
}
