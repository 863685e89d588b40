package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-scrape-tickets/config"
	"github.com/aluiziolira/go-scrape-tickets/extract"
	"github.com/aluiziolira/go-scrape-tickets/fetch"
	"github.com/aluiziolira/go-scrape-tickets/models"
	"github.com/aluiziolira/go-scrape-tickets/pipeline"
	"github.com/aluiziolira/go-scrape-tickets/scraper"
)

func main() {
	defaultCfg := config.DefaultConfig()

	rpmDefault := defaultCfg.RequestsPerMinute
	if value, ok, err := config.EnvInt("SCRAPER_RPM"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_RPM: %v\n", err)
		os.Exit(1)
	} else if ok {
		rpmDefault = value
	}
	attemptsDefault := defaultCfg.MaxAttempts
	if value, ok, err := config.EnvInt("SCRAPER_MAX_ATTEMPTS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_MAX_ATTEMPTS: %v\n", err)
		os.Exit(1)
	} else if ok {
		attemptsDefault = value
	}
	fetchTimeoutDefault := defaultCfg.FetchTimeout
	if value, ok, err := config.EnvDuration("SCRAPER_FETCH_TIMEOUT"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_FETCH_TIMEOUT: %v\n", err)
		os.Exit(1)
	} else if ok {
		fetchTimeoutDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	query := flag.String("query", "", "Search term forwarded to every enabled source")
	sourcesFlag := flag.String("sources", "stubhub,seatgeek,vividseats", "Comma-separated marketplaces to scrape")
	concurrency := flag.Int("concurrency", defaultCfg.Concurrency, "Simultaneous source scrapes")
	rpm := flag.Int("rpm", rpmDefault, "Per-source request budget (requests/minute)")
	baseDelayMs := flag.Int("base-delay", int(defaultCfg.BaseDelay/time.Millisecond), "Adaptive delay floor (milliseconds)")
	maxDelayMs := flag.Int("max-delay", int(defaultCfg.MaxDelay/time.Millisecond), "Adaptive delay cap (milliseconds)")
	maxAttempts := flag.Int("max-attempts", attemptsDefault, "Fetch attempts per source")
	fetchTimeout := flag.Duration("fetch-timeout", fetchTimeoutDefault, "Hard timeout per fetch")
	priceMin := flag.Float64("price-min", defaultCfg.PriceBounds.Min, "Lowest plausible listing price")
	priceMax := flag.Float64("price-max", defaultCfg.PriceBounds.Max, "Highest plausible listing price")
	fetchMode := flag.String("fetch-mode", "static", "Transport: static or browser")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", "csv", "Output format: csv, json, or dual")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	deadline := flag.Duration("deadline", 0, "Overall run deadline (0 = none)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger := newLogger(*verbose)
	slog.SetDefault(logger)

	cfg := defaultCfg
	cfg.RequestsPerMinute = *rpm
	cfg.BaseDelay = time.Duration(*baseDelayMs) * time.Millisecond
	cfg.MaxDelay = time.Duration(*maxDelayMs) * time.Millisecond
	cfg.MaxAttempts = *maxAttempts
	cfg.FetchTimeout = *fetchTimeout
	cfg.Concurrency = *concurrency
	cfg.PriceBounds = config.PriceBounds{Min: *priceMin, Max: *priceMax}
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	sources, err := parseSources(*sourcesFlag)
	if err != nil {
		slog.Error("invalid sources", slog.Any("error", err))
		os.Exit(1)
	}
	if *query == "" {
		slog.Error("a search query is required (-query)")
		os.Exit(1)
	}

	client, err := newClient(*fetchMode, cfg)
	if err != nil {
		slog.Error("initialising transport", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slog.Error("close transport", slog.Any("error", err))
		}
	}()

	metrics := scraper.NewMetrics()
	orchestrator, err := scraper.NewOrchestrator(cfg, client, extract.DefaultRegistry(),
		scraper.WithMetrics(metrics),
		scraper.WithIdentityProvider(fetch.NewRotatingIdentities(nil)),
	)
	if err != nil {
		slog.Error("initialising orchestrator", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *deadline)
		defer cancel()
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Info("starting scrape",
		slog.String("query", *query),
		slog.Int("sources", len(sources)),
		slog.String("transport", client.Type()),
	)

	start := time.Now()
	report, err := orchestrator.Run(ctx, models.ScrapeRequest{
		Sources:     sources,
		SearchQuery: *query,
		Concurrency: cfg.Concurrency,
	})
	if err != nil {
		slog.Error("scrape failed", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}

	p := pipeline.NewPipeline(writer)
	p.SkipDuplicates = true
	p.Start(2)
	if err := p.Process(report.Listings); err != nil {
		slog.Error("pipeline process", slog.Any("error", err))
	}
	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writer.Close(); err != nil {
		slog.Error("close writer", slog.Any("error", err))
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(report, time.Since(start), cfg.OutputFile)
	if report.Status == models.ReportFailed {
		os.Exit(1)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func parseSources(raw string) ([]models.SourceID, error) {
	parts := strings.Split(raw, ",")
	sources := make([]models.SourceID, 0, len(parts))
	for _, part := range parts {
		trimmed := models.SourceID(strings.TrimSpace(strings.ToLower(part)))
		if trimmed == "" {
			continue
		}
		if !trimmed.Valid() {
			return nil, fmt.Errorf("unknown source %q", trimmed)
		}
		sources = append(sources, trimmed)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources specified")
	}
	return sources, nil
}

func newClient(mode string, cfg *config.Config) (fetch.Client, error) {
	fetchCfg := fetch.Config{UserAgent: cfg.UserAgent, Timeout: cfg.FetchTimeout}
	switch mode {
	case "static":
		return fetch.NewStaticClient(fetchCfg), nil
	case "browser":
		return fetch.NewBrowserClient(fetchCfg)
	default:
		return nil, fmt.Errorf("unknown fetch mode: %s", mode)
	}
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(report *models.Report, duration time.Duration, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  status:      %s\n", report.Status)
	fmt.Printf("  duration:    %s\n", duration.Round(time.Millisecond))
	fmt.Printf("  listings:    %d\n", report.Summary.TotalListings)
	fmt.Printf("  succeeded:   %d\n", report.Summary.Succeeded)
	fmt.Printf("  failed:      %d\n", report.Summary.Failed)
	fmt.Printf("  output:      %s\n", outputFile)
	fmt.Println(separator)

	for source, result := range report.PerSource {
		line := fmt.Sprintf("  %-13s %-16s listings=%-4d attempts=%d elapsed=%s",
			source, result.Status, len(result.Listings), result.Attempts, result.Elapsed.Round(time.Millisecond))
		if result.Rejected > 0 {
			line += fmt.Sprintf(" rejected=%d", result.Rejected)
		}
		if result.Err != "" {
			line += " err=" + result.Err
		}
		fmt.Println(line)
	}
	fmt.Println(separator)
}
