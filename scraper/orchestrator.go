package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"runtime/debug"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-scrape-tickets/config"
	"github.com/aluiziolira/go-scrape-tickets/extract"
	"github.com/aluiziolira/go-scrape-tickets/fetch"
	"github.com/aluiziolira/go-scrape-tickets/models"
)

// seenCacheSize bounds the process-wide duplicate-listing cache.
const seenCacheSize = 8192

// Orchestrator fans out per-source scrapes under bounded concurrency and
// aggregates their results into one report. Safe for concurrent Run calls;
// rate limiter and duplicate-cache state is shared across runs.
type Orchestrator struct {
	cfg        *config.Config
	client     fetch.Client
	registry   *extract.Registry
	limiter    *Limiter
	identities fetch.IdentityProvider
	metrics    *Metrics

	seenMu sync.Mutex
	seen   *lru.Cache[string, struct{}]
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithIdentityProvider sets the fingerprint rotation used between retries.
func WithIdentityProvider(p fetch.IdentityProvider) Option {
	return func(o *Orchestrator) { o.identities = p }
}

// WithMetrics sets the metrics bundle.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLimiter replaces the rate limiter, letting several orchestrators share
// one process-wide limiter.
func WithLimiter(l *Limiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}

// NewOrchestrator builds an orchestrator over the given transport and
// extraction strategies.
func NewOrchestrator(cfg *config.Config, client fetch.Client, registry *extract.Registry, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	seen, err := lru.New[string, struct{}](seenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("build dedup cache: %w", err)
	}

	o := &Orchestrator{
		cfg:        cfg,
		client:     client,
		registry:   registry,
		limiter:    NewLimiter(cfg),
		identities: fetch.NewRotatingIdentities(nil),
		seen:       seen,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Limiter exposes the shared rate limiter, mainly so hosts can Reset it.
func (o *Orchestrator) Limiter() *Limiter {
	return o.limiter
}

// Metrics exposes the metrics bundle for serving via promhttp.
func (o *Orchestrator) Metrics() *Metrics {
	return o.metrics
}

// Run executes one scrape request. A report is always produced when the
// request itself is well-formed, even if every source fails; Run errors only
// on caller-level misuse or a context that is already dead.
func (o *Orchestrator) Run(ctx context.Context, req models.ScrapeRequest) (*models.Report, error) {
	sources := uniqueSources(req.Sources)
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources requested")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = o.cfg.Concurrency
	}

	slog.Info("scrape run starting",
		slog.Int("sources", len(sources)),
		slog.Int("concurrency", concurrency),
		slog.String("query", req.SearchQuery),
	)

	var mu sync.Mutex
	completed := make([]models.SourceResult, 0, len(sources))

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for _, source := range sources {
		source := source
		g.Go(func() error {
			result := o.runSource(ctx, source, req)
			mu.Lock()
			completed = append(completed, result)
			mu.Unlock()
			return nil
		})
	}
	// Goroutines never return errors; every failure is a SourceResult.
	_ = g.Wait()

	return o.buildReport(completed), nil
}

// uniqueSources drops repeated source IDs, keeping first-seen order. A source
// named twice in a request is still one scrape.
func uniqueSources(sources []models.SourceID) []models.SourceID {
	seen := make(map[models.SourceID]struct{}, len(sources))
	out := make([]models.SourceID, 0, len(sources))
	for _, source := range sources {
		if _, ok := seen[source]; ok {
			continue
		}
		seen[source] = struct{}{}
		out = append(out, source)
	}
	return out
}

// runSource isolates one source's pipeline. A panic inside it becomes a
// Failure result and never aborts sibling scrapes.
func (o *Orchestrator) runSource(ctx context.Context, source models.SourceID, req models.ScrapeRequest) (result models.SourceResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("source scrape panicked",
				slog.String("source", string(source)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			o.metrics.IncError(string(source), "panic")
			result = models.SourceResult{
				Source:  source,
				Status:  models.StatusFailure,
				Err:     fmt.Sprintf("panic: %v", r),
				Elapsed: time.Since(start),
			}
		}
	}()

	extractor, ok := o.registry.Lookup(source)
	if !ok {
		return models.SourceResult{
			Source:  source,
			Status:  models.StatusFailure,
			Err:     fmt.Sprintf("no extraction strategy for %q", source),
			Elapsed: time.Since(start),
		}
	}

	target, err := targetURL(source, req)
	if err != nil {
		return models.SourceResult{
			Source:  source,
			Status:  models.StatusFailure,
			Err:     err.Error(),
			Elapsed: time.Since(start),
		}
	}

	// One stuck source must not stall the aggregate report.
	sourceCtx, cancel := context.WithTimeout(ctx, o.cfg.SourceTimeout())
	defer cancel()

	s := NewSourceScraper(o.cfg, o.client, extractor, o.limiter, o.identities, o.metrics)
	return s.Run(sourceCtx, target)
}

func (o *Orchestrator) buildReport(completed []models.SourceResult) *models.Report {
	report := &models.Report{
		PerSource:   make(map[models.SourceID]models.SourceResult, len(completed)),
		GeneratedAt: time.Now(),
	}

	allSuccess := true
	allFailure := true
	for _, result := range completed {
		report.PerSource[result.Source] = result
		if result.Status == models.StatusFailure {
			report.Summary.Failed++
			allSuccess = false
			continue
		}
		report.Summary.Succeeded++
		allFailure = false
		if result.Status != models.StatusSuccess {
			allSuccess = false
		}
		// Completion order across sources; extraction order within one.
		report.Listings = append(report.Listings, o.markDuplicates(result.Listings)...)
	}
	report.Summary.TotalListings = len(report.Listings)

	switch {
	case allSuccess:
		report.Status = models.ReportSuccess
	case allFailure:
		report.Status = models.ReportFailed
	default:
		report.Status = models.ReportPartial
	}

	slog.Info("scrape run finished",
		slog.String("status", string(report.Status)),
		slog.Int("succeeded", report.Summary.Succeeded),
		slog.Int("failed", report.Summary.Failed),
		slog.Int("listings", report.Summary.TotalListings),
	)
	return report
}

// markDuplicates flags listings whose dedup hash was already seen by this
// process. Flagged, not dropped: the caller decides what duplicates mean.
func (o *Orchestrator) markDuplicates(listings []models.Listing) []models.Listing {
	o.seenMu.Lock()
	defer o.seenMu.Unlock()
	for i := range listings {
		if _, dup := o.seen.Get(listings[i].DedupHash); dup {
			listings[i].Duplicate = true
			continue
		}
		o.seen.Add(listings[i].DedupHash, struct{}{})
	}
	return listings
}

// searchPaths maps each marketplace to its search endpoint.
var searchPaths = map[models.SourceID]string{
	models.SourceStubHub:      "https://www.stubhub.com/find/s/?q=%s",
	models.SourceSeatGeek:     "https://seatgeek.com/search?search=%s",
	models.SourceVividSeats:   "https://www.vividseats.com/search?searchTerm=%s",
	models.SourceGametime:     "https://gametime.co/search?query=%s",
	models.SourceTicketmaster: "https://www.ticketmaster.com/search?q=%s",
}

func targetURL(source models.SourceID, req models.ScrapeRequest) (string, error) {
	if direct, ok := req.DirectURLs[source]; ok && direct != "" {
		return direct, nil
	}
	if req.SearchQuery == "" {
		return "", fmt.Errorf("no target for %q: neither direct URL nor search query", source)
	}
	pattern, ok := searchPaths[source]
	if !ok {
		return "", fmt.Errorf("no search endpoint for %q", source)
	}
	return fmt.Sprintf(pattern, url.QueryEscape(req.SearchQuery)), nil
}
