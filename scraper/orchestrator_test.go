package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-tickets/config"
	"github.com/aluiziolira/go-scrape-tickets/extract"
	"github.com/aluiziolira/go-scrape-tickets/fetch"
	"github.com/aluiziolira/go-scrape-tickets/models"
)

func newTestOrchestrator(t *testing.T, cfg *config.Config, client fetch.Client, registry *extract.Registry) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(cfg, client, registry, WithLimiter(instantLimiter(cfg)))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return o
}

func directRequest(sources ...models.SourceID) models.ScrapeRequest {
	req := models.ScrapeRequest{Sources: sources, DirectURLs: make(map[models.SourceID]string)}
	for _, s := range sources {
		req.DirectURLs[s] = "http://" + string(s) + ".test/"
	}
	return req
}

func TestOrchestratorTwoSourcesSucceed(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient(func(_ int, url string) (fetch.Page, error) {
		page := listingPage()
		page.URL = url
		return page, nil
	})

	registry := extract.NewRegistry()
	registry.Register(extractorReturning(models.SourceStubHub, "$45", "$50", "$60"))
	registry.Register(extractorReturning(models.SourceSeatGeek, "$10", "$20", "$30", "$40", "$55"))

	o := newTestOrchestrator(t, cfg, client, registry)
	report, err := o.Run(context.Background(), directRequest(models.SourceStubHub, models.SourceSeatGeek))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.Summary.Succeeded != 2 || report.Summary.Failed != 0 {
		t.Fatalf("summary = %+v, want 2 succeeded / 0 failed", report.Summary)
	}
	if report.Summary.TotalListings != 8 {
		t.Fatalf("total listings = %d, want 8", report.Summary.TotalListings)
	}
	if report.Status != models.ReportSuccess {
		t.Fatalf("status = %q, want success", report.Status)
	}
	if len(report.Listings) != 8 {
		t.Fatalf("aggregated listings = %d, want 8", len(report.Listings))
	}
	if report.GeneratedAt.IsZero() {
		t.Fatalf("generated-at not set")
	}
}

func TestOrchestratorRepeatedSourceScrapedOnce(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient(func(_ int, url string) (fetch.Page, error) {
		return listingPage(), nil
	})

	registry := extract.NewRegistry()
	registry.Register(extractorReturning(models.SourceStubHub, "$45", "$50"))

	o := newTestOrchestrator(t, cfg, client, registry)
	report, err := o.Run(context.Background(),
		directRequest(models.SourceStubHub, models.SourceStubHub, models.SourceStubHub))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := client.callCount("http://stubhub.test/"); got != 1 {
		t.Fatalf("fetch calls = %d, want 1 (repeated source IDs are one scrape)", got)
	}
	if report.Summary.Succeeded != 1 || report.Summary.Failed != 0 {
		t.Fatalf("summary = %+v, want 1 succeeded / 0 failed", report.Summary)
	}
	if report.Summary.TotalListings != 2 {
		t.Fatalf("total listings = %d, want 2", report.Summary.TotalListings)
	}
}

func TestOrchestratorOneSourceTimesOut(t *testing.T) {
	cfg := testConfig()
	failing := "http://" + string(models.SourceVividSeats) + ".test/"
	client := newFakeClient(func(_ int, url string) (fetch.Page, error) {
		if url == failing {
			return fetch.Page{}, context.DeadlineExceeded
		}
		return listingPage(), nil
	})

	registry := extract.NewRegistry()
	registry.Register(extractorReturning(models.SourceStubHub, "$45"))
	registry.Register(extractorReturning(models.SourceSeatGeek, "$60"))
	registry.Register(extractorReturning(models.SourceVividSeats, "$75"))

	o := newTestOrchestrator(t, cfg, client, registry)
	report, err := o.Run(context.Background(),
		directRequest(models.SourceStubHub, models.SourceSeatGeek, models.SourceVividSeats))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.Summary.Failed != 1 || report.Summary.Succeeded != 2 {
		t.Fatalf("summary = %+v, want 2 succeeded / 1 failed", report.Summary)
	}
	failed := report.PerSource[models.SourceVividSeats]
	if failed.Status != models.StatusFailure {
		t.Fatalf("vividseats status = %q, want failure", failed.Status)
	}
	if failed.Attempts != cfg.MaxAttempts {
		t.Fatalf("vividseats attempts = %d, want %d", failed.Attempts, cfg.MaxAttempts)
	}
	if report.Status != models.ReportPartial {
		t.Fatalf("status = %q, want partial", report.Status)
	}
}

func TestOrchestratorIsolatesPanickingSource(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient(func(int, string) (fetch.Page, error) {
		return listingPage(), nil
	})

	registry := extract.NewRegistry()
	registry.Register(&fakeExtractor{
		source: models.SourceStubHub,
		fn: func(fetch.Page) ([]models.RawListing, error) {
			panic("selector table corrupted")
		},
	})
	registry.Register(extractorReturning(models.SourceSeatGeek, "$60"))
	registry.Register(extractorReturning(models.SourceGametime, "$80"))

	o := newTestOrchestrator(t, cfg, client, registry)
	report, err := o.Run(context.Background(),
		directRequest(models.SourceStubHub, models.SourceSeatGeek, models.SourceGametime))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(report.PerSource) != 3 {
		t.Fatalf("report incomplete: %d sources, want 3", len(report.PerSource))
	}
	crashed := report.PerSource[models.SourceStubHub]
	if crashed.Status != models.StatusFailure {
		t.Fatalf("panicking source status = %q, want failure", crashed.Status)
	}
	if !strings.Contains(crashed.Err, "panic") {
		t.Fatalf("panicking source err = %q, want panic detail", crashed.Err)
	}
	for _, source := range []models.SourceID{models.SourceSeatGeek, models.SourceGametime} {
		if got := report.PerSource[source].Status; got != models.StatusSuccess {
			t.Fatalf("%s status = %q, want success despite sibling panic", source, got)
		}
	}
}

func TestOrchestratorHonorsConcurrencyLimit(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient(func(int, string) (fetch.Page, error) {
		return listingPage(), nil
	})

	registry := extract.NewRegistry()
	sources := models.AllSources()
	for _, s := range sources {
		registry.Register(extractorReturning(s, "$45"))
	}

	o := newTestOrchestrator(t, cfg, client, registry)
	req := directRequest(sources...)
	req.Concurrency = 1
	if _, err := o.Run(context.Background(), req); err != nil {
		t.Fatalf("run: %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.maxActive > 1 {
		t.Fatalf("observed %d concurrent fetches, want at most 1", client.maxActive)
	}
}

func TestOrchestratorCancellation(t *testing.T) {
	cfg := testConfig()
	ctx, cancel := context.WithCancel(context.Background())

	client := newFakeClient(func(int, string) (fetch.Page, error) {
		cancel()
		time.Sleep(5 * time.Millisecond)
		return fetch.Page{}, context.Canceled
	})

	registry := extract.NewRegistry()
	registry.Register(extractorReturning(models.SourceStubHub, "$45"))

	o := newTestOrchestrator(t, cfg, client, registry)
	report, err := o.Run(ctx, directRequest(models.SourceStubHub))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	result := report.PerSource[models.SourceStubHub]
	if result.Status != models.StatusFailure {
		t.Fatalf("status = %q, want failure", result.Status)
	}
	if result.Err != ErrCancelled.Error() {
		t.Fatalf("err = %q, want cancelled", result.Err)
	}
}

func TestOrchestratorRejectsDeadContext(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient(func(int, string) (fetch.Page, error) {
		return listingPage(), nil
	})
	registry := extract.NewRegistry()
	registry.Register(extractorReturning(models.SourceStubHub, "$45"))

	o := newTestOrchestrator(t, cfg, client, registry)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.Run(ctx, directRequest(models.SourceStubHub)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestOrchestratorRequiresSources(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient(func(int, string) (fetch.Page, error) {
		return listingPage(), nil
	})
	o := newTestOrchestrator(t, cfg, client, extract.NewRegistry())

	if _, err := o.Run(context.Background(), models.ScrapeRequest{}); err == nil {
		t.Fatalf("expected error for empty source set")
	}
}

func TestOrchestratorUnknownSourceFailsInReport(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient(func(int, string) (fetch.Page, error) {
		return listingPage(), nil
	})
	registry := extract.NewRegistry()
	registry.Register(extractorReturning(models.SourceSeatGeek, "$60"))

	o := newTestOrchestrator(t, cfg, client, registry)
	report, err := o.Run(context.Background(), directRequest(models.SourceStubHub, models.SourceSeatGeek))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	missing := report.PerSource[models.SourceStubHub]
	if missing.Status != models.StatusFailure || !strings.Contains(missing.Err, "no extraction strategy") {
		t.Fatalf("missing strategy result = %+v", missing)
	}
	if report.PerSource[models.SourceSeatGeek].Status != models.StatusSuccess {
		t.Fatalf("registered source should still succeed")
	}
}

func TestOrchestratorMarksDuplicatesAcrossRuns(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient(func(int, string) (fetch.Page, error) {
		return listingPage(), nil
	})
	registry := extract.NewRegistry()
	registry.Register(extractorReturning(models.SourceStubHub, "$45"))

	o := newTestOrchestrator(t, cfg, client, registry)
	req := directRequest(models.SourceStubHub)

	first, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Listings[0].Duplicate {
		t.Fatalf("first sighting must not be flagged duplicate")
	}

	second, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.Listings[0].Duplicate {
		t.Fatalf("repeat sighting should be flagged duplicate")
	}
}

func TestTargetURL(t *testing.T) {
	req := models.ScrapeRequest{
		SearchQuery: "knicks vs lakers",
		DirectURLs:  map[models.SourceID]string{models.SourceStubHub: "http://direct.test/event"},
	}

	direct, err := targetURL(models.SourceStubHub, req)
	if err != nil {
		t.Fatalf("direct: %v", err)
	}
	if direct != "http://direct.test/event" {
		t.Fatalf("direct url = %q", direct)
	}

	search, err := targetURL(models.SourceSeatGeek, req)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(search, "seatgeek.com") || !strings.Contains(search, "knicks+vs+lakers") {
		t.Fatalf("search url = %q", search)
	}

	if _, err := targetURL(models.SourceGametime, models.ScrapeRequest{}); err == nil {
		t.Fatalf("expected error when neither target form is present")
	}
}
