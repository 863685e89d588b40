package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/go-scrape-tickets/config"
	"github.com/aluiziolira/go-scrape-tickets/detect"
	"github.com/aluiziolira/go-scrape-tickets/extract"
	"github.com/aluiziolira/go-scrape-tickets/fetch"
	"github.com/aluiziolira/go-scrape-tickets/models"
	"github.com/aluiziolira/go-scrape-tickets/parser"
)

// SourceScraper runs one source's scrape end-to-end with bounded retries.
//
// Per attempt: rate-limit wait, fetch, challenge check, extract, validate.
// Transport errors and recoverable challenges consume an attempt and feed the
// limiter's error path; attempts are strictly sequential.
type SourceScraper struct {
	cfg        *config.Config
	client     fetch.Client
	extractor  extract.Extractor
	limiter    *Limiter
	identities fetch.IdentityProvider
	metrics    *Metrics
}

// NewSourceScraper wires one source's scrape pipeline. identities and
// metrics may be nil.
func NewSourceScraper(cfg *config.Config, client fetch.Client, extractor extract.Extractor, limiter *Limiter, identities fetch.IdentityProvider, metrics *Metrics) *SourceScraper {
	return &SourceScraper{
		cfg:        cfg,
		client:     client,
		extractor:  extractor,
		limiter:    limiter,
		identities: identities,
		metrics:    metrics,
	}
}

// Run scrapes one URL. It never returns an error: every outcome, including
// cancellation, is expressed in the SourceResult.
func (s *SourceScraper) Run(ctx context.Context, url string) models.SourceResult {
	source := s.extractor.Source()
	start := time.Now()
	result := models.SourceResult{Source: source}

	var lastErr error
	extractionRetried := false

	for result.Attempts < s.cfg.MaxAttempts {
		if result.Attempts > 0 {
			s.metrics.IncRetry(string(source))
		}
		if err := s.limiter.Wait(ctx, source); err != nil {
			return s.cancelled(result, start)
		}

		result.Attempts++
		page, err := s.fetchOnce(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return s.cancelled(result, start)
			}
			classified := classifyTransport(err, 0)
			lastErr = classified
			s.limiter.OnError(source, classOf(classified))
			s.metrics.IncFetch(string(source), "error")
			s.metrics.IncError(string(source), errorTypeLabel(classified))
			slog.Warn("fetch failed",
				slog.String("source", string(source)),
				slog.Int("attempt", result.Attempts),
				slog.Any("error", err),
			)
			continue
		}
		s.metrics.IncFetch(string(source), "ok")

		if verdict := detect.Classify(page); verdict.Challenged {
			blocked := ErrBlocked{Category: verdict.Category}
			lastErr = blocked
			s.limiter.OnError(source, classOf(blocked))
			s.metrics.IncChallenge(string(source), string(verdict.Category))
			s.metrics.IncError(string(source), errorTypeLabel(blocked))
			slog.Warn("challenge detected",
				slog.String("source", string(source)),
				slog.String("category", string(verdict.Category)),
				slog.Int("attempt", result.Attempts),
			)
			// A captcha cannot be waited out; identity rotation on the next
			// run is the only way past it.
			if verdict.Category == detect.CategoryCaptcha {
				break
			}
			continue
		}

		// A 5xx (or a 429 without block markers) is a failed fetch that
		// happened to carry a body; feed the error backoff, don't extract.
		if status := page.StatusCode; status == http.StatusTooManyRequests || status >= 500 {
			classified := classifyTransport(nil, status)
			lastErr = classified
			s.limiter.OnError(source, classOf(classified))
			s.metrics.IncError(string(source), errorTypeLabel(classified))
			slog.Warn("error status",
				slog.String("source", string(source)),
				slog.Int("status", status),
				slog.Int("attempt", result.Attempts),
			)
			continue
		}

		s.limiter.OnSuccess(source)

		raws, err := s.extractor.Extract(page)
		if err != nil {
			lastErr = err
			s.metrics.IncError(string(source), "extraction")
			slog.Warn("extraction failed",
				slog.String("source", string(source)),
				slog.Int("attempt", result.Attempts),
				slog.Any("error", err),
			)
			// Dynamic content may render differently on a second look, but a
			// structural parse failure is not a transport problem: allow one
			// distinct re-attempt, then give up.
			if !extractionRetried && result.Attempts < s.cfg.MaxAttempts {
				extractionRetried = true
				continue
			}
			break
		}

		return s.finish(result, raws, start)
	}

	result.Status = models.StatusFailure
	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	result.Err = lastErr.Error()
	result.Elapsed = time.Since(start)
	return result
}

func (s *SourceScraper) fetchOnce(ctx context.Context, url string) (fetch.Page, error) {
	opts := fetch.Options{Timeout: s.cfg.FetchTimeout}
	if s.identities != nil {
		id := s.identities.Next()
		opts.UserAgent = id.UserAgent
		opts.Headers = id.Headers
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	begin := time.Now()
	page, err := s.client.Fetch(fetchCtx, url, opts)
	s.metrics.ObserveFetchDuration(time.Since(begin))
	return page, err
}

func (s *SourceScraper) finish(result models.SourceResult, raws []models.RawListing, start time.Time) models.SourceResult {
	source := s.extractor.Source()

	listings := make([]models.Listing, 0, len(raws))
	for _, raw := range raws {
		listing, err := parser.Normalize(raw, s.cfg.PriceBounds)
		if err != nil {
			result.Rejected++
			slog.Debug("listing rejected",
				slog.String("source", string(source)),
				slog.Any("reason", err),
			)
			continue
		}
		listings = append(listings, listing)
	}
	result.Listings = listings
	result.Elapsed = time.Since(start)

	s.metrics.AddListings(string(source), len(listings))
	s.metrics.AddRejections(string(source), result.Rejected)

	recovered := result.Attempts > 1
	someRejected := result.Rejected > 0 && len(listings) > 0
	if recovered || someRejected {
		result.Status = models.StatusPartialFailure
	} else {
		// Zero listings on a clean fetch is still a success: the venue may
		// simply have no current availability.
		result.Status = models.StatusSuccess
	}

	slog.Info("source scrape finished",
		slog.String("source", string(source)),
		slog.String("status", string(result.Status)),
		slog.Int("listings", len(listings)),
		slog.Int("rejected", result.Rejected),
		slog.Int("attempts", result.Attempts),
	)
	return result
}

func (s *SourceScraper) cancelled(result models.SourceResult, start time.Time) models.SourceResult {
	result.Status = models.StatusFailure
	result.Err = ErrCancelled.Error()
	result.Elapsed = time.Since(start)
	s.metrics.IncError(string(s.extractor.Source()), "cancelled")
	return result
}
