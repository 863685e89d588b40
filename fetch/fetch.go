// Package fetch abstracts page retrieval behind interchangeable transports.
package fetch

import (
	"context"
	"time"
)

// Page is the raw outcome of fetching one URL.
type Page struct {
	URL        string
	HTML       string
	Title      string
	StatusCode int
	FetchedAt  time.Time
}

// Options controls a single fetch.
type Options struct {
	UserAgent string
	Headers   map[string]string
	Timeout   time.Duration
}

// Client retrieves pages. Implementations must return an error only when no
// usable response was obtained; block pages served with 4xx/5xx still come
// back as a Page so the caller can classify them.
type Client interface {
	Fetch(ctx context.Context, url string, opts Options) (Page, error)

	// Close releases transport resources (browser instances, idle connections).
	Close() error

	// Type returns "static" or "browser".
	Type() string
}

// Config holds common transport configuration.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// DefaultConfig returns sensible transport defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Timeout:   30 * time.Second,
	}
}
