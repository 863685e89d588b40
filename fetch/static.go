package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// StaticClient fetches pages over plain HTTP using a colly collector per
// request. Suitable for sources that render listings server-side.
type StaticClient struct {
	cfg Config

	mu        sync.Mutex
	transport http.RoundTripper
}

// NewStaticClient builds a static HTTP client.
func NewStaticClient(cfg Config) *StaticClient {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &StaticClient{
		cfg: cfg,
		transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// WithTransport swaps the underlying round tripper. Used by tests.
func (c *StaticClient) WithTransport(rt http.RoundTripper) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport = rt
}

// Fetch retrieves one page synchronously.
func (c *StaticClient) Fetch(ctx context.Context, url string, opts Options) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = c.cfg.UserAgent
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = c.cfg.Timeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	collector := colly.NewCollector(colly.UserAgent(userAgent))
	collector.SetRequestTimeout(timeout)
	collector.IgnoreRobotsTxt = true

	c.mu.Lock()
	collector.WithTransport(c.transport)
	c.mu.Unlock()

	if len(opts.Headers) > 0 {
		collector.OnRequest(func(r *colly.Request) {
			for k, v := range opts.Headers {
				r.Headers.Set(k, v)
			}
		})
	}

	var page Page
	var fetchErr error
	var gotResponse bool

	record := func(r *colly.Response) {
		gotResponse = true
		page = Page{
			URL:        url,
			HTML:       string(r.Body),
			StatusCode: r.StatusCode,
			FetchedAt:  time.Now(),
		}
		page.Title = pageTitle(page.HTML)
	}

	collector.OnResponse(func(r *colly.Response) {
		record(r)
	})
	collector.OnError(func(r *colly.Response, err error) {
		// A block page served with 403/503 still carries a body worth
		// classifying; only responseless failures surface as errors.
		if r != nil && r.StatusCode > 0 {
			record(r)
			return
		}
		fetchErr = err
	})

	if err := collector.Visit(url); err != nil {
		return Page{}, fmt.Errorf("visit %s: %w", url, err)
	}
	collector.Wait()

	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if !gotResponse {
		if fetchErr == nil {
			fetchErr = fmt.Errorf("no response")
		}
		return Page{}, fmt.Errorf("fetch %s: %w", url, fetchErr)
	}
	return page, nil
}

// Close releases idle connections.
func (c *StaticClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}

// Type identifies the transport.
func (c *StaticClient) Type() string {
	return "static"
}

func pageTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
