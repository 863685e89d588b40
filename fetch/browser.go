package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserClient fetches pages through a headless browser. Required for
// sources that render listings client-side or sit behind JS challenges.
type BrowserClient struct {
	cfg      Config
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewBrowserClient starts a browser allocator shared by all fetches.
func NewBrowserClient(cfg Config) (*BrowserClient, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &BrowserClient{
		cfg:      cfg,
		allocCtx: allocCtx,
		cancel:   cancel,
	}, nil
}

// Fetch renders one page in a fresh browser context.
func (c *BrowserClient) Fetch(ctx context.Context, url string, opts Options) (Page, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = c.cfg.Timeout
	}

	browserCtx, cancelBrowser := chromedp.NewContext(c.allocCtx)
	defer cancelBrowser()

	runCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)
	defer cancelTimeout()

	// Propagate caller cancellation into the browser context.
	stop := context.AfterFunc(ctx, cancelBrowser)
	defer stop()

	var html, title string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html),
	)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Page{}, ctxErr
	}
	if err != nil {
		return Page{}, fmt.Errorf("render %s: %w", url, err)
	}

	return Page{
		URL:       url,
		HTML:      html,
		Title:     title,
		FetchedAt: time.Now(),
		// CDP does not expose the document status here; challenge pages are
		// caught by content classification instead.
		StatusCode: 200,
	}, nil
}

// Close tears down the browser allocator.
func (c *BrowserClient) Close() error {
	c.cancel()
	return nil
}

// Type identifies the transport.
func (c *BrowserClient) Type() string {
	return "browser"
}
