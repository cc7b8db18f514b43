package fetchmetanet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserBackend renders provider pages in a headless browser before
// extracting metadata, for providers whose content only appears after
// client-side JavaScript runs. Adapted from the teacher's BrowserFetcher.
type BrowserBackend struct {
	browser   *rod.Browser
	stealth   StealthOptions
	selectors Selectors
	timeout   time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	pagePool chan *rod.Page
	maxPages int
}

// NewBrowserBackend launches a headless Chromium instance and returns a
// backend that renders pages against it.
func NewBrowserBackend(opts StealthOptions, selectors Selectors, timeout time.Duration, maxPages int, logger *slog.Logger) (*BrowserBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if selectors.Title == "" {
		selectors = DefaultSelectors()
	}
	if maxPages <= 0 {
		maxPages = 4
	}

	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox")
	if opts.Enabled && opts.Width > 0 && opts.Height > 0 {
		l = l.Set("window-size", fmt.Sprintf("%d,%d", opts.Width, opts.Height))
	}

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("fetchmetanet: launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("fetchmetanet: connect browser: %w", err)
	}

	return &BrowserBackend{
		browser:   browser,
		stealth:   opts,
		selectors: selectors,
		timeout:   timeout,
		logger:    logger.With("component", "browser_metadata_backend"),
		pagePool:  make(chan *rod.Page, maxPages),
		maxPages:  maxPages,
	}, nil
}

// FetchMeta navigates to providerURL, waits for the page to settle, and
// extracts metadata from the rendered DOM.
func (b *BrowserBackend) FetchMeta(ctx context.Context, providerURL string) (*Metadata, error) {
	page, err := b.getPage()
	if err != nil {
		return nil, fmt.Errorf("fetchmetanet: get page: %w", err)
	}
	defer b.putPage(page)

	if b.stealth.Enabled {
		page, err = stealth.Page(b.browser)
		if err != nil {
			return nil, fmt.Errorf("fetchmetanet: stealth page: %w", err)
		}
	}

	timeout := b.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}

	if err := page.Timeout(timeout).Navigate(providerURL); err != nil {
		return nil, fmt.Errorf("fetchmetanet: navigate %s: %w", providerURL, err)
	}
	if err := page.Timeout(timeout).WaitStable(300 * time.Millisecond); err != nil {
		b.logger.Warn("page stability timeout, continuing", "url", providerURL, "error", err)
	}

	title, err := page.Timeout(timeout).Element(b.selectors.Title)
	var meta Metadata
	if err == nil && title != nil {
		text, _ := title.Text()
		meta.Title = text
	}
	if syn, err := page.Timeout(timeout).Element(b.selectors.Synopsis); err == nil && syn != nil {
		text, _ := syn.Text()
		meta.Synopsis = text
	}
	if poster, err := page.Timeout(timeout).Element(b.selectors.PosterSrc); err == nil && poster != nil {
		if src, ok := poster.Attribute("content"); ok && src != nil {
			meta.PosterURL = *src
		} else if src, ok := poster.Attribute("src"); ok && src != nil {
			meta.PosterURL = *src
		}
	}

	return &meta, nil
}

// Close shuts down the browser and every pooled page.
func (b *BrowserBackend) Close() error {
	b.mu.Lock()
	close(b.pagePool)
	b.mu.Unlock()
	for page := range b.pagePool {
		_ = page.Close()
	}
	if b.browser != nil {
		return b.browser.Close()
	}
	return nil
}

func (b *BrowserBackend) getPage() (*rod.Page, error) {
	select {
	case page := <-b.pagePool:
		return page, nil
	default:
		return b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
}

func (b *BrowserBackend) putPage(page *rod.Page) {
	_ = page.Navigate("about:blank")
	select {
	case b.pagePool <- page:
	default:
		_ = page.Close()
	}
}
