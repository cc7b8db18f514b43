package fetchmetanet

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
)

// HTTPBackend fetches provider pages over plain HTTP and extracts metadata
// with CSS selectors via goquery, adapted from the teacher's HTTPFetcher.
type HTTPBackend struct {
	transport  *http.Transport
	timeout    time.Duration
	sessions   *SessionManager
	maxBody    int64
	userAgents []string
	uaIndex    atomic.Int64
	selectors  Selectors
	logger     *slog.Logger
}

// Selectors names the CSS selectors used to pull metadata fields out of a
// provider page.
type Selectors struct {
	Title     string
	Synopsis  string
	PosterSrc string // CSS selector for a poster node; its content attribute is used if non-empty, else its src
}

// DefaultSelectors is a reasonable generic shape for a media metadata page.
func DefaultSelectors() Selectors {
	return Selectors{
		Title:     "h1",
		Synopsis:  "[itemprop='description'], .synopsis, .description",
		PosterSrc: "[itemprop='image'], .poster img",
	}
}

// HTTPBackendOptions configures HTTPBackend construction.
type HTTPBackendOptions struct {
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	MaxBodySize     int64
	UserAgents      []string
	Sessions        *SessionManager
	Proxies         *ProxyManager
	Selectors       Selectors
}

// NewHTTPBackend builds an HTTP-based metadata backend.
func NewHTTPBackend(opts HTTPBackendOptions, logger *slog.Logger) *HTTPBackend {
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        opts.MaxIdleConns,
		MaxIdleConnsPerHost: opts.MaxIdleConns/2 + 1,
		IdleConnTimeout:     opts.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // decompression is handled below, brotli included
	}
	if opts.Proxies != nil {
		transport.Proxy = opts.Proxies.ProxyFunc()
	}

	selectors := opts.Selectors
	if selectors.Title == "" {
		selectors = DefaultSelectors()
	}

	return &HTTPBackend{
		transport:  transport,
		timeout:    60 * time.Second,
		sessions:   opts.Sessions,
		maxBody:    opts.MaxBodySize,
		userAgents: opts.UserAgents,
		selectors:  selectors,
		logger:     logger.With("component", "http_metadata_backend"),
	}
}

// FetchMeta downloads providerURL and extracts metadata from it. Requests
// against the same provider domain share a cookie jar (so a provider that
// sets a session cookie on first contact stays authenticated on the next
// lookup), while every domain's jar stays isolated from every other's.
func (b *HTTPBackend) FetchMeta(ctx context.Context, providerURL string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, providerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetchmetanet: build request: %w", err)
	}
	req.Header.Set("User-Agent", b.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := b.clientFor(providerURL).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetchmetanet: fetch %s: %w", providerURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetchmetanet: fetch %s: status %d", providerURL, resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if b.maxBody > 0 {
		reader = io.LimitReader(reader, b.maxBody)
	}
	reader, err = decompressReader(resp, reader)
	if err != nil {
		return nil, fmt.Errorf("fetchmetanet: decompress %s: %w", providerURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("fetchmetanet: parse %s: %w", providerURL, err)
	}

	meta := &Metadata{
		Title:    strings.TrimSpace(doc.Find(b.selectors.Title).First().Text()),
		Synopsis: strings.TrimSpace(doc.Find(b.selectors.Synopsis).First().Text()),
	}
	if poster := doc.Find(b.selectors.PosterSrc).First(); poster.Length() > 0 {
		if src, ok := poster.Attr("content"); ok && src != "" {
			meta.PosterURL = resolvePosterURL(providerURL, src)
		} else if src, ok := poster.Attr("src"); ok {
			meta.PosterURL = resolvePosterURL(providerURL, src)
		}
	}

	return meta, nil
}

// Close releases idle connections.
func (b *HTTPBackend) Close() error {
	b.transport.CloseIdleConnections()
	return nil
}

// clientFor returns a client for providerURL's host, reusing the shared
// transport (and its connection pool) but scoping cookies to that host's
// jar when session reuse is enabled.
func (b *HTTPBackend) clientFor(providerURL string) *http.Client {
	client := &http.Client{Transport: b.transport, Timeout: b.timeout}
	if b.sessions == nil {
		return client
	}
	u, err := url.Parse(providerURL)
	if err != nil {
		return client
	}
	client.Jar = b.sessions.JarFor(u.Hostname())
	return client
}

func (b *HTTPBackend) nextUserAgent() string {
	if len(b.userAgents) == 0 {
		return "preparser-fetchmetanet/1.0"
	}
	idx := b.uaIndex.Add(1) % int64(len(b.userAgents))
	return b.userAgents[idx]
}

func resolvePosterURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}
