package fetchmetanet

import (
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// ProxyManager rotates outbound proxies for provider requests, adapted
// from the teacher's ProxyManager.
type ProxyManager struct {
	proxies  []*proxyEntry
	rotation string
	index    atomic.Int64
	mu       sync.RWMutex
	logger   *slog.Logger
}

type proxyEntry struct {
	url     *url.URL
	healthy bool
	lastErr error
	mu      sync.Mutex
}

// NewProxyManager builds a proxy manager rotating among rawURLs using the
// named rotation strategy ("round_robin" or "random").
func NewProxyManager(rawURLs []string, rotation string, logger *slog.Logger) *ProxyManager {
	if logger == nil {
		logger = slog.Default()
	}
	pm := &ProxyManager{rotation: rotation, logger: logger.With("component", "proxy_manager")}
	for _, raw := range rawURLs {
		u, err := url.Parse(raw)
		if err != nil {
			pm.logger.Warn("invalid proxy URL", "url", raw, "error", err)
			continue
		}
		pm.proxies = append(pm.proxies, &proxyEntry{url: u, healthy: true})
	}
	return pm
}

// ProxyFunc returns an http.Transport-compatible proxy selector.
func (pm *ProxyManager) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(*http.Request) (*url.URL, error) {
		return pm.Next(), nil
	}
}

// Next returns the next proxy per the configured rotation, or nil for a
// direct connection if none are healthy.
func (pm *ProxyManager) Next() *url.URL {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	healthy := pm.healthyProxies()
	if len(healthy) == 0 {
		return nil
	}
	if pm.rotation == "random" {
		return healthy[rand.Intn(len(healthy))].url
	}
	idx := pm.index.Add(1) % int64(len(healthy))
	return healthy[idx].url
}

// MarkFailed marks a proxy unhealthy after a failed request.
func (pm *ProxyManager) MarkFailed(proxyURL *url.URL, err error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	for _, p := range pm.proxies {
		if p.url.String() == proxyURL.String() {
			p.mu.Lock()
			p.healthy = false
			p.lastErr = err
			p.mu.Unlock()
			return
		}
	}
}

// MarkHealthy marks a proxy healthy again.
func (pm *ProxyManager) MarkHealthy(proxyURL *url.URL) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	for _, p := range pm.proxies {
		if p.url.String() == proxyURL.String() {
			p.mu.Lock()
			p.healthy = true
			p.lastErr = nil
			p.mu.Unlock()
			return
		}
	}
}

// HealthCheck probes every proxy and updates its status.
func (pm *ProxyManager) HealthCheck(probeURL string) {
	pm.mu.RLock()
	proxies := make([]*proxyEntry, len(pm.proxies))
	copy(proxies, pm.proxies)
	pm.mu.RUnlock()

	for _, p := range proxies {
		client := &http.Client{
			Timeout:   10 * time.Second,
			Transport: &http.Transport{Proxy: http.ProxyURL(p.url)},
		}
		_, err := client.Get(probeURL)
		if err != nil {
			pm.MarkFailed(p.url, err)
		} else {
			pm.MarkHealthy(p.url)
		}
	}
}

// HealthyCount reports how many proxies currently pass health checks.
func (pm *ProxyManager) HealthyCount() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.healthyProxies())
}

func (pm *ProxyManager) healthyProxies() []*proxyEntry {
	healthy := make([]*proxyEntry, 0, len(pm.proxies))
	for _, p := range pm.proxies {
		p.mu.Lock()
		if p.healthy {
			healthy = append(healthy, p)
		}
		p.mu.Unlock()
	}
	return healthy
}
