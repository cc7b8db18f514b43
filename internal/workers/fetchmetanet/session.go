package fetchmetanet

import (
	"log/slog"
	"net/http/cookiejar"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// SessionManager keeps one cookie jar per provider domain so repeated
// lookups against the same provider reuse session state, adapted from the
// teacher's SessionManager.
type SessionManager struct {
	mu     sync.RWMutex
	jars   map[string]*cookiejar.Jar
	logger *slog.Logger
}

// NewSessionManager creates an empty session manager.
func NewSessionManager(logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{jars: make(map[string]*cookiejar.Jar), logger: logger.With("component", "session_manager")}
}

// JarFor returns the cookie jar for domain, creating one if needed.
func (sm *SessionManager) JarFor(domain string) *cookiejar.Jar {
	sm.mu.RLock()
	jar, ok := sm.jars[domain]
	sm.mu.RUnlock()
	if ok {
		return jar
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if jar, ok = sm.jars[domain]; ok {
		return jar
	}
	jar, _ = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	sm.jars[domain] = jar
	return jar
}

// DomainCount reports how many domains have active sessions.
func (sm *SessionManager) DomainCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.jars)
}
