package config

import (
	"sync"
	"time"
)

// Manager caches a loaded Config for a bounded time so repeated lookups in
// one process do not re-read the environment on every call. The TTL is
// explicit configuration; a zero TTL disables caching.
type Manager struct {
	mu           sync.Mutex
	ttl          time.Duration
	loadFn       func() (*Config, error)
	current      *Config
	lastLoadedAt time.Time
	now          func() time.Time
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithLoadFunc overrides the load function.
func WithLoadFunc(fn func() (*Config, error)) ManagerOption {
	return func(m *Manager) {
		m.loadFn = fn
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a configuration manager with the given cache TTL.
func NewManager(ttl time.Duration, opts ...ManagerOption) *Manager {
	m := &Manager{
		ttl:    ttl,
		loadFn: Load,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the cached configuration, reloading it when the cache is
// empty or older than the TTL.
func (m *Manager) Get() (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.ttl > 0 && m.now().Sub(m.lastLoadedAt) < m.ttl {
		return m.current, nil
	}

	cfg, err := m.loadFn()
	if err != nil {
		// Keep serving the previous config on reload failure, if any.
		if m.current != nil {
			return m.current, nil
		}
		return nil, err
	}

	m.current = cfg
	m.lastLoadedAt = m.now()
	return cfg, nil
}

// Invalidate drops the cached configuration so the next Get reloads.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	m.lastLoadedAt = time.Time{}
}

// LastLoadedAt reports when the cached configuration was loaded.
func (m *Manager) LastLoadedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastLoadedAt
}
