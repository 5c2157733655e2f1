package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/hydra-platform/go-hydra-core/cache"
)

// DefaultTTL is the inactivity window after which a session expires.
const DefaultTTL = 30 * time.Minute

// DefaultCapacity bounds how many concurrent sessions the manager holds.
const DefaultCapacity = 10000

// Manager tracks logged-in principals in a sliding-expiry cache. It adapts
// the generic expiring store with login/logout semantics: one active session
// per principal, last login wins, and every successful lookup counts as
// activity that extends the session's deadline.
//
// Sessions are stored by value and every lookup hands out a private copy, so
// concurrent requests for the same principal never share a mutable record.
//
// Expired sessions are evicted lazily by the lookup that observes them; no
// background sweep runs.
type Manager struct {
	store cache.ExpiringStore[uuid.UUID, Information]
	ttl   time.Duration
}

// NewManager creates a session manager with the provided configuration.
func NewManager(cfg cache.TTLConfig) (*Manager, error) {
	store, err := cache.NewSliding[uuid.UUID, Information](cfg)
	if err != nil {
		return nil, err
	}
	return &Manager{store: store, ttl: cfg.TTL}, nil
}

// NewManagerWithDefaults creates a session manager with the default
// 30-minute inactivity window.
func NewManagerWithDefaults() (*Manager, error) {
	return NewManager(cache.TTLConfig{Capacity: DefaultCapacity, TTL: DefaultTTL})
}

// Login stores the session under its principal identifier, stamping creation
// and activity times. A prior session for the same principal is overwritten.
// The stored record is a copy; the caller keeps ownership of info.
func (m *Manager) Login(info *Information) {
	now := time.Now()
	if info.CreatedAt.IsZero() {
		info.CreatedAt = now
	}
	info.LastActivity = now
	m.store.Put(info.SystemUserID, *info)
}

// TryGetSession returns the live session for the principal, refreshing its
// activity stamp. An expired or never-created session reports not-found;
// expiry is never an error. The returned record is a private copy.
func (m *Manager) TryGetSession(id uuid.UUID) (*Information, bool) {
	info, found := m.store.Get(id)
	if !found {
		return nil, false
	}
	info.Touch()
	m.store.Put(id, info)
	return &info, true
}

// Refresh updates the stored session's transport fields and activity stamp
// and returns a private copy carrying them. Like TryGetSession, an expired
// or unknown principal reports not-found.
func (m *Manager) Refresh(id uuid.UUID, ip, userAgent string) (*Information, bool) {
	info, found := m.store.Get(id)
	if !found {
		return nil, false
	}
	info.IP = ip
	info.UserAgent = userAgent
	info.Touch()
	m.store.Put(id, info)
	return &info, true
}

// Logout removes the principal's session and reports whether one existed.
func (m *Manager) Logout(id uuid.UUID) bool {
	return m.store.Remove(id)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.store.Len()
}

// TTL returns the configured inactivity window.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// SetTimeNowFunc replaces the expiry clock when the underlying store supports
// it. This is primarily useful for testing.
func (m *Manager) SetTimeNowFunc(f func() time.Time) {
	type clocked interface {
		SetTimeNowFunc(func() time.Time)
	}
	if c, ok := m.store.(clocked); ok {
		c.SetTimeNowFunc(f)
	}
}
