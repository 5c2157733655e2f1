// Package requestctx carries per-request ambient state: the correlation
// identifier, the optional platform identifier and the resolved session for
// the request being processed.
//
// Go has no task-local storage; the request-local mechanism is the request's
// context.Context. A *Scope is installed into the context once at the start
// of the request and read anywhere downstream via FromContext or the
// package-level accessors. The scope is a pointer, so values published by
// middleware are visible to every goroutine the handler spawns with that
// context, and invisible to every other concurrent request. Clear releases
// the scope exactly once per request; clearing an already-cleared scope is a
// no-op.
package requestctx

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hydra-platform/go-hydra-core/session"
)

type scopeKey struct{}

// Scope is the per-request slot for ambient values. It is safe for
// concurrent use: a handler may fan out goroutines that read the scope while
// middleware later clears it.
type Scope struct {
	mu            sync.RWMutex
	correlationID uuid.UUID
	platformID    *uuid.UUID
	session       *session.Information
	cleared       bool
}

// NewScope establishes the ambient state for one request. platformID may be
// nil when the deployment has no platform identity configured.
func NewScope(correlationID uuid.UUID, platformID *uuid.UUID) *Scope {
	return &Scope{
		correlationID: correlationID,
		platformID:    platformID,
	}
}

// CorrelationIDFrom reuses the supplied header value when it parses as a
// canonical unique id, otherwise generates a fresh one.
func CorrelationIDFrom(header string) uuid.UUID {
	if id, err := uuid.Parse(header); err == nil {
		return id
	}
	return uuid.New()
}

// WithScope returns a context carrying the scope.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the ambient scope for the request, if one is active.
// A cleared scope reports absent.
func FromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	if !ok {
		return nil, false
	}
	s.mu.RLock()
	cleared := s.cleared
	s.mu.RUnlock()
	if cleared {
		return nil, false
	}
	return s, true
}

// CorrelationID returns the request's correlation id.
func (s *Scope) CorrelationID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cleared {
		return uuid.Nil
	}
	return s.correlationID
}

// PlatformID returns the platform id and whether one is set.
func (s *Scope) PlatformID() (uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cleared || s.platformID == nil {
		return uuid.Nil, false
	}
	return *s.platformID, true
}

// SetSession publishes the resolved session for the request. The scope holds
// a non-owning reference; the session cache remains the authority.
func (s *Scope) SetSession(info *session.Information) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cleared {
		return
	}
	s.session = info
}

// Session returns the current session, if one was published.
func (s *Scope) Session() (*session.Information, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cleared || s.session == nil {
		return nil, false
	}
	return s.session, true
}

// ClearSession drops the published session reference, leaving the rest of
// the scope intact.
func (s *Scope) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
}

// Clear releases the scope. It is idempotent: the first call empties the
// scope, later calls are no-ops. After Clear every accessor reports empty.
func (s *Scope) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cleared {
		return
	}
	s.cleared = true
	s.correlationID = uuid.Nil
	s.platformID = nil
	s.session = nil
}

// CorrelationID returns the active request's correlation id, if any.
func CorrelationID(ctx context.Context) (uuid.UUID, bool) {
	s, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	id := s.CorrelationID()
	if id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// PlatformID returns the active request's platform id, if any.
func PlatformID(ctx context.Context) (uuid.UUID, bool) {
	s, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return s.PlatformID()
}

// CurrentSession returns the active request's session, if one was published.
func CurrentSession(ctx context.Context) (*session.Information, bool) {
	s, ok := FromContext(ctx)
	if !ok {
		return nil, false
	}
	return s.Session()
}
