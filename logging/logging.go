// Package logging holds the module's structured logging setup. By default
// nothing is logged; the embedding application calls SetLogger once at
// startup. Records emitted while a request scope is active are stamped with
// that scope's correlation id, platform id and principal, so client and
// server logs can be joined on the correlation id.
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/hydra-platform/go-hydra-core/requestctx"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// loggerPtr stores the active logger. Accessed atomically so SetLogger can
// be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := slog.New(nopHandler{})
	loggerPtr.Store(l)
}

// SetLogger configures the module's logger. The handler is wrapped so every
// record emitted inside an active request scope carries the scope's
// identifiers. Pass nil to restore the default silent behavior.
//
// SetLogger is safe for concurrent use.
func SetLogger(l *slog.Logger) {
	if l == nil {
		loggerPtr.Store(slog.New(nopHandler{}))
		return
	}
	loggerPtr.Store(slog.New(NewContextHandler(l.Handler())))
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// ContextHandler decorates a slog.Handler, stamping ambient request-scope
// attributes onto each record it handles.
type ContextHandler struct {
	inner slog.Handler
}

// NewContextHandler wraps inner with request-scope stamping.
func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

// Enabled reports whether the wrapped handler handles records at the level.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds the active scope's identifiers to the record and delegates.
func (h *ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if scope, ok := requestctx.FromContext(ctx); ok {
		record.AddAttrs(slog.String("correlation_id", scope.CorrelationID().String()))
		if pid, ok := scope.PlatformID(); ok {
			record.AddAttrs(slog.String("platform_id", pid.String()))
		}
		if info, ok := scope.Session(); ok {
			record.AddAttrs(slog.String("user_id", info.SystemUserID.String()))
		}
	}
	return h.inner.Handle(ctx, record)
}

// WithAttrs returns a handler whose wrapped handler carries the attributes.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a handler whose wrapped handler carries the group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}
