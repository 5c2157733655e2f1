// Package httpmw wires the runtime core into an HTTP request pipeline. The
// middleware is framework-free net/http, so it composes with any router.
//
// Order matters: RequestContext must run before Session, because Session
// publishes into the scope RequestContext installs.
package httpmw

import (
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/hydra-platform/go-hydra-core/logging"
	"github.com/hydra-platform/go-hydra-core/requestctx"
	"github.com/hydra-platform/go-hydra-core/session"
)

// Header names shared with clients.
const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderUserID        = "X-User-Id"
	HeaderSystemRequest = "X-System-Request"
)

// RequestContext establishes the ambient scope for every request: the
// correlation id (reused from the inbound header when it parses, generated
// otherwise), and the configured platform id. The resolved correlation id is
// echoed back on the response so client and server logs can be joined.
//
// The scope is cleared when the request finishes, on every exit path
// including a handler panic; the panic itself propagates after cleanup.
func RequestContext(platformID *uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := requestctx.CorrelationIDFrom(r.Header.Get(HeaderCorrelationID))

			scope := requestctx.NewScope(correlationID, platformID)
			ctx := requestctx.WithScope(r.Context(), scope)
			defer scope.Clear()

			w.Header().Set(HeaderCorrelationID, correlationID.String())

			logging.Logger().DebugContext(ctx, "request started",
				"method", r.Method,
				"path", r.URL.Path,
			)

			next.ServeHTTP(w, r.WithContext(ctx))

			logging.Logger().DebugContext(ctx, "request finished",
				"method", r.Method,
				"path", r.URL.Path,
			)
		})
	}
}

// Session resolves the caller's session and publishes it into the request
// scope for the duration of the handler.
//
// An identified caller (X-User-Id carrying a well-formed id) must have a
// live session: a hit refreshes the session's transport fields and activity
// stamp, a miss rejects the request with 401 before the handler runs. An
// X-User-Id that does not parse identifies nobody and is treated as absent.
// A system caller (X-System-Request present) gets a synthetic "System"
// session. A request with neither marker runs anonymously. Whatever was
// published is dropped again when the handler returns.
func Session(mgr *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			scope, hasScope := requestctx.FromContext(ctx)

			if userID, err := uuid.Parse(r.Header.Get(HeaderUserID)); err == nil {
				info, found := mgr.Refresh(userID, remoteIP(r), r.UserAgent())
				if !found {
					logging.Logger().WarnContext(ctx, "session rejected", "user_id", userID.String())
					http.Error(w, "Session expired or invalid.", http.StatusUnauthorized)
					return
				}

				if hasScope {
					scope.SetSession(info)
					defer scope.ClearSession()
				}
			} else if _, isSystem := r.Header[http.CanonicalHeaderKey(HeaderSystemRequest)]; isSystem {
				info := session.NewSystemSession(remoteIP(r), r.UserAgent())
				if hasScope {
					scope.SetSession(info)
					defer scope.ClearSession()
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// remoteIP strips the port from the peer address.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
