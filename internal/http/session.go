package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	applog "invoicer/internal/log"
	"invoicer/internal/middleware/trace"
)

// Session identifies the caller of one request.
type Session struct {
	User      string
	StartedAt time.Time
	RequestID string
}

type sessionKey struct{}

// AnonymousUser names the caller when authentication is disabled.
const AnonymousUser = "anonymous"

// SessionFromContext returns the session stored by the auth middleware.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

func withSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// basicAuth enforces HTTP Basic Authentication and stores the Session.
// With no credentials configured every caller is let in as AnonymousUser.
func basicAuth(user, pass string, now func() time.Time, logger *applog.Logger) func(http.Handler) http.Handler {
	enabled := user != "" || pass != ""
	if !enabled {
		logger.Warn("AUTH_USER and AUTH_PASS not set, API is unauthenticated")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := AnonymousUser
			if enabled {
				u, p, ok := r.BasicAuth()
				if !ok || !equal(u, user) || !equal(p, pass) {
					applog.FromContext(r.Context()).WarnContext(r.Context(), "Authentication failed",
						applog.FieldErrorType, applog.ErrorTypeAuth,
						applog.FieldUser, u)
					w.Header().Set("WWW-Authenticate", `Basic realm="invoicer"`)
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				caller = u
			}

			ctx := withSession(r.Context(), Session{
				User:      caller,
				StartedAt: now(),
				RequestID: trace.GetRequestID(r.Context()),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
