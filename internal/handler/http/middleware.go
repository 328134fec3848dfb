package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/pkg/logger"
)

const (
	// SessionCookieName is the cookie carrying the session id.
	SessionCookieName = "sf_session"
	// SessionHeader carries the session id for clients without cookies. It
	// takes precedence over the cookie and is echoed on every response.
	SessionHeader = "X-Session-ID"
)

type ctxKey struct{}

// sessionIDFromContext returns the session id resolved by Session.
func sessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Session resolves the browser's session id from the X-Session-ID header or
// the sf_session cookie. Missing or malformed ids are replaced by a fresh one
// and the cookie is (re)issued.
func Session(secure bool, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := requestSessionID(r)
			if !ok {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int(ttl.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(SessionHeader, id)

			ctx := context.WithValue(r.Context(), ctxKey{}, id)
			ctx = logger.WithSessionID(ctx, id)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With("session_id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestSessionID prefers a well-formed header over the cookie. A malformed
// header does not shadow a valid cookie.
func requestSessionID(r *http.Request) (string, bool) {
	if id := r.Header.Get(SessionHeader); validSessionID(id) {
		return id, true
	}
	if c, err := r.Cookie(SessionCookieName); err == nil && validSessionID(c.Value) {
		return c.Value, true
	}
	return "", false
}

func validSessionID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// sessionKey charges rate limits against the session.
func sessionKey(r *http.Request) string {
	return sessionIDFromContext(r.Context())
}
