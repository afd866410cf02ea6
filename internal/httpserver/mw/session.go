package mw

import (
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/stash/internal/auth"
	"github.com/MrSnakeDoc/stash/internal/logger"
)

// RequireSession rejects requests without a live session with a 401 JSON
// error. The session is stored in the request context (see auth.FromContext).
func RequireSession(p auth.Provider, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := p.CurrentSession(r.Context(), auth.TokenFromRequest(r))
			if err != nil {
				if !errors.Is(err, auth.ErrNoSession) {
					log.Warn("session lookup failed", logger.Error(err))
				}
				reject(w, http.StatusUnauthorized, "unauthorized", "Sign in to continue.")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), s)))
		})
	}
}

// SessionOrRedirect sends visitors without a session to target instead of
// serving the page.
func SessionOrRedirect(p auth.Provider, target string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := p.CurrentSession(r.Context(), auth.TokenFromRequest(r))
			if err != nil {
				if !errors.Is(err, auth.ErrNoSession) {
					log.Warn("session lookup failed", logger.Error(err))
				}
				log.Debugf("SessionOrRedirect: no session, redirecting to %s", target)
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), s)))
		})
	}
}
