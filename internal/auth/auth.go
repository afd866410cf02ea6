// Package auth resolves the signed-in user from a session token.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrNoSession is returned when a token does not map to a live session.
var ErrNoSession = errors.New("auth: no session")

// CookieName carries the session token for browser clients.
const CookieName = "stash_session"

// Session is a signed-in user.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry. A zero ExpiresAt
// never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Provider answers who is signed in.
type Provider interface {
	// CurrentSession returns ErrNoSession for unknown, expired or empty
	// tokens.
	CurrentSession(ctx context.Context, token string) (Session, error)
	SignOut(ctx context.Context, token string) error
}

// TokenFromRequest reads a bearer token, falling back to the session
// cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):])
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

type ctxKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
