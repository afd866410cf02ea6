package mw

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/MrSnakeDoc/stash/internal/auth"
	"github.com/MrSnakeDoc/stash/internal/logger"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body rejectBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Kind
}

func TestAllowCIDRs(t *testing.T) {
	h := AllowCIDRs([]string{"10.0.0.0/8", "bogus"}, true, logger.NewNop())(ok)

	r := httptest.NewRequest(http.MethodGet, "/infra", nil)
	r.RemoteAddr = "127.0.0.1:9000"
	r.Header.Set("X-Forwarded-For", "10.1.2.3, 127.0.0.1")
	assert.Equal(t, http.StatusNoContent, serve(h, r).Code)

	r = httptest.NewRequest(http.MethodGet, "/infra", nil)
	r.RemoteAddr = "192.0.2.1:9000"
	rec := serve(h, r)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorKind(t, rec))
}

func TestAllowCIDRsEmptyIsPassthrough(t *testing.T) {
	h := AllowCIDRs(nil, false, logger.NewNop())(ok)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:9000"
	assert.Equal(t, http.StatusNoContent, serve(h, r).Code)
}

func TestEnforceHost(t *testing.T) {
	h := EnforceHost([]string{"stash.example.com", "*.lan"}, logger.NewNop())(ok)

	tests := []struct {
		host string
		want int
	}{
		{"stash.example.com", http.StatusNoContent},
		{"STASH.example.com:8080", http.StatusNoContent},
		{"box.lan", http.StatusNoContent},
		{"lan", http.StatusForbidden},
		{"evil.example.com", http.StatusForbidden},
		{"stash.example.com.evil", http.StatusForbidden},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Host = tt.host
		assert.Equal(t, tt.want, serve(h, r).Code, tt.host)
	}
}

func TestRateLimit(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newLimiter(RateLimitConfig{Burst: 2, PerMinute: 60, now: func() time.Time { return now }})
	h := rateLimit(l)(ok)

	call := func(ip string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
		r.RemoteAddr = ip + ":1234"
		return serve(h, r)
	}

	assert.Equal(t, http.StatusNoContent, call("192.0.2.1").Code)
	rec := call("192.0.2.1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = call("192.0.2.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate-limited", errorKind(t, rec))

	// other callers have their own bucket
	assert.Equal(t, http.StatusNoContent, call("192.0.2.2").Code)

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusNoContent, call("192.0.2.1").Code)
}

func TestRateLimitSweepsIdleBuckets(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newLimiter(RateLimitConfig{Burst: 1, PerMinute: 1, IdleTTL: time.Minute, SweepInterval: time.Minute, now: func() time.Time { return now }})

	l.take("a")
	l.take("b")
	assert.Equal(t, 2, l.size())

	now = now.Add(2 * time.Minute)
	l.take("c")
	assert.Equal(t, 1, l.size())
}

func TestByOwner(t *testing.T) {
	key := ByOwner(false)

	r := httptest.NewRequest(http.MethodPost, "/api/summarize", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", key(r))

	r = r.WithContext(auth.WithSession(r.Context(), auth.Session{UserID: "u1"}))
	assert.Equal(t, "owner:u1", key(r))
}

type stubProvider struct{ sessions map[string]auth.Session }

func (p stubProvider) CurrentSession(_ context.Context, token string) (auth.Session, error) {
	if s, ok := p.sessions[token]; ok {
		return s, nil
	}
	return auth.Session{}, auth.ErrNoSession
}

func (stubProvider) SignOut(context.Context, string) error { return nil }

func TestRequireSession(t *testing.T) {
	p := stubProvider{sessions: map[string]auth.Session{"tok": {Token: "tok", UserID: "u1"}}}
	var seen string
	h := RequireSession(p, logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := auth.FromContext(r.Context())
		seen = s.UserID
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorKind(t, rec))

	r := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
	r.Header.Set("Authorization", "Bearer tok")
	assert.Equal(t, http.StatusOK, serve(h, r).Code)
	assert.Equal(t, "u1", seen)
}

func TestSessionOrRedirect(t *testing.T) {
	h := SessionOrRedirect(stubProvider{}, "/", logger.NewNop())(ok)
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestLogLevels(t *testing.T) {
	log, logs := logger.NewObserved(zapcore.DebugLevel)

	r := chi.NewRouter()
	r.Use(Log(log))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/api/bookmarks/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) })

	serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/api/bookmarks/b1", nil))

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.EqualValues(t, 200, entries[0].ContextMap()["status"])
	assert.EqualValues(t, 2, entries[0].ContextMap()["bytes"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "/api/bookmarks/{id}", entries[1].ContextMap()["route"])
	assert.Equal(t, "http", entries[1].LoggerName)
}
