package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stash/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/stash/internal/httpserver/mw"
	"github.com/MrSnakeDoc/stash/internal/realtime"
)

func init() {
	Register("library", registerLibrary)
	Register("summarize", registerSummarize)
	Register("events", registerEvents)
	Register("import", registerImport)
}

// timeout is middleware.Timeout, or a passthrough for d <= 0.
func timeout(d time.Duration) Middleware {
	if d <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.Timeout(d)
}

func registerLibrary(r chi.Router, d deps.Deps) {
	r.Group(func(r chi.Router) {
		r.Use(timeout(d.RequestTimeout), mw.RequireSession(d.Auth, d.Logger))

		r.Get("/api/bookmarks", handlers.ListBookmarks(d))
		r.Get("/api/bookmarks/search", handlers.SearchBookmarks(d))
		r.Post("/api/bookmarks", handlers.CreateBookmark(d))
		r.Delete("/api/bookmarks/{id}", handlers.DeleteBookmark(d))
		r.Patch("/api/bookmarks/{id}", handlers.MoveBookmark(d))

		r.Get("/api/collections", handlers.ListCollections(d))
		r.Post("/api/collections", handlers.CreateCollection(d))
		r.Delete("/api/collections/{id}", handlers.DeleteCollection(d))

		r.Post("/api/auth/signout", handlers.SignOut(d))
	})

	r.With(timeout(d.RequestTimeout), mw.SessionOrRedirect(d.Auth, "/", d.Logger)).Get("/dashboard", handlers.Dashboard(d))
}

// summaries call paid upstream models, each owner gets its own budget
func registerSummarize(r chi.Router, d deps.Deps) {
	limit := func(next http.Handler) http.Handler { return next }
	if d.SummarizeBurst > 0 {
		limit = mw.RateLimit(mw.RateLimitConfig{
			Burst:      d.SummarizeBurst,
			PerMinute:  d.SummarizePerMin,
			MaxEntries: 10000,
			Key:        mw.ByOwner(d.TrustProxy),
		})
	}
	r.With(timeout(d.SummarizeTimeout), mw.RequireSession(d.Auth, d.Logger), limit).Post("/api/summarize", handlers.Summarize(d))
}

// the feed is long-lived, no request timeout
func registerEvents(r chi.Router, d deps.Deps) {
	r.With(mw.RequireSession(d.Auth, d.Logger)).Get("/api/events", realtime.Handler(d.Docs, realtime.Options{
		OriginPatterns: d.RealtimeOrigins,
	}, d.Logger))
}

func registerImport(r chi.Router, d deps.Deps) {
	r.With(
		mw.AllowCIDRs(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		timeout(d.RequestTimeout),
		mw.RequireSession(d.Auth, d.Logger),
	).Post("/api/import", handlers.Import(d))
}
