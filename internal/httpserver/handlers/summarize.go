package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/stash/internal/auth"
	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/optimistic"
	"github.com/MrSnakeDoc/stash/internal/summarize"
)

type summarizeRequest struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	BookmarkID string `json:"bookmarkId,omitempty"`
}

type summarizeResponse struct {
	Summary          string `json:"summary"`
	Cached           bool   `json:"cached"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	Status           string `json:"status"`
	Model            string `json:"model,omitempty"`
}

// Summarize answers POST /api/summarize. Blocked and unconfigured outcomes
// are displayable answers (200); rate limiting, exhaustion and timeouts
// are errors the client can retry.
func Summarize(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req summarizeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		in := summarize.Input{URL: strings.TrimSpace(req.URL), Title: strings.TrimSpace(req.Title)}
		if err := in.Validate(); err != nil {
			writeFailure(w, d.Logger, err)
			return
		}

		sess, ok := auth.FromContext(r.Context())
		if !ok {
			writeFailure(w, d.Logger, auth.ErrNoSession)
			return
		}

		res, err := summarizeFor(d, r, sess, in, strings.TrimSpace(req.BookmarkID))
		if err != nil {
			writeFailure(w, d.Logger, err)
			return
		}

		d.Logger.Info("summary request",
			logger.String("owner_id", sess.UserID),
			logger.String("status", res.Status.String()),
			logger.String("model", res.Model),
			logger.Bool("cached", res.Cached),
			logger.Duration("elapsed", res.Elapsed))

		switch res.Status {
		case summarize.StatusOK, summarize.StatusBlocked, summarize.StatusUnconfigured:
			writeJSON(w, http.StatusOK, summarizeResponse{
				Summary:          res.Text,
				Cached:           res.Cached,
				ProcessingTimeMs: res.Elapsed.Milliseconds(),
				Status:           res.Status.String(),
				Model:            res.Model,
			})
		case summarize.StatusRateLimited:
			if res.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
			}
			writeError(w, http.StatusTooManyRequests, KindRateLimited, res.Text)
		case summarize.StatusTimeout:
			writeError(w, http.StatusGatewayTimeout, KindTimeout, res.Text)
		default:
			writeError(w, http.StatusBadGateway, KindUpstreamUnavailable, res.Text)
		}
	}
}

// summarizeFor goes through the caller's live library when the bookmark is
// in it, so the view gets the summary too.
func summarizeFor(d deps.Deps, r *http.Request, sess auth.Session, in summarize.Input, bookmarkID string) (summarize.Result, error) {
	if bookmarkID != "" && d.Hub != nil {
		lib, err := d.Hub.Acquire(r.Context(), sess)
		if err != nil {
			return summarize.Result{}, err
		}
		res, err := lib.Summarize(r.Context(), bookmarkID)
		if !errors.Is(err, optimistic.ErrUnknownBookmark) {
			return res, err
		}
	}
	return d.Summaries.Summarize(r.Context(), summarize.Query{
		OwnerID:    sess.UserID,
		BookmarkID: bookmarkID,
		Input:      in,
	}), nil
}
