package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/stash/internal/auth"
	"github.com/MrSnakeDoc/stash/internal/dashboard"
	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/optimistic"
	"github.com/MrSnakeDoc/stash/internal/store"
)

// Error kinds beyond the validation ones in domain.
const (
	KindUnauthorized        = "unauthorized"
	KindRateLimited         = "rate-limited"
	KindUpstreamUnavailable = "upstream-unavailable"
	KindTimeout             = "timeout"
	KindNotFound            = "not-found"
	KindConflict            = "conflict"
	KindBadRequest          = "bad-request"
	KindInternal            = "internal"
	KindForbidden           = "forbidden" // written by the access middlewares
)

type apiError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: apiError{Kind: kind, Message: message}})
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, KindBadRequest, "Request body must be a JSON object.")
		return false
	}
	return true
}

// writeFailure maps a domain or store error to its HTTP response.
func writeFailure(w http.ResponseWriter, log logger.Logger, err error) {
	if ve, ok := domain.IsValidation(err); ok {
		writeError(w, http.StatusBadRequest, ve.Kind, ve.Message)
		return
	}
	switch {
	case errors.Is(err, auth.ErrNoSession):
		writeError(w, http.StatusUnauthorized, KindUnauthorized, "Sign in to continue.")
	case errors.Is(err, store.ErrNotFound), errors.Is(err, optimistic.ErrUnknownBookmark):
		writeError(w, http.StatusNotFound, KindNotFound, "Not found.")
	case errors.Is(err, optimistic.ErrMutationInFlight):
		writeError(w, http.StatusConflict, KindConflict, "Another change to this bookmark is still being saved.")
	default:
		log.Error("request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, KindInternal, "Something went wrong. Please try again.")
	}
}

// librarySession returns the caller's dashboard session. The request must
// have gone through mw.RequireSession.
func librarySession(d deps.Deps, r *http.Request) (*dashboard.Session, error) {
	s, ok := auth.FromContext(r.Context())
	if !ok {
		return nil, auth.ErrNoSession
	}
	return d.Hub.Acquire(r.Context(), s)
}
