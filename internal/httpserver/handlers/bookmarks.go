package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stash/internal/logger"
)

type bookmarksResponse struct {
	Bookmarks []domain.Bookmark `json:"bookmarks"`
}

type createBookmarkRequest struct {
	Title        string  `json:"title"`
	URL          string  `json:"url"`
	CollectionID *string `json:"collection_id"`
}

type createBookmarkResponse struct {
	Bookmark    domain.Bookmark  `json:"bookmark"`
	DuplicateOf *domain.Bookmark `json:"duplicate_of,omitempty"`
}

type moveBookmarkRequest struct {
	CollectionID *string `json:"collection_id"`
}

// ListBookmarks returns the caller's bookmarks, newest first, narrowed by
// the q, category and collection query parameters.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lib, err := librarySession(d, r)
		if err != nil {
			writeFailure(w, d.Logger, err)
			return
		}
		q := r.URL.Query()
		out := lib.Filter(domain.Filter{
			Query:        q.Get("q"),
			Category:     q.Get("category"),
			CollectionID: q.Get("collection"),
		})
		writeJSON(w, http.StatusOK, bookmarksResponse{Bookmarks: out})
	}
}

// SearchBookmarks returns the command palette results for q.
func SearchBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lib, err := librarySession(d, r)
		if err != nil {
			writeFailure(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, bookmarksResponse{Bookmarks: lib.Search(r.URL.Query().Get("q"))})
	}
}

// CreateBookmark saves a bookmark. A bookmark already saved under the same
// normalized URL is reported but does not prevent saving.
func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createBookmarkRequest
		if !decodeBody(w, r, &req) {
			return
		}
		lib, err := librarySession(d, r)
		if err != nil {
			writeFailure(w, d.Logger, err)
			return
		}

		var resp createBookmarkResponse
		if dup, ok := lib.CheckDuplicate(req.URL); ok {
			resp.DuplicateOf = &dup
		}

		saved, err := lib.AddBookmark(r.Context(), req.Title, req.URL, req.CollectionID)
		if err != nil {
			writeFailure(w, d.Logger, err)
			return
		}
		resp.Bookmark = saved

		d.Logger.Info("bookmark created",
			logger.String("owner_id", lib.OwnerID()),
			logger.String("bookmark_id", saved.ID),
			logger.Bool("duplicate", resp.DuplicateOf != nil))
		writeJSON(w, http.StatusCreated, resp)
	}
}

func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lib, err := librarySession(d, r)
		if err != nil {
			writeFailure(w, d.Logger, err)
			return
		}
		if err := lib.DeleteBookmark(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeFailure(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// MoveBookmark files a bookmark under collection_id, null to unfile it.
func MoveBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req moveBookmarkRequest
		if !decodeBody(w, r, &req) {
			return
		}
		lib, err := librarySession(d, r)
		if err != nil {
			writeFailure(w, d.Logger, err)
			return
		}

		id := chi.URLParam(r, "id")
		if err := lib.MoveBookmark(r.Context(), id, req.CollectionID); err != nil {
			writeFailure(w, d.Logger, err)
			return
		}
		b, ok := lib.Bookmark(id)
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}
