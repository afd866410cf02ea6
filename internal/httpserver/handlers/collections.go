package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
)

type collectionsResponse struct {
	Collections []domain.Collection `json:"collections"`
}

type createCollectionRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// ListCollections returns the caller's collections, oldest first.
func ListCollections(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lib, err := librarySession(d, r)
		if err != nil {
			writeFailure(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, collectionsResponse{Collections: lib.View().Collections})
	}
}

func CreateCollection(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCollectionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		lib, err := librarySession(d, r)
		if err != nil {
			writeFailure(w, d.Logger, err)
			return
		}
		c, err := lib.CreateCollection(r.Context(), domain.Collection{
			Name:  strings.TrimSpace(req.Name),
			Color: req.Color,
			Icon:  req.Icon,
		})
		if err != nil {
			writeFailure(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

// DeleteCollection removes a collection; its bookmarks become unfiled.
func DeleteCollection(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lib, err := librarySession(d, r)
		if err != nil {
			writeFailure(w, d.Logger, err)
			return
		}
		if err := lib.DeleteCollection(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeFailure(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
