package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/stash/internal/auth"
	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stash/internal/logger"
)

type dashboardResponse struct {
	UserID      string              `json:"user_id"`
	Email       string              `json:"email,omitempty"`
	Bookmarks   []domain.Bookmark   `json:"bookmarks"`
	Collections []domain.Collection `json:"collections"`
	Pending     map[string]string   `json:"pending"`
}

// Dashboard returns the caller's library snapshot, including changes that
// are still being saved.
func Dashboard(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := auth.FromContext(r.Context())
		lib, err := librarySession(d, r)
		if err != nil {
			writeFailure(w, d.Logger, err)
			return
		}

		v := lib.View()
		pending := make(map[string]string, len(v.Pending))
		for id, kind := range v.Pending {
			pending[id] = kind.String()
		}
		writeJSON(w, http.StatusOK, dashboardResponse{
			UserID:      sess.UserID,
			Email:       sess.Email,
			Bookmarks:   v.Bookmarks,
			Collections: v.Collections,
			Pending:     pending,
		})
	}
}

// SignOut ends the caller's session and clears the session cookie.
func SignOut(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := auth.FromContext(r.Context())
		if !ok {
			writeFailure(w, d.Logger, auth.ErrNoSession)
			return
		}

		if err := d.Hub.SignOut(r.Context(), sess); err != nil {
			d.Logger.Error("sign out failed", logger.String("owner_id", sess.UserID), logger.Error(err))
			writeError(w, http.StatusInternalServerError, KindInternal, "Could not sign out. Please try again.")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     auth.CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		d.Logger.Info("signed out", logger.String("owner_id", sess.UserID))
		w.WriteHeader(http.StatusNoContent)
	}
}
