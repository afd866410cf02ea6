package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stash/internal/logger"
)

// Import triggers a manual import of the Homepage bookmarks file.
func Import(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.ImportTrigger == nil {
			writeError(w, http.StatusNotFound, KindNotFound, "Bookmarks import is not configured.")
			return
		}

		select {
		case d.ImportTrigger <- struct{}{}:
			d.Logger.Info("manual bookmarks import triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "import triggered"})
		default:
			d.Logger.Warn("bookmarks import already in progress",
				logger.String("remote_ip", r.RemoteAddr))
			w.Header().Set("Retry-After", "30")
			writeError(w, http.StatusTooManyRequests, KindRateLimited, "Import already in progress, please wait.")
		}
	}
}
