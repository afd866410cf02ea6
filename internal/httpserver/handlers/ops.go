package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	Commit        string  `json:"commit,omitempty"`
	BuildDate     string  `json:"build_date,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
}

func Healthz(d deps.Deps) http.HandlerFunc {
	start := d.StartTime
	now := d.TimeNow
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthzResponse{
			Status:        "ok",
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
			UptimeSeconds: now().Sub(start).Seconds(),
		})
	}
}

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Readyz reports ready once the document store answers.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := d.Docs.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{Ready: false, Error: "document store unreachable"})
			return
		}
		writeJSON(w, http.StatusOK, readyzResponse{Ready: true})
	}
}

type componentStatus struct {
	OK     bool     `json:"ok"`
	Mode   string   `json:"mode,omitempty"`
	Impact string   `json:"impact,omitempty"`
	Models []string `json:"models,omitempty"`
	Open   *int     `json:"open,omitempty"`
	Error  string   `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"redis":      checkRedis(d),
			"summarizer": summarizerStatus(d),
		}
		if d.Hub != nil {
			n := d.Hub.Len()
			components["sessions"] = componentStatus{OK: true, Open: &n}
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	// Redis holds every bookmark, nothing works without it
	if redis, exists := components["redis"]; exists && !redis.OK {
		return "critical"
	}
	if s, exists := components["summarizer"]; exists && !s.OK {
		return "degraded"
	}
	return "operational"
}

func summarizerStatus(d deps.Deps) componentStatus {
	if len(d.Models) == 0 {
		return componentStatus{
			OK:     false,
			Mode:   "unconfigured",
			Impact: "summaries-disabled",
		}
	}
	return componentStatus{OK: true, Mode: "fallback-chain", Models: d.Models}
}

func checkRedis(d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{
			OK:     false,
			Mode:   "unavailable",
			Impact: "library-unavailable",
			Error:  "client not initialized",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "unavailable",
			Impact: "library-unavailable",
			Error:  "timeout",
		}
	}

	return componentStatus{OK: true, Mode: "optimal"}
}
