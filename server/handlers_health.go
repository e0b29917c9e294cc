package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/borissharikoff-droid/youtube/stats"
)

// HandleHealthz responds to liveness probe requests by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with detailed system checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error { return h.db.PingContext(r.Context()) }},
		{"channels", func() error {
			if len(h.cfg.Channels) == 0 {
				return fmt.Errorf("no channels configured")
			}
			return nil
		}},
		{"poller", func() error {
			last := stats.LastPoll(r.Context(), h.db)
			if last.IsZero() {
				return fmt.Errorf("no poll completed yet")
			}
			// Two missed intervals means the poller is stuck, not just slow.
			if stale := time.Since(last); stale > 2*h.cfg.PollInterval {
				return fmt.Errorf("last poll %s ago", stale.Round(time.Second))
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleStatus summarizes the tracked channels, quota window and last poll.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	remaining, limit, windowStart := h.svc.QuotaStatus(r.Context())

	type channelStatus struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	channels := make([]channelStatus, 0, len(h.cfg.Channels))
	for _, ch := range h.cfg.Channels {
		channels = append(channels, channelStatus{ID: ch.ID, Name: ch.Name})
	}

	resp := map[string]any{
		"channels": channels,
		"quota": map[string]any{
			"remaining":    remaining,
			"limit":        limit,
			"window_start": windowStart.UTC().Format(time.RFC3339),
		},
	}
	if last := stats.LastPoll(r.Context(), h.db); !last.IsZero() {
		resp["last_poll"] = last.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}
