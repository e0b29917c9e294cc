package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/borissharikoff-droid/youtube/stats"
)

// HandleStats serves current stats for all tracked channels, or one with
// ?channel=. Values may be stale; the entries say so themselves.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ids, ok := h.requestedChannels(r)
	if !ok {
		http.Error(w, "unknown channel", http.StatusNotFound)
		return
	}

	res := h.svc.GetCurrent(r.Context(), ids)

	type entry struct {
		stats.ChannelStats
		Name string `json:"name,omitempty"`
	}
	out := make([]entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, entry{ChannelStats: res[id], Name: h.cfg.ChannelName(id)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": out})
}

// HandleTrends serves the growth trend for a channel over ?window= days
// (default 7).
func (h *Handlers) HandleTrends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("channel")
	if id == "" {
		http.Error(w, "channel parameter required", http.StatusBadRequest)
		return
	}
	if _, ok := h.requestedChannels(r); !ok {
		http.Error(w, "unknown channel", http.StatusNotFound)
		return
	}
	windowDays := 7
	if v := r.URL.Query().Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid window", http.StatusBadRequest)
			return
		}
		windowDays = n
	}

	trend, err := h.svc.GetTrend(r.Context(), id, windowDays)
	if err != nil {
		if errors.Is(err, stats.ErrNoData) {
			writeJSON(w, http.StatusOK, map[string]any{
				"channel": id,
				"window":  windowDays,
				"trend":   nil,
				"note":    "not enough history yet",
			})
			return
		}
		http.Error(w, "trend computation failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"channel": id,
		"name":    h.cfg.ChannelName(id),
		"window":  trend.WindowDays,
		"trend": map[string]any{
			"views":    trend.DeltaViews,
			"likes":    trend.DeltaLikes,
			"comments": trend.DeltaComments,
		},
		"computed_at": trend.ComputedAt.UTC().Format(time.RFC3339),
	})
}

// HandleQuota reports the state of the rolling API quota window.
func (h *Handlers) HandleQuota(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	remaining, limit, windowStart := h.svc.QuotaStatus(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"remaining":    remaining,
		"limit":        limit,
		"used":         limit - remaining,
		"window_start": windowStart.UTC().Format(time.RFC3339),
	})
}
