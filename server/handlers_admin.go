package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/borissharikoff-droid/youtube/stats"
)

// HandleAdminPoll triggers an immediate poll of all tracked channels instead of
// waiting for the next scheduled tick.
func (h *Handlers) HandleAdminPoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats.PollOnce(r.Context(), h.db, h.svc, h.cfg.ChannelIDs())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "polled",
		"channels": len(h.cfg.Channels),
	})
}

// HandleAdminAggregate recomputes daily aggregates, for one channel with
// ?channel= or for all, on ?date= (YYYY-MM-DD, default today).
func (h *Handlers) HandleAdminAggregate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ids, ok := h.requestedChannels(r)
	if !ok {
		http.Error(w, "unknown channel", http.StatusNotFound)
		return
	}
	date := time.Now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	computed, empty := 0, 0
	for _, id := range ids {
		_, err := h.agg.ComputeDaily(r.Context(), id, date)
		switch {
		case err == nil:
			computed++
		case errors.Is(err, stats.ErrNotFound):
			empty++
		default:
			http.Error(w, "aggregation failed", http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "aggregated",
		"date":     date.Format("2006-01-02"),
		"computed": computed,
		"empty":    empty,
	})
}
