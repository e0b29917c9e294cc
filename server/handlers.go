// Package server exposes the HTTP API handlers.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/borissharikoff-droid/youtube/config"
	"github.com/borissharikoff-droid/youtube/stats"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db  *sql.DB
	svc *stats.Service
	agg *stats.Aggregator
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(db *sql.DB, svc *stats.Service, agg *stats.Aggregator, cfg *config.Config) *Handlers {
	return &Handlers{db: db, svc: svc, agg: agg, cfg: cfg}
}

// writeJSON encodes v with the right content type; encode failures are logged
// because at that point the status line is already gone.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", slog.Any("err", err), slog.String("component", "http"))
	}
}

// requestedChannels resolves the channel filter: an explicit ?channel= wins,
// otherwise all configured channels. ok is false when the requested channel is
// not tracked.
func (h *Handlers) requestedChannels(r *http.Request) (ids []string, ok bool) {
	if id := r.URL.Query().Get("channel"); id != "" {
		for _, known := range h.cfg.ChannelIDs() {
			if known == id {
				return []string{id}, true
			}
		}
		return nil, false
	}
	return h.cfg.ChannelIDs(), true
}
