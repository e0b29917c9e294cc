package stats

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/borissharikoff-droid/youtube/db"
)

const lastPollKey = "stats_last_poll"

// PollOnce resolves current stats for every tracked channel through the facade,
// which records snapshots and warms the cache as a side effect. The last
// completed poll time is mirrored into kv for the readiness endpoint.
func PollOnce(ctx context.Context, dbx *sql.DB, svc *Service, channelIDs []string) {
	if len(channelIDs) == 0 {
		return
	}
	res := svc.GetCurrent(ctx, channelIDs)
	fresh, stale, unavailable := 0, 0, 0
	for _, cs := range res {
		switch {
		case cs.Unavailable:
			unavailable++
		case cs.Stale:
			stale++
		default:
			fresh++
		}
	}
	slog.Info("stats poll complete",
		slog.Int("fresh", fresh),
		slog.Int("stale", stale),
		slog.Int("unavailable", unavailable),
		slog.String("component", "poller"))
	if err := db.SetKV(ctx, dbx, lastPollKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("failed to record last poll time", slog.Any("err", err), slog.String("component", "poller"))
	}
}

// LastPoll returns when the most recent poll finished, or the zero time when no
// poll has completed yet.
func LastPoll(ctx context.Context, dbx *sql.DB) time.Time {
	v, err := db.GetKV(ctx, dbx, lastPollKey)
	if err != nil || v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// StartStatsPollingJob polls tracked channels on a fixed interval until ctx is
// done. The first poll runs immediately so a fresh deploy has data without
// waiting a full interval.
func StartStatsPollingJob(ctx context.Context, dbx *sql.DB, svc *Service, channelIDs []string, interval time.Duration) {
	if interval <= 0 {
		interval = 20 * time.Minute
	}
	slog.Info("stats polling job starting",
		slog.Duration("interval", interval),
		slog.Int("channels", len(channelIDs)),
		slog.String("component", "poller"))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	PollOnce(ctx, dbx, svc, channelIDs)
	for {
		select {
		case <-ctx.Done():
			slog.Info("stats polling job stopped", slog.String("component", "poller"))
			return
		case <-ticker.C:
			PollOnce(ctx, dbx, svc, channelIDs)
		}
	}
}
