package stats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/borissharikoff-droid/youtube/telemetry"
	"github.com/borissharikoff-droid/youtube/youtubeapi"
)

// Upstream is the slice of the YouTube client the facade depends on.
type Upstream interface {
	BatchStats(ctx context.Context, ids []string) (map[string]youtubeapi.Stats, error)
}

// ChannelStats is what the facade hands to presentation code. Stale marks values
// served from the snapshot store because a fresh fetch was not possible;
// Unavailable marks entities with no data anywhere.
type ChannelStats struct {
	ChannelID   string    `json:"channel_id"`
	Title       string    `json:"title,omitempty"`
	Metrics     Metrics   `json:"metrics"`
	Subscribers int64     `json:"subscribers,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
	Stale       bool      `json:"stale,omitempty"`
	Unavailable bool      `json:"unavailable,omitempty"`
}

// Service chains cache, snapshot store and upstream: cache hit wins, otherwise
// one quota-gated batched fetch, otherwise the latest stored snapshot marked
// stale. It degrades instead of failing, so callers always get an answer per
// requested entity.
type Service struct {
	store        *SnapshotStore
	cache        *Cache
	quota        *QuotaTracker
	agg          *Aggregator
	upstream     Upstream
	fetchTimeout time.Duration
	now          func() time.Time
}

func NewService(store *SnapshotStore, cache *Cache, quota *QuotaTracker, agg *Aggregator, upstream Upstream, fetchTimeout time.Duration) *Service {
	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}
	return &Service{
		store:        store,
		cache:        cache,
		quota:        quota,
		agg:          agg,
		upstream:     upstream,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
	}
}

func cacheKey(kind ResourceKind, id string) string { return string(kind) + ":" + id }

// GetCurrent resolves stats for the requested channel IDs. Per entity the order
// is cache, then one batched upstream fetch for every miss, then the newest
// snapshot as a stale fallback. It never returns an error: degradation is
// reported through the Stale and Unavailable flags.
func (s *Service) GetCurrent(ctx context.Context, ids []string) map[string]ChannelStats {
	out := make(map[string]ChannelStats, len(ids))
	var missing []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if raw, ok := s.cache.Get(ctx, cacheKey(KindChannelStats, id)); ok {
			var cs ChannelStats
			if err := json.Unmarshal([]byte(raw), &cs); err == nil {
				out[id] = cs
				continue
			}
			slog.Warn("discarding undecodable cache entry", slog.String("channel_id", id), slog.String("component", "stats"))
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out
	}

	fetched, fetchErr := s.fetchBatch(ctx, missing)
	for _, id := range missing {
		if st, ok := fetched[id]; ok {
			cs := ChannelStats{
				ChannelID:   id,
				Title:       st.Title,
				Metrics:     Metrics{Views: st.Views, Likes: st.Likes, Comments: st.Comments},
				Subscribers: st.Subscribers,
				FetchedAt:   s.now().UTC(),
			}
			s.commit(ctx, cs)
			out[id] = cs
			continue
		}
		out[id] = s.fallback(ctx, id, fetchErr)
	}
	return out
}

// fetchBatch performs at most one upstream round-trip for the given IDs, gated
// on the quota tracker. A refused acquire or a failed call returns the
// classified error and no results.
func (s *Service) fetchBatch(ctx context.Context, ids []string) (map[string]youtubeapi.Stats, error) {
	if s.upstream == nil {
		return nil, ErrUpstreamUnavailable
	}
	if !s.quota.TryAcquire(ctx, 1) {
		slog.Warn("upstream fetch refused: quota exhausted",
			slog.Int("requested", len(ids)),
			slog.String("component", "stats"))
		return nil, ErrQuotaExhausted
	}
	telemetry.SetQuotaRemaining(s.quota.Remaining(ctx))

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	telemetry.UpstreamCalls.Inc()
	start := s.now()
	res, err := s.upstream.BatchStats(fetchCtx, ids)
	telemetry.FetchDuration.Observe(s.now().Sub(start).Seconds())
	if err != nil {
		telemetry.UpstreamErrors.Inc()
		classified := ClassifyUpstreamError(err)
		slog.Warn("upstream fetch failed",
			slog.Any("err", err),
			slog.Int("requested", len(ids)),
			slog.String("component", "stats"))
		return nil, classified
	}
	return res, nil
}

// commit writes a fresh result through the cache and appends a snapshot. Both
// are best-effort: a storage failure must not cost the caller the fresh data.
func (s *Service) commit(ctx context.Context, cs ChannelStats) {
	if raw, err := json.Marshal(cs); err == nil {
		if err := s.cache.Set(ctx, cacheKey(KindChannelStats, cs.ChannelID), string(raw), KindChannelStats); err != nil {
			slog.Warn("cache write failed", slog.Any("err", err), slog.String("channel_id", cs.ChannelID), slog.String("component", "stats"))
		}
	}
	if err := s.store.Record(ctx, cs.ChannelID, cs.Metrics, cs.FetchedAt); err != nil {
		slog.Warn("snapshot record failed", slog.Any("err", err), slog.String("channel_id", cs.ChannelID), slog.String("component", "stats"))
		return
	}
	telemetry.SnapshotsRecorded.Inc()
}

// fallback serves the newest stored snapshot when a fresh fetch was not
// possible, or an Unavailable marker when there is none.
func (s *Service) fallback(ctx context.Context, id string, cause error) ChannelStats {
	snap, err := s.store.Latest(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("stale fallback read failed", slog.Any("err", err), slog.String("channel_id", id), slog.String("component", "stats"))
		}
		return ChannelStats{ChannelID: id, Unavailable: true, FetchedAt: s.now().UTC()}
	}
	telemetry.StaleResponses.Inc()
	slog.Info("serving stale snapshot",
		slog.String("channel_id", id),
		slog.Time("captured_at", snap.CapturedAt),
		slog.Any("cause", cause),
		slog.String("component", "stats"))
	return ChannelStats{
		ChannelID: id,
		Metrics:   snap.Metrics,
		FetchedAt: snap.CapturedAt,
		Stale:     true,
	}
}

func trendKey(channelID string, windowDays int) string {
	return cacheKey(KindChannelStats, channelID) + ":trend:" + strconv.Itoa(windowDays)
}

// GetTrend makes sure the bracketing daily aggregates exist, then computes the
// trend over the requested window. Computed trends are cached under the
// channel-stats TTL; ErrNoData means not enough history yet.
func (s *Service) GetTrend(ctx context.Context, channelID string, windowDays int) (Trend, error) {
	key := trendKey(channelID, windowDays)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var tr Trend
		if err := json.Unmarshal([]byte(raw), &tr); err == nil {
			return tr, nil
		}
		slog.Warn("discarding undecodable cached trend", slog.String("channel_id", channelID), slog.String("component", "stats"))
	}

	today := s.now().UTC()
	for _, day := range []time.Time{today.AddDate(0, 0, -1), today} {
		if _, err := s.agg.ComputeDaily(ctx, channelID, day); err != nil && !errors.Is(err, ErrNotFound) {
			slog.Warn("daily aggregate refresh failed",
				slog.Any("err", err),
				slog.String("channel_id", channelID),
				slog.String("component", "stats"))
		}
	}
	tr, err := s.agg.ComputeTrend(ctx, channelID, windowDays)
	if err != nil {
		return Trend{}, err
	}
	if raw, merr := json.Marshal(tr); merr == nil {
		if cerr := s.cache.Set(ctx, key, string(raw), KindChannelStats); cerr != nil {
			slog.Warn("trend cache write failed", slog.Any("err", cerr), slog.String("channel_id", channelID), slog.String("component", "stats"))
		}
	}
	return tr, nil
}

// QuotaStatus reports remaining calls, the limit and the current window start.
func (s *Service) QuotaStatus(ctx context.Context) (remaining, limit int, windowStart time.Time) {
	remaining = s.quota.Remaining(ctx)
	limit = s.quota.Limit()
	windowStart, _ = s.quota.Window()
	return remaining, limit, windowStart
}
