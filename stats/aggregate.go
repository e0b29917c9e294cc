package stats

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/borissharikoff-droid/youtube/telemetry"
)

// DailyAggregate is the derived per-day summary for a channel. The metric
// fields are the day's representative cumulative counters (the maximum
// observed within the day, since upstream counters only grow); the delta
// fields are measured against the nearest prior available day.
type DailyAggregate struct {
	ChannelID string
	Date      time.Time
	Metrics
	DeltaViews    int64
	DeltaLikes    int64
	DeltaComments int64
}

// Trend is the delta between the latest representative values and those from
// windowDays ago (nearest available prior day, not interpolated).
type Trend struct {
	EntityType    string
	EntityID      string
	WindowDays    int
	DeltaViews    int64
	DeltaLikes    int64
	DeltaComments int64
	ComputedAt    time.Time
}

// Aggregator reduces raw snapshots into daily_aggregates and trends rows.
// Recomputation is idempotent: the same underlying snapshots always produce
// the same aggregate values.
type Aggregator struct {
	db  *sql.DB
	now func() time.Time
}

// NewAggregator returns an aggregator over the given database.
func NewAggregator(db *sql.DB) *Aggregator {
	return &Aggregator{db: db, now: time.Now}
}

// dayBounds returns the UTC [00:00, next 00:00) bounds of the day containing t.
func dayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// ComputeDaily selects all snapshots for the channel within the date's UTC day
// and takes the maximum of each counter as the day's representative values.
// Days with no snapshots are skipped (ErrNotFound, no zero-filled row).
func (a *Aggregator) ComputeDaily(ctx context.Context, channelID string, date time.Time) (DailyAggregate, error) {
	start, end := dayBounds(date)

	var n int
	var agg DailyAggregate
	agg.ChannelID = channelID
	agg.Date = start
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(view_count),0), COALESCE(MAX(like_count),0), COALESCE(MAX(comment_count),0)
		 FROM snapshots WHERE channel_id=$1 AND captured_at >= $2 AND captured_at < $3`,
		channelID, start, end).Scan(&n, &agg.Views, &agg.Likes, &agg.Comments)
	if err != nil {
		return DailyAggregate{}, &StorageError{Op: "compute daily", Err: err}
	}
	if n == 0 {
		return DailyAggregate{}, ErrNotFound
	}

	// Delta against the nearest prior available day. No prior day means delta 0.
	var prev Metrics
	err = a.db.QueryRowContext(ctx,
		`SELECT view_count, like_count, comment_count FROM daily_aggregates
		 WHERE channel_id=$1 AND date < $2 ORDER BY date DESC LIMIT 1`,
		channelID, start).Scan(&prev.Views, &prev.Likes, &prev.Comments)
	if err != nil && err != sql.ErrNoRows {
		return DailyAggregate{}, &StorageError{Op: "compute daily delta", Err: err}
	}
	if err == nil {
		agg.DeltaViews = agg.Views - prev.Views
		agg.DeltaLikes = agg.Likes - prev.Likes
		agg.DeltaComments = agg.Comments - prev.Comments
	}

	_, err = a.db.ExecContext(ctx, `INSERT INTO daily_aggregates
		(channel_id, date, view_count, like_count, comment_count, delta_views, delta_likes, delta_comments, computed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
		ON CONFLICT(channel_id, date) DO UPDATE SET
			view_count=EXCLUDED.view_count, like_count=EXCLUDED.like_count, comment_count=EXCLUDED.comment_count,
			delta_views=EXCLUDED.delta_views, delta_likes=EXCLUDED.delta_likes, delta_comments=EXCLUDED.delta_comments,
			computed_at=NOW()`,
		channelID, start, agg.Views, agg.Likes, agg.Comments, agg.DeltaViews, agg.DeltaLikes, agg.DeltaComments)
	if err != nil {
		return DailyAggregate{}, &StorageError{Op: "store daily aggregate", Err: err}
	}
	return agg, nil
}

// DailyFor returns the stored aggregate for a date, or ErrNotFound.
func (a *Aggregator) DailyFor(ctx context.Context, channelID string, date time.Time) (DailyAggregate, error) {
	start, _ := dayBounds(date)
	var agg DailyAggregate
	agg.ChannelID = channelID
	err := a.db.QueryRowContext(ctx,
		`SELECT date, view_count, like_count, comment_count, delta_views, delta_likes, delta_comments
		 FROM daily_aggregates WHERE channel_id=$1 AND date=$2`, channelID, start).
		Scan(&agg.Date, &agg.Views, &agg.Likes, &agg.Comments, &agg.DeltaViews, &agg.DeltaLikes, &agg.DeltaComments)
	if err == sql.ErrNoRows {
		return DailyAggregate{}, ErrNotFound
	}
	if err != nil {
		return DailyAggregate{}, &StorageError{Op: "daily aggregate read", Err: err}
	}
	agg.Date = agg.Date.UTC()
	return agg, nil
}

// ComputeTrend derives the delta between the latest daily representative values
// and the nearest available day at or before windowDays ago. ErrNoData when
// fewer than two usable points exist.
func (a *Aggregator) ComputeTrend(ctx context.Context, channelID string, windowDays int) (Trend, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT date, view_count, like_count, comment_count FROM daily_aggregates
		 WHERE channel_id=$1 ORDER BY date DESC`, channelID)
	if err != nil {
		return Trend{}, &StorageError{Op: "compute trend", Err: err}
	}
	defer func() { _ = rows.Close() }()

	type point struct {
		date time.Time
		m    Metrics
	}
	var points []point
	for rows.Next() {
		var p point
		if err := rows.Scan(&p.date, &p.m.Views, &p.m.Likes, &p.m.Comments); err != nil {
			return Trend{}, &StorageError{Op: "scan trend point", Err: err}
		}
		p.date = p.date.UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return Trend{}, &StorageError{Op: "compute trend", Err: err}
	}
	if len(points) < 2 {
		return Trend{}, ErrNoData
	}

	latest := points[0]
	target := latest.date.AddDate(0, 0, -windowDays)
	// Nearest available day at or before the target; with a gap there, fall back
	// to the oldest point rather than interpolating.
	baseline := points[len(points)-1]
	for _, p := range points[1:] {
		if !p.date.After(target) {
			baseline = p
			break
		}
	}
	if baseline.date.Equal(latest.date) {
		return Trend{}, ErrNoData
	}

	tr := Trend{
		EntityType:    "channel",
		EntityID:      channelID,
		WindowDays:    windowDays,
		DeltaViews:    latest.m.Views - baseline.m.Views,
		DeltaLikes:    latest.m.Likes - baseline.m.Likes,
		DeltaComments: latest.m.Comments - baseline.m.Comments,
		ComputedAt:    a.now().UTC(),
	}
	_, err = a.db.ExecContext(ctx, `INSERT INTO trends
		(entity_type, entity_id, window_days, delta_views, delta_likes, delta_comments, computed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT(entity_type, entity_id, window_days) DO UPDATE SET
			delta_views=EXCLUDED.delta_views, delta_likes=EXCLUDED.delta_likes,
			delta_comments=EXCLUDED.delta_comments, computed_at=EXCLUDED.computed_at`,
		tr.EntityType, tr.EntityID, tr.WindowDays, tr.DeltaViews, tr.DeltaLikes, tr.DeltaComments, tr.ComputedAt)
	if err != nil {
		// The computed trend is still valid; persistence is a mirror.
		slog.Warn("trend persist failed", slog.Any("err", err), slog.String("component", "aggregator"))
	}
	return tr, nil
}

// StartAggregationJob periodically recomputes daily aggregates for yesterday and
// today for every tracked channel. The facade additionally triggers on-demand
// recomputation when trend data is requested and the day's aggregate is missing.
func StartAggregationJob(ctx context.Context, db *sql.DB, channelIDs []string, interval time.Duration) {
	if len(channelIDs) == 0 {
		slog.Info("aggregation job disabled (no channels configured)")
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	agg := NewAggregator(db)
	slog.Info("aggregation job starting", slog.Duration("interval", interval), slog.Int("channels", len(channelIDs)))

	run := func() {
		now := time.Now().UTC()
		for _, id := range channelIDs {
			for _, day := range []time.Time{now.AddDate(0, 0, -1), now} {
				if _, err := agg.ComputeDaily(ctx, id, day); err != nil && err != ErrNotFound {
					slog.Warn("daily aggregate failed", slog.String("channel_id", id), slog.Any("err", err))
				}
			}
		}
		telemetry.AggregationCycles.Inc()
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("aggregation job stopped")
			return
		case <-ticker.C:
			run()
		}
	}
}
