package stats

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// RetentionPolicy defines how long historical snapshot rows are kept.
type RetentionPolicy struct {
	// KeepDays: snapshots older than this many days are eligible for cleanup (0 = disabled)
	KeepDays int
	// DryRun: when true, log what would be pruned but don't delete rows
	DryRun bool
	// Interval: how often to run the cleanup job
	Interval time.Duration
}

// LoadRetentionPolicy loads retention configuration from environment variables.
func LoadRetentionPolicy() RetentionPolicy {
	policy := RetentionPolicy{
		KeepDays: 90,
		Interval: 6 * time.Hour,
	}
	if s := os.Getenv("RETENTION_KEEP_DAYS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			policy.KeepDays = n
		}
	}
	if os.Getenv("RETENTION_DRY_RUN") == "1" {
		policy.DryRun = true
	}
	if s := os.Getenv("RETENTION_INTERVAL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			policy.Interval = d
		}
	}
	return policy
}

// StartRetentionJob periodically prunes old snapshots and sweeps expired cache
// rows. Daily aggregates and trends are kept forever: they are the compact form
// the raw snapshots exist to produce.
func StartRetentionJob(ctx context.Context, dbc *sql.DB, store *SnapshotStore, cache *Cache) {
	policy := LoadRetentionPolicy()

	if policy.KeepDays == 0 {
		slog.Info("retention job disabled (RETENTION_KEEP_DAYS=0)")
		return
	}

	slog.Info("retention job starting",
		slog.Int("keep_days", policy.KeepDays),
		slog.Bool("dry_run", policy.DryRun),
		slog.Duration("interval", policy.Interval))

	if err := runRetentionCleanup(ctx, dbc, store, cache, policy); err != nil {
		slog.Warn("retention cleanup failed", slog.Any("err", err))
	}

	ticker := time.NewTicker(policy.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention job stopped")
			return
		case <-ticker.C:
			if err := runRetentionCleanup(ctx, dbc, store, cache, policy); err != nil {
				slog.Warn("retention cleanup failed", slog.Any("err", err))
			}
		}
	}
}

// runRetentionCleanup performs a single cleanup cycle.
func runRetentionCleanup(ctx context.Context, dbc *sql.DB, store *SnapshotStore, cache *Cache, policy RetentionPolicy) error {
	logger := slog.Default().With(
		slog.String("component", "retention_cleanup"),
		slog.Bool("dry_run", policy.DryRun),
	)

	cutoff := time.Now().UTC().Add(-time.Duration(policy.KeepDays) * 24 * time.Hour)

	if policy.DryRun {
		var eligible int64
		err := dbc.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM snapshots WHERE captured_at < $1`, cutoff).Scan(&eligible)
		if err != nil {
			return &StorageError{Op: "retention dry-run count", Err: err}
		}
		logger.Info("dry-run: would prune snapshots",
			slog.Int64("count", eligible),
			slog.Time("cutoff", cutoff))
		return nil
	}

	pruned, err := store.Prune(ctx, cutoff)
	if err != nil {
		return err
	}

	swept, err := cache.ClearExpired(ctx)
	if err != nil {
		logger.Warn("cache sweep during retention failed", slog.Any("err", err))
	}

	logger.Info("retention cleanup completed",
		slog.Int64("snapshots_pruned", pruned),
		slog.Int64("cache_entries_swept", swept),
		slog.Time("cutoff", cutoff))
	return nil
}
