// Command youtube-stats is the entrypoint for the channel statistics bot and
// its background workers. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Starts background jobs: stats polling, daily aggregation, cache sweeping,
//     and snapshot retention.
//   - Runs the Telegram bot when a token is configured.
//   - Exposes an HTTP server with /healthz, /readyz, /status, /stats, /trends,
//     /quota, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/borissharikoff-droid/youtube/bot"
	"github.com/borissharikoff-droid/youtube/config"
	"github.com/borissharikoff-droid/youtube/db"
	"github.com/borissharikoff-droid/youtube/server"
	"github.com/borissharikoff-droid/youtube/stats"
	"github.com/borissharikoff-droid/youtube/telemetry"
	"github.com/borissharikoff-droid/youtube/youtubeapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("youtube-stats", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.Migrate(context.Background(), database); err != nil {
		slog.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Keep the channels table in sync with configuration.
	for _, ch := range cfg.Channels {
		if err := stats.UpsertChannel(ctx, database, ch.ID, ch.Name, ch.Handle, 0); err != nil {
			slog.Warn("channel upsert failed", slog.Any("err", err), slog.String("channel_id", ch.ID))
		}
	}

	// Stats subsystem: cache, quota, snapshot store, aggregator, upstream client.
	cache := stats.NewCache(database, stats.TTLPolicy{
		stats.KindChannelStats: cfg.TTLChannelStats,
		stats.KindVideoList:    cfg.TTLVideoList,
		stats.KindComments:     cfg.TTLComments,
	})
	quota := stats.NewQuotaTracker(ctx, database, cfg.QuotaLimit, cfg.QuotaWindow)
	store := stats.NewSnapshotStore(database)
	agg := stats.NewAggregator(database)

	var upstream stats.Upstream
	if cfg.YouTubeAPIKey != "" {
		yt, err := youtubeapi.New(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			slog.Error("youtube client init failed", slog.Any("err", err))
			os.Exit(1)
		}
		upstream = yt
	} else {
		slog.Warn("YOUTUBE_API_KEY not set; serving stored snapshots only")
	}
	svc := stats.NewService(store, cache, quota, agg, upstream, cfg.FetchTimeout)

	// Background jobs
	channelIDs := cfg.ChannelIDs()
	go stats.StartStatsPollingJob(ctx, database, svc, channelIDs, cfg.PollInterval)
	go stats.StartAggregationJob(ctx, database, channelIDs, cfg.AggregateInterval)
	go stats.StartRetentionJob(ctx, database, store, cache)
	go cache.StartSweepJob(ctx, time.Hour)

	// Telegram bot
	if err := cfg.ValidateBotReady(); err != nil {
		slog.Warn("telegram bot disabled", slog.Any("reason", err))
	} else {
		tb, err := bot.New(cfg, database, svc)
		if err != nil {
			slog.Error("telegram bot init failed", slog.Any("err", err))
			os.Exit(1)
		}
		go tb.Run(ctx)
	}

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (health/status/stats/metrics)
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	go func() {
		if err := server.Start(ctx, database, svc, agg, cfg, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
