// Package bot is the Telegram front-end: an admin-only command interface over
// the stats facade. It long-polls for updates and answers /stats, /trends and
// /quota with formatted summaries.
package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/borissharikoff-droid/youtube/config"
	"github.com/borissharikoff-droid/youtube/stats"
)

// Bot wires the Telegram API to the stats facade.
type Bot struct {
	api *tgbotapi.BotAPI
	db  *sql.DB
	svc *stats.Service
	cfg *config.Config
}

// New connects to the Telegram Bot API. Construction validates the token by
// fetching the bot identity.
func New(cfg *config.Config, db *sql.DB, svc *stats.Service) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	slog.Info("telegram bot authorized", slog.String("username", api.Self.UserName))
	return &Bot{api: api, db: db, svc: svc, cfg: cfg}, nil
}

// Run long-polls Telegram for updates until ctx is done. Non-command messages
// and messages from anyone but the configured admin are ignored.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	slog.Info("telegram bot listening")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			slog.Info("telegram bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.ID != b.cfg.AdminID {
		slog.Warn("command from non-admin ignored",
			slog.Int64("chat_id", msg.Chat.ID),
			slog.String("command", msg.Command()),
			slog.String("component", "bot"))
		return
	}

	var text string
	switch msg.Command() {
	case "start":
		text = b.summaryText(ctx)
	case "help":
		text = b.helpText()
	case "stats":
		text = b.statsText(ctx, msg.CommandArguments())
	case "trends":
		text = b.trendsText(ctx, msg.CommandArguments())
	case "quota":
		text = b.quotaText(ctx)
	default:
		text = "Unknown command. " + b.helpText()
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(reply); err != nil {
		slog.Error("telegram send failed", slog.Any("err", err), slog.String("component", "bot"))
	}
}

func (b *Bot) helpText() string {
	var sb strings.Builder
	sb.WriteString("<b>YouTube channel stats</b>\n\n")
	sb.WriteString("/stats - current stats for all channels\n")
	sb.WriteString("/stats &lt;name&gt; - stats for one channel\n")
	sb.WriteString("/trends [days] - growth over a window (default 7)\n")
	sb.WriteString("/quota - API quota window state\n\n")
	sb.WriteString("Tracked channels:\n")
	for _, ch := range b.cfg.Channels {
		fmt.Fprintf(&sb, "• %s\n", ch.Name)
	}
	return sb.String()
}

// summaryText is the /start overview: per-channel all-time counters plus
// day and week movement where enough history exists.
func (b *Bot) summaryText(ctx context.Context) string {
	ids := b.cfg.ChannelIDs()
	if len(ids) == 0 {
		return "No channels configured. " + b.helpText()
	}
	res := b.svc.GetCurrent(ctx, ids)
	var sb strings.Builder
	sb.WriteString("<b>Channel overview</b>\n\n")
	for _, ch := range b.cfg.Channels {
		writeChannelStats(&sb, ch.Name, res[ch.ID])
		if day, err := b.svc.GetTrend(ctx, ch.ID, 1); err == nil {
			fmt.Fprintf(&sb, "today: %s views\n", formatDelta(day.DeltaViews))
		}
		if week, err := b.svc.GetTrend(ctx, ch.ID, 7); err == nil {
			fmt.Fprintf(&sb, "7 days: %s views\n", formatDelta(week.DeltaViews))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("/help for commands")
	return sb.String()
}

// statsText resolves stats through the facade; the arg filters by channel name
// or ID, case-insensitively.
func (b *Bot) statsText(ctx context.Context, arg string) string {
	ids := b.matchChannels(arg)
	if len(ids) == 0 {
		return "No channel matches " + arg
	}
	res := b.svc.GetCurrent(ctx, ids)
	var sb strings.Builder
	for _, id := range ids {
		writeChannelStats(&sb, b.cfg.ChannelName(id), res[id])
	}
	return sb.String()
}

func (b *Bot) trendsText(ctx context.Context, arg string) string {
	windowDays := 7
	if arg = strings.TrimSpace(arg); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return "Usage: /trends [days]"
		}
		windowDays = n
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Growth over %d days</b>\n\n", windowDays)
	for _, ch := range b.cfg.Channels {
		trend, err := b.svc.GetTrend(ctx, ch.ID, windowDays)
		if err != nil {
			if errors.Is(err, stats.ErrNoData) {
				fmt.Fprintf(&sb, "<b>%s</b>: not enough history yet\n", ch.Name)
			} else {
				fmt.Fprintf(&sb, "<b>%s</b>: trend unavailable\n", ch.Name)
				slog.Warn("trend command failed", slog.Any("err", err), slog.String("channel_id", ch.ID), slog.String("component", "bot"))
			}
			continue
		}
		writeTrend(&sb, ch.Name, trend)
	}
	return sb.String()
}

func (b *Bot) quotaText(ctx context.Context) string {
	remaining, limit, windowStart := b.svc.QuotaStatus(ctx)
	return fmt.Sprintf("<b>API quota</b>\nUsed: %s / %s\nRemaining: %s\nWindow started: %s",
		formatCount(int64(limit-remaining)),
		formatCount(int64(limit)),
		formatCount(int64(remaining)),
		windowStart.UTC().Format("2006-01-02 15:04 UTC"))
}

// matchChannels resolves an optional filter to channel IDs. Empty means all.
func (b *Bot) matchChannels(arg string) []string {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return b.cfg.ChannelIDs()
	}
	lower := strings.ToLower(arg)
	for _, ch := range b.cfg.Channels {
		if ch.ID == arg ||
			strings.ToLower(ch.Name) == lower ||
			strings.ToLower(ch.Handle) == lower ||
			strings.ToLower(strings.TrimPrefix(ch.Handle, "@")) == lower {
			return []string{ch.ID}
		}
	}
	return nil
}
