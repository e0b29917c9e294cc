package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/borissharikoff-droid/youtube/stats"
)

// formatCount renders a counter with thousands separators, e.g. 1234567 ->
// "1,234,567".
func formatCount(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	lead := len(s) % 3
	if lead > 0 {
		sb.WriteString(s[:lead])
		if len(s) > lead {
			sb.WriteByte(',')
		}
	}
	for i := lead; i < len(s); i += 3 {
		sb.WriteString(s[i : i+3])
		if i+3 < len(s) {
			sb.WriteByte(',')
		}
	}
	return sb.String()
}

// formatDelta renders a signed change, e.g. "+1,204" or "-37".
func formatDelta(n int64) string {
	if n >= 0 {
		return "+" + formatCount(n)
	}
	return formatCount(n)
}

func writeChannelStats(sb *strings.Builder, name string, cs stats.ChannelStats) {
	if name == "" {
		name = cs.ChannelID
	}
	fmt.Fprintf(sb, "<b>%s</b>\n", name)
	if cs.Unavailable {
		sb.WriteString("no data available\n\n")
		return
	}
	fmt.Fprintf(sb, "👀 Views: %s\n", formatCount(cs.Metrics.Views))
	if cs.Subscribers > 0 {
		fmt.Fprintf(sb, "👥 Subscribers: %s\n", formatCount(cs.Subscribers))
	}
	fmt.Fprintf(sb, "💬 Comments: %s\n", formatCount(cs.Metrics.Comments))
	if cs.Stale {
		fmt.Fprintf(sb, "⚠️ stale, from %s\n", cs.FetchedAt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	sb.WriteString("\n")
}

func writeTrend(sb *strings.Builder, name string, t stats.Trend) {
	fmt.Fprintf(sb, "<b>%s</b>\n", name)
	fmt.Fprintf(sb, "👀 Views: %s\n", formatDelta(t.DeltaViews))
	fmt.Fprintf(sb, "👍 Likes: %s\n", formatDelta(t.DeltaLikes))
	fmt.Fprintf(sb, "💬 Comments: %s\n", formatDelta(t.DeltaComments))
	fmt.Fprintf(sb, "computed %s\n\n", t.ComputedAt.UTC().Format(time.RFC3339))
}
