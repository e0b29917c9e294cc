package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/borissharikoff-droid/youtube/config"
	"github.com/borissharikoff-droid/youtube/stats"
)

func TestFormatCount(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{7, "7"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
	}
	for _, tc := range cases {
		if got := formatCount(tc.n); got != tc.want {
			t.Errorf("formatCount(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestFormatDelta(t *testing.T) {
	if got := formatDelta(1204); got != "+1,204" {
		t.Errorf("formatDelta(1204) = %q", got)
	}
	if got := formatDelta(-37); got != "-37" {
		t.Errorf("formatDelta(-37) = %q", got)
	}
	if got := formatDelta(0); got != "+0" {
		t.Errorf("formatDelta(0) = %q", got)
	}
}

func TestWriteChannelStats(t *testing.T) {
	var sb strings.Builder
	writeChannelStats(&sb, "Alpha", stats.ChannelStats{
		ChannelID:   "UCa",
		Metrics:     stats.Metrics{Views: 1500, Comments: 42},
		Subscribers: 300,
		FetchedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	out := sb.String()
	for _, want := range []string{"Alpha", "1,500", "300", "42"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "stale") {
		t.Error("fresh stats marked stale")
	}
}

func TestWriteChannelStatsStaleAndUnavailable(t *testing.T) {
	var sb strings.Builder
	writeChannelStats(&sb, "Alpha", stats.ChannelStats{
		ChannelID: "UCa",
		Metrics:   stats.Metrics{Views: 100},
		FetchedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Stale:     true,
	})
	if !strings.Contains(sb.String(), "stale") {
		t.Errorf("stale marker missing:\n%s", sb.String())
	}

	sb.Reset()
	writeChannelStats(&sb, "Ghost", stats.ChannelStats{ChannelID: "UCg", Unavailable: true})
	if !strings.Contains(sb.String(), "no data") {
		t.Errorf("unavailable marker missing:\n%s", sb.String())
	}
}

func TestMatchChannels(t *testing.T) {
	b := &Bot{cfg: &config.Config{Channels: []config.Channel{
		{ID: "UCa", Name: "Alpha", Handle: "@alpha"},
		{ID: "UCb", Name: "Beta", Handle: "@beta"},
	}}}

	cases := []struct {
		arg  string
		want []string
	}{
		{"", []string{"UCa", "UCb"}},
		{"UCa", []string{"UCa"}},
		{"alpha", []string{"UCa"}},
		{"ALPHA", []string{"UCa"}},
		{"@beta", []string{"UCb"}},
		{"beta", []string{"UCb"}},
		{"nope", nil},
	}
	for _, tc := range cases {
		got := b.matchChannels(tc.arg)
		if len(got) != len(tc.want) {
			t.Errorf("matchChannels(%q) = %v, want %v", tc.arg, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("matchChannels(%q)[%d] = %s, want %s", tc.arg, i, got[i], tc.want[i])
			}
		}
	}
}
