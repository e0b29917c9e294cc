// Package youtubeapi wraps the YouTube Data API v3 for the single purpose of
// reading public statistics for tracked channels and videos. Authentication is
// a plain API key; there is no OAuth flow.
package youtubeapi

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

// Stats holds one entity's cumulative counters plus display metadata.
// Channel-level like counts are not exposed by the upstream API and stay zero
// for channel entities.
type Stats struct {
	ID          string
	Title       string
	Views       int64
	Likes       int64
	Comments    int64
	Subscribers int64
}

// Client issues batched statistics queries against the Data API.
type Client struct {
	svc *yt.Service
}

// New builds a client authenticated with the given API key. Extra options
// (notably option.WithEndpoint for tests) are appended after the key.
func New(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := yt.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// IsChannelID reports whether id looks like a channel id rather than a video id.
// Channel ids are 24 characters starting with "UC".
func IsChannelID(id string) bool {
	return len(id) == 24 && strings.HasPrefix(id, "UC")
}

// BatchStats fetches statistics for a mixed batch of channel and video ids in
// at most two upstream calls (one per endpoint). Ids the upstream does not
// recognize are simply absent from the result map.
func (c *Client) BatchStats(ctx context.Context, ids []string) (map[string]Stats, error) {
	var channelIDs, videoIDs []string
	for _, id := range ids {
		if IsChannelID(id) {
			channelIDs = append(channelIDs, id)
		} else {
			videoIDs = append(videoIDs, id)
		}
	}

	out := make(map[string]Stats, len(ids))
	if len(channelIDs) > 0 {
		resp, err := c.svc.Channels.List([]string{"statistics", "snippet"}).
			Id(channelIDs...).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("channels.list: %w", err)
		}
		for _, item := range resp.Items {
			if item.Statistics == nil {
				continue
			}
			s := Stats{
				ID:          item.Id,
				Views:       int64(item.Statistics.ViewCount),
				Comments:    int64(item.Statistics.CommentCount),
				Subscribers: int64(item.Statistics.SubscriberCount),
			}
			if item.Snippet != nil {
				s.Title = item.Snippet.Title
			}
			out[item.Id] = s
		}
	}
	if len(videoIDs) > 0 {
		resp, err := c.svc.Videos.List([]string{"statistics", "snippet"}).
			Id(videoIDs...).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("videos.list: %w", err)
		}
		for _, item := range resp.Items {
			if item.Statistics == nil {
				continue
			}
			s := Stats{
				ID:       item.Id,
				Views:    int64(item.Statistics.ViewCount),
				Likes:    int64(item.Statistics.LikeCount),
				Comments: int64(item.Statistics.CommentCount),
			}
			if item.Snippet != nil {
				s.Title = item.Snippet.Title
			}
			out[item.Id] = s
		}
	}
	return out, nil
}
