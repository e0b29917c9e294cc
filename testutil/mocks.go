package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// MockChannel is the canned statistics payload the mock YouTube API serves for
// one channel or video ID.
type MockChannel struct {
	ID          string
	Title       string
	Views       int64
	Likes       int64
	Comments    int64
	Subscribers int64
}

// MockYouTubeServer is an httptest server that mimics the YouTube Data API v3
// channels.list and videos.list endpoints. Point the real client at it with
// option.WithEndpoint(server.URL()).
type MockYouTubeServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	entities map[string]MockChannel
	status   int
	apiError string
	Requests int
}

// NewMockYouTubeServer starts the mock. Callers own the Close.
func NewMockYouTubeServer() *MockYouTubeServer {
	m := &MockYouTubeServer{
		entities: make(map[string]MockChannel),
		status:   http.StatusOK,
	}
	m.srv = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

func (m *MockYouTubeServer) URL() string { return m.srv.URL }

func (m *MockYouTubeServer) Close() { m.srv.Close() }

// Add registers an entity the mock will answer for.
func (m *MockYouTubeServer) Add(c MockChannel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[c.ID] = c
}

// FailWith makes every subsequent request return the given HTTP status and
// API error reason, e.g. (403, "quotaExceeded").
func (m *MockYouTubeServer) FailWith(status int, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.apiError = reason
}

func (m *MockYouTubeServer) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests++

	if m.status != http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(m.status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    m.status,
				"message": m.apiError,
				"errors":  []map[string]string{{"reason": m.apiError}},
			},
		})
		return
	}

	isVideos := strings.Contains(r.URL.Path, "/videos")
	ids := strings.Split(r.URL.Query().Get("id"), ",")

	items := []map[string]any{}
	for _, id := range ids {
		c, ok := m.entities[id]
		if !ok {
			continue
		}
		statistics := map[string]string{
			"viewCount":    strconv.FormatInt(c.Views, 10),
			"commentCount": strconv.FormatInt(c.Comments, 10),
		}
		if isVideos {
			statistics["likeCount"] = strconv.FormatInt(c.Likes, 10)
		} else {
			statistics["subscriberCount"] = strconv.FormatInt(c.Subscribers, 10)
		}
		items = append(items, map[string]any{
			"id":         c.ID,
			"snippet":    map[string]string{"title": c.Title},
			"statistics": statistics,
		})
	}

	kind := "youtube#channelListResponse"
	if isVideos {
		kind = "youtube#videoListResponse"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"kind": kind, "items": items})
}
