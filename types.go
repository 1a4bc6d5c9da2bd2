package main

import (
	"encoding/json"
	"time"

	"jine-api-go/cache"
	"jine-api-go/services/lyrics"
)

// CacheDumpEntry is one cached response in the /cache dump
type CacheDumpEntry struct {
	StoredAt  time.Time       `json:"stored_at"`
	ExpiresIn string          `json:"expires_in"`
	SizeBytes int             `json:"size_bytes"`
	Value     json.RawMessage `json:"value,omitempty"`
}

// CachePerformance contains cache hit/miss statistics
type CachePerformance struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	LoadFailures int64   `json:"load_failures"`
	Shared       int64   `json:"single_flight_shared"`
	HitRate      float64 `json:"hit_rate_percent"`
}

// CacheDumpResponse is the response format for /cache endpoint
type CacheDumpResponse struct {
	NumberOfKeys int                       `json:"number_of_keys"`
	SizeInKB     int                       `json:"size_kb"`
	SizeInMB     float64                   `json:"size_mb"`
	Size         string                    `json:"size"`
	TTL          string                    `json:"ttl"`
	Performance  CachePerformance          `json:"performance"`
	Cache        map[string]CacheDumpEntry `json:"cache"`
}

// CacheStatsResponse is the response format for /cache/stats
type CacheStatsResponse struct {
	cache.CacheStats
	TTL string `json:"ttl"`
}

// SessionCreatedResponse is returned by POST /sessions
type SessionCreatedResponse struct {
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChangeSongRequest is the body of POST /sessions/{id}/song
type ChangeSongRequest struct {
	SongID string `json:"songId"`
}

// LoadLyricsRequest is the body of POST /sessions/{id}/lyrics. Lyrics is a
// JSON string (LRC or plain text) or an array of lines.
type LoadLyricsRequest struct {
	SongID string          `json:"songId"`
	Lyrics json.RawMessage `json:"lyrics"`
}

// PositionRequest is the body of POST /sessions/{id}/position
type PositionRequest struct {
	PositionMs *int64 `json:"positionMs"`
}

// LyricsResponse is the data of GET /songs/{id}/lyrics
type LyricsResponse struct {
	SongID    string          `json:"songId"`
	Lyrics    json.RawMessage `json:"lyrics"`
	Copyright string          `json:"copyright,omitempty"`
	Source    string          `json:"source"`
	Synced    bool            `json:"synced"`
	Lines     []lyrics.Line   `json:"lines"`
}

// LikeResponse reports whether a like was stored
type LikeResponse struct {
	Added bool `json:"added"`
}

// LikedCheckResponse is the data of GET /likes/songs/check
type LikedCheckResponse struct {
	Liked bool `json:"liked"`
}
