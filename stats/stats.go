package stats

import (
	"sync/atomic"
	"time"
)

const maxInt64 = int64(^uint64(0) >> 1)

// Stats holds all server statistics with atomic counters
type Stats struct {
	// Server info
	StartTime time.Time

	// Request counters
	TotalRequests    atomic.Int64
	MetadataRequests atomic.Int64
	LyricsRequests   atomic.Int64
	SessionRequests  atomic.Int64
	LikesRequests    atomic.Int64
	AdminRequests    atomic.Int64
	OtherRequests    atomic.Int64

	// Response cache performance
	CacheHits          atomic.Int64
	CacheMisses        atomic.Int64
	CacheLoadFailures  atomic.Int64
	SingleFlightShared atomic.Int64
	CacheInvalidations atomic.Int64

	// Lyrics synchronization
	SongChanges      atomic.Int64
	LineTransitions  atomic.Int64
	StaleLyricsDrops atomic.Int64

	// Rate limiting
	RateLimitNormal   atomic.Int64 // Requests served under normal rate limit
	RateLimitCached   atomic.Int64 // Requests served under cached-only tier
	RateLimitExceeded atomic.Int64 // Requests rejected (429)

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response time tracking (in microseconds for precision)
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	minResponseTime   atomic.Int64
	maxResponseTime   atomic.Int64

	// Upstream metadata response times (microseconds)
	upstreamResponseTime  atomic.Int64
	upstreamResponseCount atomic.Int64
}

// New returns a zeroed Stats started now
func New() *Stats {
	s := &Stats{StartTime: time.Now()}
	s.minResponseTime.Store(maxInt64)
	return s
}

// RecordRequest records a request against the route group it belongs to
func (s *Stats) RecordRequest(group string) {
	s.TotalRequests.Add(1)
	switch group {
	case "metadata":
		s.MetadataRequests.Add(1)
	case "lyrics":
		s.LyricsRequests.Add(1)
	case "session":
		s.SessionRequests.Add(1)
	case "likes":
		s.LikesRequests.Add(1)
	case "admin":
		s.AdminRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

// RecordCacheHit records a response cache hit
func (s *Stats) RecordCacheHit() {
	s.CacheHits.Add(1)
}

// RecordCacheMiss records a response cache miss
func (s *Stats) RecordCacheMiss() {
	s.CacheMisses.Add(1)
}

// RecordCacheLoadFailure records a loader failure that was not cached
func (s *Stats) RecordCacheLoadFailure() {
	s.CacheLoadFailures.Add(1)
}

// RecordSingleFlightShared records a caller that joined an in-flight load
func (s *Stats) RecordSingleFlightShared() {
	s.SingleFlightShared.Add(1)
}

// RecordCacheInvalidation records an invalidation call
func (s *Stats) RecordCacheInvalidation() {
	s.CacheInvalidations.Add(1)
}

// RecordSongChange records a song change notification
func (s *Stats) RecordSongChange() {
	s.SongChanges.Add(1)
}

// RecordLineTransition records a change of the active lyric line
func (s *Stats) RecordLineTransition() {
	s.LineTransitions.Add(1)
}

// RecordStaleLyricsDrop records lyrics discarded because the song changed
func (s *Stats) RecordStaleLyricsDrop() {
	s.StaleLyricsDrops.Add(1)
}

// RecordRateLimit records rate limit tier usage
func (s *Stats) RecordRateLimit(tier string) {
	switch tier {
	case "normal":
		s.RateLimitNormal.Add(1)
	case "cached":
		s.RateLimitCached.Add(1)
	case "exceeded":
		s.RateLimitExceeded.Add(1)
	}
}

// RecordStatusCode records a response status code
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records the time taken to serve a request
func (s *Stats) RecordResponseTime(duration time.Duration) {
	us := duration.Microseconds()

	s.totalResponseTime.Add(us)
	s.responseCount.Add(1)

	// Update min/max atomically
	for {
		current := s.minResponseTime.Load()
		if us >= current || s.minResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
	for {
		current := s.maxResponseTime.Load()
		if us <= current || s.maxResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
}

// RecordUpstreamTime records the duration of a metadata provider call
func (s *Stats) RecordUpstreamTime(duration time.Duration) {
	s.upstreamResponseTime.Add(duration.Microseconds())
	s.upstreamResponseCount.Add(1)
}

// Uptime returns the server uptime
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// CacheHitRate returns the cache hit rate as a percentage
func (s *Stats) CacheHitRate() float64 {
	hits := s.CacheHits.Load()
	misses := s.CacheMisses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// AvgResponseTime returns the average response time
func (s *Stats) AvgResponseTime() time.Duration {
	count := s.responseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.totalResponseTime.Load()/count) * time.Microsecond
}

// MinResponseTime returns the minimum response time
func (s *Stats) MinResponseTime() time.Duration {
	min := s.minResponseTime.Load()
	if min == maxInt64 {
		return 0
	}
	return time.Duration(min) * time.Microsecond
}

// MaxResponseTime returns the maximum response time
func (s *Stats) MaxResponseTime() time.Duration {
	return time.Duration(s.maxResponseTime.Load()) * time.Microsecond
}

// AvgUpstreamTime returns the average metadata provider response time
func (s *Stats) AvgUpstreamTime() time.Duration {
	count := s.upstreamResponseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.upstreamResponseTime.Load()/count) * time.Microsecond
}

// Snapshot returns a point-in-time snapshot of all stats
func (s *Stats) Snapshot() map[string]interface{} {
	uptime := s.Uptime()

	return map[string]interface{}{
		"server": map[string]interface{}{
			"start_time":     s.StartTime.Format(time.RFC3339),
			"uptime":         uptime.String(),
			"uptime_seconds": int64(uptime.Seconds()),
		},
		"requests": map[string]interface{}{
			"total":    s.TotalRequests.Load(),
			"metadata": s.MetadataRequests.Load(),
			"lyrics":   s.LyricsRequests.Load(),
			"session":  s.SessionRequests.Load(),
			"likes":    s.LikesRequests.Load(),
			"admin":    s.AdminRequests.Load(),
			"other":    s.OtherRequests.Load(),
		},
		"cache": map[string]interface{}{
			"hits":                s.CacheHits.Load(),
			"misses":              s.CacheMisses.Load(),
			"load_failures":       s.CacheLoadFailures.Load(),
			"single_flight_share": s.SingleFlightShared.Load(),
			"invalidations":       s.CacheInvalidations.Load(),
			"hit_rate":            s.CacheHitRate(),
		},
		"lyrics": map[string]interface{}{
			"song_changes":     s.SongChanges.Load(),
			"line_transitions": s.LineTransitions.Load(),
			"stale_drops":      s.StaleLyricsDrops.Load(),
		},
		"rate_limiting": map[string]interface{}{
			"normal_tier": s.RateLimitNormal.Load(),
			"cached_tier": s.RateLimitCached.Load(),
			"exceeded":    s.RateLimitExceeded.Load(),
		},
		"responses": map[string]interface{}{
			"2xx": s.Status2xx.Load(),
			"4xx": s.Status4xx.Load(),
			"5xx": s.Status5xx.Load(),
		},
		"response_times": map[string]interface{}{
			"avg":          s.AvgResponseTime().String(),
			"min":          s.MinResponseTime().String(),
			"max":          s.MaxResponseTime().String(),
			"avg_upstream": s.AvgUpstreamTime().String(),
		},
	}
}
