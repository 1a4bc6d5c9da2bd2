package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"jine-api-go/logcolors"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	statsBucketName = "stats"
	statsKey        = "server_stats"
)

// Store persists a Stats instance in its own BoltDB file so counters
// accumulate across restarts
type Store struct {
	db       *bolt.DB
	dbPath   string
	stats    *Stats
	mu       sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// PersistedStats represents the stats data that gets persisted to disk
type PersistedStats struct {
	TotalRequests      int64 `json:"total_requests"`
	MetadataRequests   int64 `json:"metadata_requests"`
	LyricsRequests     int64 `json:"lyrics_requests"`
	SessionRequests    int64 `json:"session_requests"`
	LikesRequests      int64 `json:"likes_requests"`
	AdminRequests      int64 `json:"admin_requests"`
	OtherRequests      int64 `json:"other_requests"`
	CacheHits          int64 `json:"cache_hits"`
	CacheMisses        int64 `json:"cache_misses"`
	CacheLoadFailures  int64 `json:"cache_load_failures"`
	SingleFlightShared int64 `json:"single_flight_shared"`
	CacheInvalidations int64 `json:"cache_invalidations"`
	SongChanges        int64 `json:"song_changes"`
	LineTransitions    int64 `json:"line_transitions"`
	StaleLyricsDrops   int64 `json:"stale_lyrics_drops"`
	RateLimitNormal    int64 `json:"rate_limit_normal"`
	RateLimitCached    int64 `json:"rate_limit_cached"`
	RateLimitExceeded  int64 `json:"rate_limit_exceeded"`
	Status2xx          int64 `json:"status_2xx"`
	Status4xx          int64 `json:"status_4xx"`
	Status5xx          int64 `json:"status_5xx"`

	TotalResponseTime     int64 `json:"total_response_time"`
	ResponseCount         int64 `json:"response_count"`
	MinResponseTime       int64 `json:"min_response_time"`
	MaxResponseTime       int64 `json:"max_response_time"`
	UpstreamResponseTime  int64 `json:"upstream_response_time"`
	UpstreamResponseCount int64 `json:"upstream_response_count"`

	LastSaved    time.Time `json:"last_saved"`
	FirstStarted time.Time `json:"first_started"`
}

// NewStore opens (or creates) the stats database at dbPath for s
func NewStore(dbPath string, s *Stats) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(statsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats bucket: %w", err)
	}

	log.Infof("%s Stats store initialized at %s", logcolors.LogStats, dbPath)
	return &Store{
		db:       db,
		dbPath:   dbPath,
		stats:    s,
		stopChan: make(chan struct{}),
	}, nil
}

// Load reads persisted counters and applies them to the store's Stats
func (st *Store) Load() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	var p PersistedStats
	found := false
	err := st.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(statsKey))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	if !found {
		return nil
	}

	s := st.stats
	s.TotalRequests.Store(p.TotalRequests)
	s.MetadataRequests.Store(p.MetadataRequests)
	s.LyricsRequests.Store(p.LyricsRequests)
	s.SessionRequests.Store(p.SessionRequests)
	s.LikesRequests.Store(p.LikesRequests)
	s.AdminRequests.Store(p.AdminRequests)
	s.OtherRequests.Store(p.OtherRequests)
	s.CacheHits.Store(p.CacheHits)
	s.CacheMisses.Store(p.CacheMisses)
	s.CacheLoadFailures.Store(p.CacheLoadFailures)
	s.SingleFlightShared.Store(p.SingleFlightShared)
	s.CacheInvalidations.Store(p.CacheInvalidations)
	s.SongChanges.Store(p.SongChanges)
	s.LineTransitions.Store(p.LineTransitions)
	s.StaleLyricsDrops.Store(p.StaleLyricsDrops)
	s.RateLimitNormal.Store(p.RateLimitNormal)
	s.RateLimitCached.Store(p.RateLimitCached)
	s.RateLimitExceeded.Store(p.RateLimitExceeded)
	s.Status2xx.Store(p.Status2xx)
	s.Status4xx.Store(p.Status4xx)
	s.Status5xx.Store(p.Status5xx)
	s.totalResponseTime.Store(p.TotalResponseTime)
	s.responseCount.Store(p.ResponseCount)
	s.upstreamResponseTime.Store(p.UpstreamResponseTime)
	s.upstreamResponseCount.Store(p.UpstreamResponseCount)

	// Only update min/max if we have valid persisted values
	if p.MinResponseTime > 0 && p.MinResponseTime < maxInt64 {
		s.minResponseTime.Store(p.MinResponseTime)
	}
	if p.MaxResponseTime > 0 {
		s.maxResponseTime.Store(p.MaxResponseTime)
	}

	if !p.FirstStarted.IsZero() {
		s.StartTime = p.FirstStarted
	}

	log.Infof("%s Loaded persisted stats (total requests: %d, first started: %s)",
		logcolors.LogStats, p.TotalRequests, p.FirstStarted.Format(time.RFC3339))
	return nil
}

// Save persists current counters to disk
func (st *Store) Save() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.stats
	p := PersistedStats{
		TotalRequests:         s.TotalRequests.Load(),
		MetadataRequests:      s.MetadataRequests.Load(),
		LyricsRequests:        s.LyricsRequests.Load(),
		SessionRequests:       s.SessionRequests.Load(),
		LikesRequests:         s.LikesRequests.Load(),
		AdminRequests:         s.AdminRequests.Load(),
		OtherRequests:         s.OtherRequests.Load(),
		CacheHits:             s.CacheHits.Load(),
		CacheMisses:           s.CacheMisses.Load(),
		CacheLoadFailures:     s.CacheLoadFailures.Load(),
		SingleFlightShared:    s.SingleFlightShared.Load(),
		CacheInvalidations:    s.CacheInvalidations.Load(),
		SongChanges:           s.SongChanges.Load(),
		LineTransitions:       s.LineTransitions.Load(),
		StaleLyricsDrops:      s.StaleLyricsDrops.Load(),
		RateLimitNormal:       s.RateLimitNormal.Load(),
		RateLimitCached:       s.RateLimitCached.Load(),
		RateLimitExceeded:     s.RateLimitExceeded.Load(),
		Status2xx:             s.Status2xx.Load(),
		Status4xx:             s.Status4xx.Load(),
		Status5xx:             s.Status5xx.Load(),
		TotalResponseTime:     s.totalResponseTime.Load(),
		ResponseCount:         s.responseCount.Load(),
		MinResponseTime:       s.minResponseTime.Load(),
		MaxResponseTime:       s.maxResponseTime.Load(),
		UpstreamResponseTime:  s.upstreamResponseTime.Load(),
		UpstreamResponseCount: s.upstreamResponseCount.Load(),
		LastSaved:             time.Now(),
		FirstStarted:          s.StartTime,
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	err = st.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return fmt.Errorf("stats bucket not found")
		}
		return b.Put([]byte(statsKey), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// StartAutoSave begins periodic saving of stats
func (st *Store) StartAutoSave(interval time.Duration) {
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := st.Save(); err != nil {
					log.Warnf("%s Failed to auto-save stats: %v", logcolors.LogStats, err)
				}
			case <-st.stopChan:
				return
			}
		}
	}()
	log.Infof("%s Started auto-save with interval %v", logcolors.LogStats, interval)
}

// Close stops auto-save, writes a final snapshot and closes the database
func (st *Store) Close() error {
	st.stopOnce.Do(func() { close(st.stopChan) })
	st.wg.Wait()

	if err := st.Save(); err != nil {
		log.Warnf("%s Failed to save stats on close: %v", logcolors.LogStats, err)
	} else {
		log.Infof("%s Stats saved on shutdown", logcolors.LogStats)
	}

	return st.db.Close()
}
