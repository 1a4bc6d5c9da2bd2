package stats

import (
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestRecordRequest(t *testing.T) {
	s := New()

	groups := []string{"metadata", "metadata", "lyrics", "session", "likes", "admin", "health"}
	for _, g := range groups {
		s.RecordRequest(g)
	}

	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"total", s.TotalRequests.Load(), 7},
		{"metadata", s.MetadataRequests.Load(), 2},
		{"lyrics", s.LyricsRequests.Load(), 1},
		{"session", s.SessionRequests.Load(), 1},
		{"likes", s.LikesRequests.Load(), 1},
		{"admin", s.AdminRequests.Load(), 1},
		{"other", s.OtherRequests.Load(), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, tt.got)
			}
		})
	}
}

func TestRecordStatusCode(t *testing.T) {
	s := New()
	for _, code := range []int{200, 204, 302, 404, 429, 500, 502} {
		s.RecordStatusCode(code)
	}

	if s.Status2xx.Load() != 2 {
		t.Errorf("Expected 2 2xx, got %d", s.Status2xx.Load())
	}
	if s.Status4xx.Load() != 2 {
		t.Errorf("Expected 2 4xx, got %d", s.Status4xx.Load())
	}
	if s.Status5xx.Load() != 2 {
		t.Errorf("Expected 2 5xx, got %d", s.Status5xx.Load())
	}
}

func TestCacheHitRate(t *testing.T) {
	s := New()
	if s.CacheHitRate() != 0 {
		t.Errorf("Expected 0 hit rate with no traffic, got %f", s.CacheHitRate())
	}

	s.RecordCacheHit()
	s.RecordCacheHit()
	s.RecordCacheHit()
	s.RecordCacheMiss()

	if got := s.CacheHitRate(); got != 75 {
		t.Errorf("Expected 75%% hit rate, got %f", got)
	}
}

func TestResponseTimes(t *testing.T) {
	s := New()

	if s.MinResponseTime() != 0 {
		t.Errorf("Expected min 0 before any response, got %v", s.MinResponseTime())
	}

	s.RecordResponseTime(10 * time.Millisecond)
	s.RecordResponseTime(30 * time.Millisecond)

	if s.MinResponseTime() != 10*time.Millisecond {
		t.Errorf("Expected min 10ms, got %v", s.MinResponseTime())
	}
	if s.MaxResponseTime() != 30*time.Millisecond {
		t.Errorf("Expected max 30ms, got %v", s.MaxResponseTime())
	}
	if s.AvgResponseTime() != 20*time.Millisecond {
		t.Errorf("Expected avg 20ms, got %v", s.AvgResponseTime())
	}
}

func TestConcurrentRecording(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordRequest("metadata")
			s.RecordCacheHit()
			s.RecordResponseTime(time.Millisecond)
		}()
	}
	wg.Wait()

	if s.TotalRequests.Load() != 50 {
		t.Errorf("Expected 50 requests, got %d", s.TotalRequests.Load())
	}
	if s.CacheHits.Load() != 50 {
		t.Errorf("Expected 50 hits, got %d", s.CacheHits.Load())
	}
}

func TestSnapshotSections(t *testing.T) {
	snap := New().Snapshot()
	for _, key := range []string{"server", "requests", "cache", "lyrics", "rate_limiting", "responses", "response_times"} {
		if _, ok := snap[key]; !ok {
			t.Errorf("Expected snapshot section %q", key)
		}
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "stats.db")

	s := New()
	s.RecordRequest("lyrics")
	s.RecordCacheMiss()
	s.RecordSongChange()
	s.RecordResponseTime(5 * time.Millisecond)

	store, err := NewStore(dbPath, s)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	restored := New()
	store, err = NewStore(dbPath, restored)
	if err != nil {
		t.Fatalf("NewStore (reopen) failed: %v", err)
	}
	defer store.Close()

	if err := store.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if restored.LyricsRequests.Load() != 1 {
		t.Errorf("Expected 1 lyrics request, got %d", restored.LyricsRequests.Load())
	}
	if restored.CacheMisses.Load() != 1 {
		t.Errorf("Expected 1 cache miss, got %d", restored.CacheMisses.Load())
	}
	if restored.SongChanges.Load() != 1 {
		t.Errorf("Expected 1 song change, got %d", restored.SongChanges.Load())
	}
	if restored.MinResponseTime() != 5*time.Millisecond {
		t.Errorf("Expected min 5ms, got %v", restored.MinResponseTime())
	}
	if !restored.StartTime.Equal(s.StartTime) {
		t.Errorf("Expected start time to be preserved, got %v", restored.StartTime)
	}
}

func TestStore_LoadEmpty(t *testing.T) {
	s := New()
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "stats.db"), s)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Load(); err != nil {
		t.Errorf("Expected no error loading empty store, got %v", err)
	}
	if s.TotalRequests.Load() != 0 {
		t.Errorf("Expected zero requests, got %d", s.TotalRequests.Load())
	}
}
