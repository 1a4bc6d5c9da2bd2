package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"jine-api-go/cache"
	"jine-api-go/logcolors"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

// getCacheDump lists cached responses. Values are included with
// ?values=true.
func (s *server) getCacheDump(w http.ResponseWriter, r *http.Request) {
	withValues := r.URL.Query().Get("values") == "true"
	ttl := s.cache.TTL()

	dump := map[string]CacheDumpEntry{}
	s.cache.Range(func(e cache.CacheEntry) bool {
		remaining := ttl - time.Since(e.StoredAt)
		if remaining < 0 {
			remaining = 0
		}
		entry := CacheDumpEntry{
			StoredAt:  e.StoredAt,
			ExpiresIn: remaining.Round(time.Second).String(),
			SizeBytes: len(e.Value),
		}
		if withValues && json.Valid(e.Value) {
			entry.Value = e.Value
		}
		dump[e.Key] = entry
		return true
	})

	size := s.cache.SizeInBytes()
	sizeInKB := int(size / 1024)
	Respond(w, r).JSON(CacheDumpResponse{
		NumberOfKeys: len(dump),
		SizeInKB:     sizeInKB,
		SizeInMB:     float64(sizeInKB) / 1024,
		Size:         humanize.Bytes(uint64(size)),
		TTL:          ttl.String(),
		Performance: CachePerformance{
			Hits:         s.stats.CacheHits.Load(),
			Misses:       s.stats.CacheMisses.Load(),
			LoadFailures: s.stats.CacheLoadFailures.Load(),
			Shared:       s.stats.SingleFlightShared.Load(),
			HitRate:      s.stats.CacheHitRate(),
		},
		Cache: dump,
	})
}

func (s *server) getCacheStats(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(CacheStatsResponse{
		CacheStats: s.cache.Stats(),
		TTL:        s.cache.TTL().String(),
	})
}

// invalidateCache drops the keys given as ?key= (repeatable), or the whole
// cache when none is given
func (s *server) invalidateCache(w http.ResponseWriter, r *http.Request) {
	keys := r.URL.Query()["key"]
	before := s.cache.Stats().Size
	s.cache.Invalidate(keys...)
	after := s.cache.Stats().Size

	if len(keys) == 0 {
		log.Infof("%s Cleared response cache (%d entries)", logcolors.LogCacheInvalidate, before)
	} else {
		log.Infof("%s Invalidated %d key(s)", logcolors.LogCacheInvalidate, len(keys))
	}
	Respond(w, r).JSON(map[string]interface{}{
		"message": "Cache invalidated",
		"removed": before - after,
		"keys":    keys,
	})
}

func (s *server) backupLikes(w http.ResponseWriter, r *http.Request) {
	backupPath, err := s.likes.Backup()
	if err != nil {
		log.Errorf("%s Failed to create backup: %v", logcolors.LogLikesBackup, err)
		Respond(w, r).Error(http.StatusInternalServerError, map[string]interface{}{
			"error": fmt.Sprintf("Failed to create backup: %v", err),
		})
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"message":     "Backup created successfully",
		"backup_path": backupPath,
	})
}

func (s *server) listLikesBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := s.likes.ListBackups()
	if err != nil {
		log.Errorf("%s Failed to list backups: %v", logcolors.LogLikesBackup, err)
		Respond(w, r).Error(http.StatusInternalServerError, map[string]interface{}{
			"error": fmt.Sprintf("Failed to list backups: %v", err),
		})
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"count":   len(backups),
		"backups": backups,
	})
}

// clearLikes backs up the likes store before clearing it
func (s *server) clearLikes(w http.ResponseWriter, r *http.Request) {
	backupPath, err := s.likes.Backup()
	if err != nil {
		log.Errorf("%s Refusing to clear likes without a backup: %v", logcolors.LogLikesBackup, err)
		Respond(w, r).Error(http.StatusInternalServerError, map[string]interface{}{
			"error": fmt.Sprintf("Failed to back up before clearing: %v", err),
		})
		return
	}
	if err := s.likes.Clear(); err != nil {
		writeLikesError(w, r, err)
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"message":     "Likes cleared successfully",
		"backup_path": backupPath,
	})
}

func (s *server) getCircuitBreakerStatus(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(s.breaker.Snapshot())
}

func (s *server) resetCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	s.breaker.Reset()
	log.Infof("%s Reset via admin endpoint", logcolors.CircuitBreakerPrefix(s.breaker.Name()))
	Respond(w, r).JSON(map[string]interface{}{
		"message": "Circuit breaker reset",
		"state":   s.breaker.State().String(),
	})
}

func (s *server) getRecentEvents(w http.ResponseWriter, r *http.Request) {
	recent := s.alerts.Recent()
	Respond(w, r).JSON(map[string]interface{}{
		"count":  len(recent),
		"events": recent,
	})
}
