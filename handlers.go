package main

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"jine-api-go/circuitbreaker"
	"jine-api-go/logcolors"
	"jine-api-go/middleware"
	"jine-api-go/services/lyrics"
	"jine-api-go/services/saavn"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const maxSearchLimit = 100

// upstreamContext marks requests admitted on the cached rate-limit tier so
// the metadata client answers them from cache only
func upstreamContext(r *http.Request) context.Context {
	ctx := r.Context()
	if middleware.CacheOnly(ctx) {
		ctx = saavn.WithCacheOnly(ctx)
	}
	return ctx
}

// searchParams reads the query (query or q) and the optional limit
func searchParams(r *http.Request) (string, int) {
	q := r.URL.Query()
	query := q.Get("query")
	if query == "" {
		query = q.Get("q")
	}
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit < 0 {
		limit = 0
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	return strings.TrimSpace(query), limit
}

// writeUpstreamError answers a failed metadata call. fallback is the empty
// result the front end renders in place of real data.
func (s *server) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error, fallback interface{}) {
	resp := Respond(w, r).SetCacheStatus("MISS")

	switch {
	case errors.Is(err, saavn.ErrNotCached):
		s.stats.RecordRateLimit(middleware.TierExceeded)
		log.Warnf("%s Cache-only request missed for %s", logcolors.LogRateLimit, r.URL.RequestURI())
		resp.SetRetryAfter("60").Fail(http.StatusTooManyRequests,
			"Rate limit exceeded. This request requires cached data, but no cache is available for it.", fallback)
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		retry := int(math.Ceil(s.breaker.TimeUntilRetry().Seconds()))
		if retry < 1 {
			retry = 1
		}
		resp.SetRetryAfter(strconv.Itoa(retry)).Fail(http.StatusBadGateway, err.Error(), fallback)
	case errors.Is(err, context.Canceled):
		log.Debugf("%s Client went away during %s", logcolors.LogRequest, r.URL.RequestURI())
	default:
		log.Errorf("%s %s failed: %v", logcolors.LogUpstream, r.URL.RequestURI(), err)
		resp.Fail(http.StatusBadGateway, err.Error(), fallback)
	}
}

func (s *server) searchSongs(w http.ResponseWriter, r *http.Request) {
	query, limit := searchParams(r)
	res, err := s.saavn.SearchSongs(upstreamContext(r), query, limit)
	if err != nil {
		s.writeUpstreamError(w, r, err, res)
		return
	}
	log.Infof("%s songs %q: %d results", logcolors.LogSearch, query, len(res.Results))
	Respond(w, r).SetCacheHit(res.CacheHit).OK(res)
}

func (s *server) searchAlbums(w http.ResponseWriter, r *http.Request) {
	query, limit := searchParams(r)
	res, err := s.saavn.SearchAlbums(upstreamContext(r), query, limit)
	if err != nil {
		s.writeUpstreamError(w, r, err, res)
		return
	}
	log.Infof("%s albums %q: %d results", logcolors.LogSearch, query, len(res.Results))
	Respond(w, r).SetCacheHit(res.CacheHit).OK(res)
}

func (s *server) searchPlaylists(w http.ResponseWriter, r *http.Request) {
	query, limit := searchParams(r)
	res, err := s.saavn.SearchPlaylists(upstreamContext(r), query, limit)
	if err != nil {
		s.writeUpstreamError(w, r, err, res)
		return
	}
	log.Infof("%s playlists %q: %d results", logcolors.LogSearch, query, len(res.Results))
	Respond(w, r).SetCacheHit(res.CacheHit).OK(res)
}

// searchAll never fails as a whole; a failed branch is an empty list
func (s *server) searchAll(w http.ResponseWriter, r *http.Request) {
	query, limit := searchParams(r)
	all := s.saavn.SearchAll(upstreamContext(r), query, limit)
	Respond(w, r).OK(all)
}

func (s *server) getSong(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	songs, hit, err := s.saavn.SongDetails(upstreamContext(r), id)
	if err != nil {
		s.writeUpstreamError(w, r, err, []saavn.Song{})
		return
	}
	if len(songs) == 0 {
		Respond(w, r).SetCacheHit(hit).Fail(http.StatusNotFound, "song not found", []saavn.Song{})
		return
	}
	Respond(w, r).SetCacheHit(hit).OK(songs)
}

func (s *server) getSongLyrics(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	raw, err := s.saavn.Lyrics(upstreamContext(r), id)
	if err != nil {
		if errors.Is(err, saavn.ErrNoLyrics) {
			Respond(w, r).Fail(http.StatusNotFound, err.Error(), nil)
			return
		}
		s.writeUpstreamError(w, r, err, nil)
		return
	}

	lines, perr := lyrics.ParsePayload(raw.Text)
	if perr != nil {
		log.Warnf("%s %s: %v", logcolors.LogLyricsParse, id, perr)
		lines = []lyrics.Line{}
	}

	var text string
	synced := json.Unmarshal(raw.Text, &text) == nil && lyrics.HasTimestamps(text)

	Respond(w, r).SetCacheHit(raw.CacheHit).OK(LyricsResponse{
		SongID:    id,
		Lyrics:    raw.Text,
		Copyright: raw.Copyright,
		Source:    raw.Source,
		Synced:    synced,
		Lines:     lines,
	})
}

func (s *server) getAlbum(w http.ResponseWriter, r *http.Request) {
	album, hit, err := s.saavn.AlbumDetails(upstreamContext(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeUpstreamError(w, r, err, nil)
		return
	}
	Respond(w, r).SetCacheHit(hit).OK(album)
}

func (s *server) getPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, hit, err := s.saavn.PlaylistDetails(upstreamContext(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeUpstreamError(w, r, err, nil)
		return
	}
	Respond(w, r).SetCacheHit(hit).OK(playlist)
}

func (s *server) getModules(w http.ResponseWriter, r *http.Request) {
	modules, err := s.saavn.Trending(upstreamContext(r), r.URL.Query().Get("language"))
	if err != nil {
		s.writeUpstreamError(w, r, err, nil)
		return
	}
	Respond(w, r).SetCacheHit(modules.CacheHit).OK(modules)
}

func (s *server) getHealthStatus(w http.ResponseWriter, r *http.Request) {
	cb := s.breaker.Snapshot()

	health := map[string]interface{}{
		"status":          "ok",
		"circuit_breaker": cb.State,
		"sessions":        s.lyrics.Sessions().Len(),
		"cache_keys":      len(s.cache.Stats().Keys),
	}

	if s.breaker.State() == circuitbreaker.StateOpen {
		health["status"] = "degraded"
		health["circuit_breaker_retry_in"] = cb.TimeUntilRetry
	}

	if liked, err := s.likes.Stats(); err != nil {
		health["status"] = "unhealthy"
		health["error"] = "likes store unavailable"
		log.Errorf("%s Health check failed to read likes: %v", logcolors.LogLikes, err)
	} else {
		health["likes"] = liked
	}

	Respond(w, r).JSON(health)
}

func (s *server) getStats(w http.ResponseWriter, r *http.Request) {
	snapshot := s.stats.Snapshot()

	size := s.cache.SizeInBytes()
	snapshot["cache_storage"] = map[string]interface{}{
		"keys":    len(s.cache.Stats().Keys),
		"size_kb": int(size / 1024),
		"size":    humanize.Bytes(uint64(size)),
		"ttl":     s.cache.TTL().String(),
	}
	snapshot["circuit_breaker"] = s.breaker.Snapshot()
	snapshot["sessions"] = map[string]interface{}{
		"active": s.lyrics.Sessions().Len(),
	}

	Respond(w, r).JSON(snapshot)
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"help": "Music metadata, synchronized lyrics and liked items for the jine front end.",
		"endpoints": map[string]string{
			"GET /search?query=":                    "Search songs, albums and playlists at once",
			"GET /search/songs?query=&limit=":       "Search songs",
			"GET /search/albums?query=&limit=":      "Search albums",
			"GET /search/playlists?query=":          "Search playlists",
			"GET /songs/{id}":                       "Song details",
			"GET /songs/{id}/lyrics":                "Song lyrics, raw and parsed into timed lines",
			"GET /albums/{id}":                      "Album with tracks",
			"GET /playlists/{id}":                   "Playlist with tracks",
			"GET /modules?language=":                "Trending modules (default language hindi)",
			"POST /sessions":                        "Start a lyrics session",
			"POST /sessions/{id}/song":              "Report a song change {songId}",
			"POST /sessions/{id}/lyrics":            "Load lyrics the client already holds {songId, lyrics}",
			"POST /sessions/{id}/position":          "Report playback position {positionMs}; 204 when the line is unchanged",
			"GET /sessions/{id}":                    "Session state",
			"DELETE /sessions/{id}":                 "End a session",
			"GET|POST|DELETE /likes/songs":          "Liked songs",
			"GET /likes/songs/check?title=&artist=": "Whether a song is liked",
			"GET|POST /likes/playlists":             "Liked playlists",
			"GET|POST /likes/albums":                "Liked albums",
			"GET /likes/stats":                      "Liked item counts",
			"GET /health":                           "Health status",
			"GET /stats":                            "Server statistics",
		},
		"admin": "Admin endpoints (/cache, /cache/stats, /cache/invalidate, /likes/backup, /likes/backups, DELETE /likes, /circuit-breaker, /circuit-breaker/reset, /events) require the X-API-Key header.",
	})
}
