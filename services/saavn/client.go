// Package saavn is the client for the JioSaavn metadata API. Every call
// goes through the shared response cache; only successful responses are
// cached.
package saavn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"jine-api-go/cache"
	"jine-api-go/circuitbreaker"
	"jine-api-go/logcolors"
	"jine-api-go/stats"
	"jine-api-go/utils"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "jine-api-go/1.0"
	maxBodySize    = 8 << 20
)

// Client talks to the metadata provider through a ResponseCache
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.ResponseCache
	breaker    *circuitbreaker.CircuitBreaker
	stats      *stats.Stats
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithCache sets the response cache shared with the admin endpoints
func WithCache(rc *cache.ResponseCache) Option {
	return func(c *Client) {
		c.cache = rc
	}
}

// WithBreaker guards upstream calls with cb
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

// WithStats records upstream call durations into s
func WithStats(s *stats.Stats) Option {
	return func(c *Client) {
		c.stats = s
	}
}

// NewClient creates a client for baseURL. An empty baseURL means
// DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = cache.New()
	}
	return c
}

// Cache returns the response cache used by the client
func (c *Client) Cache() *cache.ResponseCache {
	return c.cache
}

// Breaker returns the circuit breaker, or nil
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

type cacheOnlyKey struct{}

// WithCacheOnly marks ctx so that client calls are answered from cache only.
// A call whose response is not cached fails with ErrNotCached.
func WithCacheOnly(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheOnlyKey{}, true)
}

func cacheOnly(ctx context.Context) bool {
	v, _ := ctx.Value(cacheOnlyKey{}).(bool)
	return v
}

// IsCached reports whether a fresh response for the endpoint is cached
func (c *Client) IsCached(endpoint string, params url.Values) bool {
	_, ok := c.cache.Peek(utils.CacheKey(endpoint, params))
	return ok
}

// SearchSongs searches songs by free text. An empty query returns an empty
// page without calling the provider.
func (c *Client) SearchSongs(ctx context.Context, query string, limit int) (*SearchResult[Song], error) {
	page, hit, err := c.search(ctx, "/search/songs", query, limit, defaultSearchLimit)
	if err != nil || page == nil {
		return emptyPage[Song](hit), err
	}
	return &SearchResult[Song]{
		Total:    flexInt(page.Total),
		Start:    flexInt(page.Start),
		Results:  TransformSongs(page.Results),
		CacheHit: hit,
	}, nil
}

// SearchAlbums searches albums by free text
func (c *Client) SearchAlbums(ctx context.Context, query string, limit int) (*SearchResult[Album], error) {
	page, hit, err := c.search(ctx, "/search/albums", query, limit, defaultSearchLimit)
	if err != nil || page == nil {
		return emptyPage[Album](hit), err
	}
	albums := make([]Album, 0, len(page.Results))
	for _, raw := range page.Results {
		if album, ok := transformAlbum(raw); ok {
			albums = append(albums, album)
		}
	}
	return &SearchResult[Album]{
		Total:    flexInt(page.Total),
		Start:    flexInt(page.Start),
		Results:  albums,
		CacheHit: hit,
	}, nil
}

// SearchPlaylists searches playlists by free text
func (c *Client) SearchPlaylists(ctx context.Context, query string, limit int) (*SearchResult[Playlist], error) {
	page, hit, err := c.search(ctx, "/search/playlists", query, limit, defaultSearchLimit)
	if err != nil || page == nil {
		return emptyPage[Playlist](hit), err
	}
	playlists := make([]Playlist, 0, len(page.Results))
	for _, raw := range page.Results {
		if playlist, ok := transformPlaylist(raw); ok {
			playlists = append(playlists, playlist)
		}
	}
	return &SearchResult[Playlist]{
		Total:    flexInt(page.Total),
		Start:    flexInt(page.Start),
		Results:  playlists,
		CacheHit: hit,
	}, nil
}

// SearchAll runs the song, album and playlist searches concurrently. A
// failed branch contributes an empty list instead of failing the whole
// search.
func (c *Client) SearchAll(ctx context.Context, query string, limit int) *AllResults {
	if limit <= 0 {
		limit = defaultSearchAllLimit
	}
	all := &AllResults{
		Songs:     []Song{},
		Albums:    []Album{},
		Playlists: []Playlist{},
		Artists:   []json.RawMessage{},
	}
	if strings.TrimSpace(query) == "" {
		return all
	}

	// Branch errors are swallowed, so the group context is never cancelled
	// by a sibling failure.
	var g errgroup.Group
	g.Go(func() error {
		if res, err := c.SearchSongs(ctx, query, limit); err == nil {
			all.Songs = res.Results
		} else {
			log.Warnf("%s Song search failed in combined search: %v", logcolors.LogSearch, err)
		}
		return nil
	})
	g.Go(func() error {
		if res, err := c.SearchAlbums(ctx, query, limit); err == nil {
			all.Albums = res.Results
		} else {
			log.Warnf("%s Album search failed in combined search: %v", logcolors.LogSearch, err)
		}
		return nil
	})
	g.Go(func() error {
		if res, err := c.SearchPlaylists(ctx, query, limit); err == nil {
			all.Playlists = res.Results
		} else {
			log.Warnf("%s Playlist search failed in combined search: %v", logcolors.LogSearch, err)
		}
		return nil
	})
	g.Wait()
	return all
}

// SongDetails fetches one or more songs by ID (comma separated IDs are
// passed through)
func (c *Client) SongDetails(ctx context.Context, id string) ([]Song, bool, error) {
	raws, hit, err := c.songObjects(ctx, id)
	if err != nil {
		return nil, hit, err
	}
	return TransformSongs(raws), hit, nil
}

// SongLyrics fetches lyrics from the dedicated lyrics endpoint
func (c *Client) SongLyrics(ctx context.Context, id string) (*Lyrics, error) {
	data, hit, err := c.get(ctx, "/songs/"+url.PathEscape(id)+"/lyrics", nil)
	if err != nil {
		return nil, err
	}
	var raw rawLyrics
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse lyrics: %w", err)
	}
	text := raw.Lyrics
	if isEmptyValue(text) && raw.Snippet != "" {
		text, _ = json.Marshal(raw.Snippet)
	}
	if isEmptyValue(text) {
		return nil, ErrNoLyrics
	}
	return &Lyrics{SongID: id, Text: text, Copyright: raw.Copyright, Source: "lyrics", CacheHit: hit}, nil
}

// DetailsLyrics reads lyrics embedded in the song details. A song flagged
// hasLyrics:false has none.
func (c *Client) DetailsLyrics(ctx context.Context, id string) (*Lyrics, error) {
	raws, hit, err := c.songObjects(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, ErrNoLyrics
	}
	var s rawSong
	if err := json.Unmarshal(raws[0], &s); err != nil {
		return nil, fmt.Errorf("failed to parse song: %w", err)
	}
	if isExplicitFalse(s.HasLyrics) {
		return nil, ErrNoLyrics
	}
	for _, text := range []json.RawMessage{s.Lyrics, s.LyricsSnippet} {
		if !isEmptyValue(text) {
			return &Lyrics{SongID: id, Text: text, Source: "details", CacheHit: hit}, nil
		}
	}
	return nil, ErrNoLyrics
}

// Lyrics tries the lyrics endpoint first and falls back to the song details
func (c *Client) Lyrics(ctx context.Context, id string) (*Lyrics, error) {
	lyrics, err := c.SongLyrics(ctx, id)
	if err == nil {
		return lyrics, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	log.Debugf("%s Lyrics endpoint failed for %s, trying song details: %v", logcolors.LogLyrics, id, err)
	return c.DetailsLyrics(ctx, id)
}

// AlbumDetails fetches an album with its tracks
func (c *Client) AlbumDetails(ctx context.Context, id string) (*Album, bool, error) {
	data, hit, err := c.get(ctx, "/albums", url.Values{"id": {id}})
	if err != nil {
		return nil, hit, err
	}
	album, ok := transformAlbum(data)
	if !ok {
		return nil, hit, &UpstreamError{Endpoint: "/albums", Err: errors.New("album payload is not an object")}
	}
	return &album, hit, nil
}

// PlaylistDetails fetches a playlist with its tracks
func (c *Client) PlaylistDetails(ctx context.Context, id string) (*Playlist, bool, error) {
	data, hit, err := c.get(ctx, "/playlists", url.Values{"id": {id}})
	if err != nil {
		return nil, hit, err
	}
	playlist, ok := transformPlaylist(data)
	if !ok {
		return nil, hit, &UpstreamError{Endpoint: "/playlists", Err: errors.New("playlist payload is not an object")}
	}
	return &playlist, hit, nil
}

// Trending fetches the home modules (trending songs, charts, albums,
// playlists) for a language
func (c *Client) Trending(ctx context.Context, language string) (*Modules, error) {
	if language == "" {
		language = DefaultLanguage
	}
	data, hit, err := c.get(ctx, "/modules", url.Values{"language": {language}})
	if err != nil {
		return nil, err
	}
	return &Modules{Language: language, Data: data, CacheHit: hit}, nil
}

func (c *Client) search(ctx context.Context, endpoint, query string, limit, defaultLimit int) (*rawSearchPage, bool, error) {
	if strings.TrimSpace(query) == "" {
		return nil, false, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(limit))

	data, hit, err := c.get(ctx, endpoint, params)
	if err != nil {
		return nil, hit, err
	}
	var page rawSearchPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, hit, &UpstreamError{Endpoint: endpoint, Err: fmt.Errorf("failed to parse results: %w", err)}
	}
	return &page, hit, nil
}

// songObjects returns the raw song objects from /songs, which answers with
// an array (or a single object on some mirrors)
func (c *Client) songObjects(ctx context.Context, id string) ([]json.RawMessage, bool, error) {
	data, hit, err := c.get(ctx, "/songs", url.Values{"id": {id}})
	if err != nil {
		return nil, hit, err
	}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		return list, hit, nil
	}
	if isObject(data) {
		return []json.RawMessage{data}, hit, nil
	}
	return nil, hit, &UpstreamError{Endpoint: "/songs", Err: errors.New("unexpected song payload")}
}

// get returns the envelope data for endpoint through the cache. The bool
// reports a cache hit.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, bool, error) {
	key := utils.CacheKey(endpoint, params)

	if cacheOnly(ctx) {
		body, ok := c.cache.Peek(key)
		if !ok {
			log.Debugf("%s Cache-only request missed %s", logcolors.LogCacheMiss, key)
			return nil, false, ErrNotCached
		}
		return decodeEnvelope(endpoint, body, true)
	}

	body, hit, err := c.cache.FetchHit(ctx, key, func(ctx context.Context) ([]byte, error) {
		return c.request(ctx, endpoint, key)
	})
	if err != nil {
		return nil, false, err
	}
	return decodeEnvelope(endpoint, body, hit)
}

func decodeEnvelope(endpoint string, body []byte, hit bool) (json.RawMessage, bool, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, hit, &UpstreamError{Endpoint: endpoint, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return env.Data, hit, nil
}

// request performs the HTTP call. Non-2xx answers and success:false
// envelopes are errors so they never reach the cache.
func (c *Client) request(ctx context.Context, endpoint, key string) ([]byte, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		log.Warnf("%s Circuit open, skipping %s", logcolors.LogUpstream, key)
		return nil, &UpstreamError{Endpoint: endpoint, Err: circuitbreaker.ErrCircuitOpen}
	}

	start := time.Now()
	body, status, err := c.do(ctx, key)
	if c.stats != nil {
		c.stats.RecordUpstreamTime(time.Since(start))
	}

	// Only transport errors and 5xx count against the breaker
	if c.breaker != nil {
		if err != nil || status >= 500 {
			if !errors.Is(err, context.Canceled) {
				c.breaker.RecordFailure()
			}
		} else {
			c.breaker.RecordSuccess()
		}
	}

	if err != nil {
		log.Warnf("%s %s failed: %v", logcolors.LogUpstream, key, err)
		return nil, &UpstreamError{Endpoint: endpoint, Err: err}
	}
	if status < 200 || status > 299 {
		log.Warnf("%s %s returned HTTP %d", logcolors.LogUpstream, key, status)
		return nil, &UpstreamError{Endpoint: endpoint, StatusCode: status, Err: errors.New(http.StatusText(status))}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &UpstreamError{Endpoint: endpoint, StatusCode: status, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if !env.ok() {
		log.Infof("%s %s answered success:false %s", logcolors.LogUpstream, key, env.Message)
		return nil, &UpstreamError{Endpoint: endpoint, StatusCode: status, Err: ErrUnsuccessful}
	}

	log.Debugf("%s %s (%d bytes)", logcolors.LogHTTP, key, len(body))
	return body, nil
}

func (c *Client) do(ctx context.Context, key string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+key, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func emptyPage[T any](hit bool) *SearchResult[T] {
	return &SearchResult[T]{Results: []T{}, CacheHit: hit}
}

func isExplicitFalse(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "false" || s == `"false"`
}
