package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"jine-api-go/config"
)

const testAdminKey = "admin-key"

// fakeSaavn serves canned provider responses and counts upstream calls
type fakeSaavn struct {
	calls  atomic.Int32
	failed atomic.Bool
}

func (f *fakeSaavn) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	w.Header().Set("Content-Type", "application/json")
	if f.failed.Load() {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false}`))
		return
	}

	switch {
	case r.URL.Path == "/search/songs":
		w.Write([]byte(`{"success":true,"data":{"total":2,"start":1,"results":[
			{"id":"1","name":"Tum Hi Ho","artists":{"primary":[{"name":"Arijit Singh"}]}},
			{"id":"2","name":"Kesariya","artists":{"primary":[{"name":"Arijit Singh"}]}}]}}`))
	case r.URL.Path == "/songs/1/lyrics":
		w.Write([]byte(`{"success":true,"data":{"lyrics":"[00:01.00]one\n[00:03.00]two\n[00:05.00]three"}}`))
	case r.URL.Path == "/songs" && r.URL.Query().Get("id") == "1":
		w.Write([]byte(`{"success":true,"data":[{"id":"1","name":"Tum Hi Ho","primaryArtists":"Arijit Singh","hasLyrics":true}]}`))
	case r.URL.Path == "/modules":
		w.Write([]byte(`{"success":true,"data":{"trending":{"songs":[]}}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"message":"not found"}`))
	}
}

// testConfig returns a config pointing at upstream with bbolt files under
// a temp dir and generous rate limits
func testConfig(t *testing.T, upstreamURL string) config.Config {
	t.Helper()
	tmpDir := t.TempDir()

	var conf config.Config
	conf.Configuration.Port = "0"
	conf.Configuration.SaavnBaseURL = upstreamURL
	conf.Configuration.SaavnTimeoutSecs = 5
	conf.Configuration.ResponseCacheTTLMs = 600000
	conf.Configuration.RateLimitPerSecond = 1000
	conf.Configuration.RateLimitBurstLimit = 1000
	conf.Configuration.CachedRateLimitPerSecond = 1000
	conf.Configuration.CachedRateLimitBurstLimit = 1000
	conf.Configuration.APIKey = testAdminKey
	conf.Configuration.LikesDBPath = filepath.Join(tmpDir, "likes.db")
	conf.Configuration.LikesBackupPath = filepath.Join(tmpDir, "backups")
	conf.Configuration.CircuitBreakerThreshold = 3
	conf.Configuration.CircuitBreakerCooldownSecs = 60
	conf.Configuration.AllowedOrigins = []string{"http://localhost:3000"}
	conf.FeatureFlags.SingleFlight = true
	return conf
}

// setupTestServer wires all services against a fake provider
func setupTestServer(t *testing.T, tweak func(*config.Config)) (http.Handler, *server, *fakeSaavn) {
	t.Helper()

	fake := &fakeSaavn{}
	upstream := httptest.NewServer(fake)
	t.Cleanup(upstream.Close)

	conf := testConfig(t, upstream.URL)
	if tweak != nil {
		tweak(&conf)
	}

	srv, err := setupServices(conf)
	if err != nil {
		t.Fatalf("Failed to set up services: %v", err)
	}
	t.Cleanup(srv.close)
	return srv.handler(), srv, fake
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:40000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func readEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) Envelope {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to decode envelope %q: %v", rec.Body.String(), err)
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("Failed to decode data %s: %v", env.Data, err)
		}
	}
	return Envelope{Success: env.Success, Message: env.Message}
}

func TestSearchSongs_CacheStatus(t *testing.T) {
	h, _, fake := setupTestServer(t, nil)

	for i, want := range []string{"MISS", "HIT"} {
		rec := doRequest(t, h, "GET", "/search/songs?query=arijit", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d: %s", i, rec.Code, rec.Body.String())
		}
		if got := rec.Header().Get("X-Cache-Status"); got != want {
			t.Errorf("Request %d: X-Cache-Status = %q, want %q", i, got, want)
		}

		var page struct {
			Results []struct {
				Title  string `json:"title"`
				Artist string `json:"artist"`
			} `json:"results"`
		}
		env := readEnvelope(t, rec, &page)
		if !env.Success || len(page.Results) != 2 {
			t.Fatalf("Request %d: unexpected body %s", i, rec.Body.String())
		}
		if page.Results[0].Artist != "Arijit Singh" {
			t.Errorf("Expected artist Arijit Singh, got %q", page.Results[0].Artist)
		}
	}

	if fake.calls.Load() != 1 {
		t.Errorf("Expected 1 upstream call, got %d", fake.calls.Load())
	}
}

func TestSearchSongs_UpstreamFailure(t *testing.T) {
	h, _, fake := setupTestServer(t, nil)
	fake.failed.Store(true)

	rec := doRequest(t, h, "GET", "/search/songs?query=arijit", nil, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", rec.Code)
	}

	var page struct {
		Results []interface{} `json:"results"`
	}
	env := readEnvelope(t, rec, &page)
	if env.Success {
		t.Error("Expected success:false")
	}
	if env.Message == "" {
		t.Error("Expected an error message")
	}
	if page.Results == nil || len(page.Results) != 0 {
		t.Errorf("Expected empty results, got %v", page.Results)
	}

	// The failure was not cached
	fake.failed.Store(false)
	rec = doRequest(t, h, "GET", "/search/songs?query=arijit", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected recovery after upstream heals, got %d", rec.Code)
	}
}

func TestSearchSongs_EmptyQuery(t *testing.T) {
	h, _, fake := setupTestServer(t, nil)

	rec := doRequest(t, h, "GET", "/search/songs?query=%20", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if fake.calls.Load() != 0 {
		t.Errorf("Expected no upstream call for an empty query, got %d", fake.calls.Load())
	}
}

func TestSongLyrics(t *testing.T) {
	h, _, _ := setupTestServer(t, nil)

	rec := doRequest(t, h, "GET", "/songs/1/lyrics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var data LyricsResponse
	readEnvelope(t, rec, &data)
	if !data.Synced {
		t.Error("Expected LRC lyrics to be reported as synced")
	}
	if len(data.Lines) != 3 || data.Lines[1].TimestampMs != 3000 {
		t.Errorf("Unexpected parsed lines: %+v", data.Lines)
	}
}

func TestSessionFlow(t *testing.T) {
	h, _, _ := setupTestServer(t, nil)

	rec := doRequest(t, h, "POST", "/sessions", nil, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}
	var created SessionCreatedResponse
	readEnvelope(t, rec, &created)
	if created.SessionID == "" {
		t.Fatal("Expected a session ID")
	}
	base := "/sessions/" + created.SessionID

	rec = doRequest(t, h, "POST", base+"/song", ChangeSongRequest{SongID: "1"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Song change: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var loaded struct {
		Applied   bool `json:"applied"`
		HasLyrics bool `json:"hasLyrics"`
		Lines     int  `json:"lines"`
	}
	readEnvelope(t, rec, &loaded)
	if !loaded.Applied || !loaded.HasLyrics || loaded.Lines != 3 {
		t.Fatalf("Unexpected load result: %s", rec.Body.String())
	}

	steps := []struct {
		positionMs int64
		status     int
		active     int
	}{
		{0, http.StatusNoContent, -1},
		{1500, http.StatusOK, 0},
		{1600, http.StatusNoContent, 0},
		{5200, http.StatusOK, 2},
		{-50, http.StatusOK, -1},
	}
	for _, step := range steps {
		pos := step.positionMs
		rec = doRequest(t, h, "POST", base+"/position", map[string]int64{"positionMs": pos}, nil)
		if rec.Code != step.status {
			t.Fatalf("Position %d: expected %d, got %d", pos, step.status, rec.Code)
		}
		if rec.Code == http.StatusOK {
			var tr struct {
				ActiveIndex int `json:"activeIndex"`
			}
			readEnvelope(t, rec, &tr)
			if tr.ActiveIndex != step.active {
				t.Errorf("Position %d: expected active %d, got %d", pos, step.active, tr.ActiveIndex)
			}
		}
	}

	rec = doRequest(t, h, "GET", base, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("State: expected 200, got %d", rec.Code)
	}
	var state struct {
		SongID string `json:"songId"`
	}
	readEnvelope(t, rec, &state)
	if state.SongID != "1" {
		t.Errorf("Expected song 1, got %q", state.SongID)
	}

	if rec = doRequest(t, h, "DELETE", base, nil, nil); rec.Code != http.StatusNoContent {
		t.Errorf("Delete: expected 204, got %d", rec.Code)
	}
	if rec = doRequest(t, h, "GET", base, nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("After delete: expected 404, got %d", rec.Code)
	}
}

func TestSessionLyricsUpload(t *testing.T) {
	h, srv, _ := setupTestServer(t, nil)
	sess := srv.lyrics.Sessions().Create()

	body := map[string]interface{}{"lyrics": []string{"first", "second"}}
	rec := doRequest(t, h, "POST", "/sessions/"+sess.ID+"/lyrics", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !sess.Sync.HasLyrics() || len(sess.Sync.Lines()) != 2 {
		t.Errorf("Expected 2 lines loaded, got %d", len(sess.Sync.Lines()))
	}
}

func TestSessionValidation(t *testing.T) {
	h, srv, _ := setupTestServer(t, nil)
	sess := srv.lyrics.Sessions().Create()

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{"missing position", "/sessions/" + sess.ID + "/position", map[string]string{}, http.StatusBadRequest},
		{"missing song", "/sessions/" + sess.ID + "/song", map[string]string{"songId": " "}, http.StatusBadRequest},
		{"unknown session position", "/sessions/nope/position", map[string]int{"positionMs": 10}, http.StatusNotFound},
		{"unknown session song", "/sessions/nope/song", map[string]string{"songId": "1"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, "POST", tt.path, tt.body, nil)
			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}

	req := httptest.NewRequest("POST", "/sessions/"+sess.ID+"/position", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Invalid JSON: expected 400, got %d", rec.Code)
	}
}

func TestLikesFlow(t *testing.T) {
	h, _, _ := setupTestServer(t, nil)

	song := map[string]string{"title": "Tum Hi Ho", "artist": "Arijit Singh"}
	if rec := doRequest(t, h, "POST", "/likes/songs", song, nil); rec.Code != http.StatusCreated {
		t.Fatalf("Like: expected 201, got %d", rec.Code)
	}

	dup := map[string]string{"title": "tum hi ho", "artist": "ARIJIT SINGH"}
	rec := doRequest(t, h, "POST", "/likes/songs", dup, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Duplicate like: expected 200, got %d", rec.Code)
	}
	var like LikeResponse
	readEnvelope(t, rec, &like)
	if like.Added {
		t.Error("Expected duplicate like to report added=false")
	}

	if rec := doRequest(t, h, "POST", "/likes/songs", map[string]string{"title": "No Artist"}, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Invalid like: expected 400, got %d", rec.Code)
	}

	rec = doRequest(t, h, "GET", "/likes/songs/check?title=Tum+Hi+Ho&artist=Arijit+Singh", nil, nil)
	var check LikedCheckResponse
	readEnvelope(t, rec, &check)
	if !check.Liked {
		t.Error("Expected song to be liked")
	}

	doRequest(t, h, "POST", "/likes/playlists", map[string]string{"title": "Road Trip"}, nil)
	doRequest(t, h, "POST", "/likes/albums", map[string]string{"title": "Aashiqui 2"}, nil)

	rec = doRequest(t, h, "GET", "/likes/stats", nil, nil)
	var st struct {
		LikedSongs     int `json:"likedSongs"`
		LikedPlaylists int `json:"likedPlaylists"`
		LikedAlbums    int `json:"likedAlbums"`
	}
	readEnvelope(t, rec, &st)
	if st.LikedSongs != 1 || st.LikedPlaylists != 1 || st.LikedAlbums != 1 {
		t.Errorf("Unexpected likes stats: %+v", st)
	}

	if rec := doRequest(t, h, "DELETE", "/likes/songs?title=Tum+Hi+Ho&artist=Arijit+Singh", nil, nil); rec.Code != http.StatusNoContent {
		t.Errorf("Unlike: expected 204, got %d", rec.Code)
	}
	if rec := doRequest(t, h, "DELETE", "/likes/songs?title=Tum+Hi+Ho&artist=Arijit+Singh", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Second unlike: expected 404, got %d", rec.Code)
	}
}

func TestAdminRequiresAPIKey(t *testing.T) {
	h, srv, _ := setupTestServer(t, nil)
	doRequest(t, h, "GET", "/modules?language=hindi", nil, nil)

	paths := []struct {
		method string
		path   string
	}{
		{"GET", "/cache"},
		{"GET", "/cache/stats"},
		{"GET", "/circuit-breaker"},
		{"GET", "/events"},
		{"POST", "/likes/backup"},
	}
	for _, p := range paths {
		if rec := doRequest(t, h, p.method, p.path, nil, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without key: expected 401, got %d", p.method, p.path, rec.Code)
		}
		if rec := doRequest(t, h, p.method, p.path, nil, map[string]string{"X-API-Key": testAdminKey}); rec.Code != http.StatusOK {
			t.Errorf("%s %s with key: expected 200, got %d", p.method, p.path, rec.Code)
		}
	}

	if srv.cache.Stats().Size != 1 {
		t.Fatalf("Expected 1 cached response, got %d", srv.cache.Stats().Size)
	}
	rec := doRequest(t, h, "POST", "/cache/invalidate", nil, map[string]string{"X-API-Key": testAdminKey})
	if rec.Code != http.StatusOK {
		t.Fatalf("Invalidate: expected 200, got %d", rec.Code)
	}
	if srv.cache.Stats().Size != 0 {
		t.Errorf("Expected cache to be empty after invalidate, got %d", srv.cache.Stats().Size)
	}
}

func TestCachedTierServesOnlyFromCache(t *testing.T) {
	h, _, fake := setupTestServer(t, func(c *config.Config) {
		c.Configuration.RateLimitPerSecond = 0
		c.Configuration.RateLimitBurstLimit = 1
		c.Configuration.CachedRateLimitPerSecond = 0
		c.Configuration.CachedRateLimitBurstLimit = 5
	})

	rec := doRequest(t, h, "GET", "/modules?language=hindi", nil, nil)
	if rec.Code != http.StatusOK || rec.Header().Get("X-RateLimit-Type") != "normal" {
		t.Fatalf("First request: got %d on tier %q", rec.Code, rec.Header().Get("X-RateLimit-Type"))
	}

	rec = doRequest(t, h, "GET", "/modules?language=hindi", nil, nil)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Cache-Status") != "HIT" {
		t.Errorf("Cached tier with cached data: got %d, cache %q", rec.Code, rec.Header().Get("X-Cache-Status"))
	}

	rec = doRequest(t, h, "GET", "/modules?language=tamil", nil, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Cached tier without cached data: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}

	if fake.calls.Load() != 1 {
		t.Errorf("Expected 1 upstream call, got %d", fake.calls.Load())
	}
}

func TestHealthAndStats(t *testing.T) {
	h, _, _ := setupTestServer(t, nil)

	rec := doRequest(t, h, "GET", "/health", nil, nil)
	var health map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &health)
	if health["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", health["status"])
	}

	doRequest(t, h, "GET", "/search/songs?query=arijit", nil, nil)
	rec = doRequest(t, h, "GET", "/stats", nil, nil)
	var snapshot map[string]map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &snapshot)
	if snapshot["requests"]["metadata"] != float64(1) {
		t.Errorf("Expected 1 metadata request, got %v", snapshot["requests"]["metadata"])
	}
}

func TestRequestGroup(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/search", "metadata"},
		{"/search/songs", "metadata"},
		{"/songs/123", "metadata"},
		{"/songs/123/lyrics", "lyrics"},
		{"/albums/9", "metadata"},
		{"/modules", "metadata"},
		{"/sessions/abc/position", "session"},
		{"/likes/songs", "likes"},
		{"/likes/backup", "admin"},
		{"/cache/invalidate", "admin"},
		{"/circuit-breaker", "admin"},
		{"/health", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if got := requestGroup(req); got != tt.expected {
				t.Errorf("requestGroup(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}
