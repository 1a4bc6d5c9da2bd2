package saavn

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// DefaultBaseURL is the public JioSaavn API mirror
	DefaultBaseURL = "https://saavn.dev/api"

	// DefaultImage is shown when an item has no artwork
	DefaultImage = "src/images/user_img.jpeg"

	// DefaultLanguage is used for trending modules when none is given
	DefaultLanguage = "hindi"

	defaultSearchLimit    = 20
	defaultSearchAllLimit = 10
)

var (
	// ErrUnsuccessful is returned when the provider answers success:false
	ErrUnsuccessful = errors.New("provider reported an unsuccessful response")

	// ErrNoLyrics is returned when neither the lyrics endpoint nor the song
	// details carry lyrics
	ErrNoLyrics = errors.New("no lyrics available")

	// ErrNotCached is returned for cache-only calls whose response is not
	// cached
	ErrNotCached = errors.New("response not cached")
)

// UpstreamError describes a failed call to the provider
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("saavn %s: HTTP %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("saavn %s: %v", e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// envelope is the provider's response wrapper. A missing success field
// counts as success.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) ok() bool {
	return e.Success == nil || *e.Success
}

// AudioURLs holds stream URLs by quality tier
type AudioURLs struct {
	Low    string `json:"low"`
	Medium string `json:"medium"`
	High   string `json:"high"`
}

// Song is a track in the shape the front end consumes
type Song struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Image      string    `json:"image"`
	AlbumImage string    `json:"albumImage"`
	Album      string    `json:"album"`
	Duration   int       `json:"duration"`
	Year       string    `json:"year"`
	Language   string    `json:"language,omitempty"`
	PlayURL    string    `json:"playUrl"`
	AudioURLs  AudioURLs `json:"audioUrls"`
	Quality    string    `json:"quality"`
	HasAudio   bool      `json:"hasAudio"`
	HasLyrics  bool      `json:"hasLyrics"`
}

// Album is an album summary, with its tracks when fetched by ID
type Album struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Image     string `json:"image"`
	Year      string `json:"year"`
	SongCount int    `json:"songCount"`
	Songs     []Song `json:"songs,omitempty"`
}

// Playlist is a playlist summary, with its tracks when fetched by ID
type Playlist struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Image     string `json:"image"`
	SongCount int    `json:"songCount"`
	Songs     []Song `json:"songs,omitempty"`
}

// SearchResult is one page of search results. CacheHit reports whether the
// page came from the response cache.
type SearchResult[T any] struct {
	Total    int  `json:"total"`
	Start    int  `json:"start"`
	Results  []T  `json:"results"`
	CacheHit bool `json:"-"`
}

// AllResults is the combined search across songs, albums and playlists.
// Artists is always empty; the provider has no artist search we use.
type AllResults struct {
	Songs     []Song            `json:"songs"`
	Albums    []Album           `json:"albums"`
	Playlists []Playlist        `json:"playlists"`
	Artists   []json.RawMessage `json:"artists"`
}

// Modules is the raw trending payload for a language
type Modules struct {
	Language string          `json:"language"`
	Data     json.RawMessage `json:"data"`
	CacheHit bool            `json:"-"`
}

// Lyrics is the raw lyrics payload for a song. Text is either a JSON
// string or an array of lines, exactly as the provider sent it.
type Lyrics struct {
	SongID    string          `json:"songId"`
	Text      json.RawMessage `json:"lyrics"`
	Copyright string          `json:"copyright,omitempty"`
	Source    string          `json:"source"`
	CacheHit  bool            `json:"-"`
}

// raw provider shapes. Fields whose type differs between API versions are
// kept as json.RawMessage and read with the flex helpers.
type rawSearchPage struct {
	Total   json.RawMessage   `json:"total"`
	Start   json.RawMessage   `json:"start"`
	Results []json.RawMessage `json:"results"`
}

type rawDownloadURL struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
	Link    string `json:"link"`
}

type rawSong struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Title             string           `json:"title"`
	Artists           json.RawMessage  `json:"artists"`
	PrimaryArtists    json.RawMessage  `json:"primaryArtists"`
	Image             json.RawMessage  `json:"image"`
	Album             json.RawMessage  `json:"album"`
	Duration          json.RawMessage  `json:"duration"`
	Year              json.RawMessage  `json:"year"`
	Language          string           `json:"language"`
	HasLyrics         json.RawMessage  `json:"hasLyrics"`
	Lyrics            json.RawMessage  `json:"lyrics"`
	LyricsSnippet     json.RawMessage  `json:"lyricsSnippet"`
	DownloadURL       []rawDownloadURL `json:"downloadUrl"`
	EncryptedMediaURL string           `json:"encrypted_media_url"`
	MoreInfo          struct {
		EncryptedMediaURL string `json:"encrypted_media_url"`
	} `json:"more_info"`
}

type rawCollection struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Title          string            `json:"title"`
	Artists        json.RawMessage   `json:"artists"`
	PrimaryArtists json.RawMessage   `json:"primaryArtists"`
	Image          json.RawMessage   `json:"image"`
	Year           json.RawMessage   `json:"year"`
	SongCount      json.RawMessage   `json:"songCount"`
	Songs          []json.RawMessage `json:"songs"`
}

type rawLyrics struct {
	Lyrics    json.RawMessage `json:"lyrics"`
	Snippet   string          `json:"snippet"`
	Copyright string          `json:"copyright"`
}
