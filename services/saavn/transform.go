package saavn

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

const (
	unknownArtist  = "Unknown Artist"
	variousArtists = "Various Artists"
	unknownSong    = "Unknown Song"
	unknownAlbum   = "Unknown Album"
)

// TransformSong converts a provider song object into a Song. It returns
// false when raw is not an object.
func TransformSong(raw json.RawMessage) (Song, bool) {
	var s rawSong
	if !isObject(raw) || json.Unmarshal(raw, &s) != nil {
		return Song{}, false
	}

	artists := s.Artists
	if isEmptyValue(artists) {
		artists = s.PrimaryArtists
	}
	image := HighQualityImage(s.Image)
	urls := audioURLs(s)

	song := Song{
		ID:         s.ID,
		Title:      firstNonEmpty(s.Name, s.Title, unknownSong),
		Artist:     ExtractArtistNames(artists),
		Image:      image,
		AlbumImage: image,
		Album:      albumName(s.Album),
		Duration:   flexInt(s.Duration),
		Year:       flexString(s.Year),
		Language:   s.Language,
		PlayURL:    firstNonEmpty(urls.High, urls.Medium, urls.Low),
		AudioURLs:  urls,
		HasLyrics:  flexBool(s.HasLyrics),
	}
	song.HasAudio = song.PlayURL != ""
	switch {
	case urls.High != "":
		song.Quality = "high"
	case urls.Medium != "":
		song.Quality = "medium"
	default:
		song.Quality = "low"
	}
	return song, true
}

// TransformSongs converts every object in raws and skips the rest
func TransformSongs(raws []json.RawMessage) []Song {
	songs := make([]Song, 0, len(raws))
	for _, raw := range raws {
		if song, ok := TransformSong(raw); ok {
			songs = append(songs, song)
		}
	}
	return songs
}

func transformAlbum(raw json.RawMessage) (Album, bool) {
	var c rawCollection
	if !isObject(raw) || json.Unmarshal(raw, &c) != nil {
		return Album{}, false
	}
	artists := c.Artists
	if isEmptyValue(artists) {
		artists = c.PrimaryArtists
	}
	album := Album{
		ID:        c.ID,
		Title:     firstNonEmpty(c.Name, c.Title, unknownAlbum),
		Artist:    ExtractArtistNames(artists),
		Image:     HighQualityImage(c.Image),
		Year:      flexString(c.Year),
		SongCount: flexInt(c.SongCount),
	}
	if len(c.Songs) > 0 {
		album.Songs = TransformSongs(c.Songs)
		if album.SongCount == 0 {
			album.SongCount = len(album.Songs)
		}
	}
	return album, true
}

func transformPlaylist(raw json.RawMessage) (Playlist, bool) {
	var c rawCollection
	if !isObject(raw) || json.Unmarshal(raw, &c) != nil {
		return Playlist{}, false
	}
	playlist := Playlist{
		ID:        c.ID,
		Title:     firstNonEmpty(c.Name, c.Title),
		Image:     HighQualityImage(c.Image),
		SongCount: flexInt(c.SongCount),
	}
	if len(c.Songs) > 0 {
		playlist.Songs = TransformSongs(c.Songs)
		if playlist.SongCount == 0 {
			playlist.SongCount = len(playlist.Songs)
		}
	}
	return playlist, true
}

// audioURLs picks stream URLs by quality. Without any download URL the
// encrypted media URL becomes the low tier.
func audioURLs(s rawSong) AudioURLs {
	var urls AudioURLs
	for _, d := range s.DownloadURL {
		link := firstNonEmpty(d.URL, d.Link)
		switch d.Quality {
		case "96kbps", "low":
			urls.Low = link
		case "160kbps", "medium":
			urls.Medium = link
		case "320kbps", "high":
			urls.High = link
		}
	}
	if urls.Low == "" && urls.Medium == "" && urls.High == "" {
		urls.Low = firstNonEmpty(s.MoreInfo.EncryptedMediaURL, s.EncryptedMediaURL)
	}
	return urls
}

type namedItem struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// ExtractArtistNames turns the provider's artist field into a display
// string. It accepts a plain string, an array of names or objects, and the
// {primary, featured, all} grouping.
func ExtractArtistNames(raw json.RawMessage) string {
	if isEmptyValue(raw) {
		return unknownArtist
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}

	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil {
		var names []string
		for _, item := range list {
			name := itemName(item, unknownArtist)
			if name != "" && name != unknownArtist {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			return variousArtists
		}
		return strings.Join(names, ", ")
	}

	var grouped struct {
		Primary  []json.RawMessage `json:"primary"`
		Featured []json.RawMessage `json:"featured"`
		All      []json.RawMessage `json:"all"`
		namedItem
	}
	if json.Unmarshal(raw, &grouped) != nil {
		return variousArtists
	}
	for _, group := range [][]json.RawMessage{grouped.Primary, grouped.Featured, grouped.All} {
		var names []string
		for _, item := range group {
			if name := itemName(item, ""); name != "" {
				names = append(names, name)
			}
		}
		if len(names) > 0 {
			return strings.Join(names, ", ")
		}
	}
	return firstNonEmpty(grouped.Name, grouped.Title, variousArtists)
}

// itemName reads a string or the name/title of an object
func itemName(raw json.RawMessage, fallback string) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n namedItem
	if json.Unmarshal(raw, &n) == nil {
		return firstNonEmpty(n.Name, n.Title, fallback)
	}
	return fallback
}

// HighQualityImage returns the 500x500 variant of the provider artwork. It
// accepts a URL string, an array of {quality, url|link} objects (the last
// one is the largest) or a single {link} object.
func HighQualityImage(raw json.RawMessage) string {
	if isEmptyValue(raw) {
		return DefaultImage
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return upscale(s)
	}

	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil {
		if len(list) == 0 {
			return DefaultImage
		}
		last := list[len(list)-1]
		if json.Unmarshal(last, &s) == nil {
			return upscale(s)
		}
		var obj struct {
			Link string `json:"link"`
			URL  string `json:"url"`
		}
		if json.Unmarshal(last, &obj) == nil {
			if link := firstNonEmpty(obj.Link, obj.URL); link != "" {
				return upscale(link)
			}
		}
		return DefaultImage
	}

	var obj struct {
		Link string `json:"link"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.Link != "" {
		return upscale(obj.Link)
	}
	return DefaultImage
}

func upscale(url string) string {
	if url == "" {
		return DefaultImage
	}
	url = strings.Replace(url, "150x150", "500x500", 1)
	return strings.Replace(url, "50x50", "500x500", 1)
}

func albumName(raw json.RawMessage) string {
	if isEmptyValue(raw) {
		return unknownAlbum
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return firstNonEmpty(s, unknownAlbum)
	}
	var n namedItem
	if json.Unmarshal(raw, &n) == nil {
		return firstNonEmpty(n.Name, unknownAlbum)
	}
	return unknownAlbum
}

// flexString reads a JSON string or number as a string
func flexString(raw json.RawMessage) string {
	if isEmptyValue(raw) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

// flexInt reads a JSON number or numeric string, 0 otherwise
func flexInt(raw json.RawMessage) int {
	s := flexString(raw)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

// flexBool reads a JSON bool or the strings "true"/"false"
func flexBool(raw json.RawMessage) bool {
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return b
	}
	s, err := strconv.ParseBool(flexString(raw))
	return err == nil && s
}

// isEmptyValue reports JSON values that count as missing: absent, null,
// false, 0 and the empty string
func isEmptyValue(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", `""`, "false", "0":
		return true
	}
	return false
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
