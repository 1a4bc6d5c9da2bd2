package lyrics

import "errors"

// NoLine is the active index before the first timestamp or when no lyrics
// are loaded
const NoLine = -1

// PlainLineSpacingMs is the spacing given to untimed lyric lines
const PlainLineSpacingMs = 3000

// ErrSessionNotFound is returned for unknown session IDs
var ErrSessionNotFound = errors.New("session not found")

// Line is one lyric line. Index is its position in the loaded, sorted
// sequence.
type Line struct {
	Index       int    `json:"index"`
	TimestampMs int64  `json:"timestampMs"`
	Text        string `json:"text"`
}

// LineTransition is what a display needs after the active line changed.
// Active is nil when the position is before the first line.
type LineTransition struct {
	ActiveIndex int   `json:"activeIndex"`
	Active      *Line `json:"active,omitempty"`
	Past        []int `json:"past"`
	Upcoming    []int `json:"upcoming"`
}

// MalformedLyricsError reports input that could not be read as lyric lines.
// Callers treat it as "no lyrics".
type MalformedLyricsError struct {
	Reason string
}

func (e *MalformedLyricsError) Error() string {
	return "malformed lyrics: " + e.Reason
}
