package lyrics

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	// LRC timestamp: [mm:ss], [mm:ss.x], [mm:ss.xx], [mm:ss.xxx] or with ':'
	lrcTimeRegex = regexp.MustCompile(`^\[(\d{1,3}):(\d{2})(?:[\.:](\d{1,3}))?\]`)

	// Metadata tags: [ar:Artist], [offset:+250]
	metadataRegex = regexp.MustCompile(`^\[([a-zA-Z]+):([^\]]*)\]$`)

	// Line breaks used by the provider inside plain lyrics
	breakRegex = regexp.MustCompile(`(?i)\r\n|\r|\n|<br\s*/?>`)
)

// ParseLRC parses LRC lyrics. A line with several leading timestamps
// yields one Line per timestamp. Metadata tags are skipped, except
// [offset:ms] which shifts every timestamp earlier by ms.
func ParseLRC(text string) ([]Line, error) {
	var lines []Line
	var offset int64

	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		if m := metadataRegex.FindStringSubmatch(raw); m != nil {
			if strings.EqualFold(m[1], "offset") {
				if v, err := strconv.ParseInt(strings.TrimSpace(m[2]), 10, 64); err == nil {
					offset = v
				}
			}
			continue
		}

		var stamps []int64
		rest := raw
		for {
			m := lrcTimeRegex.FindStringSubmatch(rest)
			if m == nil {
				break
			}
			stamps = append(stamps, lrcMillis(m[1], m[2], m[3]))
			rest = rest[len(m[0]):]
		}
		if len(stamps) == 0 {
			continue
		}

		// A timestamp with no text is an instrumental gap; keep it as an
		// empty line so the previous line stops being active.
		body := strings.TrimSpace(rest)
		for _, ts := range stamps {
			lines = append(lines, Line{TimestampMs: ts, Text: body})
		}
	}

	if len(lines) == 0 {
		return nil, &MalformedLyricsError{Reason: "no timed lines"}
	}

	for i := range lines {
		lines[i].TimestampMs -= offset
		if lines[i].TimestampMs < 0 {
			lines[i].TimestampMs = 0
		}
	}
	return lines, nil
}

func lrcMillis(min, sec, frac string) int64 {
	minutes, _ := strconv.ParseInt(min, 10, 64)
	seconds, _ := strconv.ParseInt(sec, 10, 64)
	var millis int64
	if frac != "" {
		millis, _ = strconv.ParseInt(frac, 10, 64)
		switch len(frac) {
		case 1:
			millis *= 100
		case 2:
			millis *= 10
		}
	}
	return minutes*60*1000 + seconds*1000 + millis
}

// HasTimestamps reports whether text contains at least one LRC timestamp at
// the start of a line
func HasTimestamps(text string) bool {
	for _, raw := range strings.Split(text, "\n") {
		if lrcTimeRegex.MatchString(strings.TrimSpace(raw)) {
			return true
		}
	}
	return false
}

// ParsePlain spaces untimed lines PlainLineSpacingMs apart. Blank lines are
// dropped and the provider's <br> tags count as line breaks.
func ParsePlain(text string) []Line {
	var lines []Line
	for _, raw := range breakRegex.Split(text, -1) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		lines = append(lines, Line{
			TimestampMs: int64(len(lines)) * PlainLineSpacingMs,
			Text:        raw,
		})
	}
	return lines
}

// ParseText parses LRC when text carries timestamps and plain lines
// otherwise
func ParseText(text string) ([]Line, error) {
	if HasTimestamps(text) {
		return ParseLRC(text)
	}
	lines := ParsePlain(text)
	if len(lines) == 0 {
		return nil, &MalformedLyricsError{Reason: "empty text"}
	}
	return lines, nil
}

// ParsePayload reads lyrics as the provider sends them: a JSON string (LRC
// or plain text) or an array of strings or {text} objects.
func ParsePayload(raw json.RawMessage) ([]Line, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &MalformedLyricsError{Reason: "empty payload"}
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return ParseText(text)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, &MalformedLyricsError{Reason: "expected a string or an array of lines"}
	}

	var lines []Line
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) != nil {
			var obj struct {
				Text *string `json:"text"`
			}
			if json.Unmarshal(item, &obj) != nil || obj.Text == nil {
				return nil, &MalformedLyricsError{Reason: "array element is neither a string nor a {text} object"}
			}
			s = *obj.Text
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		lines = append(lines, Line{
			TimestampMs: int64(len(lines)) * PlainLineSpacingMs,
			Text:        s,
		})
	}
	if len(lines) == 0 {
		return nil, &MalformedLyricsError{Reason: "no lines"}
	}
	return lines, nil
}
