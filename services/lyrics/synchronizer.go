package lyrics

import (
	"sort"
	"sync"
)

// maxForwardScan bounds the linear walk taken on forward moves before
// falling back to binary search
const maxForwardScan = 8

// Synchronizer tracks which lyric line is active for a playback position.
// It is safe for concurrent use.
type Synchronizer struct {
	mu      sync.Mutex
	lines   []Line
	active  int
	lastPos int64
	songID  string
}

// NewSynchronizer returns a Synchronizer with no lyrics loaded
func NewSynchronizer() *Synchronizer {
	return &Synchronizer{active: NoLine}
}

// Load replaces the lyric sequence and resets the active line. Lines are
// sorted by timestamp with the given order breaking ties, then renumbered.
// An empty sequence puts the synchronizer in the no-lyrics state.
func (s *Synchronizer) Load(lines []Line) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(lines)
}

// ChangeSong records the song now playing and drops the lyrics of the
// previous one
func (s *Synchronizer) ChangeSong(songID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.songID = songID
	s.loadLocked(nil)
}

// LoadFor loads lines only if songID is still the current song. It returns
// false when the song changed since the lines were requested.
func (s *Synchronizer) LoadFor(songID string, lines []Line) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if songID != s.songID {
		return false
	}
	s.loadLocked(lines)
	return true
}

func (s *Synchronizer) loadLocked(lines []Line) {
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimestampMs < sorted[j].TimestampMs
	})
	for i := range sorted {
		sorted[i].Index = i
		if sorted[i].TimestampMs < 0 {
			sorted[i].TimestampMs = 0
		}
	}
	s.lines = sorted
	s.active = NoLine
	s.lastPos = 0
}

// OnTimeUpdate moves the active line to match positionMs. It returns the
// transition and true when the active line changed, false otherwise.
// Negative positions count as 0.
func (s *Synchronizer) OnTimeUpdate(positionMs int64) (LineTransition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.lines) == 0 {
		return LineTransition{}, false
	}
	if positionMs < 0 {
		positionMs = 0
	}

	var candidate int
	if positionMs >= s.lastPos {
		candidate = s.scanForward(positionMs)
	} else {
		candidate = s.search(positionMs)
	}
	s.lastPos = positionMs

	if candidate == s.active {
		return LineTransition{}, false
	}
	s.active = candidate
	return s.transitionLocked(), true
}

// scanForward walks from the current line while the next one has started
func (s *Synchronizer) scanForward(pos int64) int {
	i := s.active
	for steps := 0; i+1 < len(s.lines) && s.lines[i+1].TimestampMs <= pos; steps++ {
		if steps == maxForwardScan {
			return s.search(pos)
		}
		i++
	}
	return i
}

// search returns the greatest index whose timestamp is <= pos, or NoLine
func (s *Synchronizer) search(pos int64) int {
	return sort.Search(len(s.lines), func(i int) bool {
		return s.lines[i].TimestampMs > pos
	}) - 1
}

func (s *Synchronizer) transitionLocked() LineTransition {
	t := LineTransition{
		ActiveIndex: s.active,
		Past:        make([]int, 0, max(s.active, 0)),
		Upcoming:    make([]int, 0, len(s.lines)-s.active-1),
	}
	if s.active != NoLine {
		line := s.lines[s.active]
		t.Active = &line
	}
	for i := range s.lines {
		switch {
		case i < s.active:
			t.Past = append(t.Past, i)
		case i > s.active:
			t.Upcoming = append(t.Upcoming, i)
		}
	}
	return t
}

// State returns the current transition view without changing anything
func (s *Synchronizer) State() LineTransition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked()
}

// ActiveIndex returns the active line index, or NoLine
func (s *Synchronizer) ActiveIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Lines returns a copy of the loaded sequence
func (s *Synchronizer) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// HasLyrics reports whether a non-empty sequence is loaded
func (s *Synchronizer) HasLyrics() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) > 0
}

// SongID returns the current song, empty before the first ChangeSong
func (s *Synchronizer) SongID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.songID
}
