// Package lyrics keeps per-listener lyric sessions in step with playback.
// A listener reports song changes and playback positions; the service
// fetches and parses lyrics and answers with line transitions.
package lyrics

import (
	"context"
	"encoding/json"
	"errors"

	"jine-api-go/events"
	"jine-api-go/logcolors"
	"jine-api-go/services/saavn"
	"jine-api-go/stats"

	log "github.com/sirupsen/logrus"
)

// Source fetches the raw lyrics of a song
type Source interface {
	Lyrics(ctx context.Context, songID string) (*saavn.Lyrics, error)
}

// LoadResult describes the outcome of loading lyrics into a session
type LoadResult struct {
	SessionID string `json:"sessionId"`
	SongID    string `json:"songId"`
	Applied   bool   `json:"applied"`
	HasLyrics bool   `json:"hasLyrics"`
	Lines     int    `json:"lines"`
	Source    string `json:"source,omitempty"`
	Message   string `json:"message,omitempty"`
}

// SessionState is a read-only view of a session
type SessionState struct {
	SessionID  string         `json:"sessionId"`
	SongID     string         `json:"songId"`
	HasLyrics  bool           `json:"hasLyrics"`
	Lines      []Line         `json:"lines"`
	Transition LineTransition `json:"transition"`
}

// Service wires sessions to a lyrics source
type Service struct {
	sessions *SessionManager
	source   Source
	bus      *events.Bus
	stats    *stats.Stats
}

// NewService creates a service. bus and st may be nil.
func NewService(sessions *SessionManager, source Source, bus *events.Bus, st *stats.Stats) *Service {
	return &Service{
		sessions: sessions,
		source:   source,
		bus:      bus,
		stats:    st,
	}
}

// Sessions returns the session manager
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// ChangeSong switches a session to songID, fetches its lyrics and loads
// them unless another song change happened meanwhile. Missing or malformed
// lyrics leave the session in the no-lyrics state without an error; an
// upstream failure is returned.
func (s *Service) ChangeSong(ctx context.Context, sessionID, songID string) (*LoadResult, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel, gen := sess.beginSong(ctx, songID)
	defer cancel()

	s.bus.PublishSongChanged(sessionID, songID)
	if s.stats != nil {
		s.stats.RecordSongChange()
	}
	log.Infof("%s %s now playing %s", logcolors.LogSession, logcolors.Session(sessionID), songID)

	result := &LoadResult{SessionID: sessionID, SongID: songID}

	raw, err := s.source.Lyrics(fetchCtx, songID)
	if err != nil {
		if errors.Is(err, context.Canceled) && !sess.isCurrent(gen) {
			// A newer song change cancelled this fetch
			s.recordStale(sessionID, songID)
			result.Message = "superseded by a newer song change"
			return result, nil
		}
		if errors.Is(err, saavn.ErrNoLyrics) {
			result.Applied = sess.isCurrent(gen)
			result.Message = "no lyrics available"
			log.Infof("%s No lyrics for %s", logcolors.LogLyrics, songID)
			return result, nil
		}
		log.Warnf("%s Failed to fetch lyrics for %s: %v", logcolors.LogLyrics, songID, err)
		return result, err
	}

	result.Source = raw.Source
	lines, perr := ParsePayload(raw.Text)
	if perr != nil {
		log.Warnf("%s %s: %v", logcolors.LogLyricsParse, songID, perr)
		result.Message = perr.Error()
		lines = nil
	}
	if !sess.loadIfCurrent(gen, songID, lines) {
		s.recordStale(sessionID, songID)
		result.Message = "superseded by a newer song change"
		return result, nil
	}
	return s.applied(sess.ID, songID, lines, result), nil
}

// LoadLyrics parses a lyrics payload supplied by the listener and loads it.
// With a songID the payload is dropped if the session moved to another
// song. Malformed input loads the empty sequence.
func (s *Service) LoadLyrics(sessionID, songID string, payload json.RawMessage) (*LoadResult, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{SessionID: sessionID, SongID: songID, Source: "client"}
	lines, perr := ParsePayload(payload)
	if perr != nil {
		log.Warnf("%s %s: %v", logcolors.LogLyricsParse, logcolors.Session(sessionID), perr)
		result.Message = perr.Error()
		lines = nil
	}

	if songID == "" {
		sess.Sync.Load(lines)
		result.SongID = sess.Sync.SongID()
		result.Applied = true
		result.Lines = len(lines)
		result.HasLyrics = len(lines) > 0
		return result, nil
	}
	return s.apply(sess, songID, lines, result), nil
}

func (s *Service) apply(sess *Session, songID string, lines []Line, result *LoadResult) *LoadResult {
	if !sess.Sync.LoadFor(songID, lines) {
		s.recordStale(sess.ID, songID)
		result.Message = "superseded by a newer song change"
		return result
	}
	return s.applied(sess.ID, songID, lines, result)
}

func (s *Service) applied(sessionID, songID string, lines []Line, result *LoadResult) *LoadResult {
	result.Applied = true
	result.Lines = len(lines)
	result.HasLyrics = len(lines) > 0
	if result.HasLyrics {
		log.Infof("%s Loaded %d lines for %s", logcolors.LogLyrics, len(lines), songID)
		s.bus.PublishLyricsLoaded(sessionID, songID, len(lines))
	}
	return result
}

func (s *Service) recordStale(sessionID, songID string) {
	log.Debugf("%s Discarding stale lyrics for %s in %s", logcolors.LogLyricsSync, songID, logcolors.Session(sessionID))
	if s.stats != nil {
		s.stats.RecordStaleLyricsDrop()
	}
}

// UpdatePosition reports a playback position. The bool is false when the
// active line did not change.
func (s *Service) UpdatePosition(sessionID string, positionMs int64) (LineTransition, bool, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return LineTransition{}, false, err
	}
	t, changed := sess.Sync.OnTimeUpdate(positionMs)
	if changed && s.stats != nil {
		s.stats.RecordLineTransition()
	}
	return t, changed, nil
}

// State returns the session's song, lines and current transition view
func (s *Service) State(sessionID string) (*SessionState, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	lines := sess.Sync.Lines()
	return &SessionState{
		SessionID:  sessionID,
		SongID:     sess.Sync.SongID(),
		HasLyrics:  len(lines) > 0,
		Lines:      lines,
		Transition: sess.Sync.State(),
	}, nil
}
