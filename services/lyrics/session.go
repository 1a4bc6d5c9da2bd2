package lyrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"jine-api-go/logcolors"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Session is one listener's synchronizer plus the bookkeeping needed to
// cancel a lyrics fetch that a newer song change superseded
type Session struct {
	ID        string
	CreatedAt time.Time
	Sync      *Synchronizer

	lastSeen atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64 // bumped by every song change
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen returns the last time the session was used
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// beginSong switches the synchronizer to songID, cancels the previous fetch
// and returns a context and generation for the new one. Both happen under
// one lock so the newest call always owns the session.
func (s *Session) beginSong(parent context.Context, songID string) (context.Context, context.CancelFunc, uint64) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.gen++
	s.Sync.ChangeSong(songID)
	return ctx, cancel, s.gen
}

// isCurrent reports whether gen is still the latest song change
func (s *Session) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

// loadIfCurrent loads lines only while gen is the latest song change
func (s *Session) loadIfCurrent(gen uint64, songID string, lines []Line) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	return s.Sync.LoadFor(songID, lines)
}

func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// SessionManager owns the live sessions
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSessionManager returns an empty manager
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Create starts a session with a random ID
func (m *SessionManager) Create() *Session {
	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		Sync:      NewSynchronizer(),
	}
	s.touch(now)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	log.Infof("%s Created %s", logcolors.LogSession, logcolors.Session(s.ID))
	return s
}

// Get returns the session for id
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(m.now())
	return s, nil
}

// Delete ends a session and cancels its pending fetch
func (m *SessionManager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.stop()
	log.Infof("%s Deleted %s", logcolors.LogSession, logcolors.Session(id))
	return nil
}

// Len returns the number of live sessions
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for at least maxIdle and returns how many
// were removed
func (m *SessionManager) Sweep(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if !s.LastSeen().After(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.stop()
	}
	if len(idle) > 0 {
		log.Infof("%s Swept %d idle sessions", logcolors.LogSession, len(idle))
	}
	return len(idle)
}

// StartJanitor sweeps idle sessions every interval until Close
func (m *SessionManager) StartJanitor(interval, maxIdle time.Duration) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep(maxIdle)
			case <-m.stopChan:
				return
			}
		}
	}()
	log.Infof("%s Idle sessions expire after %v", logcolors.LogSession, maxIdle)
}

// Close stops the janitor and cancels all pending fetches
func (m *SessionManager) Close() {
	m.stopOnce.Do(func() { close(m.stopChan) })
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.stop()
	}
}
