package server

import (
	"sync"
	"time"

	"github.com/kcenon/ftscore/internal/chunker"
	"github.com/kcenon/ftscore/internal/ftserrors"
	"github.com/kcenon/ftscore/internal/protocol"
)

// SessionStore is the in-memory registry of every session currently
// known to the server, active or recently finished.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[chunker.TransferId]*Session
}

// NewSessionStore builds an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[chunker.TransferId]*Session)}
}

// Add registers a new session. Fails if the ID is already present.
func (s *SessionStore) Add(session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return ftserrors.New(ftserrors.KindAlreadyInitialized, "session already registered")
	}
	s.sessions[session.ID] = session
	return nil
}

// Get looks up a session by transfer ID.
func (s *SessionStore) Get(id chunker.TransferId) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ftserrors.New(ftserrors.KindNotInitialized, "session not found")
	}
	return session, nil
}

// Update replaces a session record in place.
func (s *SessionStore) Update(session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return ftserrors.New(ftserrors.KindNotInitialized, "session not found")
	}
	session.UpdateTime = time.Now()
	s.sessions[session.ID] = session
	return nil
}

// Delete removes a session from the in-memory registry.
func (s *SessionStore) Delete(id chunker.TransferId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ftserrors.New(ftserrors.KindNotInitialized, "session not found")
	}
	delete(s.sessions, id)
	return nil
}

// List returns sessions matching an optional state filter, paginated.
// limit == 0 means no limit.
func (s *SessionStore) List(filterState *protocol.TransferState, limit, offset int) ([]*Session, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []*Session
	for _, session := range s.sessions {
		if filterState != nil && session.State != *filterState {
			continue
		}
		filtered = append(filtered, session)
	}

	total := len(filtered)
	if offset >= total {
		return []*Session{}, total
	}
	end := offset + limit
	if end > total || limit == 0 {
		end = total
	}
	return filtered[offset:end], total
}

// CleanupOldSessions evicts completed/failed/cancelled sessions whose
// last update is older than maxAge, returning how many were removed.
func (s *SessionStore) CleanupOldSessions(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, session := range s.sessions {
		terminal := session.State == protocol.Completed ||
			session.State == protocol.Failed ||
			session.State == protocol.Cancelled
		if terminal && session.UpdateTime.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of sessions currently tracked.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
