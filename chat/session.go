package chat

import "sync"

// SessionStore maps session identifiers to ordered transcripts. Transcripts
// materialize lazily on first append; there is no implicit eviction.
type SessionStore interface {
	Append(sessionID string, turns ...Turn)
	// History returns a copy of the transcript and whether it exists.
	History(sessionID string) ([]Turn, bool)
	// Clear removes the transcript, reporting whether one existed.
	Clear(sessionID string) bool
}

// MemoryStore is the single-process SessionStore. The lock also serializes
// appends within a session, preserving request-arrival order.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Turn)}
}

func (s *MemoryStore) Append(sessionID string, turns ...Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], turns...)
}

func (s *MemoryStore) History(sessionID string) ([]Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transcript, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}

	copied := make([]Turn, len(transcript))
	copy(copied, transcript)
	return copied, true
}

func (s *MemoryStore) Clear(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

var _ SessionStore = (*MemoryStore)(nil)
