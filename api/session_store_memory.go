package api

import (
	"sync"
	"time"
)

// MemorySessionStore is a thread-safe in-memory SessionStore.
// Sessions are lost on server restart.
type MemorySessionStore struct {
	mu          sync.RWMutex
	data        map[string]AuthSession
	idleTimeout time.Duration
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an in-memory session store.
// idleTimeout of 0 disables idle timeout checking.
func NewMemorySessionStore(idleTimeout time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		data:        make(map[string]AuthSession),
		idleTimeout: idleTimeout,
	}
}

func (s *MemorySessionStore) Get(sessionID string) (AuthSession, bool) {
	s.mu.RLock()
	session, ok := s.data[sessionID]
	s.mu.RUnlock()
	if !ok {
		return AuthSession{}, false
	}
	if !session.live(time.Now(), s.idleTimeout) {
		s.Delete(sessionID)
		return AuthSession{}, false
	}
	return session, true
}

func (s *MemorySessionStore) Put(sessionID string, session AuthSession) {
	s.mu.Lock()
	s.data[sessionID] = session
	s.mu.Unlock()
}

func (s *MemorySessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.data, sessionID)
	s.mu.Unlock()
}

// Len returns the number of stored sessions, including expired ones not yet
// evicted.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// sweep evicts expired and idle sessions.
func (s *MemorySessionStore) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.data {
		if !session.live(now, s.idleTimeout) {
			delete(s.data, id)
		}
	}
}
