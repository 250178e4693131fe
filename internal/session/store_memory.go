package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the tag -> session id mapping in process memory.
// Process restart loses all sessions; that is an accepted simplification for
// demo deployments. Use RedisStore when durability matters.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, tag string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.sessions[tag]
	return id, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, tag, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[tag] = sessionID
	return nil
}
