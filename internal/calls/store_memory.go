package calls

import (
	"context"
	"sync"
)

// MemoryBindingStore keeps call bindings in process memory. Restart loses
// all live-call state; see RedisBindingStore for the durable variant.
type MemoryBindingStore struct {
	mu       sync.RWMutex
	bindings map[string]Binding
}

func NewMemoryBindingStore() *MemoryBindingStore {
	return &MemoryBindingStore{bindings: make(map[string]Binding)}
}

func (s *MemoryBindingStore) Put(_ context.Context, b Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[b.CallID] = b
	return nil
}

func (s *MemoryBindingStore) Get(_ context.Context, callID string) (Binding, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bindings[callID]
	return b, ok, nil
}

func (s *MemoryBindingStore) Delete(_ context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bindings, callID)
	return nil
}

func (s *MemoryBindingStore) FindBySession(_ context.Context, sessionID string) (Binding, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bindings {
		if b.SessionID == sessionID {
			return b, true, nil
		}
	}
	return Binding{}, false, nil
}
