package alert

import (
	"context"
	"fmt"
	"sync"

	"github.com/kaizumaki/kabuscan/internal/contracts"
)

// MemStore is an in-memory AlertStore for tests and for running
// without a database.
type MemStore struct {
	mu     sync.RWMutex
	alerts map[string]contracts.Alert
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{alerts: make(map[string]contracts.Alert)}
}

func (s *MemStore) Get(ctx context.Context, id string) (*contracts.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: alert %s", contracts.ErrNotFound, id)
	}
	return &alert, nil
}

func (s *MemStore) Put(ctx context.Context, alert *contracts.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.ID] = *alert
	return nil
}

func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.alerts, id)
	return nil
}

func (s *MemStore) List(ctx context.Context) ([]*contracts.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*contracts.Alert, 0, len(s.alerts))
	for _, alert := range s.alerts {
		a := alert
		out = append(out, &a)
	}
	return out, nil
}
