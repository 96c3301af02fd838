package efficacy

import (
	"context"
	"sync"
)

// MemoryLabelStore implements LabelStore with an in-memory map.
type MemoryLabelStore struct {
	mu     sync.RWMutex
	labels map[string]*LabeledTransaction
}

// NewMemoryLabelStore creates an empty label store.
func NewMemoryLabelStore() *MemoryLabelStore {
	return &MemoryLabelStore{labels: make(map[string]*LabeledTransaction)}
}

// Set records (or overwrites) a transaction's label.
func (s *MemoryLabelStore) Set(ctx context.Context, label *LabeledTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *label
	s.labels[label.TransactionID] = &copied
	return nil
}

// Get returns the label for a transaction, or nil if none exists.
func (s *MemoryLabelStore) Get(ctx context.Context, transactionID string) (*LabeledTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.labels[transactionID]
	if !ok {
		return nil, nil
	}
	copied := *l
	return &copied, nil
}

// All returns every recorded label.
func (s *MemoryLabelStore) All(ctx context.Context) ([]*LabeledTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*LabeledTransaction, 0, len(s.labels))
	for _, l := range s.labels {
		copied := *l
		out = append(out, &copied)
	}
	return out, nil
}
