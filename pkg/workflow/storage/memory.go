package storage

import (
	"context"
	"sort"
	"sync"

	"meridian-hq/meridian/pkg/workflow"
)

// MemoryStorage implements workflow.Storage with an in-memory map.
// Intended for tests and one-shot CLI commands.
type MemoryStorage struct {
	mu       sync.RWMutex
	requests map[string]*workflow.ChangeRequest
}

// NewMemoryStorage creates an empty in-memory change request store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		requests: make(map[string]*workflow.ChangeRequest),
	}
}

// Create stores a new change request.
func (s *MemoryStorage) Create(ctx context.Context, cr *workflow.ChangeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *cr
	s.requests[cr.ID] = &copied
	return nil
}

// Get returns the change request with the given ID.
func (s *MemoryStorage) Get(ctx context.Context, id string) (*workflow.ChangeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cr, ok := s.requests[id]
	if !ok {
		return nil, &workflow.NotFoundError{ChangeRequestID: id}
	}
	copied := *cr
	return &copied, nil
}

// Transition moves a request between statuses atomically.
func (s *MemoryStorage) Transition(ctx context.Context, id string, from workflow.ChangeStatus, review *workflow.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cr, ok := s.requests[id]
	if !ok {
		return &workflow.NotFoundError{ChangeRequestID: id}
	}
	if cr.Status != from {
		return &workflow.AlreadyResolvedError{ChangeRequestID: id, Status: cr.Status}
	}

	cr.Status = review.Status
	if review.Status == workflow.StatusPending {
		// Reverting a review: clear reviewer fields.
		cr.ReviewedBy = ""
		cr.ReviewedAt = nil
		cr.ReviewComments = ""
		cr.AppliedVersion = 0
		return nil
	}
	reviewedAt := review.ReviewedAt
	cr.ReviewedBy = review.ReviewedBy
	cr.ReviewedAt = &reviewedAt
	cr.ReviewComments = review.Comments
	cr.AppliedVersion = review.AppliedVersion
	return nil
}

// Delete removes a change request.
func (s *MemoryStorage) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return &workflow.NotFoundError{ChangeRequestID: id}
	}
	delete(s.requests, id)
	return nil
}

// List returns change requests matching the filter, newest first.
func (s *MemoryStorage) List(ctx context.Context, filter *workflow.ListFilter) ([]*workflow.ChangeRequest, error) {
	s.mu.RLock()
	matched := []*workflow.ChangeRequest{}
	for _, cr := range s.requests {
		if !matchesFilter(cr, filter) {
			continue
		}
		copied := *cr
		matched = append(matched, &copied)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[j].CreatedAt.Before(matched[i].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*workflow.ChangeRequest{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStorage) Close() error {
	return nil
}

func matchesFilter(cr *workflow.ChangeRequest, f *workflow.ListFilter) bool {
	if f.Status != "" && cr.Status != f.Status {
		return false
	}
	if f.Type != "" && cr.Type != f.Type {
		return false
	}
	if f.EntityType != "" && cr.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && cr.EntityID != f.EntityID {
		return false
	}
	if f.CreatedBy != "" && cr.CreatedBy != f.CreatedBy {
		return false
	}
	return true
}
