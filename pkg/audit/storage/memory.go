package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"meridian-hq/meridian/pkg/audit"
)

// MemoryStorage implements audit.Storage with an in-memory slice.
// Intended for tests and one-shot CLI commands.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries []*audit.Entry
}

// NewMemoryStorage creates an empty in-memory audit trail.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Store appends an entry.
func (s *MemoryStorage) Store(ctx context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *entry
	s.entries = append(s.entries, &copied)
	return nil
}

// Last returns the most recently appended entry, or nil for an empty trail.
func (s *MemoryStorage) Last(ctx context.Context) (*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, nil
	}
	copied := *s.entries[len(s.entries)-1]
	return &copied, nil
}

// Query retrieves entries matching the query filters.
func (s *MemoryStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.Entry, error) {
	s.mu.RLock()
	matched := s.filter(query)
	s.mu.RUnlock()

	if query.SortOrder == "asc" {
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].Timestamp.Before(matched[j].Timestamp)
		})
	} else {
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[j].Timestamp.Before(matched[i].Timestamp)
		})
	}

	if query.Offset > 0 {
		if query.Offset >= len(matched) {
			return []*audit.Entry{}, nil
		}
		matched = matched[query.Offset:]
	}

	limit := 100
	if query.Limit > 0 {
		limit = query.Limit
	} else if query.Limit < 0 {
		limit = len(matched)
	}
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// QueryStream streams matching entries over a channel.
func (s *MemoryStorage) QueryStream(ctx context.Context, query *audit.Query) (<-chan *audit.Entry, <-chan error, error) {
	entries, err := s.Query(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	entriesCh := make(chan *audit.Entry, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(entriesCh)
		defer close(errCh)
		for _, e := range entries {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case entriesCh <- e:
			}
		}
	}()

	return entriesCh, errCh, nil
}

// Count returns the number of entries matching the query filters.
func (s *MemoryStorage) Count(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filter(query))), nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStorage) Close() error {
	return nil
}

// filter returns copies of all entries matching the query. Caller holds the
// lock.
func (s *MemoryStorage) filter(query *audit.Query) []*audit.Entry {
	matched := []*audit.Entry{}
	for _, e := range s.entries {
		if !matches(e, query) {
			continue
		}
		copied := *e
		matched = append(matched, &copied)
	}
	return matched
}

func matches(e *audit.Entry, q *audit.Query) bool {
	if q.StartTime != nil && e.Timestamp.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && e.Timestamp.After(*q.EndTime) {
		return false
	}
	if q.UserID != "" && e.UserID != q.UserID {
		return false
	}
	if q.Username != "" && e.Username != q.Username {
		return false
	}
	if q.Action != "" && e.Action != q.Action {
		return false
	}
	if q.EntityType != "" && e.EntityType != q.EntityType {
		return false
	}
	if q.EntityID != "" && e.EntityID != q.EntityID {
		return false
	}
	if q.IPAddress != "" && e.IPAddress != q.IPAddress {
		return false
	}
	if q.Status != "" && e.Status != q.Status {
		return false
	}
	if q.Search != "" && !strings.Contains(e.Changes, q.Search) {
		return false
	}
	return true
}
