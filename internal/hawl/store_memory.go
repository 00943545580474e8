package hawl

import (
	"context"
	"sort"
	"sync"

	id "mizan/pkg/domain"
	"mizan/pkg/platform/sentinel"
)

// InMemoryStore is the non-distributed Store used in development and unit
// tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.RecordID]*NisabYearRecord
}

// NewInMemoryStore creates an empty record store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.RecordID]*NisabYearRecord)}
}

func (s *InMemoryStore) Save(_ context.Context, record *NisabYearRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.records[record.ID]
	switch {
	case !exists && record.Version != 0:
		return sentinel.ErrConflict
	case exists && stored.Version != record.Version:
		return sentinel.ErrConflict
	}
	record.Version++
	cp := *record
	s.records[record.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID id.UserID, recordID id.RecordID) (*NisabYearRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[recordID]
	if !ok || record.UserID != userID {
		return nil, sentinel.ErrNotFound
	}
	cp := *record
	return &cp, nil
}

func (s *InMemoryStore) FindPrimary(_ context.Context, userID id.UserID) (*NisabYearRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.records {
		if record.UserID == userID && record.IsPrimary && !record.Superseded() {
			cp := *record
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*NisabYearRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*NisabYearRecord
	for _, record := range s.records {
		if record.UserID != userID {
			continue
		}
		cp := *record
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
