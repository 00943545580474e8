package audit

import (
	"context"
	"sync"

	id "mizan/pkg/domain"
)

// InMemoryStore is the non-distributed Store used in development and unit
// tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.RecordID][]Event
}

// NewInMemoryStore creates an empty audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.RecordID][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.Sequence = int64(len(s.events[event.RecordID])) + 1
	s.events[event.RecordID] = append(s.events[event.RecordID], *event)
	return nil
}

func (s *InMemoryStore) ListByRecord(_ context.Context, userID id.UserID, recordID id.RecordID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events[recordID] {
		if e.UserID != userID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *InMemoryStore) CountByRecord(_ context.Context, userID id.UserID, recordID id.RecordID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, e := range s.events[recordID] {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}
