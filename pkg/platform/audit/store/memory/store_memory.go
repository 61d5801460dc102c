package memory

import (
	"context"
	"sort"
	"sync"

	id "custodia/pkg/domain"
	audit "custodia/pkg/platform/audit"
)

// InMemoryStore keeps audit events in process memory. Used by unit tests and
// by dev-mode wiring where no audit database is configured. Same contract as
// the postgres store: append-only, idempotent AppendWithID.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
	seen   map[id.EventID]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{seen: make(map[id.EventID]struct{})}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.seen = make(map[id.EventID]struct{})
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID.IsZero() {
		event.ID = id.NewEventID()
	}
	s.events = append(s.events, event)
	s.seen[event.ID] = struct{}{}
	return nil
}

// AppendWithID stores the event under its own ID; duplicates are ignored.
func (s *InMemoryStore) AppendWithID(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[event.ID]; dup {
		return nil
	}
	s.events = append(s.events, event)
	s.seen[event.ID] = struct{}{}
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID string, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Event
	for _, e := range s.events {
		if e.SubjectID == subjectID {
			matched = append(matched, e)
		}
	}
	return newestFirst(matched, limit), nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := append([]audit.Event{}, s.events...)
	return newestFirst(all, limit), nil
}

func newestFirst(events []audit.Event, limit int) []audit.Event {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events
}
