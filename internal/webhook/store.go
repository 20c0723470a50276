package webhook

import (
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"code-storage-client/internal/model"
)

const (
	eventStoreSize = 512
	eventStoreTTL  = 24 * time.Hour
)

// EventStore keeps recently received push events in memory so operators
// can inspect what the receiver has seen. Old entries age out; this is a
// window, not an archive.
type EventStore struct {
	mu     sync.Mutex
	events *expirable.LRU[string, model.PushEvent]
	order  []string
	nextID uint64
}

func NewEventStore() *EventStore {
	return &EventStore{
		events: expirable.NewLRU[string, model.PushEvent](eventStoreSize, nil, eventStoreTTL),
	}
}

// Record stores an event and returns its key.
func (s *EventStore) Record(event model.PushEvent) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	key := event.RepoID + "/" + event.After + "#" + strconv.FormatUint(s.nextID, 10)
	s.events.Add(key, event)
	s.order = append(s.order, key)
	if len(s.order) > eventStoreSize {
		s.order = s.order[len(s.order)-eventStoreSize:]
	}
	return key
}

// List returns the stored events, newest first. Keys whose entries have
// aged out of the cache are skipped.
func (s *EventStore) List() []model.PushEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.PushEvent, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if event, ok := s.events.Get(s.order[i]); ok {
			out = append(out, event)
		}
	}
	return out
}
