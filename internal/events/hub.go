package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one change notification fanned out to websocket subscribers.
type Event struct {
	ID         string    `json:"id"`
	ClusterID  int64     `json:"cluster_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	At         time.Time `json:"at"`
}

// New builds an event with a fresh ID and timestamp.
func New(clusterID int64, action, entityType string, entityID int64) Event {
	return Event{
		ID:         uuid.NewString(),
		ClusterID:  clusterID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		At:         time.Now(),
	}
}

// Subscriber receives events for the clusters it registered for. C is closed
// on Unsubscribe.
type Subscriber struct {
	C        chan Event
	clusters map[int64]struct{}
}

// Hub is an in-memory broadcast hub. Publishing never blocks: subscribers
// that cannot keep up simply miss events.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscriber]struct{})}
}

// Subscribe registers interest in the given clusters with a buffered channel.
func (h *Hub) Subscribe(clusterIDs []int64, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 16
	}
	s := &Subscriber{
		C:        make(chan Event, buffer),
		clusters: make(map[int64]struct{}, len(clusterIDs)),
	}
	for _, id := range clusterIDs {
		s.clusters[id] = struct{}{}
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Unsubscribe removes the subscriber and closes its channel.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.C)
	}
	h.mu.Unlock()
}

// Publish fans the event out to every subscriber of its cluster.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if _, ok := s.clusters[ev.ClusterID]; !ok {
			continue
		}
		select {
		case s.C <- ev:
		default:
			// Full buffer: drop rather than block the publisher.
		}
	}
}
