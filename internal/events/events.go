// Package events is a small in-process publish/subscribe bus carrying typed
// notifications between the core and its observers.
package events

import (
	"sync"

	"go.uber.org/zap"
)

// Type names an event
type Type string

const (
	HistoryUpdated   Type = "history.updated"
	EntryAdded       Type = "entry.added"
	PermissionNeeded Type = "permission.needed"
	PasteFailed      Type = "paste.failed"
	PasteDelivered   Type = "paste.delivered"
)

// Event is a single notification. Payload is one of the payload types below
// or nil.
type Event struct {
	Type    Type
	Payload interface{}
}

// EntryAddedPayload accompanies EntryAdded
type EntryAddedPayload struct {
	EntryID string
	Preview string
	Kind    string
}

// PasteResultPayload accompanies PasteDelivered and PasteFailed
type PasteResultPayload struct {
	EntryID  string
	Target   string
	Strategy string
	Err      error
}

// Subscription delivers events on C until cancelled
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	types  map[Type]struct{}
	bus    *Bus
	closed bool
}

// Cancel detaches the subscription and closes its channel
func (s *Subscription) Cancel() {
	s.bus.unsubscribe(s)
}

func (s *Subscription) wants(t Type) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	logger *zap.Logger
}

// NewBus creates an empty bus
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{subs: make(map[*Subscription]struct{}), logger: logger}
}

// Subscribe registers a listener for the given types, or all types when none
// are given
func (b *Bus) Subscribe(buffer int, types ...Type) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	s := &Subscription{C: ch, ch: ch, bus: b}
	if len(types) > 0 {
		s.types = make(map[Type]struct{}, len(types))
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(b.subs, s)
	close(s.ch)
}

// Publish delivers ev to every interested subscriber
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if !s.wants(ev.Type) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			b.logger.Warn("Dropping event for slow subscriber", zap.String("event", string(ev.Type)))
		}
	}
}

// Close cancels every subscription
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		s.closed = true
		close(s.ch)
	}
	b.subs = make(map[*Subscription]struct{})
}

// Publisher is the narrow interface components depend on
type Publisher interface {
	Publish(ev Event)
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(Event) {}
