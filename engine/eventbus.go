package engine

import (
	"sync"
	"time"
)

type EventType int

type SubscriberID int

// Event is one bus message. Payload holds the payload struct that belongs
// to Type (see events.go).
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

type subscriber struct {
	id    SubscriberID
	fn    func(Event)
	types map[EventType]struct{} // nil means every type
}

func (s subscriber) wants(t EventType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// EventBus is a synchronous in-process pub/sub. Handlers run on the
// emitting goroutine in subscription order. The subscriber slice is
// replaced, never mutated, so Emit can walk it without holding the lock.
type EventBus struct {
	mu     sync.RWMutex
	subs   []subscriber
	nextID SubscriberID
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

func (eb *EventBus) add(fn func(Event), types map[EventType]struct{}) SubscriberID {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	next := make([]subscriber, len(eb.subs), len(eb.subs)+1)
	copy(next, eb.subs)
	eb.subs = append(next, subscriber{id: eb.nextID, fn: fn, types: types})
	return eb.nextID
}

// Subscribe registers a handler for all event types.
func (eb *EventBus) Subscribe(fn func(Event)) SubscriberID {
	return eb.add(fn, nil)
}

// SubscribeTypes registers a handler for specific event types. With no
// types the handler never fires.
func (eb *EventBus) SubscribeTypes(fn func(Event), types ...EventType) SubscriberID {
	filter := make(map[EventType]struct{}, len(types))
	for _, t := range types {
		filter[t] = struct{}{}
	}
	return eb.add(fn, filter)
}

// Handle subscribes fn to the given event types with the payload already
// asserted to T. Events of those types whose payload is not a T are dropped.
func Handle[T any](eb *EventBus, fn func(EventType, T), types ...EventType) SubscriberID {
	return eb.SubscribeTypes(func(evt Event) {
		if p, ok := evt.Payload.(T); ok {
			fn(evt.Type, p)
		}
	}, types...)
}

// Unsubscribe removes subscribers by ID. Unknown IDs are ignored.
func (eb *EventBus) Unsubscribe(ids ...SubscriberID) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[SubscriberID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	next := make([]subscriber, 0, len(eb.subs))
	for _, s := range eb.subs {
		if _, ok := drop[s.id]; !ok {
			next = append(next, s)
		}
	}
	eb.subs = next
}

// Len returns the number of live subscribers.
func (eb *EventBus) Len() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subs)
}

// Emit sends an event to all matching subscribers.
func (eb *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	eb.mu.RLock()
	subs := eb.subs
	eb.mu.RUnlock()

	for _, s := range subs {
		if s.wants(evt.Type) {
			s.fn(evt)
		}
	}
}
