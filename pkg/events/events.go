package events

import (
	"sync"
	"time"

	"github.com/cuemby/feelback/pkg/types"
)

// EventType represents the type of event
type EventType string

const (
	EventRageTap      EventType = "frustration.rage_tap"
	EventLevelChanged EventType = "frustration.level_changed"
)

// Event describes one frustration transition
type Event struct {
	Type          EventType
	Timestamp     time.Time
	Level         types.FrustrationLevel
	PreviousLevel types.FrustrationLevel
	Score         int
	Reason        string
}

// Handler receives published events
type Handler func(Event)

// Subscription identifies a registered handler
type Subscription uint64

// Broker delivers events to every registered handler synchronously, in
// registration order, on the publishing goroutine.
type Broker struct {
	mu       sync.RWMutex
	next     Subscription
	handlers map[Subscription]Handler
	order    []Subscription
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		handlers: make(map[Subscription]Handler),
	}
}

// Subscribe registers a handler and returns its subscription
func (b *Broker) Subscribe(h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	sub := b.next
	b.handlers[sub] = h
	b.order = append(b.order, sub)
	return sub
}

// Unsubscribe removes a subscription. Unknown subscriptions are ignored.
func (b *Broker) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.handlers[sub]; !ok {
		return
	}
	delete(b.handlers, sub)
	for i, s := range b.order {
		if s == sub {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish delivers an event to all subscribers. Handlers may subscribe or
// unsubscribe from inside a callback; the change applies to the next Publish.
func (b *Broker) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, sub := range b.order {
		handlers = append(handlers, b.handlers[sub])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
