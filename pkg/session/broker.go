package session

import (
	"log/slog"
	"sync"
)

// Event is one broadcast item: a name from the domain event vocabulary
// and its JSON-serializable payload.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"data"`
}

// Handler receives broadcast events. Handlers run synchronously on the
// publishing goroutine, in subscription order, so every subscriber
// observes the same event sequence.
type Handler func(ev Event)

type subscriber struct {
	id int
	fn Handler
}

// Broker fans events out to subscribers. A panicking or otherwise
// misbehaving handler is logged and skipped without disturbing delivery
// to the others.
type Broker struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber
	logger *slog.Logger
}

// NewBroker creates an empty broker.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{logger: logger}
}

// Subscribe registers a handler and returns a function that removes it.
func (b *Broker) Subscribe(fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers the event to every subscriber in registration order.
func (b *Broker) Emit(event string, payload any) {
	b.mu.Lock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	ev := Event{Name: event, Payload: payload}
	for _, s := range subs {
		b.deliver(s, ev)
	}
}

func (b *Broker) deliver(s subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked", "event", ev.Name, "panic", r)
		}
	}()
	s.fn(ev)
}

// channelBuffer bounds the per-client relay channel. A full image
// generation cycle emits well under this many events, so drops only
// occur for a consumer that has stopped reading entirely.
const channelBuffer = 64

// Channel subscribes a buffered channel to the broker, for relaying
// events to network clients. The in-process delivery guarantee ends
// here: handlers registered with Subscribe see every event in order,
// while a channel consumer that falls behind loses events, because a
// stalled websocket must not stall the agent.
func (b *Broker) Channel() (<-chan Event, func()) {
	ch := make(chan Event, channelBuffer)
	unsub := b.Subscribe(func(ev Event) {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("dropping event for slow subscriber", "event", ev.Name)
		}
	})
	return ch, func() {
		unsub()
		close(ch)
	}
}
