package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/hexflower/internal/lattice"
)

// EventKind names a state change.
type EventKind string

const (
	EventCreated        EventKind = "created"
	EventNavigated      EventKind = "navigated"
	EventContentUpdated EventKind = "contentUpdated"
	EventReset          EventKind = "reset"
	EventImported       EventKind = "imported"
	EventDeleted        EventKind = "deleted"
)

// Event is a notification about one flower. Flower holds a copy of the
// flower after the change; Cell is the affected cell where relevant.
type Event struct {
	Kind     EventKind         `json:"kind"`
	FlowerID string            `json:"flower_id"`
	Flower   *Snapshot         `json:"flower,omitempty"`
	Cell     *lattice.Cell     `json:"cell,omitempty"`
	Result   *NavigationResult `json:"result,omitempty"`
	Time     time.Time         `json:"time"`
}

// Observer receives engine events. Notify is called synchronously after
// the change is applied and persisted, and must not call back into the
// engine's mutating methods.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Notify calls f.
func (f ObserverFunc) Notify(e Event) { f(e) }

const (
	subscriberBuffer = 64
	recentEvents     = 100
)

// Broadcaster fans events out to channel subscribers and keeps a short
// backlog for catch-up. Slow subscribers miss events instead of blocking
// the engine.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	recent []Event
	closed bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Notify implements Observer.
func (b *Broadcaster) Notify(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.recent = append(b.recent, e)
	if len(b.recent) > recentEvents {
		b.recent = b.recent[len(b.recent)-recentEvents:]
	}

	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			slog.Warn("event subscriber lagging, dropping event", "sub_id", id, "kind", e.Kind)
		}
	}
}

// Subscribe registers a new subscriber. The channel is closed by
// Unsubscribe or Close.
func (b *Broadcaster) Subscribe() (int, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return -1, ch
	}
	b.nextID++
	b.subs[b.nextID] = ch
	return b.nextID, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Recent returns up to n of the latest events, oldest first.
func (b *Broadcaster) Recent(n int) []Event {
	if n <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	start := max(len(b.recent)-n, 0)
	return append([]Event(nil), b.recent[start:]...)
}

// Close closes every subscriber channel. Later events are dropped.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
