// Package events is a per-instance publish/subscribe notifier.
//
// Handlers registered with On or OnAny run synchronously on the emitting
// goroutine, after the notifier's lock is released, so a handler may call back
// into the emitter. Channel subscribers receive events without blocking the
// emitter; when a subscriber's buffer is full the event is dropped for it.
package events

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Event is a named notification with its payload.
type Event struct {
	Name      string    `json:"name"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler receives events synchronously.
type Handler func(Event)

// Emitter is the publishing side of a Notifier.
type Emitter interface {
	Emit(name string, payload any)
}

type handlerEntry struct {
	id   uint64
	name string // empty matches every event
	fn   Handler
}

type channelEntry struct {
	ch    chan Event
	names []string
}

// Notifier fans events out to handlers and channel subscribers.
type Notifier struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers []handlerEntry
	channels map[uint64]channelEntry
	dropped  atomic.Uint64
}

// New creates an empty notifier.
func New() *Notifier {
	return &Notifier{channels: make(map[uint64]channelEntry)}
}

// On registers h for events named name. The returned func unregisters it.
func (n *Notifier) On(name string, h Handler) func() {
	return n.register(name, h)
}

// OnAny registers h for every event.
func (n *Notifier) OnAny(h Handler) func() {
	return n.register("", h)
}

func (n *Notifier) register(name string, h Handler) func() {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.handlers = append(n.handlers, handlerEntry{id: id, name: name, fn: h})
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			n.handlers = slices.DeleteFunc(n.handlers, func(e handlerEntry) bool { return e.id == id })
			n.mu.Unlock()
		})
	}
}

// Subscribe returns a buffered channel receiving events whose name is in
// names, or every event when names is empty. Cancel closes the channel.
func (n *Notifier) Subscribe(buffer int, names ...string) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.channels[id] = channelEntry{ch: ch, names: names}
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.channels, id)
			n.mu.Unlock()
			close(ch)
		})
	}
}

// Emit publishes an event.
func (n *Notifier) Emit(name string, payload any) {
	evt := Event{Name: name, Payload: payload, Timestamp: time.Now()}

	n.mu.RLock()
	var matched []Handler
	for _, h := range n.handlers {
		if h.name == "" || h.name == name {
			matched = append(matched, h.fn)
		}
	}
	for _, sub := range n.channels {
		if len(sub.names) > 0 && !slices.Contains(sub.names, name) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			n.dropped.Add(1)
		}
	}
	n.mu.RUnlock()

	for _, h := range matched {
		h(evt)
	}
}

// Dropped returns how many channel deliveries were skipped because a buffer was full.
func (n *Notifier) Dropped() uint64 {
	return n.dropped.Load()
}

// Noop discards every event.
type Noop struct{}

// Emit implements Emitter.
func (Noop) Emit(string, any) {}
