package events

import (
	"log/slog"
	"sync"
)

// Handler consumes a published event. Handlers run synchronously on the
// publishing goroutine after commit; slow consumers should hand off.
type Handler func(Event)

// Bus fans events out to type-scoped subscribers. Publish never blocks on a
// missing subscriber and never fails: event delivery is best-effort by
// contract, consumers re-fetch state.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	log         *slog.Logger
}

func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{subscribers: make(map[string][]Handler), log: log}
}

// Subscribe registers a handler for one event type. An empty type subscribes
// to everything.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], h)
}

// Publish delivers one event to its subscribers.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := append([]Handler{}, b.subscribers[e.Type]...)
	handlers = append(handlers, b.subscribers[""]...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
	b.log.Debug("event published", "type", e.Type, "job_id", e.JobID, "event_id", e.EventID)
}

// PublishAll flushes a post-commit buffer in order.
func (b *Bus) PublishAll(buf []Event) {
	for _, e := range buf {
		b.Publish(e)
	}
}

// Recorder accumulates events during a transaction so services can emit them
// only after commit. Not safe for concurrent use; one recorder per request.
type Recorder struct {
	pending []Event
}

// Record buffers an event for post-commit publication.
func (r *Recorder) Record(e Event) {
	r.pending = append(r.pending, e)
}

// Drain returns and clears the buffered events.
func (r *Recorder) Drain() []Event {
	out := r.pending
	r.pending = nil
	return out
}
