// Package notify fans core events out to connected push clients.
//
// Delivery is best effort: every subscriber has a bounded buffer and an
// event that does not fit is dropped for that subscriber only. There is no
// replay; a reconnecting client re-fetches state instead.
package notify

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"filecat/internal/filecat"
)

// DefaultClientBuffer is the per-subscriber event buffer.
const DefaultClientBuffer = 64

// Subscription is one connected client. Events arrives closed after
// Unsubscribe.
type Subscription struct {
	ID     uint64
	Remote string

	events  chan filecat.Event
	dropped atomic.Int64
	once    sync.Once
}

// Events returns the channel the subscriber reads from.
func (s *Subscription) Events() <-chan filecat.Event {
	return s.events
}

// Dropped returns the number of events lost because the buffer was full.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.events) })
}

// Hub implements filecat.Publisher over a set of subscriptions.
type Hub struct {
	logger *slog.Logger
	buffer int

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
	closed bool
}

var _ filecat.Publisher = (*Hub)(nil)

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) { h.logger = logger }
}

// WithClientBuffer sets the per-subscriber buffer size.
func WithClientBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		logger: slog.Default(),
		buffer: DefaultClientBuffer,
		subs:   make(map[uint64]*Subscription),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(slog.String("component", "notify"))
	return h
}

// Subscribe registers a client. On a closed hub the returned subscription's
// channel is already closed.
func (h *Hub) Subscribe(remote string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		ID:     h.nextID,
		Remote: remote,
		events: make(chan filecat.Event, h.buffer),
	}
	if h.closed {
		sub.close()
		return sub
	}
	h.subs[sub.ID] = sub
	pushClients.Set(float64(len(h.subs)))
	h.logger.Debug("client subscribed", slog.Uint64("id", sub.ID), slog.String("remote", remote))
	return sub
}

// Unsubscribe removes the client and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	_, ok := h.subs[sub.ID]
	delete(h.subs, sub.ID)
	pushClients.Set(float64(len(h.subs)))
	h.mu.Unlock()

	sub.close()
	if ok {
		h.logger.Debug("client unsubscribed", slog.Uint64("id", sub.ID),
			slog.Int64("dropped", sub.Dropped()))
	}
}

// Publish delivers ev to every subscriber without blocking.
func (h *Hub) Publish(ev filecat.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	name := string(ev.Name)
	for _, sub := range h.subs {
		select {
		case sub.events <- ev:
			pushEvents.WithLabelValues(name).Inc()
		default:
			sub.dropped.Add(1)
			pushDropped.WithLabelValues(name).Inc()
			h.logger.Warn("push buffer full, event dropped",
				slog.Uint64("id", sub.ID), slog.String("event", name))
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.closed = true
	pushClients.Set(0)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}
