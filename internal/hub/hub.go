// Package hub fans session events out to every observer of a session code.
// The hub owns only subscriber handles; it never touches session state, and
// publishing to a code with no subscribers is a silent no-op.
package hub

import (
	"sync"

	"go.uber.org/zap"

	"github.com/planningpoker/backend/internal/metrics"
	"github.com/planningpoker/backend/internal/session"
)

// subscriberBuffer sizes each handle's outbound channel. Publish hands an
// event off to this buffer and never blocks on a slow consumer; a full buffer
// drops the event for that handle only.
const subscriberBuffer = 16

// Subscriber is one connected observer of a session's events. Events() yields
// events in publish order for that code; Done() is closed when the handle is
// unsubscribed or the session's topic is dropped.
type Subscriber struct {
	events    chan session.Event
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Subscriber) Events() <-chan session.Event { return s.events }
func (s *Subscriber) Done() <-chan struct{}        { return s.done }

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// topic is the subscriber set for one code. pubMu serializes publishes so
// every subscriber sees events in the order Publish was called; mu guards the
// set itself so subscribe/unsubscribe never wait on a delivery in progress.
type topic struct {
	pubMu sync.Mutex
	mu    sync.RWMutex
	subs  map[*Subscriber]struct{}
}

type Hub struct {
	log    *zap.Logger
	mu     sync.RWMutex
	topics map[string]*topic
}

func New(log *zap.Logger) *Hub {
	return &Hub{
		log:    log,
		topics: make(map[string]*topic),
	}
}

// Subscribe registers a new handle for code. There is no backlog delivery;
// the handle sees only events published after this call returns.
func (h *Hub) Subscribe(code string) *Subscriber {
	h.mu.Lock()
	t, ok := h.topics[code]
	if !ok {
		t = &topic{subs: make(map[*Subscriber]struct{})}
		h.topics[code] = t
	}
	h.mu.Unlock()

	sub := &Subscriber{
		events: make(chan session.Event, subscriberBuffer),
		done:   make(chan struct{}),
	}
	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()
	metrics.Subscribers.Inc()
	return sub
}

// Unsubscribe removes a handle. Safe to call more than once and safe to call
// while a publish to the same handle is in flight; the handle receives at
// most one further event.
func (h *Hub) Unsubscribe(code string, sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.RLock()
	t := h.topics[code]
	h.mu.RUnlock()
	if t != nil {
		t.mu.Lock()
		_, registered := t.subs[sub]
		delete(t.subs, sub)
		t.mu.Unlock()
		if registered {
			metrics.Subscribers.Dec()
		}
	}
	sub.close()
}

// Publish delivers ev to every handle currently subscribed to code. Delivery
// is hand-off to each subscriber's buffer, not rendering; a full buffer is
// logged and skipped, never surfaced to the publisher.
func (h *Hub) Publish(code string, ev session.Event) {
	h.mu.RLock()
	t := h.topics[code]
	h.mu.RUnlock()
	if t == nil {
		return
	}

	t.pubMu.Lock()
	defer t.pubMu.Unlock()

	t.mu.RLock()
	targets := make([]*Subscriber, 0, len(t.subs))
	for sub := range t.subs {
		targets = append(targets, sub)
	}
	t.mu.RUnlock()

	metrics.EventsPublished.Inc()
	for _, sub := range targets {
		select {
		case sub.events <- ev:
		default:
			metrics.EventsDropped.Inc()
			h.log.Warn("dropping event for slow subscriber",
				zap.String("code", code),
				zap.String("event", string(ev.Type)))
		}
	}
}

// Drop discards the topic for code and wakes every remaining subscriber.
// Called when the session behind the code is evicted.
func (h *Hub) Drop(code string) {
	h.mu.Lock()
	t := h.topics[code]
	delete(h.topics, code)
	h.mu.Unlock()
	if t == nil {
		return
	}
	t.mu.Lock()
	subs := t.subs
	t.subs = make(map[*Subscriber]struct{})
	t.mu.Unlock()
	for sub := range subs {
		metrics.Subscribers.Dec()
		sub.close()
	}
}

// Subscribers reports the number of handles currently registered for code.
func (h *Hub) Subscribers(code string) int {
	h.mu.RLock()
	t := h.topics[code]
	h.mu.RUnlock()
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}
