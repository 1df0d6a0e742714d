// Package feed carries row-level change notifications from the store layer
// to per-session subscribers. The Hub is the in-process change feed; the
// Subscriber owns one session's subscription lifecycle and decodes the
// untyped event payloads before they reach the reconciliation core.
package feed

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harborbank/demo/internal/backend"
)

// subscriptionBuffer is how many undelivered events a subscription may hold
// before new ones are dropped.
const subscriptionBuffer = 256

// Hub is an in-process implementation of backend.ChangeFeed and
// backend.Publisher. Each subscription gets its own delivery goroutine and
// channel, so callbacks run one event at a time in publish order and a slow
// subscriber never blocks another.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*subscription
	closed bool
	wg     sync.WaitGroup
	log    zerolog.Logger
}

type subscription struct {
	id     string
	filter backend.EventFilter
	ch     chan backend.Event
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs: make(map[string]*subscription),
		log:  log,
	}
}

// Subscribe implements backend.ChangeFeed.
func (h *Hub) Subscribe(table string, filter backend.EventFilter, fn func(backend.Event)) (*backend.Subscription, error) {
	if fn == nil {
		return nil, fmt.Errorf("feed: nil callback")
	}
	filter.Table = table

	sub := &subscription{
		id:     uuid.New().String(),
		filter: filter,
		ch:     make(chan backend.Event, subscriptionBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, fmt.Errorf("feed: hub is closed")
	}
	h.subs[sub.id] = sub
	h.wg.Add(1)
	h.mu.Unlock()

	// One goroutine per subscription: events run to completion one at a
	// time, in the order they were published.
	go func() {
		defer h.wg.Done()
		for ev := range sub.ch {
			fn(ev)
		}
	}()

	return &backend.Subscription{ID: sub.id}, nil
}

// Unsubscribe implements backend.ChangeFeed. Events already queued for the
// subscription still run to completion; no new ones are delivered.
func (h *Hub) Unsubscribe(handle *backend.Subscription) error {
	if handle == nil {
		return fmt.Errorf("feed: nil subscription")
	}

	h.mu.Lock()
	sub, ok := h.subs[handle.ID]
	if ok {
		delete(h.subs, handle.ID)
	}
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("feed: unknown subscription %s", handle.ID)
	}
	close(sub.ch)
	return nil
}

// Publish implements backend.Publisher, fanning the event out to every
// matching subscription. When a subscription's buffer is full the event is
// dropped for that subscription and logged.
func (h *Hub) Publish(ev backend.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	for _, sub := range h.subs {
		if !sub.filter.Matches(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.log.Warn().
				Str("subscription", sub.id).
				Str("kind", string(ev.Kind)).
				Msg("Subscription buffer full, dropping event")
		}
	}
}

// Close tears down every subscription and waits for in-flight callbacks.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
	h.mu.Unlock()

	h.wg.Wait()
}

var _ backend.ChangeFeed = (*Hub)(nil)
var _ backend.Publisher = (*Hub)(nil)
