package feed

import (
	"testing"
	"time"

	"github.com/harborbank/demo/internal/backend"
	"github.com/harborbank/demo/internal/logger"
)

func testEvent(userID, id string) backend.Event {
	return backend.Event{
		Kind:    backend.EventInsert,
		Table:   backend.TableTransactions,
		UserID:  userID,
		Payload: map[string]interface{}{"id": id},
	}
}

func collect(t *testing.T, ch <-chan backend.Event, n int) []backend.Event {
	t.Helper()
	var out []backend.Event
	for len(out) < n {
		select {
		case ev := <-ch:
			out = append(out, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", len(out)+1, n)
		}
	}
	return out
}

func TestHub_DeliversInPublishOrder(t *testing.T) {
	hub := NewHub(logger.NewWithWriter(testWriter{t}))
	defer hub.Close()

	got := make(chan backend.Event, 16)
	_, err := hub.Subscribe(backend.TableTransactions, backend.EventFilter{UserID: "u1"}, func(ev backend.Event) {
		got <- ev
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for _, id := range []string{"e1", "e2", "e3"} {
		hub.Publish(testEvent("u1", id))
	}

	events := collect(t, got, 3)
	for i, want := range []string{"e1", "e2", "e3"} {
		if events[i].Payload["id"] != want {
			t.Errorf("event %d: got %v, want %s", i, events[i].Payload["id"], want)
		}
	}
}

func TestHub_FilterScopesByUser(t *testing.T) {
	hub := NewHub(logger.NewWithWriter(testWriter{t}))
	defer hub.Close()

	got := make(chan backend.Event, 16)
	_, err := hub.Subscribe(backend.TableTransactions, backend.EventFilter{UserID: "u1"}, func(ev backend.Event) {
		got <- ev
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	hub.Publish(testEvent("u2", "other-user"))
	hub.Publish(testEvent("u1", "mine"))

	events := collect(t, got, 1)
	if events[0].Payload["id"] != "mine" {
		t.Errorf("expected only the scoped event, got %v", events[0].Payload["id"])
	}
	select {
	case ev := <-got:
		t.Errorf("unexpected extra event: %v", ev.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(logger.NewWithWriter(testWriter{t}))
	defer hub.Close()

	got := make(chan backend.Event, 16)
	sub, err := hub.Subscribe(backend.TableTransactions, backend.EventFilter{UserID: "u1"}, func(ev backend.Event) {
		got <- ev
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := hub.Unsubscribe(sub); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	hub.Publish(testEvent("u1", "late"))

	select {
	case ev := <-got:
		t.Errorf("event delivered after unsubscribe: %v", ev.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnsubscribeUnknownHandle(t *testing.T) {
	hub := NewHub(logger.NewWithWriter(testWriter{t}))
	defer hub.Close()

	if err := hub.Unsubscribe(&backend.Subscription{ID: "nope"}); err == nil {
		t.Error("expected error for unknown subscription")
	}
}

func TestHub_SubscribeAfterClose(t *testing.T) {
	hub := NewHub(logger.NewWithWriter(testWriter{t}))
	hub.Close()

	if _, err := hub.Subscribe(backend.TableTransactions, backend.EventFilter{}, func(backend.Event) {}); err == nil {
		t.Error("expected error subscribing to a closed hub")
	}
}
