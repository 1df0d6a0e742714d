package feed

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/harborbank/demo/internal/backend"
	"github.com/harborbank/demo/internal/domain"
)

// Sink receives decoded remote changes. The transaction state store
// implements it.
type Sink interface {
	ApplyRemoteInsert(tx domain.Transaction)
	ApplyRemoteUpdate(id string, patch domain.TransactionPatch)
}

// Subscriber owns one session's change-feed subscription: Unsubscribed
// until Start, Subscribed until Stop or the next Start. At most one
// subscription is live at a time; starting for a new session tears down the
// previous one first.
type Subscriber struct {
	feed backend.ChangeFeed
	sink Sink
	log  zerolog.Logger

	mu  sync.Mutex
	sub *backend.Subscription
}

// NewSubscriber creates an unsubscribed subscriber.
func NewSubscriber(changeFeed backend.ChangeFeed, sink Sink, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		feed: changeFeed,
		sink: sink,
		log:  log,
	}
}

// Start subscribes to transaction changes in the user's scope, replacing
// any prior subscription.
func (s *Subscriber) Start(userID string) error {
	if userID == "" {
		return fmt.Errorf("feed: user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		if err := s.feed.Unsubscribe(s.sub); err != nil {
			s.log.Warn().Err(err).Msg("Failed to tear down prior subscription")
		}
		s.sub = nil
	}

	sub, err := s.feed.Subscribe(backend.TableTransactions, backend.EventFilter{UserID: userID}, s.handle)
	if err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	s.sub = sub

	s.log.Info().Str("user_id", userID).Msg("Change feed subscription started")
	return nil
}

// Stop tears down the subscription. Safe to call when unsubscribed.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub == nil {
		return
	}
	if err := s.feed.Unsubscribe(s.sub); err != nil {
		s.log.Warn().Err(err).Msg("Failed to unsubscribe")
	}
	s.sub = nil
	s.log.Info().Msg("Change feed subscription stopped")
}

// Subscribed reports whether a subscription is live.
func (s *Subscriber) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}

// handle decodes one event and pushes it into the sink. A payload that does
// not decode is logged and dropped; background sync must never crash the
// subscription over a bad event.
func (s *Subscriber) handle(ev backend.Event) {
	switch ev.Kind {
	case backend.EventInsert:
		row, err := decodeInsert(ev.Payload)
		if err != nil {
			s.log.Warn().Err(err).Msg("Dropping undecodable insert event")
			return
		}
		s.sink.ApplyRemoteInsert(backend.Format(row))
	case backend.EventUpdate:
		id, patch, err := decodeUpdate(ev.Payload)
		if err != nil {
			s.log.Warn().Err(err).Msg("Dropping undecodable update event")
			return
		}
		s.sink.ApplyRemoteUpdate(id, patch)
	default:
		s.log.Warn().Str("kind", string(ev.Kind)).Msg("Dropping event of unknown kind")
	}
}
