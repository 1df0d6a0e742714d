package txstate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/harborbank/demo/internal/dataaccess"
	"github.com/harborbank/demo/internal/domain"
	"github.com/harborbank/demo/internal/feed"
)

// Syncer ties one session's store, data access and change-feed subscription
// together. It is created when the session starts and closed when it ends;
// nothing here survives a session.
type Syncer struct {
	userID string
	store  *Store
	data   *dataaccess.Service
	sub    *feed.Subscriber
	log    zerolog.Logger
}

// NewSyncer wires a syncer for the given user. The subscriber must sink
// into the same store.
func NewSyncer(userID string, store *Store, data *dataaccess.Service, sub *feed.Subscriber, log zerolog.Logger) *Syncer {
	return &Syncer{
		userID: userID,
		store:  store,
		data:   data,
		sub:    sub,
		log:    log,
	}
}

// Start seeds the view with a bulk fetch and opens the change-feed
// subscription. A fetch failure leaves the view empty but the session
// usable; the subscription still starts.
func (s *Syncer) Start(ctx context.Context) error {
	s.store.Replace(s.data.FetchAll(ctx, s.userID))
	if err := s.sub.Start(s.userID); err != nil {
		return fmt.Errorf("txstate: start sync: %w", err)
	}
	return nil
}

// Submit runs the optimistic write path: make the transaction visible
// immediately, persist it, then reconcile the view with the confirmed
// record. On persist failure the optimistic entry is rolled back and the
// view is exactly as it was before the call.
func (s *Syncer) Submit(ctx context.Context, input domain.NewTransactionInput) (domain.Transaction, error) {
	tempID := s.store.OptimisticInsert(input)

	confirmed, err := s.data.InsertOne(ctx, s.userID, input)
	if err != nil {
		s.store.Rollback(tempID)
		return domain.Transaction{}, err
	}

	s.store.Reconcile(tempID, confirmed)

	// The feed echo may have already collapsed the entry; whatever is in
	// the view under the confirmed id is the authoritative answer.
	if tx, ok := s.store.Get(confirmed.ID); ok {
		return tx, nil
	}
	return confirmed, nil
}

// Transactions returns a snapshot of the current view.
func (s *Syncer) Transactions(filter func(domain.Transaction) bool) []domain.Transaction {
	return s.store.Query(filter)
}

// Store exposes the underlying view store.
func (s *Syncer) Store() *Store {
	return s.store
}

// Close tears down the subscription and clears the view.
func (s *Syncer) Close() {
	s.sub.Stop()
	s.store.Clear()
	s.log.Info().Str("user_id", s.userID).Msg("Session sync closed")
}
