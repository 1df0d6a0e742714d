// Package txstate holds the reconciliation core: the per-session ordered
// view of transactions, kept consistent across the initial bulk fetch,
// optimistic local inserts and asynchronously delivered change-feed events.
package txstate

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harborbank/demo/internal/domain"
	"github.com/harborbank/demo/internal/notify"
)

// Store owns one session's ordered transaction view. It is the only writer;
// everything else reads snapshots through Query or pushes events in through
// the Apply/Reconcile methods. Entries are ordered by date descending, with
// same-instant ties most-recently-applied first.
//
// Operations lock for their full duration, so no caller ever observes a
// torn view between interleaved events.
type Store struct {
	mu      sync.Mutex
	entries []domain.Transaction
	index   map[string]int

	notify notify.Func
	log    zerolog.Logger
}

// NewStore creates an empty store reporting through sink. A nil sink
// discards notifications.
func NewStore(sink notify.Func, log zerolog.Logger) *Store {
	if sink == nil {
		sink = notify.Discard
	}
	return &Store{
		index:  make(map[string]int),
		notify: sink,
		log:    log,
	}
}

// Replace loads the view from a bulk fetch, discarding whatever was there.
func (s *Store) Replace(txs []domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.index = make(map[string]int, len(txs))
	for i := len(txs) - 1; i >= 0; i-- {
		s.insertOrderedLocked(txs[i])
	}
}

// Clear empties the view on session teardown.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.index = make(map[string]int)
}

// OptimisticInsert makes a locally-minted transaction immediately visible
// and returns its temporary id so the caller can reconcile or roll back
// once the store responds.
func (s *Store) OptimisticInsert(input domain.NewTransactionInput) string {
	tx := domain.Transaction{
		ID:          domain.NewTempID(),
		Date:        time.Now().UTC(),
		Type:        input.Type,
		Amount:      input.Amount,
		Description: input.Description,
		Status:      input.Status,
		AccountID:   input.AccountID,
		FromAccount: input.FromAccount,
		ToAccount:   input.ToAccount,
	}
	if tx.Description == "" {
		tx.Description = string(tx.Type)
	}
	if tx.Status == "" {
		tx.Status = domain.StatusPending
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertOrderedLocked(tx)
	return tx.ID
}

// Reconcile replaces the optimistic entry with its server-confirmed
// counterpart, reinserting at the position the confirmed date dictates.
// A tempID that is no longer present is a safe no-op: the change-feed echo
// may already have confirmed it.
func (s *Store) Reconcile(tempID string, confirmed domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[tempID]
	if !ok {
		s.log.Debug().Str("temp_id", tempID).Msg("Reconcile for absent entry, ignoring")
		return
	}

	s.removeAtLocked(i)
	if _, dup := s.index[confirmed.ID]; dup {
		// The feed echo landed between our insert call and this reconcile.
		// The confirmed entry is already in the view; dropping the
		// optimistic one is all that is left to do.
		return
	}
	s.insertOrderedLocked(confirmed)
}

// Rollback removes the optimistic entry after a failed insert, restoring
// the view to its pre-insert state. Absent ids are a no-op.
func (s *Store) Rollback(tempID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[tempID]
	if !ok {
		return
	}
	s.removeAtLocked(i)
}

// ApplyRemoteInsert merges a change-feed insert into the view.
//
// Three cases, in order:
//  1. An entry with the same id exists: this is our own write echoed back
//     after reconciliation already ran. The incoming record is authoritative;
//     replace in place, never duplicate.
//  2. An optimistic entry matches the record logically: the echo beat the
//     insert call's response. Treat the event as the reconciliation signal.
//  3. Otherwise it is a genuinely remote transaction; insert at the position
//     its date dictates and tell the user.
func (s *Store) ApplyRemoteInsert(tx domain.Transaction) {
	s.mu.Lock()

	if i, ok := s.index[tx.ID]; ok {
		s.removeAtLocked(i)
		s.insertOrderedLocked(tx)
		s.mu.Unlock()
		return
	}

	if i := s.findOptimisticMatchLocked(tx); i >= 0 {
		s.removeAtLocked(i)
		s.insertOrderedLocked(tx)
		s.mu.Unlock()
		return
	}

	s.insertOrderedLocked(tx)
	s.mu.Unlock()

	s.notify(notify.KindInfo, fmt.Sprintf("New %s of %s received", tx.Type, tx.Amount.StringFixed(2)))
}

// ApplyRemoteUpdate merges the changed fields of a change-feed update into
// the existing entry, preserving everything the partial does not carry.
// Updates for ids not in the view are dropped; there is no deferred-apply
// queue.
func (s *Store) ApplyRemoteUpdate(id string, patch domain.TransactionPatch) {
	s.mu.Lock()

	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		s.log.Debug().Str("id", id).Msg("Update for absent entry, dropping")
		return
	}

	tx := s.entries[i]
	statusChanged := false
	if patch.Status != nil && *patch.Status != tx.Status {
		tx.Status = *patch.Status
		statusChanged = true
	}
	if patch.Date != nil {
		tx.Date = *patch.Date
	}

	// Reposition in case the date moved.
	s.removeAtLocked(i)
	s.insertOrderedLocked(tx)
	s.mu.Unlock()

	if statusChanged {
		s.notify(notify.KindInfo, fmt.Sprintf("Transaction is now %s", tx.Status))
	}
}

// Query returns a point-in-time snapshot of the view, optionally filtered.
// The ordering invariant holds on the returned slice.
func (s *Store) Query(filter func(domain.Transaction) bool) []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Transaction, 0, len(s.entries))
	for _, tx := range s.entries {
		if filter == nil || filter(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// Get returns the entry with the given id, if present.
func (s *Store) Get(id string) (domain.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Transaction{}, false
	}
	return s.entries[i], true
}

// Len returns the number of entries in the view.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// insertOrderedLocked places tx before the first entry whose date is not
// after tx's, which keeps date-descending order and puts same-instant
// entries most-recently-applied first.
func (s *Store) insertOrderedLocked(tx domain.Transaction) {
	pos := len(s.entries)
	for i, e := range s.entries {
		if !e.Date.After(tx.Date) {
			pos = i
			break
		}
	}

	s.entries = append(s.entries, domain.Transaction{})
	copy(s.entries[pos+1:], s.entries[pos:])
	s.entries[pos] = tx
	for i := pos; i < len(s.entries); i++ {
		s.index[s.entries[i].ID] = i
	}
}

func (s *Store) removeAtLocked(i int) {
	delete(s.index, s.entries[i].ID)
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	for j := i; j < len(s.entries); j++ {
		s.index[s.entries[j].ID] = j
	}
}

// findOptimisticMatchLocked looks for the oldest optimistic entry that
// logically matches the remote record: same account, type and amount, and a
// temporary id. Logical fields are the only link available before the
// insert call returns.
func (s *Store) findOptimisticMatchLocked(tx domain.Transaction) int {
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !domain.IsTempID(e.ID) {
			continue
		}
		if e.Type == tx.Type && e.AccountID == tx.AccountID && e.Amount.Equal(tx.Amount) {
			return i
		}
	}
	return -1
}
