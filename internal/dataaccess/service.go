// Package dataaccess wraps the persistent store behind the two operations
// the sync core needs. Store failures never propagate upward as errors the
// caller must re-handle: fetches degrade to an empty view, inserts surface
// as a failure signal, and the user hears about both through the sink.
package dataaccess

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/harborbank/demo/internal/backend"
	"github.com/harborbank/demo/internal/domain"
	"github.com/harborbank/demo/internal/notify"
)

// DefaultTimeout bounds every store call. A hung backend request must not
// hang the caller indefinitely.
const DefaultTimeout = 10 * time.Second

// Service exposes the data-access functions over a transaction table.
type Service struct {
	table   backend.TransactionTable
	notify  notify.Func
	log     zerolog.Logger
	timeout time.Duration
}

// NewService creates a data-access service. A zero timeout selects
// DefaultTimeout; a nil sink discards notifications.
func NewService(table backend.TransactionTable, sink notify.Func, log zerolog.Logger, timeout time.Duration) *Service {
	if sink == nil {
		sink = notify.Discard
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		table:   table,
		notify:  sink,
		log:     log,
		timeout: timeout,
	}
}

// FetchAll returns every transaction in the user's scope, ordered by date
// descending. On store error it returns an empty slice and reports through
// the sink; the error never crosses this boundary.
func (s *Service) FetchAll(ctx context.Context, userID string) []domain.Transaction {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.table.SelectAll(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch transactions")
		s.notify(notify.KindError, "Could not load transactions")
		return []domain.Transaction{}
	}

	txs := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, backend.Format(r))
	}
	return txs
}

// InsertOne persists a new transaction and returns the server-confirmed
// record. The status is stored as the caller supplied it; there is no
// server-side state machine. On failure the error is reported through the
// sink and returned so the caller can roll back its optimistic state.
func (s *Service) InsertOne(ctx context.Context, userID string, input domain.NewTransactionInput) (domain.Transaction, error) {
	if err := validateInput(input); err != nil {
		s.notify(notify.KindError, "Transaction could not be saved")
		return domain.Transaction{}, err
	}

	row := backend.Row{
		UserID:    userID,
		Type:      string(input.Type),
		Amount:    input.Amount,
		Status:    string(input.Status),
		AccountID: input.AccountID,
	}
	if input.Description != "" {
		d := input.Description
		row.Description = &d
	}
	if input.FromAccount != "" {
		f := input.FromAccount
		row.FromAccount = &f
	}
	if input.ToAccount != "" {
		t := input.ToAccount
		row.ToAccount = &t
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stored, err := s.table.InsertReturning(ctx, row)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to insert transaction")
		s.notify(notify.KindError, "Transaction could not be saved")
		return domain.Transaction{}, fmt.Errorf("dataaccess: insert: %w", err)
	}
	return backend.Format(stored), nil
}

func validateInput(input domain.NewTransactionInput) error {
	if !domain.ValidType(input.Type) {
		return fmt.Errorf("dataaccess: unknown transaction type %q", input.Type)
	}
	if !domain.ValidStatus(input.Status) {
		return fmt.Errorf("dataaccess: unknown transaction status %q", input.Status)
	}
	if !input.Amount.IsPositive() {
		return fmt.Errorf("dataaccess: amount must be positive, got %s", input.Amount)
	}
	if input.AccountID == "" {
		return fmt.Errorf("dataaccess: account id is required")
	}
	if input.Type == domain.TypeTransfer && (input.FromAccount == "" || input.ToAccount == "") {
		return fmt.Errorf("dataaccess: transfers require both from and to accounts")
	}
	return nil
}
