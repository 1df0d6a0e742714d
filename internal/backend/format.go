package backend

import (
	"time"

	"github.com/harborbank/demo/internal/domain"
)

// Format maps a persisted row into the client-facing transaction view.
//
// Pure function with no failure mode: a nil date defaults to now, a missing
// description falls back to the type. Enum values outside the known sets are
// a caller error and pass through unchanged.
func Format(r Row) domain.Transaction {
	date := time.Now().UTC()
	if r.Date != nil {
		date = *r.Date
	}

	description := r.Type
	if r.Description != nil && *r.Description != "" {
		description = *r.Description
	}

	tx := domain.Transaction{
		ID:          r.ID,
		Date:        date,
		Type:        domain.TransactionType(r.Type),
		Amount:      r.Amount,
		Description: description,
		Status:      domain.TransactionStatus(r.Status),
		AccountID:   r.AccountID,
	}
	if r.FromAccount != nil {
		tx.FromAccount = *r.FromAccount
	}
	if r.ToAccount != nil {
		tx.ToAccount = *r.ToAccount
	}
	return tx
}
