package backend

import (
	"time"

	"github.com/shopspring/decimal"
)

// TableTransactions is the collection the change feed is keyed on.
const TableTransactions = "transactions"

// Row is one persisted transaction as the store returns it. Field types
// follow the table schema, not the client view: the date is nullable, enums
// are plain strings and the description column may be absent entirely
// depending on the deployment.
type Row struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Date        *time.Time      `json:"date"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	AccountID   string          `json:"account_id"`
	Description *string         `json:"description,omitempty"`
	FromAccount *string         `json:"from_account,omitempty"`
	ToAccount   *string         `json:"to_account,omitempty"`
}

// Payload renders the row as the untyped map a change-feed INSERT event
// carries. Store implementations use it when publishing; the subscriber's
// decoder is the inverse.
func (r Row) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"id":         r.ID,
		"user_id":    r.UserID,
		"type":       r.Type,
		"amount":     r.Amount.String(),
		"status":     r.Status,
		"account_id": r.AccountID,
	}
	if r.Date != nil {
		p["date"] = r.Date.Format(time.RFC3339Nano)
	}
	if r.Description != nil {
		p["description"] = *r.Description
	}
	if r.FromAccount != nil {
		p["from_account"] = *r.FromAccount
	}
	if r.ToAccount != nil {
		p["to_account"] = *r.ToAccount
	}
	return p
}
