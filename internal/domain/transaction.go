package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a transaction. Immutable after creation.
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeTransfer   TransactionType = "transfer"
)

// TransactionStatus is the only transaction field that legitimately changes
// after creation.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// TempIDPrefix marks client-minted transaction ids. A temporary id is valid
// only until the server-confirmed counterpart replaces it.
const TempIDPrefix = "temp-"

// Transaction is the client-facing view of one transaction record.
// This is a domain struct, not a persisted row; backend.Format maps the
// table schema into it.
type Transaction struct {
	ID          string            `json:"id"`
	Date        time.Time         `json:"date"`
	Type        TransactionType   `json:"type"`
	Amount      decimal.Decimal   `json:"amount"`
	Description string            `json:"description"`
	Status      TransactionStatus `json:"status"`
	AccountID   string            `json:"account_id"`

	// FromAccount and ToAccount are populated for transfers only.
	FromAccount string `json:"fromAccount,omitempty"`
	ToAccount   string `json:"toAccount,omitempty"`
}

// NewTransactionInput carries the caller-supplied fields for a new
// transaction. The caller also decides the initial status; there is no
// server-side state machine behind it.
type NewTransactionInput struct {
	Type        TransactionType   `json:"type"`
	Amount      decimal.Decimal   `json:"amount"`
	Description string            `json:"description"`
	Status      TransactionStatus `json:"status"`
	AccountID   string            `json:"account_id"`
	FromAccount string            `json:"fromAccount,omitempty"`
	ToAccount   string            `json:"toAccount,omitempty"`
}

// TransactionPatch carries the changed fields of a remote update. Nil
// fields were not part of the update and must be preserved as-is on the
// local entry.
type TransactionPatch struct {
	Status *TransactionStatus
	Date   *time.Time
}

// NewTempID mints a temporary transaction id. Ids are never reused.
func NewTempID() string {
	return TempIDPrefix + uuid.New().String()
}

// IsTempID reports whether id is client-minted.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// ValidType reports whether t is one of the known transaction types.
func ValidType(t TransactionType) bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeTransfer:
		return true
	}
	return false
}

// ValidStatus reports whether s is one of the known transaction statuses.
func ValidStatus(s TransactionStatus) bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}
