package backend

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an operation references a row that does not
// exist in the table.
var ErrNotFound = errors.New("backend: row not found")

// TransactionTable is the persistent store contract for the transactions
// collection. Authorization scope is the user id; implementations must never
// return rows outside it.
//
// This abstraction allows swapping store implementations (in-memory for the
// demo, BigQuery for durable deployments).
type TransactionTable interface {
	// SelectAll returns every row in the user's scope ordered by date
	// descending.
	SelectAll(ctx context.Context, userID string) ([]Row, error)

	// InsertReturning persists the row and returns the stored version with
	// the server-assigned id and timestamp filled in.
	InsertReturning(ctx context.Context, row Row) (Row, error)

	// UpdateStatus changes the status of an existing row. Returns
	// ErrNotFound when no row has the given id.
	UpdateStatus(ctx context.Context, id, status string) error
}

// EventKind tags a change-feed event.
type EventKind string

const (
	// EventInsert carries the full inserted row as payload.
	EventInsert EventKind = "INSERT"
	// EventUpdate carries the row id plus the changed fields only.
	EventUpdate EventKind = "UPDATE"
)

// Event is one row-level change notification. The payload is untyped on the
// wire; subscribers decode it and drop events that do not decode.
type Event struct {
	Kind    EventKind
	Table   string
	UserID  string
	Payload map[string]interface{}
}

// EventFilter restricts a subscription to a table and a user scope.
type EventFilter struct {
	Table  string
	UserID string
}

// Matches reports whether the event falls inside the filter.
func (f EventFilter) Matches(ev Event) bool {
	if f.Table != "" && f.Table != ev.Table {
		return false
	}
	if f.UserID != "" && f.UserID != ev.UserID {
		return false
	}
	return true
}

// Subscription is the opaque handle identifying one live change-feed
// subscription.
type Subscription struct {
	ID string
}

// ChangeFeed is the row-level change stream contract: one callback per
// subscription, events delivered in arrival order, one at a time.
type ChangeFeed interface {
	Subscribe(table string, filter EventFilter, fn func(Event)) (*Subscription, error)
	Unsubscribe(sub *Subscription) error
}

// Publisher is the write side of the change feed. Store implementations
// publish an event after every successful mutation.
type Publisher interface {
	Publish(ev Event)
}
