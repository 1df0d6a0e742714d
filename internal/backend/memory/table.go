// Package memory provides the in-memory TransactionTable used by the demo
// deployment. Rows live in a mutex-guarded map and every successful mutation
// is published to the change feed, which is what stands in for the hosted
// backend's change-data-capture stream.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harborbank/demo/internal/backend"
)

// Table is an in-memory implementation of backend.TransactionTable.
// It is safe for concurrent use. Data is lost on restart - for persistence,
// use the BigQuery-backed table.
type Table struct {
	mu   sync.RWMutex
	rows map[string]*entry
	seq  int64

	feed backend.Publisher
}

type entry struct {
	row backend.Row
	seq int64
}

// NewTable creates an empty in-memory transaction table. feed may be nil,
// in which case no change events are published.
func NewTable(feed backend.Publisher) *Table {
	return &Table{
		rows: make(map[string]*entry),
		feed: feed,
	}
}

// SelectAll implements backend.TransactionTable. Rows are ordered by date
// descending; same-instant rows come back most-recently-inserted first.
func (t *Table) SelectAll(ctx context.Context, userID string) ([]backend.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var matched []*entry
	for _, e := range t.rows {
		if e.row.UserID == userID {
			matched = append(matched, e)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		di, dj := rowDate(matched[i].row), rowDate(matched[j].row)
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return matched[i].seq > matched[j].seq
	})

	out := make([]backend.Row, 0, len(matched))
	for _, e := range matched {
		out = append(out, copyRow(e.row))
	}
	return out, nil
}

// InsertReturning implements backend.TransactionTable. The server assigns
// the id and the timestamp; whatever the caller put in those fields is
// ignored, mirroring an insert-returning against the hosted store.
func (t *Table) InsertReturning(ctx context.Context, row backend.Row) (backend.Row, error) {
	if err := ctx.Err(); err != nil {
		return backend.Row{}, err
	}
	if row.UserID == "" {
		return backend.Row{}, fmt.Errorf("memory: user id is required")
	}

	row.ID = uuid.New().String()
	now := time.Now().UTC()
	row.Date = &now

	t.mu.Lock()
	t.seq++
	t.rows[row.ID] = &entry{row: copyRow(row), seq: t.seq}
	t.mu.Unlock()

	t.publish(backend.Event{
		Kind:    backend.EventInsert,
		Table:   backend.TableTransactions,
		UserID:  row.UserID,
		Payload: row.Payload(),
	})

	return copyRow(row), nil
}

// UpdateStatus implements backend.TransactionTable.
func (t *Table) UpdateStatus(ctx context.Context, id, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	e, ok := t.rows[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("memory: update %s: %w", id, backend.ErrNotFound)
	}
	e.row.Status = status
	userID := e.row.UserID
	t.mu.Unlock()

	// UPDATE events carry the id plus the changed fields only.
	t.publish(backend.Event{
		Kind:   backend.EventUpdate,
		Table:  backend.TableTransactions,
		UserID: userID,
		Payload: map[string]interface{}{
			"id":     id,
			"status": status,
		},
	})
	return nil
}

// Seed loads demo rows directly, bypassing the change feed. Rows keep their
// ids and dates so fixtures stay deterministic.
func (t *Table) Seed(rows []backend.Row) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range rows {
		t.seq++
		t.rows[r.ID] = &entry{row: copyRow(r), seq: t.seq}
	}
}

func (t *Table) publish(ev backend.Event) {
	if t.feed != nil {
		t.feed.Publish(ev)
	}
}

func rowDate(r backend.Row) time.Time {
	if r.Date == nil {
		return time.Time{}
	}
	return *r.Date
}

// copyRow returns a deep copy so callers cannot mutate stored state.
func copyRow(r backend.Row) backend.Row {
	out := r
	if r.Date != nil {
		d := *r.Date
		out.Date = &d
	}
	if r.Description != nil {
		s := *r.Description
		out.Description = &s
	}
	if r.FromAccount != nil {
		s := *r.FromAccount
		out.FromAccount = &s
	}
	if r.ToAccount != nil {
		s := *r.ToAccount
		out.ToAccount = &s
	}
	return out
}

// Ensure Table implements the store contract.
var _ backend.TransactionTable = (*Table)(nil)
