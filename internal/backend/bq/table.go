// Package bq implements backend.TransactionTable on BigQuery for durable
// deployments. The demo defaults to the in-memory table; this one is selected
// with -backend=bigquery.
package bq

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"

	"github.com/harborbank/demo/internal/backend"
)

const transactionsTable = "transactions"

// transactionRow maps the banking.transactions table schema.
type transactionRow struct {
	ID     string `bigquery:"id"`      // REQUIRED
	UserID string `bigquery:"user_id"` // REQUIRED

	Date bigquery.NullTimestamp `bigquery:"date"` // NULLABLE

	Type   string   `bigquery:"type"`   // REQUIRED
	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC
	Status string   `bigquery:"status"` // REQUIRED

	AccountID   string              `bigquery:"account_id"`   // REQUIRED
	Description bigquery.NullString `bigquery:"description"`  // NULLABLE
	FromAccount bigquery.NullString `bigquery:"from_account"` // NULLABLE
	ToAccount   bigquery.NullString `bigquery:"to_account"`   // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// Table is a BigQuery-backed transaction table.
type Table struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	feed      backend.Publisher
}

// NewTable creates a BigQuery-backed table. It assumes Application Default
// Credentials are configured. feed may be nil.
func NewTable(ctx context.Context, projectID, datasetID string, feed backend.Publisher) (*Table, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("bq: bigquery client: %w", err)
	}
	return &Table{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		feed:      feed,
	}, nil
}

// Close releases the underlying client.
func (t *Table) Close() error {
	return t.client.Close()
}

// SelectAll implements backend.TransactionTable.
func (t *Table) SelectAll(ctx context.Context, userID string) ([]backend.Row, error) {
	q := t.client.Query(fmt.Sprintf(`
		SELECT id, user_id, date, type, amount, status,
		       account_id, description, from_account, to_account, created_ts
		FROM %s.%s
		WHERE user_id = @user_id
		ORDER BY date DESC, created_ts DESC
	`, t.datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("bq: select transactions: %w", err)
	}

	var rows []backend.Row
	for {
		var r transactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bq: iterating transactions: %w", err)
		}
		rows = append(rows, toBackendRow(r))
	}
	return rows, nil
}

// InsertReturning implements backend.TransactionTable. The id and timestamp
// are assigned here; BigQuery's streaming inserter has no RETURNING clause,
// so the stored row is the one we hand it.
func (t *Table) InsertReturning(ctx context.Context, row backend.Row) (backend.Row, error) {
	if row.UserID == "" {
		return backend.Row{}, fmt.Errorf("bq: user id is required")
	}

	row.ID = uuid.New().String()
	now := time.Now().UTC()
	row.Date = &now

	table := t.client.DatasetInProject(t.projectID, t.datasetID).Table(transactionsTable)
	if err := table.Inserter().Put(ctx, toTableRow(row, now)); err != nil {
		return backend.Row{}, fmt.Errorf("bq: inserting transaction: %w", err)
	}

	if t.feed != nil {
		t.feed.Publish(backend.Event{
			Kind:    backend.EventInsert,
			Table:   backend.TableTransactions,
			UserID:  row.UserID,
			Payload: row.Payload(),
		})
	}
	return row, nil
}

// UpdateStatus implements backend.TransactionTable via a DML update.
func (t *Table) UpdateStatus(ctx context.Context, id, status string) error {
	userID, err := t.lookupUserID(ctx, id)
	if err != nil {
		return err
	}

	q := t.client.Query(fmt.Sprintf(`
		UPDATE %s.%s SET status = @status WHERE id = @id
	`, t.datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: status},
		{Name: "id", Value: id},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("bq: update status: %w", err)
	}
	st, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("bq: update status wait: %w", err)
	}
	if err := st.Err(); err != nil {
		return fmt.Errorf("bq: update status job: %w", err)
	}

	if t.feed != nil {
		t.feed.Publish(backend.Event{
			Kind:   backend.EventUpdate,
			Table:  backend.TableTransactions,
			UserID: userID,
			Payload: map[string]interface{}{
				"id":     id,
				"status": status,
			},
		})
	}
	return nil
}

func (t *Table) lookupUserID(ctx context.Context, id string) (string, error) {
	q := t.client.Query(fmt.Sprintf(`
		SELECT user_id FROM %s.%s WHERE id = @id LIMIT 1
	`, t.datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	it, err := q.Read(ctx)
	if err != nil {
		return "", fmt.Errorf("bq: lookup transaction %s: %w", id, err)
	}
	var r struct {
		UserID string `bigquery:"user_id"`
	}
	if err := it.Next(&r); err != nil {
		if err == iterator.Done {
			return "", fmt.Errorf("bq: transaction %s: %w", id, backend.ErrNotFound)
		}
		return "", fmt.Errorf("bq: lookup transaction %s: %w", id, err)
	}
	return r.UserID, nil
}

func toTableRow(r backend.Row, created time.Time) *transactionRow {
	row := &transactionRow{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      r.Type,
		Amount:    r.Amount.Rat(),
		Status:    r.Status,
		AccountID: r.AccountID,
		CreatedTS: created,
	}
	if r.Date != nil {
		row.Date = bigquery.NullTimestamp{Timestamp: *r.Date, Valid: true}
	}
	if r.Description != nil {
		row.Description = bigquery.NullString{StringVal: *r.Description, Valid: true}
	}
	if r.FromAccount != nil {
		row.FromAccount = bigquery.NullString{StringVal: *r.FromAccount, Valid: true}
	}
	if r.ToAccount != nil {
		row.ToAccount = bigquery.NullString{StringVal: *r.ToAccount, Valid: true}
	}
	return row
}

func toBackendRow(r transactionRow) backend.Row {
	out := backend.Row{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      r.Type,
		Amount:    decimal.NewFromBigRat(r.Amount, 2),
		Status:    r.Status,
		AccountID: r.AccountID,
	}
	if r.Date.Valid {
		d := r.Date.Timestamp
		out.Date = &d
	}
	if r.Description.Valid {
		s := r.Description.StringVal
		out.Description = &s
	}
	if r.FromAccount.Valid {
		s := r.FromAccount.StringVal
		out.FromAccount = &s
	}
	if r.ToAccount.Valid {
		s := r.ToAccount.StringVal
		out.ToAccount = &s
	}
	return out
}

var _ backend.TransactionTable = (*Table)(nil)
