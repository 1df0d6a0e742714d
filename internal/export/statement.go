// Package export renders account statements and uploads them to a GCS
// bucket so the user can download transaction history.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/harborbank/demo/internal/domain"
)

// RenderCSV renders the transactions as a CSV statement, one row per
// transaction in view order.
func RenderCSV(txs []domain.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "date", "type", "amount", "description", "status", "account_id", "from_account", "to_account"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("export: writing header: %w", err)
	}
	for _, tx := range txs {
		record := []string{
			tx.ID,
			tx.Date.Format(time.RFC3339),
			string(tx.Type),
			tx.Amount.StringFixed(2),
			tx.Description,
			string(tx.Status),
			tx.AccountID,
			tx.FromAccount,
			tx.ToAccount,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("export: writing record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("export: flushing: %w", err)
	}
	return buf.Bytes(), nil
}

// ObjectName builds the statement's object path inside the bucket.
func ObjectName(userID string, now time.Time) string {
	return path.Join("statements", now.Format("2006/01/02"), userID+"-"+uuid.New().String()+".csv")
}

// Upload writes the statement bytes to the bucket under objectName and
// returns the gs:// URI. It assumes Application Default Credentials are
// configured.
func Upload(ctx context.Context, bucketName, objectName string, data []byte) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("export: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = "text/csv"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("export: writing object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("export: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}
