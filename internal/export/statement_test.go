package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborbank/demo/internal/domain"
)

func TestRenderCSV(t *testing.T) {
	txs := []domain.Transaction{
		{
			ID:          "srv-2",
			Date:        time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
			Type:        domain.TypeTransfer,
			Amount:      decimal.NewFromFloat(1200),
			Description: "Rent",
			Status:      domain.StatusCompleted,
			AccountID:   "A1",
			FromAccount: "A1",
			ToAccount:   "A2",
		},
		{
			ID:          "srv-1",
			Date:        time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			Type:        domain.TypeDeposit,
			Amount:      decimal.NewFromFloat(99.9),
			Description: "Salary",
			Status:      domain.StatusCompleted,
			AccountID:   "A1",
		},
	}

	data, err := RenderCSV(txs)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse rendered csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if records[0][0] != "id" || records[0][3] != "amount" {
		t.Errorf("unexpected header: %v", records[0])
	}
	// Rows keep view order and amounts carry two decimals.
	if records[1][0] != "srv-2" || records[1][3] != "1200.00" {
		t.Errorf("unexpected first row: %v", records[1])
	}
	if records[2][0] != "srv-1" || records[2][3] != "99.90" {
		t.Errorf("unexpected second row: %v", records[2])
	}
	if records[2][7] != "" || records[2][8] != "" {
		t.Errorf("non-transfer must leave from/to empty: %v", records[2])
	}
}

func TestRenderCSV_Empty(t *testing.T) {
	data, err := RenderCSV(nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse rendered csv: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("empty statement should still carry the header, got %v", records)
	}
}

func TestObjectName(t *testing.T) {
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	name := ObjectName("u1", now)

	if !strings.HasPrefix(name, "statements/2024/03/02/u1-") {
		t.Errorf("unexpected prefix: %q", name)
	}
	if !strings.HasSuffix(name, ".csv") {
		t.Errorf("expected .csv suffix: %q", name)
	}
	if other := ObjectName("u1", now); other == name {
		t.Error("object names must be unique per export")
	}
}
