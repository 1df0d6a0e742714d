package feed

import (
	"testing"
	"time"

	"github.com/harborbank/demo/internal/domain"
)

func TestDecodeInsert(t *testing.T) {
	date := time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payload map[string]interface{}
		wantErr bool
	}{
		{
			name: "full row",
			payload: map[string]interface{}{
				"id": "srv-1", "user_id": "u1", "date": date.Format(time.RFC3339Nano),
				"type": "transfer", "amount": "250.50", "status": "pending",
				"account_id": "A1", "from_account": "A1", "to_account": "A2",
				"description": "Savings top-up",
			},
		},
		{
			name: "amount as float after json round-trip",
			payload: map[string]interface{}{
				"id": "srv-2", "type": "deposit", "amount": 99.9,
				"status": "completed", "account_id": "A1",
			},
		},
		{
			name: "missing id",
			payload: map[string]interface{}{
				"type": "deposit", "amount": "1", "status": "completed", "account_id": "A1",
			},
			wantErr: true,
		},
		{
			name: "unknown type",
			payload: map[string]interface{}{
				"id": "srv-3", "type": "teleport", "amount": "1",
				"status": "completed", "account_id": "A1",
			},
			wantErr: true,
		},
		{
			name: "unknown status",
			payload: map[string]interface{}{
				"id": "srv-4", "type": "deposit", "amount": "1",
				"status": "definitely", "account_id": "A1",
			},
			wantErr: true,
		},
		{
			name: "unparseable amount",
			payload: map[string]interface{}{
				"id": "srv-5", "type": "deposit", "amount": "lots",
				"status": "completed", "account_id": "A1",
			},
			wantErr: true,
		},
		{
			name: "unparseable date",
			payload: map[string]interface{}{
				"id": "srv-6", "type": "deposit", "amount": "1",
				"status": "completed", "account_id": "A1", "date": "yesterday",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := decodeInsert(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeInsert() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if row.ID != tt.payload["id"] {
				t.Errorf("id = %q, want %q", row.ID, tt.payload["id"])
			}
		})
	}
}

func TestDecodeInsert_NullableDate(t *testing.T) {
	row, err := decodeInsert(map[string]interface{}{
		"id": "srv-1", "type": "deposit", "amount": "1",
		"status": "completed", "account_id": "A1",
	})
	if err != nil {
		t.Fatalf("decodeInsert: %v", err)
	}
	if row.Date != nil {
		t.Errorf("expected nil date for payload without one, got %v", row.Date)
	}
}

func TestDecodeUpdate(t *testing.T) {
	id, patch, err := decodeUpdate(map[string]interface{}{
		"id":     "srv-1",
		"status": "completed",
	})
	if err != nil {
		t.Fatalf("decodeUpdate: %v", err)
	}
	if id != "srv-1" {
		t.Errorf("id = %q", id)
	}
	if patch.Status == nil || *patch.Status != domain.StatusCompleted {
		t.Errorf("patch.Status = %v", patch.Status)
	}
	if patch.Date != nil {
		t.Errorf("patch.Date should be nil, got %v", patch.Date)
	}
}

func TestDecodeUpdate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]interface{}
	}{
		{"missing id", map[string]interface{}{"status": "completed"}},
		{"no tracked fields", map[string]interface{}{"id": "srv-1", "memo": "x"}},
		{"unknown status", map[string]interface{}{"id": "srv-1", "status": "meh"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := decodeUpdate(tt.payload); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}
