package feed

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborbank/demo/internal/backend"
	"github.com/harborbank/demo/internal/domain"
)

// decodeInsert maps an INSERT payload to a persisted row. Feed payloads are
// untyped on the wire, so this is strict: missing required columns or enum
// values outside the known sets fail the decode and the event is dropped.
func decodeInsert(payload map[string]interface{}) (backend.Row, error) {
	id, err := stringField(payload, "id")
	if err != nil {
		return backend.Row{}, err
	}
	typ, err := stringField(payload, "type")
	if err != nil {
		return backend.Row{}, err
	}
	if !domain.ValidType(domain.TransactionType(typ)) {
		return backend.Row{}, fmt.Errorf("unknown transaction type %q", typ)
	}
	status, err := stringField(payload, "status")
	if err != nil {
		return backend.Row{}, err
	}
	if !domain.ValidStatus(domain.TransactionStatus(status)) {
		return backend.Row{}, fmt.Errorf("unknown transaction status %q", status)
	}
	accountID, err := stringField(payload, "account_id")
	if err != nil {
		return backend.Row{}, err
	}
	amount, err := amountField(payload)
	if err != nil {
		return backend.Row{}, err
	}

	row := backend.Row{
		ID:        id,
		Type:      typ,
		Amount:    amount,
		Status:    status,
		AccountID: accountID,
	}
	if v, ok := payload["user_id"].(string); ok {
		row.UserID = v
	}
	if _, ok := payload["date"]; ok {
		date, err := dateField(payload)
		if err != nil {
			return backend.Row{}, err
		}
		row.Date = date
	}
	row.Description = optionalString(payload, "description")
	row.FromAccount = optionalString(payload, "from_account")
	row.ToAccount = optionalString(payload, "to_account")
	return row, nil
}

// decodeUpdate maps an UPDATE payload to an id plus patch. The payload
// carries the id and the changed fields only; an update that changes nothing
// we track is a decode failure so the subscriber drops it.
func decodeUpdate(payload map[string]interface{}) (string, domain.TransactionPatch, error) {
	id, err := stringField(payload, "id")
	if err != nil {
		return "", domain.TransactionPatch{}, err
	}

	var patch domain.TransactionPatch
	if _, ok := payload["status"]; ok {
		status, err := stringField(payload, "status")
		if err != nil {
			return "", domain.TransactionPatch{}, err
		}
		if !domain.ValidStatus(domain.TransactionStatus(status)) {
			return "", domain.TransactionPatch{}, fmt.Errorf("unknown transaction status %q", status)
		}
		s := domain.TransactionStatus(status)
		patch.Status = &s
	}
	if _, ok := payload["date"]; ok {
		date, err := dateField(payload)
		if err != nil {
			return "", domain.TransactionPatch{}, err
		}
		patch.Date = date
	}
	if patch.Status == nil && patch.Date == nil {
		return "", domain.TransactionPatch{}, fmt.Errorf("update for %s carries no tracked fields", id)
	}
	return id, patch, nil
}

func stringField(payload map[string]interface{}, key string) (string, error) {
	v, ok := payload[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("field %q is not a non-empty string", key)
	}
	return s, nil
}

func optionalString(payload map[string]interface{}, key string) *string {
	if s, ok := payload[key].(string); ok && s != "" {
		return &s
	}
	return nil
}

// amountField accepts the decimal string our stores publish and the float
// a JSON round-trip may have turned it into.
func amountField(payload map[string]interface{}) (decimal.Decimal, error) {
	v, ok := payload["amount"]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("missing field %q", "amount")
	}
	switch a := v.(type) {
	case string:
		d, err := decimal.NewFromString(a)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("amount %q: %w", a, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(a), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("amount has unsupported type %T", v)
	}
}

func dateField(payload map[string]interface{}) (*time.Time, error) {
	s, ok := payload["date"].(string)
	if !ok {
		return nil, fmt.Errorf("field %q is not a string", "date")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("date %q: %w", s, err)
	}
	return &t, nil
}
