package messaging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ivaldobatista/CashflowEngine/internal/domain"
)

// Producers without a zone designator are read as UTC.
const timestampNoZone = "2006-01-02T15:04:05.999999999"

// wireEvent mirrors the JSON body published on the transactions exchange.
// Field names match case-insensitively.
type wireEvent struct {
	TransactionID *string         `json:"transactionId"`
	Amount        json.RawMessage `json:"amount"`
	Type          *string         `json:"type"`
	TimestampUTC  *string         `json:"timestampUtc"`
}

// DecodeTransactionEvent parses a delivery body. Every failure wraps domain.ErrDecode.
func DecodeTransactionEvent(raw []byte) (domain.TransactionEvent, error) {
	var w wireEvent

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return domain.TransactionEvent{}, decodeErr("malformed json: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return domain.TransactionEvent{}, decodeErr("unexpected data after event")
	}

	if w.TransactionID == nil || strings.TrimSpace(*w.TransactionID) == "" {
		return domain.TransactionEvent{}, decodeErr("missing transactionId")
	}
	if w.Type == nil {
		return domain.TransactionEvent{}, decodeErr("missing type")
	}
	if w.TimestampUTC == nil {
		return domain.TransactionEvent{}, decodeErr("missing timestampUtc")
	}

	amount, err := parseAmount(w.Amount)
	if err != nil {
		return domain.TransactionEvent{}, err
	}

	ts, err := parseTimestamp(*w.TimestampUTC)
	if err != nil {
		return domain.TransactionEvent{}, err
	}

	return domain.TransactionEvent{
		ID:           *w.TransactionID,
		Amount:       amount,
		Type:         domain.ParseTransactionType(*w.Type),
		TimestampUTC: ts,
	}, nil
}

// EncodeTransactionEvent renders e in the wire format read by DecodeTransactionEvent.
func EncodeTransactionEvent(e domain.TransactionEvent) ([]byte, error) {
	return json.Marshal(struct {
		TransactionID string      `json:"transactionId"`
		Amount        json.Number `json:"amount"`
		Type          string      `json:"type"`
		TimestampUTC  string      `json:"timestampUtc"`
	}{
		TransactionID: e.ID,
		Amount:        json.Number(e.Amount.String()),
		Type:          e.Type.String(),
		TimestampUTC:  e.TimestampUTC.UTC().Format(time.RFC3339Nano),
	})
}

// parseAmount accepts a JSON number or a numeric string within the store's precision.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, decodeErr("missing amount")
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero, decodeErr("amount: %v", err)
		}
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero, decodeErr("amount %s is not numeric", raw)
	}
	if !amount.IsPositive() {
		return decimal.Zero, decodeErr("amount %s must be positive", amount)
	}
	// Must fit the numeric(18,2) balance column exactly.
	if err := domain.ValidateAmount(amount); err != nil {
		return decimal.Zero, decodeErr("amount %s: %v", amount, err)
	}
	return amount, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.ParseInLocation(timestampNoZone, s, time.UTC); err == nil {
		return ts, nil
	}
	return time.Time{}, decodeErr("timestampUtc %q is not an ISO-8601 instant", s)
}

func decodeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrDecode, fmt.Sprintf(format, args...))
}
