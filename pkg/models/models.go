package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used by the store, the loader and the API.
const DateLayout = "2006-01-02"

// EventKind distinguishes advances from payments.
type EventKind int

const (
	EventKindAdvance EventKind = iota + 1
	EventKindPayment
)

// String returns the lowercase name used in CSV files and JSON.
func (k EventKind) String() string {
	switch k {
	case EventKindAdvance:
		return "advance"
	case EventKindPayment:
		return "payment"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Valid reports whether k is one of the known event kinds.
func (k EventKind) Valid() bool {
	return k == EventKindAdvance || k == EventKindPayment
}

// ParseEventKind converts "advance" or "payment" (case-insensitive) to an EventKind.
func ParseEventKind(s string) (EventKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "advance":
		return EventKindAdvance, nil
	case "payment":
		return EventKindPayment, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q", s)
	}
}

// MarshalJSON encodes k as its name.
func (k EventKind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", k)
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts the names understood by ParseEventKind.
func (k *EventKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseEventKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Event is a single advance disbursement or payment receipt.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Kind      EventKind       `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`       // Calendar day, midnight UTC
	CreatedAt time.Time       `json:"created_at"` // When the event was stored
}

// AdvanceData is one advance as seen in a balances result.
type AdvanceData struct {
	EventDate      time.Time       `json:"event_date"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

// BalancesResult is the snapshot produced once all events up to the end date were processed.
type BalancesResult struct {
	EndDate                time.Time       `json:"end_date"`
	Advances               []AdvanceData   `json:"advances"`
	AdvanceBalance         decimal.Decimal `json:"overall_advance_balance"`
	InterestPayableBalance decimal.Decimal `json:"overall_interest_payable_balance"`
	InterestPaid           decimal.Decimal `json:"overall_interest_paid"`
	PaymentsForFuture      decimal.Decimal `json:"overall_payments_for_future"`
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC calendar day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// Today returns the current UTC calendar day.
func Today() time.Time {
	return Day(time.Now().UTC())
}
