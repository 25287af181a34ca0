package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/mcclellann/advledger/pkg/balances"
	"github.com/mcclellann/advledger/pkg/models"
	"github.com/mcclellann/advledger/pkg/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger handles recording events and computing balances from them.
type Ledger struct {
	storage  store.Storage
	log      *zap.Logger
	calcOpts []balances.Option
	now      func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger; it is also handed to every calculator.
func WithLogger(l *zap.Logger) Option {
	return func(led *Ledger) {
		if l != nil {
			led.log = l
		}
	}
}

// WithCalculatorOptions sets the options used for every balances calculation.
func WithCalculatorOptions(opts ...balances.Option) Option {
	return func(led *Ledger) {
		led.calcOpts = append(led.calcOpts, opts...)
	}
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, opts ...Option) *Ledger {
	l := &Ledger{
		storage: s,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordAdvance stores an advance disbursed on date.
func (l *Ledger) RecordAdvance(ctx context.Context, date time.Time, amount decimal.Decimal) (*models.Event, error) {
	return l.record(ctx, models.EventKindAdvance, date, amount)
}

// RecordPayment stores a payment received on date.
func (l *Ledger) RecordPayment(ctx context.Context, date time.Time, amount decimal.Decimal) (*models.Event, error) {
	return l.record(ctx, models.EventKindPayment, date, amount)
}

func (l *Ledger) record(ctx context.Context, kind models.EventKind, date time.Time, amount decimal.Decimal) (*models.Event, error) {
	event := &models.Event{Kind: kind, Amount: amount, Date: models.Day(date)}
	if err := validateEvent(event); err != nil {
		return nil, err
	}
	event.CreatedAt = l.now().UTC()

	if err := l.storage.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", kind, err)
	}
	l.log.Info("event recorded",
		zap.Stringer("id", event.ID),
		zap.Stringer("type", event.Kind),
		zap.String("date", event.Date.Format(models.DateLayout)),
		zap.String("amount", event.Amount.String()),
	)
	return event, nil
}

// Import stores events in a single batch and returns how many were stored.
func (l *Ledger) Import(ctx context.Context, events []models.Event) (int, error) {
	batch := make([]*models.Event, 0, len(events))
	createdAt := l.now().UTC()
	for i := range events {
		event := events[i]
		if err := validateEvent(&event); err != nil {
			return 0, fmt.Errorf("event %d: %w", i+1, err)
		}
		event.CreatedAt = createdAt
		batch = append(batch, &event)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if err := l.storage.CreateEvents(ctx, batch); err != nil {
		return 0, fmt.Errorf("failed to import events: %w", err)
	}
	l.log.Info("events imported", zap.Int("count", len(batch)))
	return len(batch), nil
}

// Balances computes the balances as of endDate from every stored event dated
// on or before it.
func (l *Ledger) Balances(ctx context.Context, endDate time.Time) (*models.BalancesResult, error) {
	endDate = models.Day(endDate)
	events, err := l.storage.GetEventsAsOf(ctx, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	opts := append([]balances.Option{balances.WithLogger(l.log.Named("balances"))}, l.calcOpts...)
	calc := balances.NewCalculator(endDate, opts...)
	for _, event := range events {
		if err := calc.Submit(event.Date, event.Kind, event.Amount); err != nil {
			return nil, fmt.Errorf("event %s: %w", event.ID, err)
		}
	}

	res, err := calc.Finish()
	if err != nil {
		return nil, err
	}
	l.log.Info("balances calculated",
		zap.String("end_date", endDate.Format(models.DateLayout)),
		zap.Int("events", len(events)),
		zap.Int("advances", len(res.Advances)),
	)
	return res, nil
}

// validateEvent applies the checks that do not depend on other events. Ordering
// and horizon checks happen when balances are calculated.
func validateEvent(event *models.Event) error {
	if !event.Kind.Valid() {
		return &balances.ValidationError{Reason: balances.ErrUnknownKind, Date: event.Date, Kind: event.Kind, Amount: event.Amount}
	}
	if !event.Amount.IsPositive() {
		return &balances.ValidationError{Reason: balances.ErrNonPositiveAmount, Date: event.Date, Kind: event.Kind, Amount: event.Amount}
	}
	return nil
}
