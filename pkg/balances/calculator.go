// Package balances computes advance balances, interest payable, interest paid and
// credit for future advances from an ordered stream of advance and payment events.
//
// Events are submitted one at a time in non-decreasing date order. Whenever an
// event moves past the last closed day, the pending payments are applied and
// interest is accrued for every elapsed day before the event is recorded.
// Finish closes the remaining days up to the end date and returns the snapshot.
package balances

import (
	"time"

	"github.com/mcclellann/advledger/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultDailyRate is the simple (non-compounding) interest rate accrued per day.
var DefaultDailyRate = decimal.RequireFromString("0.00035")

const (
	day           = 24 * time.Hour
	secondsPerDay = 24 * 60 * 60
)

type advance struct {
	date     time.Time
	original decimal.Decimal
	balance  decimal.Decimal
}

// Calculator is a single-use, single-owner balances engine. It is not safe for
// concurrent use.
type Calculator struct {
	endDate      time.Time
	dailyRate    decimal.Decimal
	trackApplied bool
	log          *zap.Logger

	advances []advance
	// Advances before firstOpen have a zero balance.
	firstOpen   int
	outstanding decimal.Decimal
	pending     []decimal.Decimal

	started    bool
	lastClosed time.Time
	lastEvent  time.Time

	interestPayable decimal.Decimal
	interestPaid    decimal.Decimal
	future          decimal.Decimal

	result *models.BalancesResult
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger sets the logger used for debug tracing of day closes and payments.
func WithLogger(l *zap.Logger) Option {
	return func(c *Calculator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithDailyRate overrides DefaultDailyRate.
func WithDailyRate(rate decimal.Decimal) Option {
	return func(c *Calculator) {
		c.dailyRate = rate
	}
}

// WithAppliedInterestTracking credits interest paid with the amount actually
// applied to interest when a payment only partially covers the interest payable
// balance. Without it the remaining interest payable balance is credited instead.
func WithAppliedInterestTracking() Option {
	return func(c *Calculator) {
		c.trackApplied = true
	}
}

// NewCalculator creates a calculator reporting balances as of endDate.
func NewCalculator(endDate time.Time, opts ...Option) *Calculator {
	c := &Calculator{
		endDate:   models.Day(endDate),
		dailyRate: DefaultDailyRate,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LastClosedDate returns the most recent day whose interest has been accrued.
// The boolean is false until the first event has been submitted.
func (c *Calculator) LastClosedDate() (time.Time, bool) {
	return c.lastClosed, c.started
}

// Finished reports whether Finish has been called.
func (c *Calculator) Finished() bool {
	return c.result != nil
}

// Submit validates and applies one event. Advances are recorded immediately,
// payments are queued until the next day close.
func (c *Calculator) Submit(date time.Time, kind models.EventKind, amount decimal.Decimal) error {
	if c.Finished() {
		return &InvalidStateError{Op: "submit"}
	}
	date = models.Day(date)
	if err := c.validate(date, kind, amount); err != nil {
		return err
	}

	if !c.started {
		c.started = true
		c.lastClosed = date.Add(-day)
	}
	if date.After(c.lastClosed) {
		c.closeThrough(date.Add(-day))
	}
	c.lastEvent = date

	switch kind {
	case models.EventKindAdvance:
		c.addAdvance(date, amount)
	case models.EventKindPayment:
		c.pending = append(c.pending, amount)
	}
	return nil
}

func (c *Calculator) validate(date time.Time, kind models.EventKind, amount decimal.Decimal) error {
	var reason error
	switch {
	case !kind.Valid():
		reason = ErrUnknownKind
	case !amount.IsPositive():
		reason = ErrNonPositiveAmount
	case date.After(c.endDate):
		reason = ErrBeyondEndDate
	case c.started && (date.Before(c.lastClosed) || date.Before(c.lastEvent)):
		reason = ErrOutOfOrder
	}
	if reason == nil {
		return nil
	}
	return &ValidationError{Reason: reason, Date: date, Kind: kind, Amount: amount}
}

// closeThrough applies the pending payments once, then accrues interest for
// every day after lastClosed up to and including stopDate.
func (c *Calculator) closeThrough(stopDate time.Time) {
	for _, amount := range c.pending {
		c.applyPayment(amount)
	}
	c.pending = c.pending[:0]

	if !c.lastClosed.Before(stopDate) {
		return
	}
	// The balance cannot change inside the gap, so accrual is linear in days.
	// Both dates are UTC midnights; Sub would saturate past ~292 years.
	days := (stopDate.Unix() - c.lastClosed.Unix()) / secondsPerDay
	dailyInterest := c.outstanding.Mul(c.dailyRate)
	c.interestPayable = c.interestPayable.Add(dailyInterest.Mul(decimal.NewFromInt(days)))
	c.lastClosed = stopDate

	c.log.Debug("closed days",
		zap.String("through", stopDate.Format(models.DateLayout)),
		zap.Int64("days", days),
		zap.String("advance_balance", c.outstanding.String()),
		zap.String("daily_interest", dailyInterest.String()),
		zap.String("interest_payable", c.interestPayable.String()),
	)
}

// Finish closes every remaining day through the end date and returns the
// snapshot. It can only be called once.
func (c *Calculator) Finish() (*models.BalancesResult, error) {
	if c.Finished() {
		return nil, &InvalidStateError{Op: "finish"}
	}
	if c.started {
		c.closeThrough(c.endDate)
	}

	res := &models.BalancesResult{
		EndDate:                c.endDate,
		Advances:               make([]models.AdvanceData, 0, len(c.advances)),
		AdvanceBalance:         c.outstanding,
		InterestPayableBalance: c.interestPayable,
		InterestPaid:           c.interestPaid,
		PaymentsForFuture:      c.future,
	}
	for _, a := range c.advances {
		res.Advances = append(res.Advances, models.AdvanceData{
			EventDate:      a.date,
			OriginalAmount: a.original,
			CurrentBalance: a.balance,
		})
	}
	c.result = res

	c.log.Debug("calculation finished",
		zap.String("end_date", c.endDate.Format(models.DateLayout)),
		zap.Int("advances", len(res.Advances)),
	)
	snapshot, _ := c.Result()
	return snapshot, nil
}

// Result returns a copy of the snapshot produced by Finish, or false while the
// calculation is still open.
func (c *Calculator) Result() (*models.BalancesResult, bool) {
	if c.result == nil {
		return nil, false
	}
	cp := *c.result
	cp.Advances = make([]models.AdvanceData, len(c.result.Advances))
	copy(cp.Advances, c.result.Advances)
	return &cp, true
}
