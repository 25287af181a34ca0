package balances

import (
	"time"

	"github.com/mcclellann/advledger/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// applyPayment runs one payment through the waterfall: future credit
// absorption, interest payable, advances oldest first, residual future credit.
func (c *Calculator) applyPayment(amount decimal.Decimal) {
	if c.future.IsPositive() {
		c.future = c.future.Add(amount)
		c.log.Debug("payment added to future credit",
			zap.String("amount", amount.String()),
			zap.String("future_credit", c.future.String()),
		)
		return
	}

	remaining := c.payInterest(amount)
	if remaining.IsPositive() {
		remaining = c.payAdvances(remaining)
	}
	if remaining.IsPositive() {
		c.future = remaining
	}

	c.log.Debug("payment applied",
		zap.String("amount", amount.String()),
		zap.String("interest_payable", c.interestPayable.String()),
		zap.String("advance_balance", c.outstanding.String()),
		zap.String("future_credit", c.future.String()),
	)
}

// payInterest applies amount to the interest payable balance and returns what is left.
func (c *Calculator) payInterest(amount decimal.Decimal) decimal.Decimal {
	if !c.interestPayable.IsPositive() {
		return amount
	}
	if amount.GreaterThanOrEqual(c.interestPayable) {
		c.interestPaid = c.interestPaid.Add(c.interestPayable)
		amount = amount.Sub(c.interestPayable)
		c.interestPayable = decimal.Zero
		return amount
	}

	c.interestPayable = c.interestPayable.Sub(amount)
	if c.trackApplied {
		c.interestPaid = c.interestPaid.Add(amount)
	} else {
		// Credits what is still owed rather than what was paid; kept for
		// compatibility with existing reports until product confirms.
		c.interestPaid = c.interestPaid.Add(c.interestPayable)
	}
	return decimal.Zero
}

// payAdvances retires advance balances oldest first and returns what is left.
// The sweep stops at the first advance the amount cannot fully cover.
func (c *Calculator) payAdvances(amount decimal.Decimal) decimal.Decimal {
	for i := c.firstOpen; i < len(c.advances) && amount.IsPositive(); i++ {
		a := &c.advances[i]
		if !a.balance.IsPositive() {
			continue
		}
		if amount.GreaterThan(a.balance) {
			amount = amount.Sub(a.balance)
			c.outstanding = c.outstanding.Sub(a.balance)
			a.balance = decimal.Zero
			continue
		}
		a.balance = a.balance.Sub(amount)
		c.outstanding = c.outstanding.Sub(amount)
		amount = decimal.Zero
	}

	for c.firstOpen < len(c.advances) && !c.advances[c.firstOpen].balance.IsPositive() {
		c.firstOpen++
	}
	return amount
}

// addAdvance records a new advance, netting it against any future credit.
func (c *Calculator) addAdvance(date time.Time, amount decimal.Decimal) {
	balance := amount
	switch {
	case !c.future.IsPositive():
	case amount.LessThanOrEqual(c.future):
		c.future = c.future.Sub(amount)
		balance = decimal.Zero
	default:
		balance = amount.Sub(c.future)
		c.future = decimal.Zero
	}

	c.advances = append(c.advances, advance{
		date:     date,
		original: amount,
		balance:  balance,
	})
	c.outstanding = c.outstanding.Add(balance)

	c.log.Debug("advance recorded",
		zap.String("date", date.Format(models.DateLayout)),
		zap.String("amount", amount.String()),
		zap.String("balance", balance.String()),
		zap.String("future_credit", c.future.String()),
	)
}
