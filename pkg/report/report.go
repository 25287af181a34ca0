// Package report renders a balances result as the fixed-width text table
// printed by the command line.
package report

import (
	"fmt"
	"io"

	"github.com/mcclellann/advledger/pkg/models"
	"github.com/shopspring/decimal"
)

const rule = "----------------------------------------------------------"

// Money formats an amount with two decimals, rounding half to even.
func Money(d decimal.Decimal) string {
	return d.StringFixedBank(2)
}

// Write renders res to w.
func Write(w io.Writer, res *models.BalancesResult) error {
	ew := &errWriter{w: w}

	ew.printf("Advances:\n")
	ew.printf("%s\n", rule)
	ew.printf("%10s%11s%17s%20s\n", "Identifier", "Date", "Initial Amt", "Current Balance")
	for i, a := range res.Advances {
		ew.printf("%10d%11s%17s%20s\n",
			i+1, a.EventDate.Format(models.DateLayout), Money(a.OriginalAmount), Money(a.CurrentBalance))
	}

	ew.printf("\nSummary Statistics:\n")
	ew.printf("%s\n", rule)
	ew.printf("Aggregate Advance Balance: %31s\n", Money(res.AdvanceBalance))
	ew.printf("Interest Payable Balance: %32s\n", Money(res.InterestPayableBalance))
	ew.printf("Total Interest Paid: %37s\n", Money(res.InterestPaid))
	ew.printf("Balance Applicable to Future Advances: %19s\n", Money(res.PaymentsForFuture))
	return ew.err
}

// errWriter keeps the first write error and skips later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
