package report

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/mcclellann/advledger/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	res := &models.BalancesResult{
		Advances: []models.AdvanceData{
			{
				EventDate:      time.Date(2021, time.October, 1, 0, 0, 0, 0, time.UTC),
				OriginalAmount: decimal.RequireFromString("100.50"),
				CurrentBalance: decimal.Zero,
			},
		},
		AdvanceBalance:         decimal.Zero,
		InterestPayableBalance: decimal.Zero,
		InterestPaid:           decimal.RequireFromString("0.1407"),
		PaymentsForFuture:      decimal.RequireFromString("19.3593"),
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, res))

	want := "" +
		"Advances:\n" +
		"----------------------------------------------------------\n" +
		"Identifier       Date      Initial Amt     Current Balance\n" +
		"         1 2021-10-01           100.50                0.00\n" +
		"\n" +
		"Summary Statistics:\n" +
		"----------------------------------------------------------\n" +
		"Aggregate Advance Balance:                            0.00\n" +
		"Interest Payable Balance:                             0.00\n" +
		"Total Interest Paid:                                  0.14\n" +
		"Balance Applicable to Future Advances:               19.36\n"
	assert.Equal(t, want, buf.String())
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "0.35", Money(decimal.RequireFromString("0.35175")))
	assert.Equal(t, "0.12", Money(decimal.RequireFromString("0.125")))
	assert.Equal(t, "0.14", Money(decimal.RequireFromString("0.135")))
	assert.Equal(t, "7.00", Money(decimal.NewFromInt(7)))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestWrite_PropagatesWriterError(t *testing.T) {
	err := Write(failingWriter{}, &models.BalancesResult{})
	assert.EqualError(t, err, "closed pipe")
}
