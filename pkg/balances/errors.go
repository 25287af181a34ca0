package balances

import (
	"errors"
	"fmt"
	"time"

	"github.com/mcclellann/advledger/pkg/models"
	"github.com/shopspring/decimal"
)

// Sentinel reasons carried by ValidationError and InvalidStateError. Use with errors.Is.
var (
	ErrOutOfOrder        = errors.New("event date precedes already processed days")
	ErrBeyondEndDate     = errors.New("event date is after the end date")
	ErrNonPositiveAmount = errors.New("event amount must be greater than zero")
	ErrUnknownKind       = errors.New("unknown event kind")
	ErrFinished          = errors.New("calculation already finished")
)

// ValidationError is returned by Submit when an event is rejected.
// The calculator state is left untouched.
type ValidationError struct {
	Reason error
	Date   time.Time
	Kind   models.EventKind
	Amount decimal.Decimal
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rejected %s event dated %s with amount %s: %v",
		e.Kind, e.Date.Format(models.DateLayout), e.Amount, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// InvalidStateError is returned when the calculator is used after Finish.
type InvalidStateError struct {
	Op string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrFinished)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrFinished
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInvalidState reports whether err is (or wraps) an InvalidStateError.
func IsInvalidState(err error) bool {
	var se *InvalidStateError
	return errors.As(err, &se)
}
