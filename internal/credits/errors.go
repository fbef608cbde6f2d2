package credits

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrOfficerNotFound      = errors.New("officer not found")
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrOfficerHasLedger     = errors.New("officer has ledger entries")
	ErrDuplicateMobile      = errors.New("mobile number already registered")
	ErrIdempotencyConflict  = errors.New("idempotency key reused for a different operation")
	ErrConsistencyViolation = errors.New("ledger consistency violation")
	ErrStoreFailure         = errors.New("store failure")
)

// Error codes carried in the "code" field of HTTP error bodies written by this package.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeOfficerNotFound     = "OFFICER_NOT_FOUND"
	CodeOfficerInactive     = "OFFICER_INACTIVE"
	CodeStoreFailure        = "STORE_FAILURE"
)

// StoreError wraps a failure of the backing store. The ledger and balance are
// unchanged when a StoreError is returned from a mutation.
type StoreError struct {
	Op            string
	OfficerID     string
	TransactionID string
	Err           error
}

func (e *StoreError) Error() string {
	msg := "store: " + e.Op
	if e.OfficerID != "" {
		msg += " officer=" + e.OfficerID
	}
	if e.TransactionID != "" {
		msg += " transaction=" + e.TransactionID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreFailure }

func storeErr(op, officerID, txID string, err error) error {
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, OfficerID: officerID, TransactionID: txID, Err: err}
}

// isDomainErr reports errors produced by ledger rules rather than the store.
func isDomainErr(err error) bool {
	for _, target := range []error{
		ErrValidation,
		ErrInvalidAmount,
		ErrOfficerNotFound,
		ErrInsufficientCredits,
		ErrOfficerHasLedger,
		ErrDuplicateMobile,
		ErrIdempotencyConflict,
		ErrConsistencyViolation,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
