// Package common: errors.go defines the error taxonomy shared by every
// feature. Handlers switch on these sentinels to tell "not enough credits"
// apart from "something went wrong".
package common

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Ledger errors
var (
	// ErrInsufficientBalance: a debit would take the balance below zero
	ErrInsufficientBalance = errors.New("insufficient credits")
	// ErrInvalidAmount: zero amount, or wrong sign for the entry point
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrStoreUnavailable: the durable store failed; the caller may retry
	ErrStoreUnavailable = errors.New("ledger store unavailable")
)

// Idempotency and reference errors
var (
	// ErrAlreadyProcessed: duplicate webhook, redemption or claim
	ErrAlreadyProcessed = errors.New("already processed")
	// ErrInvalidReference: unknown referral code, task key or order id
	ErrInvalidReference = errors.New("invalid reference")
)

// Award errors
var (
	// ErrSelfReferral: an account tried to redeem its own referral code
	ErrSelfReferral = errors.New("cannot redeem your own referral code")
	// ErrTaskNotCompleted: claim attempted before the task was completed
	ErrTaskNotCompleted = errors.New("task is not completed")
	// ErrAmountMismatch: the payment provider reported a different amount
	ErrAmountMismatch = errors.New("paid amount does not match order")
)

// Access errors
var (
	// ErrUnauthorized: missing or wrong admin key / webhook secret
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMissingAccount: request carried no caller identity
	ErrMissingAccount = errors.New("missing account id")
)

// InsufficientBalanceError carries the numbers the UI needs to show
// "you need N more credits".
type InsufficientBalanceError struct {
	AccountID uuid.UUID
	Required  int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// Shortfall returns how many credits are missing.
func (e *InsufficientBalanceError) Shortfall() int64 {
	if e.Required <= e.Available {
		return 0
	}
	return e.Required - e.Available
}

// StoreError wraps a driver error so that both errors.Is(err, ErrStoreUnavailable)
// and errors.Is(err, <driver error>) hold.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// IsRetryable reports whether re-driving the call may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsClientError reports whether the error was caused by the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidReference) ||
		errors.Is(err, ErrSelfReferral) ||
		errors.Is(err, ErrTaskNotCompleted) ||
		errors.Is(err, ErrAmountMismatch) ||
		errors.Is(err, ErrMissingAccount)
}
