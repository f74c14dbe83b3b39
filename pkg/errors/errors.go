// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNoResult             = errors.New("no settlement result")
	ErrConservationViolated = errors.New("conservation invariant violated")
	ErrNotReduced           = errors.New("ledger is not balance-reduced")
	ErrUnknownStrategy      = errors.New("unknown settlement strategy")
	ErrSettlementNotFound   = errors.New("settlement not found")

	// Input errors
	ErrInvalidWeight      = errors.New("transaction weight must be positive")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrSelfPayment        = errors.New("giver and receiver must differ")
	ErrEmptyName          = errors.New("participant name is empty")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrMalformedRecord    = errors.New("malformed ledger record")
	ErrCacheMiss          = errors.New("cache miss")
	ErrDuplicateRequest   = errors.New("duplicate request in progress")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
