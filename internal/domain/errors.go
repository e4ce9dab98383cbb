package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrAccountNotFound   = errors.New("account not found")
	ErrSessionNotFound   = errors.New("payment session not found")
	ErrAlreadyResolved   = errors.New("payment session already resolved")
	ErrAmountMismatch    = errors.New("gateway amount does not match session amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrStorage           = errors.New("storage failure")
)

// InsufficientFundsError carries the amount the operation needed so callers
// can surface a precise message to the end user.
type InsufficientFundsError struct {
	UserID    string
	Required  int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: user %s has %d coins, needs %d", e.UserID, e.Available, e.Required)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// StorageError wraps an infrastructure fault. The outcome of the attempted
// mutation is unknown; callers must re-check state before retrying.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
