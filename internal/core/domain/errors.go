package domain

import (
	"errors"
	"fmt"
)

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("validation failed")
	ErrTransientStore    = errors.New("transient store error")
	ErrPurchasePending   = errors.New("purchase with this request id is still pending")
)

// Invalidf builds an error matching ErrValidation.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// StoreError reports a backing-store failure. Whether the operation was applied
// is unknown to the caller.
type StoreError struct {
	Op  string
	Err error
}

func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	return target == ErrTransientStore
}
