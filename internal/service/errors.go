package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sentinels for errors.Is checks. The typed errors below carry the details.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("conflict")
	ErrPersistence       = errors.New("persistence failure")
	ErrTimeout           = errors.New("timeout")
)

// ValidationError rejects a malformed request before anything is written
type ValidationError struct {
	Field  string
	Reason string
	Item   *int // index of the offending line item, if any
}

func (e *ValidationError) Error() string {
	if e.Item != nil {
		return fmt.Sprintf("items[%d].%s %s", *e.Item, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type NotFoundError struct {
	Entity string
	ID     uuid.UUID
	Item   *int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InsufficientStockError names the product and how far short the request fell
type InsufficientStockError struct {
	ProductID uuid.UUID
	Available int
	Requested int
	Item      *int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (available: %d, requested: %d)",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Shortfall is the number of units missing to satisfy the request
func (e *InsufficientStockError) Shortfall() int {
	return e.Requested - e.Available
}

type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// PersistenceError wraps an unexpected store failure; the transaction has been rolled back
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transaction did not finish within %s", e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func itemIndex(i int) *int {
	return &i
}

// withItem tags a line-level error with the position of the line in the request
func withItem(err error, i int) error {
	var (
		notFound     *NotFoundError
		insufficient *InsufficientStockError
		invalid      *ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		notFound.Item = itemIndex(i)
	case errors.As(err, &insufficient):
		insufficient.Item = itemIndex(i)
	case errors.As(err, &invalid):
		invalid.Item = itemIndex(i)
	}
	return err
}
