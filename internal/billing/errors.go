package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("billing: invalid input")
	// ErrInvalidLineQuantity marks a negative line quantity.
	ErrInvalidLineQuantity = fmt.Errorf("%w: line quantity must not be negative", ErrValidation)
	// ErrNotFound is returned when a document, product, or referenced
	// original invoice does not exist within the caller's business.
	ErrNotFound = errors.New("billing: not found")
	// ErrUnauthorized is returned when the caller lacks the permission
	// the operation requires.
	ErrUnauthorized = errors.New("billing: operation not permitted")
	// ErrConflict is returned after the engine exhausts its transaction
	// retries against concurrent writers.
	ErrConflict = errors.New("billing: concurrent update conflict")
)

// InsufficientStockError reports which product could not cover the
// requested outbound quantity.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int64
	Requested   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("billing: insufficient stock for %q (product %d): have %d, need %d",
		e.ProductName, e.ProductID, e.Available, e.Requested)
}

// AsInsufficientStock unwraps err into an *InsufficientStockError.
func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}
