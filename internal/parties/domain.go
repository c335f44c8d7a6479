// Package parties keeps the customer and supplier directory a business
// attaches its documents to.
package parties

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("parties: not found")
	ErrValidation   = errors.New("parties: invalid input")
	ErrUnauthorized = errors.New("parties: operation not permitted")
)

// Kind distinguishes customers from suppliers. A party may only appear
// on document kinds matching its side of the ledger by convention; the
// engine does not enforce it.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindSupplier Kind = "supplier"
)

// Valid reports whether the kind is known.
func (k Kind) Valid() bool {
	return k == KindCustomer || k == KindSupplier
}

// Party is one directory entry.
type Party struct {
	ID         int64      `json:"id"`
	BusinessID int64      `json:"business_id"`
	Kind       Kind       `json:"kind"`
	Name       string     `json:"name"`
	Email      string     `json:"email,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	Address    string     `json:"address,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// CreatePartyRequest registers a directory entry.
type CreatePartyRequest struct {
	BusinessID int64  `json:"business_id" validate:"required,gt=0"`
	Kind       Kind   `json:"kind" validate:"required"`
	Name       string `json:"name" validate:"required,max=200"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string `json:"phone,omitempty" validate:"max=50"`
	Address    string `json:"address,omitempty" validate:"max=500"`
}

// UpdatePartyRequest edits a directory entry. Kind is immutable.
type UpdatePartyRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=500"`
}
