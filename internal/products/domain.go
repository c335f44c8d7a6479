// Package products manages the per-business SKU catalog. Quantity on
// hand is owned by the invoicing engine; this package only seeds it
// with an opening balance at creation time.
package products

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned for unknown or soft-deleted products.
	ErrNotFound = errors.New("products: not found")
	// ErrDuplicateCode is returned when a code is already taken within
	// the business.
	ErrDuplicateCode = errors.New("products: code already in use")
	// ErrValidation marks malformed input.
	ErrValidation = errors.New("products: invalid input")
	// ErrUnauthorized is returned when the caller lacks access.
	ErrUnauthorized = errors.New("products: operation not permitted")
	// ErrInUse is returned when deletion would orphan live invoice lines.
	ErrInUse = errors.New("products: referenced by live documents")
)

var hundredPct = decimal.NewFromInt(100)

// Product is one sellable or purchasable SKU.
type Product struct {
	ID          int64           `json:"id"`
	BusinessID  int64           `json:"business_id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxPercent  decimal.Decimal `json:"tax_percent"`
	QtyOnHand   int64           `json:"qty_on_hand"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

// CreateProductRequest registers a new SKU. OpeningQty seeds the stock
// balance once; later movements come only from documents.
type CreateProductRequest struct {
	BusinessID  int64           `json:"business_id" validate:"required,gt=0"`
	Code        string          `json:"code" validate:"required,max=50"`
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description,omitempty" validate:"max=2000"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxPercent  decimal.Decimal `json:"tax_percent"`
	OpeningQty  int64           `json:"opening_qty" validate:"gte=0"`
}

// UpdateProductRequest edits catalog attributes. Stock is deliberately
// absent.
type UpdateProductRequest struct {
	Code        *string          `json:"code,omitempty" validate:"omitempty,max=50"`
	Name        *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	TaxPercent  *decimal.Decimal `json:"tax_percent,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

// ListProductsRequest filters the catalog.
type ListProductsRequest struct {
	BusinessID int64  `validate:"required,gt=0"`
	Search     string `validate:"max=200"`
	ActiveOnly bool
	Limit      int `validate:"gte=0,lte=1000"`
	Offset     int `validate:"gte=0"`
}
