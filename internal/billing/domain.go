package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentKind selects the document family an invoice belongs to. One
// engine serves all four kinds; the kind decides the stock-delta sign
// and the numbering prefix.
type DocumentKind string

const (
	KindSale           DocumentKind = "sale"
	KindPurchase       DocumentKind = "purchase"
	KindSaleReturn     DocumentKind = "sale_return"
	KindPurchaseReturn DocumentKind = "purchase_return"
)

// DocumentKinds lists every supported kind, in numbering-prefix order.
var DocumentKinds = []DocumentKind{KindSale, KindPurchase, KindSaleReturn, KindPurchaseReturn}

// Valid reports whether the kind is one of the supported families.
func (k DocumentKind) Valid() bool {
	switch k {
	case KindSale, KindPurchase, KindSaleReturn, KindPurchaseReturn:
		return true
	}
	return false
}

// Prefix returns the human-readable number prefix for the kind.
func (k DocumentKind) Prefix() string {
	switch k {
	case KindSale:
		return "INV"
	case KindPurchase:
		return "PUR"
	case KindSaleReturn:
		return "SRN"
	case KindPurchaseReturn:
		return "PRN"
	}
	return "DOC"
}

// StockSign is the per-unit effect of the document on quantity-on-hand:
// sales and purchase returns ship stock out, purchases and sale returns
// bring it back in.
func (k DocumentKind) StockSign() int64 {
	switch k {
	case KindSale, KindPurchaseReturn:
		return -1
	case KindPurchase, KindSaleReturn:
		return 1
	}
	return 0
}

// IsReturn reports whether the kind reverses an original invoice.
func (k DocumentKind) IsReturn() bool {
	return k == KindSaleReturn || k == KindPurchaseReturn
}

// PaymentStatus tracks settlement of the document total.
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Valid reports whether the status is a known value.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusPaid:
		return true
	}
	return false
}

// DiscountMode says which of the two discount figures the client last
// edited; that figure is authoritative and the other is derived for
// display only.
type DiscountMode string

const (
	DiscountModeNone    DiscountMode = ""
	DiscountModePercent DiscountMode = "percent"
	DiscountModeAmount  DiscountMode = "amount"
)

// DiscountTiming decides whether discounts shrink the taxable base
// (before tax) or the running total after taxes are summed.
type DiscountTiming string

const (
	DiscountBeforeTax DiscountTiming = "before_tax"
	DiscountAfterTax  DiscountTiming = "after_tax"
)

// RoundingMode selects how the final total is nudged to a round figure.
type RoundingMode string

const (
	RoundingNone   RoundingMode = ""
	RoundingAuto   RoundingMode = "auto"
	RoundingManual RoundingMode = "manual"
)

// AdjustDirection applies to manual rounding only.
type AdjustDirection string

const (
	AdjustAdd      AdjustDirection = "add"
	AdjustSubtract AdjustDirection = "subtract"
)

// DiscountInput is the raw discount a caller supplies for a line or for
// the whole invoice. Both figures are kept so the document reproduces
// its own totals from stored input alone.
type DiscountInput struct {
	Mode    DiscountMode    `json:"mode"`
	Percent decimal.Decimal `json:"percent"`
	Amount  decimal.Decimal `json:"amount"`
}

// GlobalDiscount is the invoice-level discount plus its timing.
type GlobalDiscount struct {
	DiscountInput
	Timing DiscountTiming `json:"timing"`
}

// RoundingSetting is the invoice-level round-off choice.
type RoundingSetting struct {
	Mode      RoundingMode    `json:"mode"`
	Direction AdjustDirection `json:"direction,omitempty"`
	Magnitude decimal.Decimal `json:"magnitude"`
}

// Charge is a named flat amount outside the line tax/discount model.
type Charge struct {
	ID        int64           `json:"id,omitempty"`
	InvoiceID int64           `json:"invoice_id,omitempty"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
}

// Line is one product row on an invoice. Product reference is optional;
// free-text lines carry only a description.
type Line struct {
	ID              int64           `json:"id"`
	InvoiceID       int64           `json:"invoice_id"`
	LineNo          int             `json:"line_no"`
	ProductID       *int64          `json:"product_id,omitempty"`
	Description     string          `json:"description"`
	Qty             int64           `json:"qty"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
	Discount        DiscountInput   `json:"discount"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	NetTotal        decimal.Decimal `json:"net_total"`
}

// Invoice is a finalized commercial document of any DocumentKind.
// Every stored amount is recomputable from the raw inputs the record
// retains (lines, discount settings, charges, rounding choice).
type Invoice struct {
	ID                 int64           `json:"id"`
	PublicID           string          `json:"public_id"`
	BusinessID         int64           `json:"business_id"`
	Kind               DocumentKind    `json:"kind"`
	DocNumber          string          `json:"doc_number"`
	DocSeq             int64           `json:"doc_seq"`
	PartyID            *int64          `json:"party_id,omitempty"`
	OriginalInvoiceID  *int64          `json:"original_invoice_id,omitempty"`
	IssueDate          time.Time       `json:"issue_date"`
	Lines              []Line          `json:"lines"`
	Charges            []Charge        `json:"charges,omitempty"`
	Discount           GlobalDiscount  `json:"discount"`
	Rounding           RoundingSetting `json:"rounding"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	LineDiscountTotal  decimal.Decimal `json:"line_discount_total"`
	GlobalDiscountAmt  decimal.Decimal `json:"global_discount_amount"`
	TaxTotal           decimal.Decimal `json:"tax_total"`
	ChargeTotal        decimal.Decimal `json:"charge_total"`
	RoundingAdjustment decimal.Decimal `json:"rounding_adjustment"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	PaymentStatus      PaymentStatus   `json:"payment_status"`
	AmountReceived     decimal.Decimal `json:"amount_received"`
	Balance            decimal.Decimal `json:"balance"`
	CreatedBy          int64           `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	DeletedAt          *time.Time      `json:"deleted_at,omitempty"`
}

// Product is the engine's view of a stock-managed SKU. Quantity-on-hand
// is mutated exclusively through the engine's transactions.
type Product struct {
	ID         int64
	BusinessID int64
	Name       string
	UnitPrice  decimal.Decimal
	TaxPercent decimal.Decimal
	QtyOnHand  int64
	IsActive   bool
}

// LineInput is the raw line a caller submits.
type LineInput struct {
	ProductID   *int64           `json:"product_id,omitempty"`
	Description string           `json:"description"`
	Qty         int64            `json:"qty"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	TaxPercent  *decimal.Decimal `json:"tax_percent,omitempty"`
	Discount    DiscountInput    `json:"discount"`
}

// ChargeInput is a named flat amount submitted with the document.
type ChargeInput struct {
	Name   string          `json:"name" validate:"required,max=100"`
	Amount decimal.Decimal `json:"amount"`
}

// CreateInvoiceRequest creates a document of the given kind.
type CreateInvoiceRequest struct {
	BusinessID        int64           `json:"business_id" validate:"required,gt=0"`
	Kind              DocumentKind    `json:"kind" validate:"required"`
	PartyID           *int64          `json:"party_id,omitempty"`
	OriginalInvoiceID *int64          `json:"original_invoice_id,omitempty"`
	IssueDate         time.Time       `json:"issue_date"`
	Lines             []LineInput     `json:"lines" validate:"required,min=1"`
	Charges           []ChargeInput   `json:"charges,omitempty" validate:"dive"`
	Discount          GlobalDiscount  `json:"discount"`
	Rounding          RoundingSetting `json:"rounding"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	AmountReceived    decimal.Decimal `json:"amount_received"`
}

// UpdateInvoiceRequest replaces the mutable content of a document.
// Kind, number, and business are immutable after creation.
type UpdateInvoiceRequest struct {
	PartyID        *int64          `json:"party_id,omitempty"`
	IssueDate      *time.Time      `json:"issue_date,omitempty"`
	Lines          []LineInput     `json:"lines" validate:"required,min=1"`
	Charges        []ChargeInput   `json:"charges,omitempty" validate:"dive"`
	Discount       GlobalDiscount  `json:"discount"`
	Rounding       RoundingSetting `json:"rounding"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	AmountReceived decimal.Decimal `json:"amount_received"`
}

// ListInvoicesRequest filters documents of one business and kind.
type ListInvoicesRequest struct {
	BusinessID    int64          `json:"business_id" validate:"required,gt=0"`
	Kind          DocumentKind   `json:"kind"`
	PaymentStatus *PaymentStatus `json:"payment_status,omitempty"`
	DateFrom      *time.Time     `json:"date_from,omitempty"`
	DateTo        *time.Time     `json:"date_to,omitempty"`
	Limit         int            `json:"limit" validate:"gte=0,lte=1000"`
	Offset        int            `json:"offset" validate:"gte=0"`
}
