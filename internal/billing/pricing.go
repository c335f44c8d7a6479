package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
)

// LineAmounts are the computed money values for one line, rounded to
// two decimal places for storage and display.
type LineAmounts struct {
	Base            decimal.Decimal `json:"base"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	NetTotal        decimal.Decimal `json:"net_total"`
}

// lineComponents keeps full precision; rounding happens only when the
// final figures are produced.
type lineComponents struct {
	base     decimal.Decimal
	discount decimal.Decimal
	percent  decimal.Decimal
	tax      decimal.Decimal
}

func validateDiscount(d DiscountInput) error {
	switch d.Mode {
	case DiscountModeNone:
		return nil
	case DiscountModePercent:
		if d.Percent.IsNegative() || d.Percent.GreaterThan(hundred) {
			return fmt.Errorf("%w: discount percent must be between 0 and 100", ErrValidation)
		}
	case DiscountModeAmount:
		if d.Amount.IsNegative() {
			return fmt.Errorf("%w: discount amount must not be negative", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown discount mode %q", ErrValidation, d.Mode)
	}
	return nil
}

// computeLineComponents prices a single line. The discount mode decides
// which client figure is authoritative; the counterpart is derived from
// the basis the discount was taken against.
func computeLineComponents(qty int64, unitPrice, taxPercent decimal.Decimal, disc DiscountInput, timing DiscountTiming) (lineComponents, error) {
	if qty < 0 {
		return lineComponents{}, ErrInvalidLineQuantity
	}
	if unitPrice.IsNegative() {
		return lineComponents{}, fmt.Errorf("%w: unit price must not be negative", ErrValidation)
	}
	if taxPercent.IsNegative() || taxPercent.GreaterThan(hundred) {
		return lineComponents{}, fmt.Errorf("%w: tax percent must be between 0 and 100", ErrValidation)
	}
	if err := validateDiscount(disc); err != nil {
		return lineComponents{}, err
	}

	c := lineComponents{base: unitPrice.Mul(decimal.NewFromInt(qty))}

	switch timing {
	case DiscountAfterTax:
		c.tax = c.base.Mul(taxPercent).Div(hundred)
		basis := c.base.Add(c.tax)
		c.discount, c.percent = resolveDiscount(disc, basis)
		if c.discount.GreaterThan(basis) {
			return lineComponents{}, fmt.Errorf("%w: discount exceeds line amount", ErrValidation)
		}
	default: // before tax
		c.discount, c.percent = resolveDiscount(disc, c.base)
		if c.discount.GreaterThan(c.base) {
			return lineComponents{}, fmt.Errorf("%w: discount exceeds line amount", ErrValidation)
		}
		c.tax = c.base.Sub(c.discount).Mul(taxPercent).Div(hundred)
	}
	return c, nil
}

// resolveDiscount returns the discount amount and the percent figure,
// deriving whichever side the client did not author.
func resolveDiscount(d DiscountInput, basis decimal.Decimal) (amount, percent decimal.Decimal) {
	switch d.Mode {
	case DiscountModePercent:
		return basis.Mul(d.Percent).Div(hundred), d.Percent
	case DiscountModeAmount:
		if basis.IsZero() {
			return d.Amount, decimal.Zero
		}
		return d.Amount, d.Amount.Div(basis).Mul(hundred)
	}
	return decimal.Zero, decimal.Zero
}

// ComputeLine prices one line in isolation: base = qty x unit price,
// discount per its mode, tax on the taxable base the timing dictates.
// A zero quantity or price yields all-zero amounts, not an error.
func ComputeLine(qty int64, unitPrice, taxPercent decimal.Decimal, disc DiscountInput, timing DiscountTiming) (LineAmounts, error) {
	c, err := computeLineComponents(qty, unitPrice, taxPercent, disc, timing)
	if err != nil {
		return LineAmounts{}, err
	}
	net := c.base.Sub(c.discount).Add(c.tax)
	return LineAmounts{
		Base:            c.base.Round(2),
		DiscountAmount:  c.discount.Round(2),
		DiscountPercent: c.percent.Round(2),
		TaxAmount:       c.tax.Round(2),
		NetTotal:        net.Round(2),
	}, nil
}
