package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PricedLine is a line whose product references have already been
// resolved to concrete prices and tax rates.
type PricedLine struct {
	Qty        int64
	UnitPrice  decimal.Decimal
	TaxPercent decimal.Decimal
	Discount   DiscountInput
}

// Totals aggregates one document. The grand total always equals the sum
// of the per-line net totals plus charges plus the rounding adjustment.
type Totals struct {
	Subtotal           decimal.Decimal
	LineDiscountTotal  decimal.Decimal
	GlobalDiscountAmt  decimal.Decimal
	TaxTotal           decimal.Decimal
	ChargeTotal        decimal.Decimal
	RoundingAdjustment decimal.Decimal
	TotalAmount        decimal.Decimal
	Lines              []LineAmounts
}

func validateRounding(r RoundingSetting) error {
	switch r.Mode {
	case RoundingNone, RoundingAuto:
		return nil
	case RoundingManual:
		if r.Direction != AdjustAdd && r.Direction != AdjustSubtract {
			return fmt.Errorf("%w: manual rounding requires direction add or subtract", ErrValidation)
		}
		if r.Magnitude.IsNegative() {
			return fmt.Errorf("%w: rounding magnitude must not be negative", ErrValidation)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown rounding mode %q", ErrValidation, r.Mode)
}

// ComputeTotals prices every line, applies the invoice-level discount,
// charges, and round-off, and returns the aggregate alongside the final
// per-line amounts. A before-tax global discount shrinks each line's
// taxable base pro rata before line taxes are computed; an after-tax
// one is subtracted from the running total after taxes are summed.
// Intermediate math keeps full precision; only the returned figures are
// rounded, and any residual from per-line rounding lands on the last
// line so the aggregate identity holds exactly.
func ComputeTotals(lines []PricedLine, global GlobalDiscount, charges []ChargeInput, rounding RoundingSetting) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, fmt.Errorf("%w: at least one line is required", ErrValidation)
	}
	if err := validateDiscount(global.DiscountInput); err != nil {
		return Totals{}, err
	}
	if err := validateRounding(rounding); err != nil {
		return Totals{}, err
	}
	timing := global.Timing
	if timing == "" {
		timing = DiscountBeforeTax
	}
	if timing != DiscountBeforeTax && timing != DiscountAfterTax {
		return Totals{}, fmt.Errorf("%w: unknown discount timing %q", ErrValidation, timing)
	}

	comps := make([]lineComponents, len(lines))
	subtotal := decimal.Zero
	lineDiscTotal := decimal.Zero
	netBaseTotal := decimal.Zero
	lineTaxTotal := decimal.Zero
	for i, ln := range lines {
		c, err := computeLineComponents(ln.Qty, ln.UnitPrice, ln.TaxPercent, ln.Discount, timing)
		if err != nil {
			return Totals{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		comps[i] = c
		subtotal = subtotal.Add(c.base)
		lineDiscTotal = lineDiscTotal.Add(c.discount)
		netBaseTotal = netBaseTotal.Add(c.base.Sub(c.discount))
		lineTaxTotal = lineTaxTotal.Add(c.tax)
	}

	chargeTotal := decimal.Zero
	for i, ch := range charges {
		if ch.Amount.IsNegative() {
			return Totals{}, fmt.Errorf("%w: charge %d amount must not be negative", ErrValidation, i+1)
		}
		chargeTotal = chargeTotal.Add(ch.Amount)
	}

	out := Totals{Lines: make([]LineAmounts, len(lines))}

	// Full-precision per-line nets; taxes are re-derived when a
	// before-tax global discount scales the taxable bases.
	nets := make([]decimal.Decimal, len(lines))
	taxes := make([]decimal.Decimal, len(lines))
	var globalDisc decimal.Decimal

	switch timing {
	case DiscountBeforeTax:
		globalDisc, _ = resolveDiscount(global.DiscountInput, netBaseTotal)
		if globalDisc.GreaterThan(netBaseTotal) {
			return Totals{}, fmt.Errorf("%w: global discount exceeds document amount", ErrValidation)
		}
		factor := decimal.NewFromInt(1)
		if !netBaseTotal.IsZero() {
			factor = netBaseTotal.Sub(globalDisc).Div(netBaseTotal)
		}
		for i, c := range comps {
			taxable := c.base.Sub(c.discount).Mul(factor)
			taxes[i] = taxable.Mul(lines[i].TaxPercent).Div(hundred)
			nets[i] = taxable.Add(taxes[i])
		}
	case DiscountAfterTax:
		grossTotal := netBaseTotal.Add(lineTaxTotal)
		globalDisc, _ = resolveDiscount(global.DiscountInput, grossTotal)
		if globalDisc.GreaterThan(grossTotal) {
			return Totals{}, fmt.Errorf("%w: global discount exceeds document amount", ErrValidation)
		}
		for i, c := range comps {
			taxes[i] = c.tax
			gross := c.base.Sub(c.discount).Add(c.tax)
			share := decimal.Zero
			if !grossTotal.IsZero() {
				share = globalDisc.Mul(gross).Div(grossTotal)
			}
			nets[i] = gross.Sub(share)
		}
	}

	lineSum := decimal.Zero
	for _, n := range nets {
		lineSum = lineSum.Add(n)
	}
	roundedSum := lineSum.Round(2)

	taxTotal := decimal.Zero
	allocated := decimal.Zero
	for i := range lines {
		la := LineAmounts{
			Base:            comps[i].base.Round(2),
			DiscountAmount:  comps[i].discount.Round(2),
			DiscountPercent: comps[i].percent.Round(2),
			TaxAmount:       taxes[i].Round(2),
			NetTotal:        nets[i].Round(2),
		}
		if i == len(lines)-1 {
			// Residual from rounding each line independently.
			la.NetTotal = roundedSum.Sub(allocated)
		}
		allocated = allocated.Add(la.NetTotal)
		taxTotal = taxTotal.Add(la.TaxAmount)
		out.Lines[i] = la
	}

	total := roundedSum.Add(chargeTotal)

	var adjustment decimal.Decimal
	switch rounding.Mode {
	case RoundingAuto:
		rounded := total.Round(0)
		adjustment = rounded.Sub(total)
		total = rounded
	case RoundingManual:
		if rounding.Direction == AdjustSubtract {
			adjustment = rounding.Magnitude.Neg()
		} else {
			adjustment = rounding.Magnitude
		}
		total = total.Add(adjustment)
	}

	out.Subtotal = subtotal.Round(2)
	out.LineDiscountTotal = lineDiscTotal.Round(2)
	out.GlobalDiscountAmt = globalDisc.Round(2)
	out.TaxTotal = taxTotal
	out.ChargeTotal = chargeTotal.Round(2)
	out.RoundingAdjustment = adjustment.Round(2)
	out.TotalAmount = total.Round(2)
	return out, nil
}
