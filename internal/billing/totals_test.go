package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotalsSingleLine(t *testing.T) {
	lines := []PricedLine{{Qty: 4, UnitPrice: dec("100"), TaxPercent: dec("18")}}
	got, err := ComputeTotals(lines, GlobalDiscount{}, nil, RoundingSetting{})
	require.NoError(t, err)

	assert.True(t, got.Subtotal.Equal(dec("400")))
	assert.True(t, got.TaxTotal.Equal(dec("72")))
	assert.True(t, got.TotalAmount.Equal(dec("472")), "total = %s", got.TotalAmount)
	require.Len(t, got.Lines, 1)
	assert.True(t, got.Lines[0].NetTotal.Equal(dec("472")))
}

func TestComputeTotalsGlobalDiscountBeforeTax(t *testing.T) {
	// 10% off 1000 before tax: taxable 900, tax 162, total 1062.
	lines := []PricedLine{{Qty: 1, UnitPrice: dec("1000"), TaxPercent: dec("18")}}
	global := GlobalDiscount{
		DiscountInput: DiscountInput{Mode: DiscountModePercent, Percent: dec("10")},
		Timing:        DiscountBeforeTax,
	}
	got, err := ComputeTotals(lines, global, nil, RoundingSetting{})
	require.NoError(t, err)

	assert.True(t, got.GlobalDiscountAmt.Equal(dec("100")), "discount = %s", got.GlobalDiscountAmt)
	assert.True(t, got.TaxTotal.Equal(dec("162")), "tax = %s", got.TaxTotal)
	assert.True(t, got.TotalAmount.Equal(dec("1062")), "total = %s", got.TotalAmount)
}

func TestComputeTotalsGlobalDiscountAfterTax(t *testing.T) {
	// Tax on the full 1000 first, flat 100 off the gross afterwards.
	lines := []PricedLine{{Qty: 1, UnitPrice: dec("1000"), TaxPercent: dec("18")}}
	global := GlobalDiscount{
		DiscountInput: DiscountInput{Mode: DiscountModeAmount, Amount: dec("100")},
		Timing:        DiscountAfterTax,
	}
	got, err := ComputeTotals(lines, global, nil, RoundingSetting{})
	require.NoError(t, err)

	assert.True(t, got.TaxTotal.Equal(dec("180")), "tax = %s", got.TaxTotal)
	assert.True(t, got.GlobalDiscountAmt.Equal(dec("100")))
	assert.True(t, got.TotalAmount.Equal(dec("1080")), "total = %s", got.TotalAmount)
}

func TestComputeTotalsChargesAfterDiscounts(t *testing.T) {
	lines := []PricedLine{{Qty: 1, UnitPrice: dec("100"), TaxPercent: dec("18")}}
	charges := []ChargeInput{
		{Name: "shipping", Amount: dec("40")},
		{Name: "handling", Amount: dec("10.50")},
	}
	got, err := ComputeTotals(lines, GlobalDiscount{}, charges, RoundingSetting{})
	require.NoError(t, err)

	assert.True(t, got.ChargeTotal.Equal(dec("50.50")))
	assert.True(t, got.TotalAmount.Equal(dec("168.50")), "total = %s", got.TotalAmount)
}

func TestComputeTotalsAutoRounding(t *testing.T) {
	// 3 x 33.33 + 5% tax = 104.98... -> rounds up to 105.00.
	lines := []PricedLine{{Qty: 3, UnitPrice: dec("33.33"), TaxPercent: dec("5")}}
	got, err := ComputeTotals(lines, GlobalDiscount{}, nil, RoundingSetting{Mode: RoundingAuto})
	require.NoError(t, err)

	assert.True(t, got.TotalAmount.Equal(got.TotalAmount.Round(0)), "total %s must be whole", got.TotalAmount)
	// Identity: total = sum(line nets) + charges + adjustment.
	sum := decimal.Zero
	for _, la := range got.Lines {
		sum = sum.Add(la.NetTotal)
	}
	assert.True(t, got.TotalAmount.Equal(sum.Add(got.ChargeTotal).Add(got.RoundingAdjustment)))
}

func TestComputeTotalsManualAdjustment(t *testing.T) {
	lines := []PricedLine{{Qty: 1, UnitPrice: dec("100"), TaxPercent: decimal.Zero}}

	add := RoundingSetting{Mode: RoundingManual, Direction: AdjustAdd, Magnitude: dec("0.35")}
	got, err := ComputeTotals(lines, GlobalDiscount{}, nil, add)
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(dec("100.35")))
	assert.True(t, got.RoundingAdjustment.Equal(dec("0.35")))

	sub := RoundingSetting{Mode: RoundingManual, Direction: AdjustSubtract, Magnitude: dec("0.35")}
	got, err = ComputeTotals(lines, GlobalDiscount{}, nil, sub)
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(dec("99.65")))
	assert.True(t, got.RoundingAdjustment.Equal(dec("-0.35")))
}

func TestComputeTotalsManualRequiresDirection(t *testing.T) {
	lines := []PricedLine{{Qty: 1, UnitPrice: dec("100")}}
	_, err := ComputeTotals(lines, GlobalDiscount{}, nil, RoundingSetting{Mode: RoundingManual})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestComputeTotalsMultiLineIdentity(t *testing.T) {
	// Mixed rates and discounts with a before-tax global discount: the
	// stored line nets must still sum to the pre-charge total exactly.
	lines := []PricedLine{
		{Qty: 3, UnitPrice: dec("19.99"), TaxPercent: dec("18")},
		{Qty: 7, UnitPrice: dec("4.35"), TaxPercent: dec("5"),
			Discount: DiscountInput{Mode: DiscountModePercent, Percent: dec("7.5")}},
		{Qty: 1, UnitPrice: dec("250"), TaxPercent: decimal.Zero,
			Discount: DiscountInput{Mode: DiscountModeAmount, Amount: dec("12.34")}},
	}
	global := GlobalDiscount{
		DiscountInput: DiscountInput{Mode: DiscountModePercent, Percent: dec("3")},
		Timing:        DiscountBeforeTax,
	}
	charges := []ChargeInput{{Name: "freight", Amount: dec("25")}}

	got, err := ComputeTotals(lines, global, charges, RoundingSetting{Mode: RoundingAuto})
	require.NoError(t, err)

	sum := decimal.Zero
	for _, la := range got.Lines {
		sum = sum.Add(la.NetTotal)
	}
	want := sum.Add(got.ChargeTotal).Add(got.RoundingAdjustment)
	assert.True(t, got.TotalAmount.Equal(want), "total %s vs identity %s", got.TotalAmount, want)
}

func TestComputeTotalsGlobalDiscountTooLarge(t *testing.T) {
	lines := []PricedLine{{Qty: 1, UnitPrice: dec("100")}}
	global := GlobalDiscount{
		DiscountInput: DiscountInput{Mode: DiscountModeAmount, Amount: dec("500")},
		Timing:        DiscountBeforeTax,
	}
	_, err := ComputeTotals(lines, global, nil, RoundingSetting{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestComputeTotalsRequiresLines(t *testing.T) {
	_, err := ComputeTotals(nil, GlobalDiscount{}, nil, RoundingSetting{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}
