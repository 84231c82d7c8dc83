package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func amt(s string) Amount { return ParseAmount(s) }

func item(qty, price string) LineItem {
	return LineItem{Seq: 1, Description: "x", Unit: UnitPCS, Quantity: amt(qty), UnitPrice: amt(price)}
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name     string
		items    []LineItem
		sc, vat  ChargeSpec
		discount string
		want     TotalsResult
	}{
		{
			name:  "percentage service charge",
			items: []LineItem{item("2", "50")},
			sc:    ChargeSpec{Kind: ChargePercentage, Value: amt("10")},
			vat:   ChargeSpec{Kind: ChargeFixed, Value: amt("0")},
			want: TotalsResult{
				Subtotal: amt("100"), ServiceChargeAmount: amt("10"), VATAmount: amt("0"),
				GrandTotal: amt("110"), SpecialDiscount: amt("0"), NetTotal: amt("110"),
			},
		},
		{
			name:  "fixed service charge ignores subtotal",
			items: []LineItem{item("2", "50")},
			sc:    ChargeSpec{Kind: ChargeFixed, Value: amt("25")},
			vat:   ChargeSpec{Kind: ChargeFixed},
			want: TotalsResult{
				Subtotal: amt("100"), ServiceChargeAmount: amt("25"), VATAmount: amt("0"),
				GrandTotal: amt("125"), SpecialDiscount: amt("0"), NetTotal: amt("125"),
			},
		},
		{
			name:     "vat percentage and discount",
			items:    []LineItem{item("3", "19.99"), item("1", "0.03")},
			sc:       ChargeSpec{Kind: ChargeFixed, Value: amt("5")},
			vat:      ChargeSpec{Kind: ChargePercentage, Value: amt("15")},
			discount: "10",
			want: TotalsResult{
				Subtotal: amt("60"), ServiceChargeAmount: amt("5"), VATAmount: amt("9"),
				GrandTotal: amt("74"), SpecialDiscount: amt("10"), NetTotal: amt("64"),
			},
		},
		{
			name:     "discount larger than grand total goes negative",
			items:    []LineItem{item("1", "10")},
			discount: "25",
			want: TotalsResult{
				Subtotal: amt("10"), ServiceChargeAmount: amt("0"), VATAmount: amt("0"),
				GrandTotal: amt("10"), SpecialDiscount: amt("25"), NetTotal: amt("-15"),
			},
		},
		{
			name:     "negative discount counts as zero",
			items:    []LineItem{item("1", "10")},
			discount: "-5",
			want: TotalsResult{
				Subtotal: amt("10"), GrandTotal: amt("10"), NetTotal: amt("10"),
			},
		},
		{
			name:  "unknown charge kind is treated as fixed",
			items: []LineItem{item("1", "200")},
			sc:    ChargeSpec{Kind: "weird", Value: amt("7")},
			want: TotalsResult{
				Subtotal: amt("200"), ServiceChargeAmount: amt("7"), GrandTotal: amt("207"), NetTotal: amt("207"),
			},
		},
		{
			name:  "no items",
			items: nil,
			want:  TotalsResult{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(tt.items, tt.sc, tt.vat, amt(tt.discount))
			assertTotals(t, tt.want, got)
		})
	}
}

func assertTotals(t *testing.T, want, got TotalsResult) {
	t.Helper()
	assert.True(t, want.Subtotal.Equal(got.Subtotal), "subtotal: want %s got %s", want.Subtotal, got.Subtotal)
	assert.True(t, want.ServiceChargeAmount.Equal(got.ServiceChargeAmount), "service charge: want %s got %s", want.ServiceChargeAmount, got.ServiceChargeAmount)
	assert.True(t, want.VATAmount.Equal(got.VATAmount), "vat: want %s got %s", want.VATAmount, got.VATAmount)
	assert.True(t, want.GrandTotal.Equal(got.GrandTotal), "grand: want %s got %s", want.GrandTotal, got.GrandTotal)
	assert.True(t, want.SpecialDiscount.Equal(got.SpecialDiscount), "discount: want %s got %s", want.SpecialDiscount, got.SpecialDiscount)
	assert.True(t, want.NetTotal.Equal(got.NetTotal), "net: want %s got %s", want.NetTotal, got.NetTotal)
}

func TestComputeTotals_IgnoresStoredLineTotal(t *testing.T) {
	it := item("4", "2.5")
	it.LineTotal = amt("999")

	got := ComputeTotals([]LineItem{it}, ChargeSpec{}, ChargeSpec{}, Amount{})
	assert.Equal(t, "10", got.Subtotal.String())
}

func TestComputeTotals_Invariants(t *testing.T) {
	kinds := []ChargeKind{ChargeFixed, ChargePercentage}
	values := []string{"0", "2.5", "15", "100"}
	items := []LineItem{item("3", "33.33"), item("0.5", "1200"), item("7", "0")}

	for _, sk := range kinds {
		for _, vk := range kinds {
			for _, sv := range values {
				for _, vv := range values {
					got := ComputeTotals(items, ChargeSpec{Kind: sk, Value: amt(sv)}, ChargeSpec{Kind: vk, Value: amt(vv)}, amt("12.5"))

					var sum Amount
					for _, it := range items {
						sum = sum.Add(it.Quantity.Mul(it.UnitPrice))
					}
					assert.True(t, got.Subtotal.Equal(sum))
					assert.True(t, got.GrandTotal.Equal(got.Subtotal.Add(got.ServiceChargeAmount).Add(got.VATAmount)))
					assert.True(t, got.NetTotal.Equal(got.GrandTotal.Sub(got.SpecialDiscount)))
				}
			}
		}
	}
}

func TestComputeTotals_Idempotent(t *testing.T) {
	items := []LineItem{item("1.5", "10.10"), item("2", "3")}
	sc := ChargeSpec{Kind: ChargePercentage, Value: amt("12.5")}
	vat := ChargeSpec{Kind: ChargePercentage, Value: amt("7.5")}

	first := ComputeTotals(items, sc, vat, amt("1"))
	second := ComputeTotals(items, sc, vat, amt("1"))
	assert.Equal(t, first, second)
}

func TestCalculator_FloorNetTotal(t *testing.T) {
	calc := NewCalculator(TotalsPolicy{FloorNetTotalAtZero: true})
	got := calc.Compute([]LineItem{item("1", "10")}, ChargeSpec{}, ChargeSpec{}, amt("50"))
	assert.True(t, got.NetTotal.IsZero())
	assert.Equal(t, "50", got.SpecialDiscount.String())
}

func TestCalculator_Apply(t *testing.T) {
	rec := InvoiceRecord{
		Items:         []LineItem{item("2", "50"), item("1", "5")},
		ServiceCharge: ChargeSpec{Kind: ChargePercentage, Value: amt("10")},
		VAT:           ChargeSpec{Kind: ChargeFixed, Value: amt("3")},
	}

	out, totals := Calculator{}.Apply(rec)

	assert.Equal(t, "100", out.Items[0].LineTotal.String())
	assert.Equal(t, "5", out.Items[1].LineTotal.String())
	assert.Equal(t, "10.5", out.ServiceCharge.Computed.String())
	assert.Equal(t, "3", out.VAT.Computed.String())
	assert.Equal(t, "118.5", totals.NetTotal.String())
	assert.True(t, rec.Items[0].LineTotal.IsZero(), "input record must not be mutated")
}
