package core

// TotalsPolicy holds the product-policy switches of the calculator.
type TotalsPolicy struct {
	// FloorNetTotalAtZero clamps a negative net total to zero. Off by default:
	// a discount larger than the grand total yields a negative net total.
	FloorNetTotalAtZero bool
}

// Calculator derives invoice totals. It is a value type with no state besides its policy,
// so the same instance can serve persistence, previews and rendering concurrently.
type Calculator struct {
	policy TotalsPolicy
}

// NewCalculator creates a calculator with the given policy.
func NewCalculator(policy TotalsPolicy) Calculator {
	return Calculator{policy: policy}
}

// Policy returns the calculator's policy.
func (c Calculator) Policy() TotalsPolicy {
	return c.policy
}

// ComputeTotals runs the default calculator.
func ComputeTotals(items []LineItem, serviceCharge, vat ChargeSpec, specialDiscount Amount) TotalsResult {
	return Calculator{}.Compute(items, serviceCharge, vat, specialDiscount)
}

// Compute derives subtotal, charges, grand total and net total.
//
// Every line total is recomputed as quantity x unit price; stored line totals are ignored.
// A charge of kind "percentage" is value% of the subtotal, any other kind is the flat value.
// A negative discount counts as zero.
func (c Calculator) Compute(items []LineItem, serviceCharge, vat ChargeSpec, specialDiscount Amount) TotalsResult {
	var subtotal Amount
	for _, it := range items {
		subtotal = subtotal.Add(LineTotal(it.Quantity, it.UnitPrice))
	}

	sc := ChargeAmount(serviceCharge, subtotal)
	va := ChargeAmount(vat, subtotal)
	grand := subtotal.Add(sc).Add(va)

	discount := specialDiscount
	if discount.IsNegative() {
		discount = Amount{}
	}

	net := grand.Sub(discount)
	if c.policy.FloorNetTotalAtZero && net.IsNegative() {
		net = Amount{}
	}

	return TotalsResult{
		Subtotal:            subtotal,
		ServiceChargeAmount: sc,
		VATAmount:           va,
		GrandTotal:          grand,
		SpecialDiscount:     discount,
		NetTotal:            net,
	}
}

// ComputeRecord computes the totals of a whole record.
func (c Calculator) ComputeRecord(rec InvoiceRecord) TotalsResult {
	return c.Compute(rec.Items, rec.ServiceCharge, rec.VAT, rec.SpecialDiscount)
}

// Apply returns a copy of rec whose derived fields (line totals and computed charges)
// match totals. The input record is left untouched.
func (c Calculator) Apply(rec InvoiceRecord) (InvoiceRecord, TotalsResult) {
	out := rec.Clone()
	for i := range out.Items {
		out.Items[i].LineTotal = LineTotal(out.Items[i].Quantity, out.Items[i].UnitPrice)
	}
	totals := c.ComputeRecord(out)
	out.ServiceCharge.Computed = totals.ServiceChargeAmount
	out.VAT.Computed = totals.VATAmount
	return out, totals
}

// ChargeAmount resolves a charge against a subtotal.
func ChargeAmount(spec ChargeSpec, subtotal Amount) Amount {
	if spec.Kind == ChargePercentage {
		return subtotal.Percent(spec.Value)
	}
	return spec.Value
}

// LineTotal is quantity x unit price.
func LineTotal(quantity, unitPrice Amount) Amount {
	return quantity.Mul(unitPrice)
}
