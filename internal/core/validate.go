package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidationPolicy holds the form-layer thresholds that vary by deployment.
type ValidationPolicy struct {
	// RequirePositivePrice rejects zero-price items. When false, zero is accepted.
	RequirePositivePrice bool
	// AllowZeroQuantity accepts items with quantity 0.
	AllowZeroQuantity bool
}

// ValidationError describes a rejected record, one detail per offending field.
type ValidationError struct {
	Err     error
	Details []FieldError
}

// FieldError is a single rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Err.Error()
	}
	parts := make([]string, len(e.Details))
	for i, d := range e.Details {
		parts[i] = d.Field + ": " + d.Message
	}
	return fmt.Sprintf("%v: %s", e.Err, strings.Join(parts, "; "))
}

// Unwrap exposes ErrInvalidRecord and every field's sentinel to errors.Is.
func (e *ValidationError) Unwrap() []error {
	errs := []error{e.Err}
	for _, d := range e.Details {
		if d.Err != nil {
			errs = append(errs, d.Err)
		}
	}
	return errs
}

// ErrInvalidRecord wraps every ValidationError.
var ErrInvalidRecord = errors.New("invalid invoice")

// ValidEmail reports whether email is empty or looks like an address.
func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	return email == "" || emailPattern.MatchString(email)
}

// Validate checks a record before it is stored. It collects every problem
// instead of stopping at the first one.
func (p ValidationPolicy) Validate(rec InvoiceRecord) error {
	var details []FieldError
	add := func(field string, err error) {
		details = append(details, FieldError{Field: field, Message: err.Error(), Err: err})
	}

	if strings.TrimSpace(rec.Number) == "" {
		add("invoiceNumber", ErrEmptyInvoiceNumber)
	}
	if strings.TrimSpace(rec.CustomerName) == "" {
		add("customerName", ErrEmptyCustomerName)
	}
	if !ValidEmail(rec.CustomerEmail) {
		add("customerEmail", ErrInvalidEmail)
	}
	if rec.PaymentStatus != "" && !rec.PaymentStatus.Valid() {
		add("paymentStatus", ErrInvalidStatus)
	}
	if len(rec.Items) == 0 {
		add("items", ErrNoItems)
	}
	for i, it := range rec.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		if strings.TrimSpace(it.Description) == "" {
			add(prefix+"productName", ErrEmptyProduct)
		}
		if it.Quantity.IsNegative() || (it.Quantity.IsZero() && !p.AllowZeroQuantity) {
			add(prefix+"quantity", ErrInvalidQuantity)
		}
		if it.UnitPrice.IsNegative() || (it.UnitPrice.IsZero() && p.RequirePositivePrice) {
			add(prefix+"price", ErrInvalidPrice)
		}
	}
	charges := []struct {
		field string
		spec  ChargeSpec
	}{{"serviceCharge", rec.ServiceCharge}, {"vat", rec.VAT}}
	for _, c := range charges {
		if c.spec.Kind != "" && !c.spec.Kind.Valid() {
			add(c.field+".type", ErrInvalidChargeKind)
		}
		if c.spec.Value.IsNegative() {
			add(c.field+".value", ErrNegativeCharge)
		}
	}
	if rec.SpecialDiscount.IsNegative() {
		add("specialDiscount", ErrNegativeDiscount)
	}

	if len(details) == 0 {
		return nil
	}
	return &ValidationError{Err: ErrInvalidRecord, Details: details}
}

// ValidateRecord applies the zero-value policy.
func ValidateRecord(rec InvoiceRecord) error {
	return ValidationPolicy{}.Validate(rec)
}

// Normalize fills the defaults a form leaves blank and renumbers the items.
func Normalize(rec InvoiceRecord) InvoiceRecord {
	out := rec.Clone()
	out.Number = strings.TrimSpace(out.Number)
	out.CustomerName = strings.TrimSpace(out.CustomerName)
	out.CustomerEmail = strings.TrimSpace(out.CustomerEmail)
	if out.PaymentStatus == "" {
		out.PaymentStatus = StatusPending
	}
	if out.ServiceCharge.Kind == "" {
		out.ServiceCharge.Kind = ChargeFixed
	}
	if out.VAT.Kind == "" {
		out.VAT.Kind = ChargeFixed
	}
	for i := range out.Items {
		if out.Items[i].Unit == "" {
			out.Items[i].Unit = DefaultUnit
		}
	}
	out.Items = Renumber(out.Items)
	return out
}
