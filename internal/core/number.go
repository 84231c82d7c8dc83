package core

import (
	"fmt"
	"time"
)

// DefaultPaymentTermDays is the gap between issue and due date on a new invoice.
const DefaultPaymentTermDays = 15

// NextInvoiceNumber formats the number following countInYear invoices already issued in year.
func NextInvoiceNumber(year, countInYear int) string {
	return fmt.Sprintf("INV-%d-%04d", year, countInYear+1)
}

// FallbackInvoiceNumber is used when the issued count cannot be read.
// It combines the date with the last four digits of the Unix millisecond clock.
func FallbackInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%04d", now.Format("20060102"), now.UnixMilli()%10000)
}

// TemporaryInvoiceNumber is the placeholder used while working offline.
func TemporaryInvoiceNumber(year int) string {
	return fmt.Sprintf("INV-%d-TEMP", year)
}

// NewDraft returns a blank invoice issued today and due after the default term.
func NewDraft(number string, now time.Time) InvoiceRecord {
	issued := DateOf(now)
	return InvoiceRecord{
		Number:        number,
		IssueDate:     issued,
		DueDate:       issued.AddDays(DefaultPaymentTermDays),
		PaymentStatus: StatusPending,
		Items:         []LineItem{NewLineItem(1)},
		ServiceCharge: ChargeSpec{Kind: ChargeFixed},
		VAT:           ChargeSpec{Kind: ChargeFixed},
	}
}
