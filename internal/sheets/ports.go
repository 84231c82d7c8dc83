// Package sheets defines the invoice ledger port and its row format. The
// google adapter mirrors invoices into a spreadsheet; the memory adapter
// backs tests and deployments without Google credentials.
package sheets

import (
	"context"
	"strconv"

	"invoicer/internal/core"
)

// Header is the first row of the ledger sheet.
var Header = []string{"Invoice Number", "Issue Date", "Due Date", "Customer", "Net Total", "Payment Status", "Version"}

// LedgerRow is one invoice in the ledger, keyed by invoice number.
type LedgerRow struct {
	Number        string
	IssueDate     string
	DueDate       string
	Customer      string
	NetTotal      string
	PaymentStatus string
	Version       int64
}

// Ports for outbound adapters.
type (
	LedgerWriter interface {
		// Upsert replaces the row with the same invoice number or appends one.
		Upsert(ctx context.Context, row LedgerRow) (rowRef string, err error)
		// Delete removes the row of an invoice number. A missing row is not an error.
		Delete(ctx context.Context, number string) error
	}
)

// RowFromInvoice builds the ledger row of a stored invoice.
func RowFromInvoice(rec core.InvoiceRecord, totals core.TotalsResult) LedgerRow {
	status := rec.PaymentStatus
	if status == "" {
		status = core.StatusPending
	}
	return LedgerRow{
		Number:        rec.Number,
		IssueDate:     rec.IssueDate.String(),
		DueDate:       rec.DueDate.String(),
		Customer:      rec.CustomerName,
		NetTotal:      totals.NetTotal.StringFixed(2),
		PaymentStatus: string(status),
		Version:       rec.Version,
	}
}

// Values renders the row in Header order.
func (r LedgerRow) Values() []interface{} {
	return []interface{}{
		r.Number,
		r.IssueDate,
		r.DueDate,
		r.Customer,
		r.NetTotal,
		r.PaymentStatus,
		strconv.FormatInt(r.Version, 10),
	}
}
