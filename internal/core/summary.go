package core

import "time"

// StatusSummary counts invoices by display status.
// Pending includes the due-soon invoices, which are also counted on their own.
type StatusSummary struct {
	Total    int    `json:"total"`
	Pending  int    `json:"pending"`
	DueSoon  int    `json:"dueSoon"`
	Paid     int    `json:"paid"`
	Overdue  int    `json:"overdue"`
	NetTotal Amount `json:"netTotal"`
	Unpaid   Amount `json:"unpaid"`
}

// Summarize derives each invoice's status at now and tallies the result.
func (r StatusRule) Summarize(invoices []InvoiceRecord, calc Calculator, now time.Time) StatusSummary {
	var s StatusSummary
	for _, inv := range invoices {
		s.Total++
		net := calc.ComputeRecord(inv).NetTotal
		s.NetTotal = s.NetTotal.Add(net)

		switch r.Derive(inv.PaymentStatus, inv.DueDate, now) {
		case DisplayPaid:
			s.Paid++
			continue
		case DisplayOverdue:
			s.Overdue++
		case DisplayDueSoon:
			s.DueSoon++
			s.Pending++
		default:
			s.Pending++
		}
		s.Unpaid = s.Unpaid.Add(net)
	}
	return s
}

// SummarizeStatuses applies DefaultStatusRule and the default calculator.
func SummarizeStatuses(invoices []InvoiceRecord, now time.Time) StatusSummary {
	return DefaultStatusRule.Summarize(invoices, Calculator{}, now)
}
