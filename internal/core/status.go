package core

import "time"

// DefaultDueSoonDays is the window, in days, in which an unpaid invoice is "due soon".
const DefaultDueSoonDays = 3

// StatusRule derives display statuses. Days are compared as calendar dates in
// the location of "now": an invoice is overdue from the first day after its due date.
type StatusRule struct {
	DueSoonDays int
}

// DefaultStatusRule uses DefaultDueSoonDays.
var DefaultStatusRule = StatusRule{DueSoonDays: DefaultDueSoonDays}

// DeriveStatus applies DefaultStatusRule.
func DeriveStatus(payment PaymentStatus, due Date, now time.Time) DisplayStatus {
	return DefaultStatusRule.Derive(payment, due, now)
}

// Derive computes the display status:
//
//   - paid stays paid regardless of the due date
//   - a due date before today is overdue
//   - a due date within DueSoonDays of today (inclusive) is due-soon
//   - otherwise the stored status, pending when empty
//
// A zero due date skips the date checks.
func (r StatusRule) Derive(payment PaymentStatus, due Date, now time.Time) DisplayStatus {
	if payment == StatusPaid {
		return DisplayPaid
	}
	if !due.IsZero() {
		days := DaysUntilDue(due, now)
		if days < 0 {
			return DisplayOverdue
		}
		if days <= r.DueSoonDays {
			return DisplayDueSoon
		}
	}
	switch payment {
	case StatusOverdue:
		return DisplayOverdue
	case StatusPending, "":
		return DisplayPending
	default:
		return DisplayStatus(payment)
	}
}

// DaysUntilDue is the number of calendar days from now's date to due.
// It is negative once the due date has passed and zero on the due date itself.
func DaysUntilDue(due Date, now time.Time) int {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	dy, dm, dd := due.Date()
	dueDay := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	return int(dueDay.Sub(today).Hours() / 24)
}

// NextPaymentStatus is the status a one-click toggle moves to: paid invoices
// go back to pending, everything else becomes paid.
func NextPaymentStatus(current DisplayStatus) PaymentStatus {
	if current == DisplayPaid {
		return StatusPending
	}
	return StatusPaid
}

// StatusLabel is the human-readable name of a display status.
func StatusLabel(s DisplayStatus) string {
	switch s {
	case DisplayPaid:
		return "Paid"
	case DisplayOverdue:
		return "Overdue"
	case DisplayDueSoon:
		return "Due Soon"
	default:
		return "Pending"
	}
}

// StatusColor is the list/badge color of a display status as a hex string.
func StatusColor(s DisplayStatus) string {
	switch s {
	case DisplayPaid:
		return "#27ae60"
	case DisplayOverdue:
		return "#e74c3c"
	case DisplayPending, DisplayDueSoon:
		return "#f39c12"
	default:
		return "#7f8c8d"
	}
}
