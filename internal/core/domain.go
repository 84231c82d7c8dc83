package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	StatusPending PaymentStatus = "pending"
	StatusPaid    PaymentStatus = "paid"
	StatusOverdue PaymentStatus = "overdue"
)

const (
	DisplayPaid    DisplayStatus = "paid"
	DisplayOverdue DisplayStatus = "overdue"
	DisplayPending DisplayStatus = "pending"
	DisplayDueSoon DisplayStatus = "due-soon"
)

const (
	ChargeFixed      ChargeKind = "fixed"
	ChargePercentage ChargeKind = "percentage"
)

const (
	UnitPCS Unit = "PCS"
	UnitCFT Unit = "CFT"
	UnitSFT Unit = "SFT"
	UnitKG  Unit = "KG"
	UnitLTR Unit = "LTR"
	UnitM   Unit = "M"
)

// DefaultUnit is assigned to new line items and to items arriving without a unit.
const DefaultUnit = UnitPCS

type (
	PaymentStatus string
	DisplayStatus string
	ChargeKind    string
	Unit          string

	// Date is a calendar day. The zero value means "not set".
	Date struct {
		time.Time
	}

	LineItem struct {
		Seq         int    `json:"srNo"`
		Description string `json:"productName"`
		Unit        Unit   `json:"measurement"`
		Quantity    Amount `json:"quantity"`
		UnitPrice   Amount `json:"price"`
		LineTotal   Amount `json:"total"`
	}

	// ChargeSpec configures the service charge or VAT of an invoice.
	ChargeSpec struct {
		Kind     ChargeKind `json:"type"`
		Value    Amount     `json:"value"`
		Computed Amount     `json:"amount"`
	}

	// InvoiceRecord is the raw invoice as captured by the form or loaded from storage.
	InvoiceRecord struct {
		ID              int64         `json:"id,omitempty"`
		Number          string        `json:"invoiceNumber"`
		IssueDate       Date          `json:"date"`
		DueDate         Date          `json:"dueDate"`
		CustomerName    string        `json:"customerName"`
		CustomerEmail   string        `json:"customerEmail,omitempty"`
		CustomerAddress string        `json:"customerAddress,omitempty"`
		CustomerPhone   string        `json:"customerPhone,omitempty"`
		PaymentStatus   PaymentStatus `json:"paymentStatus"`
		Items           []LineItem    `json:"items"`
		ServiceCharge   ChargeSpec    `json:"serviceCharge"`
		VAT             ChargeSpec    `json:"vat"`
		SpecialDiscount Amount        `json:"specialDiscount"`
		Notes           string        `json:"notes,omitempty"`
		Version         int64         `json:"version,omitempty"`
	}

	// TotalsResult holds every amount derived from an invoice's items and charges.
	TotalsResult struct {
		Subtotal            Amount `json:"subtotal"`
		ServiceChargeAmount Amount `json:"serviceChargeAmount"`
		VATAmount           Amount `json:"vatAmount"`
		GrandTotal          Amount `json:"grandTotal"`
		SpecialDiscount     Amount `json:"specialDiscount"`
		NetTotal            Amount `json:"netTotal"`
	}
)

var (
	ErrEmptyInvoiceNumber = errors.New("empty invoice number")
	ErrEmptyCustomerName  = errors.New("empty customer name")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrNoItems            = errors.New("invoice has no items")
	ErrEmptyProduct       = errors.New("empty product description")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrInvalidStatus      = errors.New("invalid payment status")
	ErrInvalidChargeKind  = errors.New("invalid charge kind")
	ErrNegativeCharge     = errors.New("negative charge value")
	ErrNegativeDiscount   = errors.New("negative special discount")
	ErrLastItem           = errors.New("cannot remove the last item")
	ErrItemIndex          = errors.New("item index out of range")
)

const dateLayout = "2006-01-02"

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping t's wall-clock date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate accepts YYYY-MM-DD or a full RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String renders the date as YYYY-MM-DD, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time.AddDate(0, 0, n))
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Valid reports whether s is one of the persisted payment states.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

func (k ChargeKind) Valid() bool {
	return k == ChargeFixed || k == ChargePercentage
}

// Clone returns a deep copy so callers can derive values without touching the original.
func (r InvoiceRecord) Clone() InvoiceRecord {
	out := r
	out.Items = append([]LineItem(nil), r.Items...)
	return out
}
