package core

import (
	"strings"
)

// Grouping selects how integer digits are separated.
type Grouping int

const (
	// GroupingSouthAsian groups as 12,34,567 (lakh/crore).
	GroupingSouthAsian Grouping = iota
	// GroupingWestern groups as 1,234,567.
	GroupingWestern
)

// CurrencyFormat renders amounts the same way on screen and in documents.
type CurrencyFormat struct {
	Prefix   string
	Grouping Grouping
}

// DefaultCurrencyFormat is the Taka convention used across the application.
var DefaultCurrencyFormat = CurrencyFormat{Prefix: "TK ", Grouping: GroupingSouthAsian}

// Format renders a with exactly two decimals, digit grouping and the currency prefix.
// Negative amounts carry a leading minus before the prefix.
func (f CurrencyFormat) Format(a Amount) string {
	sign := ""
	if a.IsNegative() {
		sign = "-"
	}
	fixed := a.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	return sign + f.Prefix + groupDigits(intPart, f.Grouping) + "." + frac
}

// FormatCurrency formats a with DefaultCurrencyFormat.
func FormatCurrency(a Amount) string {
	return DefaultCurrencyFormat.Format(a)
}

// FormatQuantity renders a quantity with grouping and up to three decimals, trailing zeros dropped.
func FormatQuantity(a Amount, g Grouping) string {
	sign := ""
	if a.IsNegative() {
		sign = "-"
	}
	s := a.Abs().Round(3).String()
	intPart, frac, hasFrac := strings.Cut(s, ".")
	out := sign + groupDigits(intPart, g)
	if hasFrac {
		frac = strings.TrimRight(frac, "0")
		if frac != "" {
			out += "." + frac
		}
	}
	return out
}

// FormatDisplayDate renders a date as "02 Jan 2006".
func FormatDisplayDate(d Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("02 Jan 2006")
}

func groupDigits(digits string, g Grouping) string {
	if len(digits) <= 3 {
		return digits
	}
	size := 3
	if g == GroupingSouthAsian {
		size = 2
	}
	head := len(digits) - 3
	first := head % size
	if first == 0 {
		first = size
	}

	var b strings.Builder
	b.Grow(len(digits) + len(digits)/size + 1)
	b.WriteString(digits[:first])
	for i := first; i < head; i += size {
		b.WriteByte(',')
		b.WriteString(digits[i : i+size])
	}
	b.WriteByte(',')
	b.WriteString(digits[head:])
	return b.String()
}
