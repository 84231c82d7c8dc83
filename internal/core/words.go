package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	crore    = 10_000_000
	lakh     = 100_000
	thousand = 1_000
)

var croreDecimal = decimal.NewFromInt(crore)

var (
	onesWords  = []string{"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine"}
	teensWords = []string{"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen", "Seventeen", "Eighteen", "Nineteen"}
	tensWords  = []string{"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety"}
)

// WordsFormat names the major and minor currency units.
type WordsFormat struct {
	Major string
	Minor string
}

// DefaultWordsFormat spells amounts in Taka and Poisha.
var DefaultWordsFormat = WordsFormat{Major: "Taka", Minor: "Poisha"}

// ToWords spells an amount on the South Asian scale.
//
//	ToWords(0)          -> "Zero Taka Only"
//	ToWords(100000)     -> "One Lakh Taka Only"
//	ToWords(1234567.89) -> "Twelve Lakh Thirty Four Thousand Five Hundred Sixty Seven Taka and Eighty Nine Poisha Only"
func ToWords(amount Amount) string {
	return DefaultWordsFormat.Spell(amount)
}

// Spell converts amount using f's unit names. A negative amount that is not
// zero at two decimals is prefixed with "Minus".
func (f WordsFormat) Spell(amount Amount) string {
	major, minor := splitMinor(amount.Abs())

	var b strings.Builder
	if amount.IsNegative() && (!major.IsZero() || minor > 0) {
		b.WriteString("Minus ")
	}
	b.WriteString(integerWords(major))
	b.WriteString(" ")
	b.WriteString(f.Major)
	if minor > 0 {
		b.WriteString(" and ")
		b.WriteString(below1000(minor))
		b.WriteString(" ")
		b.WriteString(f.Minor)
	}
	b.WriteString(" Only")
	return b.String()
}

// splitMinor separates the integer part from round(fraction x 100).
// A fraction that rounds up to 100 carries into the integer part.
func splitMinor(d decimal.Decimal) (decimal.Decimal, int64) {
	whole := d.Floor()
	minor := d.Sub(whole).Mul(hundred).Round(0).IntPart()
	if minor >= 100 {
		whole = whole.Add(decimal.NewFromInt(1))
		minor -= 100
	}
	return whole, minor
}

// integerWords spells a non-negative whole number. Crores are split off with
// decimal division so amounts beyond int64 keep their digits.
func integerWords(d decimal.Decimal) string {
	if d.IsZero() {
		return "Zero"
	}

	var parts []string
	if d.GreaterThanOrEqual(croreDecimal) {
		q, r := d.QuoRem(croreDecimal, 0)
		parts = append(parts, integerWords(q)+" Crore")
		d = r
	}
	n := d.IntPart()
	if n >= lakh {
		parts = append(parts, below1000(n/lakh)+" Lakh")
		n %= lakh
	}
	if n >= thousand {
		parts = append(parts, below1000(n/thousand)+" Thousand")
		n %= thousand
	}
	if n > 0 {
		parts = append(parts, below1000(n))
	}
	return strings.Join(parts, " ")
}

func below1000(n int64) string {
	switch {
	case n < 10:
		return onesWords[n]
	case n < 20:
		return teensWords[n-10]
	case n < 100:
		w := tensWords[n/10]
		if n%10 > 0 {
			w += " " + onesWords[n%10]
		}
		return w
	}
	w := onesWords[n/100] + " Hundred"
	if n%100 > 0 {
		w += " " + below1000(n%100)
	}
	return w
}
