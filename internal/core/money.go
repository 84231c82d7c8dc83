// Package core holds the invoice model and every pure calculation derived from it.
//
// This file contains the Amount type used for quantities, prices and totals.
// Amounts are exact decimals and are coerced leniently from user input:
// anything that cannot be read as a number becomes zero instead of an error.
package core

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Amount is an exact decimal that tolerates malformed input.
type Amount struct {
	decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// MaxAmountDigits bounds the integer digits of an amount read from input.
// Larger values coerce to zero, as do values below 10^-minAmountExponent.
var MaxAmountDigits = 15

const (
	minAmountExponent = 18
	maxAmountInput    = 64
)

// bounded keeps d only when its magnitude is within the accepted range.
func bounded(d decimal.Decimal) Amount {
	if d.IsZero() {
		return Amount{}
	}
	digits := d.NumDigits() + int(d.Exponent())
	if digits > MaxAmountDigits || digits < -minAmountExponent {
		return Amount{}
	}
	return Amount{Decimal: d}
}

// NewAmount wraps a decimal.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// AmountFromInt creates an Amount from an integer.
func AmountFromInt(i int64) Amount {
	return Amount{Decimal: decimal.NewFromInt(i)}
}

// AmountFromFloat creates an Amount from a float64.
func AmountFromFloat(f float64) Amount {
	return Amount{Decimal: decimal.NewFromFloat(f)}
}

// ParseAmount reads a decimal from user input.
//
// Surrounding whitespace and grouping commas are ignored. When the string is
// not a clean number, the longest leading numeric prefix is used ("12kg" -> 12).
// Input with no numeric prefix, longer than 64 characters or beyond
// MaxAmountDigits yields zero.
//
// Examples:
//
//	ParseAmount("1,250.50") -> 1250.5
//	ParseAmount("3 pcs")    -> 3
//	ParseAmount("abc")      -> 0
func ParseAmount(s string) Amount {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || len(s) > maxAmountInput {
		return Amount{}
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return bounded(d)
	}
	prefix := numericPrefix(s)
	if prefix == "" {
		return Amount{}
	}
	d, err := decimal.NewFromString(prefix)
	if err != nil {
		return Amount{}
	}
	return bounded(d)
}

func numericPrefix(s string) string {
	end := 0
	seenDigit, seenDot := false, false
scan:
	for i, r := range s {
		switch {
		case i == 0 && r == '-':
		case unicode.IsDigit(r):
			seenDigit = true
		case r == '.' && !seenDot:
			seenDot = true
		default:
			break scan
		}
		end = i + 1
	}
	if !seenDigit {
		return ""
	}
	return strings.TrimSuffix(s[:end], ".")
}

// Coerce converts loosely typed values (JSON numbers, strings, nil) into an Amount.
func Coerce(v any) Amount {
	switch x := v.(type) {
	case nil:
		return Amount{}
	case Amount:
		return x
	case decimal.Decimal:
		return bounded(x)
	case string:
		return ParseAmount(x)
	case json.Number:
		return ParseAmount(x.String())
	case float64:
		return bounded(decimal.NewFromFloat(x))
	case float32:
		return bounded(decimal.NewFromFloat(float64(x)))
	case int:
		return bounded(decimal.NewFromInt(int64(x)))
	case int64:
		return bounded(decimal.NewFromInt(x))
	case int32:
		return bounded(decimal.NewFromInt(int64(x)))
	default:
		return Amount{}
	}
}

// Add returns a + b as an Amount.
func (a Amount) Add(b Amount) Amount {
	return Amount{Decimal: a.Decimal.Add(b.Decimal)}
}

// Sub returns a - b as an Amount.
func (a Amount) Sub(b Amount) Amount {
	return Amount{Decimal: a.Decimal.Sub(b.Decimal)}
}

// Mul returns a * b as an Amount.
func (a Amount) Mul(b Amount) Amount {
	return Amount{Decimal: a.Decimal.Mul(b.Decimal)}
}

// Percent returns value percent of a.
func (a Amount) Percent(value Amount) Amount {
	return Amount{Decimal: a.Decimal.Mul(value.Decimal).Div(hundred)}
}

// Equal compares two amounts numerically.
func (a Amount) Equal(b Amount) bool {
	return a.Decimal.Equal(b.Decimal)
}

// MarshalJSON writes the amount as a bare JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON accepts numbers, numeric strings and null. Anything else is zero.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		*a = Amount{}
		return nil
	}
	*a = Coerce(raw)
	return nil
}

// MarshalText is used by YAML and form encoders.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

func (a *Amount) UnmarshalText(b []byte) error {
	*a = ParseAmount(string(b))
	return nil
}
