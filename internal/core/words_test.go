package core

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToWords(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "Zero Taka Only"},
		{"1", "One Taka Only"},
		{"15", "Fifteen Taka Only"},
		{"40", "Forty Taka Only"},
		{"99", "Ninety Nine Taka Only"},
		{"100", "One Hundred Taka Only"},
		{"999", "Nine Hundred Ninety Nine Taka Only"},
		{"1000", "One Thousand Taka Only"},
		{"1001", "One Thousand One Taka Only"},
		{"99999", "Ninety Nine Thousand Nine Hundred Ninety Nine Taka Only"},
		{"100000", "One Lakh Taka Only"},
		{"250000", "Two Lakh Fifty Thousand Taka Only"},
		{"10000000", "One Crore Taka Only"},
		{"1234567.89", "Twelve Lakh Thirty Four Thousand Five Hundred Sixty Seven Taka and Eighty Nine Poisha Only"},
		{"123456789", "Twelve Crore Thirty Four Lakh Fifty Six Thousand Seven Hundred Eighty Nine Taka Only"},
		{"1500000000", "One Hundred Fifty Crore Taka Only"},
		{"0.5", "Zero Taka and Fifty Poisha Only"},
		{"10.05", "Ten Taka and Five Poisha Only"},
		{"0.999", "One Taka Only"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ToWords(ParseAmount(tt.in)))
		})
	}
}

func TestToWords_MinorPartRounds(t *testing.T) {
	got := ToWords(ParseAmount("12.345"))
	assert.True(t, strings.HasSuffix(got, "and Thirty Five Poisha Only"), got)
}

func TestWordsFormat_Spell(t *testing.T) {
	f := WordsFormat{Major: "Rupees", Minor: "Paise"}
	assert.Equal(t, "Two Rupees and Ten Paise Only", f.Spell(ParseAmount("2.10")))
}

func TestWordsFormat_SpellNegative(t *testing.T) {
	assert.Equal(t, "Minus One Hundred Taka Only", ToWords(ParseAmount("-100")))
	assert.Equal(t, "Minus Zero Taka and Fifty Poisha Only", ToWords(ParseAmount("-0.5")))
	assert.Equal(t, "Zero Taka Only", ToWords(ParseAmount("-0.001")))
}

func TestToWords_BeyondInt64(t *testing.T) {
	a := NewAmount(decimal.RequireFromString("123456789012345678901"))
	assert.Equal(t, "Twelve Lakh Thirty Four Thousand Five Hundred Sixty Seven Crore "+
		"Eighty Nine Lakh One Thousand Two Hundred Thirty Four Crore "+
		"Fifty Six Lakh Seventy Eight Thousand Nine Hundred One Taka Only", ToWords(a))

	assert.Equal(t, "Ten Lakh Crore Crore Taka Only", ToWords(NewAmount(decimal.New(1, 20))))
}
