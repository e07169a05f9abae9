// Package core provides the ledger domain types shared by every pipeline stage.
//
// This file contains functions for parsing monetary amounts from strings and
// the single rounding rule (half-up to cents) used by every computation.
package core

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseCents converts a decimal string to cents with half-up rounding on the
// third decimal. Dot and comma separators are both accepted. Zero and
// negative values parse successfully; callers validate sign separately.
//
// Examples:
//
//	ParseCents("12.34")  -> 1234, nil
//	ParseCents("12,345") -> 1235, nil
//	ParseCents("-3")     -> -300, nil
func ParseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return 0, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64-1 {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if fracPart[2:] != "" && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if neg {
		cents = -cents
	}
	return cents, nil
}

// ParseDecimalToCents is ParseCents restricted to strictly positive amounts.
func ParseDecimalToCents(s string) (int64, error) {
	cents, err := ParseCents(s)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// Decimal returns the exact amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Add returns m+o.
func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

// Units returns the amount as float64 for display only; never compute with it.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// RoundHalfUp applies the presentation rounding rule: two decimals, halves
// away from zero (half-up for the non-negative amounts a ledger holds).
func RoundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MoneyFromDecimal converts an exact value to cents using RoundHalfUp.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: RoundHalfUp(d).Mul(hundred).IntPart()}
}
