// Package moneypkg provides fixed-point money helpers shared by the ledger.
package moneypkg

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places every persisted amount carries.
const Places = 2

var (
	// ErrMalformed indicates that the amount is not a decimal number.
	ErrMalformed = errors.New("malformed amount")
	// ErrNotPositive indicates that the amount is zero or negative after rounding.
	ErrNotPositive = errors.New("amount must be positive")
	// ErrTooLarge indicates that the amount does not fit numeric(14,2).
	ErrTooLarge = errors.New("amount too large")
)

// MaxAmount is the largest value a numeric(14,2) column holds.
var MaxAmount = decimal.RequireFromString("999999999999.99")

// Quantize rounds d to Places using banker's rounding.
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(Places)
}

// ParseAmount parses a client supplied amount and quantizes it.
//
// The result is strictly positive and never exceeds MaxAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrMalformed
	}

	d = Quantize(d)

	if !d.IsPositive() {
		return decimal.Zero, ErrNotPositive
	}

	if d.GreaterThan(MaxAmount) {
		return decimal.Zero, ErrTooLarge
	}

	return d, nil
}

// String formats d with exactly Places decimals.
func String(d decimal.Decimal) string {
	return d.StringFixed(Places)
}
