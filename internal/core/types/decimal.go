// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// MoneyScale is the number of fractional digits generated money values carry.
const MoneyScale = 2

// NewMoneyFromMinor creates Money from an amount in minor units (cents).
func NewMoneyFromMinor(minor int64) Money {
	return decimal.New(minor, -MoneyScale)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
