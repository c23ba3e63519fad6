// Package core provides the budget domain types and the input boundary
// that turns user supplied strings into validated values.
//
// This file contains the money representation (integer cents) and the
// decimal parsing and formatting helpers.
package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Money is an amount in cents.
type Money struct {
	Cents int64
}

var maxCents = decimal.NewFromInt(math.MaxInt64)

// ParseAmount converts a decimal string to a strictly positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rounds half-up to whole cents.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234
//	ParseAmount("12,345") -> 1235
//	ParseAmount("0")      -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	cents, err := parseCents(s)
	if err != nil || cents == 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

// ParseBudget is ParseAmount with zero allowed. Category budgets and the
// monthly income use it.
func ParseBudget(s string) (Money, error) {
	cents, err := parseCents(s)
	if err != nil {
		return Money{}, ErrInvalidBudget
	}
	return Money{Cents: cents}, nil
}

func parseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.IsNegative() {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// NewMoney builds an amount from a decimal value such as 12.5.
func NewMoney(v float64) Money {
	return Money{Cents: decimal.NewFromFloat(v).Shift(2).Round(0).IntPart()}
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) IsZero() bool { return m.Cents == 0 }

// Decimal returns the amount as a decimal number of currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float returns the amount in currency units. Only for display and JSON;
// arithmetic stays in cents.
func (m Money) Float() float64 {
	return m.Decimal().InexactFloat64()
}

// FormatAmount renders the amount with exactly two decimals, e.g. "1234.50".
func FormatAmount(m Money) string {
	return m.Decimal().StringFixed(2)
}

// FormatUSD renders the amount as US currency, e.g. "$1,234.50" or "-$3.00".
func FormatUSD(m Money) string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		cents = -cents
		sign = "-"
	}
	return fmt.Sprintf("%s$%s.%02d", sign, humanize.Comma(cents/100), cents%100)
}
