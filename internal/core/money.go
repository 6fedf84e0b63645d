// Package core holds the domain model for the budgeting aggregate.
//
// This file contains parsing and formatting helpers for monetary values.
// Onboarding fields (monthly income, savings goal) arrive as free text and
// are validated here before they reach the store.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseNumericText converts numeric text to a positive amount.
//
// It accepts both dot (1234.56) and comma (1234,56) decimal separators.
// Returns an error for invalid formats, signs, or non-positive values.
func ParseNumericText(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return 0, ErrInvalidAmount
			}
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// CurrencySymbol maps an ISO currency code to its display symbol.
// Unknown codes fall back to "$".
func CurrencySymbol(code string) string {
	switch code {
	case "USD":
		return "$"
	case "EUR":
		return "€"
	case "GBP":
		return "£"
	case "INR":
		return "₹"
	}
	return "$"
}

// FormatAmount renders an amount with its currency symbol, two decimals.
func FormatAmount(symbol string, v float64) string {
	return symbol + strconv.FormatFloat(v, 'f', 2, 64)
}
