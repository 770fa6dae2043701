package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency describes one member of the configured currency set for the
// currencies endpoint.
type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// RatePair is one directed (from, to, rate) entry, the unit of batch
// writes to both the daily and the frozen tables.
type RatePair struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Rate decimal.Decimal `json:"rate"`
}

// DefaultCurrencies is the fixed fallback returned by the currencies
// endpoint when the daily table is still empty.
var DefaultCurrencies = []Currency{
	{Code: "EUR", Name: "Euro", Symbol: "€"},
	{Code: "USD", Name: "US Dollar", Symbol: "$"},
	{Code: "GBP", Name: "British Pound", Symbol: "£"},
	{Code: "CHF", Name: "Swiss Franc", Symbol: "Fr"},
	{Code: "ZAR", Name: "South African Rand", Symbol: "R"},
	{Code: "JPY", Name: "Japanese Yen", Symbol: "¥"},
	{Code: "AUD", Name: "Australian Dollar", Symbol: "A$"},
	{Code: "CAD", Name: "Canadian Dollar", Symbol: "C$"},
}

// CurrencyName returns a display name for known codes, else the code itself.
func CurrencyName(code string) string {
	for _, c := range DefaultCurrencies {
		if c.Code == code {
			return c.Name
		}
	}
	return code
}

// CurrencySymbol returns a display symbol for known codes, else the code.
func CurrencySymbol(code string) string {
	for _, c := range DefaultCurrencies {
		if c.Code == code {
			return c.Symbol
		}
	}
	return code
}

// NormalizeCurrency uppercases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCurrencyCode reports whether code is three ASCII uppercase letters.
func ValidCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}
