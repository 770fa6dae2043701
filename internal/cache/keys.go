package cache

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// KeyType partitions the cache. Each type carries its own TTL so a single
// store can hold rate lookups, conversion results, and raw provider
// responses without cross-talk.
type KeyType string

const (
	KeyCurrentRate           KeyType = "current_rate"
	KeyHistoricalRate        KeyType = "historical_rate"
	KeyConversionCurrent     KeyType = "conversion_current"
	KeyConversionHistorical  KeyType = "conversion_historical"
	KeyExpenseRatesBundle    KeyType = "expense_rates_bundle"
	KeyAPIResponse           KeyType = "api_response"
)

// TTL returns the time-to-live for entries of this type.
func (k KeyType) TTL() time.Duration {
	switch k {
	case KeyCurrentRate:
		return time.Hour
	case KeyHistoricalRate:
		return 24 * time.Hour
	case KeyConversionCurrent:
		return 30 * time.Minute
	case KeyConversionHistorical:
		return 24 * time.Hour
	case KeyExpenseRatesBundle:
		return 24 * time.Hour
	case KeyAPIResponse:
		return 15 * time.Minute
	default:
		return 15 * time.Minute
	}
}

// CurrentRateKey keys a (from, to) rate lookup.
func CurrentRateKey(from, to string) string {
	return from + ":" + to
}

// HistoricalRateKey keys a frozen-rate lookup for one expense and pair.
func HistoricalRateKey(expenseID int64, from, to string) string {
	return strconv.FormatInt(expenseID, 10) + ":" + from + ":" + to
}

// ConversionKey keys a stateless conversion result.
func ConversionKey(amount decimal.Decimal, from, to string) string {
	return amount.String() + ":" + from + ":" + to
}

// ConversionHistoricalKey keys an expense-scoped conversion result.
func ConversionHistoricalKey(amount decimal.Decimal, from, to string, expenseID int64) string {
	return amount.String() + ":" + from + ":" + to + ":" + strconv.FormatInt(expenseID, 10)
}

// BundleKey keys the frozen-rate bundle of one expense.
func BundleKey(expenseID int64) string {
	return strconv.FormatInt(expenseID, 10)
}

// APIResponseKey keys a raw provider rate map by base currency.
func APIResponseKey(base string) string {
	return base
}
