package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provenance tags which source of the fallback chain produced a rate.
type Provenance string

const (
	ProvenanceIdentity     Provenance = "identity"
	ProvenanceFrozen       Provenance = "frozen"
	ProvenanceInterpolated Provenance = "interpolated"
	ProvenanceCurrent      Provenance = "current"
	ProvenanceFallback     Provenance = "fallback-hardcoded"
)

// IsValid reports whether p is one of the closed provenance values.
func (p Provenance) IsValid() bool {
	switch p {
	case ProvenanceIdentity, ProvenanceFrozen, ProvenanceInterpolated, ProvenanceCurrent, ProvenanceFallback:
		return true
	}
	return false
}

// ExchangeRate is the result of a plain rate lookup.
type ExchangeRate struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Rate decimal.Decimal `json:"rate"`
}

// ConversionResult carries a converted amount together with the rate that
// produced it and where that rate came from. RateDate and DaysDifference
// are set when the rate was sampled at a different day than requested
// (interpolated and stale-daily results).
type ConversionResult struct {
	OriginalAmount  decimal.Decimal `json:"originalAmount"`
	From            string          `json:"from"`
	To              string          `json:"to"`
	ConvertedAmount decimal.Decimal `json:"convertedAmount"`
	Rate            decimal.Decimal `json:"rate"`
	Provenance      Provenance      `json:"provenance"`
	RateDate        *time.Time      `json:"rateDate,omitempty"`
	DaysDifference  *int            `json:"daysDifference,omitempty"`
}

// LastUpdateInfo answers "when were rates last refreshed?". DebugInfo
// explains when the reported instant was substituted with the server's
// wall clock to mask storage timezone skew.
type LastUpdateInfo struct {
	LastUpdateDate *time.Time `json:"lastUpdateDate"`
	DebugInfo      string     `json:"debugInfo,omitempty"`
}
