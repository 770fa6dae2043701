package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pfennig-app/pfennig/internal/errors"
)

// DecimalScale is the fixed fractional-digit count rates are stored with.
const DecimalScale = 8

// DailyRate is one sampled (from, to) rate. At most one row exists per
// (from, to, day); SampleDay carries the day-truncated date the unique
// index is built on, SampleDate the full instant the sample was taken.
type DailyRate struct {
	ID           int64           `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	FromCurrency string          `json:"from_currency" gorm:"column:from_currency;type:varchar(3);not null;uniqueIndex:idx_daily_pair_day,priority:1"`
	ToCurrency   string          `json:"to_currency" gorm:"column:to_currency;type:varchar(3);not null;uniqueIndex:idx_daily_pair_day,priority:2"`
	Rate         decimal.Decimal `json:"rate" gorm:"column:rate;type:decimal(20,8);not null"`
	SampleDay    time.Time       `json:"sample_day" gorm:"column:sample_day;type:date;not null;uniqueIndex:idx_daily_pair_day,priority:3"`
	SampleDate   time.Time       `json:"sample_date" gorm:"column:sample_date;type:timestamp;not null"`
	CreatedAt    time.Time       `json:"created_at" gorm:"column:created_at;type:timestamp;autoCreateTime"`
}

// TableName returns the table name for the DailyRate model
func (DailyRate) TableName() string {
	return "daily_exchange_rates"
}

// Validate validates the daily rate data
func (r *DailyRate) Validate() error {
	if !ValidCurrencyCode(r.FromCurrency) {
		return &errors.ErrInvalidInput{Field: "from_currency", Message: "must be a 3-letter currency code"}
	}
	if !ValidCurrencyCode(r.ToCurrency) {
		return &errors.ErrInvalidInput{Field: "to_currency", Message: "must be a 3-letter currency code"}
	}
	if r.FromCurrency == r.ToCurrency {
		return &errors.ErrInvalidInput{Field: "to_currency", Message: "must differ from from_currency"}
	}
	if !r.Rate.IsPositive() {
		return &errors.ErrInvalidInput{Field: "rate", Message: "must be positive"}
	}
	if r.SampleDate.IsZero() {
		return &errors.ErrInvalidInput{Field: "sample_date", Message: "is required"}
	}
	return nil
}

// Inverse returns 1/rate, zero when the rate is zero.
func (r *DailyRate) Inverse() decimal.Decimal {
	if r.Rate.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).Div(r.Rate).Round(DecimalScale)
}

// NearestRate is a daily rate found near a target day, with the absolute
// distance in days between the sample and the target.
type NearestRate struct {
	DailyRate
	DaysDifference int `json:"days_difference"`
}

// TruncateToDay truncates an instant to its UTC calendar day.
func TruncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// RefreshResult is the outcome of one daily refresh invocation. It is a
// value, not an error: partial provider failures are listed in Failures
// while the refresh still counts as successful if anything was written.
// SampledAt is the shared instant every written row carries.
type RefreshResult struct {
	Updated   int        `json:"updated"`
	Skipped   bool       `json:"skipped"`
	SampledAt *time.Time `json:"sampledAt,omitempty"`
	Failures  []string   `json:"failures,omitempty"`
}

// RatesStatus summarizes refresh health for clients, with a one-day grace
// horizon before NeedsUpdate flips.
type RatesStatus struct {
	Healthy     bool       `json:"healthy"`
	NeedsUpdate bool       `json:"needsUpdate"`
	LastUpdate  *time.Time `json:"lastUpdate,omitempty"`
	Error       string     `json:"error,omitempty"`
}
