package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pfennig-app/pfennig/internal/errors"
)

// FrozenRate is a (from, to) rate permanently attached to one expense at
// capture time. Rows are insert-only: conflicts on (expense_id, from, to)
// are ignored so the first captured rate wins forever.
type FrozenRate struct {
	ID           int64           `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	ExpenseID    int64           `json:"expense_id" gorm:"column:expense_id;not null;uniqueIndex:idx_frozen_expense_pair,priority:1"`
	FromCurrency string          `json:"from_currency" gorm:"column:from_currency;type:varchar(3);not null;uniqueIndex:idx_frozen_expense_pair,priority:2"`
	ToCurrency   string          `json:"to_currency" gorm:"column:to_currency;type:varchar(3);not null;uniqueIndex:idx_frozen_expense_pair,priority:3"`
	Rate         decimal.Decimal `json:"rate" gorm:"column:rate;type:decimal(20,8);not null"`
	CapturedAt   time.Time       `json:"captured_at" gorm:"column:captured_at;type:timestamp;not null;autoCreateTime"`
}

// TableName returns the table name for the FrozenRate model
func (FrozenRate) TableName() string {
	return "frozen_expense_rates"
}

// Validate validates the frozen rate data
func (f *FrozenRate) Validate() error {
	if f.ExpenseID <= 0 {
		return &errors.ErrInvalidInput{Field: "expense_id", Message: "must be positive"}
	}
	if !ValidCurrencyCode(f.FromCurrency) {
		return &errors.ErrInvalidInput{Field: "from_currency", Message: "must be a 3-letter currency code"}
	}
	if !ValidCurrencyCode(f.ToCurrency) {
		return &errors.ErrInvalidInput{Field: "to_currency", Message: "must be a 3-letter currency code"}
	}
	if f.FromCurrency == f.ToCurrency {
		return &errors.ErrInvalidInput{Field: "to_currency", Message: "must differ from from_currency"}
	}
	if !f.Rate.IsPositive() {
		return &errors.ErrInvalidInput{Field: "rate", Message: "must be positive"}
	}
	return nil
}

// Inverse returns 1/rate, zero when the rate is zero.
func (f *FrozenRate) Inverse() decimal.Decimal {
	if f.Rate.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).Div(f.Rate).Round(DecimalScale)
}

// CaptureResult reports what one capture pass wrote for an expense.
type CaptureResult struct {
	ExpenseID    int64    `json:"expense_id"`
	PairsWritten int      `json:"pairs_written"`
	PairsSkipped int      `json:"pairs_skipped"`
	Failures     []string `json:"failures,omitempty"`
}
