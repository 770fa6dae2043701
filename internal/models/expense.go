package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pfennig-app/pfennig/internal/errors"
)

// Expense is the entity the rate core serves. The core reads id, amount,
// currency and transaction date, and writes related FrozenRates; it never
// mutates expense fields itself. ConversionRate is the legacy single-rate
// column kept as the migrator's first-preference source.
type Expense struct {
	ID              int64            `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	Amount          decimal.Decimal  `json:"amount" gorm:"column:amount;type:decimal(20,8);not null"`
	Currency        string           `json:"currency" gorm:"column:currency;type:varchar(3);not null;index"`
	TransactionDate time.Time        `json:"transaction_date" gorm:"column:transaction_date;type:timestamp;not null;index"`
	Description     string           `json:"description" gorm:"column:description;type:text"`
	ConversionRate  *decimal.Decimal `json:"conversion_rate,omitempty" gorm:"column:conversion_rate;type:decimal(20,8)"`
	CreatedAt       time.Time        `json:"created_at" gorm:"column:created_at;type:timestamp;autoCreateTime"`
	UpdatedAt       time.Time        `json:"updated_at" gorm:"column:updated_at;type:timestamp;autoUpdateTime"`

	FrozenRates []FrozenRate `json:"frozen_rates,omitempty" gorm:"foreignKey:ExpenseID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for the Expense model
func (Expense) TableName() string {
	return "expenses"
}

// Validate validates the expense data
func (e *Expense) Validate() error {
	if !e.Amount.IsPositive() {
		return &errors.ErrInvalidInput{Field: "amount", Message: "must be positive"}
	}
	if !ValidCurrencyCode(e.Currency) {
		return &errors.ErrInvalidInput{Field: "currency", Message: "must be a 3-letter currency code"}
	}
	if e.TransactionDate.IsZero() {
		return &errors.ErrInvalidInput{Field: "transaction_date", Message: "is required"}
	}
	return nil
}

// HasLegacyRate reports whether the legacy conversion rate column holds a
// usable (nonzero) value.
func (e *Expense) HasLegacyRate() bool {
	return e.ConversionRate != nil && e.ConversionRate.IsPositive()
}

// ExpenseFilter narrows expense listings.
type ExpenseFilter struct {
	Currency string
	Limit    int
	Offset   int
}
