// Package services holds the exchange-rate core: the provider client, the
// daily refresh loop, the capture engine, the conversion engine with its
// fallback chain, the currency surface, the expense lifecycle glue, and
// the backfill migrator.
package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/pfennig-app/pfennig/internal/models"
)

// FXProvider fetches current rates for a base currency from an external
// source. Implementations do not retry; retrying is the caller's concern.
type FXProvider interface {
	// FetchLatest returns target→rate for the given base. Missing
	// individual targets are a partial result, not an error.
	FetchLatest(ctx context.Context, base string) (map[string]decimal.Decimal, error)
	Name() string
}

// RefreshService keeps the daily rate table populated, at least one
// successful refresh per UTC day under normal uptime.
type RefreshService interface {
	EnsureDailyRates(ctx context.Context, force bool) (*models.RefreshResult, error)
	Status(ctx context.Context) *models.RatesStatus
	// Heartbeat worker; Start is idempotent per service instance.
	Start()
	Stop()
}

// CaptureService freezes the rate matrix for an expense. Failures never
// propagate to the expense write.
type CaptureService interface {
	CaptureForExpense(ctx context.Context, expense *models.Expense) (*models.CaptureResult, error)
	// ScheduleCapture runs the capture in a service-owned goroutine and
	// returns immediately. Close cancels in-flight captures and drains.
	ScheduleCapture(expense *models.Expense)
	Close()
}

// ConversionService resolves amounts between currencies through the
// fallback chain. Convert never fails for well-formed input; the chain
// terminates with a result in every case.
type ConversionService interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, expenseID *int64) (*models.ConversionResult, error)
	GetRate(ctx context.Context, from, to string) (*models.ExchangeRate, error)
}

// CurrencyService serves the currency listing and the last-refresh
// bookkeeping of the RPC surface.
type CurrencyService interface {
	AvailableCurrencies(ctx context.Context) ([]models.Currency, error)
	LastUpdate(ctx context.Context) (*models.LastUpdateInfo, error)
}

// ExpenseService is the thin expense CRUD surface the capture engine hangs
// off. Create always schedules a capture; Update schedules one only when
// the transaction date changed.
type ExpenseService interface {
	Create(ctx context.Context, expense *models.Expense) error
	GetByID(ctx context.Context, id int64) (*models.Expense, error)
	Update(ctx context.Context, expense *models.Expense) (*models.Expense, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter *models.ExpenseFilter) ([]*models.Expense, error)
	FrozenRates(ctx context.Context, expenseID int64) ([]models.FrozenRate, error)
	ConvertExpense(ctx context.Context, expenseID int64, to string) (*models.ConversionResult, error)
}

// MigrationService is the resumable backfill of frozen rates for
// pre-existing expenses. Single-writer: running two migrations against
// one database concurrently is out of contract.
type MigrationService interface {
	Run(ctx context.Context) (*models.MigrationState, error)
	Rollback(ctx context.Context) (int64, error)
	Status() (*models.MigrationState, error)
}
