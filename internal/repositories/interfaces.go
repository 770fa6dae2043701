package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pfennig-app/pfennig/internal/models"
)

// RateRepository defines durable access to daily and frozen exchange rates.
// Lookup methods return (nil, nil) when nothing matches; infrastructure
// failures come back as *errors.ErrStoreUnavailable.
type RateRepository interface {
	// Daily rates
	PutDaily(ctx context.Context, from, to string, rate decimal.Decimal, sampledAt time.Time) error
	BatchPutDaily(ctx context.Context, rates []models.RatePair, ts time.Time) (int, error)
	ClearAllDaily(ctx context.Context) error
	ListCurrencies(ctx context.Context) ([]string, error)
	LatestDailyUpdate(ctx context.Context) (*time.Time, error)
	FindDaily(ctx context.Context, from, to string, recentWithin time.Duration) (*models.DailyRate, error)
	FindAnyDaily(ctx context.Context, from, to string) (*models.DailyRate, error)
	FindNearestDaily(ctx context.Context, from, to string, target time.Time, windowDays int) (*models.NearestRate, error)
	ExistsRatesForDay(ctx context.Context, day time.Time) (bool, error)

	// Frozen rates
	PutFrozen(ctx context.Context, expenseID int64, rates []models.RatePair) (int, error)
	FindFrozen(ctx context.Context, expenseID int64, from, to string) (*models.FrozenRate, error)
	ListFrozen(ctx context.Context, expenseID int64) ([]models.FrozenRate, error)
	CountFrozen(ctx context.Context, expenseID int64) (int64, error)
	DistinctFrozenExpenseIDs(ctx context.Context) ([]int64, error)
	DeleteFrozenByExpenseIDs(ctx context.Context, ids []int64) (int64, error)
}

// ExpenseRepository defines the expense access the rate core and its thin
// CRUD surface need. The core never mutates rate-relevant expense fields
// outside these calls.
type ExpenseRepository interface {
	Create(ctx context.Context, expense *models.Expense) error
	GetByID(ctx context.Context, id int64) (*models.Expense, error)
	Update(ctx context.Context, expense *models.Expense) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter *models.ExpenseFilter) ([]*models.Expense, error)
	Count(ctx context.Context) (int64, error)
	ListAfterID(ctx context.Context, afterID int64, limit int) ([]*models.Expense, error)
}
