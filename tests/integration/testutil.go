package integration

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pfennig-app/pfennig/internal/cache"
	"github.com/pfennig-app/pfennig/internal/config"
	"github.com/pfennig-app/pfennig/internal/db"
	"github.com/pfennig-app/pfennig/internal/models"
	"github.com/pfennig-app/pfennig/internal/repositories"
	"github.com/pfennig-app/pfennig/internal/services"
)

// suiteEnv wires the full service stack over the shared container with a
// deterministic static provider. Each call truncates the tables, so tests
// start clean.
type suiteEnv struct {
	db          *db.DB
	rateRepo    repositories.RateRepository
	expenseRepo repositories.ExpenseRepository
	cache       *cache.Cache
	cfg         *config.Config
	provider    services.FXProvider
	logger      *zap.Logger
}

func newSuiteEnv(t *testing.T) *suiteEnv {
	t.Helper()
	if testing.Short() || suiteContainer == nil {
		t.Skip("integration tests need Docker; skipped in short mode")
	}

	database := suiteContainer.DB
	truncateAll(t, database)

	return &suiteEnv{
		db:          database,
		rateRepo:    repositories.NewRateRepository(database),
		expenseRepo: repositories.NewExpenseRepository(database),
		cache:       cache.New(500, zap.NewNop()),
		cfg: &config.Config{
			BaseCurrency:         "EUR",
			BaseCurrencies:       []string{"EUR", "USD"},
			TargetCurrencies:     []string{"EUR", "USD", "ZAR"},
			RecentWindow:         time.Hour,
			NearestWindowDays:    7,
			MigrationWindowDays:  30,
			CacheCapacity:        500,
			CaptureTimeout:       10 * time.Second,
			RefreshCheckInterval: time.Hour,
		},
		provider: staticProvider(),
		logger:   zap.NewNop(),
	}
}

func truncateAll(t *testing.T, database *db.DB) {
	t.Helper()
	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	_, err = sqlDB.Exec("TRUNCATE frozen_expense_rates, daily_exchange_rates, expenses RESTART IDENTITY CASCADE")
	require.NoError(t, err)
}

// staticProvider serves fixed EUR/USD/ZAR tables.
func staticProvider() services.FXProvider {
	return services.NewStaticFXProvider(map[string]map[string]decimal.Decimal{
		"EUR": {
			"USD": decimal.NewFromFloat(1.10),
			"ZAR": decimal.NewFromFloat(20.0),
		},
		"USD": {
			"EUR": decimal.NewFromFloat(0.90909091),
			"ZAR": decimal.NewFromFloat(18.18),
		},
		"ZAR": {
			"EUR": decimal.NewFromFloat(0.05),
			"USD": decimal.NewFromFloat(0.055),
		},
	})
}

func (e *suiteEnv) insertExpense(t *testing.T, currency string, amount float64, date time.Time, legacyRate *float64) *models.Expense {
	t.Helper()
	expense := &models.Expense{
		Amount:          decimal.NewFromFloat(amount),
		Currency:        currency,
		TransactionDate: date,
		Description:     "integration expense",
	}
	if legacyRate != nil {
		r := decimal.NewFromFloat(*legacyRate)
		expense.ConversionRate = &r
	}
	require.NoError(t, e.db.Create(expense).Error)
	return expense
}

func (e *suiteEnv) insertDailyRate(t *testing.T, from, to string, rate float64, day time.Time) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.DailyRate{
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         decimal.NewFromFloat(rate),
		SampleDay:    models.TruncateToDay(day),
		SampleDate:   day,
	}).Error)
}

func (e *suiteEnv) countRows(t *testing.T, table string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Table(table).Count(&count).Error)
	return count
}
