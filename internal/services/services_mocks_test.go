package services

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pfennig-app/pfennig/internal/cache"
	"github.com/pfennig-app/pfennig/internal/config"
	"github.com/pfennig-app/pfennig/internal/db"
	apperrors "github.com/pfennig-app/pfennig/internal/errors"
	"github.com/pfennig-app/pfennig/internal/models"
	"github.com/pfennig-app/pfennig/internal/repositories"
)

// testEnv wires real repositories over a file-backed SQLite database with
// a small three-currency set, so service tests exercise the same SQL
// paths production uses without needing Docker.
type testEnv struct {
	db          *db.DB
	rateRepo    repositories.RateRepository
	expenseRepo repositories.ExpenseRepository
	cache       *cache.Cache
	cfg         *config.Config
	logger      *zap.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "services.db") + "?_foreign_keys=1&_loc=UTC"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&models.Expense{}, &models.DailyRate{}, &models.FrozenRate{}))

	database := db.Open(gdb)
	return &testEnv{
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
			CaptureTimeout:       5 * time.Second,
			RefreshCheckInterval: time.Hour,
		},
		logger: zap.NewNop(),
	}
}

func (e *testEnv) seedExpense(t *testing.T, currency string, amount float64, date time.Time) *models.Expense {
	t.Helper()
	expense := &models.Expense{
		Amount:          decimal.NewFromFloat(amount),
		Currency:        currency,
		TransactionDate: date,
		Description:     "test expense",
	}
	require.NoError(t, e.db.Create(expense).Error)
	return expense
}

// staticTestProvider serves fixed EUR/USD/ZAR tables.
func staticTestProvider() FXProvider {
	return NewStaticFXProvider(map[string]map[string]decimal.Decimal{
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

// countingProvider wraps another provider and counts FetchLatest calls.
type countingProvider struct {
	inner FXProvider
	calls atomic.Int64
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) FetchLatest(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	p.calls.Add(1)
	return p.inner.FetchLatest(ctx, base)
}

// cancelingProvider cancels a context on every fetch, then answers from
// its inner provider.
type cancelingProvider struct {
	inner  FXProvider
	cancel context.CancelFunc
}

func (p *cancelingProvider) Name() string { return "canceling" }

func (p *cancelingProvider) FetchLatest(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	p.cancel()
	return p.inner.FetchLatest(ctx, base)
}

// failingProvider always errors.
type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }

func (failingProvider) FetchLatest(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	return nil, &apperrors.ErrProviderUnavailable{Provider: "failing", Err: context.DeadlineExceeded}
}
