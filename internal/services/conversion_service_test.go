package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pfennig-app/pfennig/internal/errors"
	"github.com/pfennig-app/pfennig/internal/models"
)

func newConversion(env *testEnv, provider FXProvider) ConversionService {
	return NewConversionService(env.rateRepo, env.expenseRepo, env.cache, provider, env.cfg, env.logger)
}

func TestConvertIdentity(t *testing.T) {
	env := newTestEnv(t)
	svc := newConversion(env, failingProvider{})

	res, err := svc.Convert(context.Background(), decimal.NewFromInt(100), "EUR", "EUR", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ProvenanceIdentity, res.Provenance)
	assert.Equal(t, "100", res.ConvertedAmount.String())
	assert.Equal(t, "1", res.Rate.String())
}

func TestConvertInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	svc := newConversion(env, staticTestProvider())
	ctx := context.Background()

	var invalid *apperrors.ErrInvalidInput
	_, err := svc.Convert(ctx, decimal.Zero, "EUR", "USD", nil)
	require.ErrorAs(t, err, &invalid)

	_, err = svc.Convert(ctx, decimal.NewFromInt(1), "EURO", "USD", nil)
	require.ErrorAs(t, err, &invalid)
}

// Frozen determinism: once captured, the frozen rate wins in perpetuity,
// whatever the provider says later.
func TestConvertFrozenSurvivesDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	expense := env.seedExpense(t, "ZAR", 100, time.Now().UTC())
	_, err := env.rateRepo.PutFrozen(ctx, expense.ID, []models.RatePair{
		{From: "ZAR", To: "EUR", Rate: decimal.NewFromFloat(0.05)},
		{From: "EUR", To: "ZAR", Rate: decimal.NewFromFloat(20.0)},
	})
	require.NoError(t, err)

	// Provider has drifted to 0.04 since the capture.
	drifted := NewStaticFXProvider(map[string]map[string]decimal.Decimal{
		"ZAR": {"EUR": decimal.NewFromFloat(0.04), "USD": decimal.NewFromFloat(0.05)},
	})
	svc := newConversion(env, drifted)

	for i := 0; i < 2; i++ {
		res, err := svc.Convert(ctx, decimal.NewFromInt(100), "ZAR", "EUR", &expense.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ProvenanceFrozen, res.Provenance)
		assert.Equal(t, "0.05", res.Rate.String())
		assert.Equal(t, "5", res.ConvertedAmount.String())
	}
}

func TestConvertInterpolatedNearExpenseDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	date := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	expense := env.seedExpense(t, "ZAR", 100, date)
	// Sample three days before the expense date, no frozen rate.
	require.NoError(t, env.rateRepo.PutDaily(ctx, "EUR", "USD", decimal.NewFromFloat(1.10), date.AddDate(0, 0, -3)))

	svc := newConversion(env, failingProvider{})
	res, err := svc.Convert(ctx, decimal.NewFromInt(100), "EUR", "USD", &expense.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ProvenanceInterpolated, res.Provenance)
	assert.Equal(t, "1.1", res.Rate.String())
	require.NotNil(t, res.DaysDifference)
	assert.Equal(t, 3, *res.DaysDifference)
	require.NotNil(t, res.RateDate)
}

func TestConvertCurrentFromRecentDaily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.rateRepo.PutDaily(ctx, "EUR", "USD", decimal.NewFromFloat(1.2), time.Now().UTC()))

	svc := newConversion(env, failingProvider{})
	res, err := svc.Convert(ctx, decimal.NewFromInt(100), "EUR", "USD", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ProvenanceCurrent, res.Provenance)
	assert.Equal(t, "120", res.ConvertedAmount.String())
	assert.Equal(t, "1.2", res.Rate.String())
}

func TestConvertProviderPersistsDaily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	svc := newConversion(env, staticTestProvider())
	res, err := svc.Convert(ctx, decimal.NewFromInt(100), "ZAR", "EUR", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ProvenanceCurrent, res.Provenance)
	assert.Equal(t, "5", res.ConvertedAmount.String())

	// Step 4 persists the provider rate for today.
	row, err := env.rateRepo.FindDaily(ctx, "ZAR", "EUR", time.Hour)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "0.05", row.Rate.String())
}

func TestConvertStaleDailyBeatsHardcoded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	// Only a week-old sample exists and the provider is down.
	require.NoError(t, env.rateRepo.PutDaily(ctx, "EUR", "USD", decimal.NewFromFloat(1.15), time.Now().UTC().AddDate(0, 0, -7)))

	svc := newConversion(env, failingProvider{})
	res, err := svc.Convert(ctx, decimal.NewFromInt(10), "EUR", "USD", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ProvenanceCurrent, res.Provenance)
	assert.Equal(t, "1.15", res.Rate.String())
	require.NotNil(t, res.RateDate, "stale results carry the sample date")
}

func TestConvertHardcodedFallback(t *testing.T) {
	env := newTestEnv(t)
	svc := newConversion(env, failingProvider{})

	res, err := svc.Convert(context.Background(), decimal.NewFromInt(100), "ZAR", "EUR", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ProvenanceFallback, res.Provenance)
	assert.Equal(t, "0.05", res.Rate.String())
}

func TestConvertTerminalRateOne(t *testing.T) {
	env := newTestEnv(t)
	svc := newConversion(env, failingProvider{})

	// No store rows, provider down, pair not in the hardcoded table.
	res, err := svc.Convert(context.Background(), decimal.NewFromInt(100), "AUD", "CAD", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ProvenanceCurrent, res.Provenance)
	assert.Equal(t, "1", res.Rate.String())
	assert.Equal(t, "100", res.ConvertedAmount.String())
}

func TestConvertResultCached(t *testing.T) {
	env := newTestEnv(t)
	counting := &countingProvider{inner: staticTestProvider()}
	svc := newConversion(env, counting)
	ctx := context.Background()

	_, err := svc.Convert(ctx, decimal.NewFromInt(100), "ZAR", "USD", nil)
	require.NoError(t, err)
	calls := counting.calls.Load()

	// Clear the daily row written by step 4 so only the result cache can
	// answer without a provider call.
	require.NoError(t, env.rateRepo.ClearAllDaily(ctx))
	env.cache.Invalidate("", "current_rate")
	env.cache.Invalidate("", "api_response")

	res, err := svc.Convert(ctx, decimal.NewFromInt(100), "ZAR", "USD", nil)
	require.NoError(t, err)
	assert.Equal(t, calls, counting.calls.Load())
	assert.Equal(t, models.ProvenanceCurrent, res.Provenance)
}

func TestGetRateUsesChain(t *testing.T) {
	env := newTestEnv(t)
	svc := newConversion(env, staticTestProvider())

	rate, err := svc.GetRate(context.Background(), "EUR", "USD")
	require.NoError(t, err)
	assert.Equal(t, "EUR", rate.From)
	assert.Equal(t, "1.1", rate.Rate.String())
}
