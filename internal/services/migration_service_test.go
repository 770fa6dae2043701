package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfennig-app/pfennig/internal/models"
)

func newMigration(t *testing.T, env *testEnv, provider FXProvider) (MigrationService, MigrationConfig) {
	t.Helper()
	dir := t.TempDir()
	mc := DefaultMigrationConfig(filepath.Join(dir, "state.json"), filepath.Join(dir, "migration.log"))
	mc.RetryDelay = 10 * time.Millisecond
	mc.BatchSize = 3
	return NewMigrationService(env.expenseRepo, env.rateRepo, env.cache, provider, env.cfg, mc, env.logger), mc
}

func TestMigrationLegacyRateTier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	legacy := decimal.NewFromFloat(0.055)
	expense := env.seedExpense(t, "ZAR", 100, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	expense.ConversionRate = &legacy
	require.NoError(t, env.db.Save(expense).Error)

	svc, _ := newMigration(t, env, failingProvider{})
	state, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.MigrationStatusCompleted, state.Status)
	assert.Equal(t, int64(1), state.MigratedCount)

	// Tier 1 yields the legacy pair and its inverse.
	frozen, err := env.rateRepo.FindFrozen(ctx, expense.ID, "ZAR", "EUR")
	require.NoError(t, err)
	require.NotNil(t, frozen)
	assert.Equal(t, "0.055", frozen.Rate.String())

	inverse, err := env.rateRepo.FindFrozen(ctx, expense.ID, "EUR", "ZAR")
	require.NoError(t, err)
	require.NotNil(t, inverse)
	assert.Equal(t, "18.18181818", inverse.Rate.String())
}

func TestMigrationNearestDailyTier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	expense := env.seedExpense(t, "ZAR", 100, date)
	// Daily sample three days before the expense; provider must stay
	// untouched for this pair.
	require.NoError(t, env.rateRepo.PutDaily(ctx, "EUR", "USD", decimal.NewFromFloat(1.10), date.AddDate(0, 0, -3)))

	counting := &countingProvider{inner: failingProvider{}}
	svc, _ := newMigration(t, env, counting)
	state, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.MigratedCount)

	frozen, err := env.rateRepo.FindFrozen(ctx, expense.ID, "EUR", "USD")
	require.NoError(t, err)
	require.NotNil(t, frozen)
	assert.Equal(t, "1.1", frozen.Rate.String())
}

func TestMigrationProviderTier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	expense := env.seedExpense(t, "ZAR", 100, time.Now().UTC())
	svc, _ := newMigration(t, env, staticTestProvider())

	state, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.MigratedCount)

	count, err := env.rateRepo.CountFrozen(ctx, expense.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), count, "tier 3 fills the whole matrix from the provider")
}

func TestMigrationSkipsAlreadyMigrated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	done := env.seedExpense(t, "ZAR", 100, time.Now().UTC())
	_, err := env.rateRepo.PutFrozen(ctx, done.ID, []models.RatePair{
		{From: "ZAR", To: "EUR", Rate: decimal.NewFromFloat(0.05)},
	})
	require.NoError(t, err)
	fresh := env.seedExpense(t, "EUR", 50, time.Now().UTC())

	svc, _ := newMigration(t, env, staticTestProvider())
	state, err := svc.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2), state.ProcessedCount)
	assert.Equal(t, int64(1), state.SkippedCount)
	assert.Equal(t, int64(1), state.MigratedCount)

	// The already-migrated expense keeps its single original row.
	count, err := env.rateRepo.CountFrozen(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = env.rateRepo.CountFrozen(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), count)
}

func TestMigrationRecordsErrorsAndContinues(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// No daily data and a dead provider: only the expense with a legacy
	// conversion rate has anything derivable.
	hopeless := env.seedExpense(t, "GBP", 10, time.Now().UTC())
	workable := env.seedExpense(t, "ZAR", 100, time.Now().UTC())
	legacy := decimal.NewFromFloat(0.05)
	workable.ConversionRate = &legacy
	require.NoError(t, env.db.Save(workable).Error)

	svc, mc := newMigration(t, env, failingProvider{})
	state, err := svc.Run(ctx)
	require.NoError(t, err, "per-expense failures must not abort the run")

	assert.Equal(t, models.MigrationStatusCompleted, state.Status)
	assert.Equal(t, int64(2), state.ProcessedCount)
	assert.Equal(t, int64(1), state.MigratedCount)
	require.Len(t, state.Errors, 1)
	assert.Equal(t, hopeless.ID, state.Errors[0].ExpenseID)

	count, err := env.rateRepo.CountFrozen(ctx, workable.ID)
	require.NoError(t, err)
	assert.Greater(t, count, int64(0))

	logData, err := os.ReadFile(mc.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(logData), "ERROR")
}

func TestMigrationResumesAfterLastProcessedID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var expenses []*models.Expense
	for i := 0; i < 6; i++ {
		expenses = append(expenses, env.seedExpense(t, "ZAR", float64(10+i), time.Now().UTC()))
	}

	svc, mc := newMigration(t, env, staticTestProvider())

	// A prior run processed the first four expenses.
	prior := &models.MigrationState{
		RunID:                  "prior-run",
		Status:                 models.MigrationStatusPaused,
		TotalExpenses:          6,
		ProcessedCount:         4,
		MigratedCount:          4,
		LastProcessedExpenseID: expenses[3].ID,
		StartedAt:              time.Now().UTC().Add(-time.Hour),
		BatchSize:              3,
		MaxRetries:             3,
	}
	data, err := json.Marshal(prior)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(mc.StateFile, data, 0o644))

	state, err := svc.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, "prior-run", state.RunID, "resume keeps the run id")
	assert.Equal(t, models.MigrationStatusCompleted, state.Status)
	assert.Equal(t, int64(6), state.ProcessedCount)
	assert.Equal(t, int64(6), state.MigratedCount, "only the last two must be migrated in this run plus prior four")

	// Expenses at or below the checkpoint must not have been touched.
	for _, e := range expenses[:4] {
		count, err := env.rateRepo.CountFrozen(ctx, e.ID)
		require.NoError(t, err)
		assert.Zero(t, count, "resumed run must not re-read processed expenses")
	}
}

func TestMigrationCorruptedStateStartsOver(t *testing.T) {
	env := newTestEnv(t)
	env.seedExpense(t, "ZAR", 100, time.Now().UTC())

	svc, mc := newMigration(t, env, staticTestProvider())
	require.NoError(t, os.WriteFile(mc.StateFile, []byte("{not json"), 0o644))

	state, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "", state.RunID)
	assert.Equal(t, int64(1), state.ProcessedCount)
}

func TestMigrationPausesOnCancel(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 4; i++ {
		env.seedExpense(t, "ZAR", float64(10+i), time.Now().UTC())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The provider cancels the run while the first expense is in flight;
	// that expense still completes, the run pauses before the second.
	svc, mc := newMigration(t, env, &cancelingProvider{inner: staticTestProvider(), cancel: cancel})

	state, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.MigrationStatusPaused, state.Status)
	assert.Equal(t, int64(1), state.ProcessedCount)
	assert.Equal(t, int64(1), state.MigratedCount)

	// The persisted state matches what Run returned.
	data, err := os.ReadFile(mc.StateFile)
	require.NoError(t, err)
	var persisted models.MigrationState
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, models.MigrationStatusPaused, persisted.Status)
}

func TestRollbackRemovesFrozenRatesOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.rateRepo.PutDaily(ctx, "EUR", "USD", decimal.NewFromFloat(1.1), time.Now().UTC()))
	first := env.seedExpense(t, "ZAR", 100, time.Now().UTC())
	second := env.seedExpense(t, "EUR", 50, time.Now().UTC())

	svc, mc := newMigration(t, env, staticTestProvider())
	_, err := svc.Run(ctx)
	require.NoError(t, err)

	deleted, err := svc.Rollback(ctx)
	require.NoError(t, err)
	assert.Greater(t, deleted, int64(0))

	for _, e := range []*models.Expense{first, second} {
		count, err := env.rateRepo.CountFrozen(ctx, e.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	}

	// Daily rates are untouched by rollback.
	row, err := env.rateRepo.FindDaily(ctx, "EUR", "USD", time.Hour)
	require.NoError(t, err)
	require.NotNil(t, row)

	_, err = os.Stat(mc.StateFile)
	assert.True(t, os.IsNotExist(err), "rollback must remove the state file")
}

func TestRollbackDisabled(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newMigration(t, env, staticTestProvider())
	ms := svc.(*migrationService)
	ms.mc.EnableRollback = false

	_, err := ms.Rollback(context.Background())
	require.Error(t, err)
}

func TestStatusReflectsPersistedState(t *testing.T) {
	env := newTestEnv(t)
	env.seedExpense(t, "ZAR", 100, time.Now().UTC())

	svc, _ := newMigration(t, env, staticTestProvider())

	state, err := svc.Status()
	require.NoError(t, err)
	assert.Nil(t, state, "no run yet means no status")

	_, err = svc.Run(context.Background())
	require.NoError(t, err)

	state, err = svc.Status()
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, models.MigrationStatusCompleted, state.Status)
}
