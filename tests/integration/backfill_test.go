package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfennig-app/pfennig/internal/models"
	"github.com/pfennig-app/pfennig/internal/services"
)

func newMigrator(env *suiteEnv, t *testing.T) (services.MigrationService, string) {
	t.Helper()
	dir := t.TempDir()
	stateFile := filepath.Join(dir, "state.json")
	mc := services.DefaultMigrationConfig(stateFile, filepath.Join(dir, "migration.log"))
	mc.BatchSize = 2
	return services.NewMigrationService(env.expenseRepo, env.rateRepo, env.cache, env.provider, env.cfg, mc, env.logger), stateFile
}

// The migrator prefers a nearby daily rate over the provider for the
// expense's own currency pairs.
func TestBackfillUsesNearestDailyRate(t *testing.T) {
	env := newSuiteEnv(t)
	ctx := context.Background()

	when := time.Now().UTC().AddDate(0, 0, -20)
	expense := env.insertExpense(t, "ZAR", 500, when, nil)

	// A daily sample three days after the expense, well inside the window.
	env.insertDailyRate(t, "ZAR", "EUR", 0.048, when.AddDate(0, 0, 3))

	migrator, _ := newMigrator(env, t)
	state, err := migrator.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.MigrationStatusCompleted, state.Status)
	assert.Equal(t, int64(1), state.MigratedCount)

	frozen, err := env.rateRepo.FindFrozen(ctx, expense.ID, "ZAR", "EUR")
	require.NoError(t, err)
	require.NotNil(t, frozen)
	assert.Equal(t, "0.048", frozen.Rate.String())
}

// Legacy conversion_rate wins over everything else.
func TestBackfillPrefersLegacyRate(t *testing.T) {
	env := newSuiteEnv(t)
	ctx := context.Background()

	legacy := 0.052
	expense := env.insertExpense(t, "ZAR", 500, time.Now().UTC().AddDate(0, 0, -20), &legacy)
	env.insertDailyRate(t, "ZAR", "EUR", 0.048, time.Now().UTC().AddDate(0, 0, -18))

	migrator, _ := newMigrator(env, t)
	state, err := migrator.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.MigrationStatusCompleted, state.Status)

	frozen, err := env.rateRepo.FindFrozen(ctx, expense.ID, "ZAR", "EUR")
	require.NoError(t, err)
	require.NotNil(t, frozen)
	assert.Equal(t, "0.052", frozen.Rate.String())
}

// A run resumed from a paused checkpoint keeps the run id and never
// revisits expenses at or below the checkpoint.
func TestBackfillResumesFromCheckpoint(t *testing.T) {
	env := newSuiteEnv(t)
	ctx := context.Background()

	var expenses []*models.Expense
	for i := 0; i < 4; i++ {
		expenses = append(expenses, env.insertExpense(t, "EUR", 10, time.Now().UTC().AddDate(0, 0, -i-1), nil))
	}

	migrator, stateFile := newMigrator(env, t)

	prior := &models.MigrationState{
		RunID:                  "resume-run",
		Status:                 models.MigrationStatusPaused,
		TotalExpenses:          4,
		ProcessedCount:         2,
		MigratedCount:          2,
		LastProcessedExpenseID: expenses[1].ID,
		StartedAt:              time.Now().UTC().Add(-time.Minute),
		BatchSize:              2,
		MaxRetries:             3,
	}
	raw, err := json.MarshalIndent(prior, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(stateFile, raw, 0o644))

	state, err := migrator.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "resume-run", state.RunID)
	assert.Equal(t, models.MigrationStatusCompleted, state.Status)
	assert.Equal(t, int64(4), state.ProcessedCount)

	// The checkpointed half was never touched.
	for _, e := range expenses[:2] {
		count, err := env.rateRepo.CountFrozen(ctx, e.ID)
		require.NoError(t, err)
		assert.Zero(t, count, "expense %d is below the checkpoint", e.ID)
	}
	for _, e := range expenses[2:] {
		count, err := env.rateRepo.CountFrozen(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(6), count, "expense %d should have a full matrix", e.ID)
	}
}

// Rollback removes only migrator-written frozen rates and forgets the
// run's state; daily rates stay.
func TestBackfillRollback(t *testing.T) {
	env := newSuiteEnv(t)
	ctx := context.Background()

	env.insertExpense(t, "EUR", 10, time.Now().UTC().AddDate(0, 0, -2), nil)
	env.insertDailyRate(t, "EUR", "USD", 1.08, time.Now().UTC().AddDate(0, 0, -2))

	migrator, stateFile := newMigrator(env, t)
	state, err := migrator.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.MigrationStatusCompleted, state.Status)
	require.NotZero(t, env.countRows(t, "frozen_expense_rates"))

	removed, err := migrator.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), removed)

	assert.Zero(t, env.countRows(t, "frozen_expense_rates"))
	assert.NotZero(t, env.countRows(t, "daily_exchange_rates"))
	_, err = os.Stat(stateFile)
	assert.True(t, os.IsNotExist(err))
}
