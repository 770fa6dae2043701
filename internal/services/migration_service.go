package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pfennig-app/pfennig/internal/cache"
	"github.com/pfennig-app/pfennig/internal/config"
	apperrors "github.com/pfennig-app/pfennig/internal/errors"
	"github.com/pfennig-app/pfennig/internal/models"
	"github.com/pfennig-app/pfennig/internal/repositories"
)

// rollbackPageSize is how many expenses a rollback deletes per statement.
const rollbackPageSize = 100

// MigrationConfig tunes one backfill run.
type MigrationConfig struct {
	BatchSize        int
	MaxRetries       int
	RetryDelay       time.Duration
	ProgressInterval int64
	StateFile        string
	LogFile          string
	EnableRollback   bool
}

// DefaultMigrationConfig returns the documented defaults.
func DefaultMigrationConfig(stateFile, logFile string) MigrationConfig {
	return MigrationConfig{
		BatchSize:        50,
		MaxRetries:       3,
		RetryDelay:       time.Second,
		ProgressInterval: 25,
		StateFile:        stateFile,
		LogFile:          logFile,
		EnableRollback:   true,
	}
}

// migrationService backfills frozen rates for pre-existing expenses in
// ascending-id batches. The JSON state file is the sole source of truth
// for resumption; it is rewritten atomically after every batch. Per-
// expense failures are tolerated and recorded; infrastructure failures at
// batch granularity abort the run with status failed.
type migrationService struct {
	expenses repositories.ExpenseRepository
	rates    repositories.RateRepository
	source   *rateSource
	cfg      *config.Config
	mc       MigrationConfig
	logger   *zap.Logger

	mu    sync.Mutex
	state *models.MigrationState
}

// NewMigrationService creates the backfill migrator.
func NewMigrationService(expenses repositories.ExpenseRepository, rates repositories.RateRepository, c *cache.Cache, provider FXProvider, cfg *config.Config, mc MigrationConfig, logger *zap.Logger) MigrationService {
	if mc.BatchSize <= 0 {
		mc.BatchSize = 50
	}
	if mc.MaxRetries < 0 {
		mc.MaxRetries = 0
	}
	if mc.ProgressInterval <= 0 {
		mc.ProgressInterval = 25
	}
	return &migrationService{
		expenses: expenses,
		rates:    rates,
		source:   newRateSource(c, provider, logger),
		cfg:      cfg,
		mc:       mc,
		logger:   logger,
	}
}

// Run executes or resumes the backfill. Cancellation between expenses
// pauses the run cleanly; the next Run picks up at the persisted
// lastProcessedExpenseId.
func (s *migrationService) Run(ctx context.Context) (*models.MigrationState, error) {
	state, err := s.initState(ctx)
	if err != nil {
		return nil, err
	}
	s.setState(state)
	s.logf("INFO run %s started: %d/%d processed, starting after id %d",
		state.RunID, state.ProcessedCount, state.TotalExpenses, state.LastProcessedExpenseID)

	started := time.Now()
	var processedThisRun int64

	for {
		if err := ctx.Err(); err != nil {
			return s.pause(state, started)
		}

		batch, err := s.expenses.ListAfterID(ctx, state.LastProcessedExpenseID, s.mc.BatchSize)
		if err != nil {
			return s.fail(state, started, err)
		}
		if len(batch) == 0 {
			break
		}

		for _, expense := range batch {
			if err := ctx.Err(); err != nil {
				// pause persists state, so nothing is re-processed.
				return s.pause(state, started)
			}

			// The migrator is cancellable between expenses, not
			// mid-expense: the current expense finishes on a detached
			// context.
			s.processExpense(context.WithoutCancel(ctx), state, expense)
			state.ProcessedCount++
			state.LastProcessedExpenseID = expense.ID
			processedThisRun++

			if processedThisRun%s.mc.ProgressInterval == 0 {
				s.reportProgress(state, started, processedThisRun)
			}
		}

		if err := s.persistState(state, started); err != nil {
			return s.fail(state, started, err)
		}
	}

	if err := state.Transition(models.MigrationStatusCompleted); err != nil {
		return s.fail(state, started, err)
	}
	if err := s.persistState(state, started); err != nil {
		state.Status = models.MigrationStatusFailed
		return state, &apperrors.ErrMigrationFailure{RunID: state.RunID, Err: err}
	}

	s.logf("INFO run %s completed: processed=%d migrated=%d skipped=%d errors=%d in %dms",
		state.RunID, state.ProcessedCount, state.MigratedCount, state.SkippedCount,
		len(state.Errors), state.DurationMs)
	s.logger.Info("migration completed",
		zap.String("runId", state.RunID),
		zap.Int64("processed", state.ProcessedCount),
		zap.Int64("migrated", state.MigratedCount),
		zap.Int64("skipped", state.SkippedCount),
		zap.Int("errors", len(state.Errors)))
	return state, nil
}

// initState loads a resumable prior state or starts a fresh run. A
// corrupted state file counts as absent.
func (s *migrationService) initState(ctx context.Context) (*models.MigrationState, error) {
	if prior := s.loadStateFile(); prior != nil {
		switch prior.Status {
		case models.MigrationStatusPaused:
			if err := prior.Transition(models.MigrationStatusRunning); err != nil {
				return nil, err
			}
			s.logf("INFO run %s resumed from paused state", prior.RunID)
			return prior, nil
		case models.MigrationStatusRunning:
			// A crash mid-run left status running; the counters are still
			// good because state is persisted per batch.
			s.logf("WARN run %s found in running state, resuming", prior.RunID)
			return prior, nil
		}
	}

	total, err := s.expenses.Count(ctx)
	if err != nil {
		return nil, &apperrors.ErrMigrationFailure{Err: err}
	}
	return &models.MigrationState{
		RunID:         uuid.NewString(),
		Status:        models.MigrationStatusRunning,
		TotalExpenses: total,
		StartedAt:     time.Now().UTC(),
		BatchSize:     s.mc.BatchSize,
		MaxRetries:    s.mc.MaxRetries,
	}, nil
}

// processExpense migrates one expense, with the per-expense retry budget.
// Failures are recorded in state and never abort the run.
func (s *migrationService) processExpense(ctx context.Context, state *models.MigrationState, expense *models.Expense) {
	var lastErr error
	for attempt := 0; attempt <= s.mc.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.mc.RetryDelay):
			case <-ctx.Done():
				state.RecordError(expense.ID, lastErr.Error(), time.Now().UTC())
				return
			}
		}

		migrated, err := s.migrateOne(ctx, expense)
		if err == nil {
			if migrated {
				state.MigratedCount++
			} else {
				state.SkippedCount++
			}
			return
		}
		lastErr = err
		s.logger.Warn("expense migration attempt failed",
			zap.Int64("expenseId", expense.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	state.RecordError(expense.ID, lastErr.Error(), time.Now().UTC())
	s.logf("ERROR expense %d failed after %d attempts: %v", expense.ID, s.mc.MaxRetries+1, lastErr)
}

// migrateOne returns (true, nil) when rates were written, (false, nil)
// when the expense was already migrated or skipped.
func (s *migrationService) migrateOne(ctx context.Context, expense *models.Expense) (bool, error) {
	count, err := s.rates.CountFrozen(ctx, expense.ID)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	set := s.deriveRates(ctx, expense)
	if len(set) == 0 {
		return false, fmt.Errorf("no rates derivable for expense %d (%s, %s)",
			expense.ID, expense.Currency, expense.TransactionDate.Format("2006-01-02"))
	}

	if _, err := s.rates.PutFrozen(ctx, expense.ID, set); err != nil {
		return false, err
	}
	return true, nil
}

// deriveRates builds the frozen set for one pre-existing expense with the
// three-tier preference: the legacy conversion_rate column, then the
// nearest daily sample around the transaction date, then the provider's
// current rate.
func (s *migrationService) deriveRates(ctx context.Context, expense *models.Expense) []models.RatePair {
	base := s.cfg.BaseCurrency
	have := make(map[string]bool)
	var set []models.RatePair
	add := func(from, to string, rate decimal.Decimal) {
		key := from + ":" + to
		if have[key] || from == to || !rate.IsPositive() {
			return
		}
		have[key] = true
		set = append(set, models.RatePair{From: from, To: to, Rate: rate})
	}

	// Tier 1: the legacy single-column rate and its inverse.
	if expense.HasLegacyRate() && expense.Currency != base {
		legacy := *expense.ConversionRate
		add(expense.Currency, base, legacy)
		add(base, expense.Currency, decimal.NewFromInt(1).Div(legacy).Round(models.DecimalScale))
	}

	// Tier 2: nearest daily samples around the transaction date.
	for _, from := range s.cfg.TargetCurrencies {
		for _, to := range s.cfg.TargetCurrencies {
			if from == to || have[from+":"+to] {
				continue
			}
			nearest, err := s.rates.FindNearestDaily(ctx, from, to, expense.TransactionDate, s.cfg.MigrationWindowDays)
			if err != nil {
				s.logger.Warn("nearest lookup failed during migration",
					zap.Int64("expenseId", expense.ID),
					zap.String("from", from), zap.String("to", to), zap.Error(err))
				continue
			}
			if nearest != nil {
				add(from, to, nearest.Rate)
			}
		}
	}

	// Tier 3: current provider rates for whatever is still missing.
	for _, from := range s.cfg.TargetCurrencies {
		for _, to := range s.cfg.TargetCurrencies {
			if from == to || have[from+":"+to] {
				continue
			}
			rate, err := s.source.CurrentRate(ctx, from, to)
			if err != nil {
				continue
			}
			add(from, to, rate)
		}
	}
	return set
}

// Rollback deletes the frozen rates of every expense any run touched, in
// pages, then removes the state file. The daily table is untouched.
func (s *migrationService) Rollback(ctx context.Context) (int64, error) {
	if !s.mc.EnableRollback {
		return 0, &apperrors.ErrInvalidInput{Field: "rollback", Message: "rollback is disabled for this run"}
	}

	ids, err := s.rates.DistinctFrozenExpenseIDs(ctx)
	if err != nil {
		return 0, err
	}

	var deleted int64
	for start := 0; start < len(ids); start += rollbackPageSize {
		end := start + rollbackPageSize
		if end > len(ids) {
			end = len(ids)
		}
		n, err := s.rates.DeleteFrozenByExpenseIDs(ctx, ids[start:end])
		if err != nil {
			return deleted, err
		}
		deleted += n
	}

	if err := os.Remove(s.mc.StateFile); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("could not remove migration state file", zap.Error(err))
	}
	s.setState(nil)

	s.logf("INFO rollback removed frozen rates of %d expenses (%d rows)", len(ids), deleted)
	s.logger.Info("rollback completed",
		zap.Int("expenses", len(ids)),
		zap.Int64("rowsDeleted", deleted))
	return deleted, nil
}

// Status returns the in-memory state of the current run, or the persisted
// state of the last one. Nil when no run has ever happened.
func (s *migrationService) Status() (*models.MigrationState, error) {
	s.mu.Lock()
	if s.state != nil {
		copied := *s.state
		s.mu.Unlock()
		return &copied, nil
	}
	s.mu.Unlock()
	return s.loadStateFile(), nil
}

func (s *migrationService) setState(state *models.MigrationState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *migrationService) pause(state *models.MigrationState, started time.Time) (*models.MigrationState, error) {
	if err := state.Transition(models.MigrationStatusPaused); err != nil {
		return s.fail(state, started, err)
	}
	if err := s.persistState(state, started); err != nil {
		return s.fail(state, started, err)
	}
	s.logf("INFO run %s paused at expense id %d (%d/%d processed)",
		state.RunID, state.LastProcessedExpenseID, state.ProcessedCount, state.TotalExpenses)
	s.logger.Info("migration paused",
		zap.String("runId", state.RunID),
		zap.Int64("lastProcessedExpenseId", state.LastProcessedExpenseID))
	return state, nil
}

func (s *migrationService) fail(state *models.MigrationState, started time.Time, cause error) (*models.MigrationState, error) {
	_ = state.Transition(models.MigrationStatusFailed)
	if err := s.persistState(state, started); err != nil {
		s.logger.Error("could not persist failed migration state", zap.Error(err))
	}
	s.logf("ERROR run %s failed: %v", state.RunID, cause)
	return state, &apperrors.ErrMigrationFailure{RunID: state.RunID, Err: cause}
}

// persistState rewrites the state file atomically: full marshal to a temp
// file in the same directory, then rename over the old one.
func (s *migrationService) persistState(state *models.MigrationState, started time.Time) error {
	state.DurationMs = time.Since(started).Milliseconds()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.mc.StateFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.mc.StateFile)
}

// loadStateFile reads the persisted state. Unreadable or corrupted files
// are treated as absent so a damaged file restarts rather than wedges the
// migrator.
func (s *migrationService) loadStateFile() *models.MigrationState {
	data, err := os.ReadFile(s.mc.StateFile)
	if err != nil {
		return nil
	}
	var state models.MigrationState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("corrupted migration state file, starting over",
			zap.String("file", s.mc.StateFile), zap.Error(err))
		return nil
	}
	return &state
}

func (s *migrationService) reportProgress(state *models.MigrationState, started time.Time, processedThisRun int64) {
	elapsed := time.Since(started)
	var eta time.Duration
	if processedThisRun > 0 && elapsed > 0 {
		perItem := elapsed / time.Duration(processedThisRun)
		eta = perItem * time.Duration(state.Remaining())
	}
	s.logf("INFO run %s progress: %d/%d processed, migrated=%d skipped=%d errors=%d eta=%s",
		state.RunID, state.ProcessedCount, state.TotalExpenses,
		state.MigratedCount, state.SkippedCount, len(state.Errors), eta.Round(time.Second))
	s.logger.Info("migration progress",
		zap.String("runId", state.RunID),
		zap.Int64("processed", state.ProcessedCount),
		zap.Int64("total", state.TotalExpenses),
		zap.Duration("eta", eta))
}

// logf appends one ISO-8601-stamped line to the append-only migration
// log. Log failures are swallowed; the log is an audit aid, not a
// dependency.
func (s *migrationService) logf(format string, args ...interface{}) {
	if s.mc.LogFile == "" {
		return
	}
	f, err := os.OpenFile(s.mc.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%s %s\n", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
}
