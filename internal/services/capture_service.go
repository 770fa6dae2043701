package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pfennig-app/pfennig/internal/cache"
	"github.com/pfennig-app/pfennig/internal/config"
	apperrors "github.com/pfennig-app/pfennig/internal/errors"
	"github.com/pfennig-app/pfennig/internal/models"
	"github.com/pfennig-app/pfennig/internal/repositories"
)

// captureService freezes the S×S rate matrix for an expense at creation
// and on date-changing updates. Capture is best-effort: any failure is
// logged and the expense write proceeds untouched. Frozen rows are
// conflict-ignored, so a retried or partial capture only ever fills gaps.
type captureService struct {
	repo   repositories.RateRepository
	rates  *rateSource
	cfg    *config.Config
	logger *zap.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewCaptureService creates the rate capture engine.
func NewCaptureService(repo repositories.RateRepository, c *cache.Cache, provider FXProvider, cfg *config.Config, logger *zap.Logger) CaptureService {
	ctx, cancel := context.WithCancel(context.Background())
	return &captureService{
		repo:    repo,
		rates:   newRateSource(c, provider, logger),
		cfg:     cfg,
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// CaptureForExpense resolves every ordered (X, Y) pair of the configured
// set and persists what it could get. Pairs whose rate cannot be resolved
// are skipped with a warning; an entirely empty batch is an error.
func (s *captureService) CaptureForExpense(ctx context.Context, expense *models.Expense) (*models.CaptureResult, error) {
	result := &models.CaptureResult{ExpenseID: expense.ID}

	var batch []models.RatePair
pairs:
	for _, from := range s.cfg.TargetCurrencies {
		for _, to := range s.cfg.TargetCurrencies {
			if from == to {
				continue
			}
			if err := ctx.Err(); err != nil {
				// Cancelled mid-capture: stop resolving, persist what we
				// have. The conflict-ignore insert lets a later capture
				// fill the gaps.
				break pairs
			}
			rate, err := s.rates.CurrentRate(ctx, from, to)
			if err != nil {
				s.logger.Warn("capture: pair skipped",
					zap.Int64("expenseId", expense.ID),
					zap.String("from", from),
					zap.String("to", to),
					zap.Error(err))
				result.PairsSkipped++
				result.Failures = append(result.Failures, from+"->"+to)
				continue
			}
			batch = append(batch, models.RatePair{From: from, To: to, Rate: rate})
		}
	}

	if len(batch) == 0 {
		s.logger.Error("capture produced no rates",
			zap.Int64("expenseId", expense.ID),
			zap.String("currency", expense.Currency))
		return result, &apperrors.ErrRateMissing{From: expense.Currency, To: s.cfg.BaseCurrency}
	}

	// A cancelled context must not lose the pairs already resolved; the
	// write itself runs detached, like the migrator's mid-expense work.
	writeCtx := ctx
	if ctx.Err() != nil {
		writeCtx = context.WithoutCancel(ctx)
	}
	written, err := s.repo.PutFrozen(writeCtx, expense.ID, batch)
	if err != nil {
		return result, err
	}
	result.PairsWritten = written

	s.logger.Info("capture completed",
		zap.Int64("expenseId", expense.ID),
		zap.Int("written", written),
		zap.Int("skipped", result.PairsSkipped))
	return result, nil
}

// ScheduleCapture runs the capture in a goroutine owned by the service and
// returns immediately. The enclosing expense write never waits on it and
// never sees its errors.
func (s *captureService) ScheduleCapture(expense *models.Expense) {
	e := *expense
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.baseCtx, s.cfg.CaptureTimeout)
		defer cancel()
		if _, err := s.CaptureForExpense(ctx, &e); err != nil {
			s.logger.Warn("scheduled capture failed",
				zap.Int64("expenseId", e.ID),
				zap.Error(err))
		}
	}()
}

// Close cancels in-flight captures and waits for them to finish.
func (s *captureService) Close() {
	s.cancel()
	s.wg.Wait()
}

// DateChanged reports whether an expense update moved the transaction
// date to another UTC calendar day, which is the only update that
// re-triggers capture. Time-of-day shifts within the same day keep the
// frozen matrix.
func DateChanged(before, after time.Time) bool {
	return !models.TruncateToDay(before).Equal(models.TruncateToDay(after))
}
