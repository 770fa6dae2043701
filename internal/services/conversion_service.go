package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pfennig-app/pfennig/internal/cache"
	"github.com/pfennig-app/pfennig/internal/config"
	apperrors "github.com/pfennig-app/pfennig/internal/errors"
	"github.com/pfennig-app/pfennig/internal/models"
	"github.com/pfennig-app/pfennig/internal/repositories"
)

// hardcodedRates is the step-6 safety net: rough figures for the common
// pairs, used only when the store, the provider, and every historical
// source came up empty.
var hardcodedRates = map[string]decimal.Decimal{
	"EUR:USD": decimal.NewFromFloat(1.08),
	"USD:EUR": decimal.NewFromFloat(0.93),
	"EUR:GBP": decimal.NewFromFloat(0.85),
	"GBP:EUR": decimal.NewFromFloat(1.18),
	"EUR:CHF": decimal.NewFromFloat(0.94),
	"CHF:EUR": decimal.NewFromFloat(1.06),
	"EUR:ZAR": decimal.NewFromFloat(20.0),
	"ZAR:EUR": decimal.NewFromFloat(0.05),
	"EUR:JPY": decimal.NewFromFloat(160.0),
	"JPY:EUR": decimal.NewFromFloat(0.00625),
	"USD:ZAR": decimal.NewFromFloat(18.5),
	"ZAR:USD": decimal.NewFromFloat(0.054),
	"USD:GBP": decimal.NewFromFloat(0.79),
	"GBP:USD": decimal.NewFromFloat(1.27),
}

// conversionService resolves conversions through the strict fallback
// chain. A frozen rate, once captured, wins in perpetuity for its expense;
// that is what keeps historical reports stable against rate drift.
type conversionService struct {
	rateRepo    repositories.RateRepository
	expenseRepo repositories.ExpenseRepository
	cache       *cache.Cache
	rates       *rateSource
	cfg         *config.Config
	logger      *zap.Logger
}

// NewConversionService creates the conversion engine.
func NewConversionService(rateRepo repositories.RateRepository, expenseRepo repositories.ExpenseRepository, c *cache.Cache, provider FXProvider, cfg *config.Config, logger *zap.Logger) ConversionService {
	return &conversionService{
		rateRepo:    rateRepo,
		expenseRepo: expenseRepo,
		cache:       c,
		rates:       newRateSource(c, provider, logger),
		cfg:         cfg,
		logger:      logger,
	}
}

// Convert resolves (amount, from, to) to a converted amount, a rate, and
// the provenance of that rate. The chain:
//
//	0 from == to                       → identity
//	1 frozen rate for the expense      → frozen
//	2 daily near the expense date      → interpolated
//	3 daily within the recent window   → current
//	4 provider rate (persisted)        → current
//	5 any daily, however stale         → current
//	6 hardcoded table                  → fallback-hardcoded
//	7 rate = 1                         → current
//
// A failing step downgrades to the next with a warning; the call never
// aborts for well-formed input.
func (s *conversionService) Convert(ctx context.Context, amount decimal.Decimal, from, to string, expenseID *int64) (*models.ConversionResult, error) {
	from = models.NormalizeCurrency(from)
	to = models.NormalizeCurrency(to)
	if !amount.IsPositive() {
		return nil, &apperrors.ErrInvalidInput{Field: "amount", Message: "must be positive"}
	}
	if !models.ValidCurrencyCode(from) {
		return nil, &apperrors.ErrInvalidInput{Field: "from", Message: "must be a 3-letter currency code"}
	}
	if !models.ValidCurrencyCode(to) {
		return nil, &apperrors.ErrInvalidInput{Field: "to", Message: "must be a 3-letter currency code"}
	}

	// Step 0: identity.
	if from == to {
		return s.finish(amount, from, to, decimal.NewFromInt(1), models.ProvenanceIdentity, nil, nil, expenseID), nil
	}

	if cached := s.cachedResult(amount, from, to, expenseID); cached != nil {
		return cached, nil
	}

	// Step 1: frozen per-expense rate.
	if expenseID != nil {
		if rate, ok := s.frozenRate(ctx, *expenseID, from, to); ok {
			return s.finish(amount, from, to, rate, models.ProvenanceFrozen, nil, nil, expenseID), nil
		}
	}

	// Step 2: nearest daily around the expense date.
	if expenseID != nil {
		if nearest := s.nearestForExpense(ctx, *expenseID, from, to); nearest != nil {
			date := nearest.SampleDate
			diff := nearest.DaysDifference
			return s.finish(amount, from, to, nearest.Rate, models.ProvenanceInterpolated, &date, &diff, expenseID), nil
		}
	}

	// Step 3: recent daily.
	row, err := s.rateRepo.FindDaily(ctx, from, to, s.cfg.RecentWindow)
	if err != nil {
		s.downgrade("recent daily lookup", from, to, err)
	} else if row != nil {
		return s.finish(amount, from, to, row.Rate, models.ProvenanceCurrent, nil, nil, expenseID), nil
	}

	// Step 4: provider, persisted for today.
	rate, err := s.rates.CurrentRate(ctx, from, to)
	if err != nil {
		s.downgrade("provider", from, to, err)
	} else {
		if perr := s.rateRepo.PutDaily(ctx, from, to, rate, time.Now().UTC()); perr != nil {
			s.logger.Warn("could not persist provider rate",
				zap.String("from", from), zap.String("to", to), zap.Error(perr))
		}
		return s.finish(amount, from, to, rate, models.ProvenanceCurrent, nil, nil, expenseID), nil
	}

	// Step 5: any stored daily, however stale.
	row, err = s.rateRepo.FindAnyDaily(ctx, from, to)
	if err != nil {
		s.downgrade("stale daily lookup", from, to, err)
	} else if row != nil {
		date := row.SampleDate
		return s.finish(amount, from, to, row.Rate, models.ProvenanceCurrent, &date, nil, expenseID), nil
	}

	// Step 6: hardcoded table.
	if rate, ok := hardcodedRates[from+":"+to]; ok {
		s.logger.Warn("conversion served from hardcoded fallback",
			zap.String("from", from), zap.String("to", to))
		return s.finish(amount, from, to, rate, models.ProvenanceFallback, nil, nil, expenseID), nil
	}

	// Step 7: the chain is total; rate 1 is the terminal answer.
	s.logger.Error("all rate sources exhausted, using rate 1",
		zap.String("from", from), zap.String("to", to))
	return s.finish(amount, from, to, decimal.NewFromInt(1), models.ProvenanceCurrent, nil, nil, expenseID), nil
}

// GetRate resolves the (from, to) rate through the stateless part of the
// chain.
func (s *conversionService) GetRate(ctx context.Context, from, to string) (*models.ExchangeRate, error) {
	res, err := s.Convert(ctx, decimal.NewFromInt(1), from, to, nil)
	if err != nil {
		return nil, err
	}
	return &models.ExchangeRate{From: res.From, To: res.To, Rate: res.Rate}, nil
}

// frozenRate reads the per-expense captured rate, via the historical_rate
// cache. ok is false on any miss or error: a store failure downgrades the
// chain rather than failing the conversion.
func (s *conversionService) frozenRate(ctx context.Context, expenseID int64, from, to string) (decimal.Decimal, bool) {
	key := cache.HistoricalRateKey(expenseID, from, to)
	if v, ok := s.cache.Get(key, cache.KeyHistoricalRate); ok {
		return v.(decimal.Decimal), true
	}

	row, err := s.rateRepo.FindFrozen(ctx, expenseID, from, to)
	if err != nil {
		s.downgrade("frozen lookup", from, to, err)
		return decimal.Zero, false
	}
	if row == nil {
		return decimal.Zero, false
	}
	s.cache.Set(key, cache.KeyHistoricalRate, row.Rate)
	return row.Rate, true
}

// nearestForExpense finds the daily sample closest to the expense's
// transaction date, within the configured window.
func (s *conversionService) nearestForExpense(ctx context.Context, expenseID int64, from, to string) *models.NearestRate {
	expense, err := s.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		s.downgrade("expense lookup", from, to, err)
		return nil
	}
	if expense == nil {
		return nil
	}

	nearest, err := s.rateRepo.FindNearestDaily(ctx, from, to, expense.TransactionDate, s.cfg.NearestWindowDays)
	if err != nil {
		s.downgrade("nearest daily lookup", from, to, err)
		return nil
	}
	return nearest
}

func (s *conversionService) downgrade(step, from, to string, err error) {
	s.logger.Warn("conversion step failed, falling through",
		zap.String("step", step),
		zap.String("from", from),
		zap.String("to", to),
		zap.Error(err))
}

// finish assembles the result and caches it under the appropriate
// conversion key type.
func (s *conversionService) finish(amount decimal.Decimal, from, to string, rate decimal.Decimal, prov models.Provenance, rateDate *time.Time, daysDiff *int, expenseID *int64) *models.ConversionResult {
	result := &models.ConversionResult{
		OriginalAmount:  amount,
		From:            from,
		To:              to,
		ConvertedAmount: amount.Mul(rate).Round(models.DecimalScale),
		Rate:            rate,
		Provenance:      prov,
		RateDate:        rateDate,
		DaysDifference:  daysDiff,
	}
	if prov == models.ProvenanceIdentity {
		return result
	}
	if expenseID != nil {
		s.cache.Set(cache.ConversionHistoricalKey(amount, from, to, *expenseID), cache.KeyConversionHistorical, result)
	} else {
		s.cache.Set(cache.ConversionKey(amount, from, to), cache.KeyConversionCurrent, result)
	}
	return result
}

// cachedResult serves a previously computed conversion, if present.
func (s *conversionService) cachedResult(amount decimal.Decimal, from, to string, expenseID *int64) *models.ConversionResult {
	var key string
	var kt cache.KeyType
	if expenseID != nil {
		key, kt = cache.ConversionHistoricalKey(amount, from, to, *expenseID), cache.KeyConversionHistorical
	} else {
		key, kt = cache.ConversionKey(amount, from, to), cache.KeyConversionCurrent
	}
	if v, ok := s.cache.Get(key, kt); ok {
		if res, ok := v.(*models.ConversionResult); ok {
			return res
		}
	}
	return nil
}
