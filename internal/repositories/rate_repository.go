package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pfennig-app/pfennig/internal/db"
	apperrors "github.com/pfennig-app/pfennig/internal/errors"
	"github.com/pfennig-app/pfennig/internal/models"
)

type rateRepository struct {
	db *db.DB
}

// NewRateRepository creates a new rate repository
func NewRateRepository(database *db.DB) RateRepository {
	return &rateRepository{db: database}
}

// dailyConflict is the upsert target: one row per (from, to, day).
var dailyConflict = clause.OnConflict{
	Columns: []clause.Column{
		{Name: "from_currency"},
		{Name: "to_currency"},
		{Name: "sample_day"},
	},
	DoUpdates: clause.AssignmentColumns([]string{"rate", "sample_date"}),
}

// frozenConflict ignores duplicates: the first captured rate wins forever.
var frozenConflict = clause.OnConflict{
	Columns: []clause.Column{
		{Name: "expense_id"},
		{Name: "from_currency"},
		{Name: "to_currency"},
	},
	DoNothing: true,
}

func (r *rateRepository) PutDaily(ctx context.Context, from, to string, rate decimal.Decimal, sampledAt time.Time) error {
	row := &models.DailyRate{
		FromCurrency: models.NormalizeCurrency(from),
		ToCurrency:   models.NormalizeCurrency(to),
		Rate:         rate.Round(models.DecimalScale),
		SampleDay:    models.TruncateToDay(sampledAt),
		SampleDate:   sampledAt.UTC(),
	}
	if err := row.Validate(); err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Clauses(dailyConflict).Create(row).Error; err != nil {
		return &apperrors.ErrStoreUnavailable{Op: "putDaily", Err: err}
	}
	return nil
}

func (r *rateRepository) BatchPutDaily(ctx context.Context, rates []models.RatePair, ts time.Time) (int, error) {
	if len(rates) == 0 {
		return 0, nil
	}

	rows := make([]*models.DailyRate, 0, len(rates))
	for _, p := range rates {
		row := &models.DailyRate{
			FromCurrency: models.NormalizeCurrency(p.From),
			ToCurrency:   models.NormalizeCurrency(p.To),
			Rate:         p.Rate.Round(models.DecimalScale),
			SampleDay:    models.TruncateToDay(ts),
			SampleDate:   ts.UTC(),
		}
		if err := row.Validate(); err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	// One transaction, one shared timestamp: every row of a force refresh
	// carries the identical sample_date.
	written := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			res := tx.Clauses(dailyConflict).Create(row)
			if res.Error != nil {
				return res.Error
			}
			written += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, &apperrors.ErrStoreUnavailable{Op: "batchPutDaily", Err: err}
	}
	return written, nil
}

func (r *rateRepository) ClearAllDaily(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.DailyRate{}).Error; err != nil {
		return &apperrors.ErrStoreUnavailable{Op: "clearAllDaily", Err: err}
	}
	return nil
}

func (r *rateRepository) ListCurrencies(ctx context.Context) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).Raw(
		`SELECT from_currency AS code FROM daily_exchange_rates
		 UNION
		 SELECT to_currency FROM daily_exchange_rates
		 ORDER BY code`).Scan(&codes).Error
	if err != nil {
		return nil, &apperrors.ErrStoreUnavailable{Op: "listCurrencies", Err: err}
	}
	return codes, nil
}

func (r *rateRepository) LatestDailyUpdate(ctx context.Context) (*time.Time, error) {
	var row models.DailyRate
	err := r.db.WithContext(ctx).Order("sample_date DESC").First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, &apperrors.ErrStoreUnavailable{Op: "latestDailyUpdate", Err: err}
	}
	t := row.SampleDate.UTC()
	return &t, nil
}

func (r *rateRepository) FindDaily(ctx context.Context, from, to string, recentWithin time.Duration) (*models.DailyRate, error) {
	cutoff := time.Now().UTC().Add(-recentWithin)

	var row models.DailyRate
	err := r.db.WithContext(ctx).
		Where("from_currency = ? AND to_currency = ? AND sample_date >= ?",
			models.NormalizeCurrency(from), models.NormalizeCurrency(to), cutoff).
		Order("sample_date DESC").
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, &apperrors.ErrStoreUnavailable{Op: "findDaily", Err: err}
	}
	return &row, nil
}

func (r *rateRepository) FindAnyDaily(ctx context.Context, from, to string) (*models.DailyRate, error) {
	var row models.DailyRate
	err := r.db.WithContext(ctx).
		Where("from_currency = ? AND to_currency = ?",
			models.NormalizeCurrency(from), models.NormalizeCurrency(to)).
		Order("sample_date DESC").
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, &apperrors.ErrStoreUnavailable{Op: "findAnyDaily", Err: err}
	}
	return &row, nil
}

func (r *rateRepository) FindNearestDaily(ctx context.Context, from, to string, target time.Time, windowDays int) (*models.NearestRate, error) {
	if windowDays < 0 {
		return nil, &apperrors.ErrInvalidInput{Field: "windowDays", Message: "must not be negative"}
	}

	targetDay := models.TruncateToDay(target)
	lower := targetDay.AddDate(0, 0, -windowDays)
	upper := targetDay.AddDate(0, 0, windowDays)
	fromC := models.NormalizeCurrency(from)
	toC := models.NormalizeCurrency(to)

	var before, after models.DailyRate
	foundBefore, err := r.findOne(ctx, &before,
		"from_currency = ? AND to_currency = ? AND sample_day <= ? AND sample_day >= ?",
		[]interface{}{fromC, toC, targetDay, lower}, "sample_day DESC")
	if err != nil {
		return nil, err
	}
	foundAfter, err := r.findOne(ctx, &after,
		"from_currency = ? AND to_currency = ? AND sample_day > ? AND sample_day <= ?",
		[]interface{}{fromC, toC, targetDay, upper}, "sample_day ASC")
	if err != nil {
		return nil, err
	}

	pick := func(row *models.DailyRate) *models.NearestRate {
		diff := daysBetween(models.TruncateToDay(row.SampleDay), targetDay)
		return &models.NearestRate{DailyRate: *row, DaysDifference: diff}
	}

	switch {
	case foundBefore && foundAfter:
		distBefore := daysBetween(models.TruncateToDay(before.SampleDay), targetDay)
		distAfter := daysBetween(models.TruncateToDay(after.SampleDay), targetDay)
		// Equal distance prefers the sample that was in force on the day.
		if distBefore <= distAfter {
			return pick(&before), nil
		}
		return pick(&after), nil
	case foundBefore:
		return pick(&before), nil
	case foundAfter:
		return pick(&after), nil
	default:
		return nil, nil
	}
}

func (r *rateRepository) findOne(ctx context.Context, dest *models.DailyRate, cond string, args []interface{}, order string) (bool, error) {
	err := r.db.WithContext(ctx).Where(cond, args...).Order(order).First(dest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, &apperrors.ErrStoreUnavailable{Op: "findNearestDaily", Err: err}
	}
	return true, nil
}

func (r *rateRepository) ExistsRatesForDay(ctx context.Context, day time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DailyRate{}).
		Where("sample_day = ?", models.TruncateToDay(day)).
		Count(&count).Error
	if err != nil {
		return false, &apperrors.ErrStoreUnavailable{Op: "existsRatesForDay", Err: err}
	}
	return count > 0, nil
}

func (r *rateRepository) PutFrozen(ctx context.Context, expenseID int64, rates []models.RatePair) (int, error) {
	if len(rates) == 0 {
		return 0, nil
	}

	rows := make([]*models.FrozenRate, 0, len(rates))
	for _, p := range rates {
		row := &models.FrozenRate{
			ExpenseID:    expenseID,
			FromCurrency: models.NormalizeCurrency(p.From),
			ToCurrency:   models.NormalizeCurrency(p.To),
			Rate:         p.Rate.Round(models.DecimalScale),
			CapturedAt:   time.Now().UTC(),
		}
		if err := row.Validate(); err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	written := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			res := tx.Clauses(frozenConflict).Create(row)
			if res.Error != nil {
				return res.Error
			}
			written += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, &apperrors.ErrStoreUnavailable{Op: "putFrozen", Err: err}
	}
	return written, nil
}

func (r *rateRepository) FindFrozen(ctx context.Context, expenseID int64, from, to string) (*models.FrozenRate, error) {
	var row models.FrozenRate
	err := r.db.WithContext(ctx).
		Where("expense_id = ? AND from_currency = ? AND to_currency = ?",
			expenseID, models.NormalizeCurrency(from), models.NormalizeCurrency(to)).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, &apperrors.ErrStoreUnavailable{Op: "findFrozen", Err: err}
	}
	return &row, nil
}

func (r *rateRepository) ListFrozen(ctx context.Context, expenseID int64) ([]models.FrozenRate, error) {
	var rows []models.FrozenRate
	err := r.db.WithContext(ctx).
		Where("expense_id = ?", expenseID).
		Order("from_currency, to_currency").
		Find(&rows).Error
	if err != nil {
		return nil, &apperrors.ErrStoreUnavailable{Op: "listFrozen", Err: err}
	}
	return rows, nil
}

func (r *rateRepository) CountFrozen(ctx context.Context, expenseID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FrozenRate{}).
		Where("expense_id = ?", expenseID).
		Count(&count).Error
	if err != nil {
		return 0, &apperrors.ErrStoreUnavailable{Op: "countFrozen", Err: err}
	}
	return count, nil
}

func (r *rateRepository) DistinctFrozenExpenseIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.FrozenRate{}).
		Distinct("expense_id").
		Order("expense_id").
		Pluck("expense_id", &ids).Error
	if err != nil {
		return nil, &apperrors.ErrStoreUnavailable{Op: "distinctFrozenExpenseIds", Err: err}
	}
	return ids, nil
}

func (r *rateRepository) DeleteFrozenByExpenseIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("expense_id IN ?", ids).
		Delete(&models.FrozenRate{})
	if res.Error != nil {
		return 0, &apperrors.ErrStoreUnavailable{Op: "deleteFrozenByExpenseIds", Err: res.Error}
	}
	return res.RowsAffected, nil
}

// daysBetween returns the absolute whole-day distance between two
// day-truncated instants.
func daysBetween(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
