package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pfennig-app/pfennig/internal/models"
	"github.com/pfennig-app/pfennig/internal/repositories"
)

// wallClockSkewWindow is how recent the stored last-update may be before
// the service substitutes its own wall clock. The daily table has seen
// minor timezone skew from earlier deployments; a sample within this
// window is, for reporting purposes, "just now".
const wallClockSkewWindow = 3 * time.Hour

type currencyService struct {
	repo   repositories.RateRepository
	logger *zap.Logger
}

// NewCurrencyService creates the currency listing and last-update surface.
func NewCurrencyService(repo repositories.RateRepository, logger *zap.Logger) CurrencyService {
	return &currencyService{repo: repo, logger: logger}
}

// AvailableCurrencies lists the distinct currencies of the daily table,
// falling back to the fixed default list while the table is still empty.
func (s *currencyService) AvailableCurrencies(ctx context.Context) ([]models.Currency, error) {
	codes, err := s.repo.ListCurrencies(ctx)
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return models.DefaultCurrencies, nil
	}
	out := make([]models.Currency, 0, len(codes))
	for _, code := range codes {
		out = append(out, models.Currency{
			Code:   code,
			Name:   models.CurrencyName(code),
			Symbol: models.CurrencySymbol(code),
		})
	}
	return out, nil
}

// LastUpdate answers "when were rates last refreshed?". A stored instant
// within the skew window is replaced by the server's wall clock, with the
// substitution noted in DebugInfo.
func (s *currencyService) LastUpdate(ctx context.Context) (*models.LastUpdateInfo, error) {
	last, err := s.repo.LatestDailyUpdate(ctx)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return &models.LastUpdateInfo{DebugInfo: "no daily rates stored yet"}, nil
	}

	now := time.Now().UTC()
	if age := now.Sub(*last); age >= 0 && age <= wallClockSkewWindow {
		s.logger.Debug("substituting wall clock for recent rate timestamp",
			zap.Time("stored", *last), zap.Duration("age", age))
		return &models.LastUpdateInfo{
			LastUpdateDate: &now,
			DebugInfo:      fmt.Sprintf("stored timestamp %s within %s, reporting server time", last.Format(time.RFC3339), wallClockSkewWindow),
		}, nil
	}
	return &models.LastUpdateInfo{LastUpdateDate: last}, nil
}
