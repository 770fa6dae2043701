package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pfennig-app/pfennig/internal/cache"
	apperrors "github.com/pfennig-app/pfennig/internal/errors"
	"github.com/pfennig-app/pfennig/internal/models"
)

// rateSource is the shared current-rate path: per-pair cache first, then
// the provider's whole-base map through the api_response cache. The cache
// single-flight is what keeps concurrent captures from fanning out into
// one provider call per pair.
type rateSource struct {
	cache    *cache.Cache
	provider FXProvider
	logger   *zap.Logger
}

func newRateSource(c *cache.Cache, provider FXProvider, logger *zap.Logger) *rateSource {
	return &rateSource{cache: c, provider: provider, logger: logger}
}

// CurrentRate resolves the provider's current rate for (from, to).
func (s *rateSource) CurrentRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from = models.NormalizeCurrency(from)
	to = models.NormalizeCurrency(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	if v, ok := s.cache.Get(cache.CurrentRateKey(from, to), cache.KeyCurrentRate); ok {
		return v.(decimal.Decimal), nil
	}

	rates, err := s.fetchBase(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := rates[to]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, &apperrors.ErrRateMissing{From: from, To: to}
	}

	s.cache.Set(cache.CurrentRateKey(from, to), cache.KeyCurrentRate, rate)
	return rate, nil
}

// fetchBase returns the provider's full rate map for a base, coalesced and
// cached under the api_response key type.
func (s *rateSource) fetchBase(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	v, err := s.cache.GetOrCompute(ctx, cache.APIResponseKey(base), cache.KeyAPIResponse,
		func(ctx context.Context) (interface{}, error) {
			return s.provider.FetchLatest(ctx, base)
		})
	if err != nil {
		return nil, err
	}
	rates, ok := v.(map[string]decimal.Decimal)
	if !ok {
		return nil, &apperrors.ErrProviderUnavailable{
			Provider: s.provider.Name(),
			Err:      fmt.Errorf("unexpected cached value for base %s", base),
		}
	}
	return rates, nil
}
