package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pfennig-app/pfennig/internal/cache"
	"github.com/pfennig-app/pfennig/internal/config"
	apperrors "github.com/pfennig-app/pfennig/internal/errors"
	"github.com/pfennig-app/pfennig/internal/models"
	"github.com/pfennig-app/pfennig/internal/repositories"
)

// refreshGrace is how long after the last successful refresh the rates
// still count as healthy for status reporting.
const refreshGrace = 24 * time.Hour

type refreshService struct {
	repo   repositories.RateRepository
	rates  *rateSource
	cfg    *config.Config
	logger *zap.Logger

	// flight serializes concurrent refresh invocations per UTC day.
	flight singleflight.Group

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewRefreshService creates the daily refresh loop.
func NewRefreshService(repo repositories.RateRepository, c *cache.Cache, provider FXProvider, cfg *config.Config, logger *zap.Logger) RefreshService {
	return &refreshService{
		repo:   repo,
		rates:  newRateSource(c, provider, logger),
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// EnsureDailyRates makes sure today's slice of the daily table is
// populated. Without force it is a no-op when today already has rates;
// with force it rewrites the whole table under one shared timestamp so
// every pair carries the identical sample instant.
func (s *refreshService) EnsureDailyRates(ctx context.Context, force bool) (*models.RefreshResult, error) {
	day := models.TruncateToDay(time.Now())
	v, err, _ := s.flight.Do(day.Format("2006-01-02"), func() (interface{}, error) {
		return s.refresh(ctx, day, force)
	})
	if err != nil {
		if res, ok := v.(*models.RefreshResult); ok {
			return res, err
		}
		return nil, err
	}
	return v.(*models.RefreshResult), nil
}

func (s *refreshService) refresh(ctx context.Context, day time.Time, force bool) (*models.RefreshResult, error) {
	if !force {
		exists, err := s.repo.ExistsRatesForDay(ctx, day)
		if err != nil {
			return nil, err
		}
		if exists {
			s.logger.Debug("daily refresh skipped, rates exist", zap.Time("day", day))
			return &models.RefreshResult{Skipped: true}, nil
		}
	}

	result := &models.RefreshResult{}
	var pairs []models.RatePair
	for _, base := range s.cfg.BaseCurrencies {
		rates, err := s.rates.fetchBase(ctx, base)
		if err != nil {
			s.logger.Warn("daily refresh: base fetch failed",
				zap.String("base", base), zap.Error(err))
			result.Failures = append(result.Failures, base+": "+err.Error())
			continue
		}
		for _, target := range s.cfg.TargetCurrencies {
			if target == base {
				continue
			}
			rate, ok := rates[target]
			if !ok || !rate.IsPositive() {
				continue
			}
			pairs = append(pairs, models.RatePair{From: base, To: target, Rate: rate})
		}
	}

	if len(pairs) == 0 {
		s.logger.Error("daily refresh fetched nothing",
			zap.Strings("bases", s.cfg.BaseCurrencies),
			zap.Strings("failures", result.Failures))
		return result, &apperrors.ErrProviderUnavailable{
			Provider: "daily-refresh",
			Err:      fmt.Errorf("no base could be fetched: %s", strings.Join(result.Failures, "; ")),
		}
	}

	now := time.Now().UTC()
	result.SampledAt = &now
	if force {
		if err := s.repo.ClearAllDaily(ctx); err != nil {
			return result, err
		}
		written, err := s.repo.BatchPutDaily(ctx, pairs, now)
		if err != nil {
			return result, err
		}
		result.Updated = written
	} else {
		for _, p := range pairs {
			if err := s.repo.PutDaily(ctx, p.From, p.To, p.Rate, now); err != nil {
				return result, err
			}
			result.Updated++
		}
	}

	s.logger.Info("daily refresh completed",
		zap.Int("updated", result.Updated),
		zap.Bool("force", force),
		zap.Time("day", day))
	return result, nil
}

// Status reports refresh health with a one-day grace horizon.
func (s *refreshService) Status(ctx context.Context) *models.RatesStatus {
	last, err := s.repo.LatestDailyUpdate(ctx)
	if err != nil {
		return &models.RatesStatus{Healthy: false, NeedsUpdate: true, Error: err.Error()}
	}
	status := &models.RatesStatus{Healthy: true, LastUpdate: last}
	if last == nil || time.Since(*last) > refreshGrace {
		status.NeedsUpdate = true
	}
	return status
}

// Start launches the heartbeat worker that nudges the refresh once per
// check interval. The per-day existence check makes the nudges cheap.
func (s *refreshService) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ticker := time.NewTicker(s.cfg.RefreshCheckInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
					if _, err := s.EnsureDailyRates(ctx, false); err != nil {
						s.logger.Warn("heartbeat refresh failed", zap.Error(err))
					}
					cancel()
				case <-s.stopCh:
					return
				}
			}
		}()
	})
}

// Stop terminates the heartbeat worker.
func (s *refreshService) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}
