package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/pfennig-app/pfennig/internal/errors"
	"github.com/pfennig-app/pfennig/internal/models"
)

// httpFXProvider fetches current rates over HTTP from an endpoint of the
// form …/latest/{base}. It never retries; the refresh loop and the cache
// single-flight own the retry and coalescing policy.
type httpFXProvider struct {
	urlFor  func(base string) string
	client  *http.Client
	targets []string
	logger  *zap.Logger
}

// NewHTTPFXProvider creates the HTTP provider client. urlFor expands the
// configured URL template for a base currency; targets is the configured
// currency set S the caller cares about.
func NewHTTPFXProvider(urlFor func(base string) string, timeout time.Duration, targets []string, logger *zap.Logger) FXProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &httpFXProvider{
		urlFor:  urlFor,
		client:  &http.Client{Timeout: timeout},
		targets: targets,
		logger:  logger,
	}
}

func (p *httpFXProvider) Name() string { return "exchangerate-api" }

// providerResponse covers both the v4 ("rates") and v6
// ("conversion_rates") response layouts of the common rate APIs.
type providerResponse struct {
	Result          string             `json:"result"`
	Rates           map[string]float64 `json:"rates"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

func (p *httpFXProvider) FetchLatest(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	base = models.NormalizeCurrency(base)
	url := p.urlFor(base)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &apperrors.ErrProviderUnavailable{Provider: p.Name(), Err: err}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &apperrors.ErrProviderUnavailable{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apperrors.ErrProviderUnavailable{
			Provider: p.Name(),
			Err:      fmt.Errorf("status %d for base %s", resp.StatusCode, base),
		}
	}

	var body providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &apperrors.ErrProviderUnavailable{Provider: p.Name(), Err: fmt.Errorf("decode: %w", err)}
	}
	if body.Result != "" && body.Result != "success" {
		return nil, &apperrors.ErrProviderUnavailable{Provider: p.Name(), Err: fmt.Errorf("result %q", body.Result)}
	}

	raw := body.ConversionRates
	if raw == nil {
		raw = body.Rates
	}
	if raw == nil {
		return nil, &apperrors.ErrProviderUnavailable{Provider: p.Name(), Err: fmt.Errorf("response missing rates")}
	}

	// Keep only configured targets with positive rates. Missing targets
	// are a partial result the caller sees as absent keys.
	out := make(map[string]decimal.Decimal, len(p.targets))
	for _, target := range p.targets {
		if target == base {
			continue
		}
		v, ok := raw[target]
		if !ok || v <= 0 {
			continue
		}
		out[target] = decimal.NewFromFloat(v).Round(models.DecimalScale)
	}

	if len(out) < len(p.targets)-1 && p.logger != nil {
		p.logger.Warn("provider returned partial rate map",
			zap.String("base", base),
			zap.Int("got", len(out)),
			zap.Int("wanted", len(p.targets)-1))
	}
	return out, nil
}

// staticFXProvider serves a fixed rate table. It backs unit tests and
// network-free local development.
type staticFXProvider struct {
	rates map[string]map[string]decimal.Decimal // base → target → rate
}

// NewStaticFXProvider creates a provider answering from the given fixed
// table.
func NewStaticFXProvider(rates map[string]map[string]decimal.Decimal) FXProvider {
	return &staticFXProvider{rates: rates}
}

func (p *staticFXProvider) Name() string { return "static" }

func (p *staticFXProvider) FetchLatest(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	table, ok := p.rates[models.NormalizeCurrency(base)]
	if !ok {
		return nil, &apperrors.ErrProviderUnavailable{Provider: p.Name(), Err: fmt.Errorf("no rates for base %s", base)}
	}
	out := make(map[string]decimal.Decimal, len(table))
	for k, v := range table {
		out[k] = v
	}
	return out, nil
}
