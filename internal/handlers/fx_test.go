package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfennig-app/pfennig/internal/cache"
	"github.com/pfennig-app/pfennig/internal/models"
)

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp
}

func postJSON(t *testing.T, url string, body interface{}, out interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp
}

func TestHandleRate(t *testing.T) {
	env := newHandlerEnv(t)
	env.conversion.rate = &models.ExchangeRate{From: "EUR", To: "USD", Rate: decimal.NewFromFloat(1.1)}

	var got models.ExchangeRate
	resp := getJSON(t, env.server.URL+"/api/fx/rate?from=EUR&to=USD", &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "EUR", got.From)
	assert.Equal(t, "USD", got.To)
	assert.Equal(t, "1.1", got.Rate.String())
}

func TestHandleRateMissingParams(t *testing.T) {
	env := newHandlerEnv(t)

	var got ErrorResponse
	resp := getJSON(t, env.server.URL+"/api/fx/rate?from=EUR", &got)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_input", got.Kind)
}

func TestHandleConvert(t *testing.T) {
	env := newHandlerEnv(t)
	env.conversion.result = &models.ConversionResult{
		OriginalAmount:  decimal.NewFromInt(100),
		From:            "EUR",
		To:              "USD",
		ConvertedAmount: decimal.NewFromInt(110),
		Rate:            decimal.NewFromFloat(1.1),
		Provenance:      models.ProvenanceCurrent,
	}

	var got models.ConversionResult
	resp := postJSON(t, env.server.URL+"/api/fx/convert", ConvertRequest{
		Amount: decimal.NewFromInt(100), From: "EUR", To: "USD",
	}, &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.ProvenanceCurrent, got.Provenance)
	assert.Equal(t, "110", got.ConvertedAmount.String())

	assert.Equal(t, "EUR", env.conversion.gotFrom)
	assert.Equal(t, "USD", env.conversion.gotTo)
	assert.Nil(t, env.conversion.gotExpenseID)
}

func TestHandleConvertRejectsBadJSON(t *testing.T) {
	env := newHandlerEnv(t)

	resp, err := http.Post(env.server.URL+"/api/fx/convert", "application/json", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleUpdate(t *testing.T) {
	env := newHandlerEnv(t)
	env.refresh.result = &models.RefreshResult{Updated: 12}

	var got UpdateRatesResponse
	resp := postJSON(t, env.server.URL+"/api/fx/update", UpdateRatesRequest{Force: true}, &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, got.Success)
	assert.Equal(t, 12, got.Updated)
	assert.True(t, env.refresh.gotForce)
}

func TestHandleUpdateReportsFailureAsValue(t *testing.T) {
	env := newHandlerEnv(t)
	env.refresh.err = assert.AnError

	var got UpdateRatesResponse
	resp := postJSON(t, env.server.URL+"/api/fx/update", nil, &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, got.Success)
	assert.NotEmpty(t, got.Error)
}

func TestHandleForceUpdate(t *testing.T) {
	env := newHandlerEnv(t)
	stamped := mustTime(t, "2024-03-01T09:30:00Z")
	env.refresh.result = &models.RefreshResult{Updated: 12, SampledAt: &stamped}

	var got ForceUpdateResponse
	resp := postJSON(t, env.server.URL+"/api/fx/force-update", nil, &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, got.Success)
	assert.Equal(t, 12, got.Updated)
	assert.True(t, got.Timestamp.Equal(stamped),
		"response must carry the instant the rows were stamped with")
	assert.True(t, env.refresh.gotForce)
}

func TestHandleLastUpdate(t *testing.T) {
	env := newHandlerEnv(t)
	when := mustTime(t, "2024-03-01T08:00:00Z")
	env.currencies.info = &models.LastUpdateInfo{LastUpdateDate: &when}

	var got LastUpdateResponse
	resp := getJSON(t, env.server.URL+"/api/fx/last-update", &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, got.Success)
	require.NotNil(t, got.LastUpdateDate)
	assert.True(t, got.LastUpdateDate.Equal(when))
}

func TestHandleStatus(t *testing.T) {
	env := newHandlerEnv(t)
	last := time.Now().UTC()
	env.refresh.status = &models.RatesStatus{Healthy: true, LastUpdate: &last}

	var got models.RatesStatus
	resp := getJSON(t, env.server.URL+"/api/fx/status", &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, got.Healthy)
	assert.False(t, got.NeedsUpdate)
}

func TestHandleCurrencies(t *testing.T) {
	env := newHandlerEnv(t)
	env.currencies.currencies = models.DefaultCurrencies

	var got []models.Currency
	resp := getJSON(t, env.server.URL+"/api/currencies", &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, got, len(models.DefaultCurrencies))
}

func TestMethodNotAllowed(t *testing.T) {
	env := newHandlerEnv(t)

	resp := postJSON(t, env.server.URL+"/api/fx/last-update", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	env := newHandlerEnv(t)

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/api/fx/convert", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCacheMetricsEndpoint(t *testing.T) {
	env := newHandlerEnv(t)
	env.cache.Set(cache.CurrentRateKey("EUR", "USD"), cache.KeyCurrentRate, decimal.NewFromFloat(1.1))

	var got cache.Metrics
	resp := getJSON(t, env.server.URL+"/api/cache/metrics", &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, got.Entries)
}

func TestCacheInvalidateEndpoint(t *testing.T) {
	env := newHandlerEnv(t)
	env.cache.Set(cache.CurrentRateKey("EUR", "USD"), cache.KeyCurrentRate, decimal.NewFromFloat(1.1))
	env.cache.Set(cache.CurrentRateKey("GBP", "CHF"), cache.KeyCurrentRate, decimal.NewFromFloat(1.17))

	var got InvalidateResponse
	resp := postJSON(t, env.server.URL+"/api/cache/invalidate", InvalidateRequest{Currency: "EUR"}, &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, got.Success)
	assert.Equal(t, 1, got.Removed)

	_, ok := env.cache.Get(cache.CurrentRateKey("GBP", "CHF"), cache.KeyCurrentRate)
	assert.True(t, ok)
}

func TestCacheWarmEndpoint(t *testing.T) {
	env := newHandlerEnv(t)

	var got WarmResponse
	resp := postJSON(t, env.server.URL+"/api/cache/warm", WarmRequest{
		Rates: []cache.WarmEntry{{From: "EUR", To: "USD", Rate: decimal.NewFromFloat(1.1)}},
	}, &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, got.Seeded)

	_, ok := env.cache.Get(cache.CurrentRateKey("EUR", "USD"), cache.KeyCurrentRate)
	assert.True(t, ok)
}
