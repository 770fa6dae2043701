package handlers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/pfennig-app/pfennig/internal/errors"
	"github.com/pfennig-app/pfennig/internal/models"
	"github.com/pfennig-app/pfennig/internal/services"
)

// FXHandler serves the currency operations of the RPC surface.
type FXHandler struct {
	conversion services.ConversionService
	refresh    services.RefreshService
	currencies services.CurrencyService
	logger     *zap.Logger
}

func NewFXHandler(conversion services.ConversionService, refresh services.RefreshService, currencies services.CurrencyService, logger *zap.Logger) *FXHandler {
	return &FXHandler{
		conversion: conversion,
		refresh:    refresh,
		currencies: currencies,
		logger:     logger,
	}
}

// ConvertRequest is the convertCurrency input.
type ConvertRequest struct {
	Amount decimal.Decimal `json:"amount"`
	From   string          `json:"from"`
	To     string          `json:"to"`
}

// UpdateRatesRequest is the updateDailyExchangeRates input.
type UpdateRatesRequest struct {
	Force bool `json:"force"`
}

// UpdateRatesResponse reports the outcome of a refresh invocation.
type UpdateRatesResponse struct {
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped"`
	Updated int    `json:"updated,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ForceUpdateResponse reports a force refresh: row count and the shared
// timestamp every row now carries.
type ForceUpdateResponse struct {
	Success   bool      `json:"success"`
	Updated   int       `json:"updated"`
	Timestamp time.Time `json:"timestamp"`
}

// LastUpdateResponse answers getLastExchangeRateUpdate.
type LastUpdateResponse struct {
	Success        bool       `json:"success"`
	LastUpdateDate *time.Time `json:"lastUpdateDate"`
	DebugInfo      string     `json:"debugInfo,omitempty"`
}

// HandleRate handles GET /api/fx/rate
// @Summary Get exchange rate
// @Description Resolve the current rate for a currency pair through the fallback chain
// @Tags fx
// @Produce json
// @Param from query string true "Source currency"
// @Param to query string true "Target currency"
// @Success 200 {object} models.ExchangeRate
// @Failure 400 {object} ErrorResponse
// @Router /fx/rate [get]
func (h *FXHandler) HandleRate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, h.logger, &apperrors.ErrInvalidInput{Field: "from/to", Message: "both query parameters are required"})
		return
	}

	rate, err := h.conversion.GetRate(r.Context(), from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

// HandleConvert handles POST /api/fx/convert
// @Summary Convert an amount
// @Description Convert an amount between currencies using the current-rate path
// @Tags fx
// @Accept json
// @Produce json
// @Param request body ConvertRequest true "Conversion request"
// @Success 200 {object} models.ConversionResult
// @Failure 400 {object} ErrorResponse
// @Router /fx/convert [post]
func (h *FXHandler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ConvertRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.conversion.Convert(r.Context(), req.Amount, req.From, req.To, nil)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleUpdate handles POST /api/fx/update
// @Summary Refresh daily rates
// @Description Ensure today's daily rates exist; force rewrites the whole table
// @Tags fx
// @Accept json
// @Produce json
// @Param request body UpdateRatesRequest false "Refresh options"
// @Success 200 {object} UpdateRatesResponse
// @Router /fx/update [post]
func (h *FXHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req UpdateRatesRequest
	if r.Body != nil && r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	result, err := h.refresh.EnsureDailyRates(r.Context(), req.Force)
	if err != nil {
		// Refresh outcomes are values for the client, not transport
		// errors: the UI uses them for status indicators.
		writeJSON(w, http.StatusOK, UpdateRatesResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, UpdateRatesResponse{
		Success: true,
		Skipped: result.Skipped,
		Updated: result.Updated,
	})
}

// HandleForceUpdate handles POST /api/fx/force-update
// @Summary Force refresh daily rates
// @Description Clear and repopulate the daily table under one shared timestamp
// @Tags fx
// @Produce json
// @Success 200 {object} ForceUpdateResponse
// @Failure 502 {object} ErrorResponse
// @Router /fx/force-update [post]
func (h *FXHandler) HandleForceUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.refresh.EnsureDailyRates(r.Context(), true)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	// The response carries the exact instant the rows were stamped with,
	// so it matches a later last-update lookup.
	ts := time.Now().UTC()
	if result.SampledAt != nil {
		ts = *result.SampledAt
	}
	writeJSON(w, http.StatusOK, ForceUpdateResponse{
		Success:   true,
		Updated:   result.Updated,
		Timestamp: ts,
	})
}

// HandleLastUpdate handles GET /api/fx/last-update
// @Summary Last refresh instant
// @Description When the daily rates were last refreshed
// @Tags fx
// @Produce json
// @Success 200 {object} LastUpdateResponse
// @Router /fx/last-update [get]
func (h *FXHandler) HandleLastUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	info, err := h.currencies.LastUpdate(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, LastUpdateResponse{
		Success:        true,
		LastUpdateDate: info.LastUpdateDate,
		DebugInfo:      info.DebugInfo,
	})
}

// HandleStatus handles GET /api/fx/status
// @Summary Rates health
// @Description Refresh health with a one-day grace horizon
// @Tags fx
// @Produce json
// @Success 200 {object} models.RatesStatus
// @Router /fx/status [get]
func (h *FXHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.refresh.Status(r.Context()))
}

// HandleCurrencies handles GET /api/currencies
// @Summary List available currencies
// @Description Distinct currencies of the daily table, with a fixed fallback when empty
// @Tags fx
// @Produce json
// @Success 200 {array} models.Currency
// @Router /currencies [get]
func (h *FXHandler) HandleCurrencies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	currencies, err := h.currencies.AvailableCurrencies(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if currencies == nil {
		currencies = []models.Currency{}
	}
	writeJSON(w, http.StatusOK, currencies)
}
