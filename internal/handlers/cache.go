package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/pfennig-app/pfennig/internal/cache"
)

// CacheHandler exposes cache metrics, invalidation, and warming.
type CacheHandler struct {
	cache  *cache.Cache
	logger *zap.Logger
}

func NewCacheHandler(c *cache.Cache, logger *zap.Logger) *CacheHandler {
	return &CacheHandler{cache: c, logger: logger}
}

// InvalidateRequest narrows an invalidation to one currency, or clears
// everything.
type InvalidateRequest struct {
	Currency string `json:"currency,omitempty"`
	ClearAll bool   `json:"clearAll,omitempty"`
}

// InvalidateResponse reports how many entries were dropped.
type InvalidateResponse struct {
	Success bool `json:"success"`
	Removed int  `json:"removed"`
}

// WarmRequest pre-seeds current rates from a caller-supplied snapshot.
type WarmRequest struct {
	Rates []cache.WarmEntry `json:"rates"`
}

// WarmResponse reports how many entries were seeded.
type WarmResponse struct {
	Success bool `json:"success"`
	Seeded  int  `json:"seeded"`
}

// HandleMetrics handles GET /api/cache/metrics
// @Summary Cache metrics
// @Description Entry counts, hit rate, memory estimate, and age bounds
// @Tags cache
// @Produce json
// @Success 200 {object} cache.Metrics
// @Router /cache/metrics [get]
func (h *CacheHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.cache.Metrics())
}

// HandleInvalidate handles POST /api/cache/invalidate
// @Summary Invalidate cache entries
// @Description Remove entries matching a currency, or clear the whole cache
// @Tags cache
// @Accept json
// @Produce json
// @Param request body InvalidateRequest true "Invalidation request"
// @Success 200 {object} InvalidateResponse
// @Router /cache/invalidate [post]
func (h *CacheHandler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req InvalidateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var removed int
	if req.ClearAll {
		removed = h.cache.InvalidateAll()
	} else {
		removed = h.cache.Invalidate(req.Currency, "")
	}
	h.logger.Info("cache invalidated",
		zap.String("currency", req.Currency),
		zap.Bool("clearAll", req.ClearAll),
		zap.Int("removed", removed))
	writeJSON(w, http.StatusOK, InvalidateResponse{Success: true, Removed: removed})
}

// HandleWarm handles POST /api/cache/warm
// @Summary Warm the cache
// @Description Pre-seed current rates from a caller-supplied snapshot
// @Tags cache
// @Accept json
// @Produce json
// @Param request body WarmRequest true "Rates to seed"
// @Success 200 {object} WarmResponse
// @Router /cache/warm [post]
func (h *CacheHandler) HandleWarm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req WarmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, WarmResponse{Success: true, Seeded: h.cache.Warm(req.Rates)})
}
