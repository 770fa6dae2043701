package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pfennig-app/pfennig/internal/db"
)

// HealthHandler answers liveness probes with a database ping.
type HealthHandler struct {
	db     *db.DB
	logger *zap.Logger
}

func NewHealthHandler(database *db.DB, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: database, logger: logger}
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleHealth handles GET /health
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{Status: "ok", Database: "up", Timestamp: time.Now().UTC()}
	status := http.StatusOK
	if err := h.db.Health(); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		resp.Status = "degraded"
		resp.Database = "down"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
