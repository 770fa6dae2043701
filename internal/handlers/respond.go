// Package handlers exposes the exchange-rate core over HTTP with typed
// request and response payloads.
package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/pfennig-app/pfennig/internal/errors"
)

// ErrorResponse is the uniform error payload: a human-readable message
// plus the machine-readable error kind.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: apperrors.Kind(err)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body: " + err.Error(), Kind: "invalid_input"})
		return false
	}
	return true
}
