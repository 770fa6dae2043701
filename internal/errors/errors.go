// Package errors defines the behavioral error kinds of the exchange-rate
// core. Each kind is a small struct so callers can match with errors.As and
// handlers can map kinds to HTTP status codes without string inspection.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrInvalidInput reports a caller mistake: unknown currency, non-positive
// amount or rate, malformed date.
type ErrInvalidInput struct {
	Field   string
	Message string
}

func (e *ErrInvalidInput) Error() string {
	return e.Field + ": " + e.Message
}

// ErrStoreUnavailable reports a transient database failure.
type ErrStoreUnavailable struct {
	Op  string
	Err error
}

func (e *ErrStoreUnavailable) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *ErrStoreUnavailable) Unwrap() error { return e.Err }

// ErrProviderUnavailable reports a network, HTTP, or parse failure while
// talking to the external rate provider.
type ErrProviderUnavailable struct {
	Provider string
	Err      error
}

func (e *ErrProviderUnavailable) Error() string {
	return fmt.Sprintf("rate provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrRateMissing reports that every fallback source was exhausted for a
// pair. The conversion chain's final rate=1 step makes this effectively
// unreachable from Convert; the capture engine raises it when a whole
// batch came up empty.
type ErrRateMissing struct {
	From string
	To   string
	Date time.Time
}

func (e *ErrRateMissing) Error() string {
	if e.Date.IsZero() {
		return fmt.Sprintf("no exchange rate available for %s->%s", e.From, e.To)
	}
	return fmt.Sprintf("no exchange rate available for %s->%s near %s", e.From, e.To, e.Date.Format("2006-01-02"))
}

// ErrMigrationFailure reports a catastrophic migrator error; the run is
// marked failed and its state persisted before this surfaces.
type ErrMigrationFailure struct {
	RunID string
	Err   error
}

func (e *ErrMigrationFailure) Error() string {
	return fmt.Sprintf("migration %s failed: %v", e.RunID, e.Err)
}

func (e *ErrMigrationFailure) Unwrap() error { return e.Err }

// ErrConfiguration reports missing or malformed environment configuration.
// Fatal at startup, never surfaced over HTTP.
type ErrConfiguration struct {
	Key     string
	Message string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Key, e.Message)
}

// Kind is the stable machine-readable tag carried in error responses.
func Kind(err error) string {
	var (
		invalid  *ErrInvalidInput
		store    *ErrStoreUnavailable
		provider *ErrProviderUnavailable
		missing  *ErrRateMissing
		migrate  *ErrMigrationFailure
		conf     *ErrConfiguration
	)
	switch {
	case errors.As(err, &invalid):
		return "invalid_input"
	case errors.As(err, &missing):
		return "rate_missing"
	case errors.As(err, &provider):
		return "provider_unavailable"
	case errors.As(err, &store):
		return "store_unavailable"
	case errors.As(err, &migrate):
		return "migration_failure"
	case errors.As(err, &conf):
		return "configuration_error"
	default:
		return "internal"
	}
}

// HTTPStatus maps an error to the status code the RPC surface responds
// with. Unknown errors are treated as internal.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case "invalid_input":
		return http.StatusBadRequest
	case "rate_missing":
		return http.StatusNotFound
	case "provider_unavailable":
		return http.StatusBadGateway
	case "store_unavailable", "migration_failure":
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
