package models

import (
	"time"

	"github.com/pfennig-app/pfennig/internal/errors"
)

// Migration run statuses.
const (
	MigrationStatusRunning   = "running"
	MigrationStatusPaused    = "paused"
	MigrationStatusCompleted = "completed"
	MigrationStatusFailed    = "failed"
)

// maxRecordedErrors caps the per-expense error list carried in state so a
// pathological run cannot grow the state file without bound.
const maxRecordedErrors = 100

// MigrationError records one tolerated per-expense failure.
type MigrationError struct {
	ExpenseID int64     `json:"expenseId"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// MigrationState is the persistent record of one backfill run. It is
// serialized to a JSON file by whole-file atomic rewrite; the file is the
// sole source of truth for resumption.
type MigrationState struct {
	RunID                  string           `json:"runId"`
	Status                 string           `json:"status"`
	TotalExpenses          int64            `json:"totalExpenses"`
	ProcessedCount         int64            `json:"processedCount"`
	MigratedCount          int64            `json:"migratedCount"`
	SkippedCount           int64            `json:"skippedCount"`
	LastProcessedExpenseID int64            `json:"lastProcessedExpenseId"`
	Errors                 []MigrationError `json:"errors"`
	StartedAt              time.Time        `json:"startedAt"`
	DurationMs             int64            `json:"durationMs"`
	BatchSize              int              `json:"batchSize"`
	MaxRetries             int              `json:"maxRetries"`
}

// CanTransitionTo enforces the status machine: running may pause, complete
// or fail; paused may resume; completed and failed are terminal.
func (s *MigrationState) CanTransitionTo(next string) bool {
	switch s.Status {
	case MigrationStatusRunning:
		return next == MigrationStatusPaused || next == MigrationStatusCompleted || next == MigrationStatusFailed
	case MigrationStatusPaused:
		return next == MigrationStatusRunning
	default:
		return false
	}
}

// Transition moves the run to next, rejecting illegal transitions.
func (s *MigrationState) Transition(next string) error {
	if s.Status == next {
		return nil
	}
	if !s.CanTransitionTo(next) {
		return &errors.ErrMigrationFailure{
			RunID: s.RunID,
			Err:   &errors.ErrInvalidInput{Field: "status", Message: s.Status + " cannot transition to " + next},
		}
	}
	s.Status = next
	return nil
}

// RecordError appends a tolerated per-expense error, keeping at most the
// last maxRecordedErrors entries.
func (s *MigrationState) RecordError(expenseID int64, message string, at time.Time) {
	s.Errors = append(s.Errors, MigrationError{ExpenseID: expenseID, Message: message, At: at})
	if len(s.Errors) > maxRecordedErrors {
		s.Errors = s.Errors[len(s.Errors)-maxRecordedErrors:]
	}
}

// Remaining is the count of expenses the run still has to look at.
func (s *MigrationState) Remaining() int64 {
	if s.TotalExpenses < s.ProcessedCount {
		return 0
	}
	return s.TotalExpenses - s.ProcessedCount
}
