package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/pfennig-app/pfennig/internal/cache"
	apperrors "github.com/pfennig-app/pfennig/internal/errors"
	"github.com/pfennig-app/pfennig/internal/models"
	"github.com/pfennig-app/pfennig/internal/repositories"
)

// expenseService is the thin CRUD surface in front of the expense table.
// Its whole reason to exist here is the capture triggering: create always
// schedules a capture, update only when the transaction date moved, and
// delete lets the foreign key cascade take the frozen rates with it.
type expenseService struct {
	expenses   repositories.ExpenseRepository
	rates      repositories.RateRepository
	capture    CaptureService
	conversion ConversionService
	cache      *cache.Cache
	logger     *zap.Logger
}

// NewExpenseService creates the expense lifecycle surface.
func NewExpenseService(expenses repositories.ExpenseRepository, rates repositories.RateRepository, capture CaptureService, conversion ConversionService, c *cache.Cache, logger *zap.Logger) ExpenseService {
	return &expenseService{
		expenses:   expenses,
		rates:      rates,
		capture:    capture,
		conversion: conversion,
		cache:      c,
		logger:     logger,
	}
}

func (s *expenseService) Create(ctx context.Context, expense *models.Expense) error {
	expense.Currency = models.NormalizeCurrency(expense.Currency)
	if err := s.expenses.Create(ctx, expense); err != nil {
		return err
	}
	s.capture.ScheduleCapture(expense)
	return nil
}

func (s *expenseService) GetByID(ctx context.Context, id int64) (*models.Expense, error) {
	return s.expenses.GetByID(ctx, id)
}

// Update persists the change and re-triggers capture only when the
// transaction date moved. Existing frozen rates stay untouched either
// way; a re-capture can only fill pairs that are still missing.
func (s *expenseService) Update(ctx context.Context, expense *models.Expense) (*models.Expense, error) {
	existing, err := s.expenses.GetByID(ctx, expense.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, &apperrors.ErrInvalidInput{Field: "id", Message: "expense not found"}
	}

	expense.Currency = models.NormalizeCurrency(expense.Currency)
	if err := s.expenses.Update(ctx, expense); err != nil {
		return nil, err
	}

	if DateChanged(existing.TransactionDate, expense.TransactionDate) {
		s.logger.Debug("transaction date changed, re-triggering capture",
			zap.Int64("expenseId", expense.ID))
		s.capture.ScheduleCapture(expense)
	}
	return s.expenses.GetByID(ctx, expense.ID)
}

func (s *expenseService) Delete(ctx context.Context, id int64) error {
	if err := s.expenses.Delete(ctx, id); err != nil {
		return err
	}
	// Frozen rows are gone by cascade; drop the cached bundle too.
	s.cache.Invalidate(cache.BundleKey(id), cache.KeyExpenseRatesBundle)
	return nil
}

func (s *expenseService) List(ctx context.Context, filter *models.ExpenseFilter) ([]*models.Expense, error) {
	return s.expenses.List(ctx, filter)
}

// FrozenRates returns the frozen bundle of one expense through the
// expense_rates_bundle cache.
func (s *expenseService) FrozenRates(ctx context.Context, expenseID int64) ([]models.FrozenRate, error) {
	v, err := s.cache.GetOrCompute(ctx, cache.BundleKey(expenseID), cache.KeyExpenseRatesBundle,
		func(ctx context.Context) (interface{}, error) {
			return s.rates.ListFrozen(ctx, expenseID)
		})
	if err != nil {
		return nil, err
	}
	return v.([]models.FrozenRate), nil
}

// ConvertExpense converts the expense's own amount into another currency
// through the historical path of the conversion engine.
func (s *expenseService) ConvertExpense(ctx context.Context, expenseID int64, to string) (*models.ConversionResult, error) {
	expense, err := s.expenses.GetByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, &apperrors.ErrInvalidInput{Field: "id", Message: "expense not found"}
	}
	return s.conversion.Convert(ctx, expense.Amount, expense.Currency, to, &expense.ID)
}
