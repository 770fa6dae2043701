package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/pfennig-app/pfennig/internal/db"
	apperrors "github.com/pfennig-app/pfennig/internal/errors"
	"github.com/pfennig-app/pfennig/internal/models"
)

type expenseRepository struct {
	db *db.DB
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(database *db.DB) ExpenseRepository {
	return &expenseRepository{db: database}
}

func (r *expenseRepository) Create(ctx context.Context, expense *models.Expense) error {
	if err := expense.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(expense).Error; err != nil {
		return &apperrors.ErrStoreUnavailable{Op: "createExpense", Err: err}
	}
	return nil
}

func (r *expenseRepository) GetByID(ctx context.Context, id int64) (*models.Expense, error) {
	var expense models.Expense
	err := r.db.WithContext(ctx).First(&expense, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, &apperrors.ErrStoreUnavailable{Op: "getExpense", Err: err}
	}
	return &expense, nil
}

func (r *expenseRepository) Update(ctx context.Context, expense *models.Expense) error {
	if err := expense.Validate(); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&models.Expense{}).
		Where("id = ?", expense.ID).
		Updates(map[string]interface{}{
			"amount":           expense.Amount,
			"currency":         expense.Currency,
			"transaction_date": expense.TransactionDate,
			"description":      expense.Description,
		})
	if res.Error != nil {
		return &apperrors.ErrStoreUnavailable{Op: "updateExpense", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &apperrors.ErrInvalidInput{Field: "id", Message: "expense not found"}
	}
	return nil
}

func (r *expenseRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&models.Expense{}, "id = ?", id)
	if res.Error != nil {
		return &apperrors.ErrStoreUnavailable{Op: "deleteExpense", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &apperrors.ErrInvalidInput{Field: "id", Message: "expense not found"}
	}
	return nil
}

func (r *expenseRepository) List(ctx context.Context, filter *models.ExpenseFilter) ([]*models.Expense, error) {
	query := r.db.WithContext(ctx)

	if filter != nil {
		if filter.Currency != "" {
			query = query.Where("currency = ?", models.NormalizeCurrency(filter.Currency))
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
			if filter.Offset > 0 {
				query = query.Offset(filter.Offset)
			}
		}
	}

	var expenses []*models.Expense
	if err := query.Order("transaction_date DESC, id DESC").Find(&expenses).Error; err != nil {
		return nil, &apperrors.ErrStoreUnavailable{Op: "listExpenses", Err: err}
	}
	return expenses, nil
}

func (r *expenseRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Expense{}).Count(&count).Error; err != nil {
		return 0, &apperrors.ErrStoreUnavailable{Op: "countExpenses", Err: err}
	}
	return count, nil
}

// ListAfterID returns up to limit expenses with id > afterID in ascending
// id order. The migrator pages through the table with it.
func (r *expenseRepository) ListAfterID(ctx context.Context, afterID int64, limit int) ([]*models.Expense, error) {
	var expenses []*models.Expense
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&expenses).Error
	if err != nil {
		return nil, &apperrors.ErrStoreUnavailable{Op: "listExpensesAfterId", Err: err}
	}
	return expenses, nil
}
