package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/pfennig-app/pfennig/internal/errors"
	"github.com/pfennig-app/pfennig/internal/models"
	"github.com/pfennig-app/pfennig/internal/services"
)

// ExpenseHandler serves the thin expense CRUD surface that drives rate
// capture.
type ExpenseHandler struct {
	expenses services.ExpenseService
	logger   *zap.Logger
}

func NewExpenseHandler(expenses services.ExpenseService, logger *zap.Logger) *ExpenseHandler {
	return &ExpenseHandler{expenses: expenses, logger: logger}
}

// ExpenseRequest is the create/update payload.
type ExpenseRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	TransactionDate time.Time       `json:"transaction_date"`
	Description     string          `json:"description"`
}

func expenseID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &apperrors.ErrInvalidInput{Field: "id", Message: "must be a positive integer"}
	}
	return id, nil
}

// HandleExpenses handles GET and POST /api/expenses
// @Summary List or create expenses
// @Tags expenses
// @Accept json
// @Produce json
// @Param limit query int false "Limit results"
// @Param offset query int false "Offset results"
// @Param currency query string false "Filter by currency"
// @Success 200 {array} models.Expense
// @Success 201 {object} models.Expense
// @Failure 400 {object} ErrorResponse
// @Router /expenses [get]
func (h *ExpenseHandler) HandleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ExpenseHandler) list(w http.ResponseWriter, r *http.Request) {
	filter := &models.ExpenseFilter{Currency: r.URL.Query().Get("currency")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Limit = n
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Offset = n
		}
	}

	expenses, err := h.expenses.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if expenses == nil {
		expenses = []*models.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (h *ExpenseHandler) create(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	expense := &models.Expense{
		Amount:          req.Amount,
		Currency:        req.Currency,
		TransactionDate: req.TransactionDate,
		Description:     req.Description,
	}
	if err := h.expenses.Create(r.Context(), expense); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

// HandleExpense handles GET, PUT and DELETE /api/expenses/{id}
// @Summary Get, update or delete one expense
// @Tags expenses
// @Accept json
// @Produce json
// @Param id path int true "Expense id"
// @Success 200 {object} models.Expense
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /expenses/{id} [get]
func (h *ExpenseHandler) HandleExpense(w http.ResponseWriter, r *http.Request) {
	id, err := expenseID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		expense, err := h.expenses.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		if expense == nil {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "expense not found", Kind: "invalid_input"})
			return
		}
		writeJSON(w, http.StatusOK, expense)

	case http.MethodPut:
		var req ExpenseRequest
		if !decodeBody(w, r, &req) {
			return
		}
		updated, err := h.expenses.Update(r.Context(), &models.Expense{
			ID:              id,
			Amount:          req.Amount,
			Currency:        req.Currency,
			TransactionDate: req.TransactionDate,
			Description:     req.Description,
		})
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := h.expenses.Delete(r.Context(), id); err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleExpenseRates handles GET /api/expenses/{id}/rates
// @Summary Frozen rates of one expense
// @Tags expenses
// @Produce json
// @Param id path int true "Expense id"
// @Success 200 {array} models.FrozenRate
// @Failure 400 {object} ErrorResponse
// @Router /expenses/{id}/rates [get]
func (h *ExpenseHandler) HandleExpenseRates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := expenseID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	rates, err := h.expenses.FrozenRates(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if rates == nil {
		rates = []models.FrozenRate{}
	}
	writeJSON(w, http.StatusOK, rates)
}

// HandleExpenseConvert handles GET /api/expenses/{id}/convert
// @Summary Convert an expense's amount
// @Description Historical conversion of the expense amount, preferring its frozen rate
// @Tags expenses
// @Produce json
// @Param id path int true "Expense id"
// @Param to query string true "Target currency"
// @Success 200 {object} models.ConversionResult
// @Failure 400 {object} ErrorResponse
// @Router /expenses/{id}/convert [get]
func (h *ExpenseHandler) HandleExpenseConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := expenseID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	to := r.URL.Query().Get("to")
	if to == "" {
		writeError(w, h.logger, &apperrors.ErrInvalidInput{Field: "to", Message: "query parameter is required"})
		return
	}

	result, err := h.expenses.ConvertExpense(r.Context(), id, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
