package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pfennig-app/pfennig/internal/cache"
	apperrors "github.com/pfennig-app/pfennig/internal/errors"
	"github.com/pfennig-app/pfennig/internal/models"
)

// stubConversionService answers every conversion with a canned result and
// records what it was asked.
type stubConversionService struct {
	result *models.ConversionResult
	rate   *models.ExchangeRate
	err    error

	gotAmount    decimal.Decimal
	gotFrom      string
	gotTo        string
	gotExpenseID *int64
}

func (s *stubConversionService) Convert(_ context.Context, amount decimal.Decimal, from, to string, expenseID *int64) (*models.ConversionResult, error) {
	s.gotAmount, s.gotFrom, s.gotTo, s.gotExpenseID = amount, from, to, expenseID
	return s.result, s.err
}

func (s *stubConversionService) GetRate(_ context.Context, from, to string) (*models.ExchangeRate, error) {
	s.gotFrom, s.gotTo = from, to
	return s.rate, s.err
}

type stubRefreshService struct {
	result *models.RefreshResult
	status *models.RatesStatus
	err    error

	gotForce bool
}

func (s *stubRefreshService) EnsureDailyRates(_ context.Context, force bool) (*models.RefreshResult, error) {
	s.gotForce = force
	return s.result, s.err
}

func (s *stubRefreshService) Status(context.Context) *models.RatesStatus { return s.status }
func (s *stubRefreshService) Start()                                     {}
func (s *stubRefreshService) Stop()                                      {}

type stubCurrencyService struct {
	currencies []models.Currency
	info       *models.LastUpdateInfo
	err        error
}

func (s *stubCurrencyService) AvailableCurrencies(context.Context) ([]models.Currency, error) {
	return s.currencies, s.err
}

func (s *stubCurrencyService) LastUpdate(context.Context) (*models.LastUpdateInfo, error) {
	return s.info, s.err
}

// stubExpenseService keeps expenses in a map and records mutations.
type stubExpenseService struct {
	expenses   map[int64]*models.Expense
	rates      []models.FrozenRate
	conversion *models.ConversionResult
	err        error

	created []*models.Expense
	updated []*models.Expense
	deleted []int64
	gotTo   string
}

func newStubExpenseService() *stubExpenseService {
	return &stubExpenseService{expenses: make(map[int64]*models.Expense)}
}

func (s *stubExpenseService) Create(_ context.Context, expense *models.Expense) error {
	if s.err != nil {
		return s.err
	}
	expense.ID = int64(len(s.expenses) + 1)
	s.expenses[expense.ID] = expense
	s.created = append(s.created, expense)
	return nil
}

func (s *stubExpenseService) GetByID(_ context.Context, id int64) (*models.Expense, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.expenses[id], nil
}

func (s *stubExpenseService) Update(_ context.Context, expense *models.Expense) (*models.Expense, error) {
	if s.err != nil {
		return nil, s.err
	}
	if _, ok := s.expenses[expense.ID]; !ok {
		return nil, &apperrors.ErrInvalidInput{Field: "id", Message: "expense not found"}
	}
	s.expenses[expense.ID] = expense
	s.updated = append(s.updated, expense)
	return expense, nil
}

func (s *stubExpenseService) Delete(_ context.Context, id int64) error {
	if s.err != nil {
		return s.err
	}
	delete(s.expenses, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubExpenseService) List(context.Context, *models.ExpenseFilter) ([]*models.Expense, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*models.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		out = append(out, e)
	}
	return out, nil
}

func (s *stubExpenseService) FrozenRates(context.Context, int64) ([]models.FrozenRate, error) {
	return s.rates, s.err
}

func (s *stubExpenseService) ConvertExpense(_ context.Context, _ int64, to string) (*models.ConversionResult, error) {
	s.gotTo = to
	return s.conversion, s.err
}

// handlerEnv bundles the stubs behind a fully routed test server.
type handlerEnv struct {
	conversion *stubConversionService
	refresh    *stubRefreshService
	currencies *stubCurrencyService
	expenses   *stubExpenseService
	cache      *cache.Cache
	server     *httptest.Server
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	env := &handlerEnv{
		conversion: &stubConversionService{},
		refresh:    &stubRefreshService{},
		currencies: &stubCurrencyService{},
		expenses:   newStubExpenseService(),
		cache:      cache.New(100, zap.NewNop()),
	}
	logger := zap.NewNop()
	router := NewRouter(
		NewFXHandler(env.conversion, env.refresh, env.currencies, logger),
		NewExpenseHandler(env.expenses, logger),
		NewCacheHandler(env.cache, logger),
		// Health needs a live database; it has its own test.
		NewHealthHandler(nil, logger),
	)
	env.server = httptest.NewServer(CORS(router))
	t.Cleanup(env.server.Close)
	return env
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return parsed
}

func jsonBody(t *testing.T, payload interface{}) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	return &buf
}
