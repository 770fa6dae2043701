package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter mounts every handler on its route. Swagger and middleware are
// the caller's concern.
func NewRouter(fx *FXHandler, expenses *ExpenseHandler, cacheH *CacheHandler, health *HealthHandler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", health.HandleHealth)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/fx/rate", fx.HandleRate)
	api.HandleFunc("/fx/convert", fx.HandleConvert)
	api.HandleFunc("/fx/update", fx.HandleUpdate)
	api.HandleFunc("/fx/force-update", fx.HandleForceUpdate)
	api.HandleFunc("/fx/last-update", fx.HandleLastUpdate)
	api.HandleFunc("/fx/status", fx.HandleStatus)
	api.HandleFunc("/currencies", fx.HandleCurrencies)

	api.HandleFunc("/cache/metrics", cacheH.HandleMetrics)
	api.HandleFunc("/cache/invalidate", cacheH.HandleInvalidate)
	api.HandleFunc("/cache/warm", cacheH.HandleWarm)

	api.HandleFunc("/expenses", expenses.HandleExpenses)
	api.HandleFunc("/expenses/{id}", expenses.HandleExpense)
	api.HandleFunc("/expenses/{id}/rates", expenses.HandleExpenseRates)
	api.HandleFunc("/expenses/{id}/convert", expenses.HandleExpenseConvert)

	return r
}

// CORS allows the browser frontend to talk to the API from another origin.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
