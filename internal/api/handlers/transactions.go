package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ovoloshko/statement-ingest/internal/api/middleware"
	"github.com/ovoloshko/statement-ingest/internal/bigquery"
)

// TransactionsHandler handles transaction read endpoints.
type TransactionsHandler struct {
	repo bigquery.StatementRepository
	log  zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo bigquery.StatementRepository, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		repo: repo,
		log:  log,
	}
}

// ListTransactions handles GET /api/transactions
//
// ?session= selects one ingestion run; ?start_date=&end_date= select a date
// range across successful runs. Without parameters the latest successful run
// is shown.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	if query.Get("start_date") != "" || query.Get("end_date") != "" {
		h.listByDateRange(w, r)
		return
	}

	sessionTag := query.Get("session")
	if sessionTag == "" {
		var err error
		sessionTag, err = h.repo.LatestSessionTag(ctx)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to resolve latest session")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
			return
		}
		if sessionTag == "" {
			middleware.WriteJSON(w, http.StatusOK, []*bigquery.TransactionRow{})
			return
		}
	}

	transactions, err := h.repo.QueryTransactionsBySession(ctx, sessionTag)
	if err != nil {
		h.log.Error().Err(err).Str("session_tag", sessionTag).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	// Return array directly for frontend compatibility
	if transactions == nil {
		transactions = []*bigquery.TransactionRow{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

func (h *TransactionsHandler) listByDateRange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	startDate := time.Now().AddDate(-1, 0, 0)
	endDate := time.Now()
	var err error

	if s := query.Get("start_date"); s != "" {
		startDate, err = time.Parse("2006-01-02", s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format, use YYYY-MM-DD")
			return
		}
	}
	if s := query.Get("end_date"); s != "" {
		endDate, err = time.Parse("2006-01-02", s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format, use YYYY-MM-DD")
			return
		}
	}

	transactions, err := h.repo.QueryTransactionsByDateRange(ctx, startDate, endDate)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	if transactions == nil {
		transactions = []*bigquery.TransactionRow{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// CategorySummary handles GET /api/transactions/summary
//
// Aggregates one session's transactions per category. Defaults to the latest
// successful run when ?session= is absent.
func (h *TransactionsHandler) CategorySummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionTag := r.URL.Query().Get("session")
	if sessionTag == "" {
		var err error
		sessionTag, err = h.repo.LatestSessionTag(ctx)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to resolve latest session")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to summarize transactions")
			return
		}
	}

	summary := []*bigquery.CategorySummaryRow{}
	if sessionTag != "" {
		var err error
		summary, err = h.repo.CategorySummary(ctx, sessionTag)
		if err != nil {
			h.log.Error().Err(err).Str("session_tag", sessionTag).Msg("Failed to summarize transactions")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to summarize transactions")
			return
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session_tag": sessionTag,
		"categories":  summary,
		"count":       len(summary),
	})
}
