package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ovoloshko/statement-ingest/internal/api/middleware"
	"github.com/ovoloshko/statement-ingest/internal/bigquery"
)

// RunsHandler handles ingestion run endpoints.
type RunsHandler struct {
	repo bigquery.StatementRepository
	log  zerolog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo bigquery.StatementRepository, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		repo: repo,
		log:  log,
	}
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runs, err := h.repo.ListIngestionRuns(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list ingestion runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list ingestion runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}
