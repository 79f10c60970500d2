package handlers

import (
	"net/http"

	"github.com/ovoloshko/statement-ingest/internal/api/middleware"
	"github.com/ovoloshko/statement-ingest/internal/domain"
)

// CategoriesHandler serves the category enumeration.
type CategoriesHandler struct{}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler() *CategoriesHandler {
	return &CategoriesHandler{}
}

// ListCategories handles GET /api/categories
//
// The category set is closed and ships with the binary, so this endpoint
// never touches storage.
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories := domain.Categories()

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}
