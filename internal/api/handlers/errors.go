package handlers

import (
	"errors"
	"net/http"

	"github.com/ovoloshko/statement-ingest/internal/domain"
)

// statusForError maps ingestion failure classes onto HTTP statuses. Anything
// outside the known classes is a plain 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrUnreadableDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNoTransactionsFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUnparsableResponse):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
