// Package reconcile decides how a batch of parsed transactions meets the
// records already stored. Exactly one policy applies to a run; the
// strategies are never merged.
package reconcile

import (
	"context"
	"time"

	bq "github.com/ovoloshko/statement-ingest/internal/bigquery"
	"github.com/ovoloshko/statement-ingest/internal/domain"
)

// Policy names as stored on ingestion run records.
const (
	PolicyNameSession              = "session"
	PolicyNameDuplicateSuppression = "duplicate-suppression"
)

// Store is the slice of the statement repository the policies write through.
type Store interface {
	InsertTransactions(ctx context.Context, rows []*bq.TransactionRow) error
	FindMatchingTransactions(ctx context.Context, date time.Time, amount float64, description string) ([]*bq.TransactionRow, error)
}

// Outcome reports what a policy did with one batch. Every input transaction
// lands in exactly one bucket: saved, skipped as a duplicate, or counted as
// an error.
type Outcome struct {
	Saved             []*bq.TransactionRow
	ErrorCount        int
	DuplicatesSkipped int
	DuplicateWarnings int
}

// Policy stamps a batch with its session tag and persists it. Per-record
// persistence failures are counted and the batch continues; only an
// infrastructure failure of the whole batch returns an error.
type Policy interface {
	Name() string
	Apply(ctx context.Context, statementID, sessionTag string, parsed []domain.ExtractedTransaction) (*Outcome, error)
}
