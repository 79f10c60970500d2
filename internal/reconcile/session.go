package reconcile

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"

	bq "github.com/ovoloshko/statement-ingest/internal/bigquery"
	"github.com/ovoloshko/statement-ingest/internal/domain"
	"github.com/ovoloshko/statement-ingest/internal/logger"
)

// SessionPolicy persists every parsed transaction stamped with the run's
// session tag. Prior records are never touched; re-uploading a statement
// yields a second, fully queryable session. Matches against already stored
// records are surfaced as duplicate warnings without changing disposition.
type SessionPolicy struct {
	store Store
}

var _ Policy = (*SessionPolicy)(nil)

// NewSessionPolicy creates the default reconciliation policy.
func NewSessionPolicy(store Store) *SessionPolicy {
	return &SessionPolicy{store: store}
}

// Name identifies the policy on run records.
func (p *SessionPolicy) Name() string {
	return PolicyNameSession
}

// Apply stamps, persists and tallies the batch. The duplicate check is
// best-effort: a failed lookup logs a warning and the record still saves.
func (p *SessionPolicy) Apply(ctx context.Context, statementID, sessionTag string, parsed []domain.ExtractedTransaction) (*Outcome, error) {
	log := logger.FromContext(ctx)

	outcome := &Outcome{}
	rows := make([]*bq.TransactionRow, 0, len(parsed))
	for _, tx := range parsed {
		tx.SessionTag = sessionTag

		matches, err := p.store.FindMatchingTransactions(ctx, tx.Date, tx.Amount, tx.Description)
		if err != nil {
			log.Warn().Err(err).Str("session_tag", sessionTag).Msg("duplicate check failed, saving without warning")
		} else if len(matches) > 0 {
			outcome.DuplicateWarnings++
		}

		rows = append(rows, bq.NewTransactionRow(tx, statementID))
	}

	if err := p.store.InsertTransactions(ctx, rows); err != nil {
		var multi bigquery.PutMultiError
		if !errors.As(err, &multi) {
			return nil, fmt.Errorf("session policy: persisting batch: %w", err)
		}

		failed := make(map[int]bool, len(multi))
		for _, rowErr := range multi {
			failed[rowErr.RowIndex] = true
		}
		for i, row := range rows {
			if failed[i] {
				outcome.ErrorCount++
				continue
			}
			outcome.Saved = append(outcome.Saved, row)
		}
		log.Warn().
			Int("failed", outcome.ErrorCount).
			Int("saved", len(outcome.Saved)).
			Str("session_tag", sessionTag).
			Msg("some rows were rejected, batch continued")
		return outcome, nil
	}

	outcome.Saved = rows
	return outcome, nil
}
