package reconcile

import (
	"context"
	"sync"

	bq "github.com/ovoloshko/statement-ingest/internal/bigquery"
	"github.com/ovoloshko/statement-ingest/internal/domain"
	"github.com/ovoloshko/statement-ingest/internal/logger"
)

// DuplicateSuppressionPolicy looks each transaction up by content before
// inserting and skips the ones already stored. The lookup-then-insert pair
// holds a per-content-key lock, so two uploads of the same statement within
// one process cannot both insert the same record. Across processes the window
// stays open and an occasional duplicate can slip through.
type DuplicateSuppressionPolicy struct {
	store Store
	keys  keyedMutex
}

var _ Policy = (*DuplicateSuppressionPolicy)(nil)

// NewDuplicateSuppressionPolicy creates the alternate reconciliation policy.
func NewDuplicateSuppressionPolicy(store Store) *DuplicateSuppressionPolicy {
	return &DuplicateSuppressionPolicy{store: store}
}

// Name identifies the policy on run records.
func (p *DuplicateSuppressionPolicy) Name() string {
	return PolicyNameDuplicateSuppression
}

// Apply checks, inserts and tallies one record at a time. A failed lookup or
// insert counts toward errorCount and the batch continues.
func (p *DuplicateSuppressionPolicy) Apply(ctx context.Context, statementID, sessionTag string, parsed []domain.ExtractedTransaction) (*Outcome, error) {
	outcome := &Outcome{}
	for _, tx := range parsed {
		tx.SessionTag = sessionTag

		row, skipped, err := p.applyOne(ctx, statementID, tx)
		if err != nil {
			outcome.ErrorCount++
			logger.FromContext(ctx).Warn().
				Err(err).
				Str("session_tag", sessionTag).
				Msg("record not saved, continuing batch")
			continue
		}
		if skipped {
			outcome.DuplicatesSkipped++
			continue
		}
		outcome.Saved = append(outcome.Saved, row)
	}
	return outcome, nil
}

func (p *DuplicateSuppressionPolicy) applyOne(ctx context.Context, statementID string, tx domain.ExtractedTransaction) (*bq.TransactionRow, bool, error) {
	unlock := p.keys.lock(tx.ContentKey())
	defer unlock()

	matches, err := p.store.FindMatchingTransactions(ctx, tx.Date, tx.Amount, tx.Description)
	if err != nil {
		return nil, false, err
	}
	if len(matches) > 0 {
		return nil, true, nil
	}

	row := bq.NewTransactionRow(tx, statementID)
	if err := p.store.InsertTransactions(ctx, []*bq.TransactionRow{row}); err != nil {
		return nil, false, err
	}
	return row, false, nil
}

// keyedMutex serializes critical sections per string key. Entries are kept
// for the life of the process; the key space is bounded by distinct
// transaction content keys seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
