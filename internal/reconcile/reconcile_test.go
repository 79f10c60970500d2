package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"

	bq "github.com/ovoloshko/statement-ingest/internal/bigquery"
	"github.com/ovoloshko/statement-ingest/internal/domain"
	"github.com/ovoloshko/statement-ingest/internal/logger"
)

type mockStore struct {
	InsertTransactionsFunc       func(ctx context.Context, rows []*bq.TransactionRow) error
	FindMatchingTransactionsFunc func(ctx context.Context, date time.Time, amount float64, description string) ([]*bq.TransactionRow, error)
}

var _ Store = (*mockStore)(nil)

func (m *mockStore) InsertTransactions(ctx context.Context, rows []*bq.TransactionRow) error {
	return m.InsertTransactionsFunc(ctx, rows)
}

func (m *mockStore) FindMatchingTransactions(ctx context.Context, date time.Time, amount float64, description string) ([]*bq.TransactionRow, error) {
	return m.FindMatchingTransactionsFunc(ctx, date, amount, description)
}

func noMatches(ctx context.Context, date time.Time, amount float64, description string) ([]*bq.TransactionRow, error) {
	return nil, nil
}

func testTransactions() []domain.ExtractedTransaction {
	return []domain.ExtractedTransaction{
		{
			Date:        time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
			Description: "STARBUCKS COFFEE #123",
			Amount:      -4.75,
			Category:    domain.CategoryFoodDining,
			Type:        domain.TypeDebit,
			Origin:      domain.OriginAI,
		},
		{
			Date:        time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC),
			Description: "PAYROLL ACME CORP",
			Amount:      2500.00,
			Category:    domain.CategoryIncome,
			Type:        domain.TypeCredit,
			Origin:      domain.OriginAI,
		},
		{
			Date:        time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC),
			Description: "NETFLIX.COM",
			Amount:      -15.99,
			Category:    domain.CategoryEntertainment,
			Type:        domain.TypeDebit,
			Origin:      domain.OriginAI,
		},
	}
}

func TestSessionPolicySavesEverything(t *testing.T) {
	var inserted []*bq.TransactionRow
	store := &mockStore{
		InsertTransactionsFunc: func(ctx context.Context, rows []*bq.TransactionRow) error {
			inserted = rows
			return nil
		},
		FindMatchingTransactionsFunc: noMatches,
	}

	parsed := testTransactions()
	outcome, err := NewSessionPolicy(store).Apply(context.Background(), "stmt-1", "run-abc", parsed)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	if len(outcome.Saved) != len(parsed) {
		t.Fatalf("saved %d transactions, want %d", len(outcome.Saved), len(parsed))
	}
	if got := len(outcome.Saved) + outcome.ErrorCount; got != len(parsed) {
		t.Errorf("saved+errors = %d, want parsed count %d", got, len(parsed))
	}
	if outcome.ErrorCount != 0 || outcome.DuplicatesSkipped != 0 || outcome.DuplicateWarnings != 0 {
		t.Errorf("unexpected counts: %+v", outcome)
	}
	for i, row := range inserted {
		if row.SessionTag != "run-abc" {
			t.Errorf("row %d session tag = %q, want %q", i, row.SessionTag, "run-abc")
		}
		if row.StatementID != "stmt-1" {
			t.Errorf("row %d statement id = %q, want %q", i, row.StatementID, "stmt-1")
		}
	}
}

func TestSessionPolicyCountsDuplicateWarnings(t *testing.T) {
	store := &mockStore{
		InsertTransactionsFunc: func(ctx context.Context, rows []*bq.TransactionRow) error {
			return nil
		},
		FindMatchingTransactionsFunc: func(ctx context.Context, date time.Time, amount float64, description string) ([]*bq.TransactionRow, error) {
			if description == "NETFLIX.COM" {
				return []*bq.TransactionRow{{TransactionID: "existing"}}, nil
			}
			return nil, nil
		},
	}

	parsed := testTransactions()
	outcome, err := NewSessionPolicy(store).Apply(context.Background(), "stmt-1", "run-abc", parsed)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	if outcome.DuplicateWarnings != 1 {
		t.Errorf("duplicate warnings = %d, want 1", outcome.DuplicateWarnings)
	}
	if len(outcome.Saved) != len(parsed) {
		t.Errorf("saved %d, want %d: warnings must not change disposition", len(outcome.Saved), len(parsed))
	}
}

func TestSessionPolicyCountsRejectedRows(t *testing.T) {
	store := &mockStore{
		InsertTransactionsFunc: func(ctx context.Context, rows []*bq.TransactionRow) error {
			return bigquery.PutMultiError{bigquery.RowInsertionError{RowIndex: 1}}
		},
		FindMatchingTransactionsFunc: noMatches,
	}

	ctx := logger.WithContext(context.Background(), logger.Nop())
	parsed := testTransactions()
	outcome, err := NewSessionPolicy(store).Apply(ctx, "stmt-1", "run-abc", parsed)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	if outcome.ErrorCount != 1 {
		t.Errorf("error count = %d, want 1", outcome.ErrorCount)
	}
	if len(outcome.Saved) != 2 {
		t.Errorf("saved %d, want 2", len(outcome.Saved))
	}
	if got := len(outcome.Saved) + outcome.ErrorCount; got != len(parsed) {
		t.Errorf("saved+errors = %d, want parsed count %d", got, len(parsed))
	}
}

func TestSessionPolicyWholeBatchFailure(t *testing.T) {
	store := &mockStore{
		InsertTransactionsFunc: func(ctx context.Context, rows []*bq.TransactionRow) error {
			return errors.New("dataset not found")
		},
		FindMatchingTransactionsFunc: noMatches,
	}

	_, err := NewSessionPolicy(store).Apply(context.Background(), "stmt-1", "run-abc", testTransactions())
	if err == nil {
		t.Fatal("expected error for whole-batch failure")
	}
}

func TestSessionPolicyLookupFailureStillSaves(t *testing.T) {
	store := &mockStore{
		InsertTransactionsFunc: func(ctx context.Context, rows []*bq.TransactionRow) error {
			return nil
		},
		FindMatchingTransactionsFunc: func(ctx context.Context, date time.Time, amount float64, description string) ([]*bq.TransactionRow, error) {
			return nil, errors.New("query timeout")
		},
	}

	ctx := logger.WithContext(context.Background(), logger.Nop())
	outcome, err := NewSessionPolicy(store).Apply(ctx, "stmt-1", "run-abc", testTransactions())
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if len(outcome.Saved) != 3 || outcome.DuplicateWarnings != 0 {
		t.Errorf("got saved=%d warnings=%d, want 3 and 0", len(outcome.Saved), outcome.DuplicateWarnings)
	}
}

func TestDuplicateSuppressionSkipsStoredRecords(t *testing.T) {
	store := &mockStore{
		InsertTransactionsFunc: func(ctx context.Context, rows []*bq.TransactionRow) error {
			return nil
		},
		FindMatchingTransactionsFunc: func(ctx context.Context, date time.Time, amount float64, description string) ([]*bq.TransactionRow, error) {
			if description == "PAYROLL ACME CORP" {
				return []*bq.TransactionRow{{TransactionID: "existing"}}, nil
			}
			return nil, nil
		},
	}

	parsed := testTransactions()
	outcome, err := NewDuplicateSuppressionPolicy(store).Apply(context.Background(), "stmt-1", "run-abc", parsed)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	if outcome.DuplicatesSkipped != 1 {
		t.Errorf("duplicates skipped = %d, want 1", outcome.DuplicatesSkipped)
	}
	if len(outcome.Saved) != 2 {
		t.Errorf("saved %d, want 2", len(outcome.Saved))
	}
	if got := len(outcome.Saved) + outcome.DuplicatesSkipped + outcome.ErrorCount; got != len(parsed) {
		t.Errorf("saved+skipped+errors = %d, want parsed count %d", got, len(parsed))
	}
}

func TestDuplicateSuppressionCountsInsertFailures(t *testing.T) {
	store := &mockStore{
		InsertTransactionsFunc: func(ctx context.Context, rows []*bq.TransactionRow) error {
			if rows[0].Description == "NETFLIX.COM" {
				return errors.New("row rejected")
			}
			return nil
		},
		FindMatchingTransactionsFunc: noMatches,
	}

	ctx := logger.WithContext(context.Background(), logger.Nop())
	parsed := testTransactions()
	outcome, err := NewDuplicateSuppressionPolicy(store).Apply(ctx, "stmt-1", "run-abc", parsed)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	if outcome.ErrorCount != 1 {
		t.Errorf("error count = %d, want 1", outcome.ErrorCount)
	}
	if len(outcome.Saved) != 2 {
		t.Errorf("saved %d, want 2: one failure must not abort the batch", len(outcome.Saved))
	}
}

func TestDuplicateSuppressionIsIdempotentWithinProcess(t *testing.T) {
	var mu sync.Mutex
	stored := make(map[string]bool)

	store := &mockStore{
		InsertTransactionsFunc: func(ctx context.Context, rows []*bq.TransactionRow) error {
			mu.Lock()
			defer mu.Unlock()
			for _, row := range rows {
				stored[row.Description] = true
			}
			return nil
		},
		FindMatchingTransactionsFunc: func(ctx context.Context, date time.Time, amount float64, description string) ([]*bq.TransactionRow, error) {
			mu.Lock()
			defer mu.Unlock()
			if stored[description] {
				return []*bq.TransactionRow{{TransactionID: "existing"}}, nil
			}
			return nil, nil
		},
	}

	policy := NewDuplicateSuppressionPolicy(store)
	tx := testTransactions()[:1]

	var wg sync.WaitGroup
	outcomes := make([]*Outcome, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := policy.Apply(context.Background(), "stmt-1", "run-abc", tx)
			if err != nil {
				t.Errorf("Apply returned error: %v", err)
				return
			}
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	saved := len(outcomes[0].Saved) + len(outcomes[1].Saved)
	skipped := outcomes[0].DuplicatesSkipped + outcomes[1].DuplicatesSkipped
	if saved != 1 || skipped != 1 {
		t.Errorf("concurrent uploads saved=%d skipped=%d, want exactly one save and one skip", saved, skipped)
	}
}
