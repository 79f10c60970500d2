package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
)

const transactionsTable = "transactions"

// InsertTransactionsWithClient streams a batch of TransactionRow into the
// transactions table using the provided client. Transactions are append-only,
// so the streaming buffer restriction on UPDATE does not apply to them.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	table := client.DatasetInProject(projectID, datasetID).Table(transactionsTable)
	inserter := table.Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}

	return nil
}

// QueryTransactionsBySessionWithClient returns every transaction stamped with
// the given session tag, ordered by transaction date.
func QueryTransactionsBySessionWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, sessionTag string) ([]*TransactionRow, error) {
	queryStr := fmt.Sprintf(`
		SELECT transaction_id, session_tag, statement_id, transaction_date, amount, description, category, transaction_type, merchant, reference, origin, is_verified, created_ts
		FROM `+"`%s.%s.transactions`"+`
		WHERE session_tag = @session_tag
		ORDER BY transaction_date, created_ts
	`, projectID, datasetID)

	q := client.Query(queryStr)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "session_tag", Value: sessionTag},
	}

	return readTransactionRows(ctx, q, "QueryTransactionsBySession")
}

// QueryTransactionsByDateRangeWithClient returns transactions in the date
// range whose ingestion run completed successfully. Rows from failed or
// still-running ingestions are excluded.
func QueryTransactionsByDateRangeWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, startDate, endDate time.Time) ([]*TransactionRow, error) {
	queryStr := fmt.Sprintf(`
		SELECT t.transaction_id, t.session_tag, t.statement_id, t.transaction_date, t.amount, t.description, t.category, t.transaction_type, t.merchant, t.reference, t.origin, t.is_verified, t.created_ts
		FROM `+"`%s.%s.transactions`"+` t
		INNER JOIN `+"`%s.%s.ingestion_runs`"+` r
		  ON t.session_tag = r.session_tag
		WHERE t.transaction_date >= @start_date
		  AND t.transaction_date <= @end_date
		  AND r.status = 'SUCCESS'
		ORDER BY t.transaction_date, t.created_ts
	`, projectID, datasetID, projectID, datasetID)

	q := client.Query(queryStr)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: civil.DateOf(startDate)},
		{Name: "end_date", Value: civil.DateOf(endDate)},
	}

	return readTransactionRows(ctx, q, "QueryTransactionsByDateRange")
}

// FindMatchingTransactionsWithClient returns previously saved transactions
// whose date, amount and trimmed description all match. The amount is
// compared as NUMERIC at two decimal places, never as a float.
func FindMatchingTransactionsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, date time.Time, amount float64, description string) ([]*TransactionRow, error) {
	queryStr := fmt.Sprintf(`
		SELECT transaction_id, session_tag, statement_id, transaction_date, amount, description, category, transaction_type, merchant, reference, origin, is_verified, created_ts
		FROM `+"`%s.%s.transactions`"+`
		WHERE transaction_date = @transaction_date
		  AND amount = CAST(@amount AS NUMERIC)
		  AND TRIM(description) = @description
	`, projectID, datasetID)

	q := client.Query(queryStr)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_date", Value: civil.DateOf(date)},
		{Name: "amount", Value: fmt.Sprintf("%.2f", amount)},
		{Name: "description", Value: strings.TrimSpace(description)},
	}

	return readTransactionRows(ctx, q, "FindMatchingTransactions")
}

// CountTransactionsWithClient returns the total number of stored
// transactions across all sessions.
func CountTransactionsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string) (int64, error) {
	queryStr := fmt.Sprintf(`
		SELECT COUNT(*) AS total
		FROM `+"`%s.%s.transactions`"+`
	`, projectID, datasetID)

	it, err := client.Query(queryStr).Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountTransactions: query read: %w", err)
	}

	var row struct {
		Total int64 `bigquery:"total"`
	}
	if err := it.Next(&row); err != nil {
		return 0, fmt.Errorf("CountTransactions: iter next: %w", err)
	}
	return row.Total, nil
}

// CategorySummaryWithClient aggregates a session's transactions by category,
// ordered by total ascending so the largest outflows come first.
func CategorySummaryWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, sessionTag string) ([]*CategorySummaryRow, error) {
	queryStr := fmt.Sprintf(`
		SELECT category, COUNT(*) AS tx_count, SUM(amount) AS total
		FROM `+"`%s.%s.transactions`"+`
		WHERE session_tag = @session_tag
		GROUP BY category
		ORDER BY total
	`, projectID, datasetID)

	q := client.Query(queryStr)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "session_tag", Value: sessionTag},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("CategorySummary: query read: %w", err)
	}

	var rows []*CategorySummaryRow
	for {
		var r CategorySummaryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CategorySummary: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

func readTransactionRows(ctx context.Context, q *bigquery.Query, op string) ([]*TransactionRow, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query read: %w", op, err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iter next: %w", op, err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
