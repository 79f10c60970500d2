package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	bq "github.com/ovoloshko/statement-ingest/internal/bigquery"
)

// Re-export the shared repository contract and row types so callers wiring
// the concrete implementation need only this package.
type StatementRepository = bq.StatementRepository

type (
	StatementRow       = bq.StatementRow
	TransactionRow     = bq.TransactionRow
	IngestionRunRow    = bq.IngestionRunRow
	ModelOutputRow     = bq.ModelOutputRow
	CategorySummaryRow = bq.CategorySummaryRow
	RunCounts          = bq.RunCounts
)

// BigQueryStatementRepository is the concrete StatementRepository backed by
// BigQuery. It holds a shared client to avoid creating a new connection for
// each operation; project and dataset come from config, never from source.
type BigQueryStatementRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

var _ StatementRepository = (*BigQueryStatementRepository)(nil)

// NewBigQueryStatementRepository creates a repository with a shared BigQuery
// client for the given project and dataset.
func NewBigQueryStatementRepository(ctx context.Context, projectID, datasetID string) (*BigQueryStatementRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryStatementRepository: bigquery client: %w", err)
	}
	return &BigQueryStatementRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryStatementRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertStatement delegates to InsertStatementWithClient with the shared client.
func (r *BigQueryStatementRepository) InsertStatement(ctx context.Context, row *StatementRow) error {
	return InsertStatementWithClient(ctx, r.client, r.projectID, r.datasetID, row)
}

// ListStatements delegates to ListStatementsWithClient with the shared client.
func (r *BigQueryStatementRepository) ListStatements(ctx context.Context) ([]*StatementRow, error) {
	return ListStatementsWithClient(ctx, r.client, r.projectID, r.datasetID)
}

// FindStatementByChecksum delegates to FindStatementByChecksumWithClient with the shared client.
func (r *BigQueryStatementRepository) FindStatementByChecksum(ctx context.Context, checksum string) (*StatementRow, error) {
	return FindStatementByChecksumWithClient(ctx, r.client, r.projectID, r.datasetID, checksum)
}

// UpdateStatementStatus delegates to UpdateStatementStatusWithClient with the shared client.
func (r *BigQueryStatementRepository) UpdateStatementStatus(ctx context.Context, statementID, status string) error {
	return UpdateStatementStatusWithClient(ctx, r.client, r.projectID, r.datasetID, statementID, status)
}

// StartIngestionRun delegates to StartIngestionRunWithClient with the shared client.
func (r *BigQueryStatementRepository) StartIngestionRun(ctx context.Context, statementID, sessionTag, provider, model string) error {
	return StartIngestionRunWithClient(ctx, r.client, r.projectID, r.datasetID, statementID, sessionTag, provider, model)
}

// MarkIngestionRunSucceeded delegates to MarkIngestionRunSucceededWithClient with the shared client.
func (r *BigQueryStatementRepository) MarkIngestionRunSucceeded(ctx context.Context, sessionTag string, counts RunCounts) error {
	return MarkIngestionRunSucceededWithClient(ctx, r.client, r.projectID, r.datasetID, sessionTag, counts)
}

// MarkIngestionRunFailed delegates to MarkIngestionRunFailedWithClient with the shared client.
func (r *BigQueryStatementRepository) MarkIngestionRunFailed(ctx context.Context, sessionTag string, runErr error) {
	MarkIngestionRunFailedWithClient(ctx, r.client, r.projectID, r.datasetID, sessionTag, runErr)
}

// ListIngestionRuns delegates to ListIngestionRunsWithClient with the shared client.
func (r *BigQueryStatementRepository) ListIngestionRuns(ctx context.Context) ([]*IngestionRunRow, error) {
	return ListIngestionRunsWithClient(ctx, r.client, r.projectID, r.datasetID)
}

// LatestSessionTag delegates to LatestSessionTagWithClient with the shared client.
func (r *BigQueryStatementRepository) LatestSessionTag(ctx context.Context) (string, error) {
	return LatestSessionTagWithClient(ctx, r.client, r.projectID, r.datasetID)
}

// InsertTransactions delegates to InsertTransactionsWithClient with the shared client.
func (r *BigQueryStatementRepository) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	return InsertTransactionsWithClient(ctx, r.client, r.projectID, r.datasetID, rows)
}

// InsertModelOutput delegates to InsertModelOutputWithClient with the shared client.
func (r *BigQueryStatementRepository) InsertModelOutput(ctx context.Context, row *ModelOutputRow) error {
	return InsertModelOutputWithClient(ctx, r.client, r.projectID, r.datasetID, row)
}

// QueryTransactionsBySession delegates to QueryTransactionsBySessionWithClient with the shared client.
func (r *BigQueryStatementRepository) QueryTransactionsBySession(ctx context.Context, sessionTag string) ([]*TransactionRow, error) {
	return QueryTransactionsBySessionWithClient(ctx, r.client, r.projectID, r.datasetID, sessionTag)
}

// QueryTransactionsByDateRange delegates to QueryTransactionsByDateRangeWithClient with the shared client.
func (r *BigQueryStatementRepository) QueryTransactionsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*TransactionRow, error) {
	return QueryTransactionsByDateRangeWithClient(ctx, r.client, r.projectID, r.datasetID, startDate, endDate)
}

// FindMatchingTransactions delegates to FindMatchingTransactionsWithClient with the shared client.
func (r *BigQueryStatementRepository) FindMatchingTransactions(ctx context.Context, date time.Time, amount float64, description string) ([]*TransactionRow, error) {
	return FindMatchingTransactionsWithClient(ctx, r.client, r.projectID, r.datasetID, date, amount, description)
}

// CountTransactions delegates to CountTransactionsWithClient with the shared client.
func (r *BigQueryStatementRepository) CountTransactions(ctx context.Context) (int64, error) {
	return CountTransactionsWithClient(ctx, r.client, r.projectID, r.datasetID)
}

// CategorySummary delegates to CategorySummaryWithClient with the shared client.
func (r *BigQueryStatementRepository) CategorySummary(ctx context.Context, sessionTag string) ([]*CategorySummaryRow, error) {
	return CategorySummaryWithClient(ctx, r.client, r.projectID, r.datasetID, sessionTag)
}
