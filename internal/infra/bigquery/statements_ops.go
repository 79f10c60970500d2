package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	bq "github.com/ovoloshko/statement-ingest/internal/bigquery"
)

// InsertStatementWithClient inserts a statement row using the provided client.
// Uses DML INSERT so the row can be updated immediately; streamed rows sit in
// the streaming buffer and reject UPDATEs for up to 30 minutes.
func InsertStatementWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, row *StatementRow) error {
	queryStr := fmt.Sprintf(`
		INSERT INTO `+"`%s.%s.statements`"+`
		(statement_id, gcs_uri, original_filename, format, size_bytes, checksum_sha256, status, upload_ts)
		VALUES (@statement_id, @gcs_uri, @original_filename, @format, @size_bytes, @checksum_sha256, @status, @upload_ts)
	`, projectID, datasetID)

	q := client.Query(queryStr)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "statement_id", Value: row.StatementID},
		{Name: "gcs_uri", Value: row.GCSURI},
		{Name: "original_filename", Value: row.OriginalFilename},
		{Name: "format", Value: row.Format},
		{Name: "size_bytes", Value: row.SizeBytes},
		{Name: "checksum_sha256", Value: row.ChecksumSHA256},
		{Name: "status", Value: row.Status},
		{Name: "upload_ts", Value: row.UploadTS},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("InsertStatement: running insert query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("InsertStatement: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("InsertStatement: job error: %w", err)
	}
	return nil
}

// ListStatementsWithClient returns all statements, newest upload first.
func ListStatementsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string) ([]*StatementRow, error) {
	queryStr := fmt.Sprintf(`
		SELECT statement_id, gcs_uri, original_filename, format, size_bytes, checksum_sha256, status, upload_ts, processed_ts
		FROM `+"`%s.%s.statements`"+`
		ORDER BY upload_ts DESC
	`, projectID, datasetID)

	q := client.Query(queryStr)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListStatements: query read: %w", err)
	}

	var rows []*StatementRow
	for {
		var row StatementRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListStatements: iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}

// FindStatementByChecksumWithClient returns the most recent statement with the
// given content checksum, or nil if none exists.
func FindStatementByChecksumWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, checksum string) (*StatementRow, error) {
	queryStr := fmt.Sprintf(`
		SELECT statement_id, gcs_uri, original_filename, format, size_bytes, checksum_sha256, status, upload_ts, processed_ts
		FROM `+"`%s.%s.statements`"+`
		WHERE checksum_sha256 = @checksum
		ORDER BY upload_ts DESC
		LIMIT 1
	`, projectID, datasetID)

	q := client.Query(queryStr)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "checksum", Value: checksum},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindStatementByChecksum: query read: %w", err)
	}

	var row StatementRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindStatementByChecksum: iter next: %w", err)
	}
	return &row, nil
}

// UpdateStatementStatusWithClient sets the statement status. Terminal states
// (INGESTED, FAILED) also stamp processed_ts.
func UpdateStatementStatusWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, statementID, status string) error {
	assignments := "status = @status"
	if status == bq.StatementStatusIngested || status == bq.StatementStatusFailed {
		assignments += ", processed_ts = CURRENT_TIMESTAMP()"
	}

	queryStr := fmt.Sprintf(`
		UPDATE `+"`%s.%s.statements`"+`
		SET %s
		WHERE statement_id = @statement_id
	`, projectID, datasetID, assignments)

	q := client.Query(queryStr)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: status},
		{Name: "statement_id", Value: statementID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("UpdateStatementStatus: running update query: %w", err)
	}
	jobStatus, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("UpdateStatementStatus: waiting for job: %w", err)
	}
	if err := jobStatus.Err(); err != nil {
		return fmt.Errorf("UpdateStatementStatus: job error: %w", err)
	}
	return nil
}
