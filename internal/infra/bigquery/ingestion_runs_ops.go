package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	bq "github.com/ovoloshko/statement-ingest/internal/bigquery"
	"github.com/ovoloshko/statement-ingest/internal/logger"
)

// StartIngestionRunWithClient opens a run with status=RUNNING. The session
// tag is supplied by the caller and doubles as the run identifier; this
// function never generates one. Retried jobs reuse their tag, so an existing
// run record is reset in place instead of duplicated.
func StartIngestionRunWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, statementID, sessionTag, provider, model string) error {
	queryStr := fmt.Sprintf(`
		MERGE `+"`%s.%s.ingestion_runs`"+` r
		USING (SELECT @session_tag AS session_tag) s
		ON r.session_tag = s.session_tag
		WHEN MATCHED THEN UPDATE SET
			status = @status, error_message = '',
			total_parsed = 0, total_saved = 0, error_count = 0,
			duplicates_skipped = 0, duplicate_warnings = 0, truncated = FALSE,
			started_ts = @started_ts, finished_ts = NULL
		WHEN NOT MATCHED THEN INSERT
			(session_tag, statement_id, provider, model, status, error_message, total_parsed, total_saved, error_count, duplicates_skipped, duplicate_warnings, truncated, started_ts)
			VALUES (@session_tag, @statement_id, @provider, @model, @status, '', 0, 0, 0, 0, 0, FALSE, @started_ts)
	`, projectID, datasetID)

	q := client.Query(queryStr)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "session_tag", Value: sessionTag},
		{Name: "statement_id", Value: statementID},
		{Name: "provider", Value: provider},
		{Name: "model", Value: model},
		{Name: "status", Value: bq.RunStatusRunning},
		{Name: "started_ts", Value: time.Now().UTC()},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("StartIngestionRun: running merge query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("StartIngestionRun: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("StartIngestionRun: job error: %w", err)
	}
	return nil
}

// MarkIngestionRunSucceededWithClient sets status=SUCCESS, stamps finished_ts
// and records the run counts.
func MarkIngestionRunSucceededWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, sessionTag string, counts RunCounts) error {
	queryStr := fmt.Sprintf(`
		UPDATE `+"`%s.%s.ingestion_runs`"+`
		SET status = @status,
			total_parsed = @total_parsed,
			total_saved = @total_saved,
			error_count = @error_count,
			duplicates_skipped = @duplicates_skipped,
			duplicate_warnings = @duplicate_warnings,
			truncated = @truncated,
			finished_ts = CURRENT_TIMESTAMP()
		WHERE session_tag = @session_tag
	`, projectID, datasetID)

	q := client.Query(queryStr)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: bq.RunStatusSuccess},
		{Name: "total_parsed", Value: counts.TotalParsed},
		{Name: "total_saved", Value: counts.TotalSaved},
		{Name: "error_count", Value: counts.ErrorCount},
		{Name: "duplicates_skipped", Value: counts.DuplicatesSkipped},
		{Name: "duplicate_warnings", Value: counts.DuplicateWarnings},
		{Name: "truncated", Value: counts.Truncated},
		{Name: "session_tag", Value: sessionTag},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("MarkIngestionRunSucceeded: running update query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("MarkIngestionRunSucceeded: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("MarkIngestionRunSucceeded: job error: %w", err)
	}
	return nil
}

// MarkIngestionRunFailedWithClient sets status=FAILED, stamps finished_ts and
// stores the error message. Failures here are logged, not returned, so they
// never mask the original ingestion error.
func MarkIngestionRunFailedWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, sessionTag string, runErr error) {
	log := logger.FromContext(ctx)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	if len(errMsg) > 2000 {
		errMsg = errMsg[:2000]
	}

	queryStr := fmt.Sprintf(`
		UPDATE `+"`%s.%s.ingestion_runs`"+`
		SET status = @status,
			error_message = @error_message,
			finished_ts = CURRENT_TIMESTAMP()
		WHERE session_tag = @session_tag
	`, projectID, datasetID)

	q := client.Query(queryStr)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: bq.RunStatusFailed},
		{Name: "error_message", Value: errMsg},
		{Name: "session_tag", Value: sessionTag},
	}

	job, err := q.Run(ctx)
	if err != nil {
		log.Error().Err(err).Str("session_tag", sessionTag).Msg("failed to mark ingestion run as failed")
		return
	}
	status, err := job.Wait(ctx)
	if err != nil {
		log.Error().Err(err).Str("session_tag", sessionTag).Msg("failed waiting for run failure update")
		return
	}
	if err := status.Err(); err != nil {
		log.Error().Err(err).Str("session_tag", sessionTag).Msg("run failure update did not complete")
	}
}

// ListIngestionRunsWithClient returns all runs, newest first.
func ListIngestionRunsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string) ([]*IngestionRunRow, error) {
	queryStr := fmt.Sprintf(`
		SELECT session_tag, statement_id, provider, model, status, error_message, total_parsed, total_saved, error_count, duplicates_skipped, duplicate_warnings, truncated, started_ts, finished_ts
		FROM `+"`%s.%s.ingestion_runs`"+`
		ORDER BY started_ts DESC
	`, projectID, datasetID)

	q := client.Query(queryStr)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListIngestionRuns: query read: %w", err)
	}

	var rows []*IngestionRunRow
	for {
		var row IngestionRunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListIngestionRuns: iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}

// LatestSessionTagWithClient returns the session tag of the most recently
// started successful run, or empty if no run has succeeded yet.
func LatestSessionTagWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string) (string, error) {
	queryStr := fmt.Sprintf(`
		SELECT session_tag
		FROM `+"`%s.%s.ingestion_runs`"+`
		WHERE status = @status
		ORDER BY started_ts DESC
		LIMIT 1
	`, projectID, datasetID)

	q := client.Query(queryStr)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: bq.RunStatusSuccess},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return "", fmt.Errorf("LatestSessionTag: query read: %w", err)
	}

	var row struct {
		SessionTag string `bigquery:"session_tag"`
	}
	err = it.Next(&row)
	if err == iterator.Done {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("LatestSessionTag: iter next: %w", err)
	}
	return row.SessionTag, nil
}
