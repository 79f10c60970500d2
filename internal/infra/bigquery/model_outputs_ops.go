package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// InsertModelOutputWithClient inserts a single ModelOutputRow using the
// provided client. Uses DML INSERT to avoid streaming buffer issues.
func InsertModelOutputWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, row *ModelOutputRow) error {
	queryStr := fmt.Sprintf(`
		INSERT INTO `+"`%s.%s.model_outputs`"+`
		(output_id, session_tag, statement_id, model_name, raw_text, created_ts)
		VALUES (@output_id, @session_tag, @statement_id, @model_name, @raw_text, @created_ts)
	`, projectID, datasetID)

	q := client.Query(queryStr)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "output_id", Value: row.OutputID},
		{Name: "session_tag", Value: row.SessionTag},
		{Name: "statement_id", Value: row.StatementID},
		{Name: "model_name", Value: row.ModelName},
		{Name: "raw_text", Value: row.RawText},
		{Name: "created_ts", Value: row.CreatedTS},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("InsertModelOutput: running insert query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("InsertModelOutput: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("InsertModelOutput: job error: %w", err)
	}

	return nil
}
