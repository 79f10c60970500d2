package notionsync

import (
	"context"

	"github.com/jomei/notionapi"

	"github.com/ovoloshko/statement-ingest/internal/bigquery"
)

// NotionService defines the interface for interacting with Notion API.
// This interface enables mocking and testing of Notion operations.
type NotionService interface {
	// CreatePage creates a new page in a Notion database with the given properties.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// UpdatePage updates an existing Notion page with the given properties.
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)

	// QueryDatabase queries a Notion database with the given filter.
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// TransactionSource is the slice of the repository the exporter reads.
type TransactionSource interface {
	// LatestSessionTag returns the session tag of the most recent successful
	// run.
	LatestSessionTag(ctx context.Context) (string, error)

	// QueryTransactionsBySession retrieves the transactions of one ingestion
	// run in date order.
	QueryTransactionsBySession(ctx context.Context, sessionTag string) ([]*bigquery.TransactionRow, error)
}
