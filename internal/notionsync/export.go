// Package notionsync exports ingested transactions to a Notion database, one
// page per transaction. The export is idempotent: pages are keyed by the
// Transaction ID property, so re-running a session updates its pages instead
// of duplicating them.
package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/ovoloshko/statement-ingest/internal/logger"
)

const (
	// notionPageSize is the page size used when listing existing pages.
	notionPageSize = 100

	// writePause keeps the export under Notion's ~3 requests/second limit.
	writePause = 350 * time.Millisecond
)

// Options configure one export.
type Options struct {
	// DatabaseID is the Notion database receiving the pages.
	DatabaseID string

	// SessionTag selects the run to export. Empty means the latest
	// successful run.
	SessionTag string

	// DryRun logs what would happen without touching Notion.
	DryRun bool
}

// Stats summarize one export.
type Stats struct {
	SessionTag string
	Created    int
	Updated    int
	Failed     int
	Total      int
}

// Exporter pushes a session's transactions into a Notion database.
type Exporter struct {
	source TransactionSource
	notion NotionService
	pause  func(context.Context, time.Duration) error
}

// NewExporter creates an exporter reading from source and writing through
// notion.
func NewExporter(source TransactionSource, notion NotionService) *Exporter {
	return &Exporter{
		source: source,
		notion: notion,
		pause:  pauseContext,
	}
}

// ExportSession exports one ingestion run to Notion. Existing pages are
// updated in place; per-page failures are logged and counted, they never
// abort the rest of the export.
func (e *Exporter) ExportSession(ctx context.Context, opts Options) (*Stats, error) {
	log := logger.FromContext(ctx)

	sessionTag := opts.SessionTag
	if sessionTag == "" {
		var err error
		sessionTag, err = e.source.LatestSessionTag(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve latest session: %w", err)
		}
		if sessionTag == "" {
			return nil, fmt.Errorf("no successful ingestion run to export")
		}
	}

	log.Info().
		Str("session_tag", sessionTag).
		Bool("dry_run", opts.DryRun).
		Msg("Starting transaction export to Notion")

	transactions, err := e.source.QueryTransactionsBySession(ctx, sessionTag)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}

	existing, err := e.existingPages(ctx, opts.DatabaseID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("transaction_count", len(transactions)).
		Int("notion_page_count", len(existing)).
		Msg("Retrieved transactions and existing Notion pages")

	stats := &Stats{SessionTag: sessionTag, Total: len(transactions)}
	for _, tx := range transactions {
		pageID, known := existing[tx.TransactionID]

		if opts.DryRun {
			if known {
				log.Info().
					Str("transaction_id", tx.TransactionID).
					Str("page_id", pageID).
					Msg("[DRY RUN] Would update Notion page")
				stats.Updated++
			} else {
				log.Info().
					Str("transaction_id", tx.TransactionID).
					Msg("[DRY RUN] Would create Notion page")
				stats.Created++
			}
			continue
		}

		props := TransactionProperties(tx)

		if known {
			if _, err := e.notion.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().
					Err(err).
					Str("transaction_id", tx.TransactionID).
					Str("page_id", pageID).
					Msg("Failed to update Notion page")
				stats.Failed++
				continue
			}
			stats.Updated++
		} else {
			page, err := e.notion.CreatePage(ctx, opts.DatabaseID, props)
			if err != nil {
				log.Warn().
					Err(err).
					Str("transaction_id", tx.TransactionID).
					Msg("Failed to create Notion page")
				stats.Failed++
				continue
			}
			existing[tx.TransactionID] = string(page.ID)
			stats.Created++
		}

		if err := e.pause(ctx, writePause); err != nil {
			return stats, fmt.Errorf("export aborted: %w", err)
		}
	}

	log.Info().
		Str("session_tag", sessionTag).
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("failed", stats.Failed).
		Int("total", stats.Total).
		Msg("Transaction export completed")

	return stats, nil
}

// existingPages lists every page in the database and indexes it by the
// Transaction ID property. Handles pagination automatically.
func (e *Exporter) existingPages(ctx context.Context, databaseID string) (map[string]string, error) {
	pages := make(map[string]string)
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: notionPageSize,
		}
		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := e.notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("existingPages: %w", err)
		}

		for _, page := range resp.Results {
			if txID := pageTransactionID(page); txID != "" {
				pages[txID] = string(page.ID)
			}
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return pages, nil
}

// pauseContext waits for d, or returns early with the context error.
func pauseContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
