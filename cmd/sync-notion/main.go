package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/ovoloshko/statement-ingest/internal/config"
	infraBQ "github.com/ovoloshko/statement-ingest/internal/infra/bigquery"
	"github.com/ovoloshko/statement-ingest/internal/logger"
	"github.com/ovoloshko/statement-ingest/internal/notionsync"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	cfg := config.Load()

	// Parse CLI flags
	session := flag.String("session", "", "Session tag to export (defaults to the latest successful run)")
	databaseID := flag.String("database", cfg.NotionDatabaseID, "Notion database ID (defaults to NOTION_DATABASE_ID)")
	dryRun := flag.Bool("dry-run", false, "Preview changes without writing to Notion")
	flag.Parse()

	// The flag wins over the environment.
	cfg.NotionDatabaseID = *databaseID

	for _, err := range []error{cfg.RequireBigQuery(), cfg.RequireNotion()} {
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid configuration")
		}
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewBigQueryStatementRepository(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create statement repository")
	}
	defer repo.Close()

	exporter := notionsync.NewExporter(repo, notionsync.NewNotionClient(cfg.NotionAPIKey))

	stats, err := exporter.ExportSession(ctx, notionsync.Options{
		DatabaseID: cfg.NotionDatabaseID,
		SessionTag: *session,
		DryRun:     *dryRun,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	if *dryRun {
		fmt.Println("Dry run completed, nothing was written.")
	} else {
		fmt.Println("Export completed successfully.")
	}
	fmt.Printf("  Session: %s\n", stats.SessionTag)
	fmt.Printf("  Created: %d  Updated: %d  Failed: %d  Total: %d\n",
		stats.Created, stats.Updated, stats.Failed, stats.Total)
}
