package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	bq "github.com/ovoloshko/statement-ingest/internal/bigquery"
	"github.com/ovoloshko/statement-ingest/internal/config"
	"github.com/ovoloshko/statement-ingest/internal/extract"
	infraBQ "github.com/ovoloshko/statement-ingest/internal/infra/bigquery"
	"github.com/ovoloshko/statement-ingest/internal/ingest"
	"github.com/ovoloshko/statement-ingest/internal/logger"
	"github.com/ovoloshko/statement-ingest/internal/staging"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	filePath := flag.String("file", "", "Path to a local statement file")
	gcsURI := flag.String("gcs-uri", "", "GCS URI of a staged statement (e.g. gs://bucket/statements/tag/file.pdf)")
	flag.Parse()

	if (*filePath == "") == (*gcsURI == "") {
		log.Fatal().Msg("Error: exactly one of --file or --gcs-uri is required")
	}

	cfg := config.Load()
	for _, err := range []error{cfg.RequireBigQuery(), cfg.RequireStaging(), cfg.RequireProvider()} {
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid configuration")
		}
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewBigQueryStatementRepository(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create statement repository")
	}
	defer repo.Close()

	store, err := staging.NewGCSStore(ctx, cfg.StagingBucket)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create staging store")
	}
	defer store.Close()

	svc, err := ingest.FromConfig(ctx, cfg, repo)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build ingestion service")
	}

	sessionTag := uuid.NewString()
	statementID := uuid.NewString()

	var (
		filename string
		data     []byte
		uri      string
	)
	if *filePath != "" {
		filename = filepath.Base(*filePath)
		data, err = os.ReadFile(*filePath)
		if err != nil {
			log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read statement file")
		}

		// Stage the file so the stored record points at a replayable copy.
		objectName := fmt.Sprintf("statements/%s/%s", sessionTag, filename)
		uri, err = store.Upload(ctx, objectName, data)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to stage statement")
		}
	} else {
		uri = *gcsURI
		filename = staging.FilenameFromURI(uri)
		data, err = store.Fetch(ctx, uri)
		if err != nil {
			log.Fatal().Err(err).Str("gcs_uri", uri).Msg("Failed to fetch staged statement")
		}
	}

	format, err := extract.FormatFromFilename(filename)
	if err != nil {
		log.Fatal().Err(err).Str("filename", filename).Msg("Unsupported statement format")
	}

	row := &bq.StatementRow{
		StatementID:      statementID,
		GCSURI:           uri,
		OriginalFilename: filename,
		Format:           string(format),
		SizeBytes:        int64(len(data)),
		ChecksumSHA256:   fmt.Sprintf("%x", sha256.Sum256(data)),
		Status:           bq.StatementStatusUploaded,
		UploadTS:         time.Now().UTC(),
	}
	if err := repo.InsertStatement(ctx, row); err != nil {
		log.Fatal().Err(err).Msg("Failed to store statement")
	}

	log.Info().
		Str("session_tag", sessionTag).
		Str("statement_id", statementID).
		Str("gcs_uri", uri).
		Msg("Starting ingestion")

	result, err := svc.Ingest(ctx, ingest.Input{
		StatementID: statementID,
		SessionTag:  sessionTag,
		Filename:    filename,
		Format:      format,
		Data:        data,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	fmt.Println("Ingestion completed successfully.")
	fmt.Printf("  Session tag: %s\n", result.SessionTag)
	fmt.Printf("  Parsed: %d  Saved: %d  Errors: %d\n", result.TotalParsed, result.TotalSaved, result.ErrorCount)
	if result.DuplicatesSkipped > 0 {
		fmt.Printf("  Duplicates skipped: %d\n", result.DuplicatesSkipped)
	}
	if result.DuplicateWarnings > 0 {
		fmt.Printf("  Duplicate warnings: %d\n", result.DuplicateWarnings)
	}
	if result.Truncated {
		fmt.Println("  Note: statement text was truncated before extraction.")
	}
}
