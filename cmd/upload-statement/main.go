package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"

	"github.com/ovoloshko/statement-ingest/internal/config"
	"github.com/ovoloshko/statement-ingest/internal/logger"
	"github.com/ovoloshko/statement-ingest/internal/staging"
)

func main() {
	log := logger.New()

	cfg := config.Load()

	bucketName := flag.String("bucket", cfg.StagingBucket, "GCS bucket name (defaults to STAGING_BUCKET)")
	objectName := flag.String("object", "", "GCS object name (defaults to filename)")
	filePath := flag.String("file", "", "Path to local statement file")
	flag.Parse()

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: upload-statement -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	store, err := staging.NewGCSStore(ctx, *bucketName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create staging store")
	}
	defer store.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading statement to GCS")

	uri, err := store.UploadFile(ctx, *objectName, *filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
}
