package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/ovoloshko/statement-ingest/internal/config"
	"github.com/ovoloshko/statement-ingest/internal/domain"
	"github.com/ovoloshko/statement-ingest/internal/extract"
	infraBQ "github.com/ovoloshko/statement-ingest/internal/infra/bigquery"
	"github.com/ovoloshko/statement-ingest/internal/ingest"
	"github.com/ovoloshko/statement-ingest/internal/jobs"
	"github.com/ovoloshko/statement-ingest/internal/jobs/inmemory"
	"github.com/ovoloshko/statement-ingest/internal/logger"
	"github.com/ovoloshko/statement-ingest/internal/staging"
)

func main() {
	// Initialize logger
	log := logger.New()

	cfg := config.Load()
	for _, err := range []error{cfg.RequireBigQuery(), cfg.RequireStaging(), cfg.RequireProvider()} {
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid configuration")
		}
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

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

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueBuffer, cfg.QueueWorkers, jobStore)

	log.Info().Msg("Starting worker service")

	// Start consuming jobs
	if err := jobQueue.Start(ctx, ingestJobHandler(svc, store, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	// The janitor clears staged statements whose retention window has passed.
	janitor := cron.New()
	_, err = janitor.AddFunc(cfg.JanitorSpec, func() {
		purgeCtx, purgeCancel := context.WithTimeout(ctx, 10*time.Minute)
		defer purgeCancel()

		removed, err := store.Purge(purgeCtx, "statements/", time.Now().Add(-cfg.StagingTTL))
		if err != nil {
			log.Error().Err(err).Msg("Staging purge failed")
			return
		}
		log.Info().
			Int("removed", removed).
			Dur("ttl", cfg.StagingTTL).
			Msg("Staging purge completed")
	})
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.JanitorSpec).Msg("Invalid janitor schedule")
	}
	janitor.Start()

	log.Info().
		Int("workers", cfg.QueueWorkers).
		Str("janitor_schedule", cfg.JanitorSpec).
		Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Stop the janitor, then cancel context to stop workers
	<-janitor.Stop().Done()
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}

// ingestJobHandler adapts the ingestion service to the queue. Deterministic
// document failures are marked permanent so the queue fails them without
// retry; provider outages stay retryable.
func ingestJobHandler(svc *ingest.Service, store staging.Store, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		ingestJob, ok := job.(*jobs.IngestStatementJob)
		if !ok {
			return jobs.Permanent(fmt.Errorf("unexpected job type: %T", job))
		}

		log.Info().
			Str("job_id", ingestJob.JobID).
			Str("statement_id", ingestJob.StatementID).
			Str("session_tag", ingestJob.SessionTag).
			Str("gcs_uri", ingestJob.GCSURI).
			Msg("Processing ingestion job")

		data, err := store.Fetch(ctx, ingestJob.GCSURI)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", ingestJob.JobID).
				Msg("Failed to fetch staged statement")
			return err
		}

		result, err := svc.Ingest(ctx, ingest.Input{
			StatementID: ingestJob.StatementID,
			SessionTag:  ingestJob.SessionTag,
			Filename:    ingestJob.Filename,
			Format:      extract.Format(ingestJob.Format),
			Data:        data,
		})
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", ingestJob.JobID).
				Str("statement_id", ingestJob.StatementID).
				Msg("Ingestion failed")
			if isDocumentFailure(err) {
				return jobs.Permanent(err)
			}
			return err
		}

		log.Info().
			Str("job_id", ingestJob.JobID).
			Str("session_tag", result.SessionTag).
			Int("total_parsed", result.TotalParsed).
			Int("total_saved", result.TotalSaved).
			Int("error_count", result.ErrorCount).
			Msg("Ingestion completed")

		return nil
	}
}

// isDocumentFailure reports whether the failure is pinned to the document
// itself, where retrying the same bytes cannot change the outcome.
func isDocumentFailure(err error) bool {
	return errors.Is(err, domain.ErrUnsupportedFormat) ||
		errors.Is(err, domain.ErrUnreadableDocument) ||
		errors.Is(err, domain.ErrNoTransactionsFound) ||
		errors.Is(err, domain.ErrUnparsableResponse)
}
