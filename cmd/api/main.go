package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ovoloshko/statement-ingest/internal/api/handlers"
	"github.com/ovoloshko/statement-ingest/internal/api/middleware"
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

	ctx := context.Background()

	// Initialize repositories
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

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueBuffer, cfg.QueueWorkers, jobStore)

	// Start workers to process jobs in the background
	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, ingestJobHandler(svc, store, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}
	log.Info().Int("workers", cfg.QueueWorkers).Msg("Ingestion workers started")

	// Initialize handlers
	statementsHandler := handlers.NewStatementsHandler(repo, jobQueue, store, svc, log)
	transactionsHandler := handlers.NewTransactionsHandler(repo, log)
	runsHandler := handlers.NewRunsHandler(repo, log)
	categoriesHandler := handlers.NewCategoriesHandler()
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Statements endpoints
	mux.HandleFunc("/api/statements/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			statementsHandler.Upload(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/statements", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			statementsHandler.ListStatements(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Transactions endpoints
	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.ListTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/summary", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.CategorySummary(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Runs endpoints
	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			runsHandler.ListRuns(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Categories endpoints
	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			categoriesHandler.ListCategories(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Extract job ID from path
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware. RequestID runs before Logger so the request logger
	// carries the ID.
	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(mux),
				),
			),
		),
	)

	// Create HTTP server. Sync-mode uploads hold the response open while the
	// model retries, so the write timeout is generous.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Int("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
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
