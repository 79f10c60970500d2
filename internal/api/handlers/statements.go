// Package handlers implements the REST endpoints of the ingestion service.
package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ovoloshko/statement-ingest/internal/api/middleware"
	"github.com/ovoloshko/statement-ingest/internal/bigquery"
	"github.com/ovoloshko/statement-ingest/internal/domain"
	"github.com/ovoloshko/statement-ingest/internal/extract"
	"github.com/ovoloshko/statement-ingest/internal/ingest"
	"github.com/ovoloshko/statement-ingest/internal/jobs"
	"github.com/ovoloshko/statement-ingest/internal/staging"
)

// uploadSlackBytes leaves room for multipart framing on top of the statement
// size cap when limiting the request body.
const uploadSlackBytes = 1 << 20

// Ingestor runs one statement through the pipeline synchronously.
type Ingestor interface {
	Ingest(ctx context.Context, in ingest.Input) (*ingest.Result, error)
}

// StatementsHandler handles statement upload and listing.
type StatementsHandler struct {
	repo      bigquery.StatementRepository
	publisher jobs.Publisher
	store     staging.Store
	ingestor  Ingestor
	log       zerolog.Logger
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(repo bigquery.StatementRepository, publisher jobs.Publisher, store staging.Store, ingestor Ingestor, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		repo:      repo,
		publisher: publisher,
		store:     store,
		ingestor:  ingestor,
		log:       log,
	}
}

// Upload handles POST /api/statements/upload
//
// The statement is staged, recorded and queued for ingestion; the response
// carries the session tag the client will query results with. With
// ?mode=sync the pipeline runs inline and the response carries the full run
// summary instead of a job ID.
func (h *StatementsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, extract.MaxStatementBytes+uploadSlackBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, oversizeAdvice())
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "The upload could not be read")
		return
	}
	if len(data) > extract.MaxStatementBytes {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, oversizeAdvice())
		return
	}

	filename := filepath.Base(header.Filename)
	format, data, err := resolveUpload(filename, data)
	if err != nil {
		h.log.Warn().Err(err).Str("filename", filename).Msg("Upload rejected")
		middleware.WriteError(w, statusForError(err), domain.AdviceFor(err))
		return
	}

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	// Duplicate awareness only. Re-ingesting the same file under a fresh
	// session tag is allowed and earlier records stay untouched.
	previous, err := h.repo.FindStatementByChecksum(ctx, checksum)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to check for a previous upload")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store statement")
		return
	}

	sessionTag := uuid.NewString()
	statementID := uuid.NewString()

	objectName := fmt.Sprintf("statements/%s/%s", sessionTag, filename)
	gcsURI, err := h.store.Upload(ctx, objectName, data)
	if err != nil {
		h.log.Error().Err(err).Str("object", objectName).Msg("Failed to stage statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to stage statement")
		return
	}

	row := &bigquery.StatementRow{
		StatementID:      statementID,
		GCSURI:           gcsURI,
		OriginalFilename: filename,
		Format:           string(format),
		SizeBytes:        int64(len(data)),
		ChecksumSHA256:   checksum,
		Status:           bigquery.StatementStatusUploaded,
		UploadTS:         time.Now().UTC(),
	}
	if err := h.repo.InsertStatement(ctx, row); err != nil {
		h.log.Error().Err(err).Str("statement_id", statementID).Msg("Failed to insert statement metadata")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store statement")
		return
	}

	in := ingest.Input{
		StatementID: statementID,
		SessionTag:  sessionTag,
		Filename:    filename,
		Format:      format,
		Data:        data,
	}

	if r.URL.Query().Get("mode") == "sync" {
		h.uploadSync(w, r, in, previous)
		return
	}

	job := &jobs.IngestStatementJob{
		StatementID: statementID,
		SessionTag:  sessionTag,
		GCSURI:      gcsURI,
		Filename:    filename,
		Format:      string(format),
	}
	if err := h.publisher.PublishIngestStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue ingestion job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue ingestion job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("statement_id", statementID).
		Str("session_tag", sessionTag).
		Msg("Ingestion job enqueued")

	resp := map[string]interface{}{
		"job_id":       job.JobID,
		"statement_id": statementID,
		"session_tag":  sessionTag,
		"status":       string(job.Status),
	}
	if previous != nil {
		resp["previous_statement_id"] = previous.StatementID
	}
	middleware.WriteJSON(w, http.StatusAccepted, resp)
}

// uploadSync runs the pipeline inline and maps ingestion failures onto HTTP
// statuses. Used by small statements and scripts; big PDFs belong on the
// queue.
func (h *StatementsHandler) uploadSync(w http.ResponseWriter, r *http.Request, in ingest.Input, previous *bigquery.StatementRow) {
	result, err := h.ingestor.Ingest(r.Context(), in)
	if err != nil {
		h.log.Error().Err(err).Str("session_tag", in.SessionTag).Msg("Synchronous ingestion failed")
		middleware.WriteError(w, statusForError(err), domain.AdviceFor(err))
		return
	}

	resp := map[string]interface{}{
		"statement_id": in.StatementID,
		"result":       result,
	}
	if previous != nil {
		resp["previous_statement_id"] = previous.StatementID
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// ListStatements handles GET /api/statements
func (h *StatementsHandler) ListStatements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	statements, err := h.repo.ListStatements(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list statements")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list statements")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"statements": statements,
		"count":      len(statements),
	})
}

// resolveUpload derives the format tag for an upload. Workbooks are not a
// core format: .xlsx content is converted to CSV rows right here, .xls is
// refused with re-export advice, and everything else goes through the
// extension switch the rest of the system uses.
func resolveUpload(filename string, data []byte) (extract.Format, []byte, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "xlsx":
		converted, err := workbookToCSV(data)
		if err != nil {
			return "", nil, err
		}
		return extract.FormatCSV, converted, nil
	case "xls":
		return "", nil, domain.NewIngestError(domain.ErrUnsupportedFormat,
			"legacy .xls workbooks are not supported, re-export the statement as CSV or .xlsx", nil)
	}

	format, err := extract.FormatFromFilename(filename)
	if err != nil {
		return "", nil, err
	}
	return format, data, nil
}

func oversizeAdvice() string {
	return fmt.Sprintf("the statement is larger than the %d MiB limit, export a smaller date range", extract.MaxStatementBytes>>20)
}
