// Package ingest runs the statement ingestion pipeline: extract text, pull
// transactions out of it, reconcile them against stored records and persist
// the batch under the caller's session tag.
package ingest

import (
	"context"
	"fmt"

	bq "github.com/ovoloshko/statement-ingest/internal/bigquery"
	"github.com/ovoloshko/statement-ingest/internal/domain"
	"github.com/ovoloshko/statement-ingest/internal/extract"
	"github.com/ovoloshko/statement-ingest/internal/llm"
	"github.com/ovoloshko/statement-ingest/internal/logger"
	"github.com/ovoloshko/statement-ingest/internal/reconcile"
)

// AIExtractor sends statement text to a model and returns its raw response.
type AIExtractor interface {
	Extract(ctx context.Context, text string) (*llm.Extraction, error)
}

// Categorizer assigns a category to a transaction description.
type Categorizer interface {
	Categorize(description string) domain.Category
}

// Input is one statement to ingest. The session tag is generated by the
// caller at upload time and doubles as the ingestion run identifier; Ingest
// never invents one.
type Input struct {
	StatementID string
	SessionTag  string
	Filename    string
	Format      extract.Format
	Data        []byte
}

// Result is the synchronous outcome of a successful ingestion.
type Result struct {
	TotalParsed              int                           `json:"totalParsed"`
	TotalSaved               int                           `json:"totalSaved"`
	ErrorCount               int                           `json:"errorCount"`
	DuplicateWarnings        int                           `json:"duplicateWarnings"`
	DuplicatesSkipped        int                           `json:"duplicatesSkipped"`
	PreviousRecordsPreserved int64                         `json:"previousRecordsPreserved"`
	SessionTag               string                        `json:"sessionTag"`
	Truncated                bool                          `json:"truncated"`
	Transactions             []domain.ExtractedTransaction `json:"transactions"`
}

// Service wires the pipeline's dependencies together. One Service handles
// any number of concurrent ingestions; each call is an independent unit of
// work with its own state.
type Service struct {
	repo        bq.StatementRepository
	ai          AIExtractor
	categorizer Categorizer
	policy      reconcile.Policy
	provider    string
	model       string
}

// NewService creates an ingestion service. Provider and model name the AI
// backend on run records.
func NewService(repo bq.StatementRepository, ai AIExtractor, categorizer Categorizer, policy reconcile.Policy, provider, model string) *Service {
	return &Service{
		repo:        repo,
		ai:          ai,
		categorizer: categorizer,
		policy:      policy,
		provider:    provider,
		model:       model,
	}
}

// Ingest runs the full pipeline for one statement. CSV statements with a
// recognizable header bypass the AI entirely; PDF and text statements go
// through extraction, the model and the normalizer. Either way the batch
// ends at the reconciliation policy and the run record carries the final
// counts.
func (s *Service) Ingest(ctx context.Context, in Input) (*Result, error) {
	if in.SessionTag == "" {
		return nil, fmt.Errorf("ingest: session tag is required")
	}
	if in.StatementID == "" {
		return nil, fmt.Errorf("ingest: statement id is required")
	}

	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
		"session_tag":  in.SessionTag,
		"statement_id": in.StatementID,
	})
	ctx = logger.WithContext(ctx, log)

	st := &state{input: in}
	if err := s.pipelineFor(in.Format).run(ctx, st); err != nil {
		s.repo.MarkIngestionRunFailed(ctx, in.SessionTag, err)
		if statusErr := s.repo.UpdateStatementStatus(ctx, in.StatementID, bq.StatementStatusFailed); statusErr != nil {
			log.Error().Err(statusErr).Msg("failed to mark statement as failed")
		}
		return nil, err
	}

	result := &Result{
		TotalParsed:              st.parsed,
		TotalSaved:               len(st.outcome.Saved),
		ErrorCount:               st.dropped + st.outcome.ErrorCount,
		DuplicateWarnings:        st.outcome.DuplicateWarnings,
		DuplicatesSkipped:        st.outcome.DuplicatesSkipped,
		PreviousRecordsPreserved: st.prior,
		SessionTag:               in.SessionTag,
		Truncated:                st.truncated,
		Transactions:             savedTransactions(st.outcome),
	}

	log.Info().
		Int("parsed", result.TotalParsed).
		Int("saved", result.TotalSaved).
		Int("errors", result.ErrorCount).
		Int("duplicates_skipped", result.DuplicatesSkipped).
		Str("policy", s.policy.Name()).
		Msg("ingestion complete")

	return result, nil
}

func savedTransactions(outcome *reconcile.Outcome) []domain.ExtractedTransaction {
	txs := make([]domain.ExtractedTransaction, 0, len(outcome.Saved))
	for _, row := range outcome.Saved {
		txs = append(txs, row.Domain())
	}
	return txs
}

// runProvider names the extraction backend on the run record. CSV runs never
// touch the model.
func (s *Service) runProvider(format extract.Format) (provider, model string) {
	if format == extract.FormatCSV {
		return "csv", ""
	}
	return s.provider, s.model
}
