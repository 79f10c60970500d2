package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	bq "github.com/ovoloshko/statement-ingest/internal/bigquery"
	"github.com/ovoloshko/statement-ingest/internal/domain"
	"github.com/ovoloshko/statement-ingest/internal/extract"
	"github.com/ovoloshko/statement-ingest/internal/llm"
	"github.com/ovoloshko/statement-ingest/internal/logger"
	"github.com/ovoloshko/statement-ingest/internal/normalize"
	"github.com/ovoloshko/statement-ingest/internal/reconcile"
)

// state holds the shared data threaded through one ingestion's steps.
type state struct {
	input      Input
	content    *extract.Content
	extraction *llm.Extraction
	candidates []domain.ExtractedTransaction
	outcome    *reconcile.Outcome

	// parsed counts every record pulled out of the statement, including the
	// ones the normalizer later dropped. dropped is the normalizer's share of
	// the final error count.
	parsed    int
	dropped   int
	truncated bool

	// prior is how many transactions were already stored before this run's
	// batch landed. Informational; the session policy never touches them.
	prior int64
}

type step interface {
	execute(ctx context.Context, st *state) error
}

// pipeline executes a sequence of steps in order, stopping at the first
// failure.
type pipeline struct {
	steps []step
}

func (p *pipeline) run(ctx context.Context, st *state) error {
	for i, s := range p.steps {
		if err := s.execute(ctx, st); err != nil {
			return fmt.Errorf("ingestion step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// pipelineFor assembles the step sequence for a statement format. CSV skips
// the model entirely; everything else goes through extraction, the AI call
// and the normalizer.
func (s *Service) pipelineFor(format extract.Format) *pipeline {
	if format == extract.FormatCSV {
		return &pipeline{steps: []step{
			&startRunStep{svc: s},
			&extractStep{},
			&mapRecordsStep{svc: s},
			&ensureParsedStep{},
			&countPriorStep{svc: s},
			&reconcileStep{svc: s},
			&markSuccessStep{svc: s},
		}}
	}
	return &pipeline{steps: []step{
		&startRunStep{svc: s},
		&extractStep{},
		&aiExtractStep{svc: s},
		&storeModelOutputStep{svc: s},
		&normalizeStep{},
		&ensureParsedStep{},
		&countPriorStep{svc: s},
		&reconcileStep{svc: s},
		&markSuccessStep{svc: s},
	}}
}

// startRunStep moves the statement to INGESTING and opens the run record
// under the caller's session tag.
type startRunStep struct {
	svc *Service
}

func (s *startRunStep) execute(ctx context.Context, st *state) error {
	if err := s.svc.repo.UpdateStatementStatus(ctx, st.input.StatementID, bq.StatementStatusIngesting); err != nil {
		return err
	}
	provider, model := s.svc.runProvider(st.input.Format)
	return s.svc.repo.StartIngestionRun(ctx, st.input.StatementID, st.input.SessionTag, provider, model)
}

// extractStep turns the statement bytes into text or structured records.
type extractStep struct{}

func (s *extractStep) execute(ctx context.Context, st *state) error {
	content, err := extract.Extract(st.input.Data, st.input.Format)
	if err != nil {
		return err
	}
	st.content = content
	return nil
}

// mapRecordsStep builds transactions straight from mapped CSV records using
// the keyword categorizer. No model involved.
type mapRecordsStep struct {
	svc *Service
}

func (s *mapRecordsStep) execute(ctx context.Context, st *state) error {
	records := st.content.Records
	txs := make([]domain.ExtractedTransaction, 0, len(records))
	for _, r := range records {
		txs = append(txs, domain.ExtractedTransaction{
			Date:        r.Date,
			Description: r.Description,
			Amount:      r.Amount,
			Category:    s.svc.categorizer.Categorize(r.Description),
			Type:        domain.TypeForAmount(r.Amount),
			Merchant:    domain.MerchantFromDescription(r.Description),
			Reference:   r.Reference,
			Origin:      domain.OriginCSV,
		})
	}
	st.candidates = txs
	st.parsed = len(txs)
	return nil
}

// aiExtractStep sends the extracted text to the model.
type aiExtractStep struct {
	svc *Service
}

func (s *aiExtractStep) execute(ctx context.Context, st *state) error {
	extraction, err := s.svc.ai.Extract(ctx, st.content.Text)
	if err != nil {
		return err
	}
	st.extraction = extraction
	st.truncated = extraction.Truncated
	return nil
}

// storeModelOutputStep preserves the raw model response for audit and
// replay before any normalization touches it.
type storeModelOutputStep struct {
	svc *Service
}

func (s *storeModelOutputStep) execute(ctx context.Context, st *state) error {
	row := &bq.ModelOutputRow{
		OutputID:    uuid.NewString(),
		SessionTag:  st.input.SessionTag,
		StatementID: st.input.StatementID,
		ModelName:   s.svc.model,
		RawText:     st.extraction.Raw,
		CreatedTS:   time.Now().UTC(),
	}
	return s.svc.repo.InsertModelOutput(ctx, row)
}

// normalizeStep coerces the raw model response into validated transactions.
type normalizeStep struct{}

func (s *normalizeStep) execute(ctx context.Context, st *state) error {
	result, err := normalize.Normalize(ctx, st.extraction.Raw)
	if err != nil {
		return err
	}
	st.candidates = result.Transactions
	st.parsed = len(result.Transactions) + result.Dropped
	st.dropped = result.Dropped
	return nil
}

// ensureParsedStep fails the run when the statement yielded nothing at all.
// A batch where every record was dropped still proceeds; its counts tell
// that story.
type ensureParsedStep struct{}

func (s *ensureParsedStep) execute(ctx context.Context, st *state) error {
	if st.parsed == 0 {
		return domain.NewIngestError(
			domain.ErrNoTransactionsFound,
			"no transactions were found in the statement, check that the file contains transaction lines",
			nil,
		)
	}
	return nil
}

// countPriorStep snapshots how many transactions storage held before this
// run's batch lands. The count is reported back to the caller; a failed
// count is logged and reported as zero rather than failing the run.
type countPriorStep struct {
	svc *Service
}

func (s *countPriorStep) execute(ctx context.Context, st *state) error {
	prior, err := s.svc.repo.CountTransactions(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("could not count prior transactions")
		return nil
	}
	st.prior = prior
	return nil
}

// reconcileStep hands the batch to the configured policy.
type reconcileStep struct {
	svc *Service
}

func (s *reconcileStep) execute(ctx context.Context, st *state) error {
	outcome, err := s.svc.policy.Apply(ctx, st.input.StatementID, st.input.SessionTag, st.candidates)
	if err != nil {
		return err
	}
	st.outcome = outcome
	return nil
}

// markSuccessStep closes the run record with the final counts and moves the
// statement to INGESTED. A failed statement status update after a recorded
// success is logged, not returned, so the run's SUCCESS is never clobbered.
type markSuccessStep struct {
	svc *Service
}

func (s *markSuccessStep) execute(ctx context.Context, st *state) error {
	counts := bq.RunCounts{
		TotalParsed:       st.parsed,
		TotalSaved:        len(st.outcome.Saved),
		ErrorCount:        st.dropped + st.outcome.ErrorCount,
		DuplicatesSkipped: st.outcome.DuplicatesSkipped,
		DuplicateWarnings: st.outcome.DuplicateWarnings,
		Truncated:         st.truncated,
	}
	if err := s.svc.repo.MarkIngestionRunSucceeded(ctx, st.input.SessionTag, counts); err != nil {
		return err
	}
	if err := s.svc.repo.UpdateStatementStatus(ctx, st.input.StatementID, bq.StatementStatusIngested); err != nil {
		logger.FromContext(ctx).Error().Err(err).Msg("run succeeded but statement status update failed")
	}
	return nil
}
