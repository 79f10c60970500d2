package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/ovoloshko/statement-ingest/internal/domain"
)

// Ingestion run statuses.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

// Statement statuses.
const (
	StatementStatusUploaded  = "UPLOADED"
	StatementStatusIngesting = "INGESTING"
	StatementStatusIngested  = "INGESTED"
	StatementStatusFailed    = "FAILED"
)

// StatementRepository is the persistence gateway for ingestion: uploaded
// statements, ingestion runs, raw model outputs and the transactions they
// produce.
type StatementRepository interface {
	// InsertStatement inserts a single StatementRow into the database.
	InsertStatement(ctx context.Context, row *StatementRow) error

	// ListStatements retrieves all uploaded statements, newest first.
	ListStatements(ctx context.Context) ([]*StatementRow, error)

	// FindStatementByChecksum retrieves a statement by its SHA-256 checksum,
	// or nil when none matches.
	FindStatementByChecksum(ctx context.Context, checksum string) (*StatementRow, error)

	// UpdateStatementStatus sets the statement status and stamps processed_ts
	// for terminal states.
	UpdateStatementStatus(ctx context.Context, statementID, status string) error

	// StartIngestionRun inserts a run with status=RUNNING. The session tag is
	// the run's identifier and is generated by the caller at upload time,
	// never inside the write path.
	StartIngestionRun(ctx context.Context, statementID, sessionTag, provider, model string) error

	// MarkIngestionRunSucceeded sets status=SUCCESS, finished_ts and the
	// final counts for a run.
	MarkIngestionRunSucceeded(ctx context.Context, sessionTag string, counts RunCounts) error

	// MarkIngestionRunFailed sets status=FAILED, finished_ts and
	// error_message for a run.
	MarkIngestionRunFailed(ctx context.Context, sessionTag string, runErr error)

	// ListIngestionRuns retrieves all ingestion runs, newest first.
	ListIngestionRuns(ctx context.Context) ([]*IngestionRunRow, error)

	// LatestSessionTag returns the session tag of the most recent successful
	// run. Read-side default only; the write path never calls it.
	LatestSessionTag(ctx context.Context) (string, error)

	// InsertTransactions inserts a batch of TransactionRow into the database.
	InsertTransactions(ctx context.Context, rows []*TransactionRow) error

	// InsertModelOutput inserts a single ModelOutputRow into the database.
	InsertModelOutput(ctx context.Context, row *ModelOutputRow) error

	// QueryTransactionsBySession retrieves the transactions of one ingestion
	// run in date order.
	QueryTransactionsBySession(ctx context.Context, sessionTag string) ([]*TransactionRow, error)

	// QueryTransactionsByDateRange retrieves transactions of successful runs
	// within the date range.
	QueryTransactionsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*TransactionRow, error)

	// FindMatchingTransactions retrieves stored transactions content-equal to
	// the given date, amount and description.
	FindMatchingTransactions(ctx context.Context, date time.Time, amount float64, description string) ([]*TransactionRow, error)

	// CountTransactions returns the total number of stored transactions.
	CountTransactions(ctx context.Context) (int64, error)

	// CategorySummary aggregates a session's transactions per category.
	CategorySummary(ctx context.Context, sessionTag string) ([]*CategorySummaryRow, error)
}

// RunCounts is the final tally of one ingestion run. Which duplicate field
// is meaningful depends on the reconciliation policy; the other stays zero.
type RunCounts struct {
	TotalParsed       int
	TotalSaved        int
	ErrorCount        int
	DuplicatesSkipped int
	DuplicateWarnings int
	Truncated         bool
}

// StatementRow represents an uploaded statement in BigQuery.
type StatementRow struct {
	StatementID      string `bigquery:"statement_id" json:"statement_id"`
	GCSURI           string `bigquery:"gcs_uri" json:"gcs_uri"`
	OriginalFilename string `bigquery:"original_filename" json:"original_filename"`
	Format           string `bigquery:"format" json:"format"`
	SizeBytes        int64  `bigquery:"size_bytes" json:"size_bytes"`
	ChecksumSHA256   string `bigquery:"checksum_sha256" json:"checksum_sha256"`

	Status      string                 `bigquery:"status" json:"status"`
	UploadTS    time.Time              `bigquery:"upload_ts" json:"upload_ts"`
	ProcessedTS bigquery.NullTimestamp `bigquery:"processed_ts" json:"processed_ts,omitempty"`
}

// TransactionRow represents a transaction record in BigQuery.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id" json:"transaction_id"`
	SessionTag    string `bigquery:"session_tag" json:"session_tag"`
	StatementID   string `bigquery:"statement_id" json:"statement_id"`

	TransactionDate civil.Date `bigquery:"transaction_date" json:"transaction_date"`
	Amount          *big.Rat   `bigquery:"amount" json:"amount"` // NUMERIC
	Description     string     `bigquery:"description" json:"description"`
	Category        string     `bigquery:"category" json:"category"`
	TransactionType string     `bigquery:"transaction_type" json:"transaction_type"`

	Merchant  bigquery.NullString `bigquery:"merchant" json:"merchant,omitempty"`
	Reference bigquery.NullString `bigquery:"reference" json:"reference,omitempty"`

	Origin     string `bigquery:"origin" json:"origin"`
	IsVerified bool   `bigquery:"is_verified" json:"is_verified"`

	CreatedTS time.Time `bigquery:"created_ts" json:"created_ts"`
}

// MarshalJSON customizes JSON serialization for TransactionRow, rendering
// the NUMERIC amount with two decimals.
func (t TransactionRow) MarshalJSON() ([]byte, error) {
	type Alias TransactionRow
	return json.Marshal(&struct {
		Amount string `json:"amount"`
		*Alias
	}{
		Amount: ratString(t.Amount),
		Alias:  (*Alias)(&t),
	})
}

// NewTransactionRow maps a domain transaction onto the storage schema. The
// row gets a fresh transaction_id; the session tag travels with the domain
// record.
func NewTransactionRow(tx domain.ExtractedTransaction, statementID string) *TransactionRow {
	return &TransactionRow{
		TransactionID:   uuid.NewString(),
		SessionTag:      tx.SessionTag,
		StatementID:     statementID,
		TransactionDate: civil.DateOf(tx.Date),
		Amount:          ratFromAmount(tx.Amount),
		Description:     tx.Description,
		Category:        string(tx.Category),
		TransactionType: string(tx.Type),
		Merchant:        bigquery.NullString{StringVal: tx.Merchant, Valid: tx.Merchant != ""},
		Reference:       bigquery.NullString{StringVal: tx.Reference, Valid: tx.Reference != ""},
		Origin:          string(tx.Origin),
		IsVerified:      tx.IsVerified,
		CreatedTS:       time.Now().UTC(),
	}
}

// Domain maps a row back onto the domain struct.
func (t *TransactionRow) Domain() domain.ExtractedTransaction {
	amount := 0.0
	if t.Amount != nil {
		amount, _ = t.Amount.Float64()
	}
	category, _ := domain.ParseCategory(t.Category)
	return domain.ExtractedTransaction{
		Date:        t.TransactionDate.In(time.UTC),
		Description: t.Description,
		Amount:      amount,
		Category:    category,
		Type:        domain.TransactionType(t.TransactionType),
		Merchant:    t.Merchant.StringVal,
		Reference:   t.Reference.StringVal,
		IsVerified:  t.IsVerified,
		Origin:      domain.Origin(t.Origin),
		SessionTag:  t.SessionTag,
	}
}

// IngestionRunRow represents an ingestion run record in BigQuery. The
// session tag doubles as the run identifier.
type IngestionRunRow struct {
	SessionTag  string `bigquery:"session_tag" json:"session_tag"`
	StatementID string `bigquery:"statement_id" json:"statement_id"`

	Provider string `bigquery:"provider" json:"provider"`
	Model    string `bigquery:"model" json:"model"`

	Status       string `bigquery:"status" json:"status"`
	ErrorMessage string `bigquery:"error_message" json:"error_message,omitempty"`

	TotalParsed       int64 `bigquery:"total_parsed" json:"total_parsed"`
	TotalSaved        int64 `bigquery:"total_saved" json:"total_saved"`
	ErrorCount        int64 `bigquery:"error_count" json:"error_count"`
	DuplicatesSkipped int64 `bigquery:"duplicates_skipped" json:"duplicates_skipped"`
	DuplicateWarnings int64 `bigquery:"duplicate_warnings" json:"duplicate_warnings"`
	Truncated         bool  `bigquery:"truncated" json:"truncated"`

	StartedTS  time.Time              `bigquery:"started_ts" json:"started_ts"`
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts" json:"finished_ts,omitempty"`
}

// ModelOutputRow preserves the raw model response of a run for audit and
// replay.
type ModelOutputRow struct {
	OutputID    string `bigquery:"output_id" json:"output_id"`
	SessionTag  string `bigquery:"session_tag" json:"session_tag"`
	StatementID string `bigquery:"statement_id" json:"statement_id"`

	ModelName string `bigquery:"model_name" json:"model_name"`
	RawText   string `bigquery:"raw_text" json:"raw_text"`

	CreatedTS time.Time `bigquery:"created_ts" json:"created_ts"`
}

// CategorySummaryRow is one bucket of the per-category aggregate view.
type CategorySummaryRow struct {
	Category string   `bigquery:"category" json:"category"`
	TxCount  int64    `bigquery:"tx_count" json:"tx_count"`
	Total    *big.Rat `bigquery:"total" json:"total"`
}

// MarshalJSON renders the NUMERIC total with two decimals.
func (c CategorySummaryRow) MarshalJSON() ([]byte, error) {
	type Alias CategorySummaryRow
	return json.Marshal(&struct {
		Total string `json:"total"`
		*Alias
	}{
		Total: ratString(c.Total),
		Alias: (*Alias)(&c),
	})
}

// ratFromAmount converts a float amount to NUMERIC at cent precision.
func ratFromAmount(amount float64) *big.Rat {
	r, ok := new(big.Rat).SetString(fmt.Sprintf("%.2f", amount))
	if !ok {
		return new(big.Rat)
	}
	return r
}

func ratString(r *big.Rat) string {
	if r == nil {
		return "0.00"
	}
	f, _ := r.Float64()
	return fmt.Sprintf("%.2f", f)
}
