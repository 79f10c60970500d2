package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ovoloshko/statement-ingest/internal/bigquery"
	"github.com/ovoloshko/statement-ingest/internal/domain"
	"github.com/ovoloshko/statement-ingest/internal/ingest"
	"github.com/ovoloshko/statement-ingest/internal/jobs"
	"github.com/ovoloshko/statement-ingest/internal/logger"
	"github.com/ovoloshko/statement-ingest/internal/staging"
)

type repoMock struct {
	InsertStatementFunc              func(ctx context.Context, row *bigquery.StatementRow) error
	ListStatementsFunc               func(ctx context.Context) ([]*bigquery.StatementRow, error)
	FindStatementByChecksumFunc      func(ctx context.Context, checksum string) (*bigquery.StatementRow, error)
	UpdateStatementStatusFunc        func(ctx context.Context, statementID, status string) error
	StartIngestionRunFunc            func(ctx context.Context, statementID, sessionTag, provider, model string) error
	MarkIngestionRunSucceededFunc    func(ctx context.Context, sessionTag string, counts bigquery.RunCounts) error
	MarkIngestionRunFailedFunc       func(ctx context.Context, sessionTag string, runErr error)
	ListIngestionRunsFunc            func(ctx context.Context) ([]*bigquery.IngestionRunRow, error)
	LatestSessionTagFunc             func(ctx context.Context) (string, error)
	InsertTransactionsFunc           func(ctx context.Context, rows []*bigquery.TransactionRow) error
	InsertModelOutputFunc            func(ctx context.Context, row *bigquery.ModelOutputRow) error
	QueryTransactionsBySessionFunc   func(ctx context.Context, sessionTag string) ([]*bigquery.TransactionRow, error)
	QueryTransactionsByDateRangeFunc func(ctx context.Context, startDate, endDate time.Time) ([]*bigquery.TransactionRow, error)
	FindMatchingTransactionsFunc     func(ctx context.Context, date time.Time, amount float64, description string) ([]*bigquery.TransactionRow, error)
	CountTransactionsFunc            func(ctx context.Context) (int64, error)
	CategorySummaryFunc              func(ctx context.Context, sessionTag string) ([]*bigquery.CategorySummaryRow, error)
}

var _ bigquery.StatementRepository = (*repoMock)(nil)

func (m *repoMock) InsertStatement(ctx context.Context, row *bigquery.StatementRow) error {
	if m.InsertStatementFunc != nil {
		return m.InsertStatementFunc(ctx, row)
	}
	return nil
}

func (m *repoMock) ListStatements(ctx context.Context) ([]*bigquery.StatementRow, error) {
	if m.ListStatementsFunc != nil {
		return m.ListStatementsFunc(ctx)
	}
	return nil, nil
}

func (m *repoMock) FindStatementByChecksum(ctx context.Context, checksum string) (*bigquery.StatementRow, error) {
	if m.FindStatementByChecksumFunc != nil {
		return m.FindStatementByChecksumFunc(ctx, checksum)
	}
	return nil, nil
}

func (m *repoMock) UpdateStatementStatus(ctx context.Context, statementID, status string) error {
	if m.UpdateStatementStatusFunc != nil {
		return m.UpdateStatementStatusFunc(ctx, statementID, status)
	}
	return nil
}

func (m *repoMock) StartIngestionRun(ctx context.Context, statementID, sessionTag, provider, model string) error {
	if m.StartIngestionRunFunc != nil {
		return m.StartIngestionRunFunc(ctx, statementID, sessionTag, provider, model)
	}
	return nil
}

func (m *repoMock) MarkIngestionRunSucceeded(ctx context.Context, sessionTag string, counts bigquery.RunCounts) error {
	if m.MarkIngestionRunSucceededFunc != nil {
		return m.MarkIngestionRunSucceededFunc(ctx, sessionTag, counts)
	}
	return nil
}

func (m *repoMock) MarkIngestionRunFailed(ctx context.Context, sessionTag string, runErr error) {
	if m.MarkIngestionRunFailedFunc != nil {
		m.MarkIngestionRunFailedFunc(ctx, sessionTag, runErr)
	}
}

func (m *repoMock) ListIngestionRuns(ctx context.Context) ([]*bigquery.IngestionRunRow, error) {
	if m.ListIngestionRunsFunc != nil {
		return m.ListIngestionRunsFunc(ctx)
	}
	return nil, nil
}

func (m *repoMock) LatestSessionTag(ctx context.Context) (string, error) {
	if m.LatestSessionTagFunc != nil {
		return m.LatestSessionTagFunc(ctx)
	}
	return "", nil
}

func (m *repoMock) InsertTransactions(ctx context.Context, rows []*bigquery.TransactionRow) error {
	if m.InsertTransactionsFunc != nil {
		return m.InsertTransactionsFunc(ctx, rows)
	}
	return nil
}

func (m *repoMock) InsertModelOutput(ctx context.Context, row *bigquery.ModelOutputRow) error {
	if m.InsertModelOutputFunc != nil {
		return m.InsertModelOutputFunc(ctx, row)
	}
	return nil
}

func (m *repoMock) QueryTransactionsBySession(ctx context.Context, sessionTag string) ([]*bigquery.TransactionRow, error) {
	if m.QueryTransactionsBySessionFunc != nil {
		return m.QueryTransactionsBySessionFunc(ctx, sessionTag)
	}
	return nil, nil
}

func (m *repoMock) QueryTransactionsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*bigquery.TransactionRow, error) {
	if m.QueryTransactionsByDateRangeFunc != nil {
		return m.QueryTransactionsByDateRangeFunc(ctx, startDate, endDate)
	}
	return nil, nil
}

func (m *repoMock) FindMatchingTransactions(ctx context.Context, date time.Time, amount float64, description string) ([]*bigquery.TransactionRow, error) {
	if m.FindMatchingTransactionsFunc != nil {
		return m.FindMatchingTransactionsFunc(ctx, date, amount, description)
	}
	return nil, nil
}

func (m *repoMock) CountTransactions(ctx context.Context) (int64, error) {
	if m.CountTransactionsFunc != nil {
		return m.CountTransactionsFunc(ctx)
	}
	return 0, nil
}

func (m *repoMock) CategorySummary(ctx context.Context, sessionTag string) ([]*bigquery.CategorySummaryRow, error) {
	if m.CategorySummaryFunc != nil {
		return m.CategorySummaryFunc(ctx, sessionTag)
	}
	return nil, nil
}

type publisherMock struct {
	PublishIngestStatementFunc func(ctx context.Context, job *jobs.IngestStatementJob) error
}

var _ jobs.Publisher = (*publisherMock)(nil)

func (m *publisherMock) PublishIngestStatement(ctx context.Context, job *jobs.IngestStatementJob) error {
	if m.PublishIngestStatementFunc != nil {
		return m.PublishIngestStatementFunc(ctx, job)
	}
	return nil
}

func (m *publisherMock) Close() error { return nil }

type stagingMock struct {
	UploadFunc func(ctx context.Context, objectName string, data []byte) (string, error)
}

var _ staging.Store = (*stagingMock)(nil)

func (m *stagingMock) Upload(ctx context.Context, objectName string, data []byte) (string, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, objectName, data)
	}
	return "gs://test-bucket/" + objectName, nil
}

func (m *stagingMock) Fetch(ctx context.Context, uri string) ([]byte, error) { return nil, nil }

func (m *stagingMock) Delete(ctx context.Context, uri string) error { return nil }

func (m *stagingMock) Purge(ctx context.Context, prefix string, olderThan time.Time) (int, error) {
	return 0, nil
}

type ingestorMock struct {
	IngestFunc func(ctx context.Context, in ingest.Input) (*ingest.Result, error)
}

var _ Ingestor = (*ingestorMock)(nil)

func (m *ingestorMock) Ingest(ctx context.Context, in ingest.Input) (*ingest.Result, error) {
	if m.IngestFunc != nil {
		return m.IngestFunc(ctx, in)
	}
	return &ingest.Result{SessionTag: in.SessionTag}, nil
}

func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("writing part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return body
}

const csvStatement = "Date,Description,Amount\n2024-01-15,STARBUCKS COFFEE,-4.75\n2024-01-16,PAYROLL ACME,2500.00\n"

func TestUploadQueuesStatement(t *testing.T) {
	var insertedRow *bigquery.StatementRow
	var published *jobs.IngestStatementJob

	repo := &repoMock{
		InsertStatementFunc: func(ctx context.Context, row *bigquery.StatementRow) error {
			insertedRow = row
			return nil
		},
	}
	publisher := &publisherMock{
		PublishIngestStatementFunc: func(ctx context.Context, job *jobs.IngestStatementJob) error {
			job.JobID = "job-1"
			job.Status = jobs.JobStatusPending
			published = job
			return nil
		},
	}
	h := NewStatementsHandler(repo, publisher, &stagingMock{}, &ingestorMock{}, logger.Nop())

	body, contentType := multipartBody(t, "statement.csv", []byte(csvStatement))
	req := httptest.NewRequest(http.MethodPost, "/api/statements/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	resp := decodeBody(t, rec)
	if resp["job_id"] != "job-1" {
		t.Errorf("job_id = %v, want job-1", resp["job_id"])
	}
	if resp["session_tag"] == "" || resp["session_tag"] == nil {
		t.Error("response carries no session tag")
	}

	if insertedRow == nil {
		t.Fatal("statement row was not inserted")
	}
	if insertedRow.Status != bigquery.StatementStatusUploaded {
		t.Errorf("statement status = %q, want %q", insertedRow.Status, bigquery.StatementStatusUploaded)
	}
	if insertedRow.Format != "csv" {
		t.Errorf("statement format = %q, want csv", insertedRow.Format)
	}
	if insertedRow.ChecksumSHA256 == "" {
		t.Error("statement row has no checksum")
	}

	if published == nil {
		t.Fatal("no job was published")
	}
	if published.SessionTag != resp["session_tag"] {
		t.Errorf("job session tag %q does not match response %v", published.SessionTag, resp["session_tag"])
	}
	if published.StatementID != insertedRow.StatementID {
		t.Errorf("job statement id %q does not match row %q", published.StatementID, insertedRow.StatementID)
	}
}

func TestUploadSyncModeRunsInline(t *testing.T) {
	var ingested *ingest.Input
	published := false

	ingestor := &ingestorMock{
		IngestFunc: func(ctx context.Context, in ingest.Input) (*ingest.Result, error) {
			ingested = &in
			return &ingest.Result{TotalParsed: 2, TotalSaved: 2, SessionTag: in.SessionTag}, nil
		},
	}
	publisher := &publisherMock{
		PublishIngestStatementFunc: func(ctx context.Context, job *jobs.IngestStatementJob) error {
			published = true
			return nil
		},
	}
	h := NewStatementsHandler(&repoMock{}, publisher, &stagingMock{}, ingestor, logger.Nop())

	body, contentType := multipartBody(t, "statement.csv", []byte(csvStatement))
	req := httptest.NewRequest(http.MethodPost, "/api/statements/upload?mode=sync", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if published {
		t.Error("sync mode must not enqueue a job")
	}
	if ingested == nil {
		t.Fatal("ingestor was not called")
	}
	if string(ingested.Data) != csvStatement {
		t.Error("ingestor did not receive the uploaded bytes")
	}

	resp := decodeBody(t, rec)
	result, ok := resp["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("response carries no result object: %v", resp)
	}
	if result["totalSaved"] != float64(2) {
		t.Errorf("totalSaved = %v, want 2", result["totalSaved"])
	}
}

func TestUploadSyncModeMapsFailureClasses(t *testing.T) {
	ingestor := &ingestorMock{
		IngestFunc: func(ctx context.Context, in ingest.Input) (*ingest.Result, error) {
			return nil, domain.NewIngestError(domain.ErrNoTransactionsFound,
				"no transactions were found in the statement, check that the file contains transaction lines", nil)
		},
	}
	h := NewStatementsHandler(&repoMock{}, &publisherMock{}, &stagingMock{}, ingestor, logger.Nop())

	body, contentType := multipartBody(t, "statement.txt", []byte("no transactions here"))
	req := httptest.NewRequest(http.MethodPost, "/api/statements/upload?mode=sync", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	resp := decodeBody(t, rec)
	if !strings.Contains(resp["error"].(string), "no transactions were found") {
		t.Errorf("error advice missing, got %v", resp["error"])
	}
}

func TestUploadRejectsUnknownExtension(t *testing.T) {
	h := NewStatementsHandler(&repoMock{}, &publisherMock{}, &stagingMock{}, &ingestorMock{}, logger.Nop())

	body, contentType := multipartBody(t, "statement.docx", []byte("whatever"))
	req := httptest.NewRequest(http.MethodPost, "/api/statements/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnsupportedMediaType)
	}
	resp := decodeBody(t, rec)
	if !strings.Contains(resp["error"].(string), "upload a PDF, CSV or plain-text statement") {
		t.Errorf("error advice missing, got %v", resp["error"])
	}
}

func TestUploadRejectsLegacyWorkbook(t *testing.T) {
	h := NewStatementsHandler(&repoMock{}, &publisherMock{}, &stagingMock{}, &ingestorMock{}, logger.Nop())

	body, contentType := multipartBody(t, "statement.xls", []byte("\xd0\xcf\x11\xe0 legacy"))
	req := httptest.NewRequest(http.MethodPost, "/api/statements/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnsupportedMediaType)
	}
	resp := decodeBody(t, rec)
	if !strings.Contains(resp["error"].(string), "re-export the statement as CSV") {
		t.Errorf("error advice missing, got %v", resp["error"])
	}
}

func TestUploadConvertsWorkbookToCSV(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	cells := [][]interface{}{
		{"Date", "Description", "Amount"},
		{"2024-01-15", "STARBUCKS COFFEE", -4.75},
		{"2024-01-16", "PAYROLL ACME", 2500.00},
	}
	for i, row := range cells {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				t.Fatalf("setting cell: %v", err)
			}
		}
	}
	workbook, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("writing workbook: %v", err)
	}

	var staged []byte
	store := &stagingMock{
		UploadFunc: func(ctx context.Context, objectName string, data []byte) (string, error) {
			staged = data
			return "gs://test-bucket/" + objectName, nil
		},
	}
	var published *jobs.IngestStatementJob
	publisher := &publisherMock{
		PublishIngestStatementFunc: func(ctx context.Context, job *jobs.IngestStatementJob) error {
			published = job
			return nil
		},
	}
	h := NewStatementsHandler(&repoMock{}, publisher, store, &ingestorMock{}, logger.Nop())

	body, contentType := multipartBody(t, "statement.xlsx", workbook.Bytes())
	req := httptest.NewRequest(http.MethodPost, "/api/statements/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	if published == nil {
		t.Fatal("no job was published")
	}
	if published.Format != "csv" {
		t.Errorf("job format = %q, want csv after conversion", published.Format)
	}
	text := string(staged)
	if !strings.HasPrefix(text, "Date,Description,Amount\n") {
		t.Errorf("staged bytes are not the converted CSV: %q", text)
	}
	if !strings.Contains(text, "STARBUCKS COFFEE") {
		t.Errorf("converted CSV lost the data rows: %q", text)
	}
}

func TestUploadRejectsOversizeStatement(t *testing.T) {
	h := NewStatementsHandler(&repoMock{}, &publisherMock{}, &stagingMock{}, &ingestorMock{}, logger.Nop())

	big := bytes.Repeat([]byte("x"), 10<<20+1)
	body, contentType := multipartBody(t, "statement.txt", big)
	req := httptest.NewRequest(http.MethodPost, "/api/statements/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestUploadFlagsPreviousUpload(t *testing.T) {
	repo := &repoMock{
		FindStatementByChecksumFunc: func(ctx context.Context, checksum string) (*bigquery.StatementRow, error) {
			return &bigquery.StatementRow{StatementID: "earlier-upload"}, nil
		},
	}
	h := NewStatementsHandler(repo, &publisherMock{}, &stagingMock{}, &ingestorMock{}, logger.Nop())

	body, contentType := multipartBody(t, "statement.csv", []byte(csvStatement))
	req := httptest.NewRequest(http.MethodPost, "/api/statements/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	resp := decodeBody(t, rec)
	if resp["previous_statement_id"] != "earlier-upload" {
		t.Errorf("previous_statement_id = %v, want earlier-upload", resp["previous_statement_id"])
	}
}

func TestListTransactionsDefaultsToLatestSession(t *testing.T) {
	var queriedTag string
	repo := &repoMock{
		LatestSessionTagFunc: func(ctx context.Context) (string, error) {
			return "run-42", nil
		},
		QueryTransactionsBySessionFunc: func(ctx context.Context, sessionTag string) ([]*bigquery.TransactionRow, error) {
			queriedTag = sessionTag
			return []*bigquery.TransactionRow{{TransactionID: "t1", SessionTag: sessionTag}}, nil
		},
	}
	h := NewTransactionsHandler(repo, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	rec := httptest.NewRecorder()

	h.ListTransactions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if queriedTag != "run-42" {
		t.Errorf("queried session = %q, want run-42", queriedTag)
	}
}

func TestListTransactionsEmptyWhenNoRuns(t *testing.T) {
	h := NewTransactionsHandler(&repoMock{}, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	rec := httptest.NewRecorder()

	h.ListTransactions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %q, want empty array", rec.Body.String())
	}
}

func TestListTransactionsRejectsBadDate(t *testing.T) {
	h := NewTransactionsHandler(&repoMock{}, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/transactions?start_date=15-01-2024", nil)
	rec := httptest.NewRecorder()

	h.ListTransactions(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCategorySummaryUsesSessionParam(t *testing.T) {
	var queriedTag string
	repo := &repoMock{
		CategorySummaryFunc: func(ctx context.Context, sessionTag string) ([]*bigquery.CategorySummaryRow, error) {
			queriedTag = sessionTag
			return []*bigquery.CategorySummaryRow{{Category: "Food & Dining", TxCount: 3}}, nil
		},
	}
	h := NewTransactionsHandler(repo, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/transactions/summary?session=run-7", nil)
	rec := httptest.NewRecorder()

	h.CategorySummary(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if queriedTag != "run-7" {
		t.Errorf("queried session = %q, want run-7", queriedTag)
	}
	resp := decodeBody(t, rec)
	if resp["count"] != float64(1) {
		t.Errorf("count = %v, want 1", resp["count"])
	}
}

func TestListCategoriesServesClosedSet(t *testing.T) {
	h := NewCategoriesHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	rec := httptest.NewRecorder()

	h.ListCategories(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeBody(t, rec)
	categories, ok := resp["categories"].([]interface{})
	if !ok {
		t.Fatalf("categories missing from response: %v", resp)
	}
	if len(categories) != len(domain.Categories()) {
		t.Errorf("category count = %d, want %d", len(categories), len(domain.Categories()))
	}
	if categories[0] != "Food & Dining" {
		t.Errorf("first category = %v, want Food & Dining", categories[0])
	}
	if categories[len(categories)-1] != "Other" {
		t.Errorf("last category = %v, want Other", categories[len(categories)-1])
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unsupported format", domain.NewIngestError(domain.ErrUnsupportedFormat, "advice", nil), http.StatusUnsupportedMediaType},
		{"unreadable document", domain.NewIngestError(domain.ErrUnreadableDocument, "advice", nil), http.StatusUnprocessableEntity},
		{"no transactions", domain.NewIngestError(domain.ErrNoTransactionsFound, "advice", nil), http.StatusUnprocessableEntity},
		{"unparsable response", domain.NewIngestError(domain.ErrUnparsableResponse, "advice", nil), http.StatusBadGateway},
		{"provider unavailable", domain.NewIngestError(domain.ErrProviderUnavailable, "advice", nil), http.StatusBadGateway},
		{"unknown", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusForError(tt.err); got != tt.want {
				t.Errorf("statusForError() = %d, want %d", got, tt.want)
			}
		})
	}
}
