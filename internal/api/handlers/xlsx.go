package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ovoloshko/statement-ingest/internal/domain"
)

// workbookToCSV flattens the first sheet of an .xlsx workbook into CSV rows.
// Only the first sheet is read; bank exports put the transaction table there.
func workbookToCSV(data []byte) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewIngestError(domain.ErrUnreadableDocument,
			"the workbook could not be opened, re-export the statement as CSV", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.NewIngestError(domain.ErrUnreadableDocument,
			"the workbook has no sheets, re-export the statement as CSV", nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, domain.NewIngestError(domain.ErrUnreadableDocument,
			"the workbook rows could not be read, re-export the statement as CSV", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("workbookToCSV: writing row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("workbookToCSV: flushing rows: %w", err)
	}
	return buf.Bytes(), nil
}
