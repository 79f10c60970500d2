// Package extract turns an uploaded statement into material the rest of the
// pipeline can work with: a flat text blob for PDF and plain-text statements
// (which feed the model), or mapped records for CSV statements (which bypass
// the model entirely).
package extract

import (
	"bytes"
	"fmt"
	"time"

	"github.com/dslipak/pdf"

	"github.com/ovoloshko/statement-ingest/internal/domain"
)

// Record is one row mapped out of a delimited statement. Categorization and
// session stamping happen later; extraction only establishes the
// date/amount/description triple plus an optional bank reference.
type Record struct {
	Date        time.Time
	Description string
	Amount      float64
	Reference   string
}

// Content is the product of extraction. Exactly one side is populated:
// Text for the model path, Records for the CSV path.
type Content struct {
	Text    string
	Records []Record
}

// Extract converts statement bytes into Content according to the declared
// format. It is a pure transform: the caller owns the file lifecycle and has
// already staged or buffered the bytes.
func Extract(data []byte, format Format) (*Content, error) {
	if len(data) > MaxStatementBytes {
		return nil, domain.NewIngestError(domain.ErrUnreadableDocument,
			fmt.Sprintf("the statement is larger than the %d MiB limit, export a smaller date range", MaxStatementBytes>>20), nil)
	}

	switch format {
	case FormatPDF:
		text, err := pdfToText(data)
		if err != nil {
			return nil, err
		}
		return &Content{Text: text}, nil
	case FormatTXT:
		return &Content{Text: string(data)}, nil
	case FormatCSV:
		records, err := mapCSV(data)
		if err != nil {
			return nil, err
		}
		return &Content{Records: records}, nil
	default:
		return nil, domain.NewIngestError(domain.ErrUnsupportedFormat,
			fmt.Sprintf("unknown statement format %q", format), nil)
	}
}

// pdfToText extracts the text layer of a PDF. The pdf library panics on some
// malformed inputs, so the decode runs behind a recover that folds panics
// into the same unreadable-document failure as ordinary decode errors.
func pdfToText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewIngestError(domain.ErrUnreadableDocument,
				"the PDF could not be decoded, the file may be corrupted", fmt.Errorf("pdf decode panic: %v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.NewIngestError(domain.ErrUnreadableDocument,
			"the PDF could not be opened, the file may be corrupted or password protected", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", domain.NewIngestError(domain.ErrUnreadableDocument,
			"no text could be read from the PDF, the file may be corrupted", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", domain.NewIngestError(domain.ErrUnreadableDocument,
			"no text could be read from the PDF, the file may be corrupted", err)
	}

	if buf.Len() == 0 {
		return "", domain.NewIngestError(domain.ErrUnreadableDocument,
			"the PDF has no text layer (it may be a scan), export the statement as CSV or text instead", nil)
	}
	return buf.String(), nil
}
