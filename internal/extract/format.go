package extract

import (
	"path/filepath"
	"strings"

	"github.com/ovoloshko/statement-ingest/internal/domain"
)

// Format is the declared statement format tag. The tag comes from the upload
// boundary (file extension or MIME type), not from content sniffing.
type Format string

const (
	FormatPDF Format = "pdf"
	FormatCSV Format = "csv"
	FormatTXT Format = "txt"
)

// MaxStatementBytes is the hard cap on statement size, enforced before any
// extraction work starts. The upload boundary enforces it as well.
const MaxStatementBytes = 10 << 20

// FormatFromFilename derives the format tag from a file name. Spreadsheet
// formats are not accepted here: the HTTP boundary converts workbooks to rows
// before the core sees them, and anything else gets advice to re-export.
func FormatFromFilename(name string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch ext {
	case "pdf":
		return FormatPDF, nil
	case "csv":
		return FormatCSV, nil
	case "txt", "text":
		return FormatTXT, nil
	case "xls", "xlsx":
		return "", domain.NewIngestError(domain.ErrUnsupportedFormat,
			"spreadsheet uploads are not supported here, re-export the statement as CSV", nil)
	default:
		return "", domain.NewIngestError(domain.ErrUnsupportedFormat,
			"unrecognized file type \""+ext+"\", upload a PDF, CSV or plain-text statement", nil)
	}
}
