package domain

import (
	"errors"
	"fmt"
)

// Failure classes for an ingestion run. Callers match these with errors.Is;
// the concrete error wrapping them carries user-facing advice and the
// underlying cause.
var (
	ErrUnreadableDocument  = errors.New("unreadable document")
	ErrUnsupportedFormat   = errors.New("unsupported format")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrUnparsableResponse  = errors.New("unparsable response")
	ErrNoTransactionsFound = errors.New("no transactions found")
)

// IngestError attaches actionable advice to one of the failure classes above.
// Advice is what the user sees; Err is the internal cause and stays out of
// user-facing output.
type IngestError struct {
	Kind   error  // one of the Err* sentinels in this package
	Advice string // user-facing guidance, e.g. "re-export the statement as CSV"
	Err    error  // underlying cause, may be nil
}

// NewIngestError builds an IngestError. cause may be nil.
func NewIngestError(kind error, advice string, cause error) *IngestError {
	return &IngestError{Kind: kind, Advice: advice, Err: cause}
}

func (e *IngestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Advice, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Advice)
}

func (e *IngestError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, domain.ErrUnsupportedFormat) match without callers
// unwrapping manually.
func (e *IngestError) Is(target error) bool { return errors.Is(e.Kind, target) }

// AdviceFor extracts the user-facing advice from an error chain. Errors that
// did not come through an IngestError get a generic message so internals are
// never shown to users.
func AdviceFor(err error) string {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Advice
	}
	return "something went wrong while processing the statement, try again later"
}
