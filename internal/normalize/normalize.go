// Package normalize turns raw model output into domain transactions. It
// fails closed: a response without a parsable JSON array fails as a whole,
// while individual malformed elements are dropped and counted, never
// silently lost and never partially kept.
package normalize

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ovoloshko/statement-ingest/internal/domain"
	"github.com/ovoloshko/statement-ingest/internal/logger"
)

// Result is the outcome of normalizing one model response.
type Result struct {
	Transactions []domain.ExtractedTransaction
	Dropped      int // malformed elements removed from the batch
}

// Normalize repairs a raw model response and coerces its elements into
// domain transactions. Whole-batch shape failures (no JSON array anywhere in
// the response) return an unparsable-response error; an empty array is a
// valid result with zero transactions, which the caller maps to its own
// failure class.
func Normalize(ctx context.Context, raw string) (*Result, error) {
	log := logger.FromContext(ctx)

	clean := repairModelJSON(raw)

	var elements []interface{}
	if err := json.Unmarshal([]byte(clean), &elements); err != nil {
		return nil, domain.NewIngestError(domain.ErrUnparsableResponse,
			"the extraction service returned an unexpected response, try the upload again", err)
	}

	result := &Result{Transactions: make([]domain.ExtractedTransaction, 0, len(elements))}
	for i, element := range elements {
		tx, ok := coerceElement(element)
		if !ok {
			result.Dropped++
			log.Debug().Int("element", i).Msg("dropped malformed transaction element")
			continue
		}
		result.Transactions = append(result.Transactions, tx)
	}
	return result, nil
}

// repairModelJSON strips the wrappers models put around JSON despite
// instructions. Markdown fences go first, then everything outside the first
// "[" and the last "]" is discarded.
func repairModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

// coerceElement maps one array element onto a domain transaction. Any
// failure of the required fields rejects the whole element; an unknown
// category is not a failure, it collapses to the fallback and the record
// survives.
func coerceElement(element interface{}) (domain.ExtractedTransaction, bool) {
	obj, ok := element.(map[string]interface{})
	if !ok {
		return domain.ExtractedTransaction{}, false
	}

	dateStr, err := getStringField(obj, "date", true)
	if err != nil {
		return domain.ExtractedTransaction{}, false
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(dateStr))
	if err != nil {
		return domain.ExtractedTransaction{}, false
	}

	amount, err := getFloat64Field(obj, "amount", true)
	if err != nil || amount == 0 {
		return domain.ExtractedTransaction{}, false
	}

	descStr, err := getStringField(obj, "description", true)
	if err != nil {
		return domain.ExtractedTransaction{}, false
	}
	desc := domain.ClampDescription(descStr)
	if desc == "" {
		return domain.ExtractedTransaction{}, false
	}

	rawCategory, _ := getStringField(obj, "category", false)
	category, _ := domain.ParseCategory(rawCategory)

	merchant := optionalString(obj, "merchant")
	if merchant == "" {
		merchant = domain.MerchantFromDescription(desc)
	}

	return domain.ExtractedTransaction{
		Date:        date,
		Description: desc,
		Amount:      amount,
		Category:    category,
		Type:        coerceType(obj, amount),
		Merchant:    merchant,
		Reference:   optionalString(obj, "reference"),
		IsVerified:  false,
		Origin:      domain.OriginAI,
	}, true
}

// coerceType takes the model's transactionType when it agrees with the
// amount sign and repairs it from the sign when it is absent or wrong. The
// sign is the source of truth.
func coerceType(obj map[string]interface{}, amount float64) domain.TransactionType {
	raw := optionalString(obj, "transactionType")
	if raw == "" {
		raw = optionalString(obj, "transaction_type")
	}
	derived := domain.TypeForAmount(amount)
	if t := domain.TransactionType(strings.ToLower(strings.TrimSpace(raw))); t == derived {
		return t
	}
	return derived
}
