package domain

import (
	"fmt"
	"strings"
	"time"
)

// TransactionType is the direction of a transaction. The amount sign is the
// source of truth; a type that disagrees with the sign gets repaired during
// normalization, never rejected.
type TransactionType string

const (
	TypeCredit TransactionType = "credit"
	TypeDebit  TransactionType = "debit"
)

// TypeForAmount derives the direction from the amount sign. Zero amounts are
// dropped during normalization and never reach this point.
func TypeForAmount(amount float64) TransactionType {
	if amount >= 0 {
		return TypeCredit
	}
	return TypeDebit
}

// Origin records which path produced a transaction.
type Origin string

const (
	OriginAI     Origin = "ai"     // model-extracted
	OriginCSV    Origin = "csv"    // mapped directly from CSV columns
	OriginManual Origin = "manual" // entered by hand
)

// ExtractedTransaction is one normalized transaction produced by an ingestion
// run. This is the domain struct, not a storage row; the persistence layer
// maps it into the transactions table schema.
type ExtractedTransaction struct {
	Date        time.Time       // calendar date, no meaningful time component
	Description string          // trimmed, whitespace-collapsed, never empty
	Amount      float64         // signed; credits positive, debits negative, never zero
	Category    Category        // always a member of the closed set
	Type        TransactionType // consistent with the amount sign
	Merchant    string          // optional
	Reference   string          // optional bank reference
	IsVerified  bool            // false until a human confirms the record
	Origin      Origin
	SessionTag  string // tag of the ingestion run that produced the record
}

// ContentKey is the identity used for duplicate detection: calendar date,
// amount to the cent, and the trimmed description.
func (t ExtractedTransaction) ContentKey() string {
	return fmt.Sprintf("%s|%.2f|%s", t.Date.Format("2006-01-02"), t.Amount, strings.TrimSpace(t.Description))
}

// maxMerchantTokens bounds how much of a description is taken as the
// merchant name when the source did not supply one.
const maxMerchantTokens = 4

// MerchantFromDescription derives a best-effort merchant name from the
// leading tokens of a description. Tokens that look like store numbers or
// references ("#123", long digit runs) end the name. Returns "" when the
// description yields nothing usable.
func MerchantFromDescription(desc string) string {
	fields := strings.Fields(desc)
	var kept []string
	for _, f := range fields {
		if len(kept) == maxMerchantTokens {
			break
		}
		if strings.HasPrefix(f, "#") || digitCount(f) >= 3 {
			break
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// CollapseWhitespace trims a description and folds internal whitespace runs
// into single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// MaxDescriptionChars bounds stored description length. Statement lines are
// short; anything longer is prose that leaked in from the source document.
const MaxDescriptionChars = 500

// ClampDescription collapses whitespace and truncates to MaxDescriptionChars.
func ClampDescription(s string) string {
	s = CollapseWhitespace(s)
	if len(s) > MaxDescriptionChars {
		return s[:MaxDescriptionChars]
	}
	return s
}
