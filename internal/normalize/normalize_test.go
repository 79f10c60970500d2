package normalize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ovoloshko/statement-ingest/internal/domain"
)

func TestNormalizeWellFormedArray(t *testing.T) {
	raw := `[
		{"date": "2024-03-15", "description": "STARBUCKS COFFEE #123", "amount": -4.75, "category": "Food & Dining", "transactionType": "debit"},
		{"date": "2024-03-16", "description": "ACME LTD PAYROLL", "amount": 2500.00, "category": "Income", "transactionType": "credit"},
		{"date": "2024-03-17", "description": "TRANSFER TO SAVINGS", "amount": -300.00, "category": "Transfer", "transactionType": "debit"}
	]`

	result, err := Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(result.Transactions) != 3 {
		t.Fatalf("got %d transactions, want 3", len(result.Transactions))
	}
	if result.Dropped != 0 {
		t.Errorf("dropped = %d, want 0", result.Dropped)
	}

	first := result.Transactions[0]
	if want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC); !first.Date.Equal(want) {
		t.Errorf("date = %v, want %v", first.Date, want)
	}
	if first.Category != domain.CategoryFoodDining {
		t.Errorf("category = %q, want %q", first.Category, domain.CategoryFoodDining)
	}
	if first.Type != domain.TypeDebit {
		t.Errorf("type = %q, want debit", first.Type)
	}
	if first.Origin != domain.OriginAI {
		t.Errorf("origin = %q, want %q", first.Origin, domain.OriginAI)
	}
	if first.IsVerified {
		t.Error("AI-derived record marked verified")
	}
	if first.Merchant != "STARBUCKS COFFEE" {
		t.Errorf("merchant = %q, want derived STARBUCKS COFFEE", first.Merchant)
	}
}

func TestNormalizeDropsMalformedElements(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantKept    int
		wantDropped int
	}{
		{
			name: "zero amount",
			raw: `[
				{"date": "2024-03-15", "description": "OK", "amount": -4.75},
				{"date": "2024-03-16", "description": "ZERO", "amount": 0}
			]`,
			wantKept:    1,
			wantDropped: 1,
		},
		{
			name: "malformed date",
			raw: `[
				{"date": "15 March 2024", "description": "BAD DATE", "amount": -4.75},
				{"date": "2024-03-16", "description": "OK", "amount": 10}
			]`,
			wantKept:    1,
			wantDropped: 1,
		},
		{
			name: "empty description",
			raw: `[
				{"date": "2024-03-15", "description": "   ", "amount": -4.75}
			]`,
			wantKept:    0,
			wantDropped: 1,
		},
		{
			name: "non numeric amount",
			raw: `[
				{"date": "2024-03-15", "description": "WORDS", "amount": "four pounds"}
			]`,
			wantKept:    0,
			wantDropped: 1,
		},
		{
			name:        "non object element",
			raw:         `[42, {"date": "2024-03-15", "description": "OK", "amount": 5}]`,
			wantKept:    1,
			wantDropped: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Normalize(context.Background(), tt.raw)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if len(result.Transactions) != tt.wantKept {
				t.Errorf("kept %d, want %d", len(result.Transactions), tt.wantKept)
			}
			if result.Dropped != tt.wantDropped {
				t.Errorf("dropped %d, want %d", result.Dropped, tt.wantDropped)
			}
		})
	}
}

func TestNormalizeCoercesUnknownCategory(t *testing.T) {
	raw := `[{"date": "2024-03-15", "description": "MYSTERY SHOP", "amount": -9.99, "category": "Groceries"}]`

	result, err := Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(result.Transactions) != 1 {
		t.Fatalf("record with unknown category was dropped, want kept")
	}
	if got := result.Transactions[0].Category; got != domain.CategoryOther {
		t.Errorf("category = %q, want %q", got, domain.CategoryOther)
	}
	if result.Dropped != 0 {
		t.Errorf("dropped = %d, want 0", result.Dropped)
	}
}

func TestNormalizeRepairsProseWrappedArray(t *testing.T) {
	raw := "Sure! Here are the transactions I found in the statement:\n\n" +
		`[{"date": "2024-03-15", "description": "ACME SUPPLIES INV 99", "amount": -45.67, "category": "Shopping", "transactionType": "debit"}]` +
		"\n\nLet me know if you need anything else."

	result, err := Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(result.Transactions) != 1 {
		t.Fatalf("got %d transactions, want exactly 1", len(result.Transactions))
	}
	if got := result.Transactions[0].Amount; got != -45.67 {
		t.Errorf("amount = %v, want -45.67", got)
	}
}

func TestNormalizeStripsMarkdownFences(t *testing.T) {
	raw := "```json\n" +
		`[{"date": "2024-03-15", "description": "CAFE NERO", "amount": -3.20}]` +
		"\n```"

	result, err := Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(result.Transactions) != 1 {
		t.Fatalf("got %d transactions, want 1", len(result.Transactions))
	}
}

func TestNormalizeEmptyArrayIsValid(t *testing.T) {
	result, err := Normalize(context.Background(), "[]")
	if err != nil {
		t.Fatalf("Normalize() error = %v, empty array is a valid response", err)
	}
	if len(result.Transactions) != 0 || result.Dropped != 0 {
		t.Errorf("got %d transactions and %d dropped, want 0 and 0", len(result.Transactions), result.Dropped)
	}
}

func TestNormalizeFailsWithoutArray(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "plain prose", raw: "I could not find any transactions in this document."},
		{name: "object instead of array", raw: `{"transactions": 3}`},
		{name: "empty response", raw: ""},
		{name: "unbalanced bracket", raw: `[{"date": "2024-03-15"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(context.Background(), tt.raw)
			if !errors.Is(err, domain.ErrUnparsableResponse) {
				t.Errorf("Normalize() error = %v, want unparsable-response class", err)
			}
		})
	}
}

func TestNormalizeRepairsTypeFromAmountSign(t *testing.T) {
	raw := `[
		{"date": "2024-03-15", "description": "MISLABELED DEBIT", "amount": -20.00, "transactionType": "credit"},
		{"date": "2024-03-16", "description": "NO TYPE AT ALL", "amount": 15.00}
	]`

	result, err := Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got := result.Transactions[0].Type; got != domain.TypeDebit {
		t.Errorf("mislabeled record type = %q, want repaired debit", got)
	}
	if got := result.Transactions[1].Type; got != domain.TypeCredit {
		t.Errorf("typeless record type = %q, want derived credit", got)
	}
}

func TestNormalizeAcceptsQuotedAmounts(t *testing.T) {
	raw := `[{"date": "2024-03-15", "description": "QUOTED", "amount": "-45.67"}]`

	result, err := Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(result.Transactions) != 1 || result.Transactions[0].Amount != -45.67 {
		t.Fatalf("quoted amount not accepted: %+v", result)
	}
}
