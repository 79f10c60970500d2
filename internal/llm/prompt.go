package llm

import (
	"strings"

	"github.com/ovoloshko/statement-ingest/internal/domain"
)

// DefaultTruncateChars is how much statement text goes into the prompt.
// Longer statements lose their tail; the run record carries a truncated flag
// so operators can see when that happened.
const DefaultTruncateChars = 3000

// BuildPrompt assembles the fixed extraction prompt around the statement
// text, truncating the text to limit characters first. The second return
// reports whether truncation happened.
func BuildPrompt(textBlob string, limit int) (string, bool) {
	truncated := false
	if limit > 0 && len(textBlob) > limit {
		textBlob = textBlob[:limit]
		truncated = true
	}

	categoryList := make([]string, 0, len(domain.Categories()))
	for _, c := range domain.Categories() {
		categoryList = append(categoryList, string(c))
	}

	prompt := "You are a bank statement analyzer. Extract the financial transactions from the statement text below.\n\n" +
		"Each transaction object must have these fields:\n" +
		"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
		"- \"amount\": number (positive for money in, negative for money out)\n" +
		"- \"description\": string, the transaction line as printed\n" +
		"- \"category\": string, one of: " + strings.Join(categoryList, ", ") + "\n" +
		"- \"transactionType\": string, \"credit\" or \"debit\"\n\n" +
		"Optional fields when the statement shows them:\n" +
		"- \"merchant\": string\n" +
		"- \"reference\": string\n\n" +
		"Statement text:\n" +
		textBlob + "\n\n" +
		"Example output:\n" +
		`[{"date": "2024-03-15", "amount": -4.75, "description": "STARBUCKS COFFEE #123", "category": "Food & Dining", "transactionType": "debit", "merchant": "STARBUCKS"}]` + "\n\n" +
		"Return ONLY a JSON array of transaction objects. Return an empty array [] if no transactions are found. " +
		"Exclude account headers, running balances and summary lines."

	return prompt, truncated
}
