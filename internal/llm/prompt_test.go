package llm

import (
	"strings"
	"testing"
)

func TestBuildPromptTruncatesAtLimit(t *testing.T) {
	blob := strings.Repeat("x", 3001)
	prompt, truncated := BuildPrompt(blob, 3000)
	if !truncated {
		t.Error("truncated = false for a blob one past the limit")
	}
	if strings.Contains(prompt, strings.Repeat("x", 3001)) {
		t.Error("prompt contains the full blob")
	}
	if !strings.Contains(prompt, strings.Repeat("x", 3000)) {
		t.Error("prompt lost the first 3000 characters")
	}

	if _, truncated := BuildPrompt(strings.Repeat("x", 3000), 3000); truncated {
		t.Error("truncated = true for a blob exactly at the limit")
	}
}

func TestBuildPromptCarriesSchemaAndInstructions(t *testing.T) {
	prompt, _ := BuildPrompt("01 Mar STARBUCKS 4.75", DefaultTruncateChars)

	for _, want := range []string{
		"YYYY-MM-DD",
		"Food & Dining",
		"ATM & Cash",
		"transactionType",
		"01 Mar STARBUCKS 4.75",
		"Example output:",
		"empty array [] if no transactions",
		"Exclude account headers, running balances and summary lines",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt is missing %q", want)
		}
	}
}
