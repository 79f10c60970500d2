// Command parse-statement runs the extraction pipeline against a local file
// and prints what would be saved, without touching BigQuery. Useful when
// tuning the prompt or checking how a new bank's statement comes through.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ovoloshko/statement-ingest/internal/categorize"
	"github.com/ovoloshko/statement-ingest/internal/config"
	"github.com/ovoloshko/statement-ingest/internal/domain"
	"github.com/ovoloshko/statement-ingest/internal/extract"
	"github.com/ovoloshko/statement-ingest/internal/llm"
	"github.com/ovoloshko/statement-ingest/internal/logger"
	"github.com/ovoloshko/statement-ingest/internal/normalize"
)

var (
	filePath = flag.String("file", "", "Path to a local statement file (required)")
	showRaw  = flag.Bool("raw", false, "Print the raw model response before the parsed records")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatalf("error: %v", err)
	}
}

func run() error {
	if *filePath == "" {
		return fmt.Errorf("--file is required")
	}

	cfg := config.Load()
	if err := cfg.RequireProvider(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, logger.New())

	filename := filepath.Base(*filePath)
	format, err := extract.FormatFromFilename(filename)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		return fmt.Errorf("reading %q: %w", *filePath, err)
	}

	content, err := extract.Extract(data, format)
	if err != nil {
		return err
	}

	// CSV statements with a recognizable header never reach the model.
	if format == extract.FormatCSV {
		txs, err := mapRecords(cfg, content.Records)
		if err != nil {
			return err
		}
		fmt.Printf("Parsed %d transactions from CSV columns (no model call).\n", len(txs))
		printTransactions(txs)
		return nil
	}

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return err
	}

	client := llm.NewClient(provider, llm.RetryPolicy{}, cfg.TruncateChars)
	extraction, err := client.Extract(ctx, content.Text)
	if err != nil {
		return err
	}

	if *showRaw {
		fmt.Println("=== Raw model response ===")
		fmt.Println(extraction.Raw)
		fmt.Println()
	}

	normalized, err := normalize.Normalize(ctx, extraction.Raw)
	if err != nil {
		return err
	}

	fmt.Printf("Provider: %s (attempts: %d, truncated: %v)\n",
		extraction.Provider, extraction.Attempts, extraction.Truncated)
	fmt.Printf("Parsed %d transactions, dropped %d malformed elements.\n",
		len(normalized.Transactions), normalized.Dropped)
	printTransactions(normalized.Transactions)
	return nil
}

func buildProvider(ctx context.Context, cfg config.Config) (llm.Provider, error) {
	if cfg.Provider == "anthropic" {
		return llm.NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	}
	return llm.NewGeminiProvider(ctx, cfg.GeminiModel)
}

// mapRecords mirrors what the ingestion pipeline does with mapped CSV rows:
// the keyword table picks the category and the amount sign picks the type.
func mapRecords(cfg config.Config, records []extract.Record) ([]domain.ExtractedTransaction, error) {
	categorizer := categorize.New()
	if cfg.RulesFile != "" {
		var err error
		categorizer, err = categorize.NewFromFile(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
	}

	txs := make([]domain.ExtractedTransaction, 0, len(records))
	for _, r := range records {
		txs = append(txs, domain.ExtractedTransaction{
			Date:        r.Date,
			Description: r.Description,
			Amount:      r.Amount,
			Category:    categorizer.Categorize(r.Description),
			Type:        domain.TypeForAmount(r.Amount),
			Merchant:    domain.MerchantFromDescription(r.Description),
			Reference:   r.Reference,
			Origin:      domain.OriginCSV,
		})
	}
	return txs, nil
}

func printTransactions(txs []domain.ExtractedTransaction) {
	for i, tx := range txs {
		fmt.Printf("\n%d. %s\n", i+1, tx.Description)
		fmt.Printf("   Date:     %s\n", tx.Date.Format("2006-01-02"))
		fmt.Printf("   Amount:   %.2f (%s)\n", tx.Amount, tx.Type)
		fmt.Printf("   Category: %s\n", tx.Category)
		if tx.Merchant != "" {
			fmt.Printf("   Merchant: %s\n", tx.Merchant)
		}
		if tx.Reference != "" {
			fmt.Printf("   Ref:      %s\n", tx.Reference)
		}
	}
	fmt.Println()
}
