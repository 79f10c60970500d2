package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	bq "github.com/ovoloshko/statement-ingest/internal/bigquery"
	"github.com/ovoloshko/statement-ingest/internal/config"
	"github.com/ovoloshko/statement-ingest/internal/domain"
	"github.com/ovoloshko/statement-ingest/internal/extract"
	infraBQ "github.com/ovoloshko/statement-ingest/internal/infra/bigquery"
	"github.com/ovoloshko/statement-ingest/internal/ingest"
	"github.com/ovoloshko/statement-ingest/internal/logger"
	"github.com/ovoloshko/statement-ingest/internal/staging"
)

var (
	okc   = color.New(color.FgGreen).PrintfFunc()
	warnc = color.New(color.FgYellow).PrintfFunc()
	errc  = color.New(color.BgRed, color.FgWhite).PrintfFunc()
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ingest":
		runIngest(log)
	case "upload":
		runUpload(log)
	case "transactions":
		runTransactions(log)
	case "summary":
		runSummary(log)
	case "runs":
		runRuns(log)
	case "statements":
		runStatements(log)
	case "categories":
		runCategories()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Statement Ingest CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ingest        Parse and ingest a local bank statement")
	fmt.Println("  upload        Stage a statement file in GCS without ingesting it")
	fmt.Println("  transactions  List the transactions of an ingestion session")
	fmt.Println("  summary       Show per-category totals for a session")
	fmt.Println("  runs          List ingestion runs")
	fmt.Println("  statements    List uploaded statements")
	fmt.Println("  categories    Print the category set")
	fmt.Println("  help          Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// openRepo validates the BigQuery settings and connects. Callers own Close.
func openRepo(ctx context.Context, log zerolog.Logger, cfg config.Config) *infraBQ.BigQueryStatementRepository {
	if err := cfg.RequireBigQuery(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	repo, err := infraBQ.NewBigQueryStatementRepository(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create statement repository")
	}
	return repo
}

// resolveSession turns an empty session flag into the latest successful run.
func resolveSession(ctx context.Context, log zerolog.Logger, repo *infraBQ.BigQueryStatementRepository, session string) string {
	if session != "" {
		return session
	}
	tag, err := repo.LatestSessionTag(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to look up the latest session")
	}
	if tag == "" {
		warnc("No successful ingestion runs yet.")
		fmt.Println()
		os.Exit(0)
	}
	return tag
}

func runIngest(log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to a local statement file")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	cfg := config.Load()
	for _, err := range []error{cfg.RequireBigQuery(), cfg.RequireStaging(), cfg.RequireProvider()} {
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid configuration")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo := openRepo(ctx, log, cfg)
	defer repo.Close()

	store, err := staging.NewGCSStore(ctx, cfg.StagingBucket)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create staging store")
	}
	defer store.Close()

	svc, err := ingest.FromConfig(ctx, cfg, repo)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build ingestion service")
	}

	filename := filepath.Base(*filePath)
	format, err := extract.FormatFromFilename(filename)
	if err != nil {
		log.Fatal().Err(err).Str("filename", filename).Msg("Unsupported statement format")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read statement file")
	}

	sessionTag := uuid.NewString()
	statementID := uuid.NewString()

	uri, err := store.Upload(ctx, fmt.Sprintf("statements/%s/%s", sessionTag, filename), data)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to stage statement")
	}

	row := &bq.StatementRow{
		StatementID:      statementID,
		GCSURI:           uri,
		OriginalFilename: filename,
		Format:           string(format),
		SizeBytes:        int64(len(data)),
		ChecksumSHA256:   fmt.Sprintf("%x", sha256.Sum256(data)),
		Status:           bq.StatementStatusUploaded,
		UploadTS:         time.Now().UTC(),
	}
	if err := repo.InsertStatement(ctx, row); err != nil {
		log.Fatal().Err(err).Msg("Failed to store statement")
	}

	log.Info().Str("session_tag", sessionTag).Str("gcs_uri", uri).Msg("Starting ingestion")

	result, err := svc.Ingest(ctx, ingest.Input{
		StatementID: statementID,
		SessionTag:  sessionTag,
		Filename:    filename,
		Format:      format,
		Data:        data,
	})
	if err != nil {
		errc(" %s ", domain.AdviceFor(err))
		fmt.Println()
		os.Exit(1)
	}

	okc("Ingestion completed successfully.")
	fmt.Println()
	fmt.Printf("  Session tag: %s\n", result.SessionTag)
	fmt.Printf("  Parsed: %d  Saved: %d  Errors: %d\n", result.TotalParsed, result.TotalSaved, result.ErrorCount)
	if result.DuplicatesSkipped > 0 {
		fmt.Printf("  Duplicates skipped: %d\n", result.DuplicatesSkipped)
	}
	if result.Truncated {
		warnc("  Statement text was truncated before extraction.")
		fmt.Println()
	}
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	cfg := config.Load()
	bucketName := fs.String("bucket", cfg.StagingBucket, "GCS bucket name (defaults to STAGING_BUCKET)")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local statement file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	store, err := staging.NewGCSStore(ctx, *bucketName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create staging store")
	}
	defer store.Close()

	uri, err := store.UploadFile(ctx, *objectName, *filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
}

func runTransactions(log zerolog.Logger) {
	fs := flag.NewFlagSet("transactions", flag.ExitOnError)
	session := fs.String("session", "", "Session tag (defaults to the latest successful run)")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cfg := config.Load()
	repo := openRepo(ctx, log, cfg)
	defer repo.Close()

	tag := resolveSession(ctx, log, repo, *session)

	txns, err := repo.QueryTransactionsBySession(ctx, tag)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query transactions")
	}

	fmt.Printf("\n=== Session %s (%d transactions) ===\n\n", tag, len(txns))
	for _, txn := range txns {
		color.New(color.FgYellow).Printf("%10s  ", txn.TransactionDate.String())
		fmt.Printf("%-42s", clip(txn.Description, 40))
		amountColor(txn.TransactionType).Printf("%12s", txn.Amount.FloatString(2))
		color.New(color.FgCyan).Printf("  %s", txn.Category)
		fmt.Println()
	}
	fmt.Println()
}

func runSummary(log zerolog.Logger) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	session := fs.String("session", "", "Session tag (defaults to the latest successful run)")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cfg := config.Load()
	repo := openRepo(ctx, log, cfg)
	defer repo.Close()

	tag := resolveSession(ctx, log, repo, *session)

	summary, err := repo.CategorySummary(ctx, tag)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query category summary")
	}

	fmt.Printf("\n=== Session %s ===\n\n", tag)
	for _, row := range summary {
		color.New(color.FgCyan).Printf("%-20s", row.Category)
		fmt.Printf(" %4d txns ", row.TxCount)
		total := "0.00"
		if row.Total != nil {
			total = row.Total.FloatString(2)
		}
		if row.Total != nil && row.Total.Sign() < 0 {
			color.New(color.FgRed).Printf("%14s", total)
		} else {
			color.New(color.FgGreen).Printf("%14s", total)
		}
		fmt.Println()
	}
	fmt.Println()
}

func runRuns(log zerolog.Logger) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cfg := config.Load()
	repo := openRepo(ctx, log, cfg)
	defer repo.Close()

	runs, err := repo.ListIngestionRuns(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list ingestion runs")
	}

	fmt.Printf("\n=== Ingestion runs (%d) ===\n\n", len(runs))
	for _, run := range runs {
		statusColor(run.Status).Printf(" %-7s ", run.Status)
		fmt.Printf(" %s  %s", run.StartedTS.Format("2006-01-02 15:04"), run.SessionTag)
		fmt.Printf("  parsed=%d saved=%d errors=%d", run.TotalParsed, run.TotalSaved, run.ErrorCount)
		if run.DuplicatesSkipped > 0 {
			fmt.Printf(" dup_skipped=%d", run.DuplicatesSkipped)
		}
		if run.ErrorMessage != "" {
			fmt.Printf("  %s", clip(run.ErrorMessage, 60))
		}
		fmt.Println()
	}
	fmt.Println()
}

func runStatements(log zerolog.Logger) {
	fs := flag.NewFlagSet("statements", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cfg := config.Load()
	repo := openRepo(ctx, log, cfg)
	defer repo.Close()

	statements, err := repo.ListStatements(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list statements")
	}

	fmt.Printf("\n=== Statements (%d) ===\n\n", len(statements))
	for _, st := range statements {
		statusColor(st.Status).Printf(" %-9s ", st.Status)
		fmt.Printf(" %s  %-30s %8d bytes  %s", st.UploadTS.Format("2006-01-02 15:04"),
			clip(st.OriginalFilename, 30), st.SizeBytes, st.StatementID)
		fmt.Println()
	}
	fmt.Println()
}

func runCategories() {
	fmt.Println("\nCategories (first matching keyword wins, last is the fallback):")
	for _, c := range domain.Categories() {
		fmt.Printf("  %s\n", c)
	}
	fmt.Println()
}

func amountColor(txType string) *color.Color {
	if txType == string(domain.TypeDebit) {
		return color.New(color.FgRed)
	}
	return color.New(color.FgGreen)
}

func statusColor(status string) *color.Color {
	switch status {
	case bq.RunStatusSuccess, bq.StatementStatusIngested:
		return color.New(color.BgGreen, color.FgBlack)
	case bq.RunStatusFailed:
		return color.New(color.BgRed, color.FgWhite)
	default:
		return color.New(color.BgYellow, color.FgBlack)
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
