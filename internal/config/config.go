// Package config reads service configuration from the environment, loading a
// local .env file first when one exists.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for settings that are safe to leave unset.
const (
	DefaultPort          = 8080
	DefaultQueueBuffer   = 100
	DefaultQueueWorkers  = 5
	DefaultTruncateChars = 3000
	DefaultProvider      = "gemini"
	DefaultPolicy        = "session"
	DefaultStagingTTL    = 72 * time.Hour
	DefaultJanitorSpec   = "0 3 * * *"
)

// Config carries every setting the binaries read. Each binary validates only
// the slice it needs via the Require methods.
type Config struct {
	Port int

	ProjectID     string
	DatasetID     string
	StagingBucket string

	Provider        string
	GeminiModel     string
	AnthropicModel  string
	AnthropicAPIKey string
	TruncateChars   int

	ReconcilePolicy string
	RulesFile       string

	QueueBuffer  int
	QueueWorkers int

	StagingTTL  time.Duration
	JanitorSpec string

	NotionAPIKey     string
	NotionDatabaseID string
}

// Load reads the environment into a Config. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port: getEnvInt("PORT", DefaultPort),

		ProjectID:     getEnv("BQ_PROJECT_ID", ""),
		DatasetID:     getEnv("BQ_DATASET_ID", ""),
		StagingBucket: getEnv("STAGING_BUCKET", ""),

		Provider:        getEnv("AI_PROVIDER", DefaultProvider),
		GeminiModel:     getEnv("GEMINI_MODEL", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		TruncateChars:   getEnvInt("PROMPT_TRUNCATE_CHARS", DefaultTruncateChars),

		ReconcilePolicy: getEnv("RECONCILE_POLICY", DefaultPolicy),
		RulesFile:       getEnv("CATEGORY_RULES_FILE", ""),

		QueueBuffer:  getEnvInt("QUEUE_BUFFER", DefaultQueueBuffer),
		QueueWorkers: getEnvInt("QUEUE_WORKERS", DefaultQueueWorkers),

		StagingTTL:  getEnvHours("STAGING_TTL_HOURS", DefaultStagingTTL),
		JanitorSpec: getEnv("JANITOR_SCHEDULE", DefaultJanitorSpec),

		NotionAPIKey:     getEnv("NOTION_API_KEY", ""),
		NotionDatabaseID: getEnv("NOTION_DATABASE_ID", ""),
	}
}

// RequireBigQuery checks the settings every persistence-touching binary
// needs.
func (c Config) RequireBigQuery() error {
	if c.ProjectID == "" {
		return fmt.Errorf("BQ_PROJECT_ID is required")
	}
	if c.DatasetID == "" {
		return fmt.Errorf("BQ_DATASET_ID is required")
	}
	return nil
}

// RequireStaging checks the settings needed to reach the staging bucket.
func (c Config) RequireStaging() error {
	if c.StagingBucket == "" {
		return fmt.Errorf("STAGING_BUCKET is required")
	}
	return nil
}

// RequireProvider checks that the configured AI backend is usable.
func (c Config) RequireProvider() error {
	switch c.Provider {
	case "gemini":
		return nil
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER=anthropic")
		}
		return nil
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q, use gemini or anthropic", c.Provider)
	}
}

// RequireNotion checks the settings the Notion export needs.
func (c Config) RequireNotion() error {
	if c.NotionAPIKey == "" {
		return fmt.Errorf("NOTION_API_KEY is required")
	}
	if c.NotionDatabaseID == "" {
		return fmt.Errorf("NOTION_DATABASE_ID is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvHours(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	hours, err := strconv.Atoi(value)
	if err != nil || hours <= 0 {
		return fallback
	}
	return time.Duration(hours) * time.Hour
}
