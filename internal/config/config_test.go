package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.Provider != "gemini" {
		t.Errorf("Provider = %q, want gemini", cfg.Provider)
	}
	if cfg.ReconcilePolicy != "session" {
		t.Errorf("ReconcilePolicy = %q, want session", cfg.ReconcilePolicy)
	}
	if cfg.TruncateChars != DefaultTruncateChars {
		t.Errorf("TruncateChars = %d, want %d", cfg.TruncateChars, DefaultTruncateChars)
	}
	if cfg.StagingTTL != DefaultStagingTTL {
		t.Errorf("StagingTTL = %v, want %v", cfg.StagingTTL, DefaultStagingTTL)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BQ_PROJECT_ID", "my-project")
	t.Setenv("BQ_DATASET_ID", "statements")
	t.Setenv("STAGING_TTL_HOURS", "12")
	t.Setenv("QUEUE_WORKERS", "junk")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.ProjectID != "my-project" || cfg.DatasetID != "statements" {
		t.Errorf("project/dataset = %q/%q", cfg.ProjectID, cfg.DatasetID)
	}
	if cfg.StagingTTL != 12*time.Hour {
		t.Errorf("StagingTTL = %v, want 12h", cfg.StagingTTL)
	}
	if cfg.QueueWorkers != DefaultQueueWorkers {
		t.Errorf("unparsable QUEUE_WORKERS fell back to %d, want %d", cfg.QueueWorkers, DefaultQueueWorkers)
	}
}

func TestRequireBigQuery(t *testing.T) {
	cfg := Config{}
	if err := cfg.RequireBigQuery(); err == nil {
		t.Error("expected error for empty project")
	}

	cfg.ProjectID = "p"
	if err := cfg.RequireBigQuery(); err == nil {
		t.Error("expected error for empty dataset")
	}

	cfg.DatasetID = "d"
	if err := cfg.RequireBigQuery(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRequireProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"gemini needs no key here", Config{Provider: "gemini"}, false},
		{"anthropic without key", Config{Provider: "anthropic"}, true},
		{"anthropic with key", Config{Provider: "anthropic", AnthropicAPIKey: "sk-test"}, false},
		{"unknown provider", Config{Provider: "openai"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.RequireProvider()
			if (err != nil) != tt.wantErr {
				t.Errorf("RequireProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
