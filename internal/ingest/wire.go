package ingest

import (
	"context"
	"fmt"

	bq "github.com/ovoloshko/statement-ingest/internal/bigquery"
	"github.com/ovoloshko/statement-ingest/internal/categorize"
	"github.com/ovoloshko/statement-ingest/internal/config"
	"github.com/ovoloshko/statement-ingest/internal/llm"
	"github.com/ovoloshko/statement-ingest/internal/reconcile"
)

// FromConfig builds the Service a binary runs with: the AI provider named by
// AI_PROVIDER, the keyword table (from CATEGORY_RULES_FILE when set) and the
// reconciliation policy named by RECONCILE_POLICY, all writing through the
// given repository.
func FromConfig(ctx context.Context, cfg config.Config, repo bq.StatementRepository) (*Service, error) {
	provider, model, err := providerFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	categorizer, err := categorizerFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	policy, err := policyFromConfig(cfg, repo)
	if err != nil {
		return nil, err
	}

	ai := llm.NewClient(provider, llm.RetryPolicy{}, cfg.TruncateChars)
	return NewService(repo, ai, categorizer, policy, provider.Name(), model), nil
}

// providerFromConfig picks the model backend. The returned model name is
// what run records carry, so defaults are resolved here rather than left to
// the provider.
func providerFromConfig(ctx context.Context, cfg config.Config) (llm.Provider, string, error) {
	switch cfg.Provider {
	case "anthropic":
		model := cfg.AnthropicModel
		if model == "" {
			model = llm.DefaultAnthropicModel
		}
		return llm.NewAnthropicProvider(cfg.AnthropicAPIKey, model), model, nil
	case "gemini", "":
		model := cfg.GeminiModel
		if model == "" {
			model = llm.DefaultGeminiModel
		}
		provider, err := llm.NewGeminiProvider(ctx, model)
		if err != nil {
			return nil, "", err
		}
		return provider, model, nil
	default:
		return nil, "", fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

func categorizerFromConfig(cfg config.Config) (Categorizer, error) {
	if cfg.RulesFile != "" {
		return categorize.NewFromFile(cfg.RulesFile)
	}
	return categorize.New(), nil
}

func policyFromConfig(cfg config.Config, repo bq.StatementRepository) (reconcile.Policy, error) {
	switch cfg.ReconcilePolicy {
	case reconcile.PolicyNameSession, "":
		return reconcile.NewSessionPolicy(repo), nil
	case reconcile.PolicyNameDuplicateSuppression:
		return reconcile.NewDuplicateSuppressionPolicy(repo), nil
	default:
		return nil, fmt.Errorf("unknown reconcile policy %q, use %s or %s",
			cfg.ReconcilePolicy, reconcile.PolicyNameSession, reconcile.PolicyNameDuplicateSuppression)
	}
}
