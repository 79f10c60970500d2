// Package llm sends statement text to a completion provider and hands the
// raw response back for normalization. It owns the retry policy: bounded
// attempts, exponential backoff, a per-attempt timeout, and failure
// classification for operator-facing messages.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ovoloshko/statement-ingest/internal/logger"
)

const (
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = time.Second
	DefaultAttemptTimeout = 60 * time.Second
)

// Provider is one model backend capable of a single completion call. The
// retry policy lives in Client, not in providers.
type Provider interface {
	// Name identifies the provider in logs and run records.
	Name() string
	// Complete sends the prompt and returns the raw model text.
	Complete(ctx context.Context, prompt string) (string, error)
}

// RetryPolicy bounds how hard Client tries. MaxAttempts counts every call
// including the first; the delay before attempt n+1 is BaseDelay * 2^(n-1);
// AttemptTimeout caps each call separately from the backoff waits.
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = DefaultAttemptTimeout
	}
	return p
}

// Extraction is one successful provider call.
type Extraction struct {
	Raw       string // raw model text, preserved for the audit trail
	Truncated bool   // whether the prompt carried a truncated statement
	Attempts  int
	Provider  string
}

// Client wraps a Provider with prompt construction and the retry policy.
type Client struct {
	provider Provider
	policy   RetryPolicy
	truncate int
	sleep    func(context.Context, time.Duration) error
}

// NewClient builds a Client. Zero policy fields get defaults; truncateChars
// <= 0 means DefaultTruncateChars.
func NewClient(provider Provider, policy RetryPolicy, truncateChars int) *Client {
	if truncateChars <= 0 {
		truncateChars = DefaultTruncateChars
	}
	return &Client{
		provider: provider,
		policy:   policy.withDefaults(),
		truncate: truncateChars,
		sleep:    sleepContext,
	}
}

// Extract sends the statement text to the provider and returns the raw
// response. Transient failures are retried up to the attempt cap with
// exponential backoff; credential failures fail fast. Exhausting the cap is
// terminal and reported as a provider-unavailable error carrying advice for
// the failure class.
func (c *Client) Extract(ctx context.Context, textBlob string) (*Extraction, error) {
	log := logger.FromContext(ctx)

	prompt, truncated := BuildPrompt(textBlob, c.truncate)
	if truncated {
		log.Warn().Int("limit_chars", c.truncate).Int("blob_chars", len(textBlob)).
			Msg("statement text truncated before extraction")
	}

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		raw, err := c.attempt(ctx, prompt)
		if err == nil {
			return &Extraction{
				Raw:       raw,
				Truncated: truncated,
				Attempts:  attempt,
				Provider:  c.provider.Name(),
			}, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, fmt.Errorf("extraction aborted: %w", ctx.Err())
		}
		if classify(err) == classInvalidCredentials {
			return nil, providerFailure(err)
		}
		if attempt == c.policy.MaxAttempts {
			break
		}

		delay := c.policy.BaseDelay << (attempt - 1)
		log.Warn().Err(err).
			Str("provider", c.provider.Name()).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("extraction attempt failed")
		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("extraction aborted during backoff: %w", err)
		}
	}
	return nil, providerFailure(lastErr)
}

func (c *Client) attempt(ctx context.Context, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.policy.AttemptTimeout)
	defer cancel()
	return c.provider.Complete(attemptCtx, prompt)
}

// sleepContext waits for d, or returns early with the context error. Only
// the goroutine running this upload waits; other uploads are unaffected.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
