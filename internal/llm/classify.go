package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/ovoloshko/statement-ingest/internal/domain"
)

// failureClass buckets provider errors for operator messaging. Control flow
// only distinguishes retryable from not: credential failures fail fast,
// every other class is retried identically.
type failureClass int

const (
	classUnknown failureClass = iota
	classRateLimited
	classInvalidCredentials
	classUpstreamUnavailable
)

func (c failureClass) advice() string {
	switch c {
	case classRateLimited:
		return "the extraction service is rate limiting requests, wait a minute and try again"
	case classInvalidCredentials:
		return "the extraction service rejected the configured API key, check the provider credentials"
	case classUpstreamUnavailable:
		return "the extraction service is temporarily unavailable, try again shortly"
	default:
		return "extraction failed unexpectedly, try the upload again"
	}
}

// classify inspects the error text because each SDK wraps HTTP failures in
// its own types. Rate limiting is checked before the credential patterns so
// a 429 never reads as an auth problem.
func classify(err error) failureClass {
	if err == nil {
		return classUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return classUpstreamUnavailable
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "429", "rate limit", "too many requests", "quota exceeded", "resource exhausted", "resource_exhausted"):
		return classRateLimited
	case containsAny(msg, "401", "403", "api key", "unauthorized", "unauthenticated", "permission denied", "invalid credentials", "invalid x-api-key"):
		return classInvalidCredentials
	case containsAny(msg, "500", "502", "503", "504", "unavailable", "overloaded", "timeout", "deadline", "connection refused", "connection reset"):
		return classUpstreamUnavailable
	default:
		return classUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func providerFailure(err error) error {
	return domain.NewIngestError(domain.ErrProviderUnavailable, classify(err).advice(), err)
}
