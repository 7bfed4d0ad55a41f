package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryConfig bounds the retry loop around model calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig matches what OpenAI-compatible providers tolerate:
// a few quick retries with capped exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns are substrings that identify transient provider
// failures: throttling, upstream 5xx responses, and flaky transport.
// Genkit surfaces provider errors as strings, so substring matching is
// the only classification available.
var retryablePatterns = []string{
	"rate limit", "quota exceeded", "429",
	"500", "502", "503", "504", "unavailable",
	"connection reset", "timeout", "temporary",
}

// retryableError reports whether err looks transient enough to retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// generateWithRetry calls the generator with exponential backoff. Each
// attempt passes through the rate limiter first, so retries never
// amplify load on the provider.
//
// relay is nil for non-streaming turns. For streaming turns a retry is
// only possible while the client has received nothing: once any
// fragment has been delivered, a fresh attempt would duplicate output,
// so the error is returned as-is.
func (r *Registry) generateWithRetry(ctx context.Context, req *GenerateRequest, relay *streamRelay) (string, error) {
	var stream StreamCallback
	if relay != nil {
		stream = relay.relay
	}

	var lastErr error
	delay := r.retryConfig.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= r.retryConfig.MaxRetries; attempt++ {
		if r.rateLimiter != nil {
			if err := r.rateLimiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limit wait: %w", err)
			}
		}

		text, err := r.generator.Generate(ctx, req, stream)
		if err == nil {
			r.logger.Debug("generation succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return text, nil
		}

		lastErr = err

		if relay != nil && (relay.ClientGone() || relay.Delivered() != "") {
			return "", err
		}
		if !retryableError(err) {
			return "", err
		}
		if attempt == r.retryConfig.MaxRetries {
			break
		}

		r.logger.Debug("retrying after error",
			"attempt", attempt+1,
			"delay", delay,
			"elapsed", time.Since(start),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, r.retryConfig.MaxInterval)
		}
	}

	return "", fmt.Errorf("generation after %d retries (elapsed: %v): %w",
		r.retryConfig.MaxRetries, time.Since(start), lastErr)
}
