package llm

import (
	"context"
	"log"
	"time"
)

// DefaultMaxAttempts bounds retries per call, first attempt included.
const DefaultMaxAttempts = 3

// Vars so tests can shrink the backoff window.
var (
	retryBaseDelay = 2 * time.Second
	retryMaxDelay  = 30 * time.Second
)

// WithRetry runs op up to maxAttempts times, sleeping with capped exponential
// backoff between attempts. Only errors classified as transient are retried;
// anything else propagates unchanged, as does the last error on exhaustion.
func WithRetry(ctx context.Context, label string, maxAttempts int, op func(ctx context.Context) (*GenerateResult, error)) (*GenerateResult, error) {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		gwErr := Classify(err)
		lastErr = gwErr

		if !gwErr.Retryable() || attempt == maxAttempts-1 {
			if !gwErr.Retryable() {
				log.Printf("%s: attempt %d/%d failed (%s), not retryable", label, attempt+1, maxAttempts, gwErr.Kind)
			}
			return nil, gwErr
		}

		delay := backoffDelay(attempt)
		log.Printf("%s: attempt %d/%d failed (%s), retrying in %s", label, attempt+1, maxAttempts, gwErr.Kind, delay)

		select {
		case <-ctx.Done():
			return nil, &GatewayError{Kind: KindTimeout, Err: ctx.Err()}
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

func backoffDelay(attempt int) time.Duration {
	delay := retryBaseDelay << uint(attempt)
	if delay > retryMaxDelay || delay <= 0 {
		return retryMaxDelay
	}
	return delay
}
