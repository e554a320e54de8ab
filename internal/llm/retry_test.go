package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func shortenBackoff(t *testing.T) {
	t.Helper()
	origBase, origMax := retryBaseDelay, retryMaxDelay
	retryBaseDelay = time.Millisecond
	retryMaxDelay = 5 * time.Millisecond
	t.Cleanup(func() {
		retryBaseDelay, retryMaxDelay = origBase, origMax
	})
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	shortenBackoff(t)

	calls := 0
	result, err := WithRetry(context.Background(), "test", 3, func(ctx context.Context) (*GenerateResult, error) {
		calls++
		if calls < 3 {
			return nil, &GatewayError{Kind: KindUnavailable, Err: errors.New("503")}
		}
		return &GenerateResult{Text: "ok"}, nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Text != "ok" {
		t.Errorf("expected text 'ok', got %q", result.Text)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetry_DoesNotRetryFatal(t *testing.T) {
	shortenBackoff(t)

	calls := 0
	_, err := WithRetry(context.Background(), "test", 3, func(ctx context.Context) (*GenerateResult, error) {
		calls++
		return nil, &GatewayError{Kind: KindFatal, Err: errors.New("bad request")}
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call for fatal error, got %d", calls)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	shortenBackoff(t)

	calls := 0
	sentinel := errors.New("still down")
	_, err := WithRetry(context.Background(), "test", 3, func(ctx context.Context) (*GenerateResult, error) {
		calls++
		return nil, &GatewayError{Kind: KindRateLimited, Err: sentinel}
	})

	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("expected last error to propagate, got %v", err)
	}
}

func TestWithRetry_ContextCancelStopsRetries(t *testing.T) {
	origBase := retryBaseDelay
	retryBaseDelay = time.Hour
	defer func() { retryBaseDelay = origBase }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := WithRetry(ctx, "test", 3, func(ctx context.Context) (*GenerateResult, error) {
			return nil, &GatewayError{Kind: KindNetwork, Err: errors.New("reset")}
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WithRetry did not return after context cancellation")
	}
}

func TestBackoffDelay_Capped(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{3, 16 * time.Second},
		{4, 30 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tc.attempt), func(t *testing.T) {
			if got := backoffDelay(tc.attempt); got != tc.expected {
				t.Errorf("attempt %d: expected %s, got %s", tc.attempt, tc.expected, got)
			}
		})
	}
}
