package llm

import (
	"context"
	"log"
)

// FallbackGateway retries the primary gateway and, if a transient failure
// survives all retries, reissues the call once against the local model. Fatal
// and malformed errors from the primary are returned as-is: a local model will
// not fix a bad request.
type FallbackGateway struct {
	primary     Gateway
	secondary   Gateway
	maxAttempts int
}

func NewFallbackGateway(primary, secondary Gateway, maxAttempts int) *FallbackGateway {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &FallbackGateway{primary: primary, secondary: secondary, maxAttempts: maxAttempts}
}

func (g *FallbackGateway) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	result, err := WithRetry(ctx, "primary completion", g.maxAttempts, func(ctx context.Context) (*GenerateResult, error) {
		return g.primary.Generate(ctx, req)
	})
	if err == nil {
		return result, nil
	}

	gwErr := Classify(err)
	if g.secondary == nil || !gwErr.Retryable() {
		return nil, gwErr
	}

	log.Printf("primary completion exhausted retries (%s), falling back to local model", gwErr.Kind)

	result, err = WithRetry(ctx, "fallback completion", g.maxAttempts, func(ctx context.Context) (*GenerateResult, error) {
		return g.secondary.Generate(ctx, req)
	})
	if err != nil {
		return nil, Classify(err)
	}
	return result, nil
}
