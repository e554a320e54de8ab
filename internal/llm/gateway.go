package llm

import "context"

// GenerateRequest describes one completion call.
type GenerateRequest struct {
	Model       string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// GenerateResult is the raw model output plus token accounting. Text is
// untrusted input: callers must parse and validate it, never index into it
// optimistically.
type GenerateResult struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Gateway is the completion capability the pipeline consumes. Implementations
// must fail with a *GatewayError so callers can switch on the error kind.
type Gateway interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}
