package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// LocalGateway talks to an OpenAI-compatible endpoint (Ollama, LM Studio,
// llama.cpp server) used as the fallback model when the primary is down.
type LocalGateway struct {
	client *openai.Client
	model  string
}

func NewLocalGateway(baseURL, model string) *LocalGateway {
	cfg := openai.DefaultConfig("local")
	cfg.BaseURL = baseURL
	return &LocalGateway{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (g *LocalGateway) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	model := req.Model
	if model == "" || model != g.model {
		// Local deployments serve a single model regardless of what the
		// pipeline asked the primary for.
		model = g.model
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: req.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	resp, err := g.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, Classify(fmt.Errorf("local model error: %w", err))
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, &GatewayError{Kind: KindMalformed, Err: fmt.Errorf("local model returned no choices")}
	}

	return &GenerateResult{
		Text:             resp.Choices[0].Message.Content,
		Model:            model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
