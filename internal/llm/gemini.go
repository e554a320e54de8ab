package llm

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiGateway adapts the Gemini API to the Gateway contract. A token bucket
// caps in-flight requests so concurrent quiz generations cannot exceed the
// configured API concurrency.
type GeminiGateway struct {
	client       *genai.Client
	defaultModel string
	rateChan     chan struct{}
}

func NewGeminiGateway(ctx context.Context, apiKey, defaultModel string, concurrentReqs int) (*GeminiGateway, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if concurrentReqs < 1 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiGateway{
		client:       client,
		defaultModel: defaultModel,
		rateChan:     rateChan,
	}, nil
}

func (g *GeminiGateway) Close() {
	g.client.Close()
}

func (g *GeminiGateway) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (g *GeminiGateway) releaseRate() {
	g.rateChan <- struct{}{}
}

func (g *GeminiGateway) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if err := g.acquireRate(ctx); err != nil {
		return nil, Classify(err)
	}
	defer g.releaseRate()

	modelName := req.Model
	if modelName == "" {
		modelName = g.defaultModel
	}

	model := g.client.GenerativeModel(modelName)
	model.SetTemperature(req.Temperature)
	model.SetTopP(0.95)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, Classify(fmt.Errorf("Gemini API error: %w", err))
	}

	text := extractText(resp)
	if text == "" {
		return nil, &GatewayError{Kind: KindMalformed, Err: fmt.Errorf("Gemini returned no text candidates")}
	}

	result := &GenerateResult{Text: text, Model: modelName}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return result, nil
}

// TranscribeAudio uploads audio bytes through the Gemini File API and asks the
// model for a verbatim transcript. Used by the YouTube course-context path when
// a video has no captions.
func (g *GeminiGateway) TranscribeAudio(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if err := g.acquireRate(ctx); err != nil {
		return "", err
	}
	defer g.releaseRate()

	if len(audio) == 0 {
		return "", fmt.Errorf("audio payload is empty")
	}

	file, err := g.client.UploadFile(ctx, "", bytes.NewReader(audio), &genai.UploadFileOptions{
		DisplayName: "lecture-audio",
		MIMEType:    mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload audio to Gemini: %w", err)
	}
	defer g.client.DeleteFile(context.Background(), file.Name)

	for i := 0; i < 20; i++ {
		current, getErr := g.client.GetFile(ctx, file.Name)
		if getErr != nil {
			return "", fmt.Errorf("failed to get uploaded file status: %w", getErr)
		}
		if current.State == genai.FileStateActive {
			file = current
			break
		}
		if current.State == genai.FileStateFailed {
			return "", fmt.Errorf("Gemini failed to process uploaded audio file")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	if file.State != genai.FileStateActive {
		return "", fmt.Errorf("audio file did not become active in time")
	}

	model := g.client.GenerativeModel(g.defaultModel)
	resp, err := model.GenerateContent(ctx,
		genai.Text("Transcribe the provided audio verbatim. Return plain text only, without markdown, headers, or explanations."),
		genai.FileData{MIMEType: mimeType, URI: file.URI},
	)
	if err != nil {
		return "", fmt.Errorf("Gemini transcription error: %w", err)
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", fmt.Errorf("Gemini returned empty transcription")
	}

	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
