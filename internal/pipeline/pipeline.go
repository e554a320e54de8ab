package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"quizsmith-backend/internal/llm"
	"quizsmith-backend/internal/models"
)

// Stage names, in execution order.
const (
	StageDrafting     = "question_drafting"
	StageOptions      = "option_generation"
	StageExplanations = "explanation_generation"
	StageFactCheck    = "fact_check"
	StageVerification = "verification"
)

// StageCount is the number of ordered stages a generation runs through.
const StageCount = 5

// stageExtraAttempts is how many times a stage is re-run after a post-condition
// violation. These are logic failures, not transience, so the delay is short
// and fixed rather than exponential.
const stageExtraAttempts = 2

var stageRetryDelay = time.Second

// StageError names the stage that exhausted its retries or failed hard.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// semanticError marks a violated stage post-condition, the only error class the
// stage runner re-attempts.
type semanticError struct {
	msg string
}

func (e *semanticError) Error() string { return e.msg }

func semanticf(format string, args ...interface{}) error {
	return &semanticError{msg: fmt.Sprintf(format, args...)}
}

// ProgressFunc receives stage transitions for one generation run.
type ProgressFunc func(stage string, stageIndex int)

// StageUsage is the token accounting for one completion call.
type StageUsage struct {
	Stage            string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

type Request struct {
	Topic         string
	Difficulty    string
	NumQuestions  int
	CourseContext string
	OnProgress    ProgressFunc
}

type Result struct {
	Questions []models.QuestionRecord
	Usage     []StageUsage
}

// Generator runs the five-stage quiz pipeline against an injected gateway. The
// gateway is expected to carry its own transient-retry behavior; the generator
// only retries semantic violations. A Generator is safe for concurrent use:
// all per-run state lives in the run struct.
type Generator struct {
	gateway llm.Gateway
	model   string
}

func NewGenerator(gateway llm.Gateway, model string) *Generator {
	return &Generator{gateway: gateway, model: model}
}

// Generate produces verified question records or fails as a whole. Partial
// quizzes are never returned.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if req.NumQuestions < 1 {
		return nil, fmt.Errorf("question count must be positive, got %d", req.NumQuestions)
	}
	if !models.ValidDifficulty(req.Difficulty) {
		return nil, fmt.Errorf("unknown difficulty %q", req.Difficulty)
	}

	r := &run{gen: g, req: req}

	var drafts []string
	err := r.runStage(ctx, StageDrafting, 1, func(ctx context.Context) error {
		var stageErr error
		drafts, stageErr = r.draftQuestions(ctx)
		return stageErr
	})
	if err != nil {
		return nil, err
	}

	var candidates []models.CandidateQuestion
	err = r.runStage(ctx, StageOptions, 2, func(ctx context.Context) error {
		var stageErr error
		candidates, stageErr = r.generateOptions(ctx, drafts)
		return stageErr
	})
	if err != nil {
		return nil, err
	}

	r.reportProgress(StageExplanations, 3)
	r.attachExplanations(ctx, candidates)

	r.reportProgress(StageFactCheck, 4)
	candidates = r.factCheck(ctx, candidates)
	candidates = dedupeCandidates(candidates)

	r.reportProgress(StageVerification, 5)
	records, err := verify(candidates, req.Difficulty)
	if err != nil {
		return nil, &StageError{Stage: StageVerification, Err: err}
	}

	log.Printf("pipeline: generated %d verified questions for topic %q", len(records), req.Topic)
	return &Result{Questions: records, Usage: r.usage}, nil
}

// run holds the state of one generation invocation.
type run struct {
	gen   *Generator
	req   Request
	usage []StageUsage
}

func (r *run) reportProgress(stage string, index int) {
	if r.req.OnProgress != nil {
		r.req.OnProgress(stage, index)
	}
}

// runStage executes fn, re-running it after post-condition violations up to
// stageExtraAttempts times. Gateway errors have already been through the retry
// policy and propagate immediately.
func (r *run) runStage(ctx context.Context, stage string, index int, fn func(ctx context.Context) error) error {
	r.reportProgress(stage, index)

	var lastErr error
	for attempt := 0; attempt <= stageExtraAttempts; attempt++ {
		if attempt > 0 {
			log.Printf("pipeline: stage %s attempt %d/%d after: %v", stage, attempt+1, stageExtraAttempts+1, lastErr)
			select {
			case <-ctx.Done():
				return &StageError{Stage: stage, Err: ctx.Err()}
			case <-time.After(stageRetryDelay):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if _, semantic := err.(*semanticError); !semantic {
			return &StageError{Stage: stage, Err: err}
		}
		lastErr = err
	}

	return &StageError{Stage: stage, Err: lastErr}
}

// call issues one completion and records its token usage.
func (r *run) call(ctx context.Context, stage, prompt string, temperature float32, maxTokens int) (string, error) {
	result, err := r.gen.gateway.Generate(ctx, llm.GenerateRequest{
		Model:       r.gen.model,
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}

	r.usage = append(r.usage, StageUsage{
		Stage:            stage,
		Model:            result.Model,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	})
	return result.Text, nil
}
