package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quizsmith-backend/internal/llm"
	"quizsmith-backend/internal/models"
)

// scriptedGateway returns queued responses (or errors) in call order.
type scriptedGateway struct {
	steps []scriptStep
	calls []llm.GenerateRequest
}

type scriptStep struct {
	text string
	err  error
}

func (g *scriptedGateway) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResult, error) {
	g.calls = append(g.calls, req)
	if len(g.steps) == 0 {
		return nil, errors.New("scripted gateway exhausted")
	}
	step := g.steps[0]
	g.steps = g.steps[1:]
	if step.err != nil {
		return nil, step.err
	}
	return &llm.GenerateResult{Text: step.text, Model: "test-model", PromptTokens: 10, CompletionTokens: 20}, nil
}

func shortenStageDelay(t *testing.T) {
	t.Helper()
	orig := stageRetryDelay
	stageRetryDelay = time.Millisecond
	t.Cleanup(func() { stageRetryDelay = orig })
}

const draftsJSON = `["What is the capital of France?", "Which river flows through Paris?", "Who designed the Eiffel Tower?"]`

const optionsJSON = `[
	{"question": "What is the capital of France?", "options": ["Paris", "London", "Rome", "Berlin"], "correct_answer_text": "Paris"},
	{"question": "Which river flows through Paris?", "options": ["Thames", "Seine", "Danube", "Rhine"], "correct_answer_text": "Seine"},
	{"question": "Who designed the Eiffel Tower?", "options": ["Le Corbusier", "Haussmann", "Gustave Eiffel", "Viollet-le-Duc"], "correct_answer_text": "Gustave Eiffel"}
]`

const explanationsJSON = `["Paris is the capital of France.", "The Seine crosses Paris.", "Gustave Eiffel's company built the tower."]`

const factCheckCleanJSON = `[
	{"question": "What is the capital of France?", "options": ["Paris", "London", "Rome", "Berlin"], "correct_answer_text": "Paris", "explanation": "Paris is the capital of France.", "corrected": false, "reason": ""},
	{"question": "Which river flows through Paris?", "options": ["Thames", "Seine", "Danube", "Rhine"], "correct_answer_text": "Seine", "explanation": "The Seine crosses Paris.", "corrected": false, "reason": ""},
	{"question": "Who designed the Eiffel Tower?", "options": ["Le Corbusier", "Haussmann", "Gustave Eiffel", "Viollet-le-Duc"], "correct_answer_text": "Gustave Eiffel", "explanation": "Gustave Eiffel's company built the tower.", "corrected": false, "reason": ""}
]`

func baseRequest() Request {
	return Request{Topic: "France", Difficulty: models.DifficultyBeginner, NumQuestions: 3}
}

func TestGenerate_HappyPath(t *testing.T) {
	shortenStageDelay(t)
	gw := &scriptedGateway{steps: []scriptStep{
		{text: draftsJSON},
		{text: optionsJSON},
		{text: explanationsJSON},
		{text: factCheckCleanJSON},
	}}

	result, err := NewGenerator(gw, "test-model").Generate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(result.Questions))
	}

	// Answer-key consistency: options[index] equals the reconciled answer text.
	expectedIndices := []int{0, 1, 2}
	expectedAnswers := []string{"Paris", "Seine", "Gustave Eiffel"}
	for i, q := range result.Questions {
		if q.CorrectAnswerIndex != expectedIndices[i] {
			t.Errorf("question %d: expected index %d, got %d", i, expectedIndices[i], q.CorrectAnswerIndex)
		}
		if q.Options[q.CorrectAnswerIndex] != expectedAnswers[i] {
			t.Errorf("question %d: options[%d] = %q, want %q", i, q.CorrectAnswerIndex, q.Options[q.CorrectAnswerIndex], expectedAnswers[i])
		}
		if q.Difficulty != models.DifficultyBeginner {
			t.Errorf("question %d: difficulty not propagated", i)
		}
		if q.Explanation == "" {
			t.Errorf("question %d: missing explanation", i)
		}
	}

	// No duplicate questions under normalization.
	seen := map[string]bool{}
	for _, q := range result.Questions {
		key := normalizeText(q.Text)
		if seen[key] {
			t.Errorf("duplicate question: %q", q.Text)
		}
		seen[key] = true
	}

	if len(result.Usage) != 4 {
		t.Errorf("expected 4 usage entries, got %d", len(result.Usage))
	}
}

func TestGenerate_MarkdownFencedResponses(t *testing.T) {
	shortenStageDelay(t)
	gw := &scriptedGateway{steps: []scriptStep{
		{text: "```json\n" + draftsJSON + "\n```"},
		{text: "Here you go:\n" + optionsJSON},
		{text: explanationsJSON},
		{text: factCheckCleanJSON},
	}}

	result, err := NewGenerator(gw, "test-model").Generate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Questions) != 3 {
		t.Errorf("expected 3 questions, got %d", len(result.Questions))
	}
}

func TestGenerate_DraftingRetriesOnDuplicates(t *testing.T) {
	shortenStageDelay(t)
	dupes := `["What is the capital of France?", "what is   the capital of FRANCE?", "Who designed the Eiffel Tower?"]`
	gw := &scriptedGateway{steps: []scriptStep{
		{text: dupes},
		{text: draftsJSON},
		{text: optionsJSON},
		{text: explanationsJSON},
		{text: factCheckCleanJSON},
	}}

	result, err := NewGenerator(gw, "test-model").Generate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Questions) != 3 {
		t.Errorf("expected 3 questions, got %d", len(result.Questions))
	}
	if len(gw.calls) != 5 {
		t.Errorf("expected 5 calls (drafting retried once), got %d", len(gw.calls))
	}
}

func TestGenerate_StageRetriesExhausted(t *testing.T) {
	shortenStageDelay(t)
	short := `[{"question": "q", "options": ["a","b","c","d"], "correct_answer_text": "a"}]`
	gw := &scriptedGateway{steps: []scriptStep{
		{text: draftsJSON},
		{text: short},
		{text: short},
		{text: short},
	}}

	_, err := NewGenerator(gw, "test-model").Generate(context.Background(), baseRequest())
	if err == nil {
		t.Fatal("expected error")
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected *StageError, got %T", err)
	}
	if stageErr.Stage != StageOptions {
		t.Errorf("expected failing stage %q, got %q", StageOptions, stageErr.Stage)
	}
	if len(gw.calls) != 4 {
		t.Errorf("expected 1 draft + 3 option attempts, got %d calls", len(gw.calls))
	}
}

func TestGenerate_GatewayErrorNotRetriedAtStageLevel(t *testing.T) {
	shortenStageDelay(t)
	gw := &scriptedGateway{steps: []scriptStep{
		{err: &llm.GatewayError{Kind: llm.KindFatal, Err: errors.New("blocked")}},
	}}

	_, err := NewGenerator(gw, "test-model").Generate(context.Background(), baseRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(gw.calls) != 1 {
		t.Errorf("gateway errors must not trigger semantic retries, got %d calls", len(gw.calls))
	}
}

func TestGenerate_OptionsExtraEntriesDropped(t *testing.T) {
	shortenStageDelay(t)
	extra := strings.TrimSuffix(optionsJSON, "\n]") + `,
	{"question": "bonus", "options": ["a","b","c","d"], "correct_answer_text": "a"}
]`
	gw := &scriptedGateway{steps: []scriptStep{
		{text: draftsJSON},
		{text: extra},
		{text: explanationsJSON},
		{text: factCheckCleanJSON},
	}}

	result, err := NewGenerator(gw, "test-model").Generate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Questions) != 3 {
		t.Errorf("expected extras to be dropped, got %d questions", len(result.Questions))
	}
}

func TestGenerate_ExplanationFallbacks(t *testing.T) {
	shortenStageDelay(t)
	gw := &scriptedGateway{steps: []scriptStep{
		{text: draftsJSON},
		{text: optionsJSON},
		{text: "not json at all"},
		{text: "Paris is the capital of France."},
		{err: &llm.GatewayError{Kind: llm.KindUnavailable, Err: errors.New("down")}},
		{text: "   "},
		{text: factCheckCleanJSON},
	}}

	result, err := NewGenerator(gw, "test-model").Generate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("explanation failures must not fail the quiz: %v", err)
	}

	if result.Questions[0].Explanation != "Paris is the capital of France." {
		t.Errorf("question 0: expected per-question explanation, got %q", result.Questions[0].Explanation)
	}
	// Calls 5 and 6 failed or returned blanks; the static fallback covers them.
	for _, i := range []int{1, 2} {
		if !strings.HasPrefix(result.Questions[i].Explanation, "The correct answer is ") {
			t.Errorf("question %d: expected static fallback, got %q", i, result.Questions[i].Explanation)
		}
	}
}

func TestGenerate_FactCheckFailOpenOnCountMismatch(t *testing.T) {
	shortenStageDelay(t)
	truncated := `[{"question": "What is the capital of France?", "options": ["Paris", "London", "Rome", "Berlin"], "correct_answer_text": "Paris", "explanation": "x", "corrected": true, "reason": "trimmed"}]`
	gw := &scriptedGateway{steps: []scriptStep{
		{text: draftsJSON},
		{text: optionsJSON},
		{text: explanationsJSON},
		{text: truncated},
	}}

	result, err := NewGenerator(gw, "test-model").Generate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("count mismatch must fail open, got error: %v", err)
	}
	if len(result.Questions) != 3 {
		t.Errorf("expected 3 unmodified questions, got %d", len(result.Questions))
	}
	if result.Questions[1].Explanation != "The Seine crosses Paris." {
		t.Errorf("expected original explanation preserved, got %q", result.Questions[1].Explanation)
	}
}

func TestGenerate_FactCheckRewriteGoesThroughVerification(t *testing.T) {
	shortenStageDelay(t)
	// Fact-check rewrites the answer text to something absent from the
	// options it returns. Verification must fail the whole generation.
	broken := `[
	{"question": "What is the capital of France?", "options": ["Paris", "London", "Rome", "Berlin"], "correct_answer_text": "Lyon", "explanation": "x", "corrected": true, "reason": "wrong"},
	{"question": "Which river flows through Paris?", "options": ["Thames", "Seine", "Danube", "Rhine"], "correct_answer_text": "Seine", "explanation": "x", "corrected": false, "reason": ""},
	{"question": "Who designed the Eiffel Tower?", "options": ["Le Corbusier", "Haussmann", "Gustave Eiffel", "Viollet-le-Duc"], "correct_answer_text": "Gustave Eiffel", "explanation": "x", "corrected": false, "reason": ""}
]`
	gw := &scriptedGateway{steps: []scriptStep{
		{text: draftsJSON},
		{text: optionsJSON},
		{text: explanationsJSON},
		{text: broken},
	}}

	_, err := NewGenerator(gw, "test-model").Generate(context.Background(), baseRequest())
	if err == nil {
		t.Fatal("expected hard failure when answer matches no option")
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageVerification {
		t.Errorf("expected verification stage error, got %v", err)
	}
}

func TestGenerate_DuplicateSweepAfterFactCheck(t *testing.T) {
	shortenStageDelay(t)
	// Fact-check rewrites question 1 into a duplicate of question 0; the
	// sweep keeps the first occurrence.
	dupAfterCheck := `[
	{"question": "What is the capital of France?", "options": ["Paris", "London", "Rome", "Berlin"], "correct_answer_text": "Paris", "explanation": "x", "corrected": false, "reason": ""},
	{"question": "WHAT IS THE CAPITAL OF FRANCE?", "options": ["Thames", "Seine", "Danube", "Rhine"], "correct_answer_text": "Seine", "explanation": "x", "corrected": true, "reason": "rewrote"},
	{"question": "Who designed the Eiffel Tower?", "options": ["Le Corbusier", "Haussmann", "Gustave Eiffel", "Viollet-le-Duc"], "correct_answer_text": "Gustave Eiffel", "explanation": "x", "corrected": false, "reason": ""}
]`
	gw := &scriptedGateway{steps: []scriptStep{
		{text: draftsJSON},
		{text: optionsJSON},
		{text: explanationsJSON},
		{text: dupAfterCheck},
	}}

	result, err := NewGenerator(gw, "test-model").Generate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Questions) != 2 {
		t.Fatalf("expected duplicate dropped, got %d questions", len(result.Questions))
	}
	if result.Questions[0].Options[0] != "Paris" {
		t.Errorf("expected first occurrence kept")
	}
}

func TestGenerate_ProgressReported(t *testing.T) {
	shortenStageDelay(t)
	gw := &scriptedGateway{steps: []scriptStep{
		{text: draftsJSON},
		{text: optionsJSON},
		{text: explanationsJSON},
		{text: factCheckCleanJSON},
	}}

	var stages []string
	req := baseRequest()
	req.OnProgress = func(stage string, index int) {
		stages = append(stages, stage)
	}

	if _, err := NewGenerator(gw, "test-model").Generate(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{StageDrafting, StageOptions, StageExplanations, StageFactCheck, StageVerification}
	if len(stages) != len(expected) {
		t.Fatalf("expected %d progress events, got %d (%v)", len(expected), len(stages), stages)
	}
	for i := range expected {
		if stages[i] != expected[i] {
			t.Errorf("progress %d: expected %s, got %s", i, expected[i], stages[i])
		}
	}
}

func TestVerify_ReconcilesIndexFromText(t *testing.T) {
	candidates := []models.CandidateQuestion{
		{
			Text:              "What is the capital of France?",
			Options:           []string{"Paris", "London", "Rome", "Berlin"},
			CorrectAnswerText: "  paris ",
			Explanation:       "x",
		},
	}

	records, err := verify(candidates, models.DifficultyIntermediate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0].CorrectAnswerIndex != 0 {
		t.Errorf("expected index 0, got %d", records[0].CorrectAnswerIndex)
	}
}

func TestVerify_RejectsDuplicateOptions(t *testing.T) {
	candidates := []models.CandidateQuestion{
		{
			Text:              "q",
			Options:           []string{"Paris", "paris ", "Rome", "Berlin"},
			CorrectAnswerText: "Paris",
		},
	}

	if _, err := verify(candidates, models.DifficultyBeginner); err == nil {
		t.Fatal("expected error for duplicate options")
	}
}
