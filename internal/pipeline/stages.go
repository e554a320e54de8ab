package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"quizsmith-backend/internal/models"
)

const factCheckBatchSize = 5

// draftQuestions is stage 1: question texts only. Post-conditions: exactly N
// non-empty strings, no duplicates under normalization.
func (r *run) draftQuestions(ctx context.Context) ([]string, error) {
	prompt := buildQuestionPrompt(r.req.Topic, r.req.Difficulty, r.req.NumQuestions, r.req.CourseContext)
	raw, err := r.call(ctx, StageDrafting, prompt, 0.6, 4096)
	if err != nil {
		return nil, err
	}

	var drafts []string
	if err := decodeArray(raw, &drafts); err != nil {
		return nil, semanticf("drafting: %v", err)
	}
	if len(drafts) != r.req.NumQuestions {
		return nil, semanticf("drafting: expected %d questions, got %d", r.req.NumQuestions, len(drafts))
	}

	seen := make(map[string]struct{}, len(drafts))
	for i, d := range drafts {
		drafts[i] = strings.TrimSpace(d)
		if drafts[i] == "" {
			return nil, semanticf("drafting: question %d is empty", i)
		}
		key := normalizeText(drafts[i])
		if _, dup := seen[key]; dup {
			// Uniqueness cannot be fixed locally; re-run the whole stage.
			return nil, semanticf("drafting: duplicate question %q", drafts[i])
		}
		seen[key] = struct{}{}
	}

	return drafts, nil
}

type optionsEntry struct {
	Question          string   `json:"question"`
	Options           []string `json:"options"`
	CorrectAnswerText string   `json:"correct_answer_text"`
}

// generateOptions is stage 2: one batched call covering all questions, so the
// call count stays constant in N. Extra entries are dropped; a short response
// re-runs the stage.
func (r *run) generateOptions(ctx context.Context, drafts []string) ([]models.CandidateQuestion, error) {
	raw, err := r.call(ctx, StageOptions, buildOptionsPrompt(drafts), 0.4, 8192)
	if err != nil {
		return nil, err
	}

	var entries []optionsEntry
	if err := decodeArray(raw, &entries); err != nil {
		return nil, semanticf("options: %v", err)
	}
	if len(entries) < len(drafts) {
		return nil, semanticf("options: expected %d entries, got %d", len(drafts), len(entries))
	}
	if len(entries) > len(drafts) {
		log.Printf("pipeline: options stage returned %d entries for %d questions, dropping extras", len(entries), len(drafts))
		entries = entries[:len(drafts)]
	}

	candidates := make([]models.CandidateQuestion, len(drafts))
	for i, e := range entries {
		if len(e.Options) != 4 {
			return nil, semanticf("options: entry %d has %d options, want 4", i, len(e.Options))
		}
		if !distinctNormalized(e.Options) {
			return nil, semanticf("options: entry %d has duplicate options", i)
		}
		if strings.TrimSpace(e.CorrectAnswerText) == "" {
			return nil, semanticf("options: entry %d is missing correct_answer_text", i)
		}

		// The drafted text is authoritative; the model's echo of the
		// question is not trusted.
		candidates[i] = models.CandidateQuestion{
			Text:              drafts[i],
			Options:           e.Options,
			CorrectAnswerText: strings.TrimSpace(e.CorrectAnswerText),
		}
	}

	return candidates, nil
}

// attachExplanations is stage 3. The batched call is preferred; a structural
// failure degrades to per-question calls, and a static explanation covers any
// question that still has none. The stage therefore never fails the quiz.
func (r *run) attachExplanations(ctx context.Context, candidates []models.CandidateQuestion) {
	raw, err := r.call(ctx, StageExplanations, buildExplanationsPrompt(candidates), 0.5, 8192)
	if err == nil {
		var explanations []string
		if decodeErr := decodeArray(raw, &explanations); decodeErr == nil && len(explanations) == len(candidates) {
			for i := range candidates {
				candidates[i].Explanation = strings.TrimSpace(explanations[i])
				if candidates[i].Explanation == "" {
					candidates[i].Explanation = staticExplanation(candidates[i])
				}
			}
			return
		}
		log.Printf("pipeline: batched explanations unusable, falling back to per-question generation")
	} else {
		log.Printf("pipeline: batched explanations failed (%v), falling back to per-question generation", err)
	}

	for i := range candidates {
		raw, err := r.call(ctx, StageExplanations, buildSingleExplanationPrompt(candidates[i]), 0.5, 512)
		if err != nil {
			candidates[i].Explanation = staticExplanation(candidates[i])
			continue
		}
		explanation := strings.TrimSpace(raw)
		if explanation == "" {
			explanation = staticExplanation(candidates[i])
		}
		candidates[i].Explanation = explanation
	}
}

func staticExplanation(c models.CandidateQuestion) string {
	return fmt.Sprintf("The correct answer is %s.", c.CorrectAnswerText)
}

type factCheckEntry struct {
	Question          string   `json:"question"`
	Options           []string `json:"options"`
	CorrectAnswerText string   `json:"correct_answer_text"`
	Explanation       string   `json:"explanation"`
	Corrected         bool     `json:"corrected"`
	Reason            string   `json:"reason"`
}

// factCheck is stage 4: mini-batches bound prompt size and the blast radius of
// one bad response. A batch whose reply cannot be used is kept unmodified
// (fail-open); its output is still unverified candidate data either way, since
// stage 5 re-checks everything.
func (r *run) factCheck(ctx context.Context, candidates []models.CandidateQuestion) []models.CandidateQuestion {
	checked := make([]models.CandidateQuestion, 0, len(candidates))

	for start := 0; start < len(candidates); start += factCheckBatchSize {
		end := start + factCheckBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		raw, err := r.call(ctx, StageFactCheck, buildFactCheckPrompt(batch), 0.2, 8192)
		if err != nil {
			log.Printf("pipeline: fact-check batch %d-%d failed (%v), keeping items unmodified", start, end, err)
			checked = append(checked, batch...)
			continue
		}

		var entries []factCheckEntry
		if err := decodeArray(raw, &entries); err != nil || len(entries) != len(batch) {
			log.Printf("pipeline: fact-check batch %d-%d returned unusable response, keeping items unmodified", start, end)
			checked = append(checked, batch...)
			continue
		}

		for i, e := range entries {
			if len(e.Options) != 4 || strings.TrimSpace(e.Question) == "" || strings.TrimSpace(e.CorrectAnswerText) == "" {
				log.Printf("pipeline: fact-check produced malformed item %d, keeping original", start+i)
				checked = append(checked, batch[i])
				continue
			}
			if e.Corrected {
				log.Printf("pipeline: fact-check corrected question %d: %s", start+i, e.Reason)
			}
			checked = append(checked, models.CandidateQuestion{
				Text:              strings.TrimSpace(e.Question),
				Options:           e.Options,
				CorrectAnswerText: strings.TrimSpace(e.CorrectAnswerText),
				Explanation:       strings.TrimSpace(e.Explanation),
			})
		}
	}

	return checked
}

// dedupeCandidates keeps the first occurrence of each normalized question text.
// The fact-check rewrite can introduce collisions that stage 1 already ruled
// out, so the check runs again here.
func dedupeCandidates(candidates []models.CandidateQuestion) []models.CandidateQuestion {
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		key := normalizeText(c.Text)
		if _, dup := seen[key]; dup {
			log.Printf("pipeline: dropping duplicate question after fact-check: %q", c.Text)
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// verify is stage 5: reconcile the claimed answer text against the options. An
// answer that matches no option makes the whole generation fail; guessing an
// index would silently corrupt grading.
func verify(candidates []models.CandidateQuestion, difficulty string) ([]models.QuestionRecord, error) {
	records := make([]models.QuestionRecord, 0, len(candidates))

	for i, c := range candidates {
		if len(c.Options) != 4 {
			return nil, fmt.Errorf("question %d has %d options, want 4", i, len(c.Options))
		}
		if !distinctNormalized(c.Options) {
			return nil, fmt.Errorf("question %d has duplicate options after corrections", i)
		}

		answerKey := normalizeText(c.CorrectAnswerText)
		index := -1
		for j, opt := range c.Options {
			if normalizeText(opt) == answerKey {
				index = j
				break
			}
		}
		if index < 0 {
			return nil, fmt.Errorf("question %d: correct answer %q matches none of the options", i, c.CorrectAnswerText)
		}

		// Checked explicitly rather than assumed: this is the invariant
		// grading depends on.
		if normalizeText(c.Options[index]) != answerKey {
			return nil, fmt.Errorf("question %d: reconciled index %d does not hold the correct answer", i, index)
		}

		records = append(records, models.QuestionRecord{
			Text:               c.Text,
			Options:            c.Options,
			CorrectAnswerIndex: index,
			Explanation:        c.Explanation,
			Difficulty:         difficulty,
		})
	}

	return records, nil
}
