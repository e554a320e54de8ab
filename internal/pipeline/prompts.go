package pipeline

import (
	"fmt"
	"strings"

	"quizsmith-backend/internal/models"
)

func difficultyGuidance(difficulty string) string {
	switch difficulty {
	case models.DifficultyBeginner:
		return "Beginner = direct recall of fundamental facts and definitions."
	case models.DifficultyIntermediate:
		return "Intermediate = application of concepts to straightforward situations."
	case models.DifficultyAdvanced:
		return "Advanced = analysis and comparison of related concepts."
	default:
		return "Expert = synthesis, edge cases, and inference beyond the obvious."
	}
}

func buildQuestionPrompt(topic, difficulty string, count int, courseContext string) string {
	var b strings.Builder

	b.WriteString("You are an expert educational assessor. Generate quiz question texts on the topic below.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON array of strings. No preamble, no markdown, no backticks.\n\n")
	b.WriteString(fmt.Sprintf("Generate exactly %d question texts about: %s\n", count, topic))
	b.WriteString(fmt.Sprintf("Difficulty: %s\n%s\n", difficulty, difficultyGuidance(difficulty)))
	b.WriteString("Do not include answer options. Every question must test a different fact or concept; no rephrasings of the same question.\n")

	if courseContext != "" {
		b.WriteString("\nGround the questions in this course material:\n---CONTEXT---\n")
		b.WriteString(courseContext)
		b.WriteString("\n---END---\n")
	}

	return b.String()
}

func buildOptionsPrompt(questions []string) string {
	var b strings.Builder

	b.WriteString("You are an expert educational assessor. For each question below, provide 4 answer options and identify the correct answer.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")
	b.WriteString(fmt.Sprintf("There are exactly %d questions. Return exactly one entry per question, in the same order.\n", len(questions)))
	b.WriteString(`
JSON schema per entry:
{"question": "string", "options": ["string", "string", "string", "string"], "correct_answer_text": "string"}

Rules:
- Exactly 4 options, all plausible, no two options with the same meaning.
- correct_answer_text must be copied verbatim from one of the 4 options.
- Distractors must be factually wrong for the question, not merely less precise.
`)

	b.WriteString("\nQuestions:\n")
	for i, q := range questions {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, q))
	}

	return b.String()
}

func buildExplanationsPrompt(candidates []models.CandidateQuestion) string {
	var b strings.Builder

	b.WriteString("You are an expert educational assessor. Write a short explanation for the correct answer of each question below.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON array of strings, one explanation per question, in the same order. No preamble, no markdown, no backticks.\n\n")
	b.WriteString(fmt.Sprintf("There are exactly %d questions. Each explanation must be 1-2 sentences.\n\n", len(candidates)))

	for i, c := range candidates {
		b.WriteString(fmt.Sprintf("%d. Question: %s\n   Correct answer: %s\n", i+1, c.Text, c.CorrectAnswerText))
	}

	return b.String()
}

func buildSingleExplanationPrompt(c models.CandidateQuestion) string {
	var b strings.Builder

	b.WriteString("Explain in 1-2 sentences why the answer below is correct. Return plain text only.\n\n")
	b.WriteString(fmt.Sprintf("Question: %s\nCorrect answer: %s\n", c.Text, c.CorrectAnswerText))

	return b.String()
}

func buildFactCheckPrompt(batch []models.CandidateQuestion) string {
	var b strings.Builder

	b.WriteString("You are a meticulous fact checker reviewing quiz questions. Verify each item below for factual accuracy and internal consistency.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")
	b.WriteString(fmt.Sprintf("There are exactly %d items. Return exactly one entry per item, in the same order.\n", len(batch)))
	b.WriteString(`
For each item: if the question, options, correct answer, and explanation are all accurate and consistent, return it unchanged with "corrected": false. If anything is wrong, rewrite the faulty fields and return "corrected": true with a short reason.

JSON schema per entry:
{"question": "string", "options": ["string", "string", "string", "string"], "correct_answer_text": "string", "explanation": "string", "corrected": true|false, "reason": "string"}

Rules:
- Keep exactly 4 options.
- correct_answer_text must be copied verbatim from one of the options you return.
- Never change an item just for style.
`)

	b.WriteString("\nItems:\n")
	for i, c := range batch {
		b.WriteString(fmt.Sprintf("%d. Question: %s\n   Options: %s\n   Correct answer: %s\n   Explanation: %s\n",
			i+1, c.Text, strings.Join(c.Options, " | "), c.CorrectAnswerText, c.Explanation))
	}

	return b.String()
}
