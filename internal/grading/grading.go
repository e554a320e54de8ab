package grading

import (
	"math"

	"quizsmith-backend/internal/models"
)

// SanitizeForClient projects question records into the client-safe shape,
// dropping the answer index and explanation. Pure and total.
func SanitizeForClient(questions []models.QuestionRecord) []models.SanitizedQuestion {
	sanitized := make([]models.SanitizedQuestion, len(questions))
	for i, q := range questions {
		sanitized[i] = models.SanitizedQuestion{
			Text:       q.Text,
			Options:    q.Options,
			Difficulty: q.Difficulty,
		}
	}
	return sanitized
}

// Grade scores user answers against the answer key. A nil answer is a skipped
// question and counts as wrong, never as an error. Mistakes are reported in
// question order; mapping indices back to option text is the caller's job.
func Grade(userAnswers []*int, correctAnswers []int) models.GradingResult {
	total := len(correctAnswers)
	correct := 0
	var mistakes []models.Mistake

	for i, want := range correctAnswers {
		var got *int
		if i < len(userAnswers) {
			got = userAnswers[i]
		}

		if got != nil && *got == want {
			correct++
			continue
		}
		mistakes = append(mistakes, models.Mistake{
			QuestionIndex:      i,
			UserAnswerIndex:    got,
			CorrectAnswerIndex: want,
		})
	}

	score := 0
	if total > 0 {
		score = int(math.Round(float64(correct) / float64(total) * 100))
	}

	return models.GradingResult{
		TotalQuestions: total,
		CorrectCount:   correct,
		WrongCount:     total - correct,
		ScorePercent:   score,
		Mistakes:       mistakes,
	}
}
