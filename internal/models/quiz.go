package models

import "fmt"

// Difficulty levels accepted by quiz generation.
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
	DifficultyExpert       = "expert"
)

func ValidDifficulty(d string) bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced, DifficultyExpert:
		return true
	}
	return false
}

// QuestionDraft is the stage-1 output: question text only, no options yet.
type QuestionDraft struct {
	Text string `json:"text"`
}

// CandidateQuestion carries a question through stages 2-4. CorrectAnswerText is
// whatever the model claimed; it is not trusted until verification reconciles it
// against Options.
type CandidateQuestion struct {
	Text              string   `json:"text"`
	Options           []string `json:"options"`
	CorrectAnswerText string   `json:"correct_answer_text"`
	Explanation       string   `json:"explanation"`
}

// QuestionRecord is the verified, server-held form. Options[CorrectAnswerIndex]
// matched the reconciled answer text at construction time.
type QuestionRecord struct {
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correct_answer_index"`
	Explanation        string   `json:"explanation"`
	Difficulty         string   `json:"difficulty"`
}

// SanitizedQuestion is the client-facing projection. It must never grow fields
// that reveal the answer key.
type SanitizedQuestion struct {
	Text       string   `json:"text"`
	Options    []string `json:"options"`
	Difficulty string   `json:"difficulty"`
}

type GenerateQuizRequest struct {
	Topic            string `json:"topic"`
	Difficulty       string `json:"difficulty"`
	NumQuestions     int    `json:"num_questions"`
	CourseContext    string `json:"course_context,omitempty"`
	TimeLimitSeconds int    `json:"time_limit_seconds,omitempty"`
}

type GenerateQuizResponse struct {
	SessionID        string              `json:"session_id"`
	SessionHash      string              `json:"session_hash"`
	StartTime        int64               `json:"start_time"`
	TimeLimitSeconds int                 `json:"time_limit_seconds"`
	Questions        []SanitizedQuestion `json:"questions"`
}

type SubmitQuizRequest struct {
	SessionID   string `json:"session_id"`
	SessionHash string `json:"session_hash"`
	UserAnswers []*int `json:"user_answers"`
	SubmitTime  int64  `json:"submit_time"`
}

type Mistake struct {
	QuestionIndex      int  `json:"question_index"`
	UserAnswerIndex    *int `json:"user_answer_index"`
	CorrectAnswerIndex int  `json:"correct_answer_index"`
}

type GradingResult struct {
	TotalQuestions int       `json:"total_questions"`
	CorrectCount   int       `json:"correct_count"`
	WrongCount     int       `json:"wrong_count"`
	ScorePercent   int       `json:"score_percent"`
	Mistakes       []Mistake `json:"mistakes"`
}

func (r GradingResult) String() string {
	return fmt.Sprintf("%d/%d (%d%%)", r.CorrectCount, r.TotalQuestions, r.ScorePercent)
}
