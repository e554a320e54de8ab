package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageEvent records one completion call for token/cost accounting.
type UsageEvent struct {
	ID               uuid.UUID `json:"id"`
	UserID           string    `json:"user_id"`
	Model            string    `json:"model"`
	Stage            string    `json:"stage"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	EstimatedCostUSD float64   `json:"estimated_cost_usd"`
	CreatedAt        time.Time `json:"created_at"`
}

type UsageSummary struct {
	TotalCalls            int     `json:"total_calls"`
	TotalPromptTokens     int64   `json:"total_prompt_tokens"`
	TotalCompletionTokens int64   `json:"total_completion_tokens"`
	TotalCostUSD          float64 `json:"total_cost_usd"`
}

// AttemptRecord archives a graded submission for analytics.
type AttemptRecord struct {
	ID             uuid.UUID `json:"id"`
	UserID         string    `json:"user_id"`
	SessionID      string    `json:"session_id"`
	Topic          string    `json:"topic"`
	Difficulty     string    `json:"difficulty"`
	TotalQuestions int       `json:"total_questions"`
	CorrectCount   int       `json:"correct_count"`
	ScorePercent   int       `json:"score_percent"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	CreatedAt      time.Time `json:"created_at"`
}
