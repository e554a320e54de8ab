package models

import "time"

// QuizSession is the server-held state between generation and submission. It
// contains the full answer key and must never be serialized to a client.
type QuizSession struct {
	SessionID        string           `json:"session_id"`
	SessionHash      string           `json:"session_hash"`
	Questions        []QuestionRecord `json:"questions"`
	UserID           string           `json:"user_id"`
	StartTime        int64            `json:"start_time"` // unix milliseconds
	TimeLimitSeconds int              `json:"time_limit_seconds"`
	Topic            string           `json:"topic"`
	Difficulty       string           `json:"difficulty"`
	CreatedAt        time.Time        `json:"created_at"`
	ExpiresAt        time.Time        `json:"expires_at"`
}

// Expired reports whether the session is past its expiry. Lazy reads and the
// eager sweeper must both use this predicate.
func (s *QuizSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
