package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

// GracePeriodSeconds is the slack beyond the nominal time limit that absorbs
// network latency on submission.
const GracePeriodSeconds = 5

// AnonymousUser is the sentinel for requests without an authenticated identity.
const AnonymousUser = "anonymous"

// Protocol issues and checks tamper-evident session bindings. The client holds
// (sessionID, startTime, timeLimit, hash) but cannot forge any of them without
// the server-held signing key.
type Protocol struct {
	signingKey []byte
}

// NewProtocol derives a dedicated MAC key from the configured secret via
// HKDF-SHA256, so the raw secret is never used directly for signing.
func NewProtocol(secret string) *Protocol {
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("quiz-session-binding-v1"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		panic(fmt.Sprintf("failed to derive session signing key: %v", err))
	}
	return &Protocol{signingKey: key}
}

// CreateBinding returns the keyed digest over the session parameters. Pure
// function of its inputs plus the process-wide key.
func (p *Protocol) CreateBinding(sessionID string, startTime int64, timeLimitSeconds int) string {
	mac := hmac.New(sha256.New, p.signingKey)
	fmt.Fprintf(mac, "%s|%d|%d", sessionID, startTime, timeLimitSeconds)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyBinding recomputes the digest from the client-supplied parameters and
// compares in constant time.
func (p *Protocol) VerifyBinding(sessionID string, startTime int64, timeLimitSeconds int, suppliedHash string) bool {
	expected := p.CreateBinding(sessionID, startTime, timeLimitSeconds)
	return hmac.Equal([]byte(expected), []byte(suppliedHash))
}

// SubmissionInput carries everything the client sent plus the server-held
// question count. Times are unix milliseconds.
type SubmissionInput struct {
	SessionID          string
	StartTime          int64
	SubmitTime         int64
	TimeLimitSeconds   int
	SuppliedHash       string
	UserAnswers        []*int
	CorrectAnswerCount int
}

type SubmissionCheck struct {
	Valid                bool
	Errors               []string
	ActualElapsedSeconds int
}

// ValidateSubmission runs every check and collects all violations rather than
// stopping at the first, so a rejected caller sees the complete list.
func (p *Protocol) ValidateSubmission(in SubmissionInput) SubmissionCheck {
	var errs []string

	if !p.VerifyBinding(in.SessionID, in.StartTime, in.TimeLimitSeconds, in.SuppliedHash) {
		errs = append(errs, "session binding is invalid or has been tampered with")
	}

	elapsedMs := in.SubmitTime - in.StartTime
	maxMs := int64(in.TimeLimitSeconds+GracePeriodSeconds) * 1000
	switch {
	case elapsedMs < 0:
		errs = append(errs, "submission time precedes session start")
	case elapsedMs > maxMs:
		errs = append(errs, fmt.Sprintf("time limit exceeded: %ds elapsed, %ds allowed", elapsedMs/1000, in.TimeLimitSeconds+GracePeriodSeconds))
	}

	if len(in.UserAnswers) != in.CorrectAnswerCount {
		errs = append(errs, fmt.Sprintf("expected %d answers, got %d", in.CorrectAnswerCount, len(in.UserAnswers)))
	}
	for i, a := range in.UserAnswers {
		if a != nil && (*a < 0 || *a > 3) {
			errs = append(errs, fmt.Sprintf("answer %d is out of range: %d", i, *a))
		}
	}

	elapsedSec := int(elapsedMs / 1000)
	if elapsedMs < 0 {
		elapsedSec = 0
	}

	return SubmissionCheck{
		Valid:                len(errs) == 0,
		Errors:               errs,
		ActualElapsedSeconds: elapsedSec,
	}
}

// GenerateSessionID builds a collision-resistant identifier from the user, a
// caller seed, the current time, and random bytes. Never reused across quizzes.
func GenerateSessionID(userID, seed string) string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%x", userID, seed, time.Now().UnixNano(), buf)))
	return hex.EncodeToString(sum[:16])
}
