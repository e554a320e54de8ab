package session

import (
	"strings"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestCreateBinding_Deterministic(t *testing.T) {
	p := NewProtocol("test-secret")

	h1 := p.CreateBinding("s1", 1000, 600)
	h2 := p.CreateBinding("s1", 1000, 600)
	if h1 != h2 {
		t.Error("binding must be deterministic for identical inputs")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestVerifyBinding_RejectsAnyAlteredParameter(t *testing.T) {
	p := NewProtocol("test-secret")
	hash := p.CreateBinding("s1", 1000, 600)

	tests := []struct {
		name      string
		sessionID string
		startTime int64
		timeLimit int
		hash      string
		want      bool
	}{
		{"unaltered", "s1", 1000, 600, hash, true},
		{"session id altered", "s2", 1000, 600, hash, false},
		{"start time altered", "s1", 1001, 600, hash, false},
		{"time limit altered", "s1", 1000, 601, hash, false},
		{"hash altered", "s1", 1000, 600, hash[:63] + "0", false},
		{"empty hash", "s1", 1000, 600, "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.VerifyBinding(tc.sessionID, tc.startTime, tc.timeLimit, tc.hash); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestVerifyBinding_DifferentSecretsDisagree(t *testing.T) {
	p1 := NewProtocol("secret-one")
	p2 := NewProtocol("secret-two")

	hash := p1.CreateBinding("s1", 1000, 600)
	if p2.VerifyBinding("s1", 1000, 600, hash) {
		t.Error("binding from another secret must not verify")
	}
}

func TestValidateSubmission_TimeBoundary(t *testing.T) {
	p := NewProtocol("test-secret")
	const startTime = int64(1_000_000)
	const timeLimit = 600
	hash := p.CreateBinding("s1", startTime, timeLimit)

	answers := []*int{intPtr(0), intPtr(1)}

	tests := []struct {
		name       string
		submitTime int64
		valid      bool
	}{
		{"well within limit", startTime + 30_000, true},
		{"exactly at grace boundary", startTime + int64(timeLimit+GracePeriodSeconds)*1000, true},
		{"one millisecond past", startTime + int64(timeLimit+GracePeriodSeconds)*1000 + 1, false},
		{"before start", startTime - 1, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			check := p.ValidateSubmission(SubmissionInput{
				SessionID:          "s1",
				StartTime:          startTime,
				SubmitTime:         tc.submitTime,
				TimeLimitSeconds:   timeLimit,
				SuppliedHash:       hash,
				UserAnswers:        answers,
				CorrectAnswerCount: 2,
			})
			if check.Valid != tc.valid {
				t.Errorf("expected valid=%v, errors: %v", tc.valid, check.Errors)
			}
		})
	}
}

func TestValidateSubmission_CollectsAllErrors(t *testing.T) {
	p := NewProtocol("test-secret")

	// Tampered hash, time exceeded, wrong answer count, out-of-range answer.
	check := p.ValidateSubmission(SubmissionInput{
		SessionID:          "s1",
		StartTime:          0,
		SubmitTime:         100_000_000,
		TimeLimitSeconds:   600,
		SuppliedHash:       "bogus",
		UserAnswers:        []*int{intPtr(7)},
		CorrectAnswerCount: 3,
	})

	if check.Valid {
		t.Fatal("expected invalid submission")
	}
	if len(check.Errors) != 4 {
		t.Fatalf("expected all 4 violations collected, got %d: %v", len(check.Errors), check.Errors)
	}
}

func TestValidateSubmission_NilAnswersAllowed(t *testing.T) {
	p := NewProtocol("test-secret")
	hash := p.CreateBinding("s1", 1000, 600)

	check := p.ValidateSubmission(SubmissionInput{
		SessionID:          "s1",
		StartTime:          1000,
		SubmitTime:         31_000,
		TimeLimitSeconds:   600,
		SuppliedHash:       hash,
		UserAnswers:        []*int{nil, intPtr(2), nil},
		CorrectAnswerCount: 3,
	})

	if !check.Valid {
		t.Errorf("nil answers are skipped questions, not errors: %v", check.Errors)
	}
	if check.ActualElapsedSeconds != 30 {
		t.Errorf("expected 30s elapsed, got %d", check.ActualElapsedSeconds)
	}
}

func TestGenerateSessionID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateSessionID("user-1", "go:topic")
		if seen[id] {
			t.Fatalf("duplicate session id after %d iterations", i)
		}
		seen[id] = true
		if strings.TrimSpace(id) == "" || len(id) != 32 {
			t.Fatalf("unexpected session id shape: %q", id)
		}
	}
}
