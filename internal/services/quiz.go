package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"quizsmith-backend/internal/grading"
	"quizsmith-backend/internal/llm"
	"quizsmith-backend/internal/models"
	"quizsmith-backend/internal/pipeline"
	"quizsmith-backend/internal/session"
)

// QuizGenerator produces a verified question set or fails as a whole.
type QuizGenerator interface {
	Generate(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// UsageSink persists token accounting events. A nil sink disables accounting.
type UsageSink interface {
	CreateBatch(ctx context.Context, events []*models.UsageEvent) error
}

// AttemptSink archives graded submissions. A nil sink disables archiving.
type AttemptSink interface {
	Create(ctx context.Context, a *models.AttemptRecord) error
}

// QuizService owns the generate/submit lifecycle: pipeline orchestration,
// session issuance and validation, grading, and the analytics side effects.
type QuizService struct {
	generator QuizGenerator
	protocol  *session.Protocol
	store     session.Store
	usage     UsageSink
	attempts  AttemptSink
	publisher *redis.Client

	defaultTimeLimitSeconds int
	maxQuestions            int
	promptCostPerM          float64
	completionCostPerM      float64
}

func NewQuizService(
	generator QuizGenerator,
	protocol *session.Protocol,
	store session.Store,
	usage UsageSink,
	attempts AttemptSink,
	publisher *redis.Client,
	defaultTimeLimitSeconds int,
	maxQuestions int,
	promptCostPerM float64,
	completionCostPerM float64,
) *QuizService {
	return &QuizService{
		generator:               generator,
		protocol:                protocol,
		store:                   store,
		usage:                   usage,
		attempts:                attempts,
		publisher:               publisher,
		defaultTimeLimitSeconds: defaultTimeLimitSeconds,
		maxQuestions:            maxQuestions,
		promptCostPerM:          promptCostPerM,
		completionCostPerM:      completionCostPerM,
	}
}

var stageMessages = map[string]string{
	pipeline.StageDrafting:     "Drafting questions",
	pipeline.StageOptions:      "Generating answer options",
	pipeline.StageExplanations: "Writing explanations",
	pipeline.StageFactCheck:    "Fact-checking questions",
	pipeline.StageVerification: "Verifying answer keys",
}

// GenerateQuiz runs the pipeline, opens a single-use session around the result,
// and returns the client-safe payload. The answer key never leaves the store.
func (s *QuizService) GenerateQuiz(ctx context.Context, userID string, req models.GenerateQuizRequest) (*models.GenerateQuizResponse, error) {
	fieldErrors := make(map[string]string)
	if req.Topic == "" {
		fieldErrors["topic"] = "Topic is required"
	}
	if req.NumQuestions < 1 {
		fieldErrors["num_questions"] = "Question count must be at least 1"
	} else if req.NumQuestions > s.maxQuestions {
		fieldErrors["num_questions"] = fmt.Sprintf("Question count must not exceed %d", s.maxQuestions)
	}
	if req.Difficulty == "" {
		req.Difficulty = models.DifficultyIntermediate
	}
	if !models.ValidDifficulty(req.Difficulty) {
		fieldErrors["difficulty"] = "Difficulty must be one of: beginner, intermediate, advanced, expert"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	timeLimit := req.TimeLimitSeconds
	if timeLimit <= 0 {
		timeLimit = s.defaultTimeLimitSeconds
	}

	seed := uuid.NewString()

	result, err := s.generator.Generate(ctx, pipeline.Request{
		Topic:         req.Topic,
		Difficulty:    req.Difficulty,
		NumQuestions:  req.NumQuestions,
		CourseContext: req.CourseContext,
		OnProgress: func(stage string, stageIndex int) {
			s.publishProgress(ctx, userID, seed, stage, stageIndex)
		},
	})
	if err != nil {
		var stageErr *pipeline.StageError
		var gwErr *llm.GatewayError
		if errors.As(err, &stageErr) || errors.As(err, &gwErr) {
			log.Printf("Quiz generation failed for user %s: %v", userID, err)
			return nil, &UnavailableError{Message: "Quiz generation failed. Please try again."}
		}
		return nil, err
	}

	now := time.Now()
	startTime := now.UnixMilli()
	sessionID := session.GenerateSessionID(userID, seed)
	hash := s.protocol.CreateBinding(sessionID, startTime, timeLimit)

	ttl := time.Duration(timeLimit+session.GracePeriodSeconds)*time.Second + 30*time.Second
	sess := &models.QuizSession{
		SessionID:        sessionID,
		SessionHash:      hash,
		Questions:        result.Questions,
		UserID:           userID,
		StartTime:        startTime,
		TimeLimitSeconds: timeLimit,
		Topic:            req.Topic,
		Difficulty:       req.Difficulty,
		CreatedAt:        now,
		ExpiresAt:        now.Add(ttl),
	}
	if err := s.store.Put(ctx, sessionID, sess, ttl); err != nil {
		return nil, fmt.Errorf("failed to store quiz session: %w", err)
	}

	s.recordUsage(ctx, userID, result.Usage)

	return &models.GenerateQuizResponse{
		SessionID:        sessionID,
		SessionHash:      hash,
		StartTime:        startTime,
		TimeLimitSeconds: timeLimit,
		Questions:        grading.SanitizeForClient(result.Questions),
	}, nil
}

// SubmitQuiz validates the submission against the stored session, grades it,
// and consumes the session. A second submit for the same session sees not-found.
func (s *QuizService) SubmitQuiz(ctx context.Context, userID string, req models.SubmitQuizRequest) (*models.GradingResult, error) {
	if req.SessionID == "" {
		return nil, &NotFoundError{Message: "Quiz session not found or expired"}
	}

	sess, err := s.store.Get(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load quiz session: %w", err)
	}
	if sess == nil {
		return nil, &NotFoundError{Message: "Quiz session not found or expired"}
	}

	check := s.protocol.ValidateSubmission(session.SubmissionInput{
		SessionID:          sess.SessionID,
		StartTime:          sess.StartTime,
		SubmitTime:         req.SubmitTime,
		TimeLimitSeconds:   sess.TimeLimitSeconds,
		SuppliedHash:       req.SessionHash,
		UserAnswers:        req.UserAnswers,
		CorrectAnswerCount: len(sess.Questions),
	})
	if !check.Valid {
		return nil, &InvalidSubmissionError{Errors: check.Errors}
	}

	correctAnswers := make([]int, len(sess.Questions))
	for i, q := range sess.Questions {
		correctAnswers[i] = q.CorrectAnswerIndex
	}
	result := grading.Grade(req.UserAnswers, correctAnswers)

	if err := s.store.Delete(ctx, sess.SessionID); err != nil {
		log.Printf("Failed to delete consumed session %s: %v", sess.SessionID, err)
	}

	if s.attempts != nil {
		attempt := &models.AttemptRecord{
			UserID:         sess.UserID,
			SessionID:      sess.SessionID,
			Topic:          sess.Topic,
			Difficulty:     sess.Difficulty,
			TotalQuestions: result.TotalQuestions,
			CorrectCount:   result.CorrectCount,
			ScorePercent:   result.ScorePercent,
			ElapsedSeconds: check.ActualElapsedSeconds,
		}
		if err := s.attempts.Create(ctx, attempt); err != nil {
			log.Printf("Failed to archive attempt for session %s: %v", sess.SessionID, err)
		}
	}

	return &result, nil
}

func (s *QuizService) recordUsage(ctx context.Context, userID string, usage []pipeline.StageUsage) {
	if s.usage == nil || len(usage) == 0 {
		return
	}

	events := make([]*models.UsageEvent, 0, len(usage))
	for _, u := range usage {
		cost := float64(u.PromptTokens)*s.promptCostPerM/1e6 +
			float64(u.CompletionTokens)*s.completionCostPerM/1e6
		events = append(events, &models.UsageEvent{
			UserID:           userID,
			Model:            u.Model,
			Stage:            u.Stage,
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			EstimatedCostUSD: cost,
		})
	}

	if err := s.usage.CreateBatch(ctx, events); err != nil {
		log.Printf("Failed to record usage events for user %s: %v", userID, err)
	}
}

func (s *QuizService) publishProgress(ctx context.Context, userID, seed, stage string, stageIndex int) {
	if s.publisher == nil {
		return
	}

	msg := models.WSMessage{
		Type: "quiz_progress",
		Payload: models.ProgressUpdate{
			SessionSeed: seed,
			Stage:       stage,
			StageIndex:  stageIndex,
			StageCount:  pipeline.StageCount,
			Message:     stageMessages[stage],
		},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.publisher.Publish(ctx, "user_updates:"+userID, string(data))
}
