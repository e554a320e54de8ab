package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"quizsmith-backend/internal/middleware"
	"quizsmith-backend/internal/models"
)

// QuizService is the generate/submit surface the handler depends on.
type QuizService interface {
	GenerateQuiz(ctx context.Context, userID string, req models.GenerateQuizRequest) (*models.GenerateQuizResponse, error)
	SubmitQuiz(ctx context.Context, userID string, req models.SubmitQuizRequest) (*models.GradingResult, error)
}

type QuizHandler struct {
	quizService QuizService
}

func NewQuizHandler(quizService QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

func (h *QuizHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := middleware.GetUserID(r.Context())

	resp, err := h.quizService.GenerateQuiz(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := middleware.GetUserID(r.Context())

	result, err := h.quizService.SubmitQuiz(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
