package handlers

import (
	"context"
	"net/http"
	"strconv"

	"quizsmith-backend/internal/middleware"
	"quizsmith-backend/internal/models"
)

type UsageReader interface {
	SummaryByUser(ctx context.Context, userID string) (*models.UsageSummary, error)
}

type AttemptReader interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.AttemptRecord, error)
}

// UsageHandler serves per-user token/cost totals and the attempt archive.
type UsageHandler struct {
	usage    UsageReader
	attempts AttemptReader
}

func NewUsageHandler(usage UsageReader, attempts AttemptReader) *UsageHandler {
	return &UsageHandler{usage: usage, attempts: attempts}
}

func (h *UsageHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	summary, err := h.usage.SummaryByUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch usage summary", r))
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *UsageHandler) Attempts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	attempts, err := h.attempts.ListByUser(r.Context(), userID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch attempts", r))
		return
	}
	if attempts == nil {
		attempts = []*models.AttemptRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"attempts": attempts})
}
