package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"quizsmith-backend/internal/models"
)

type UsageRepo struct {
	pool *pgxpool.Pool
}

func NewUsageRepo(pool *pgxpool.Pool) *UsageRepo {
	return &UsageRepo{pool: pool}
}

func (r *UsageRepo) Create(ctx context.Context, e *models.UsageEvent) error {
	e.ID = uuid.New()

	query := `INSERT INTO usage_events (id, user_id, model, stage, prompt_tokens, completion_tokens, estimated_cost_usd)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		e.ID, e.UserID, e.Model, e.Stage, e.PromptTokens, e.CompletionTokens, e.EstimatedCostUSD,
	).Scan(&e.CreatedAt)
}

func (r *UsageRepo) CreateBatch(ctx context.Context, events []*models.UsageEvent) error {
	for _, e := range events {
		if err := r.Create(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *UsageRepo) SummaryByUser(ctx context.Context, userID string) (*models.UsageSummary, error) {
	s := &models.UsageSummary{}
	query := `SELECT COUNT(*),
		COALESCE(SUM(prompt_tokens), 0),
		COALESCE(SUM(completion_tokens), 0),
		COALESCE(SUM(estimated_cost_usd), 0)
		FROM usage_events WHERE user_id = $1`

	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.TotalCalls, &s.TotalPromptTokens, &s.TotalCompletionTokens, &s.TotalCostUSD,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}
