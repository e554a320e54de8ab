package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"quizsmith-backend/internal/models"
)

type AttemptRepo struct {
	pool *pgxpool.Pool
}

func NewAttemptRepo(pool *pgxpool.Pool) *AttemptRepo {
	return &AttemptRepo{pool: pool}
}

func (r *AttemptRepo) Create(ctx context.Context, a *models.AttemptRecord) error {
	a.ID = uuid.New()

	query := `INSERT INTO quiz_attempts (id, user_id, session_id, topic, difficulty, total_questions, correct_count, score_percent, elapsed_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		a.ID, a.UserID, a.SessionID, a.Topic, a.Difficulty,
		a.TotalQuestions, a.CorrectCount, a.ScorePercent, a.ElapsedSeconds,
	).Scan(&a.CreatedAt)
}

func (r *AttemptRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AttemptRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `SELECT id, user_id, session_id, topic, difficulty, total_questions, correct_count, score_percent, elapsed_seconds, created_at
		FROM quiz_attempts WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.AttemptRecord
	for rows.Next() {
		a := &models.AttemptRecord{}
		err := rows.Scan(&a.ID, &a.UserID, &a.SessionID, &a.Topic, &a.Difficulty,
			&a.TotalQuestions, &a.CorrectCount, &a.ScorePercent, &a.ElapsedSeconds, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}

	return attempts, rows.Err()
}
