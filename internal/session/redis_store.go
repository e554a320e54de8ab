package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quizsmith-backend/internal/models"
)

const (
	sessionKeyPrefix = "quiz_session:"
	sessionIndexKey  = "quiz_session_index"
)

// RedisStore keeps sessions under TTL'd keys plus an index set so the sweeper
// can enumerate them. Redis expires the keys on its own; the sweep prunes the
// index and catches entries whose recorded expiry passed before the TTL fired.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, key string, sess *models.QuizSession, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+key, data, ttl)
	pipe.SAdd(ctx, sessionIndexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*models.QuizSession, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.client.SRem(ctx, sessionIndexKey, key)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess models.QuizSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if sess.Expired(time.Now()) {
		if delErr := s.Delete(ctx, key); delErr != nil {
			return nil, delErr
		}
		return nil, nil
	}

	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+key)
	pipe.SRem(ctx, sessionIndexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) SweepExpired(ctx context.Context) (int, error) {
	keys, err := s.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list session index: %w", err)
	}

	now := time.Now()
	count := 0
	for _, key := range keys {
		data, err := s.client.Get(ctx, sessionKeyPrefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			s.client.SRem(ctx, sessionIndexKey, key)
			count++
			continue
		}
		if err != nil {
			continue
		}

		var sess models.QuizSession
		if json.Unmarshal(data, &sess) != nil || sess.Expired(now) {
			if s.Delete(ctx, key) == nil {
				count++
			}
		}
	}

	return count, nil
}
