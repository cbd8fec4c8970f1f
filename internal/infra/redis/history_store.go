package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quiz-session-engine/internal/domain"
)

// HistoryStore keeps each user's results as one JSON array under quizResults:{username}.
// Keys never expire.
type HistoryStore struct {
	client *redis.Client
}

func NewHistoryStore(client *redis.Client) *HistoryStore {
	return &HistoryStore{client: client}
}

func (h *HistoryStore) ReadHistory(ctx context.Context, username string) ([]domain.QuizResult, error) {
	raw, err := h.client.Get(ctx, domain.HistoryKey(username)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []domain.QuizResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	var results []domain.QuizResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("decode history for %s: %w", username, err)
	}
	return results, nil
}

func (h *HistoryStore) WriteHistory(ctx context.Context, username string, results []domain.QuizResult) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return h.client.Set(ctx, domain.HistoryKey(username), raw, 0).Err()
}
