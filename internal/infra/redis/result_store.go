package redis

import (
	"context"
	"encoding/json"

	"vuedu-quiz-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// lastResultKey is the fixed slot holding the most recent session summary.
const lastResultKey = "quiz:last_result"

// ResultStore persists the last-result summary to a fixed Redis key.
type ResultStore struct {
	client *redis.Client
}

func NewResultStore(client *redis.Client) *ResultStore {
	return &ResultStore{client: client}
}

func (s *ResultStore) SaveLastResult(ctx context.Context, summary domain.ResultSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, lastResultKey, data, 0).Err()
}

// LastResult reads back the saved summary; ok is false when the slot is empty.
func (s *ResultStore) LastResult(ctx context.Context) (domain.ResultSummary, bool, error) {
	data, err := s.client.Get(ctx, lastResultKey).Bytes()
	if err == redis.Nil {
		return domain.ResultSummary{}, false, nil
	}
	if err != nil {
		return domain.ResultSummary{}, false, err
	}
	var summary domain.ResultSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return domain.ResultSummary{}, false, err
	}
	return summary, true, nil
}
