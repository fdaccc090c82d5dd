package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"lighthouse.app/cityintel/internal/model"
)

type redisPastIssueStore struct {
	client *redis.Client
	key    string
	limit  int
}

// NewRedisPastIssueStore stores the log as a JSON array under a single key.
func NewRedisPastIssueStore(client *redis.Client, key string, limit int) PastIssueStore {
	return &redisPastIssueStore{client: client, key: key, limit: limit}
}

func (s *redisPastIssueStore) Load(ctx context.Context) ([]model.PastIssue, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []model.PastIssue{}, nil
		}
		return nil, fmt.Errorf("loading past issues: %w", err)
	}

	var issues []model.PastIssue
	if err := json.Unmarshal(raw, &issues); err != nil {
		return nil, fmt.Errorf("decoding past issues: %w", err)
	}
	return issues, nil
}

func (s *redisPastIssueStore) Save(ctx context.Context, issues []model.PastIssue) error {
	raw, err := json.Marshal(trimPastIssues(issues, s.limit))
	if err != nil {
		return fmt.Errorf("encoding past issues: %w", err)
	}

	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("saving past issues: %w", err)
	}
	return nil
}
