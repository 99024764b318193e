package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/procktails/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

const snapshotKey = "catalog:snapshot"

// RedisSnapshotStore keeps the last good catalog batch in Redis without an
// expiry: stale data past the freshness window is exactly what the fallback
// path is for.
type RedisSnapshotStore struct {
	client *redis.Client
}

func NewRedisSnapshotStore(client *redis.Client) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client}
}

type snapshotPayload struct {
	FetchedAt time.Time             `json:"fetched_at"`
	Entries   []domain.CatalogEntry `json:"entries"`
}

func (s *RedisSnapshotStore) Load(ctx context.Context) ([]domain.CatalogEntry, time.Time, error) {
	data, err := s.client.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis get failed: %w", err)
	}

	var payload snapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshal snapshot failed: %w", err)
	}

	return payload.Entries, payload.FetchedAt, nil
}

func (s *RedisSnapshotStore) Save(ctx context.Context, entries []domain.CatalogEntry, fetchedAt time.Time) error {
	data, err := json.Marshal(snapshotPayload{FetchedAt: fetchedAt, Entries: entries})
	if err != nil {
		return fmt.Errorf("marshal snapshot failed: %w", err)
	}

	if err := s.client.Set(ctx, snapshotKey, string(data), 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
