package statstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/membo-ai/studykit/study"
)

const defaultTTL = 30 * 24 * time.Hour

// RedisStore is a Redis-backed Store using JSON serialization with
// TTL-based cleanup. Suitable for synced multi-device deployments.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets how long statistics records live. Default is 30 days.
// Zero means no expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the Redis key prefix. Default is "studykit".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Redis-backed statistics store.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithTTL(90 * 24 * time.Hour),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    defaultTTL,
		prefix: "studykit",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Save persists a record and indexes it by start time for listing.
// Uses a pipeline to batch the SET and index update into one round-trip.
func (s *RedisStore) Save(ctx context.Context, stats study.Statistics) error {
	if stats.SessionID == "" {
		return ErrInvalidID
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal statistics: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.sessionKey(stats.SessionID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(stats.StartedAt.UnixMilli()),
		Member: stats.SessionID,
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.indexKey(), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// Load retrieves a record by session ID.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (study.Statistics, error) {
	if sessionID == "" {
		return study.Statistics{}, ErrInvalidID
	}

	data, err := s.client.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return study.Statistics{}, ErrNotFound
		}
		return study.Statistics{}, fmt.Errorf("redis get failed: %w", err)
	}

	var stats study.Statistics
	if err := json.Unmarshal(data, &stats); err != nil {
		return study.Statistics{}, fmt.Errorf("failed to unmarshal statistics: %w", err)
	}
	return stats, nil
}

// List returns records newest first from the start-time index. Records
// whose TTL expired after indexing are skipped.
func (s *RedisStore) List(ctx context.Context, opts ListOptions) ([]study.Statistics, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis zrevrange failed: %w", err)
	}

	out := make([]study.Statistics, 0, len(ids))
	for _, id := range ids {
		stats, err := s.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if opts.Mode != "" && stats.Mode != opts.Mode {
			continue
		}
		out = append(out, stats)
	}
	return paginate(out, opts.Offset, opts.Limit), nil
}

// Delete removes a record and its index entry.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidID
	}

	pipe := s.client.Pipeline()
	delCmd := pipe.Del(ctx, s.sessionKey(sessionID))
	pipe.ZRem(ctx, s.indexKey(), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	if delCmd.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) sessionKey(id string) string {
	return s.prefix + ":stats:" + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":stats:by-start"
}
