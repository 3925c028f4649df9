package cursor

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps read cursors in one hash per member: field = thread id,
// value = RFC3339Nano watermark. Advance is read-then-write; last-writer-wins
// is acceptable because the value only moves forward.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "cursor:"}, nil
}

// NewRedisStoreWithClient wraps an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "cursor:"}
}

func (s *RedisStore) key(memberID string) string {
	return s.prefix + memberID
}

func (s *RedisStore) Advance(ctx context.Context, memberID, threadID string, t time.Time) error {
	current, err := s.Get(ctx, memberID, threadID)
	if err != nil {
		return err
	}
	if !t.After(current) {
		return nil
	}
	if err := s.client.HSet(ctx, s.key(memberID), threadID, t.Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, memberID, threadID string) (time.Time, error) {
	raw, err := s.client.HGet(ctx, s.key(memberID), threadID).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get cursor: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cursor watermark: %w", err)
	}
	return t, nil
}

func (s *RedisStore) All(ctx context.Context, memberID string) (map[string]time.Time, error) {
	raw, err := s.client.HGetAll(ctx, s.key(memberID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	cursors := make(map[string]time.Time, len(raw))
	for threadID, value := range raw {
		t, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return nil, fmt.Errorf("parse cursor watermark: %w", err)
		}
		cursors[threadID] = t
	}
	return cursors, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
