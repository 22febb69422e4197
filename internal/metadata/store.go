package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tubefetch/internal/entity"

	"github.com/redis/go-redis/v9"
)

// Store is a second cache level, typically shared between instances.
type Store interface {
	// Load returns the entry for key; ok is false on a miss.
	Load(ctx context.Context, key string) (meta *entity.VideoMetadata, ok bool, err error)
	// Save stores meta under key for ttl.
	Save(ctx context.Context, key string, meta *entity.VideoMetadata, ttl time.Duration) error
}

const redisKeyPrefix = "tubefetch:info:"

// RedisStore keeps metadata as JSON strings in Redis.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to the Redis server at rawURL and checks it responds.
func NewRedisStore(ctx context.Context, rawURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (*entity.VideoMetadata, bool, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var meta entity.VideoMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, false, fmt.Errorf("decode cached metadata: %w", err)
	}

	return &meta, true, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, meta *entity.VideoMetadata, ttl time.Duration) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Close closes the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
