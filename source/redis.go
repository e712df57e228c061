package source

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ZaguanLabs/livetl"
)

// Redis reads a dictionary stored as a Redis hash (field = source text,
// value = target text).
type Redis struct {
	client redis.Cmdable
	key    string
}

// RedisConfig holds configuration for a Redis dictionary source.
type RedisConfig struct {
	URL string // Redis connection URL (e.g., "redis://localhost:6379")
	Key string // Hash key (default: "livetl:dictionary")
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, &livetl.SourceError{Source: cfg.URL, Message: "parsing URL", Cause: err}
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, &livetl.SourceError{Source: cfg.URL, Message: "connecting", Cause: err, Retryable: true}
	}

	return NewRedisFromClient(client, cfg.Key), nil
}

// NewRedisFromClient creates a Redis source from an existing client.
func NewRedisFromClient(client redis.Cmdable, key string) *Redis {
	if key == "" {
		key = "livetl:dictionary"
	}
	return &Redis{client: client, key: key}
}

// Name returns the hash key.
func (r *Redis) Name() string { return "redis:" + r.key }

// Load fetches the whole hash. A missing key yields an empty dictionary.
func (r *Redis) Load(ctx context.Context) (map[string]any, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, &livetl.SourceError{
			Source:    r.Name(),
			Message:   "HGETALL failed",
			Cause:     err,
			Retryable: retryableRedisError(err),
		}
	}

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out, nil
}

func retryableRedisError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// Server replies such as WRONGTYPE will not succeed on retry.
	var redisErr redis.Error
	return !errors.As(err, &redisErr)
}
