package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix  = "promptopt:task:"
	redisMaxRetries = 5
)

// RedisBackend stores task states as JSON strings that expire after ttl.
// Expiry replaces purging.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

// NewRedisBackendFromURL connects using a redis:// URL and pings the server.
func NewRedisBackendFromURL(ctx context.Context, url string, ttl time.Duration) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("tasks: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("tasks: ping redis: %w", err)
	}
	return NewRedisBackend(client, ttl), nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func (r *RedisBackend) Save(ctx context.Context, s *State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("tasks: encode state: %w", err)
	}
	key := redisKeyPrefix + s.ID

	// Optimistic lock so a concurrent terminal write is never overwritten.
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var existing State
			if err := json.Unmarshal(cur, &existing); err == nil && existing.Status.Terminal() {
				return ErrTerminalState
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < redisMaxRetries; i++ {
		err = r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("tasks: save %s: %w", s.ID, err)
}

func (r *RedisBackend) Get(ctx context.Context, id string) (*State, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tasks: get %s: %w", id, err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("tasks: decode %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisBackend) Purge(context.Context, time.Time) (int, error) {
	return 0, nil
}
