package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by RedisStore.
const DefaultRedisPrefix = "storyflow"

// RedisStore is a Redis implementation of Store[S].
//
// Keys:
//   - <prefix>:steps:<session>  sorted set of StepRecord JSON scored by tick
//   - <prefix>:slots            hash of slot id -> Checkpoint JSON
//
// When ttl is non-zero every write refreshes the expiry of the session's
// history. Save slots never expire.
type RedisStore[S any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects using a redis:// URL and verifies the connection.
func NewRedisStore[S any](ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore[S], error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient[S](client, DefaultRedisPrefix, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient[S any](client *redis.Client, prefix string, ttl time.Duration) *RedisStore[S] {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore[S]{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore[S]) stepsKey(sessionID string) string {
	return fmt.Sprintf("%s:steps:%s", r.prefix, sessionID)
}

func (r *RedisStore[S]) slotsKey() string {
	return r.prefix + ":slots"
}

// SaveStep implements Store.
func (r *RedisStore[S]) SaveStep(ctx context.Context, sessionID string, tick int, blockID string, state S) error {
	data, err := json.Marshal(StepRecord[S]{Tick: tick, BlockID: blockID, State: state})
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	key := r.stepsKey(sessionID)
	score := strconv.Itoa(tick)

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, score, score)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(tick), Member: string(data)})
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}
	return nil
}

// LoadLatest implements Store.
func (r *RedisStore[S]) LoadLatest(ctx context.Context, sessionID string) (state S, tick int, err error) {
	var zero S

	members, err := r.client.ZRevRangeWithScores(ctx, r.stepsKey(sessionID), 0, 0).Result()
	if err != nil {
		return zero, 0, fmt.Errorf("failed to load latest step: %w", err)
	}
	if len(members) == 0 {
		return zero, 0, ErrNotFound
	}

	raw, ok := members[0].Member.(string)
	if !ok {
		return zero, 0, fmt.Errorf("unexpected member type %T", members[0].Member)
	}

	var record StepRecord[S]
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return record.State, record.Tick, nil
}

// SaveCheckpoint implements Store.
func (r *RedisStore[S]) SaveCheckpoint(ctx context.Context, slot string, state S, tick int) error {
	data, err := json.Marshal(Checkpoint[S]{ID: slot, State: state, Tick: tick})
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := r.client.HSet(ctx, r.slotsKey(), slot, string(data)).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint implements Store.
func (r *RedisStore[S]) LoadCheckpoint(ctx context.Context, slot string) (state S, tick int, err error) {
	var zero S

	raw, err := r.client.HGet(ctx, r.slotsKey(), slot).Result()
	if errors.Is(err, redis.Nil) {
		return zero, 0, ErrNotFound
	}
	if err != nil {
		return zero, 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cp Checkpoint[S]
	if err := json.Unmarshal([]byte(raw), &cp); err != nil {
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return cp.State, cp.Tick, nil
}

// ListCheckpoints implements Store.
func (r *RedisStore[S]) ListCheckpoints(ctx context.Context) ([]string, error) {
	slots, err := r.client.HKeys(ctx, r.slotsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	sort.Strings(slots)
	return slots, nil
}

// DeleteCheckpoint implements Store.
func (r *RedisStore[S]) DeleteCheckpoint(ctx context.Context, slot string) error {
	n, err := r.client.HDel(ctx, r.slotsKey(), slot).Result()
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisStore[S]) Close() error {
	return r.client.Close()
}

// Ping verifies the connection is alive.
func (r *RedisStore[S]) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
