package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const pendingValue = "pending"

// RedisCommands is the subset of redis.Cmdable the store uses.
// *redis.Client and *redis.ClusterClient satisfy it.
type RedisCommands interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore shares keys across replicas. SETNX decides the owner.
type RedisStore struct {
	rdb RedisCommands
	ttl time.Duration
}

func NewRedisStore(rdb RedisCommands, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Claim(ctx context.Context, key string) (Result, error) {
	// two rounds cover a key expiring between SETNX and GET
	for i := 0; i < 2; i++ {
		ok, err := s.rdb.SetNX(ctx, key, pendingValue, s.ttl).Result()
		if err != nil {
			return Result{}, fmt.Errorf("idempotency claim: %w", err)
		}
		if ok {
			return Result{State: StateClaimed}, nil
		}

		val, err := s.rdb.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("idempotency lookup: %w", err)
		}
		if val == pendingValue {
			return Result{State: StateInProgress}, nil
		}
		id, err := uuid.Parse(val)
		if err != nil {
			return Result{}, fmt.Errorf("idempotency lookup: bad value %q: %w", val, err)
		}
		return Result{State: StateCompleted, OrderID: id}, nil
	}
	return Result{State: StateInProgress}, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, orderID uuid.UUID) error {
	if err := s.rdb.Set(ctx, key, orderID.String(), s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency complete: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}
