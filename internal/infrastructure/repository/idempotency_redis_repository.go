package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"user-api/internal/domain/idempotency"
	interfaces "user-api/internal/interfaces/infrastructure"

	"github.com/go-redis/redis/v8"
)

var ErrIdempotencyKeyNotFound = interfaces.ErrIdempotencyKeyNotFound

var _ interfaces.IdempotencyRepository = (*RedisIdempotencyRepository)(nil)

type RedisIdempotencyRepository struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisIdempotencyRepository(client redis.UniversalClient, ttl time.Duration) *RedisIdempotencyRepository {
	return &RedisIdempotencyRepository{
		client: client,
		prefix: "idempotency_key:",
		ttl:    ttl,
	}
}

// Create stores key, expiring it at key.ExpiresAt or after the default TTL
func (r *RedisIdempotencyRepository) Create(ctx context.Context, key *idempotency.IdempotencyKey) error {
	data, ttl, err := r.encode(key)
	if err != nil || ttl <= 0 {
		return err
	}

	err = r.client.Set(ctx, r.getRedisKey(key.Key), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store idempotency key in Redis: %w", err)
	}

	return nil
}

// Reserve claims key with SETNX; false means another request holds it
func (r *RedisIdempotencyRepository) Reserve(ctx context.Context, key *idempotency.IdempotencyKey) (bool, error) {
	data, ttl, err := r.encode(key)
	if err != nil {
		return false, err
	}
	if ttl <= 0 {
		return false, fmt.Errorf("idempotency key %s already expired", key.Key)
	}

	ok, err := r.client.SetNX(ctx, r.getRedisKey(key.Key), data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key in Redis: %w", err)
	}

	return ok, nil
}

func (r *RedisIdempotencyRepository) encode(key *idempotency.IdempotencyKey) (string, time.Duration, error) {
	data, err := json.Marshal(key)
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal idempotency key: %w", err)
	}

	ttl := r.ttl
	if !key.ExpiresAt.IsZero() {
		ttl = time.Until(key.ExpiresAt)
	}
	return string(data), ttl, nil
}

func (r *RedisIdempotencyRepository) GetByKey(ctx context.Context, key string) (*idempotency.IdempotencyKey, error) {
	val, err := r.client.Get(ctx, r.getRedisKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrIdempotencyKeyNotFound
		}
		return nil, fmt.Errorf("failed to get idempotency key from Redis: %w", err)
	}

	var idempotencyKey idempotency.IdempotencyKey
	if err := json.Unmarshal([]byte(val), &idempotencyKey); err != nil {
		return nil, fmt.Errorf("failed to unmarshal idempotency key: %w", err)
	}

	return &idempotencyKey, nil
}

func (r *RedisIdempotencyRepository) Delete(ctx context.Context, key string) error {
	err := r.client.Del(ctx, r.getRedisKey(key)).Err()
	if err != nil {
		return fmt.Errorf("failed to delete idempotency key from Redis: %w", err)
	}

	return nil
}

func (r *RedisIdempotencyRepository) getRedisKey(key string) string {
	return r.prefix + key
}
