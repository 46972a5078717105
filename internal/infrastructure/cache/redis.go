package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"user-api/internal/config"
	"user-api/internal/domain/user"
	interfaces "user-api/internal/interfaces/infrastructure"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string, db int) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCache{
		client: rdb,
	}
}

func NewRedisCacheWithConfig(cfg *config.CacheConfig) *RedisCache {
	return NewRedisCache(cfg.Addr(), cfg.Password, cfg.DB)
}

// GetClient exposes the underlying client to other Redis-backed stores
func (r *RedisCache) GetClient() redis.UniversalClient {
	return r.client
}

// userVersionTTL outlives any in-flight read of the user it guards
const userVersionTTL = time.Hour

func userKey(id uuid.UUID) string {
	return fmt.Sprintf("user:details:%s", id.String())
}

func userVersionKey(id uuid.UUID) string {
	return fmt.Sprintf("user:version:%s", id.String())
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readVersion(ctx context.Context, c stringGetter, key string) (int64, error) {
	v, err := c.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (r *RedisCache) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	val, err := r.client.Get(ctx, userKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, interfaces.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get user from cache: %w", err)
	}

	var u user.User
	if err := json.Unmarshal([]byte(val), &u); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached user: %w", err)
	}

	return &u, nil
}

// UserVersion returns the invalidation counter of the user, 0 when unset
func (r *RedisCache) UserVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	v, err := readVersion(ctx, r.client, userVersionKey(id))
	if err != nil {
		return 0, fmt.Errorf("failed to get user version from cache: %w", err)
	}
	return v, nil
}

// SetUserIfVersion caches u only while the user's version still equals
// version. Otherwise it returns interfaces.ErrCacheStale.
func (r *RedisCache) SetUserIfVersion(ctx context.Context, u *user.User, ttl time.Duration, version int64) error {
	jsonData, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	versionKey := userVersionKey(u.ID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readVersion(ctx, tx, versionKey)
		if err != nil {
			return err
		}
		if current != version {
			return interfaces.ErrCacheStale
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userKey(u.ID), jsonData, ttl)
			return nil
		})
		return err
	}, versionKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, interfaces.ErrCacheStale), errors.Is(err, redis.TxFailedErr):
		return interfaces.ErrCacheStale
	default:
		return fmt.Errorf("failed to set user in cache: %w", err)
	}
}

// InvalidateUser drops the cached user and bumps its version so reads that
// started before the change cannot repopulate it
func (r *RedisCache) InvalidateUser(ctx context.Context, id uuid.UUID) error {
	versionKey := userVersionKey(id)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Expire(ctx, versionKey, userVersionTTL)
		pipe.Del(ctx, userKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate user %s: %w", id, err)
	}

	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

var _ interfaces.UserCache = (*RedisCache)(nil)
