package interfaces

import (
	"context"
	"errors"
	"time"

	"user-api/internal/domain/idempotency"
	"user-api/internal/domain/user"

	"github.com/google/uuid"
)

var (
	// ErrCacheMiss is returned when a key is absent from the cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheStale is returned when a conditional write lost to an invalidation
	ErrCacheStale = errors.New("cache entry is stale")

	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

type UserCache interface {
	// User records
	GetUser(ctx context.Context, id uuid.UUID) (*user.User, error)
	UserVersion(ctx context.Context, id uuid.UUID) (int64, error)
	SetUserIfVersion(ctx context.Context, u *user.User, ttl time.Duration, version int64) error
	InvalidateUser(ctx context.Context, id uuid.UUID) error

	// Health and connection management
	Health(ctx context.Context) error
	Close() error
}

type IdempotencyRepository interface {
	Create(ctx context.Context, key *idempotency.IdempotencyKey) error
	// Reserve stores key only when no entry exists yet and reports whether it did
	Reserve(ctx context.Context, key *idempotency.IdempotencyKey) (bool, error)
	GetByKey(ctx context.Context, key string) (*idempotency.IdempotencyKey, error)
	Delete(ctx context.Context, key string) error
}
