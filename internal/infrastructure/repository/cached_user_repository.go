package repository

import (
	"context"
	"errors"
	"time"

	"user-api/internal/domain/user"
	interfaces "user-api/internal/interfaces/infrastructure"
	"user-api/pkg/logger"

	"github.com/google/uuid"
)

// CachedUserRepository serves FindByID through a read-through cache and
// invalidates the cached entry after every mutation. Cache failures are
// logged and never fail the request.
type CachedUserRepository struct {
	next  user.UserRepository
	cache interfaces.UserCache
	ttl   time.Duration
}

func NewCachedUserRepository(next user.UserRepository, cache interfaces.UserCache, ttl time.Duration) *CachedUserRepository {
	return &CachedUserRepository{
		next:  next,
		cache: cache,
		ttl:   ttl,
	}
}

var _ user.UserRepository = (*CachedUserRepository)(nil)

func (r *CachedUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	cached, err := r.cache.GetUser(ctx, id)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, interfaces.ErrCacheMiss) {
		logger.Warn("User cache read failed for %s: %v", id, err)
	}

	// the version is taken before the store read so a concurrent mutation
	// turns the cache fill below into a no-op
	version, versionErr := r.cache.UserVersion(ctx, id)
	if versionErr != nil {
		logger.Warn("User cache version read failed for %s: %v", id, versionErr)
	}

	u, err := r.next.FindByID(ctx, id)
	if err != nil || u == nil || versionErr != nil {
		return u, err
	}

	err = r.cache.SetUserIfVersion(ctx, u, r.ttl, version)
	switch {
	case errors.Is(err, interfaces.ErrCacheStale):
		logger.Debug("Skipped caching user %s changed during read", id)
	case err != nil:
		logger.Warn("User cache write failed for %s: %v", id, err)
	}
	return u, nil
}

func (r *CachedUserRepository) Insert(ctx context.Context, u *user.User) (*user.User, error) {
	return r.next.Insert(ctx, u)
}

func (r *CachedUserRepository) UpdateOrInsert(ctx context.Context, u *user.User) (bool, error) {
	inserted, err := r.next.UpdateOrInsert(ctx, u)
	if err != nil {
		return false, err
	}
	r.invalidate(ctx, u.ID)
	return inserted, nil
}

func (r *CachedUserRepository) Update(ctx context.Context, u *user.User) error {
	if err := r.next.Update(ctx, u); err != nil {
		return err
	}
	r.invalidate(ctx, u.ID)
	return nil
}

func (r *CachedUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *CachedUserRepository) GetPage(ctx context.Context, req user.PageRequest) (*user.Page, error) {
	return r.next.GetPage(ctx, req)
}

func (r *CachedUserRepository) invalidate(ctx context.Context, id uuid.UUID) {
	if err := r.cache.InvalidateUser(ctx, id); err != nil {
		logger.Warn("User cache invalidation failed for %s: %v", id, err)
	}
}
