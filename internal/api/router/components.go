package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"user-api/internal/api/handlers"
	"user-api/internal/config"
	"user-api/internal/domain/user"
	"user-api/internal/infrastructure/cache"
	"user-api/internal/infrastructure/database"
	"user-api/internal/infrastructure/repository"
	"user-api/internal/service"
	"user-api/migrations"
	"user-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RouterComponents holds the engine and the resources it owns
type RouterComponents struct {
	Router  *gin.Engine
	closers []func() error
}

// Close releases database and cache connections
func (rc *RouterComponents) Close() error {
	var errs []error
	for i := len(rc.closers) - 1; i >= 0; i-- {
		if err := rc.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewRouterFromConfig selects the storage backend, optionally layers the
// Redis cache and idempotency store on top, and builds the engine
func NewRouterFromConfig(cfg *config.Config) (*RouterComponents, error) {
	components := &RouterComponents{}
	checks := map[string]handlers.HealthChecker{}

	var userRepo user.UserRepository
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := database.NewConnection(database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.Username,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
			LogSQL:   cfg.Database.LogSQL,
		})
		if err != nil {
			return nil, err
		}
		components.closers = append(components.closers, func() error { return database.Close(db) })

		applied, err := database.NewMigrationRunner(db, migrations.FS).RunMigrations()
		if err != nil {
			components.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("Database ready, %d migrations applied", applied)

		checks["database"] = func(ctx context.Context) error { return database.HealthCheck(db) }
		userRepo = repository.NewUserRepository(db)
	default:
		logger.Warn("Using in-memory user storage; data is lost on restart")
		userRepo = repository.NewMemoryUserRepository()
	}

	var idempotencyService *service.IdempotencyService
	if cfg.Cache.Enabled {
		redisCache := cache.NewRedisCacheWithConfig(&cfg.Cache)
		components.closers = append(components.closers, redisCache.Close)
		checks["cache"] = redisCache.Health

		ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
		userRepo = repository.NewCachedUserRepository(userRepo, redisCache, ttl)
		logger.Info("User cache enabled at %s (ttl %s)", cfg.Cache.Addr(), ttl)

		if cfg.Idempotency.Enabled {
			keyTTL := time.Duration(cfg.Idempotency.TTLSeconds) * time.Second
			idempotencyRepo := repository.NewRedisIdempotencyRepository(redisCache.GetClient(), keyTTL)
			idempotencyService = service.NewIdempotencyService(idempotencyRepo, keyTTL)
			logger.Info("Idempotency-Key support enabled")
		}
	}

	components.Router = NewRouter(Dependencies{
		UserService:  service.NewUserService(userRepo),
		Idempotency:  idempotencyService,
		HealthChecks: checks,
		Version:      cfg.App.Version,
	})
	return components, nil
}
