package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"user-api/internal/domain/user"
	"user-api/internal/infrastructure/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newSQLiteRepository(t *testing.T) user.UserRepository {
	t.Helper()
	return NewUserRepository(newSQLiteDB(t))
}

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&user.User{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return db
}

func newCachedRepository(t *testing.T) user.UserRepository {
	t.Helper()

	mr := miniredis.RunT(t)
	redisCache := cache.NewRedisCache(mr.Addr(), "", 0)
	t.Cleanup(func() { redisCache.Close() })

	return NewCachedUserRepository(NewMemoryUserRepository(), redisCache, time.Minute)
}

func TestMemoryUserRepository(t *testing.T) {
	runUserRepositoryContract(t, func(t *testing.T) user.UserRepository {
		return NewMemoryUserRepository()
	})
}

func TestGormUserRepository(t *testing.T) {
	runUserRepositoryContract(t, newSQLiteRepository)
}

func TestCachedUserRepository(t *testing.T) {
	runUserRepositoryContract(t, newCachedRepository)
}

func runUserRepositoryContract(t *testing.T, newRepo func(t *testing.T) user.UserRepository) {
	ctx := context.Background()

	t.Run("insert assigns id", func(t *testing.T) {
		repo := newRepo(t)

		created, err := repo.Insert(ctx, &user.User{Login: "neo", FirstName: "Thomas", LastName: "Anderson"})
		require.NoError(t, err)
		require.NotEqual(t, uuid.Nil, created.ID)
		assert.False(t, created.CreatedAt.IsZero())

		found, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "neo", found.Login)
		assert.Equal(t, "Anderson", found.LastName)
	})

	t.Run("insert keeps given id", func(t *testing.T) {
		repo := newRepo(t)
		id := uuid.New()

		created, err := repo.Insert(ctx, &user.User{ID: id, Login: "trinity"})
		require.NoError(t, err)
		assert.Equal(t, id, created.ID)
	})

	t.Run("find missing returns nil", func(t *testing.T) {
		repo := newRepo(t)

		found, err := repo.FindByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("update or insert", func(t *testing.T) {
		repo := newRepo(t)
		id := uuid.New()

		inserted, err := repo.UpdateOrInsert(ctx, &user.User{ID: id, Login: "smith", FirstName: "Agent", LastName: "Smith"})
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = repo.UpdateOrInsert(ctx, &user.User{ID: id, Login: "smith2", FirstName: "Agent", LastName: "Smith"})
		require.NoError(t, err)
		assert.False(t, inserted)

		found, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "smith2", found.Login)
	})

	t.Run("update existing", func(t *testing.T) {
		repo := newRepo(t)

		created, err := repo.Insert(ctx, &user.User{Login: "neo", FirstName: "Thomas", LastName: "Anderson"})
		require.NoError(t, err)

		// warm any cache before mutating
		_, err = repo.FindByID(ctx, created.ID)
		require.NoError(t, err)

		created.Login = "theone"
		require.NoError(t, repo.Update(ctx, created))

		found, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "theone", found.Login)
	})

	t.Run("update missing", func(t *testing.T) {
		repo := newRepo(t)

		err := repo.Update(ctx, &user.User{ID: uuid.New(), Login: "ghost"})
		assert.ErrorIs(t, err, user.ErrUserNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)

		created, err := repo.Insert(ctx, &user.User{Login: "neo"})
		require.NoError(t, err)
		_, err = repo.FindByID(ctx, created.ID)
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, created.ID))

		found, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Nil(t, found)

		assert.ErrorIs(t, repo.Delete(ctx, created.ID), user.ErrUserNotFound)
	})

	t.Run("get page", func(t *testing.T) {
		repo := newRepo(t)

		for _, login := range []string{"delta", "alpha", "echo", "charlie", "bravo"} {
			_, err := repo.Insert(ctx, &user.User{Login: login})
			require.NoError(t, err)
		}

		page, err := repo.GetPage(ctx, user.NewPageRequest(2, 2))
		require.NoError(t, err)

		assert.Equal(t, int64(5), page.TotalCount)
		assert.Equal(t, 3, page.TotalPages)
		assert.Equal(t, 2, page.CurrentPage)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "charlie", page.Items[0].Login)
		assert.Equal(t, "delta", page.Items[1].Login)

		beyond, err := repo.GetPage(ctx, user.NewPageRequest(9, 2))
		require.NoError(t, err)
		assert.Empty(t, beyond.Items)
		assert.Equal(t, int64(5), beyond.TotalCount)
	})
}

func TestMemoryUserRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	created, err := repo.Insert(ctx, &user.User{Login: "neo"})
	require.NoError(t, err)

	created.Login = "mutated"

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "neo", found.Login)
}

func TestMemoryUserRepository_InsertDuplicateID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	id := uuid.New()

	_, err := repo.Insert(ctx, &user.User{ID: id, Login: "neo"})
	require.NoError(t, err)

	_, err = repo.Insert(ctx, &user.User{ID: id, Login: "neo"})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestUpdateOrInsert_RejectsNilID(t *testing.T) {
	ctx := context.Background()

	_, err := NewMemoryUserRepository().UpdateOrInsert(ctx, &user.User{Login: "neo"})
	assert.ErrorIs(t, err, user.ErrInvalidUserID)

	_, err = newSQLiteRepository(t).UpdateOrInsert(ctx, &user.User{Login: "neo"})
	assert.ErrorIs(t, err, user.ErrInvalidUserID)
}

func TestGormUserRepository_UpdateOrInsert_RowCreatedConcurrently(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	repo := NewUserRepository(db)
	id := uuid.New()

	// another writer creates the row right after our update matched nothing
	var once sync.Once
	err := db.Callback().Update().After("gorm:update").Register("test:concurrent_insert", func(tx *gorm.DB) {
		if tx.Error != nil || tx.RowsAffected > 0 {
			return
		}
		once.Do(func() {
			other := tx.Session(&gorm.Session{NewDB: true})
			if err := other.Create(&user.User{ID: id, Login: "other", FirstName: "A", LastName: "B"}).Error; err != nil {
				tx.AddError(err)
			}
		})
	})
	require.NoError(t, err)

	inserted, err := repo.UpdateOrInsert(ctx, &user.User{ID: id, Login: "neo", FirstName: "Thomas", LastName: "Anderson"})
	require.NoError(t, err)
	assert.False(t, inserted)

	found, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "neo", found.Login)
}

func TestUpdateOrInsert_ConcurrentCallers(t *testing.T) {
	repos := map[string]user.UserRepository{
		"memory": NewMemoryUserRepository(),
		"gorm":   newSQLiteRepository(t),
	}

	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := uuid.New()

			const callers = 8
			var wg sync.WaitGroup
			results := make(chan bool, callers)
			errs := make(chan error, callers)

			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					inserted, err := repo.UpdateOrInsert(ctx, &user.User{
						ID:        id,
						Login:     fmt.Sprintf("caller%d", i),
						FirstName: "First",
						LastName:  "Last",
					})
					if err != nil {
						errs <- err
						return
					}
					results <- inserted
				}(i)
			}
			wg.Wait()
			close(results)
			close(errs)

			for err := range errs {
				t.Errorf("Unexpected upsert error: %v", err)
			}

			insertedCount := 0
			for inserted := range results {
				if inserted {
					insertedCount++
				}
			}
			assert.Equal(t, 1, insertedCount)

			page, err := repo.GetPage(ctx, user.NewPageRequest(1, user.MaxPageSize))
			require.NoError(t, err)
			assert.Equal(t, int64(1), page.TotalCount)
		})
	}
}

// interleavingRepository runs afterFind once between the store read and the
// cache fill of a CachedUserRepository
type interleavingRepository struct {
	user.UserRepository
	afterFind func()
}

func (r *interleavingRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, err := r.UserRepository.FindByID(ctx, id)
	if hook := r.afterFind; hook != nil {
		r.afterFind = nil
		hook()
	}
	return u, err
}

func TestCachedUserRepository_MutationDuringRead(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	redisCache := cache.NewRedisCache(mr.Addr(), "", 0)
	t.Cleanup(func() { redisCache.Close() })

	store := &interleavingRepository{UserRepository: NewMemoryUserRepository()}
	repo := NewCachedUserRepository(store, redisCache, time.Minute)

	t.Run("update", func(t *testing.T) {
		created, err := repo.Insert(ctx, &user.User{Login: "neo", FirstName: "Thomas", LastName: "Anderson"})
		require.NoError(t, err)

		store.afterFind = func() {
			changed := created.Clone()
			changed.Login = "theone"
			require.NoError(t, repo.Update(ctx, changed))
		}

		found, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "neo", found.Login)
		assert.False(t, mr.Exists("user:details:"+created.ID.String()))

		found, err = repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "theone", found.Login)
	})

	t.Run("delete", func(t *testing.T) {
		created, err := repo.Insert(ctx, &user.User{Login: "trinity", FirstName: "Carrie", LastName: "Moss"})
		require.NoError(t, err)

		store.afterFind = func() {
			require.NoError(t, repo.Delete(ctx, created.ID))
		}

		found, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, found)

		found, err = repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}
