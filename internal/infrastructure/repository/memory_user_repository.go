package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"user-api/internal/domain/user"

	"github.com/google/uuid"
)

// memoryUserRepository is an in-memory implementation of UserRepository.
// Stored entities are copied on the way in and out.
type memoryUserRepository struct {
	users map[uuid.UUID]*user.User
	mutex sync.RWMutex
	now   func() time.Time
}

// NewMemoryUserRepository creates an empty in-memory user repository
func NewMemoryUserRepository() user.UserRepository {
	return &memoryUserRepository{
		users: make(map[uuid.UUID]*user.User),
		now:   time.Now,
	}
}

// FindByID retrieves a user by ID
func (r *memoryUserRepository) FindByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	u, exists := r.users[id]
	if !exists {
		return nil, nil
	}
	return u.Clone(), nil
}

// Insert stores a new user, assigning an ID when none is set
func (r *memoryUserRepository) Insert(_ context.Context, u *user.User) (*user.User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stored := u.Clone()
	if stored.ID == uuid.Nil {
		stored.ID = r.newID()
	} else if _, exists := r.users[stored.ID]; exists {
		return nil, ErrUserAlreadyExists
	}

	r.stampCreated(stored)
	r.users[stored.ID] = stored
	return stored.Clone(), nil
}

// UpdateOrInsert replaces the user with the same ID or inserts it
func (r *memoryUserRepository) UpdateOrInsert(_ context.Context, u *user.User) (bool, error) {
	if u.ID == uuid.Nil {
		return false, user.ErrInvalidUserID
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	stored := u.Clone()
	existing, exists := r.users[u.ID]
	if exists {
		stored.CreatedAt = existing.CreatedAt
		stored.UpdatedAt = r.now()
	} else {
		r.stampCreated(stored)
	}

	r.users[stored.ID] = stored
	return !exists, nil
}

// Update updates an existing user
func (r *memoryUserRepository) Update(_ context.Context, u *user.User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	existing, exists := r.users[u.ID]
	if !exists {
		return user.ErrUserNotFound
	}

	stored := u.Clone()
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = r.now()
	r.users[stored.ID] = stored
	return nil
}

// Delete deletes a user
func (r *memoryUserRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.users[id]; !exists {
		return user.ErrUserNotFound
	}

	delete(r.users, id)
	return nil
}

// GetPage returns one page of users ordered by login, then ID
func (r *memoryUserRepository) GetPage(_ context.Context, req user.PageRequest) (*user.Page, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	all := make([]*user.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Login != all[j].Login {
			return all[i].Login < all[j].Login
		}
		return all[i].ID.String() < all[j].ID.String()
	})

	items := make([]*user.User, 0, req.PageSize)
	if offset := req.Offset(); offset >= 0 && offset < len(all) {
		end := offset + min(req.PageSize, len(all)-offset)
		for _, u := range all[offset:end] {
			items = append(items, u.Clone())
		}
	}

	return user.NewPage(items, req, int64(len(all))), nil
}

// newID draws IDs until one is unused; callers hold the write lock
func (r *memoryUserRepository) newID() uuid.UUID {
	for {
		id := uuid.New()
		if _, exists := r.users[id]; !exists {
			return id
		}
	}
}

func (r *memoryUserRepository) stampCreated(u *user.User) {
	now := r.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
}
