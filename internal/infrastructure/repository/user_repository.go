package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"user-api/internal/domain/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// maxUpsertAttempts bounds update/create retries when rows appear and vanish
// between the two statements
const maxUpsertAttempts = 3

// UserRepository implements user.UserRepository using GORM
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new GORM user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

var _ user.UserRepository = (*UserRepository)(nil)

// FindByID retrieves a user by ID
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Insert creates a new user, assigning an ID when none is set
func (r *UserRepository) Insert(ctx context.Context, u *user.User) (*user.User, error) {
	stored := u.Clone()
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}

	if err := r.db.WithContext(ctx).Create(stored).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}
	return stored, nil
}

// UpdateOrInsert updates the row with the user's ID, creating it when no row
// matched. A concurrent insert of the same ID makes the create fail with a
// duplicate key; the update is then retried so the caller sees an update.
func (r *UserRepository) UpdateOrInsert(ctx context.Context, u *user.User) (bool, error) {
	if u.ID == uuid.Nil {
		return false, user.ErrInvalidUserID
	}

	db := r.db.WithContext(ctx)
	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		result := db.Model(&user.User{}).
			Where("id = ?", u.ID).
			Updates(updateColumns(u))
		if result.Error != nil {
			return false, result.Error
		}
		if result.RowsAffected > 0 {
			return false, nil
		}

		err := db.Create(u.Clone()).Error
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, err
		}
	}
	return false, fmt.Errorf("user %s changed concurrently: %w", u.ID, ErrUserAlreadyExists)
}

// Update updates an existing user
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	result := r.db.WithContext(ctx).Model(&user.User{}).
		Where("id = ?", u.ID).
		Updates(updateColumns(u))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// Delete deletes a user
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&user.User{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// GetPage returns one page of users ordered by login, then ID
func (r *UserRepository) GetPage(ctx context.Context, req user.PageRequest) (*user.Page, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&user.User{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var users []*user.User
	err := r.db.WithContext(ctx).
		Order("login").
		Order("id").
		Offset(req.Offset()).
		Limit(req.PageSize).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	return user.NewPage(users, req, total), nil
}

// updateColumns lists the mutable columns; a map keeps empty strings in the update
func updateColumns(u *user.User) map[string]interface{} {
	return map[string]interface{}{
		"login":         u.Login,
		"first_name":    u.FirstName,
		"last_name":     u.LastName,
		"gravatar_hash": u.GravatarHash,
		"updated_at":    time.Now().UTC(),
	}
}
