package user

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user data access.
// FindByID returns (nil, nil) when the user does not exist.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	Insert(ctx context.Context, user *User) (*User, error)
	UpdateOrInsert(ctx context.Context, user *User) (inserted bool, err error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetPage(ctx context.Context, req PageRequest) (*Page, error)
}

// UserService defines the interface for user business logic
type UserService interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error)
	UpsertUser(ctx context.Context, id uuid.UUID, req *UpdateUserRequest) (user *User, inserted bool, err error)
	PatchUser(ctx context.Context, id uuid.UUID, doc PatchDocument) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUsers(ctx context.Context, req PageRequest) (*Page, error)
}
