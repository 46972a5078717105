package service

import (
	"context"
	"fmt"

	"user-api/internal/domain/user"
	"user-api/pkg/logger"
	"user-api/pkg/validator"

	"github.com/google/uuid"
)

// userService implements the UserService interface
type userService struct {
	userRepo user.UserRepository
}

// NewUserService creates a new user service
func NewUserService(userRepo user.UserRepository) user.UserService {
	return &userService{
		userRepo: userRepo,
	}
}

// GetUser retrieves a user by ID
func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	logger.Debug("Getting user with ID: %s", id)

	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		logger.Error("Failed to get user: %v", err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if u == nil {
		return nil, user.ErrUserNotFound
	}

	return u, nil
}

// CreateUser validates the request and inserts a user with a server generated ID
func (s *userService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	if req == nil {
		return nil, user.ErrEmptyRequest
	}

	if err := validate(req); err != nil {
		return nil, err
	}

	logger.Info("Creating user with login: %s", req.Login)

	created, err := s.userRepo.Insert(ctx, user.NewUserFromCreate(req))
	if err != nil {
		logger.Error("Failed to create user: %v", err)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.Info("User created successfully with ID: %s", created.ID)
	return created, nil
}

// UpsertUser replaces the user stored under id, creating it when absent
func (s *userService) UpsertUser(ctx context.Context, id uuid.UUID, req *user.UpdateUserRequest) (*user.User, bool, error) {
	if req == nil {
		return nil, false, user.ErrEmptyRequest
	}
	if id == uuid.Nil {
		return nil, false, user.ErrInvalidUserID
	}

	if err := validate(req); err != nil {
		return nil, false, err
	}

	logger.Info("Upserting user with ID: %s", id)

	existing, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		logger.Error("Failed to get user for update: %v", err)
		return nil, false, fmt.Errorf("failed to get user: %w", err)
	}
	if existing == nil {
		existing = user.NewUser(id)
	}

	existing.ApplyUpdate(req)

	inserted, err := s.userRepo.UpdateOrInsert(ctx, existing)
	if err != nil {
		logger.Error("Failed to upsert user: %v", err)
		return nil, false, fmt.Errorf("failed to upsert user: %w", err)
	}

	if inserted {
		logger.Info("User inserted via upsert with ID: %s", id)
	} else {
		logger.Info("User updated successfully with ID: %s", id)
	}
	return existing, inserted, nil
}

// PatchUser applies doc to an existing user; it never creates one
func (s *userService) PatchUser(ctx context.Context, id uuid.UUID, doc user.PatchDocument) error {
	if doc == nil {
		return user.ErrEmptyRequest
	}

	existing, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		logger.Error("Failed to get user for patch: %v", err)
		return fmt.Errorf("failed to get user: %w", err)
	}
	if existing == nil {
		return user.ErrUserNotFound
	}

	patched := existing.ToUpdateRequest()
	verr := user.NewValidationError()
	if patchErr := doc.ApplyTo(patched); patchErr != nil {
		verr.Merge(patchErr.Fields)
	}
	if err := validator.ValidateStruct(patched); err != nil {
		verr.Merge(validator.FieldErrors(err))
	}
	if verr.HasErrors() {
		return verr
	}

	existing.ApplyUpdate(patched)
	if err := s.userRepo.Update(ctx, existing); err != nil {
		logger.Error("Failed to patch user: %v", err)
		return fmt.Errorf("failed to patch user: %w", err)
	}

	logger.Info("User patched successfully with ID: %s", id)
	return nil
}

// DeleteUser deletes a user
func (s *userService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	logger.Info("Deleting user with ID: %s", id)

	existing, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		logger.Error("Failed to get user for deletion: %v", err)
		return fmt.Errorf("failed to get user: %w", err)
	}

	if existing == nil {
		return user.ErrUserNotFound
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		logger.Error("Failed to delete user: %v", err)
		return fmt.Errorf("failed to delete user: %w", err)
	}

	logger.Info("User deleted successfully with ID: %s", id)
	return nil
}

// ListUsers retrieves one page of users
func (s *userService) ListUsers(ctx context.Context, req user.PageRequest) (*user.Page, error) {
	req = user.NewPageRequest(req.PageNumber, req.PageSize)
	logger.Debug("Listing users page %d, size %d", req.PageNumber, req.PageSize)

	page, err := s.userRepo.GetPage(ctx, req)
	if err != nil {
		logger.Error("Failed to list users: %v", err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return page, nil
}

// validate runs struct validation and converts failures to *user.ValidationError
func validate(req interface{}) error {
	if err := validator.ValidateStruct(req); err != nil {
		verr := user.NewValidationError()
		verr.Merge(validator.FieldErrors(err))
		if !verr.HasErrors() {
			return fmt.Errorf("failed to validate request: %w", err)
		}
		return verr
	}
	return nil
}
