package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"banking-service/internal/models"
	"banking-service/internal/repository"
	"banking-service/internal/util"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserService handles user business logic.
type UserService struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func NewUserService(users repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// UserCreateRequest is the user creation payload.
type UserCreateRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// UserUpdateRequest is the user update payload.
type UserUpdateRequest struct {
	FullName *string `json:"full_name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

func (s *UserService) CreateUser(ctx context.Context, req *UserCreateRequest) (*models.User, error) {
	if !strings.Contains(req.Email, "@") {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if req.FullName == "" {
		return nil, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}

	if _, err := s.users.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	user := &models.User{
		UserID:   uuid.New(),
		Email:    req.Email,
		FullName: req.FullName,
		IsActive: true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

func (s *UserService) ListUsers(ctx context.Context, limit int) ([]*models.User, error) {
	return s.users.ListUsers(ctx, limit)
}

func (s *UserService) UpdateUser(ctx context.Context, userID uuid.UUID, req *UserUpdateRequest) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("User removed", util.String("user_id", userID.String()))
	return nil
}
