package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"banking-service/internal/models"
	"banking-service/internal/repository"
	"banking-service/internal/util"
)

// UserRepository persists users in Scylla. A users_by_email lookup table
// keeps identity-to-user resolution a single-partition read, which the
// ownership authorizer depends on.
type UserRepository struct {
	client *ScyllaClient
}

func NewUserRepository(client *ScyllaClient) *UserRepository {
	return &UserRepository{client: client}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.UserID == uuid.Nil {
		user.UserID = uuid.New()
	}
	user.CreatedAt = time.Now().UTC()

	batch := r.client.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(r.client.Prepared.CreateUser,
		user.UserID.String(), user.Email, user.FullName, user.IsActive,
		user.CreatedAt, user.UpdatedAt)
	batch.Query(r.client.Prepared.CreateUserByEmail, user.Email, user.UserID.String())

	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		util.Error("Failed to create user",
			util.String("user_id", user.UserID.String()),
			util.ErrorField(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	util.Info("User created",
		util.String("user_id", user.UserID.String()),
		util.String("email", user.Email))
	return nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user := &models.User{}
	var idStr string

	err := r.client.Session.Query(r.client.Prepared.GetUserByID, userID.String()).
		WithContext(ctx).
		Scan(&idStr, &user.Email, &user.FullName, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	user.UserID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored user id %q: %w", idStr, err)
	}
	return user, nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var idStr string
	err := r.client.Session.Query(r.client.Prepared.GetUserByEmail, email).
		WithContext(ctx).
		Scan(&idStr)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve user by email: %w", err)
	}

	userID, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored user id %q: %w", idStr, err)
	}
	return r.GetUserByID(ctx, userID)
}

func (r *UserRepository) ListUsers(ctx context.Context, limit int) ([]*models.User, error) {
	if limit <= 0 {
		limit = 100
	}

	iter := r.client.Session.Query(r.client.Prepared.ListUsers, limit).
		WithContext(ctx).
		Iter()

	var users []*models.User
	var idStr string
	user := &models.User{}
	for iter.Scan(&idStr, &user.Email, &user.FullName, &user.IsActive, &user.CreatedAt, &user.UpdatedAt) {
		if id, err := uuid.Parse(idStr); err == nil {
			user.UserID = id
			users = append(users, user)
		}
		user = &models.User{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.UpdatedAt = &now

	err := r.client.Session.Query(r.client.Prepared.UpdateUser,
		user.FullName, user.IsActive, user.UpdatedAt, user.UserID.String()).
		WithContext(ctx).
		Exec()
	if err != nil {
		util.Error("Failed to update user",
			util.String("user_id", user.UserID.String()),
			util.ErrorField(err))
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *UserRepository) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	// The email lookup row has to go too.
	user, err := r.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	batch := r.client.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(r.client.Prepared.DeleteUser, userID.String())
	batch.Query(r.client.Prepared.DeleteUserByEmail, user.Email)

	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	util.Info("User deleted", util.String("user_id", userID.String()))
	return nil
}
