// Package repository defines the persistence contracts for the banking
// domain. Implementations live in subpackages; callers depend only on
// these interfaces.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"banking-service/internal/models"
)

// ErrNotFound is returned when an addressed resource does not exist. It is
// deliberately distinct from an ownership denial: a missing resource is
// reported as not-found to every caller, owner or not.
var ErrNotFound = errors.New("resource not found")

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, limit int) ([]*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

type AccountRepository interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, accountNumber string) (*models.Account, error)
	ListAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Account, error)
	UpdateAccount(ctx context.Context, account *models.Account) error
	DeleteAccount(ctx context.Context, accountNumber string) error
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, accountNumber string, transactionID uuid.UUID) (*models.Transaction, error)
	ListTransactions(ctx context.Context, accountNumber string, limit int) ([]*models.Transaction, error)
	UpdateTransaction(ctx context.Context, tx *models.Transaction) error
	DeleteTransaction(ctx context.Context, accountNumber string, transactionID uuid.UUID) error
}
