package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"banking-service/internal/models"
	"banking-service/internal/repository"
	"banking-service/internal/util"
)

var ErrAccountClosed = errors.New("account is closed")

// AccountService handles account business logic.
type AccountService struct {
	accounts repository.AccountRepository
	users    repository.UserRepository
	logger   *zap.Logger
}

func NewAccountService(accounts repository.AccountRepository, users repository.UserRepository, logger *zap.Logger) *AccountService {
	return &AccountService{accounts: accounts, users: users, logger: logger}
}

// AccountCreateRequest is the account creation payload. The owner is always
// the authenticated caller; it is never taken from the request body.
type AccountCreateRequest struct {
	Currency string `json:"currency"`
}

// AccountUpdateRequest is the account update payload.
type AccountUpdateRequest struct {
	Status *string `json:"status,omitempty"`
}

func (s *AccountService) CreateAccount(ctx context.Context, ownerID uuid.UUID, req *AccountCreateRequest) (*models.Account, error) {
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidInput)
	}

	number, err := generateAccountNumber()
	if err != nil {
		return nil, fmt.Errorf("failed to generate account number: %w", err)
	}

	account := &models.Account{
		AccountNumber: number,
		OwnerID:       ownerID,
		Balance:       decimal.Zero,
		Currency:      currency,
		Status:        models.AccountStatusActive,
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountNumber string) (*models.Account, error) {
	return s.accounts.GetAccount(ctx, accountNumber)
}

func (s *AccountService) ListAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Account, error) {
	return s.accounts.ListAccountsByOwner(ctx, ownerID)
}

func (s *AccountService) UpdateAccount(ctx context.Context, accountNumber string, req *AccountUpdateRequest) (*models.Account, error) {
	account, err := s.accounts.GetAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	if req.Status != nil {
		switch *req.Status {
		case models.AccountStatusActive, models.AccountStatusClosed:
			account.Status = *req.Status
		default:
			return nil, fmt.Errorf("%w: unknown account status %q", ErrInvalidInput, *req.Status)
		}
	}

	if err := s.accounts.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountService) DeleteAccount(ctx context.Context, accountNumber string) error {
	if err := s.accounts.DeleteAccount(ctx, accountNumber); err != nil {
		return err
	}
	s.logger.Info("Account removed", util.String("account_number", accountNumber))
	return nil
}

// generateAccountNumber produces an 8-digit account number.
func generateAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%08d", n.Int64()), nil
}

// ResolveOwner maps an identity email to its user record, for handlers
// that need the caller's user ID.
func (s *AccountService) ResolveOwner(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve owner: %w", err)
	}
	return user, nil
}
