package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"banking-service/internal/models"
	"banking-service/internal/repository"
	"banking-service/internal/util"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// TransactionService owns the balance invariant: deposits and withdrawals
// are applied to the account balance, which never goes negative.
type TransactionService struct {
	transactions repository.TransactionRepository
	accounts     repository.AccountRepository
	logger       *zap.Logger
}

func NewTransactionService(transactions repository.TransactionRepository, accounts repository.AccountRepository, logger *zap.Logger) *TransactionService {
	return &TransactionService{transactions: transactions, accounts: accounts, logger: logger}
}

// TransactionCreateRequest is the transaction creation payload.
type TransactionCreateRequest struct {
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

// TransactionUpdateRequest allows amending the free-form description only;
// amounts and kinds are immutable once recorded.
type TransactionUpdateRequest struct {
	Description string `json:"description"`
}

func (s *TransactionService) CreateTransaction(ctx context.Context, accountNumber string, req *TransactionCreateRequest) (*models.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.Kind != models.TransactionKindDeposit && req.Kind != models.TransactionKindWithdrawal {
		return nil, fmt.Errorf("%w: unknown transaction kind %q", ErrInvalidInput, req.Kind)
	}

	account, err := s.accounts.GetAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if account.Status != models.AccountStatusActive {
		return nil, ErrAccountClosed
	}

	var newBalance decimal.Decimal
	switch req.Kind {
	case models.TransactionKindDeposit:
		newBalance = account.Balance.Add(req.Amount)
	case models.TransactionKindWithdrawal:
		newBalance = account.Balance.Sub(req.Amount)
		if newBalance.IsNegative() {
			return nil, ErrInsufficientFunds
		}
	}

	tx := &models.Transaction{
		TransactionID: uuid.New(),
		AccountNumber: accountNumber,
		Kind:          req.Kind,
		Amount:        req.Amount,
		BalanceAfter:  newBalance,
		Description:   req.Description,
	}
	if err := s.transactions.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	account.Balance = newBalance
	if err := s.accounts.UpdateAccount(ctx, account); err != nil {
		// The ledger row exists but the balance write failed; surface the
		// error so the caller retries rather than trusting a stale balance.
		return nil, fmt.Errorf("failed to apply balance: %w", err)
	}

	s.logger.Info("Transaction applied",
		util.String("account_number", accountNumber),
		util.String("kind", req.Kind),
		util.String("amount", req.Amount.String()))
	return tx, nil
}

func (s *TransactionService) GetTransaction(ctx context.Context, accountNumber string, transactionID uuid.UUID) (*models.Transaction, error) {
	return s.transactions.GetTransaction(ctx, accountNumber, transactionID)
}

func (s *TransactionService) ListTransactions(ctx context.Context, accountNumber string, limit int) ([]*models.Transaction, error) {
	return s.transactions.ListTransactions(ctx, accountNumber, limit)
}

func (s *TransactionService) UpdateTransaction(ctx context.Context, accountNumber string, transactionID uuid.UUID, req *TransactionUpdateRequest) (*models.Transaction, error) {
	tx, err := s.transactions.GetTransaction(ctx, accountNumber, transactionID)
	if err != nil {
		return nil, err
	}

	tx.Description = req.Description
	if err := s.transactions.UpdateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *TransactionService) DeleteTransaction(ctx context.Context, accountNumber string, transactionID uuid.UUID) error {
	if _, err := s.transactions.GetTransaction(ctx, accountNumber, transactionID); err != nil {
		return err
	}
	return s.transactions.DeleteTransaction(ctx, accountNumber, transactionID)
}
