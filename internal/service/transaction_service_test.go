package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"banking-service/internal/models"
	"banking-service/internal/repository"
)

type memUserRepo struct {
	users map[uuid.UUID]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[uuid.UUID]*models.User{}}
}

func (r *memUserRepo) CreateUser(_ context.Context, user *models.User) error {
	r.users[user.UserID] = user
	return nil
}

func (r *memUserRepo) GetUserByID(_ context.Context, userID uuid.UUID) (*models.User, error) {
	if u, ok := r.users[userID]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) ListUsers(_ context.Context, _ int) ([]*models.User, error) {
	out := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *memUserRepo) UpdateUser(_ context.Context, user *models.User) error {
	if _, ok := r.users[user.UserID]; !ok {
		return repository.ErrNotFound
	}
	r.users[user.UserID] = user
	return nil
}

func (r *memUserRepo) DeleteUser(_ context.Context, userID uuid.UUID) error {
	if _, ok := r.users[userID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, userID)
	return nil
}

type memAccountRepo struct {
	accounts map[string]*models.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: map[string]*models.Account{}}
}

func (r *memAccountRepo) CreateAccount(_ context.Context, account *models.Account) error {
	r.accounts[account.AccountNumber] = account
	return nil
}

func (r *memAccountRepo) GetAccount(_ context.Context, accountNumber string) (*models.Account, error) {
	if a, ok := r.accounts[accountNumber]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memAccountRepo) ListAccountsByOwner(_ context.Context, ownerID uuid.UUID) ([]*models.Account, error) {
	var out []*models.Account
	for _, a := range r.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAccountRepo) UpdateAccount(_ context.Context, account *models.Account) error {
	if _, ok := r.accounts[account.AccountNumber]; !ok {
		return repository.ErrNotFound
	}
	copied := *account
	r.accounts[account.AccountNumber] = &copied
	return nil
}

func (r *memAccountRepo) DeleteAccount(_ context.Context, accountNumber string) error {
	if _, ok := r.accounts[accountNumber]; !ok {
		return repository.ErrNotFound
	}
	delete(r.accounts, accountNumber)
	return nil
}

type memTransactionRepo struct {
	rows map[string]map[uuid.UUID]*models.Transaction
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{rows: map[string]map[uuid.UUID]*models.Transaction{}}
}

func (r *memTransactionRepo) CreateTransaction(_ context.Context, tx *models.Transaction) error {
	if r.rows[tx.AccountNumber] == nil {
		r.rows[tx.AccountNumber] = map[uuid.UUID]*models.Transaction{}
	}
	r.rows[tx.AccountNumber][tx.TransactionID] = tx
	return nil
}

func (r *memTransactionRepo) GetTransaction(_ context.Context, accountNumber string, transactionID uuid.UUID) (*models.Transaction, error) {
	if tx, ok := r.rows[accountNumber][transactionID]; ok {
		return tx, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memTransactionRepo) ListTransactions(_ context.Context, accountNumber string, _ int) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for _, tx := range r.rows[accountNumber] {
		out = append(out, tx)
	}
	return out, nil
}

func (r *memTransactionRepo) UpdateTransaction(_ context.Context, tx *models.Transaction) error {
	if _, ok := r.rows[tx.AccountNumber][tx.TransactionID]; !ok {
		return repository.ErrNotFound
	}
	r.rows[tx.AccountNumber][tx.TransactionID] = tx
	return nil
}

func (r *memTransactionRepo) DeleteTransaction(_ context.Context, accountNumber string, transactionID uuid.UUID) error {
	if _, ok := r.rows[accountNumber][transactionID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.rows[accountNumber], transactionID)
	return nil
}

func newTestTransactionService() (*TransactionService, *memAccountRepo, *models.Account) {
	accounts := newMemAccountRepo()
	account := &models.Account{
		AccountNumber: "01234567",
		OwnerID:       uuid.New(),
		Balance:       decimal.RequireFromString("100.00"),
		Currency:      "USD",
		Status:        models.AccountStatusActive,
	}
	accounts.accounts[account.AccountNumber] = account

	svc := NewTransactionService(newMemTransactionRepo(), accounts, zap.NewNop())
	return svc, accounts, account
}

func TestCreateTransactionDeposit(t *testing.T) {
	svc, accounts, account := newTestTransactionService()

	tx, err := svc.CreateTransaction(context.Background(), account.AccountNumber, &TransactionCreateRequest{
		Kind:   models.TransactionKindDeposit,
		Amount: decimal.RequireFromString("25.50"),
	})
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if !tx.BalanceAfter.Equal(decimal.RequireFromString("125.50")) {
		t.Errorf("BalanceAfter = %s, want 125.50", tx.BalanceAfter)
	}

	stored, _ := accounts.GetAccount(context.Background(), account.AccountNumber)
	if !stored.Balance.Equal(decimal.RequireFromString("125.50")) {
		t.Errorf("account balance = %s, want 125.50", stored.Balance)
	}
}

func TestCreateTransactionWithdrawal(t *testing.T) {
	svc, accounts, account := newTestTransactionService()

	tx, err := svc.CreateTransaction(context.Background(), account.AccountNumber, &TransactionCreateRequest{
		Kind:   models.TransactionKindWithdrawal,
		Amount: decimal.RequireFromString("100.00"),
	})
	if err != nil {
		t.Fatalf("withdrawal to zero should succeed: %v", err)
	}
	if !tx.BalanceAfter.IsZero() {
		t.Errorf("BalanceAfter = %s, want 0", tx.BalanceAfter)
	}

	stored, _ := accounts.GetAccount(context.Background(), account.AccountNumber)
	if !stored.Balance.IsZero() {
		t.Errorf("account balance = %s, want 0", stored.Balance)
	}
}

func TestCreateTransactionInsufficientFunds(t *testing.T) {
	svc, accounts, account := newTestTransactionService()

	_, err := svc.CreateTransaction(context.Background(), account.AccountNumber, &TransactionCreateRequest{
		Kind:   models.TransactionKindWithdrawal,
		Amount: decimal.RequireFromString("100.01"),
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	// The balance must be untouched after a rejected withdrawal.
	stored, _ := accounts.GetAccount(context.Background(), account.AccountNumber)
	if !stored.Balance.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("account balance = %s, want 100.00", stored.Balance)
	}
}

func TestCreateTransactionRejectsInvalidInput(t *testing.T) {
	svc, _, account := newTestTransactionService()
	ctx := context.Background()

	if _, err := svc.CreateTransaction(ctx, account.AccountNumber, &TransactionCreateRequest{
		Kind:   models.TransactionKindDeposit,
		Amount: decimal.Zero,
	}); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount: err = %v, want ErrInvalidAmount", err)
	}

	if _, err := svc.CreateTransaction(ctx, account.AccountNumber, &TransactionCreateRequest{
		Kind:   models.TransactionKindDeposit,
		Amount: decimal.RequireFromString("-5"),
	}); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative amount: err = %v, want ErrInvalidAmount", err)
	}

	if _, err := svc.CreateTransaction(ctx, account.AccountNumber, &TransactionCreateRequest{
		Kind:   "TRANSFER",
		Amount: decimal.RequireFromString("5"),
	}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown kind: err = %v, want ErrInvalidInput", err)
	}
}

func TestCreateTransactionClosedAccount(t *testing.T) {
	svc, accounts, account := newTestTransactionService()

	account.Status = models.AccountStatusClosed
	accounts.accounts[account.AccountNumber] = account

	_, err := svc.CreateTransaction(context.Background(), account.AccountNumber, &TransactionCreateRequest{
		Kind:   models.TransactionKindDeposit,
		Amount: decimal.RequireFromString("5"),
	})
	if !errors.Is(err, ErrAccountClosed) {
		t.Fatalf("err = %v, want ErrAccountClosed", err)
	}
}

func TestCreateTransactionUnknownAccount(t *testing.T) {
	svc, _, _ := newTestTransactionService()

	_, err := svc.CreateTransaction(context.Background(), "99999999", &TransactionCreateRequest{
		Kind:   models.TransactionKindDeposit,
		Amount: decimal.RequireFromString("5"),
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
