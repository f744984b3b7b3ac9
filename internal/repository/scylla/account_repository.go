package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"banking-service/internal/models"
	"banking-service/internal/repository"
	"banking-service/internal/util"
)

// AccountRepository persists accounts. Balances are stored as text and
// parsed with shopspring/decimal so no precision is lost in transit.
type AccountRepository struct {
	client *ScyllaClient
}

func NewAccountRepository(client *ScyllaClient) *AccountRepository {
	return &AccountRepository{client: client}
}

func (r *AccountRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	account.CreatedAt = time.Now().UTC()

	batch := r.client.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(r.client.Prepared.CreateAccount,
		account.AccountNumber, account.OwnerID.String(), account.Balance.String(),
		account.Currency, account.Status, account.CreatedAt, account.UpdatedAt)
	batch.Query(r.client.Prepared.CreateAccountByOwner,
		account.OwnerID.String(), account.AccountNumber)

	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		util.Error("Failed to create account",
			util.String("account_number", account.AccountNumber),
			util.ErrorField(err))
		return fmt.Errorf("failed to create account: %w", err)
	}

	util.Info("Account created",
		util.String("account_number", account.AccountNumber),
		util.String("owner_id", account.OwnerID.String()))
	return nil
}

func (r *AccountRepository) GetAccount(ctx context.Context, accountNumber string) (*models.Account, error) {
	account := &models.Account{}
	var ownerStr, balanceStr string

	err := r.client.Session.Query(r.client.Prepared.GetAccount, accountNumber).
		WithContext(ctx).
		Scan(&account.AccountNumber, &ownerStr, &balanceStr, &account.Currency,
			&account.Status, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if account.OwnerID, err = uuid.Parse(ownerStr); err != nil {
		return nil, fmt.Errorf("invalid stored owner id %q: %w", ownerStr, err)
	}
	if account.Balance, err = decimal.NewFromString(balanceStr); err != nil {
		return nil, fmt.Errorf("invalid stored balance %q: %w", balanceStr, err)
	}
	return account, nil
}

func (r *AccountRepository) ListAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Account, error) {
	iter := r.client.Session.Query(r.client.Prepared.ListAccountsByOwner, ownerID.String()).
		WithContext(ctx).
		Iter()

	var numbers []string
	var number string
	for iter.Scan(&number) {
		numbers = append(numbers, number)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list accounts by owner: %w", err)
	}

	accounts := make([]*models.Account, 0, len(numbers))
	for _, n := range numbers {
		account, err := r.GetAccount(ctx, n)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue // lookup row outlived the account row
			}
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (r *AccountRepository) UpdateAccount(ctx context.Context, account *models.Account) error {
	now := time.Now().UTC()
	account.UpdatedAt = &now

	err := r.client.Session.Query(r.client.Prepared.UpdateAccount,
		account.Balance.String(), account.Status, account.UpdatedAt, account.AccountNumber).
		WithContext(ctx).
		Exec()
	if err != nil {
		util.Error("Failed to update account",
			util.String("account_number", account.AccountNumber),
			util.ErrorField(err))
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

func (r *AccountRepository) DeleteAccount(ctx context.Context, accountNumber string) error {
	account, err := r.GetAccount(ctx, accountNumber)
	if err != nil {
		return err
	}

	batch := r.client.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(r.client.Prepared.DeleteAccount, accountNumber)
	batch.Query(r.client.Prepared.DeleteAccountByOwner, account.OwnerID.String(), accountNumber)

	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	util.Info("Account deleted", util.String("account_number", accountNumber))
	return nil
}
