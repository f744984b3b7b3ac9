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

// TransactionRepository persists the transaction ledger, partitioned by
// account so listing an account's history is one partition scan.
type TransactionRepository struct {
	client *ScyllaClient
}

func NewTransactionRepository(client *ScyllaClient) *TransactionRepository {
	return &TransactionRepository{client: client}
}

func (r *TransactionRepository) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.TransactionID == uuid.Nil {
		tx.TransactionID = uuid.New()
	}
	tx.CreatedAt = time.Now().UTC()

	err := r.client.Session.Query(r.client.Prepared.CreateTransaction,
		tx.AccountNumber, tx.TransactionID.String(), tx.Kind,
		tx.Amount.String(), tx.BalanceAfter.String(), tx.Description, tx.CreatedAt).
		WithContext(ctx).
		Exec()
	if err != nil {
		util.Error("Failed to create transaction",
			util.String("account_number", tx.AccountNumber),
			util.String("transaction_id", tx.TransactionID.String()),
			util.ErrorField(err))
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	util.Info("Transaction recorded",
		util.String("account_number", tx.AccountNumber),
		util.String("transaction_id", tx.TransactionID.String()),
		util.String("kind", tx.Kind))
	return nil
}

func (r *TransactionRepository) GetTransaction(ctx context.Context, accountNumber string, transactionID uuid.UUID) (*models.Transaction, error) {
	tx := &models.Transaction{}
	var idStr, amountStr, balanceStr string

	err := r.client.Session.Query(r.client.Prepared.GetTransaction, accountNumber, transactionID.String()).
		WithContext(ctx).
		Scan(&tx.AccountNumber, &idStr, &tx.Kind, &amountStr, &balanceStr,
			&tx.Description, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	if tx.TransactionID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("invalid stored transaction id %q: %w", idStr, err)
	}
	if tx.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amountStr, err)
	}
	if tx.BalanceAfter, err = decimal.NewFromString(balanceStr); err != nil {
		return nil, fmt.Errorf("invalid stored balance %q: %w", balanceStr, err)
	}
	return tx, nil
}

func (r *TransactionRepository) ListTransactions(ctx context.Context, accountNumber string, limit int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	iter := r.client.Session.Query(r.client.Prepared.ListTransactions, accountNumber, limit).
		WithContext(ctx).
		Iter()

	var transactions []*models.Transaction
	var idStr, amountStr, balanceStr string
	tx := &models.Transaction{}
	for iter.Scan(&tx.AccountNumber, &idStr, &tx.Kind, &amountStr, &balanceStr, &tx.Description, &tx.CreatedAt) {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			continue
		}
		balance, err := decimal.NewFromString(balanceStr)
		if err != nil {
			continue
		}
		tx.TransactionID, tx.Amount, tx.BalanceAfter = id, amount, balance
		transactions = append(transactions, tx)
		tx = &models.Transaction{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

func (r *TransactionRepository) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	err := r.client.Session.Query(r.client.Prepared.UpdateTransaction,
		tx.Description, tx.AccountNumber, tx.TransactionID.String()).
		WithContext(ctx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) DeleteTransaction(ctx context.Context, accountNumber string, transactionID uuid.UUID) error {
	err := r.client.Session.Query(r.client.Prepared.DeleteTransaction,
		accountNumber, transactionID.String()).
		WithContext(ctx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	util.Info("Transaction deleted",
		util.String("account_number", accountNumber),
		util.String("transaction_id", transactionID.String()))
	return nil
}
