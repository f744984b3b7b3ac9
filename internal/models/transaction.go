package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction kinds
const (
	TransactionKindDeposit    = "DEPOSIT"
	TransactionKindWithdrawal = "WITHDRAWAL"
)

type Transaction struct {
	TransactionID uuid.UUID       `db:"transaction_id" json:"transaction_id"`
	AccountNumber string          `db:"account_number" json:"account_number"`
	Kind          string          `db:"kind" json:"kind"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	BalanceAfter  decimal.Decimal `db:"balance_after" json:"balance_after"`
	Description   string          `db:"description" json:"description,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
