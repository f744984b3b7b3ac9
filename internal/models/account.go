package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account statuses
const (
	AccountStatusActive = "ACTIVE"
	AccountStatusClosed = "CLOSED"
)

type Account struct {
	AccountNumber string          `db:"account_number" json:"account_number"`
	OwnerID       uuid.UUID       `db:"owner_id" json:"owner_id"`
	Balance       decimal.Decimal `db:"balance" json:"balance"`
	Currency      string          `db:"currency" json:"currency"`
	Status        string          `db:"status" json:"status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     *time.Time      `db:"updated_at" json:"updated_at,omitempty"`
}
