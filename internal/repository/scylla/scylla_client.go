package scylla

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"banking-service/internal/config"
	"banking-service/internal/util"
)

// PreparedStatements holds the statements the repositories bind at runtime.
type PreparedStatements struct {
	CreateUser        string
	CreateUserByEmail string
	GetUserByID       string
	GetUserByEmail    string
	ListUsers         string
	UpdateUser        string
	DeleteUser        string
	DeleteUserByEmail string

	CreateAccount        string
	CreateAccountByOwner string
	GetAccount           string
	ListAccountsByOwner  string
	UpdateAccount        string
	DeleteAccount        string
	DeleteAccountByOwner string

	CreateTransaction string
	GetTransaction    string
	ListTransactions  string
	UpdateTransaction string
	DeleteTransaction string
}

type ScyllaClient struct {
	Session  *gocql.Session
	Prepared PreparedStatements
}

func NewScyllaClient(cfg *config.Config) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	util.Info("Scylla client initialized",
		util.Any("nodes", scyllaConfig.Nodes),
		util.String("keyspace", scyllaConfig.Keyspace))

	return &ScyllaClient{
		Session:  session,
		Prepared: defaultStatements(),
	}, nil
}

func defaultStatements() PreparedStatements {
	return PreparedStatements{
		CreateUser:        `INSERT INTO users_by_id (user_id, email, full_name, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		CreateUserByEmail: `INSERT INTO users_by_email (email, user_id) VALUES (?, ?)`,
		GetUserByID:       `SELECT user_id, email, full_name, is_active, created_at, updated_at FROM users_by_id WHERE user_id = ?`,
		GetUserByEmail:    `SELECT user_id FROM users_by_email WHERE email = ?`,
		ListUsers:         `SELECT user_id, email, full_name, is_active, created_at, updated_at FROM users_by_id LIMIT ?`,
		UpdateUser:        `UPDATE users_by_id SET full_name = ?, is_active = ?, updated_at = ? WHERE user_id = ?`,
		DeleteUser:        `DELETE FROM users_by_id WHERE user_id = ?`,
		DeleteUserByEmail: `DELETE FROM users_by_email WHERE email = ?`,

		CreateAccount:        `INSERT INTO accounts (account_number, owner_id, balance, currency, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		CreateAccountByOwner: `INSERT INTO accounts_by_owner (owner_id, account_number) VALUES (?, ?)`,
		GetAccount:           `SELECT account_number, owner_id, balance, currency, status, created_at, updated_at FROM accounts WHERE account_number = ?`,
		ListAccountsByOwner:  `SELECT account_number FROM accounts_by_owner WHERE owner_id = ?`,
		UpdateAccount:        `UPDATE accounts SET balance = ?, status = ?, updated_at = ? WHERE account_number = ?`,
		DeleteAccount:        `DELETE FROM accounts WHERE account_number = ?`,
		DeleteAccountByOwner: `DELETE FROM accounts_by_owner WHERE owner_id = ? AND account_number = ?`,

		CreateTransaction: `INSERT INTO transactions_by_account (account_number, transaction_id, kind, amount, balance_after, description, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		GetTransaction:    `SELECT account_number, transaction_id, kind, amount, balance_after, description, created_at FROM transactions_by_account WHERE account_number = ? AND transaction_id = ?`,
		ListTransactions:  `SELECT account_number, transaction_id, kind, amount, balance_after, description, created_at FROM transactions_by_account WHERE account_number = ? LIMIT ?`,
		UpdateTransaction: `UPDATE transactions_by_account SET description = ? WHERE account_number = ? AND transaction_id = ?`,
		DeleteTransaction: `DELETE FROM transactions_by_account WHERE account_number = ? AND transaction_id = ?`,
	}
}

func (c *ScyllaClient) HealthCheck() error {
	if err := c.Session.Query(`SELECT now() FROM system.local`).Exec(); err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}
	return nil
}

func (c *ScyllaClient) Close() {
	if c.Session != nil {
		c.Session.Close()
		util.Info("Scylla session closed")
	}
}
