package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-service/internal/domain"
)

// SeedTransaction writes a ledger row directly, bypassing the engine. Use it
// to set up history that predates the accounts table.
func SeedTransaction(t *testing.T, db *sql.DB, accountID int64, kind domain.Kind, amount string, at time.Time) domain.Transaction {
	t.Helper()

	tx := domain.Transaction{
		Kind:       kind,
		Amount:     decimal.RequireFromString(amount),
		AccountID:  accountID,
		OccurredAt: at.UTC().Truncate(time.Microsecond),
	}
	err := db.QueryRow(
		`INSERT INTO transactions (type, amount, account_id, transaction_date)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		string(tx.Kind), tx.Amount, tx.AccountID, tx.OccurredAt,
	).Scan(&tx.ID)
	if err != nil {
		t.Fatalf("seed transaction for account %d: %v", accountID, err)
	}
	return tx
}

// SetStoredBalance overwrites the materialized balance without touching the
// ledger.
func SetStoredBalance(t *testing.T, db *sql.DB, accountID int64, balance string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO accounts (id, balance) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET balance = EXCLUDED.balance`,
		accountID, decimal.RequireFromString(balance),
	)
	if err != nil {
		t.Fatalf("set stored balance for account %d: %v", accountID, err)
	}
}

func GetStoredBalance(t *testing.T, db *sql.DB, accountID int64) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(`SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		t.Fatalf("get stored balance for account %d: %v", accountID, err)
	}
	return balance
}

func CountTransactions(t *testing.T, db *sql.DB, accountID int64) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		t.Fatalf("count transactions for account %d: %v", accountID, err)
	}
	return count
}

func CountEvents(t *testing.T, db *sql.DB, status domain.EventStatus) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM transaction_events WHERE status = $1`, string(status)).Scan(&count)
	if err != nil {
		t.Fatalf("count %s events: %v", status, err)
	}
	return count
}
