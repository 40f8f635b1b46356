package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/josh-kwaku/banking-service/internal/domain"
)

const transactionColumns = `id, type, amount, account_id, transaction_date, idempotency_key`

const uniqueViolation = "23505"

// TransactionRepository is the append-only ledger store. It has
// no update or delete; the schema also rejects them with a trigger.
type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends t and fills in the store-assigned ID.
func (r *TransactionRepository) Create(ctx context.Context, q Querier, t *domain.Transaction) error {
	err := q.QueryRowContext(ctx,
		`INSERT INTO transactions (type, amount, account_id, transaction_date, idempotency_key)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		string(t.Kind), t.Amount, t.AccountID, t.OccurredAt, t.IdempotencyKey,
	).Scan(&t.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("Create: %w", domain.ErrIdempotencyConflict)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ListByAccount returns every transaction of the account in id order.
func (r *TransactionRepository) ListByAccount(ctx context.Context, q Querier, accountID int64) ([]domain.Transaction, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = $1 ORDER BY id`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: %w", err)
	}
	defer rows.Close()

	txs, err := scanTransactions(rows)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: %w", err)
	}
	return txs, nil
}

// History returns one page of the account's transactions, newest first with
// ascending id breaking timestamp ties, and the account's total count. Both
// queries read the same snapshot.
func (r *TransactionRepository) History(ctx context.Context, accountID int64, limit, offset int) ([]domain.Transaction, int, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("History: begin tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("History: count: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE account_id = $1 ORDER BY transaction_date DESC, id ASC LIMIT $2 OFFSET $3`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("History: %w", err)
	}
	txs, err := scanTransactions(rows)
	rows.Close()
	if err != nil {
		return nil, 0, fmt.Errorf("History: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("History: commit: %w", err)
	}
	return txs, total, nil
}

func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, q Querier, accountID int64, key string) (*domain.Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = $1 AND idempotency_key = $2`,
		accountID, key,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByIdempotencyKey: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByIdempotencyKey: %w", err)
	}
	return t, nil
}

func scanTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	txs := []domain.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		txs = append(txs, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return txs, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	err := s.Scan(
		&t.ID, &t.Kind, &t.Amount, &t.AccountID, &t.OccurredAt, &t.IdempotencyKey,
	)
	if err != nil {
		return nil, err
	}
	t.OccurredAt = t.OccurredAt.UTC()
	return &t, nil
}
