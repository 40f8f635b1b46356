package repository_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/banking-service/internal/domain"
	"github.com/josh-kwaku/banking-service/internal/repository"
	"github.com/josh-kwaku/banking-service/internal/testutil"
)

func TestAccountRepository_EnsureSeedsFromLedger(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	accounts := repository.NewAccountRepository(db)

	now := time.Now()
	testutil.SeedTransaction(t, db, 7, domain.KindDeposit, "120.00", now)
	testutil.SeedTransaction(t, db, 7, domain.KindWithdrawal, "20.50", now)

	require.NoError(t, accounts.Ensure(ctx, db, 7))
	require.NoError(t, accounts.Ensure(ctx, db, 7))

	acct, err := accounts.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("99.50").Equal(acct.Balance), "balance %s", acct.Balance)
	assert.Equal(t, int64(0), acct.Version)
}

func TestAccountRepository_GetByIDMissing(t *testing.T) {
	db := testutil.SetupTestDB(t)

	_, err := repository.NewAccountRepository(db).GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccountRepository_UpdateBalanceVersionConflict(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	accounts := repository.NewAccountRepository(db)
	require.NoError(t, accounts.Ensure(ctx, db, 1))

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, accounts.UpdateBalance(ctx, tx, 1, decimal.NewFromInt(10), 1))

	err = accounts.UpdateBalance(ctx, tx, 1, decimal.NewFromInt(20), 1)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
}

func TestTransactionRepository_IdempotencyKey(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	transactions := repository.NewTransactionRepository(db)

	key := "order-1"
	first := newTransaction(1, "10.00", &key)
	require.NoError(t, transactions.Create(ctx, db, first))
	assert.NotZero(t, first.ID)

	got, err := transactions.GetByIdempotencyKey(ctx, db, 1, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	err = transactions.Create(ctx, db, newTransaction(1, "10.00", &key))
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)

	// Keys are scoped to the account.
	require.NoError(t, transactions.Create(ctx, db, newTransaction(2, "10.00", &key)))

	_, err = transactions.GetByIdempotencyKey(ctx, db, 1, "unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransactionRepository_ListByAccountInsideTx(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	transactions := repository.NewTransactionRepository(db)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, transactions.Create(ctx, tx, newTransaction(3, "5.00", nil)))

	inTx, err := transactions.ListByAccount(ctx, tx, 3)
	require.NoError(t, err)
	assert.Len(t, inTx, 1)

	require.NoError(t, tx.Rollback())

	after, err := transactions.ListByAccount(ctx, db, 3)
	require.NoError(t, err)
	assert.Empty(t, after)
}

func TestTransactionRepository_HistoryTotalMatchesPageUnderAppends(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	transactions := repository.NewTransactionRepository(db)
	const account int64 = 9

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 100 {
			if err := transactions.Create(ctx, db, newTransaction(account, "1.00", nil)); err != nil {
				t.Errorf("append: %v", err)
				return
			}
		}
	}()

	for range 100 {
		page, total, err := transactions.History(ctx, account, 500, 0)
		require.NoError(t, err)
		require.Len(t, page, total)
	}
	wg.Wait()

	page, total, err := transactions.History(ctx, account, 10, 95)
	require.NoError(t, err)
	assert.Equal(t, 100, total)
	assert.Len(t, page, 5)
}

func newTransaction(accountID int64, amount string, key *string) *domain.Transaction {
	return &domain.Transaction{
		Kind:           domain.KindDeposit,
		Amount:         decimal.RequireFromString(amount),
		AccountID:      accountID,
		OccurredAt:     time.Now().UTC(),
		IdempotencyKey: key,
	}
}

var _ repository.Querier = (*sql.DB)(nil)
var _ repository.Querier = (*sql.Tx)(nil)
