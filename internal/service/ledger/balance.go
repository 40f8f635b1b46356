package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-service/internal/domain"
)

// Balance folds every transaction of the account. An account with no history
// has a zero balance.
func (s *Service) Balance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	txs, err := s.transactions.ListByAccount(ctx, s.db, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Balance: %w", err)
	}
	return domain.Fold(txs), nil
}

// History returns one page of the account's transactions, newest first, and
// the total number of transactions on the account.
func (s *Service) History(ctx context.Context, accountID int64, page domain.Page) ([]domain.Transaction, int, error) {
	page = page.Normalize()

	txs, total, err := s.transactions.History(ctx, accountID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("History: %w", err)
	}
	return txs, total, nil
}
