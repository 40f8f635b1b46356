// Package ledger derives account balances from the append-only transaction
// log and records deposits and withdrawals under a per-account lock.
package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-service/internal/domain"
	"github.com/josh-kwaku/banking-service/internal/repository"
)

type transactionRepo interface {
	Create(ctx context.Context, q repository.Querier, t *domain.Transaction) error
	ListByAccount(ctx context.Context, q repository.Querier, accountID int64) ([]domain.Transaction, error)
	History(ctx context.Context, accountID int64, limit, offset int) ([]domain.Transaction, int, error)
	GetByIdempotencyKey(ctx context.Context, q repository.Querier, accountID int64, key string) (*domain.Transaction, error)
}

type accountRepo interface {
	Ensure(ctx context.Context, q repository.Querier, id int64) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, id int64, newBalance decimal.Decimal, newVersion int64) error
}

type eventRepo interface {
	Create(ctx context.Context, q repository.Querier, event *domain.TransactionEvent) error
}

type Service struct {
	transactions transactionRepo
	accounts     accountRepo
	events       eventRepo
	db           *sql.DB
	now          func() time.Time
}

type Option func(*Service)

// WithEvents enables the outbox: every recorded transaction also writes a
// transaction.recorded event in the same database transaction.
func WithEvents(events eventRepo) Option {
	return func(s *Service) { s.events = events }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(transactions transactionRepo, accounts accountRepo, db *sql.DB, opts ...Option) *Service {
	s := &Service{
		transactions: transactions,
		accounts:     accounts,
		db:           db,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
