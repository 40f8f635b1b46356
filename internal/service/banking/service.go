// Package banking gates every account operation behind identity resolution
// and the blacklist check before handing it to the ledger.
package banking

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-service/internal/domain"
	"github.com/josh-kwaku/banking-service/internal/logging"
	"github.com/josh-kwaku/banking-service/internal/service/ledger"
)

type identityResolver interface {
	Resolve(ctx context.Context, credential string) (*domain.Identity, error)
}

type ledgerService interface {
	Balance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	Deposit(ctx context.Context, req ledger.DepositRequest) (*domain.Transaction, error)
	Withdraw(ctx context.Context, req ledger.WithdrawRequest) (*domain.Transaction, error)
	History(ctx context.Context, accountID int64, page domain.Page) ([]domain.Transaction, int, error)
}

type Service struct {
	identity identityResolver
	ledger   ledgerService
}

func NewService(identity identityResolver, ledger ledgerService) *Service {
	return &Service{identity: identity, ledger: ledger}
}

type MutationRequest struct {
	Credential     string
	Amount         decimal.Decimal
	IdempotencyKey string
}

func (s *Service) Deposit(ctx context.Context, req MutationRequest) (*domain.Transaction, error) {
	ident, err := s.authorize(ctx, req.Credential)
	if err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	t, err := s.ledger.Deposit(ctx, ledger.DepositRequest{
		AccountID:      ident.AccountID(),
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}
	return t, nil
}

func (s *Service) Withdraw(ctx context.Context, req MutationRequest) (*domain.Transaction, error) {
	ident, err := s.authorize(ctx, req.Credential)
	if err != nil {
		return nil, fmt.Errorf("Withdraw: %w", err)
	}

	t, err := s.ledger.Withdraw(ctx, ledger.WithdrawRequest{
		AccountID:      ident.AccountID(),
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("Withdraw: %w", err)
	}
	return t, nil
}

func (s *Service) Balance(ctx context.Context, credential string) (decimal.Decimal, error) {
	ident, err := s.authorize(ctx, credential)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Balance: %w", err)
	}

	balance, err := s.ledger.Balance(ctx, ident.AccountID())
	if err != nil {
		return decimal.Zero, fmt.Errorf("Balance: %w", err)
	}
	return balance, nil
}

func (s *Service) History(ctx context.Context, credential string, page domain.Page) ([]domain.Transaction, int, error) {
	ident, err := s.authorize(ctx, credential)
	if err != nil {
		return nil, 0, fmt.Errorf("History: %w", err)
	}

	txs, total, err := s.ledger.History(ctx, ident.AccountID(), page)
	if err != nil {
		return nil, 0, fmt.Errorf("History: %w", err)
	}
	return txs, total, nil
}

// authorize resolves the caller and refuses blacklisted users. Reads are
// refused too, not only mutations.
func (s *Service) authorize(ctx context.Context, credential string) (*domain.Identity, error) {
	ident, err := s.identity.Resolve(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w: %w", domain.ErrUnauthorized, err)
	}
	if ident.Blacklisted {
		logging.FromContext(ctx).Warn("blacklisted caller refused", "user_id", ident.UserID)
		return nil, fmt.Errorf("authorize: user %d: %w", ident.UserID, domain.ErrForbidden)
	}
	return ident, nil
}
