package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-service/internal/domain"
	"github.com/josh-kwaku/banking-service/internal/logging"
)

type DepositRequest struct {
	AccountID      int64
	Amount         decimal.Decimal
	IdempotencyKey string
}

type WithdrawRequest struct {
	AccountID      int64
	Amount         decimal.Decimal
	IdempotencyKey string
}

type mutation struct {
	kind           domain.Kind
	accountID      int64
	amount         decimal.Decimal
	idempotencyKey string
}

func (s *Service) Deposit(ctx context.Context, req DepositRequest) (*domain.Transaction, error) {
	t, err := s.record(ctx, mutation{
		kind:           domain.KindDeposit,
		accountID:      req.AccountID,
		amount:         req.Amount,
		idempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}
	return t, nil
}

// Withdraw appends a withdrawal only if the account's ledger balance covers
// it. Otherwise it returns domain.ErrInsufficientFunds and the ledger is left
// untouched.
func (s *Service) Withdraw(ctx context.Context, req WithdrawRequest) (*domain.Transaction, error) {
	t, err := s.record(ctx, mutation{
		kind:           domain.KindWithdrawal,
		accountID:      req.AccountID,
		amount:         req.Amount,
		idempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("Withdraw: %w", err)
	}
	return t, nil
}

// record runs one mutation in a single database transaction. The account row
// is locked before anything is read, so mutations of one account are
// serialized while other accounts proceed independently.
func (s *Service) record(ctx context.Context, m mutation) (*domain.Transaction, error) {
	log := logging.FromContext(ctx).With("account_id", m.accountID, "kind", m.kind)

	if err := domain.ValidateAmount(m.amount); err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("record: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.accounts.Ensure(ctx, tx, m.accountID); err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	acct, err := s.accounts.GetForUpdate(ctx, tx, m.accountID)
	if err != nil {
		return nil, fmt.Errorf("record: lock account: %w", err)
	}

	if m.idempotencyKey != "" {
		prior, err := s.replay(ctx, tx, m)
		if err != nil {
			return nil, fmt.Errorf("record: %w", err)
		}
		if prior != nil {
			log.Info("idempotent replay", "transaction_id", prior.ID)
			return prior, nil
		}
	}

	balance := acct.Balance
	if m.kind == domain.KindWithdrawal {
		balance, err = s.ledgerBalance(ctx, tx, acct)
		if err != nil {
			return nil, fmt.Errorf("record: %w", err)
		}
		if balance.LessThan(m.amount) {
			if !balance.Equal(acct.Balance) {
				if err := s.commitRepair(ctx, tx, acct, balance); err != nil {
					log.Error("balance repair failed", "error", err)
				}
			}
			log.Info("withdrawal rejected", "amount", m.amount.StringFixed(domain.AmountScale), "balance", balance.StringFixed(domain.AmountScale))
			return nil, fmt.Errorf("record: %w", domain.ErrInsufficientFunds)
		}
	}

	next := balance.Add(m.amount)
	if m.kind == domain.KindWithdrawal {
		next = balance.Sub(m.amount)
	}
	if !domain.Storable(next) {
		log.Info("mutation rejected, balance out of range", "amount", m.amount.StringFixed(domain.AmountScale))
		return nil, fmt.Errorf("record: balance out of range: %w", domain.ErrInvalidAmount)
	}

	t := &domain.Transaction{
		Kind:       m.kind,
		Amount:     m.amount,
		AccountID:  m.accountID,
		OccurredAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if m.idempotencyKey != "" {
		key := m.idempotencyKey
		t.IdempotencyKey = &key
	}
	if err := s.transactions.Create(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("record: append: %w", err)
	}

	if err := s.accounts.UpdateBalance(ctx, tx, acct.ID, next, acct.Version+1); err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}

	if s.events != nil {
		if err := s.writeEvent(ctx, tx, t, next); err != nil {
			return nil, fmt.Errorf("record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("record: commit: %w", err)
	}

	log.Info("transaction recorded",
		"transaction_id", t.ID,
		"amount", t.Amount.StringFixed(domain.AmountScale),
		"balance", next.StringFixed(domain.AmountScale),
	)
	return t, nil
}

// replay returns the transaction previously recorded under m's idempotency
// key, or nil if the key is new. Reusing a key for a different request is a
// conflict.
func (s *Service) replay(ctx context.Context, tx *sql.Tx, m mutation) (*domain.Transaction, error) {
	prior, err := s.transactions.GetByIdempotencyKey(ctx, tx, m.accountID, m.idempotencyKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("replay: %w", err)
	}
	if prior.Kind != m.kind || !prior.Amount.Equal(m.amount) {
		return nil, fmt.Errorf("replay: %w", domain.ErrIdempotencyConflict)
	}
	return prior, nil
}

// ledgerBalance folds the locked account's ledger and reports drift between
// the fold and the stored running total. The fold wins.
func (s *Service) ledgerBalance(ctx context.Context, tx *sql.Tx, acct *domain.Account) (decimal.Decimal, error) {
	history, err := s.transactions.ListByAccount(ctx, tx, acct.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledgerBalance: %w", err)
	}

	folded := domain.Fold(history)
	if !folded.Equal(acct.Balance) {
		logging.FromContext(ctx).Warn("stored balance drifted from ledger",
			"account_id", acct.ID,
			"stored", acct.Balance.StringFixed(domain.AmountScale),
			"ledger", folded.StringFixed(domain.AmountScale),
		)
	}
	return folded, nil
}

// commitRepair persists a corrected running total on a path that appends
// nothing to the ledger.
func (s *Service) commitRepair(ctx context.Context, tx *sql.Tx, acct *domain.Account, folded decimal.Decimal) error {
	if err := s.accounts.UpdateBalance(ctx, tx, acct.ID, folded, acct.Version+1); err != nil {
		return fmt.Errorf("commitRepair: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commitRepair: commit: %w", err)
	}
	return nil
}

type recordedPayload struct {
	TransactionID int64       `json:"transactionId"`
	AccountID     int64       `json:"accountId"`
	Kind          domain.Kind `json:"kind"`
	Amount        string      `json:"amount"`
	Balance       string      `json:"balance"`
	OccurredAt    time.Time   `json:"occurredAt"`
}

func (s *Service) writeEvent(ctx context.Context, tx *sql.Tx, t *domain.Transaction, balance decimal.Decimal) error {
	payload, err := json.Marshal(recordedPayload{
		TransactionID: t.ID,
		AccountID:     t.AccountID,
		Kind:          t.Kind,
		Amount:        t.Amount.StringFixed(domain.AmountScale),
		Balance:       balance.StringFixed(domain.AmountScale),
		OccurredAt:    t.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("writeEvent: marshal: %w", err)
	}

	event := &domain.TransactionEvent{
		ID:            uuid.New(),
		TransactionID: t.ID,
		AccountID:     t.AccountID,
		EventType:     domain.EventTypeTransactionRecorded,
		Payload:       payload,
		Status:        domain.EventStatusPending,
		CreatedAt:     t.OccurredAt,
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("writeEvent: %w", err)
	}
	return nil
}
