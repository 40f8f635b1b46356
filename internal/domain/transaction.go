package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits a stored amount may carry.
const AmountScale = 2

// MaxIntegerDigits is the number of integer digits a NUMERIC(19,2) column
// holds. Amounts and balances must stay below 10^MaxIntegerDigits.
const MaxIntegerDigits = 17

type Kind string

// The literal values match the "type" column of existing stored rows.
const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdraw"
)

func (k Kind) IsValid() bool {
	return k == KindDeposit || k == KindWithdrawal
}

type Transaction struct {
	ID             int64
	Kind           Kind
	Amount         decimal.Decimal
	AccountID      int64
	OccurredAt     time.Time
	IdempotencyKey *string
}

// Signed returns the transaction's contribution to its account balance.
func (t Transaction) Signed() decimal.Decimal {
	if t.Kind == KindWithdrawal {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Fold derives a balance from an account's transactions. Order does not matter.
func Fold(txs []Transaction) decimal.Decimal {
	balance := decimal.Zero
	for _, t := range txs {
		balance = balance.Add(t.Signed())
	}
	return balance
}

// ValidateAmount rejects non-positive amounts, amounts finer than a cent and
// amounts too large to store. Bounds are checked on the coefficient and
// exponent so an oversized value is never expanded.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !Storable(amount) {
		return ErrInvalidAmount
	}
	if exp := int(amount.Exponent()); exp < -AmountScale {
		// A whole number of cents needs at least -exp-AmountScale trailing zeros.
		if amount.NumDigits() <= -exp-AmountScale {
			return ErrInvalidAmount
		}
		if !amount.Equal(amount.Truncate(AmountScale)) {
			return ErrInvalidAmount
		}
	}
	return nil
}

// Storable reports whether |d| < 10^MaxIntegerDigits.
func Storable(d decimal.Decimal) bool {
	if d.IsZero() {
		return true
	}
	return d.NumDigits()+int(d.Exponent()) <= MaxIntegerDigits
}

type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// Normalize clamps a requested page to the supported range.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
