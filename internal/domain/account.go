package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the per-account row that anchors the mutation lock. Balance is a
// materialized running total kept in step with the ledger; the ledger fold is
// authoritative.
type Account struct {
	ID        int64
	Balance   decimal.Decimal
	Version   int64
	UpdatedAt time.Time
}
