package domain

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func tx(kind Kind, amount string) Transaction {
	return Transaction{Kind: kind, Amount: decimal.RequireFromString(amount)}
}

func TestFold(t *testing.T) {
	tests := []struct {
		name string
		txs  []Transaction
		want string
	}{
		{
			name: "no transactions",
			txs:  nil,
			want: "0",
		},
		{
			name: "deposits only",
			txs:  []Transaction{tx(KindDeposit, "100.00"), tx(KindDeposit, "0.10")},
			want: "100.10",
		},
		{
			name: "deposit then withdrawal",
			txs:  []Transaction{tx(KindDeposit, "100.00"), tx(KindWithdrawal, "50.00")},
			want: "50.00",
		},
		{
			name: "repeated cents do not drift",
			txs: []Transaction{
				tx(KindDeposit, "0.10"), tx(KindDeposit, "0.10"), tx(KindDeposit, "0.10"),
				tx(KindWithdrawal, "0.30"),
			},
			want: "0",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Fold(tc.txs)
			assert.True(t, decimal.RequireFromString(tc.want).Equal(got), "got %s, want %s", got, tc.want)
		})
	}
}

func TestFold_OrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for range 50 {
		var txs []Transaction
		want := decimal.Zero
		for range rng.Intn(30) + 1 {
			amount := decimal.New(rng.Int63n(100_000)+1, -AmountScale)
			kind := KindDeposit
			if rng.Intn(2) == 0 {
				kind = KindWithdrawal
				want = want.Sub(amount)
			} else {
				want = want.Add(amount)
			}
			txs = append(txs, Transaction{Kind: kind, Amount: amount})
		}

		forward := Fold(txs)
		rng.Shuffle(len(txs), func(i, j int) { txs[i], txs[j] = txs[j], txs[i] })
		shuffled := Fold(txs)

		assert.True(t, want.Equal(forward), "forward fold %s, want %s", forward, want)
		assert.True(t, forward.Equal(shuffled), "shuffled fold %s, forward %s", shuffled, forward)
	}
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wantErr bool
	}{
		{name: "positive", amount: "100.00"},
		{name: "one cent", amount: "0.01"},
		{name: "whole number", amount: "7"},
		{name: "trailing zeros beyond scale", amount: "1.500"},
		{name: "zero", amount: "0", wantErr: true},
		{name: "negative", amount: "-5.00", wantErr: true},
		{name: "negative cent", amount: "-0.01", wantErr: true},
		{name: "sub-cent", amount: "0.001", wantErr: true},
		{name: "three decimals", amount: "10.125", wantErr: true},
		{name: "largest storable", amount: "99999999999999999.99"},
		{name: "trailing zeros on a large amount", amount: "99999999999999999.990000"},
		{name: "ten to the seventeenth", amount: "100000000000000000", wantErr: true},
		{name: "exponent seventeen", amount: "1e17", wantErr: true},
		{name: "exponent thirty", amount: "1e30", wantErr: true},
		{name: "huge exponent", amount: "1e50000000", wantErr: true},
		{name: "huge negative exponent", amount: "1e-50000000", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAmount(decimal.RequireFromString(tc.amount))
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStorable(t *testing.T) {
	tests := []struct {
		amount string
		want   bool
	}{
		{"0", true},
		{"12.34", true},
		{"99999999999999999.99", true},
		{"-99999999999999999.99", true},
		{"100000000000000000", false},
		{"-100000000000000000", false},
		{"1e50000000", false},
	}

	for _, tc := range tests {
		t.Run(tc.amount, func(t *testing.T) {
			assert.Equal(t, tc.want, Storable(decimal.RequireFromString(tc.amount)))
		})
	}
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Limit: DefaultPageLimit}, Page{}.Normalize())
	assert.Equal(t, Page{Limit: MaxPageLimit, Offset: 10}, Page{Limit: 10_000, Offset: 10}.Normalize())
	assert.Equal(t, Page{Limit: 5}, Page{Limit: 5, Offset: -3}.Normalize())
}
