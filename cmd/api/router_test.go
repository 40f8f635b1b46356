package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/banking-service/internal/domain"
	"github.com/josh-kwaku/banking-service/internal/handler"
	"github.com/josh-kwaku/banking-service/internal/identity"
	"github.com/josh-kwaku/banking-service/internal/logging"
	"github.com/josh-kwaku/banking-service/internal/service/banking"
	"github.com/josh-kwaku/banking-service/internal/service/ledger"
)

type fakeLedger struct {
	calls atomic.Int32
}

func (f *fakeLedger) Balance(context.Context, int64) (decimal.Decimal, error) {
	f.calls.Add(1)
	return decimal.RequireFromString("50.00"), nil
}

func (f *fakeLedger) Deposit(_ context.Context, req ledger.DepositRequest) (*domain.Transaction, error) {
	f.calls.Add(1)
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	return &domain.Transaction{ID: 1, Kind: domain.KindDeposit, Amount: req.Amount, AccountID: req.AccountID, OccurredAt: time.Now().UTC()}, nil
}

func (f *fakeLedger) Withdraw(_ context.Context, req ledger.WithdrawRequest) (*domain.Transaction, error) {
	f.calls.Add(1)
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	return &domain.Transaction{ID: 2, Kind: domain.KindWithdrawal, Amount: req.Amount, AccountID: req.AccountID, OccurredAt: time.Now().UTC()}, nil
}

func (f *fakeLedger) History(context.Context, int64, domain.Page) ([]domain.Transaction, int, error) {
	f.calls.Add(1)
	return []domain.Transaction{}, 0, nil
}

type endpoint struct {
	method, path, body string
}

var bankingEndpoints = []endpoint{
	{http.MethodPost, "/api/banking/deposit", `{"amount": 100}`},
	{http.MethodPost, "/api/banking/withdraw", `{"amount": 50}`},
	{http.MethodGet, "/api/banking/balance", ""},
	{http.MethodGet, "/api/banking/transactions", ""},
}

func newTestStack(t *testing.T, identityStatus int, identityBody string) (http.Handler, *atomic.Int32, *fakeLedger) {
	t.Helper()

	var hits atomic.Int32
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(identityStatus)
		_, _ = w.Write([]byte(identityBody))
	}))
	t.Cleanup(idp.Close)

	led := &fakeLedger{}
	client := identity.NewClient(idp.URL, idp.Client(), identity.WithRetry(0, time.Millisecond))
	router := newRouter(logging.Discard(), []string{"http://localhost:5173"},
		handler.NewBankingHandler(banking.NewService(client, led)),
		handler.NewHealthHandler(map[string]handler.Check{"database": func(context.Context) error { return nil }}),
	)
	return router, &hits, led
}

func serve(router http.Handler, e endpoint, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(e.method, e.path, strings.NewReader(e.body))
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRouter_TrustedCaller(t *testing.T) {
	router, _, led := newTestStack(t, http.StatusOK, `{"id": 42, "blacklisted": false}`)

	for _, e := range bankingEndpoints {
		rr := serve(router, e, "Bearer tok")
		assert.Equal(t, http.StatusOK, rr.Code, e.path)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"), e.path)
	}
	assert.Equal(t, int32(4), led.calls.Load())
}

func TestRouter_BlacklistedCallerIsForbidden(t *testing.T) {
	router, _, led := newTestStack(t, http.StatusOK, `{"id": 42, "blacklisted": true}`)

	for _, e := range bankingEndpoints {
		rr := serve(router, e, "tok")
		assert.Equal(t, http.StatusForbidden, rr.Code, e.path)
	}
	assert.Zero(t, led.calls.Load())
}

func TestRouter_AuthorizationPrecedesAmountChecks(t *testing.T) {
	bodies := []string{`{}`, `{"amount": 0}`, `{"amount": 1e50000000}`}

	t.Run("blacklisted", func(t *testing.T) {
		router, _, led := newTestStack(t, http.StatusOK, `{"id": 42, "blacklisted": true}`)
		for _, body := range bodies {
			rr := serve(router, endpoint{http.MethodPost, "/api/banking/deposit", body}, "tok")
			assert.Equal(t, http.StatusForbidden, rr.Code, body)
		}
		assert.Zero(t, led.calls.Load())
	})

	t.Run("unresolvable", func(t *testing.T) {
		router, _, led := newTestStack(t, http.StatusUnauthorized, `{}`)
		for _, body := range bodies {
			rr := serve(router, endpoint{http.MethodPost, "/api/banking/withdraw", body}, "tok")
			assert.Equal(t, http.StatusUnauthorized, rr.Code, body)
		}
		assert.Zero(t, led.calls.Load())
	})
}

func TestRouter_InvalidAmountIsBadRequest(t *testing.T) {
	router, _, _ := newTestStack(t, http.StatusOK, `{"id": 42}`)

	for _, body := range []string{`{}`, `{"amount": 1e17}`, `{"amount": "1e30"}`, `{"amount": 1e50000000}`, `{"amount": 0.001}`} {
		for _, path := range []string{"/api/banking/deposit", "/api/banking/withdraw"} {
			rr := serve(router, endpoint{http.MethodPost, path, body}, "tok")
			assert.Equal(t, http.StatusBadRequest, rr.Code, "%s %s", path, body)
			assert.Contains(t, rr.Body.String(), "INVALID_AMOUNT", "%s %s", path, body)
		}
	}
}

func TestRouter_IdentityFailureIsUnauthorized(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `oops`},
		{name: "rejected token", status: http.StatusUnauthorized, body: `{}`},
		{name: "malformed body", status: http.StatusOK, body: `<html>`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router, _, led := newTestStack(t, tc.status, tc.body)

			for _, e := range bankingEndpoints {
				rr := serve(router, e, "tok")
				assert.Equal(t, http.StatusUnauthorized, rr.Code, e.path)
			}
			assert.Zero(t, led.calls.Load())
		})
	}
}

func TestRouter_MissingAuthorizationSkipsIdentityCall(t *testing.T) {
	router, hits, _ := newTestStack(t, http.StatusOK, `{"id": 1}`)

	for _, e := range bankingEndpoints {
		rr := serve(router, e, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, e.path)
	}
	assert.Zero(t, hits.Load())
}

func TestRouter_Health(t *testing.T) {
	router, _, _ := newTestStack(t, http.StatusOK, `{"id": 1}`)

	rr := serve(router, endpoint{http.MethodGet, "/health", ""}, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(router, endpoint{http.MethodGet, "/health/ready", ""}, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_Docs(t *testing.T) {
	router, _, _ := newTestStack(t, http.StatusOK, `{"id": 1}`)

	rr := serve(router, endpoint{http.MethodGet, "/docs/openapi.yaml", ""}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/api/banking/withdraw")

	rr = serve(router, endpoint{http.MethodGet, "/docs", ""}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `url: "/docs/openapi.yaml"`)
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, hits, _ := newTestStack(t, http.StatusOK, `{"id": 1}`)

	req := httptest.NewRequest(http.MethodOptions, "/api/banking/deposit", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Zero(t, hits.Load())
}
