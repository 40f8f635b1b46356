package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-service/internal/auth"
	"github.com/josh-kwaku/banking-service/internal/domain"
	"github.com/josh-kwaku/banking-service/internal/logging"
	"github.com/josh-kwaku/banking-service/internal/service/banking"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	maxIdempotencyKeyLen = 255
	maxBodyBytes         = 1 << 16
)

type bankingService interface {
	Deposit(ctx context.Context, req banking.MutationRequest) (*domain.Transaction, error)
	Withdraw(ctx context.Context, req banking.MutationRequest) (*domain.Transaction, error)
	Balance(ctx context.Context, credential string) (decimal.Decimal, error)
	History(ctx context.Context, credential string, page domain.Page) ([]domain.Transaction, int, error)
}

type BankingHandler struct {
	banking bankingService
}

func NewBankingHandler(banking bankingService) *BankingHandler {
	return &BankingHandler{banking: banking}
}

// amountRequest accepts the amount as a JSON number or a numeric string. A
// missing amount decodes as zero and is rejected by the ledger after the
// caller has been authorized.
type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type transactionDTO struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	Amount     string    `json:"amount"`
	AccountID  int64     `json:"accountId"`
	OccurredAt time.Time `json:"occurredAt"`
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:         t.ID,
		Kind:       string(t.Kind),
		Amount:     t.Amount.StringFixed(domain.AmountScale),
		AccountID:  t.AccountID,
		OccurredAt: t.OccurredAt,
	}
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

type historyResponse struct {
	Transactions []transactionDTO `json:"transactions"`
	Total        int              `json:"total"`
	Limit        int              `json:"limit"`
	Offset       int              `json:"offset"`
}

func (h *BankingHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.banking.Deposit)
}

func (h *BankingHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.banking.Withdraw)
}

func (h *BankingHandler) mutate(w http.ResponseWriter, r *http.Request, op func(context.Context, banking.MutationRequest) (*domain.Transaction, error)) {
	credential, ok := credentialFrom(r)
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLen {
		RespondValidationError(w, []FieldError{{Field: idempotencyKeyHeader, Message: "must be at most 255 characters"}})
		return
	}

	var req amountRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	t, err := op(r.Context(), banking.MutationRequest{
		Credential:     credential,
		Amount:         req.Amount,
		IdempotencyKey: key,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("banking mutation failed", "path", r.URL.Path, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransactionDTO(t))
}

func (h *BankingHandler) Balance(w http.ResponseWriter, r *http.Request) {
	credential, ok := credentialFrom(r)
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	balance, err := h.banking.Balance(r.Context(), credential)
	if err != nil {
		logging.FromContext(r.Context()).Warn("balance lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, balanceResponse{Balance: balance.StringFixed(domain.AmountScale)})
}

func (h *BankingHandler) History(w http.ResponseWriter, r *http.Request) {
	credential, ok := credentialFrom(r)
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	page, fields := parsePage(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	txs, total, err := h.banking.History(r.Context(), credential, page)
	if err != nil {
		logging.FromContext(r.Context()).Warn("history lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]transactionDTO, len(txs))
	for i := range txs {
		dtos[i] = toTransactionDTO(&txs[i])
	}
	page = page.Normalize()
	RespondSuccess(w, http.StatusOK, historyResponse{
		Transactions: dtos,
		Total:        total,
		Limit:        page.Limit,
		Offset:       page.Offset,
	})
}

// credentialFrom returns the credential placed on the context by
// middleware.RequireCredential.
func credentialFrom(r *http.Request) (string, bool) {
	return auth.CredentialFromContext(r.Context())
}

func parsePage(r *http.Request) (domain.Page, []FieldError) {
	var (
		page   domain.Page
		fields []FieldError
	)
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fields = append(fields, FieldError{Field: "limit", Message: "must be a positive integer"})
		}
		page.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields = append(fields, FieldError{Field: "offset", Message: "must be a non-negative integer"})
		}
		page.Offset = n
	}
	return page, fields
}
