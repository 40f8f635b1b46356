package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/banking-service/internal/auth"
	"github.com/josh-kwaku/banking-service/internal/logging"
)

func TestTracing(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "propagates caller id", incoming: "req-123", keep: true},
		{name: "assigns when missing", incoming: ""},
		{name: "replaces oversized id", incoming: strings.Repeat("x", maxTraceIDLength+1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			h := Tracing(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = TraceIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.incoming != "" {
				req.Header.Set(traceIDHeader, tc.incoming)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rr.Header().Get(traceIDHeader))
			if tc.keep {
				assert.Equal(t, tc.incoming, seen)
			} else {
				assert.NotEqual(t, tc.incoming, seen)
			}
		})
	}
}

func TestRequireCredential(t *testing.T) {
	var (
		called bool
		seen   string
	)
	h := RequireCredential(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		called = true
		seen, _ = auth.CredentialFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/banking/balance", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "MISSING_TOKEN")
	assert.False(t, called)

	req := httptest.NewRequest(http.MethodGet, "/api/banking/balance", nil)
	req.Header.Set("Authorization", " Bearer tok ")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.True(t, called)
	assert.Equal(t, "Bearer tok", seen)
}

func TestAuth(t *testing.T) {
	const secret = "s3cret"
	token, err := auth.GenerateToken(5, "ada", secret, time.Hour)
	require.NoError(t, err)

	var userID int64
	h := Auth(secret)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		userID, _ = auth.UserIDFromContext(r.Context())
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid token", header: "Bearer " + token, wantStatus: http.StatusOK},
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "no scheme", header: token, wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer abc", wantStatus: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			userID = 0
			req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)
			if tc.wantStatus == http.StatusOK {
				assert.Equal(t, int64(5), userID)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logging.WithLogger(req.Context(), logging.Discard()))
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "INTERNAL_ERROR")
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	base := logging.New(&buf, "banking-service", "info", "production")

	h := Tracing(Logging(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/banking/balance", nil)
	req.Header.Set(traceIDHeader, "trace-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"msg":"inside handler"`)
	assert.Contains(t, out, `"msg":"request completed"`)
	assert.Contains(t, out, `"status":418`)
	assert.Equal(t, 2, strings.Count(out, `"request_id":"trace-1"`))

	buf.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotContains(t, buf.String(), "request completed")
}
