// Package identity resolves bearer credentials against the remote identity
// service. Every failure is reported as domain.ErrIdentityUnresolvable so
// callers can only ever fail closed.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/josh-kwaku/banking-service/internal/domain"
	"github.com/josh-kwaku/banking-service/internal/logging"
)

const (
	bearerScheme = "Bearer"
	userPath     = "/user/me"
	maxBodyBytes = 1 << 20

	defaultTimeout    = 5 * time.Second
	defaultMaxRetries = 2
	defaultRetryWait  = 100 * time.Millisecond
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries uint64
	retryWait  time.Duration
}

type Option func(*Client)

// WithTimeout bounds a whole resolution, retries included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetry sets how many times a transient failure is retried and the first
// backoff interval.
func WithRetry(maxRetries uint64, initial time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryWait = initial
	}
}

func NewClient(baseURL string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
		retryWait:  defaultRetryWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeCredential returns the Authorization header value for credential
// with exactly one bearer scheme prefix. ok is false when no token remains.
func NormalizeCredential(credential string) (header string, ok bool) {
	token := strings.TrimSpace(credential)
	for {
		scheme, rest, found := strings.Cut(token, " ")
		if !found || !strings.EqualFold(scheme, bearerScheme) {
			break
		}
		token = strings.TrimSpace(rest)
	}
	if token == "" || strings.EqualFold(token, bearerScheme) {
		return "", false
	}
	return bearerScheme + " " + token, true
}

func (c *Client) Resolve(ctx context.Context, credential string) (*domain.Identity, error) {
	log := logging.FromContext(ctx)

	header, ok := NormalizeCredential(credential)
	if !ok {
		return nil, fmt.Errorf("Resolve: empty credential: %w", domain.ErrIdentityUnresolvable)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		resolved *domain.Identity
		attempts int
	)
	start := time.Now()
	err := backoff.Retry(func() error {
		attempts++
		ident, err := c.fetch(ctx, header)
		if err != nil {
			return err
		}
		resolved = ident
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx))
	if err != nil {
		log.Warn("identity resolution failed",
			"attempts", attempts,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return nil, fmt.Errorf("Resolve: %w: %w", domain.ErrIdentityUnresolvable, err)
	}

	log.Debug("identity resolved",
		"user_id", resolved.UserID,
		"blacklisted", resolved.Blacklisted,
		"attempts", attempts,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resolved, nil
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryWait
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// fetch performs one call. Errors wrapped in backoff.Permanent are never retried.
func (c *Client) fetch(ctx context.Context, authHeader string) (*domain.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+userPath, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("fetch: build request: %w", err))
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{Code: resp.StatusCode, Body: string(snippet)}
		if statusErr.Transient() {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	var body userResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("fetch: %w: %w", ErrMalformedResponse, err))
	}
	ident, err := body.identity()
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("fetch: %w", err))
	}
	return ident, nil
}

var ErrMalformedResponse = errors.New("malformed identity response")

// StatusError is a non-2xx answer from the identity service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("identity service returned status %d: %s", e.Code, e.Body)
}

// Transient reports whether the status is worth retrying. Definitive 4xx
// answers are not.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// userResponse is the subset of the identity service's user record the core
// relies on. id may arrive as any JSON integer; an absent blacklisted flag
// means trusted.
type userResponse struct {
	ID          json.Number `json:"id"`
	Blacklisted *bool       `json:"blacklisted"`
}

func (r userResponse) identity() (*domain.Identity, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformedResponse)
	}
	id, err := r.ID.Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: id %q is not an integer", ErrMalformedResponse, r.ID)
	}
	if id <= 0 {
		return nil, fmt.Errorf("%w: id %d is not positive", ErrMalformedResponse, id)
	}
	return &domain.Identity{
		UserID:      id,
		Blacklisted: r.Blacklisted != nil && *r.Blacklisted,
	}, nil
}
