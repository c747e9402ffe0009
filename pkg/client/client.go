// Package client is the caller side of the RPC channel. It derives the
// credential from the password locally, keeps the session token and sends
// {operation, payload} calls to /rpc with bounded retries.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/dto"
	"github.com/amirasaad/ledger/pkg/utils"
	"github.com/hashicorp/go-retryablehttp"
)

// ErrNotLoggedIn is returned by Call before a successful Login.
var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a problem-details response from the server.
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%d %s", e.Status, e.Title)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
}

// Unwrap maps the status back to the domain error it was produced from.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return domain.ErrValidation
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return domain.ErrNotFound
	}
	return nil
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Client struct {
	baseURL string
	http    *retryablehttp.Client
	token   string
}

type Option func(*retryablehttp.Client)

// WithRetries bounds the number of retries and the backoff between them.
func WithRetries(retries int, waitMin, waitMax time.Duration) Option {
	return func(c *retryablehttp.Client) {
		c.RetryMax = retries
		c.RetryWaitMin = waitMin
		c.RetryWaitMax = waitMax
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *retryablehttp.Client) { c.HTTPClient.Timeout = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *retryablehttp.Client) { c.Logger = logger }
}

// New creates a client for the server at baseURL, e.g. http://localhost:3000.
func New(baseURL string, opts ...Option) *Client {
	hc := retryablehttp.NewClient()
	hc.RetryMax = 3
	hc.RetryWaitMin = 200 * time.Millisecond
	hc.RetryWaitMax = 2 * time.Second
	hc.HTTPClient.Timeout = 10 * time.Second
	hc.Logger = nil
	hc.CheckRetry = checkRetry
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	for _, opt := range opts {
		opt(hc)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// checkRetry retries transport failures and responses that say the server
// did not process the request. A 500 may have been applied, so it is final.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

// Token returns the current session token.
func (c *Client) Token() string { return c.token }

// SetToken resumes a session from a stored token.
func (c *Client) SetToken(token string) { c.token = token }

func credentials(username, password string) (dto.Credentials, error) {
	if !utils.IsUsername(username) {
		return dto.Credentials{}, fmt.Errorf("username %q: %w", username, domain.ErrValidation)
	}
	if password == "" {
		return dto.Credentials{}, fmt.Errorf("empty password: %w", domain.ErrValidation)
	}
	return dto.Credentials{Username: username, Credential: utils.DeriveCredential(username, password)}, nil
}

// Register creates a user. The password never leaves the process.
func (c *Client) Register(ctx context.Context, username, password string) (dto.UserRead, error) {
	var user dto.UserRead
	in, err := credentials(username, password)
	if err != nil {
		return user, err
	}
	err = c.do(ctx, http.MethodPost, "/auth/register", in, &user)
	return user, err
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (dto.UserRead, error) {
	var out struct {
		Token string       `json:"token"`
		User  dto.UserRead `json:"user"`
	}
	in, err := credentials(username, password)
	if err != nil {
		return out.User, err
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", in, &out); err != nil {
		return out.User, err
	}
	c.token = out.Token
	return out.User, nil
}

// Call runs op with payload and decodes the result into out, which may be nil.
func (c *Client) Call(ctx context.Context, op string, payload, out any) error {
	if c.token == "" {
		return ErrNotLoggedIn
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/rpc", dto.Request{Operation: op, Payload: raw}, out)
}

// Operations lists the operation names the server accepts.
func (c *Client) Operations(ctx context.Context) ([]string, error) {
	if c.token == "" {
		return nil, ErrNotLoggedIn
	}
	var ops []string
	err := c.do(ctx, http.MethodGet, "/rpc/operations", nil, &ops)
	return ops, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody any
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = b
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint: errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
		if len(bytes.TrimSpace(data)) > 0 {
			_ = json.Unmarshal(data, apiErr)
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
