package turnstile

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
	"sync"
	"time"
)

const (
	CodeInvalidInputSecret   = "invalid-input-secret"
	CodeInvalidInputResponse = "invalid-input-response"
	CodeTimeoutOrDuplicate   = "timeout-or-duplicate"
)

// defaultTimeout bounds a siteverify call; an expired call is reported like
// any other transport failure.
const defaultTimeout = 10 * time.Second

var (
	// ErrInvalidSecret means the provider rejected our own secret key.
	ErrInvalidSecret = errors.New("turnstile: provider rejected the configured secret")
	// ErrSecretUnavailable means the secret could not be resolved before the call.
	ErrSecretUnavailable = errors.New("turnstile: secret unavailable")
)

// verifyRequest is the siteverify request body.
type verifyRequest struct {
	Secret   string `json:"secret"`
	Response string `json:"response"`
	RemoteIP string `json:"remoteip"`
}

// Outcome is the decoded siteverify result. It is never persisted.
type Outcome struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes,omitempty"`
}

// RejectedError is returned when the provider ran the check and the token failed it.
type RejectedError struct {
	Codes []string
}

func (e *RejectedError) Error() string {
	if len(e.Codes) == 0 {
		return "turnstile: token rejected"
	}
	return fmt.Sprintf("turnstile: token rejected: %s", strings.Join(e.Codes, ", "))
}

// HTTPStatusError captures non-2xx responses from the siteverify endpoint.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("turnstile: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client verifies bot-challenge tokens against a siteverify endpoint.
// It holds no per-request state and is shared across invocations.
type Client struct {
	siteverifyURL string
	httpClient    *http.Client

	getter     Getter
	secretName string

	secretMu     sync.RWMutex
	secret       string
	secretLoaded bool
}

type Option func(*Client)

// WithSecret configures a fixed secret key.
func WithSecret(secret string) Option {
	return func(c *Client) {
		c.secret = strings.TrimSpace(secret)
		c.secretLoaded = c.secret != ""
	}
}

// WithSecretParameter resolves the secret key from the parameter store on the
// first verification. A failed lookup is retried on the next call.
func WithSecretParameter(getter Getter, name string) Option {
	return func(c *Client) {
		c.getter = getter
		c.secretName = strings.TrimSpace(name)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client posting to siteverifyURL. Exactly one secret
// source must be configured.
func NewClient(siteverifyURL string, opts ...Option) (*Client, error) {
	siteverifyURL = strings.TrimSpace(siteverifyURL)
	if siteverifyURL == "" {
		return nil, errors.New("turnstile: siteverify URL must not be empty")
	}
	c := &Client{
		siteverifyURL: siteverifyURL,
		httpClient:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if !c.secretLoaded && (c.getter == nil || c.secretName == "") {
		return nil, errors.New("turnstile: a secret or secret parameter is required")
	}
	return c, nil
}

// Verify checks token for the given client IP. It returns nil when the token
// is accepted, a *RejectedError when the provider rejected it, ErrInvalidSecret
// when our own secret is wrong, and any other error when the check could not run.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) error {
	secret, err := c.resolveSecret(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSecretUnavailable, err)
	}

	body, err := json.Marshal(verifyRequest{
		Secret:   secret,
		Response: token,
		RemoteIP: remoteIP,
	})
	if err != nil {
		return fmt.Errorf("turnstile: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.siteverifyURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("turnstile: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.doJSONRequest(req)
	if err != nil {
		return fmt.Errorf("turnstile: request failed: %w", err)
	}

	var outcome Outcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return fmt.Errorf("turnstile: decode response: %w", err)
	}
	return classify(ctx, outcome)
}

func classify(ctx context.Context, outcome Outcome) error {
	if outcome.Success {
		return nil
	}
	for _, code := range outcome.ErrorCodes {
		switch code {
		case CodeInvalidInputSecret:
			slog.ErrorContext(ctx, "turnstile secret key is misconfigured")
			return ErrInvalidSecret
		case CodeInvalidInputResponse:
			slog.InfoContext(ctx, "turnstile token invalid or expired")
		case CodeTimeoutOrDuplicate:
			slog.InfoContext(ctx, "turnstile token timed out or was already used")
		default:
			slog.InfoContext(ctx, "turnstile returned unknown error code", "code", code)
		}
	}
	return &RejectedError{Codes: outcome.ErrorCodes}
}

func (c *Client) resolveSecret(ctx context.Context) (string, error) {
	c.secretMu.RLock()
	if c.secretLoaded {
		secret := c.secret
		c.secretMu.RUnlock()
		return secret, nil
	}
	c.secretMu.RUnlock()

	c.secretMu.Lock()
	defer c.secretMu.Unlock()
	if c.secretLoaded {
		return c.secret, nil
	}

	raw, err := c.getter.GetParameter(ctx, c.secretName)
	if err != nil {
		return "", fmt.Errorf("fetch secret %q: %w", c.secretName, err)
	}
	secret := strings.TrimSpace(raw)
	if secret == "" {
		return "", fmt.Errorf("secret %q is empty", c.secretName)
	}
	c.secret = secret
	c.secretLoaded = true
	return secret, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

func (c *Client) doJSONRequest(req *http.Request) ([]byte, error) {
	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        c.siteverifyURL,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
