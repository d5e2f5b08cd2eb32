// Package verify submits contract sources to an Etherscan-compatible
// explorer and polls the verification result.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the Etherscan v2 multichain endpoint.
	DefaultBaseURL = "https://api.etherscan.io/v2/api"
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultPollInterval is the wait between status checks.
	DefaultPollInterval = 5 * time.Second
	// DefaultMaxAttempts bounds how many times the status is checked.
	DefaultMaxAttempts = 24
)

var (
	ErrAlreadyVerified    = errors.New("verify: contract already verified")
	ErrVerificationFailed = errors.New("verify: verification failed")
	ErrPending            = errors.New("verify: verification still pending")
)

// Status is the state of a verification job.
type Status string

const (
	StatusPending         Status = "pending"
	StatusPass            Status = "pass"
	StatusFail            Status = "fail"
	StatusAlreadyVerified Status = "already_verified"
)

// Client is an Etherscan-compatible verification client bound to one chain.
type Client struct {
	apiKey       string
	chainID      uint64
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	maxAttempts  int
	logger       *slog.Logger
}

// NewClient creates a client for chainID.
func NewClient(apiKey string, chainID uint64, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		chainID: chainID,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		pollInterval: DefaultPollInterval,
		maxAttempts:  DefaultMaxAttempts,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets a custom API base URL. Empty keeps the default.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithPollInterval sets the wait between status checks.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = interval
	}
}

// WithMaxAttempts sets how many status checks Verify makes.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// APIError represents an explorer response with status "0".
type APIError struct {
	Message    string
	Result     string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.Result != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Result)
	}
	return e.Message
}

type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (r *response) resultString() string {
	var s string
	if err := json.Unmarshal(r.Result, &s); err == nil {
		return s
	}
	return string(r.Result)
}

// do performs a request and returns the result string of a status "1" response.
func (c *Client) do(ctx context.Context, method string, params url.Values) (string, error) {
	params.Set("apikey", c.apiKey)

	query := url.Values{"chainid": {strconv.FormatUint(c.chainID, 10)}}
	var body io.Reader
	if method == http.MethodGet {
		for k, v := range params {
			query[k] = v
		}
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"?"+query.Encode(), body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "lottoctl/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &APIError{
			Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(respBody)),
			StatusCode: resp.StatusCode,
		}
	}
	result := parsed.resultString()
	if resp.StatusCode >= 400 || parsed.Status != "1" {
		return result, &APIError{Message: parsed.Message, Result: result, StatusCode: resp.StatusCode}
	}
	return result, nil
}

// VerifySource submits a standard JSON input job and returns its guid.
func (c *Client) VerifySource(ctx context.Context, req *Request) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	params := url.Values{
		"module":          {"contract"},
		"action":          {"verifysourcecode"},
		"contractaddress": {req.Address.Hex()},
		"sourceCode":      {req.SourceCode},
		"codeformat":      {"solidity-standard-json-input"},
		"contractname":    {req.ContractName},
		"compilerversion": {req.CompilerVersion},
		// the explorer API spells it this way
		"constructorArguements": {req.ConstructorArgs},
	}

	guid, err := c.do(ctx, http.MethodPost, params)
	if err != nil {
		if isAlreadyVerified(guid) {
			return "", ErrAlreadyVerified
		}
		return "", fmt.Errorf("submit verification: %w", err)
	}
	return guid, nil
}

// CheckStatus returns the state of a verification job and the explorer's message.
func (c *Client) CheckStatus(ctx context.Context, guid string) (Status, string, error) {
	params := url.Values{
		"module": {"contract"},
		"action": {"checkverifystatus"},
		"guid":   {guid},
	}

	result, err := c.do(ctx, http.MethodGet, params)
	switch {
	case isAlreadyVerified(result):
		return StatusAlreadyVerified, result, nil
	case strings.HasPrefix(result, "Pending"):
		return StatusPending, result, nil
	case err == nil && strings.HasPrefix(result, "Pass"):
		return StatusPass, result, nil
	case strings.HasPrefix(result, "Fail"):
		return StatusFail, result, nil
	case err != nil:
		return "", result, fmt.Errorf("check verification status: %w", err)
	default:
		return StatusPending, result, nil
	}
}

func isAlreadyVerified(result string) bool {
	return strings.Contains(strings.ToLower(result), "already verified")
}

// Result is the outcome of Verify.
type Result struct {
	GUID    string `json:"guid,omitempty"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Verify submits req and polls until the explorer accepts or rejects it.
// A contract that is already verified counts as success.
func (c *Client) Verify(ctx context.Context, req *Request) (*Result, error) {
	guid, err := c.VerifySource(ctx, req)
	if errors.Is(err, ErrAlreadyVerified) {
		c.logger.Info("contract already verified", slog.String("address", req.Address.Hex()))
		return &Result{Status: StatusAlreadyVerified, Message: "Already Verified"}, nil
	}
	if err != nil {
		return nil, err
	}
	c.logger.Info("verification submitted",
		slog.String("address", req.Address.Hex()),
		slog.String("guid", guid),
	)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		status, message, err := c.CheckStatus(ctx, guid)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("verification status",
			slog.String("guid", guid),
			slog.Int("attempt", attempt),
			slog.String("message", message),
		)
		switch status {
		case StatusPass, StatusAlreadyVerified:
			return &Result{GUID: guid, Status: status, Message: message}, nil
		case StatusFail:
			return &Result{GUID: guid, Status: status, Message: message}, fmt.Errorf("%w: %s", ErrVerificationFailed, message)
		}
	}
	return &Result{GUID: guid, Status: StatusPending}, fmt.Errorf("%w after %d checks", ErrPending, c.maxAttempts)
}
