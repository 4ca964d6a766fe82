package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/keetahub/keeta-history-indexer/internal/retry"
)

// Client talks JSON-RPC to a Keeta wallet node with retry and timeout
// support. All response shapes are treated as untrusted and validated
// field by field downstream.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	maxRetries   int
	retryBackoff time.Duration
	logger       *logrus.Logger
}

// ClientConfig holds configuration for the wallet node client
type ClientConfig struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *logrus.Logger
}

// NewClient creates a new wallet node client with retry support
func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:      cfg.BaseURL,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       cfg.Logger,
	}
}

// Call makes a JSON-RPC call with retry logic. Wallet-state errors (locked
// wallet, denied capability) are not retried; the user has to act first.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	body := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	// permErr captures non-retryable failures (wallet-state errors,
	// malformed responses); returning nil stops the retry loop.
	var permErr error
	attempt := 0
	err = retry.Do(ctx, c.maxRetries+1, retry.Exponential(c.retryBackoff), func(ctx context.Context) error {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"method":  method,
			}).Debug("retrying provider call")
		}
		attempt++

		resp, err := c.doRequest(ctx, data)
		if err != nil {
			return err
		}

		var envelope rpcEnvelope
		if err := json.Unmarshal(resp, &envelope); err != nil {
			permErr = fmt.Errorf("failed to unmarshal response: %w", err)
			return nil
		}
		if envelope.Error != nil {
			permErr = mapRPCError(envelope.Error)
			return nil
		}
		if result != nil && envelope.Result != nil {
			if err := json.Unmarshal(envelope.Result, result); err != nil {
				permErr = fmt.Errorf("failed to unmarshal result: %w", err)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return permErr
}

func (c *Client) doRequest(ctx context.Context, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewBuffer(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Handle rate limiting
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (429)")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

// History fetches a page of raw history records for an account. Records
// come back with no guaranteed shape; the pipeline probes them defensively.
func (c *Client) History(ctx context.Context, opts HistoryOptions) (*HistoryPage, error) {
	params := map[string]any{
		"account":              opts.Account,
		"depth":                opts.Depth,
		"includeOperations":    opts.IncludeOperations,
		"includeTokenMetadata": opts.IncludeTokenMetadata,
	}
	if opts.Cursor != "" {
		params["cursor"] = opts.Cursor
	}

	var result HistoryPage
	if err := c.Call(ctx, "history", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Accounts returns the accounts the wallet exposes.
func (c *Client) Accounts(ctx context.Context) ([]string, error) {
	var result []string
	if err := c.Call(ctx, "getAccounts", map[string]any{}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Balance returns the base token balance for one account.
func (c *Client) Balance(ctx context.Context, account string) (*BalanceEntry, error) {
	var result BalanceEntry
	if err := c.Call(ctx, "getBalance", map[string]any{"account": account}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AllBalances returns every token balance for one account.
func (c *Client) AllBalances(ctx context.Context, account string) ([]BalanceEntry, error) {
	var result []BalanceEntry
	if err := c.Call(ctx, "getAllBalances", map[string]any{"account": account}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Network returns information about the network the wallet is connected to.
func (c *Client) Network(ctx context.Context) (*NetworkInfo, error) {
	var result NetworkInfo
	if err := c.Call(ctx, "getNetwork", map[string]any{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// IsLocked reports whether the wallet is locked.
func (c *Client) IsLocked(ctx context.Context) (bool, error) {
	var result bool
	if err := c.Call(ctx, "isLocked", map[string]any{}, &result); err != nil {
		return false, err
	}
	return result, nil
}

// RequestCapabilities asks the wallet to grant the given capabilities
// (e.g. "history", "read"). Denial surfaces as ErrCapabilityDenied.
func (c *Client) RequestCapabilities(ctx context.Context, caps []string) error {
	return c.Call(ctx, "requestCapabilities", map[string]any{"capabilities": caps}, nil)
}

// rpcEnvelope is the JSON-RPC response wrapper
type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}
