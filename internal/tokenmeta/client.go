package tokenmeta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenMeta is the metadata service response for one token. Every field is
// optional; a failed or partial lookup means "unknown metadata", never a
// fatal condition for the caller.
type TokenMeta struct {
	Name           string `json:"name,omitempty"`
	Ticker         string `json:"ticker,omitempty"`
	Decimals       *int   `json:"decimals,omitempty"`
	MetadataBase64 string `json:"metadataBase64,omitempty"`
}

// Client talks to the token metadata service.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://tokens.test.keeta.com/api"
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("tokenmeta http %d", e.StatusCode)
	}
	return fmt.Sprintf("tokenmeta http %d: %s", e.StatusCode, b)
}

// GetTokenMeta fetches metadata for one token id.
func (c *Client) GetTokenMeta(ctx context.Context, tokenID string) (*TokenMeta, error) {
	if strings.TrimSpace(tokenID) == "" {
		return nil, fmt.Errorf("token id is required")
	}

	u := c.BaseURL + "/tokens/" + url.PathEscape(tokenID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("accept", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	var out TokenMeta
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode token metadata response: %w", err)
	}
	return &out, nil
}
