package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keetahub/keeta-history-indexer/internal/history"
	"github.com/keetahub/keeta-history-indexer/internal/models"
	"github.com/keetahub/keeta-history-indexer/internal/provider"
	"github.com/keetahub/keeta-history-indexer/internal/tokenmeta"
)

type stubHistorySource struct {
	page *provider.HistoryPage
	err  error
}

func (s *stubHistorySource) History(ctx context.Context, opts provider.HistoryOptions) (*provider.HistoryPage, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.page != nil {
		return s.page, nil
	}
	return &provider.HistoryPage{}, nil
}

type stubBlockSource struct{}

func (s *stubBlockSource) GetBlock(ctx context.Context, hash string) (map[string]any, error) {
	return nil, fmt.Errorf("block %s not found", hash)
}

type stubTokenSource struct{}

func (s *stubTokenSource) GetTokenMeta(ctx context.Context, tokenID string) (*tokenmeta.TokenMeta, error) {
	return &tokenmeta.TokenMeta{}, nil
}

type stubOpCache struct {
	ops []*models.GroupedOperation
	err error
}

func (s *stubOpCache) AddRecentOperation(ctx context.Context, op *models.GroupedOperation) error {
	s.ops = append(s.ops, op)
	return nil
}

func (s *stubOpCache) GetRecentOperations(ctx context.Context, limit int64) ([]*models.GroupedOperation, error) {
	if s.err != nil {
		return nil, s.err
	}
	if int64(len(s.ops)) > limit {
		return s.ops[:limit], nil
	}
	return s.ops, nil
}

func (s *stubOpCache) GetTokenMeta(ctx context.Context, tokenID string) (*models.TokenMetadata, error) {
	return nil, nil
}

func (s *stubOpCache) SetTokenMeta(ctx context.Context, tokenID string, meta *models.TokenMetadata) error {
	return nil
}

func (s *stubOpCache) Ping(ctx context.Context) error { return nil }
func (s *stubOpCache) Close() error                   { return nil }

func newTestAPI(t *testing.T, h *Handlers) *echo.Echo {
	t.Helper()
	if h.Logger == nil {
		h.Logger = logrus.New()
		h.Logger.SetOutput(io.Discard)
	}
	e := echo.New()
	RegisterRoutes(e, h, ServerConfig{})
	return e
}

func newTestManager(src *stubHistorySource) *history.Manager {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return history.NewManager(
		history.SessionConfig{Logger: logger},
		history.SessionDeps{Provider: src, Blocks: &stubBlockSource{}, Tokens: &stubTokenSource{}},
		nil,
	)
}

func doRequest(e *echo.Echo, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e := newTestAPI(t, &Handlers{})

	rec := doRequest(e, http.MethodGet, "/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestAccountHistory(t *testing.T) {
	src := &stubHistorySource{page: &provider.HistoryPage{
		Records: []models.RawRecord{{
			"block": "b1",
			"date":  "2025-05-01T00:00:00Z",
			"operations": []any{
				map[string]any{"type": "SEND", "from": "acct1", "to": "bob", "token": "tok-A", "amount": "100"},
			},
		}},
	}}
	e := newTestAPI(t, &Handlers{History: newTestManager(src)})

	rec := doRequest(e, http.MethodGet, "/v1/accounts/acct1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Account string `json:"account"`
		Items   []struct {
			Type      string `json:"type"`
			BlockHash string `json:"blockHash"`
		} `json:"items"`
		Page     int  `json:"page"`
		PageSize int  `json:"pageSize"`
		HasMore  bool `json:"hasMore"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "acct1", resp.Account)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "SEND", resp.Items[0].Type)
	assert.Equal(t, "b1", resp.Items[0].BlockHash)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 10, resp.PageSize)
	assert.False(t, resp.HasMore)
}

func TestAccountHistory_InvalidPage(t *testing.T) {
	e := newTestAPI(t, &Handlers{History: newTestManager(&stubHistorySource{})})

	for _, q := range []string{"page=0", "page=1001", "page=abc"} {
		rec := doRequest(e, http.MethodGet, "/v1/accounts/acct1/history?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %q", q)
	}
}

func TestAccountHistory_ProviderErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"locked wallet", provider.ErrLocked, http.StatusLocked},
		{"capability denied", provider.ErrCapabilityDenied, http.StatusForbidden},
		{"upstream failure", fmt.Errorf("connection refused"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestAPI(t, &Handlers{History: newTestManager(&stubHistorySource{err: tt.err})})

			rec := doRequest(e, http.MethodGet, "/v1/accounts/acct1/history", "")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAccountHistoryReset(t *testing.T) {
	m := newTestManager(&stubHistorySource{})
	e := newTestAPI(t, &Handlers{History: m})

	ctx := context.Background()
	before := m.Session(ctx, "acct1")

	rec := doRequest(e, http.MethodPost, "/v1/accounts/acct1/history/reset", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := before.GetPage(ctx, 1)
	assert.ErrorIs(t, err, history.ErrSessionClosed)
	assert.NotSame(t, before, m.Session(ctx, "acct1"))
}

func TestRecentOperations(t *testing.T) {
	cache := &stubOpCache{ops: []*models.GroupedOperation{
		{NormalizedOperation: models.NormalizedOperation{BlockHash: "b1"}, Legs: 1},
		{NormalizedOperation: models.NormalizedOperation{BlockHash: "b2"}, Legs: 1},
	}}
	e := newTestAPI(t, &Handlers{Cache: cache})

	rec := doRequest(e, http.MethodGet, "/v1/operations/recent?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []json.RawMessage `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 1)
}

func TestRecentOperations_InvalidLimit(t *testing.T) {
	e := newTestAPI(t, &Handlers{Cache: &stubOpCache{}})

	for _, q := range []string{"limit=0", "limit=101", "limit=abc"} {
		rec := doRequest(e, http.MethodGet, "/v1/operations/recent?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %q", q)
	}
}

func TestFlags_InvalidKey(t *testing.T) {
	e := newTestAPI(t, &Handlers{})

	rec := doRequest(e, http.MethodGet, "/v1/flags/bad%20key", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodPost, "/v1/flags", `{"key":"bad key","value":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotFoundJSON(t *testing.T) {
	e := newTestAPI(t, &Handlers{})

	rec := doRequest(e, http.MethodGet, "/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"not found"`)
}

func TestDevModeDetails(t *testing.T) {
	e := newTestAPI(t, &Handlers{
		History: newTestManager(&stubHistorySource{err: fmt.Errorf("boom")}),
		DevMode: true,
	})

	rec := doRequest(e, http.MethodGet, "/v1/accounts/acct1/history", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Details, "dev mode must include error details")
}
