package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(url string) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClient(ClientConfig{
		BaseURL:      url,
		Timeout:      5 * time.Second,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
		Logger:       logger,
	})
}

func TestClient_History(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "history", req["method"])

		params := req["params"].(map[string]any)
		assert.Equal(t, "acct1", params["account"])
		assert.Equal(t, true, params["includeOperations"])
		_, hasCursor := params["cursor"]
		assert.False(t, hasCursor, "empty cursor must be omitted")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"records":[{"block":"b1"}],"cursor":"c1","hasMore":true}}`))
	}))
	defer srv.Close()

	page, err := testClient(srv.URL).History(context.Background(), HistoryOptions{
		Account:           "acct1",
		Depth:             25,
		IncludeOperations: true,
	})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "b1", page.Records[0]["block"])
	assert.Equal(t, "c1", page.Cursor)
	assert.True(t, page.HasMore)
}

func TestClient_RetriesTransportFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":["acct1"]}`))
	}))
	defer srv.Close()

	accounts, err := testClient(srv.URL).Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acct1"}, accounts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_WalletStateErrorsNotRetried(t *testing.T) {
	tests := []struct {
		name string
		code int
		want error
	}{
		{"locked wallet", 4100, ErrLocked},
		{"capability denied", 4001, ErrCapabilityDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"error":{"code":%d,"message":"nope"}}`, tt.code)
			}))
			defer srv.Close()

			err := testClient(srv.URL).RequestCapabilities(context.Background(), []string{"history"})
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "wallet-state errors must not be retried")
		})
	}
}

func TestClient_UnknownRPCErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"node exploded"}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Network(context.Background())
	require.Error(t, err)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32000, rpcErr.Code)
	assert.Equal(t, "node exploded", rpcErr.Message)
}

func TestClient_RetriesExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).IsLocked(context.Background())
	require.Error(t, err)
	// MaxRetries 2 means 3 attempts total
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}
