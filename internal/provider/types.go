package provider

import "github.com/keetahub/keeta-history-indexer/internal/models"

// RPCError represents a JSON-RPC error response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// HistoryOptions are the parameters for a history fetch
type HistoryOptions struct {
	Account              string
	Depth                int
	Cursor               string
	IncludeOperations    bool
	IncludeTokenMetadata bool
}

// HistoryPage is one page of raw history records plus the cursor for the
// next fetch. Cursor semantics are owned by the wallet node; cursors are
// opaque and not necessarily idempotent.
type HistoryPage struct {
	Records []models.RawRecord `json:"records"`
	Cursor  string             `json:"cursor"`
	HasMore bool               `json:"hasMore"`
}

// BalanceEntry is one token balance for an account
type BalanceEntry struct {
	Token     string `json:"token"`
	Ticker    string `json:"ticker"`
	RawAmount string `json:"rawAmount"`
	Decimals  *int   `json:"decimals,omitempty"`
}

// NetworkInfo describes the network the wallet is connected to
type NetworkInfo struct {
	Name    string `json:"name"`
	ChainID string `json:"chainId"`
}
