package server

import (
	"github.com/keetahub/keeta-history-indexer/internal/history"
	"github.com/keetahub/keeta-history-indexer/internal/provider"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK bool `json:"ok"` // Service health status
}

// HistoryResponse is one page of an account's reconciled history
type HistoryResponse struct {
	Account string `json:"account"`
	*history.Page
}

// BalancesResponse lists every token balance for an account
type BalancesResponse struct {
	Account string                  `json:"account"`
	Items   []provider.BalanceEntry `json:"items"`
}

// FlagUpsertRequest represents a request to create or update a pipeline flag
type FlagUpsertRequest struct {
	Key   string `json:"key"`   // Flag key (must match regex pattern)
	Value bool   `json:"value"` // Flag value (true/false)
}

// FlagUpdateRequest represents a request to update an existing pipeline flag
type FlagUpdateRequest struct {
	Value bool `json:"value"` // New flag value
}
