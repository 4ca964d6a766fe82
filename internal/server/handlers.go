package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/keetahub/keeta-history-indexer/internal/flags"
	"github.com/keetahub/keeta-history-indexer/internal/history"
	"github.com/keetahub/keeta-history-indexer/internal/provider"
	"github.com/keetahub/keeta-history-indexer/internal/storage"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	History  *history.Manager       // per-account history sessions
	Provider *provider.Client       // wallet node client
	Cache    storage.OperationCache // Redis-backed recent operations cache
	Flags    *flags.Store           // Redis-backed pipeline flags store
	DevMode  bool                   // Enable detailed error responses in development
	Logger   *logrus.Logger         // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// providerErr maps wallet-state and transport errors onto the API error
// taxonomy: locked wallet and denied capability are distinct recoverable
// states, everything else is an upstream failure.
func (h *Handlers) providerErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, provider.ErrLocked):
		return h.err(c, http.StatusLocked, "wallet is locked", nil)
	case errors.Is(err, provider.ErrCapabilityDenied):
		return h.err(c, http.StatusForbidden, "capability denied", map[string]any{"retry": true})
	case errors.Is(err, history.ErrSessionClosed):
		return h.err(c, http.StatusConflict, "account session was reset", nil)
	}
	return h.err(c, http.StatusBadGateway, "wallet node unavailable", map[string]any{"err": err.Error()})
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// AccountHistory returns one page of the deduplicated, grouped and
// time-sorted history for an account. Page is 1-based; backward paging is
// served from memory.
func (h *Handlers) AccountHistory(c echo.Context) error {
	account := strings.TrimSpace(c.Param("account"))
	if account == "" {
		return h.err(c, http.StatusBadRequest, "invalid account", nil)
	}

	page := 1
	if pageStr := c.QueryParam("page"); pageStr != "" {
		n, err := strconv.Atoi(pageStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid page", map[string]any{"page": "must be an integer"})
		}
		page = n
	}
	if page < 1 || page > 1000 {
		return h.err(c, http.StatusBadRequest, "invalid page", map[string]any{"page": "min 1 max 1000"})
	}

	// block timestamp retries can take a few seconds each
	ctx, cancel := h.withTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	session := h.History.Session(ctx, account)
	result, err := session.GetPage(ctx, page)
	if err != nil {
		return h.providerErr(c, err)
	}
	return c.JSON(http.StatusOK, HistoryResponse{Account: account, Page: result})
}

// AccountHistoryReset drops the account's session: dedupe set, metadata
// cache and cursor start clean on the next request. This is the service
// side of an account switch.
func (h *Handlers) AccountHistoryReset(c echo.Context) error {
	account := strings.TrimSpace(c.Param("account"))
	if account == "" {
		return h.err(c, http.StatusBadRequest, "invalid account", nil)
	}

	h.History.Reset(account)
	return c.NoContent(http.StatusNoContent)
}

// AccountBalances returns every token balance the wallet reports for an
// account.
func (h *Handlers) AccountBalances(c echo.Context) error {
	account := strings.TrimSpace(c.Param("account"))
	if account == "" {
		return h.err(c, http.StatusBadRequest, "invalid account", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	items, err := h.Provider.AllBalances(ctx, account)
	if err != nil {
		return h.providerErr(c, err)
	}
	return c.JSON(http.StatusOK, BalancesResponse{Account: account, Items: items})
}

// Network returns information about the network the wallet node serves.
func (h *Handlers) Network(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	info, err := h.Provider.Network(ctx)
	if err != nil {
		return h.providerErr(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// RecentOperations returns the most recent operations surfaced by the
// background indexer, with optional limit parameter
// (default: 100, range: 1-100)
func (h *Handlers) RecentOperations(c echo.Context) error {
	limitStr := c.QueryParam("limit")
	limit := 100
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 100 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 100"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Cache.GetRecentOperations(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get operations", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// FlagsUpsert creates or updates a pipeline flag with the given key and value
func (h *Handlers) FlagsUpsert(c echo.Context) error {
	var req FlagUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := flags.ValidateKey(req.Key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, req.Key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to upsert flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsUpdate updates an existing pipeline flag with the given key
func (h *Handlers) FlagsUpdate(c echo.Context) error {
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to update flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsGet retrieves a pipeline flag by its key
// Returns 404 if flag doesn't exist
func (h *Handlers) FlagsGet(c echo.Context) error {
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Get(ctx, key)
	if err != nil {
		if errors.Is(err, flags.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "flag not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsList returns all pipeline flags in the system
func (h *Handlers) FlagsList(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list flags", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// FlagsDelete removes a pipeline flag by its key
// Returns 204 No Content on successful deletion
func (h *Handlers) FlagsDelete(c echo.Context) error {
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Flags.Delete(ctx, key); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete flag", nil)
	}
	return c.NoContent(http.StatusNoContent)
}
