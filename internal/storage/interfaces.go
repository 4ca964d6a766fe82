package storage

import (
	"context"
	"io"

	"github.com/keetahub/keeta-history-indexer/internal/models"
	"github.com/keetahub/keeta-history-indexer/internal/provider"
	"github.com/keetahub/keeta-history-indexer/internal/tokenmeta"
)

// HistorySource provides paginated raw history records for an account
type HistorySource interface {
	History(ctx context.Context, opts provider.HistoryOptions) (*provider.HistoryPage, error)
}

// BlockSource resolves a block by hash. The returned payload has no fixed
// schema; the timestamp resolver probes candidate fields.
type BlockSource interface {
	GetBlock(ctx context.Context, hash string) (map[string]any, error)
}

// TokenMetadataSource resolves metadata for a token id. Failure means
// "unknown metadata" and must not be treated as fatal by callers.
type TokenMetadataSource interface {
	GetTokenMeta(ctx context.Context, tokenID string) (*tokenmeta.TokenMeta, error)
}

// OperationCache defines the interface for caching display-ready history data
type OperationCache interface {
	// AddRecentOperation pushes a grouped operation onto the recent list
	AddRecentOperation(ctx context.Context, op *models.GroupedOperation) error

	// GetRecentOperations retrieves the most recent grouped operations
	GetRecentOperations(ctx context.Context, limit int64) ([]*models.GroupedOperation, error)

	// GetTokenMeta returns a cached metadata entry, or nil when absent
	GetTokenMeta(ctx context.Context, tokenID string) (*models.TokenMetadata, error)

	// SetTokenMeta caches a resolved metadata entry
	SetTokenMeta(ctx context.Context, tokenID string, meta *models.TokenMetadata) error

	// Ping checks if the cache is reachable
	Ping(ctx context.Context) error

	// Close closes the cache connection
	io.Closer
}

// Publisher distributes newly surfaced operations to subscribers
type Publisher interface {
	PublishOperation(ctx context.Context, account string, op *models.GroupedOperation) error
}

// OperationHandler is a function that processes grouped operations
type OperationHandler func(account string, op *models.GroupedOperation)
