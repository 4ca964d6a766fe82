package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/keetahub/keeta-history-indexer/internal/constants"
	"github.com/keetahub/keeta-history-indexer/internal/models"
)

// RedisCache keeps a rolling list of recently surfaced operations and a
// read-through cache of resolved token metadata. It is a cache, not a
// store of record; losing it only costs refetches.
type RedisCache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisCache(addr string, logger *logrus.Logger) *RedisCache {
	return NewRedisCacheFromClient(redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	}), logger)
}

func NewRedisCacheFromClient(client *redis.Client, logger *logrus.Logger) *RedisCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisCache{client: client, logger: logger}
}

// AddRecentOperation pushes a grouped operation onto the recent list,
// trimming it to the configured maximum.
func (r *RedisCache) AddRecentOperation(ctx context.Context, op *models.GroupedOperation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal operation: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.LPush(ctx, constants.RedisKeyRecentOps, data)
	pipe.LTrim(ctx, constants.RedisKeyRecentOps, 0, constants.MaxRecentOps-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push recent operation: %w", err)
	}
	return nil
}

// GetRecentOperations retrieves the most recent grouped operations.
func (r *RedisCache) GetRecentOperations(ctx context.Context, limit int64) ([]*models.GroupedOperation, error) {
	if limit <= 0 || limit > constants.MaxRecentOps {
		limit = constants.MaxRecentOps
	}

	vals, err := r.client.LRange(ctx, constants.RedisKeyRecentOps, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("range recent operations: %w", err)
	}

	out := make([]*models.GroupedOperation, 0, len(vals))
	for _, v := range vals {
		var op models.GroupedOperation
		if err := json.Unmarshal([]byte(v), &op); err != nil {
			r.logger.WithError(err).Debug("skipping malformed cached operation")
			continue
		}
		out = append(out, &op)
	}
	return out, nil
}

// GetTokenMeta returns a cached metadata entry, or nil when absent.
func (r *RedisCache) GetTokenMeta(ctx context.Context, tokenID string) (*models.TokenMetadata, error) {
	val, err := r.client.Get(ctx, tokenMetaKey(tokenID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get token metadata: %w", err)
	}

	var meta models.TokenMetadata
	if err := json.Unmarshal([]byte(val), &meta); err != nil {
		return nil, fmt.Errorf("unmarshal token metadata: %w", err)
	}
	return &meta, nil
}

// SetTokenMeta caches a resolved metadata entry with a TTL.
func (r *RedisCache) SetTokenMeta(ctx context.Context, tokenID string, meta *models.TokenMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal token metadata: %w", err)
	}
	if err := r.client.Set(ctx, tokenMetaKey(tokenID), data, constants.TokenMetaCacheTTL).Err(); err != nil {
		return fmt.Errorf("set token metadata: %w", err)
	}
	return nil
}

// Ping checks if the cache is reachable
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the cache connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}

func tokenMetaKey(tokenID string) string {
	return constants.RedisKeyTokenMetaPrefix + tokenID
}
