package constants

import "time"

// Redis keys
const (
	RedisKeyRecentOps       = "history:recent"
	RedisKeyTokenMetaPrefix = "token:meta:"
)

// Redis Pub/Sub channels
const (
	PubSubChannelAll           = "history:all"
	PubSubChannelAccountPrefix = "history:account:"
)

// Base network token. Native transfers commonly omit explicit token fields
// in raw records, so the ticker is defaulted rather than looked up.
const (
	BaseTokenTicker   = "KTA"
	BaseTokenSentinel = "baseToken"
	BaseTokenDecimals = 9
)

// PendingTokenPrefix marks token ids the wallet has not finalized yet.
// These never resolve against the metadata service.
const PendingTokenPrefix = "pending_"

// Pagination
const (
	PageSize     = 10
	FetchDepth   = 25 // records per underlying provider fetch
	MaxRecentOps = 100
)

// Block timestamp lookups
const (
	BlockLookupAttempts = 3
	BlockLookupBackoff  = 1500 * time.Millisecond
)

// TokenMetaCacheTTL bounds how long a metadata entry lives in Redis before
// the metadata service is consulted again.
const TokenMetaCacheTTL = 12 * time.Hour
