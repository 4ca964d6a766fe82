package history

import (
	"strings"
	"time"

	"github.com/keetahub/keeta-history-indexer/internal/constants"
	"github.com/keetahub/keeta-history-indexer/internal/models"
)

// Field-name fallback chains: operation-level field first, then the owning
// record. Providers have shipped all of these spellings at some point.
var (
	fromKeys    = []string{"from", "sender", "source"}
	toKeys      = []string{"to", "recipient", "destination"}
	tokenKeys   = []string{"token", "tokenAddress", "tokenId"}
	tickerKeys  = []string{"ticker", "symbol", "tokenTicker"}
	amountKeys  = []string{"amount", "rawAmount", "value"}
	decimalKeys = []string{"decimals", "tokenDecimals"}
	typeKeys    = []string{"type", "operationType"}
)

// Normalizer coerces extracted candidates into canonical operations for
// one account session.
type Normalizer struct {
	Account    string
	BaseTicker string
	Now        func() time.Time
}

func NewNormalizer(account string) *Normalizer {
	return &Normalizer{
		Account:    account,
		BaseTicker: constants.BaseTokenTicker,
		Now:        time.Now,
	}
}

// Normalize turns one candidate into a NormalizedOperation. It returns
// ok=false for candidates that must never surface: no resolvable block
// hash, or fee operations.
func (n *Normalizer) Normalize(c Candidate) (*models.NormalizedOperation, bool) {
	blockHash := firstString(c.Record, "block", "hash", "id")
	if blockHash == "" {
		blockHash = asString(c.Op["block"])
	}
	if blockHash == "" {
		return nil, false
	}

	rawType := strings.ToUpper(n.lookup(c, typeKeys...))
	if strings.Contains(rawType, "FEE") {
		// fee legs are never surfaced to the user
		return nil, false
	}

	op := &models.NormalizedOperation{
		Type:      opType(rawType),
		BlockHash: blockHash,
		From:      n.lookup(c, fromKeys...),
		To:        n.lookup(c, toKeys...),
		Token:     n.lookup(c, tokenKeys...),
		RawAmount: n.lookupAmount(c),
	}

	n.reclassifyDirection(op)
	n.resolveDate(op, c)
	n.resolveTokenFields(op, c)
	applyFormattedAmount(op)

	return op, true
}

func (n *Normalizer) lookup(c Candidate, keys ...string) string {
	if s := firstString(c.Op, keys...); s != "" {
		return s
	}
	return firstString(c.Record, keys...)
}

func (n *Normalizer) lookupAmount(c Candidate) string {
	for _, m := range []models.RawRecord{c.Op, c.Record} {
		for _, k := range amountKeys {
			if s := asAmount(m[k]); s != "" {
				return s
			}
		}
	}
	return ""
}

// reclassifyDirection forces SEND/RECEIVE when the session account appears
// on exactly one side; otherwise the provider's reported type stands.
func (n *Normalizer) reclassifyDirection(op *models.NormalizedOperation) {
	if n.Account == "" {
		return
	}
	switch {
	case op.From == n.Account && op.To != n.Account:
		op.Type = models.OpSend
	case op.To == n.Account && op.From != n.Account:
		op.Type = models.OpReceive
	}
}

// resolveDate walks the date fallback chain; when nothing parses the
// operation gets a placeholder "now" stamp flagged for replacement by the
// block timestamp resolver.
func (n *Normalizer) resolveDate(op *models.NormalizedOperation, c Candidate) {
	candidates := []any{
		c.Op["date"],
		c.Record["date"],
		c.Record["createdAt"],
		c.Record["timestamp"],
	}
	if staple, ok := c.Record["voteStaple"].(map[string]any); ok {
		if blocks, ok := staple["blocks"].([]any); ok {
			for _, b := range blocks {
				if block, ok := b.(map[string]any); ok {
					candidates = append(candidates, block["date"], block["createdAt"], block["timestamp"])
				}
			}
		}
	}

	for _, v := range candidates {
		if ts, ok := parseTimestamp(v); ok {
			op.BlockDate = ts.UTC().Format(time.RFC3339)
			return
		}
	}

	op.BlockDate = n.Now().UTC().Format(time.RFC3339)
	op.DatePlaceholder = true
}

func (n *Normalizer) resolveTokenFields(op *models.NormalizedOperation, c Candidate) {
	op.TokenTicker = n.lookup(c, tickerKeys...)
	if d, ok := firstInt(c.Op, decimalKeys...); ok {
		op.TokenDecimals = &d
	} else if d, ok := firstInt(c.Record, decimalKeys...); ok {
		op.TokenDecimals = &d
	}

	meta := &models.TokenMetadata{
		Ticker:   op.TokenTicker,
		Decimals: op.TokenDecimals,
	}

	// inline metadata: either a ready map or a base64 blob to decode later
	for _, m := range []models.RawRecord{c.Op, c.Record} {
		switch inline := m["tokenMetadata"].(type) {
		case map[string]any:
			mergeInlineMetadata(meta, inline)
		case string:
			if meta.MetadataBase64 == "" {
				meta.MetadataBase64 = strings.TrimSpace(inline)
			}
		}
	}

	// absent token id and ticker means the base network token
	if op.Token == "" && meta.Ticker == "" {
		meta.Ticker = n.BaseTicker
		if meta.Decimals == nil {
			d := constants.BaseTokenDecimals
			meta.Decimals = &d
			meta.FieldType = models.FieldTypeDecimals
		}
	}

	if meta.Decimals != nil && meta.FieldType == "" {
		meta.FieldType = models.FieldTypeDecimals
	}

	op.TokenTicker = meta.Ticker
	op.TokenDecimals = meta.Decimals
	op.TokenMetadata = meta
}

// mergeInlineMetadata fills meta from an inline metadata object without
// overwriting fields already resolved. decimalPlaces takes priority over
// decimals when determining the field type.
func mergeInlineMetadata(meta *models.TokenMetadata, inline map[string]any) {
	if meta.Name == "" {
		meta.Name = asString(inline["name"])
	}
	if meta.Ticker == "" {
		meta.Ticker = firstString(inline, "ticker", "symbol")
	}
	if dp, ok := asInt(inline["decimalPlaces"]); ok {
		if meta.Decimals == nil {
			meta.Decimals = &dp
		}
		meta.FieldType = models.FieldTypeDecimalPlaces
	} else if d, ok := asInt(inline["decimals"]); ok && meta.Decimals == nil {
		meta.Decimals = &d
		if meta.FieldType == "" {
			meta.FieldType = models.FieldTypeDecimals
		}
	}
}

func opType(raw string) models.OperationType {
	switch models.OperationType(raw) {
	case models.OpSend, models.OpReceive, models.OpSwap:
		return models.OperationType(raw)
	}
	return models.OpUnknown
}
