package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keetahub/keeta-history-indexer/internal/models"
)

func fixedNormalizer(account string) *Normalizer {
	n := NewNormalizer(account)
	n.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return n
}

func TestNormalize_RequiresBlockHash(t *testing.T) {
	n := fixedNormalizer("acct1")

	_, ok := n.Normalize(Candidate{
		Op:     models.RawRecord{"type": "SEND", "amount": "10"},
		Record: models.RawRecord{},
	})
	assert.False(t, ok, "operation without a block hash must be dropped")

	op, ok := n.Normalize(Candidate{
		Op:     models.RawRecord{"type": "SEND", "amount": "10"},
		Record: models.RawRecord{"block": "b1", "date": "2025-05-01T00:00:00Z"},
	})
	require.True(t, ok)
	assert.Equal(t, "b1", op.BlockHash)
}

func TestNormalize_BlockHashFallbacks(t *testing.T) {
	n := fixedNormalizer("")

	// record-level "hash" and "id", then op-level "block"
	op, ok := n.Normalize(Candidate{Op: models.RawRecord{"type": "SEND"}, Record: models.RawRecord{"hash": "h1"}})
	require.True(t, ok)
	assert.Equal(t, "h1", op.BlockHash)

	op, ok = n.Normalize(Candidate{Op: models.RawRecord{"type": "SEND", "block": "b2"}, Record: models.RawRecord{}})
	require.True(t, ok)
	assert.Equal(t, "b2", op.BlockHash)
}

func TestNormalize_DropsFeeOperations(t *testing.T) {
	n := fixedNormalizer("acct1")

	for _, typ := range []string{"FEE", "fee", "NETWORK_FEE", "feePayment"} {
		_, ok := n.Normalize(Candidate{
			Op:     models.RawRecord{"type": typ},
			Record: models.RawRecord{"block": "b1"},
		})
		assert.False(t, ok, "type %q should be dropped", typ)
	}
}

func TestNormalize_DirectionReclassification(t *testing.T) {
	n := fixedNormalizer("me")

	// provider says RECEIVE but the account is the sender
	op, ok := n.Normalize(Candidate{
		Op:     models.RawRecord{"type": "RECEIVE", "from": "me", "to": "other"},
		Record: models.RawRecord{"block": "b1", "date": "2025-05-01T00:00:00Z"},
	})
	require.True(t, ok)
	assert.Equal(t, models.OpSend, op.Type)

	op, ok = n.Normalize(Candidate{
		Op:     models.RawRecord{"type": "SEND", "from": "other", "to": "me"},
		Record: models.RawRecord{"block": "b1", "date": "2025-05-01T00:00:00Z"},
	})
	require.True(t, ok)
	assert.Equal(t, models.OpReceive, op.Type)

	// self-transfer: both sides match, provider type stands
	op, ok = n.Normalize(Candidate{
		Op:     models.RawRecord{"type": "SEND", "from": "me", "to": "me"},
		Record: models.RawRecord{"block": "b1", "date": "2025-05-01T00:00:00Z"},
	})
	require.True(t, ok)
	assert.Equal(t, models.OpSend, op.Type)
}

func TestNormalize_UnknownType(t *testing.T) {
	n := fixedNormalizer("")

	op, ok := n.Normalize(Candidate{
		Op:     models.RawRecord{"type": "DELEGATE"},
		Record: models.RawRecord{"block": "b1", "date": "2025-05-01T00:00:00Z"},
	})
	require.True(t, ok)
	assert.Equal(t, models.OpUnknown, op.Type)
}

func TestNormalize_FieldFallbackChains(t *testing.T) {
	n := fixedNormalizer("")

	op, ok := n.Normalize(Candidate{
		Op: models.RawRecord{
			"type":      "SEND",
			"sender":    "alice",
			"recipient": "bob",
			"tokenId":   "tok1",
			"symbol":    "ABC",
			"value":     "42",
		},
		Record: models.RawRecord{"block": "b1", "date": "2025-05-01T00:00:00Z"},
	})
	require.True(t, ok)
	assert.Equal(t, "alice", op.From)
	assert.Equal(t, "bob", op.To)
	assert.Equal(t, "tok1", op.Token)
	assert.Equal(t, "ABC", op.TokenTicker)
	assert.Equal(t, "42", op.RawAmount)
}

func TestNormalize_BaseTokenDefault(t *testing.T) {
	n := fixedNormalizer("")

	// no token id and no ticker means the base network token
	op, ok := n.Normalize(Candidate{
		Op:     models.RawRecord{"type": "SEND", "amount": "1500000000"},
		Record: models.RawRecord{"block": "b1", "date": "2025-05-01T00:00:00Z"},
	})
	require.True(t, ok)
	assert.Equal(t, "KTA", op.TokenTicker)
	require.NotNil(t, op.TokenDecimals)
	assert.Equal(t, 9, *op.TokenDecimals)
	assert.Equal(t, "1.5", op.FormattedAmount)
}

func TestNormalize_InlineMetadataDecimalPlacesWins(t *testing.T) {
	n := fixedNormalizer("")

	op, ok := n.Normalize(Candidate{
		Op: models.RawRecord{
			"type":   "RECEIVE",
			"token":  "tok1",
			"amount": "123.456",
			"tokenMetadata": map[string]any{
				"name":          "Some Token",
				"ticker":        "ST",
				"decimals":      9.0,
				"decimalPlaces": 2.0,
			},
		},
		Record: models.RawRecord{"block": "b1", "date": "2025-05-01T00:00:00Z"},
	})
	require.True(t, ok)
	require.NotNil(t, op.TokenMetadata)
	assert.Equal(t, models.FieldTypeDecimalPlaces, op.TokenMetadata.FieldType)
	assert.Equal(t, "ST", op.TokenTicker)
	// decimalPlaces is a display precision, not a divisor
	assert.Equal(t, "123.46", op.FormattedAmount)
}

func TestNormalize_InlineMetadataBlobDeferred(t *testing.T) {
	n := fixedNormalizer("")

	op, ok := n.Normalize(Candidate{
		Op: models.RawRecord{
			"type":          "RECEIVE",
			"token":         "tok1",
			"amount":        "100",
			"tokenMetadata": "eyJkZWNpbWFsUGxhY2VzIjoyfQ==",
		},
		Record: models.RawRecord{"block": "b1", "date": "2025-05-01T00:00:00Z"},
	})
	require.True(t, ok)
	require.NotNil(t, op.TokenMetadata)
	// blob is stored for the metadata resolver, not decoded inline
	assert.Equal(t, "eyJkZWNpbWFsUGxhY2VzIjoyfQ==", op.TokenMetadata.MetadataBase64)
	assert.Empty(t, op.FormattedAmount)
}

func TestNormalize_DatePlaceholder(t *testing.T) {
	n := fixedNormalizer("")

	op, ok := n.Normalize(Candidate{
		Op:     models.RawRecord{"type": "SEND", "amount": "1", "token": "tok1"},
		Record: models.RawRecord{"block": "b1"},
	})
	require.True(t, ok)
	assert.True(t, op.DatePlaceholder)
	assert.Equal(t, "2025-06-01T12:00:00Z", op.BlockDate)
}

func TestNormalize_DateFromStapleBlocks(t *testing.T) {
	n := fixedNormalizer("")

	op, ok := n.Normalize(Candidate{
		Op: models.RawRecord{"type": "SEND", "token": "tok1"},
		Record: models.RawRecord{
			"block": "b1",
			"voteStaple": map[string]any{
				"blocks": []any{
					map[string]any{"date": "2025-04-03T08:30:00Z"},
				},
			},
		},
	})
	require.True(t, ok)
	assert.False(t, op.DatePlaceholder)
	assert.Equal(t, "2025-04-03T08:30:00Z", op.BlockDate)
}
