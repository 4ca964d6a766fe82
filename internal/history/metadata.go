package history

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/keetahub/keeta-history-indexer/internal/constants"
	"github.com/keetahub/keeta-history-indexer/internal/models"
)

// needsLookup reports whether an operation's token requires a metadata
// service fetch. Base token legs, pending token ids and already-complete
// entries never hit the service.
func needsLookup(op *models.NormalizedOperation, baseTicker string) bool {
	if op.Token == "" {
		return false
	}
	if strings.HasPrefix(op.Token, constants.PendingTokenPrefix) {
		return false
	}
	if op.Token == constants.BaseTokenSentinel {
		return false
	}
	if op.TokenTicker == baseTicker {
		return false
	}
	return op.TokenTicker == "" || op.TokenDecimals == nil
}

// blobMetadata is the JSON layout of a base64-encoded metadata blob.
type blobMetadata struct {
	Name          string `json:"name"`
	Ticker        string `json:"ticker"`
	Symbol        string `json:"symbol"`
	Decimals      *int   `json:"decimals"`
	DecimalPlaces *int   `json:"decimalPlaces"`
}

// decodeMetadataBlob decodes a base64 metadata blob. decimalPlaces in the
// blob takes priority over decimals when determining the field type.
func decodeMetadataBlob(b64 string) (*models.TokenMetadata, error) {
	b64 = strings.TrimSpace(b64)
	if b64 == "" {
		return nil, fmt.Errorf("empty metadata blob")
	}

	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode metadata blob: %w", err)
		}
	}

	var blob blobMetadata
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil, fmt.Errorf("failed to parse metadata blob: %w", err)
	}

	meta := &models.TokenMetadata{Name: blob.Name, Ticker: blob.Ticker}
	if meta.Ticker == "" {
		meta.Ticker = blob.Symbol
	}
	if blob.DecimalPlaces != nil {
		meta.Decimals = blob.DecimalPlaces
		meta.FieldType = models.FieldTypeDecimalPlaces
	} else if blob.Decimals != nil {
		meta.Decimals = blob.Decimals
		meta.FieldType = models.FieldTypeDecimals
	}
	return meta, nil
}

// mergeTokenMeta overlays src onto dst without overwriting fields dst
// already knows. All sources agree on ground truth once resolved, so
// first-writer-wins is safe and keeps inline data authoritative.
func mergeTokenMeta(dst, src *models.TokenMetadata) {
	if src == nil {
		return
	}
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.Ticker == "" {
		dst.Ticker = src.Ticker
	}
	if dst.Decimals == nil {
		dst.Decimals = src.Decimals
		if src.FieldType != "" {
			dst.FieldType = src.FieldType
		}
	}
	if dst.FieldType == "" {
		dst.FieldType = src.FieldType
	}
}

// applyTokenMeta hydrates an operation from a resolved metadata entry and
// retries the formatted amount computation.
func applyTokenMeta(op *models.NormalizedOperation, entry *models.TokenMetadata) {
	if entry == nil {
		return
	}
	if op.TokenMetadata == nil {
		op.TokenMetadata = &models.TokenMetadata{}
	}
	mergeTokenMeta(op.TokenMetadata, entry)

	if op.TokenTicker == "" {
		op.TokenTicker = op.TokenMetadata.Ticker
	}
	if op.TokenDecimals == nil {
		op.TokenDecimals = op.TokenMetadata.Decimals
	}
	applyFormattedAmount(op)
}
