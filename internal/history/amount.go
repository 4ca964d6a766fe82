package history

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/keetahub/keeta-history-indexer/internal/models"
)

// FormatAmount renders a raw decimal amount string for display. Under the
// "decimals" convention the raw integer is divided by 10^decimals; under
// "decimalPlaces" the count is a display precision hint only and implies
// no division. Malformed input reports ok=false instead of an error: the
// caller leaves the formatted field unset and the UI falls back to the
// raw value.
func FormatAmount(raw string, decimals int, fieldType string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return "", false
	}

	if fieldType == models.FieldTypeDecimalPlaces {
		return d.StringFixed(int32(decimals)), true
	}
	return d.Shift(int32(-decimals)).String(), true
}

// applyFormattedAmount computes op.FormattedAmount once a raw amount and a
// decimals value are both known. Attempted opportunistically at every
// metadata merge step; failures are swallowed.
func applyFormattedAmount(op *models.NormalizedOperation) {
	if op.FormattedAmount != "" || op.RawAmount == "" || op.TokenDecimals == nil {
		return
	}

	fieldType := models.FieldTypeDecimals
	if op.TokenMetadata != nil && op.TokenMetadata.FieldType != "" {
		fieldType = op.TokenMetadata.FieldType
	}

	if formatted, ok := FormatAmount(op.RawAmount, *op.TokenDecimals, fieldType); ok {
		op.FormattedAmount = formatted
	}
}
