package models

// OperationType classifies a normalized history operation.
type OperationType string

const (
	OpSend    OperationType = "SEND"
	OpReceive OperationType = "RECEIVE"
	OpSwap    OperationType = "SWAP"
	OpUnknown OperationType = "UNKNOWN"
)

// Metadata field type conventions. "decimals" means the raw integer amount
// is divided by 10^n for display; "decimalPlaces" is a display precision
// hint only and implies no division.
const (
	FieldTypeDecimals      = "decimals"
	FieldTypeDecimalPlaces = "decimalPlaces"
)

// RawRecord is one unit of a wallet provider history response. No shape is
// guaranteed beyond "JSON object"; the extractor probes it field by field.
type RawRecord map[string]any

// TokenMetadata describes a token as far as it has been resolved. Entries
// are merged from inline record metadata, a base64-encoded blob, and the
// metadata service; known fields are never overwritten by later sources.
type TokenMetadata struct {
	Name           string `json:"name,omitempty"`
	Ticker         string `json:"ticker,omitempty"`
	Decimals       *int   `json:"decimals,omitempty"`
	FieldType      string `json:"fieldType,omitempty"`
	MetadataBase64 string `json:"-"`
}

// NormalizedOperation is the canonical operation shape emitted by the
// normalizer. BlockHash is always non-empty; candidates without one are
// discarded upstream.
type NormalizedOperation struct {
	Type            OperationType `json:"type"`
	BlockHash       string        `json:"blockHash"`
	BlockDate       string        `json:"blockDate"`
	From            string        `json:"from,omitempty"`
	To              string        `json:"to,omitempty"`
	Token           string        `json:"token,omitempty"`
	RawAmount       string        `json:"rawAmount"`
	FormattedAmount string        `json:"formattedAmount,omitempty"`
	TokenTicker     string        `json:"tokenTicker,omitempty"`
	TokenDecimals   *int          `json:"tokenDecimals,omitempty"`
	TokenMetadata   *TokenMetadata `json:"tokenMetadata,omitempty"`

	// DatePlaceholder is set when BlockDate is a synthetic "now" stamp
	// awaiting replacement by the block timestamp resolver.
	DatePlaceholder bool `json:"-"`
}

// GroupedOperation is a display row: either a single normalized operation
// or a synthetic aggregate netting all legs that share one block hash.
type GroupedOperation struct {
	NormalizedOperation
	Legs int `json:"legs"`
}
