package history

import (
	"strings"

	"github.com/keetahub/keeta-history-indexer/internal/models"
)

// dedupeKey is the composite identity of an operation within one account
// session. The same operation commonly reappears across paginated fetches
// from the wallet provider and the explorer cross-reference; repeats are
// dropped silently.
func dedupeKey(op *models.NormalizedOperation) string {
	return strings.Join([]string{
		op.BlockHash,
		op.From,
		op.To,
		tokenLookupID(op),
		op.RawAmount,
	}, "|")
}

// tokenLookupID is the identifier metadata is resolved under: the token id
// when present, otherwise the ticker (base token legs carry no id).
func tokenLookupID(op *models.NormalizedOperation) string {
	if op.Token != "" {
		return op.Token
	}
	return op.TokenTicker
}
