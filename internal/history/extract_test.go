package history

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keetahub/keeta-history-indexer/internal/models"
)

func TestExtractCandidates_AllSources(t *testing.T) {
	records := []models.RawRecord{
		{
			"hash":       "b1",
			"operations": []any{map[string]any{"type": "SEND", "n": 1.0}},
			"voteStaple": map[string]any{
				"operations": []any{map[string]any{"type": "RECEIVE", "n": 2.0}},
				"blocks": []any{
					map[string]any{"operations": []any{map[string]any{"type": "SEND", "n": 3.0}}},
					map[string]any{"operations": []any{map[string]any{"type": "SEND", "n": 4.0}}},
				},
			},
		},
	}

	out := ExtractCandidates(records, ExtractOptions{IncludeStaples: true})
	assert.Len(t, out, 4)
	// order preserved: record ops, staple ops, per-block ops
	assert.Equal(t, 1.0, out[0].Op["n"])
	assert.Equal(t, 2.0, out[1].Op["n"])
	assert.Equal(t, 3.0, out[2].Op["n"])
	assert.Equal(t, 4.0, out[3].Op["n"])
}

func TestExtractCandidates_FlatRecordFallback(t *testing.T) {
	// providers that return operation-like records with no nesting
	records := []models.RawRecord{
		{"hash": "b1", "type": "SEND", "amount": "10"},
	}

	out := ExtractCandidates(records, ExtractOptions{IncludeStaples: true})
	assert.Len(t, out, 1)
	assert.Equal(t, "SEND", out[0].Op["type"])
	assert.Equal(t, out[0].Op, out[0].Record)
}

func TestExtractCandidates_StaplesExcluded(t *testing.T) {
	records := []models.RawRecord{
		{
			"hash":       "b1",
			"operations": []any{map[string]any{"type": "SEND"}},
			"voteStaple": map[string]any{
				"operations": []any{map[string]any{"type": "RECEIVE"}},
			},
		},
	}

	out := ExtractCandidates(records, ExtractOptions{IncludeStaples: false})
	assert.Len(t, out, 1)
	assert.Equal(t, "SEND", out[0].Op["type"])
}

func TestExtractCandidates_SkipsNilAndMalformed(t *testing.T) {
	records := []models.RawRecord{
		nil,
		{"hash": "b1", "operations": []any{"not-an-object", map[string]any{"type": "SEND"}}},
	}

	out := ExtractCandidates(records, ExtractOptions{IncludeStaples: true})
	assert.Len(t, out, 1)
	assert.Equal(t, "SEND", out[0].Op["type"])
}
