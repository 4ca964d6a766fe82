package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampFromBlock(t *testing.T) {
	want := time.Date(2025, 5, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		block map[string]any
	}{
		{"top level", map[string]any{"timestamp": "2025-05-01T10:30:00Z"}},
		{"alternate key", map[string]any{"createdAt": "2025-05-01T10:30:00Z"}},
		{"nested header", map[string]any{"header": map[string]any{"date": "2025-05-01T10:30:00Z"}}},
		{"nested block", map[string]any{"block": map[string]any{"time": "2025-05-01T10:30:00Z"}}},
		{"blocks array", map[string]any{"blocks": []any{map[string]any{"timestamp": "2025-05-01T10:30:00Z"}}}},
		{"unix seconds", map[string]any{"timestamp": float64(1746095400)}},
		{"unix millis", map[string]any{"timestamp": float64(1746095400000)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := timestampFromBlock(tt.block)
			require.True(t, ok)
			assert.Equal(t, want, got.UTC())
		})
	}
}

func TestTimestampFromBlock_Missing(t *testing.T) {
	_, ok := timestampFromBlock(nil)
	assert.False(t, ok)

	_, ok = timestampFromBlock(map[string]any{"hash": "b1", "height": 12.0})
	assert.False(t, ok)

	_, ok = timestampFromBlock(map[string]any{"timestamp": "soon"})
	assert.False(t, ok)
}
