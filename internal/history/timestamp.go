package history

import "time"

// Explorer block payloads have shipped timestamps under many names and
// nestings across provider versions. The resolver probes an ordered list
// of candidate paths and takes the first that parses.
var timestampKeys = []string{"timestamp", "createdAt", "date", "time", "moment"}

var timestampNests = []string{"header", "block", "info"}

// timestampFromBlock extracts a usable timestamp out of an explorer block
// response, probing top-level fields, known nested objects and the first
// element of a blocks array, in that order.
func timestampFromBlock(block map[string]any) (time.Time, bool) {
	if block == nil {
		return time.Time{}, false
	}

	if ts, ok := probeKeys(block); ok {
		return ts, true
	}

	for _, nest := range timestampNests {
		if inner, ok := block[nest].(map[string]any); ok {
			if ts, ok := probeKeys(inner); ok {
				return ts, true
			}
		}
	}

	if blocks, ok := block["blocks"].([]any); ok && len(blocks) > 0 {
		if first, ok := blocks[0].(map[string]any); ok {
			if ts, ok := probeKeys(first); ok {
				return ts, true
			}
		}
	}

	return time.Time{}, false
}

func probeKeys(m map[string]any) (time.Time, bool) {
	for _, k := range timestampKeys {
		if ts, ok := parseTimestamp(m[k]); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}
