package history

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/keetahub/keeta-history-indexer/internal/models"
)

// Raw records mix strings, numbers, bigint-ish strings and object wrappers
// for the same logical fields depending on provider version. The helpers
// below coerce whatever shows up into canonical strings and never panic.

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatFloat(t, 'f', 0, 64)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case map[string]any:
		// object wrappers: {"hash": ...} or {"value": ...}
		if s := asString(t["hash"]); s != "" {
			return s
		}
		return asString(t["value"])
	}
	return ""
}

// asAmount coerces an amount field into a decimal string.
func asAmount(v any) string {
	switch t := v.(type) {
	case map[string]any:
		for _, k := range []string{"value", "amount", "raw"} {
			if s := asAmount(t[k]); s != "" {
				return s
			}
		}
		return ""
	default:
		return asString(v)
	}
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// firstString returns the first non-empty stringified value among keys.
func firstString(m models.RawRecord, keys ...string) string {
	if m == nil {
		return ""
	}
	for _, k := range keys {
		if s := asString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// firstInt returns the first coercible integer value among keys.
func firstInt(m models.RawRecord, keys ...string) (int, bool) {
	if m == nil {
		return 0, false
	}
	for _, k := range keys {
		if i, ok := asInt(m[k]); ok {
			return i, true
		}
	}
	return 0, false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp accepts ISO strings in several layouts, unix seconds and
// unix milliseconds (numeric or numeric string).
func parseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromUnix(n), true
		}
	case float64:
		if t > 0 {
			return fromUnix(int64(t)), true
		}
	case json.Number:
		if n, err := t.Int64(); err == nil && n > 0 {
			return fromUnix(n), true
		}
	case int64:
		if t > 0 {
			return fromUnix(t), true
		}
	}
	return time.Time{}, false
}

// fromUnix treats values >= 1e12 as milliseconds, otherwise seconds.
func fromUnix(n int64) time.Time {
	if n >= 1_000_000_000_000 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
