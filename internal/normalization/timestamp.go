package normalization

import (
	"strings"
	"time"
)

// TimestampLayout is the canonical form every last-modified value is reduced
// to before comparison. Canvas reports RFC 3339 ("2024-05-01T10:00:00Z"),
// Postgres renders a space-separated form, and neither guarantees the other's
// representation, so raw string equality is never safe.
const TimestampLayout = "2006-01-02 15:04:05"

// NormalizeTimestamp canonicalizes a textual timestamp into
// "YYYY-MM-DD HH:MM:SS", truncated to whole seconds. The empty string maps
// to the empty string.
func NormalizeTimestamp(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.Replace(s, "T", " ", 1)
	s = strings.TrimSuffix(s, "Z")
	if idx := strings.IndexAny(s, "+"); idx > 0 {
		s = s[:idx]
	}
	if len(s) > len(TimestampLayout) {
		s = s[:len(TimestampLayout)]
	}
	return strings.TrimSpace(s)
}

// NormalizeTime renders a structured time in the canonical form.
func NormalizeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}
