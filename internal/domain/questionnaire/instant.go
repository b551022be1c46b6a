package questionnaire

import (
	"fmt"
	"strings"
	"time"
)

// Stored timestamps are compared at microsecond precision in UTC, which is
// what Postgres timestamptz keeps.
const InstantPrecision = time.Microsecond

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
}

func CanonicalInstant(t time.Time) time.Time {
	return t.UTC().Truncate(InstantPrecision)
}

// ParseInstant accepts ISO-8601 timestamps with or without an offset.
// A missing offset is read as UTC.
func ParseInstant(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return CanonicalInstant(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}

func SameInstant(a, b time.Time) bool {
	return CanonicalInstant(a).Equal(CanonicalInstant(b))
}

func FormatInstant(t time.Time) string {
	return CanonicalInstant(t).Format(time.RFC3339Nano)
}

// NextUpdatedAt returns the timestamp for a new write: now, or one tick past
// prev when the clock has not moved forward.
func NextUpdatedAt(prev, now time.Time) time.Time {
	prev = CanonicalInstant(prev)
	now = CanonicalInstant(now)
	if !now.After(prev) {
		return prev.Add(InstantPrecision)
	}
	return now
}
