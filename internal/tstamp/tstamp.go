// Package tstamp converts the several shapes a timestamp arrives in —
// server-assigned time.Time, ISO-8601 string, or nil — into a single
// comparable instant (§4.4 of the sync protocol).
package tstamp

import "time"

// ToInstant accepts time.Time, *time.Time, an RFC3339/ISO-8601 string, or
// nil, and returns a comparable instant.
//
// When the value is nil or an unparseable string, ToInstant returns
// time.Now() with ok=false. Per the documented contract, an unknown
// updated_at compares as "now" for staleness purposes, so the client wins
// by default rather than being rejected outright. Callers that need to
// distinguish a genuinely-known timestamp from this fallback should check
// ok.
func ToInstant(v any) (t time.Time, ok bool) {
	switch x := v.(type) {
	case nil:
		return time.Now(), false
	case time.Time:
		return x, true
	case *time.Time:
		if x == nil {
			return time.Now(), false
		}
		return *x, true
	case string:
		if x == "" {
			return time.Now(), false
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999999Z07:00"} {
			if parsed, err := time.Parse(layout, x); err == nil {
				return parsed, true
			}
		}
		return time.Now(), false
	default:
		return time.Now(), false
	}
}

// Compare returns -1, 0, or 1 as a is before, equal to, or after b.
func Compare(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// Max returns the later of two instants.
func Max(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
