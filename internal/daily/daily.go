// Package daily picks one deterministic target per UTC day and records how
// each player did on it.
package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Index returns a deterministic index for a date using
// HMAC-SHA256(salt, YYYY-MM-DD) mod n. Without the salt the day's target
// cannot be predicted from the catalog alone.
func Index(date time.Time, salt string, n int) int {
	if n <= 0 {
		return 0
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	// first 8 bytes as uint64 for modulus distribution
	v := binary.BigEndian.Uint64(sum[:8])
	return int(v % uint64(n))
}

// Target returns the day's entry from a sorted name list, or "" if empty.
func Target(date time.Time, salt string, names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[Index(date, salt, len(names))]
}
