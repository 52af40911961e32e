package util

import "time"

// ExpiresAt normalizes a relative TTL into an absolute expiry.
// Non-positive TTLs mean "never expires" and yield the zero time.
func ExpiresAt(ttl time.Duration, now time.Time) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// Seconds converts an integer number of seconds into a TTL.
func Seconds(n int64) time.Duration {
	return time.Duration(n) * time.Second
}
