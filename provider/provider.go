// Package provider defines the storage abstraction used by layercache.
//
// A Provider is one layer of a layered cache: a primitive key-value store that
// keeps opaque, already-encoded bytes under already-derived storage keys.
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key. If a store performs
// internal transforms (framing, compression), they MUST be fully reversed.
//
// Providers report faults through their error result. layercache absorbs every
// provider error at the layer boundary (it logs it and reports false / miss), so
// an implementation never needs to swallow errors itself.
package provider

import (
	"context"
	"time"
)

// Entry is a stored value plus its absolute expiry.
// A zero ExpiresAt means the entry never expires, or that the store cannot
// report the expiry.
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

// Expired reports whether e has expired at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Provider is a minimal byte store with absolute expiries.
// Must be safe for concurrent use.
type Provider interface {
	// Get returns (entry, true, nil) on hit; (Entry{}, false, nil) on miss.
	// Expired entries are misses. If an IO/remote error happens, return (Entry{}, false, err).
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Set stores value until expiresAt. A zero expiresAt means "never expires".
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, expiresAt time.Time) (ok bool, err error)

	// Del removes a key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// Has reports whether a live entry exists for key.
	Has(ctx context.Context, key string) (bool, error)

	// Clear removes every entry owned by this provider.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// TTL converts an absolute expiry into a relative duration for stores that
// take TTLs. It returns (0, true) for "never expires" and (0, false) when
// expiresAt is already in the past.
func TTL(expiresAt, now time.Time) (time.Duration, bool) {
	if expiresAt.IsZero() {
		return 0, true
	}
	d := expiresAt.Sub(now)
	if d <= 0 {
		return 0, false
	}
	return d, true
}
