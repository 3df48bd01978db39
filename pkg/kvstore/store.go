// Package kvstore provides the key-value adapter backing the context store.
//
// The adapter is deliberately fail-soft: a backend outage flips a
// process-wide availability flag instead of propagating connection errors,
// and reconnection is attempted lazily on next use. Owning features degrade
// to "no context", never to service failure.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by every operation while the backend is
// unreachable. Callers map it to their documented safe default.
var ErrUnavailable = errors.New("kvstore: backend unavailable")

// TTL sentinels, matching Redis semantics.
const (
	// TTLNone means the key exists but has no expiry.
	TTLNone = time.Duration(-1)
	// TTLMissing means the key does not exist.
	TTLMissing = time.Duration(-2)
)

// UpdateFunc transforms the current value of a key inside an optimistic
// read-modify-write transaction. found is false when the key is absent. The
// returned ttl is applied with the write; a zero ttl persists the key
// without expiry.
type UpdateFunc func(current string, found bool) (next string, ttl time.Duration, err error)

// Store is the adapter contract consumed by the context store. All blocking
// operations take a context and complete within the adapter's configured
// timeout.
type Store interface {
	// Get returns the value at key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set writes a value with no expiry.
	Set(ctx context.Context, key, value string) error

	// SetEx writes a value with the given expiry.
	SetEx(ctx context.Context, key string, ttl time.Duration, value string) error

	// Delete removes keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)

	// Keys returns all keys matching a glob-style pattern. O(keyspace); the
	// target scale (hundreds of projects) keeps this acceptable.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// TTL returns the remaining lifetime of key, TTLNone, or TTLMissing.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Expire sets an expiry on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// ExpireNX sets an expiry only if the key has none. Used for the
	// TTL-once semantics of intent lists.
	ExpireNX(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// LPush prepends values to a list.
	LPush(ctx context.Context, key string, values ...string) error

	// LTrim keeps only the elements in [start, stop].
	LTrim(ctx context.Context, key string, start, stop int64) error

	// LRange returns the elements in [start, stop].
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// LLen returns the list length.
	LLen(ctx context.Context, key string) (int64, error)

	// LPushCapped prepends values, trims the list to its newest keep
	// entries, and establishes ttl only when the key has none, as one
	// pipelined round-trip. Backs the capped, TTL-once intent history.
	LPushCapped(ctx context.Context, key string, keep int64, ttl time.Duration, values ...string) error

	// Update runs fn inside an optimistic transaction on key, retrying a
	// bounded number of times when a concurrent writer invalidates the read.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	// Info returns server introspection fields (version, memory, clients,
	// uptime) when the backend supports them.
	Info(ctx context.Context) (map[string]string, error)

	// Available reports the adapter's current view of backend liveness
	// without a network round-trip.
	Available() bool

	// Close releases the underlying connection.
	Close() error
}
