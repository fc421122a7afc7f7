// Package ratelimit decides whether a workflow may perform an outbound
// social action right now, and records the actions it permits.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.GetValue when the key does not exist.
var ErrNotFound = errors.New("ratelimit: key not found")

// Store is the key-value contract the limiter runs against: a hash with
// atomic increments, a sorted set, and a plain scalar, all with
// expirations so the store self-prunes. Redis satisfies this directly;
// the memory implementation backs tests and single-node development.
//
// Everything behind this interface is derived state: losing it only
// resets rate-limit memory, it never corrupts business data.
type Store interface {
	// IncrementHash atomically increments the given fields of a hash and
	// refreshes the key's expiry.
	IncrementHash(ctx context.Context, key string, fields map[string]int64, expiry time.Duration) error

	// ReadHash returns all fields of a hash; a missing key yields an
	// empty map.
	ReadHash(ctx context.Context, key string) (map[string]int64, error)

	// AddToSortedSet inserts a member with the given score and refreshes
	// the key's expiry.
	AddToSortedSet(ctx context.Context, key string, score float64, member string, expiry time.Duration) error

	// SortedSetMembers returns all members of a sorted set in ascending
	// score order; a missing key yields an empty slice.
	SortedSetMembers(ctx context.Context, key string) ([]string, error)

	// SetValue stores a scalar with an expiry, overwriting any previous
	// value.
	SetValue(ctx context.Context, key, value string, expiry time.Duration) error

	// GetValue returns a scalar, or ErrNotFound when the key is missing
	// or expired.
	GetValue(ctx context.Context, key string) (string, error)
}
