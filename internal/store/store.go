// Package store implements the Versioned Store Client (spec.md §4.1): a thin
// contract over an external ordered key-value service exposing exact-key
// fetch, reverse-range-by-score lookups, and cursor-based key scans.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and RevRangeLE when the requested key or
// set member does not exist. It is not a fatal condition for callers; the
// State Resolver passes it through unchanged, and the coordinator turns a
// missing code revision into its codeNotFound error.
var ErrNotFound = errors.New("store: not found")

// Client is the Versioned Store Client contract (spec.md §4.1). All
// operations may suspend (spec.md §5) and propagate transport failures as
// transient errors.
type Client interface {
	// Get performs an exact-key fetch. Returns ErrNotFound if the key is
	// absent.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// RevRangeLE returns the member of the ordered set setKey with the
	// greatest score not exceeding maxScore. Returns ErrNotFound if no such
	// member exists.
	RevRangeLE(ctx context.Context, setKey []byte, maxScore uint64) ([]byte, error)

	// Scan performs a cooperative cursor-based key scan. cursor="0" starts a
	// new scan; the returned nextCursor is "0" when the scan is complete.
	Scan(ctx context.Context, cursor string, matchPattern string, countHint int64) (nextCursor string, keys [][]byte, err error)

	// Close releases the underlying connection(s).
	Close() error
}
