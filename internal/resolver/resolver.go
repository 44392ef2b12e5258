// Package resolver implements the State Resolver (spec.md §4.2): it
// composes the Versioned Store Client's primitives into domain queries
// (latest height, code/account/data revisions and blobs), with two layers
// of memoization — request-scoped (one view call sees one snapshot) and a
// short-lived process-wide TTL cache for latest_block_height.
package resolver

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/weisyn/viewd/internal/domain"
	"github.com/weisyn/viewd/internal/store"
	"github.com/weisyn/viewd/pkg/log"
)

// latestHeightTTL bounds how stale latest_block_height may be; per spec.md
// §4.2 this is "on the order of hundreds of milliseconds" — a freshness
// hint, not a correctness contract.
const latestHeightTTL = 250 * time.Millisecond

// Resolver composes the Versioned Store Client into the domain queries THE
// CORE needs. All operations are pure functions of their inputs plus the
// store's visible state (spec.md §4.2).
type Resolver struct {
	client store.Client
	logger log.Logger

	heightMu      sync.Mutex
	heightCached  domain.Height
	heightCachedAt time.Time
}

// New builds a Resolver atop client.
func New(client store.Client, logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Resolver{client: client, logger: logger}
}

// LatestHeight returns the most recently indexed block height, subject to a
// short-lived TTL memoization.
func (r *Resolver) LatestHeight(ctx context.Context) (domain.Height, error) {
	r.heightMu.Lock()
	if !r.heightCachedAt.IsZero() && time.Since(r.heightCachedAt) < latestHeightTTL {
		h := r.heightCached
		r.heightMu.Unlock()
		return h, nil
	}
	r.heightMu.Unlock()

	raw, err := r.client.Get(ctx, latestHeightKey)
	if err != nil {
		return 0, fmt.Errorf("resolver: latest_height: %w", err)
	}
	var h domain.Height
	if _, err := fmt.Sscanf(string(raw), "%d", &h); err != nil {
		return 0, fmt.Errorf("resolver: latest_height: malformed value %q: %w", raw, err)
	}

	r.heightMu.Lock()
	r.heightCached = h
	r.heightCachedAt = time.Now()
	r.heightMu.Unlock()

	return h, nil
}

// CodeRevision returns the latest code revision hash for C as of height H.
// Returns store.ErrNotFound if no such revision exists.
func (r *Resolver) CodeRevision(ctx context.Context, c domain.ContractID, h domain.Height) (domain.RevisionHash, error) {
	rev, err := r.client.RevRangeLE(ctx, codeSetKey(c), h)
	if err != nil {
		return nil, err
	}
	return domain.RevisionHash(rev), nil
}

// CodeBlob fetches the immutable bytecode blob for (C, R).
func (r *Resolver) CodeBlob(ctx context.Context, c domain.ContractID, rev domain.RevisionHash) ([]byte, error) {
	return r.client.Get(ctx, codeBlobKey(c, rev))
}

// AccountRevision returns the latest account revision hash for C as of H.
func (r *Resolver) AccountRevision(ctx context.Context, c domain.ContractID, h domain.Height) (domain.RevisionHash, error) {
	rev, err := r.client.RevRangeLE(ctx, accountSetKey(c), h)
	if err != nil {
		return nil, err
	}
	return domain.RevisionHash(rev), nil
}

// AccountBlob fetches the binary account record for (C, R).
func (r *Resolver) AccountBlob(ctx context.Context, c domain.ContractID, rev domain.RevisionHash) ([]byte, error) {
	return r.client.Get(ctx, accountBlobKey(c, rev))
}

// DataRevision returns the latest revision hash for compositeKey as of H.
func (r *Resolver) DataRevision(ctx context.Context, compositeKey []byte, h domain.Height) (domain.RevisionHash, error) {
	rev, err := r.client.RevRangeLE(ctx, dataSetKey(compositeKey), h)
	if err != nil {
		return nil, err
	}
	return domain.RevisionHash(rev), nil
}

// DataBlob fetches the raw value bytes for (compositeKey, R).
func (r *Resolver) DataBlob(ctx context.Context, compositeKey []byte, rev domain.RevisionHash) ([]byte, error) {
	return r.client.Get(ctx, dataBlobKey(compositeKey, rev))
}

// DataEntry is one resolved (key, value) pair returned by ScanDataKeys. A
// nil Value means no revision existed at or before H (a tombstone from the
// guest's perspective).
type DataEntry struct {
	Key   []byte
	Value []byte
}

// ScanDataKeys supports the guest's iterator-style storage scans: it scans
// the data:{C}:* index, strips the data: and C: prefixes from the returned
// keys, and resolves each key's value at height H.
func (r *Resolver) ScanDataKeys(ctx context.Context, c domain.ContractID, h domain.Height, pattern string, cursor string, limit int64) (nextCursor string, entries []DataEntry, err error) {
	scanPattern := string(dataScanPrefix(c)) + pattern
	nextCursor, setKeys, err := r.client.Scan(ctx, cursor, scanPattern, limit)
	if err != nil {
		return "0", nil, fmt.Errorf("resolver: scan_data_keys: %w", err)
	}

	entries = make([]DataEntry, 0, len(setKeys))
	for _, sk := range setKeys {
		storageKey, ok := SplitCompositeKey(c, sk)
		if !ok {
			continue
		}
		composite := CompositeDataKey(c, storageKey)
		rev, revErr := r.DataRevision(ctx, composite, h)
		var value []byte
		if revErr == nil {
			value, err = r.DataBlob(ctx, composite, rev)
			if err != nil {
				return "0", nil, fmt.Errorf("resolver: scan_data_keys: blob fetch: %w", err)
			}
		} else if revErr != store.ErrNotFound {
			return "0", nil, fmt.Errorf("resolver: scan_data_keys: revision fetch: %w", revErr)
		}
		entries = append(entries, DataEntry{Key: storageKey, Value: value})
	}

	return nextCursor, entries, nil
}

// maxScanEntries bounds how many entries a single prefix/range scan will
// accumulate, protecting a worker from an unbounded iteration over a
// contract that has written an enormous number of keys.
const maxScanEntries = 10000

// RequestScope memoizes repeated lookups within a single view call (same H,
// same composite key) so that one call observes exactly one snapshot even
// if the underlying store is concurrently mutated (spec.md §3 invariant,
// §4.2 "request-scoped memoization").
type RequestScope struct {
	resolver *Resolver
	height   domain.Height

	mu       sync.Mutex
	codeRev  map[domain.ContractID]cachedRev
	dataBlob map[string][]byte
}

type cachedRev struct {
	rev RevisionHash
	err error
}

// RevisionHash aliases domain.RevisionHash for readability within this
// package's cache bookkeeping.
type RevisionHash = domain.RevisionHash

// NewRequestScope pins h as the single height every read in this scope
// will be resolved against.
func (r *Resolver) NewRequestScope(h domain.Height) *RequestScope {
	return &RequestScope{
		resolver: r,
		height:   h,
		codeRev:  make(map[domain.ContractID]cachedRev),
		dataBlob: make(map[string][]byte),
	}
}

// Height returns the pinned height of this scope.
func (s *RequestScope) Height() domain.Height { return s.height }

// CodeRevision resolves C's code revision at the scope's pinned height,
// memoized within the scope.
func (s *RequestScope) CodeRevision(ctx context.Context, c domain.ContractID) (domain.RevisionHash, error) {
	s.mu.Lock()
	if cached, ok := s.codeRev[c]; ok {
		s.mu.Unlock()
		return cached.rev, cached.err
	}
	s.mu.Unlock()

	rev, err := s.resolver.CodeRevision(ctx, c, s.height)
	s.mu.Lock()
	s.codeRev[c] = cachedRev{rev: rev, err: err}
	s.mu.Unlock()
	return rev, err
}

// DataValue resolves the current value of a contract-chosen storage key at
// the scope's pinned height, memoized within the scope.
func (s *RequestScope) DataValue(ctx context.Context, c domain.ContractID, key []byte) ([]byte, bool, error) {
	composite := CompositeDataKey(c, key)
	cacheKey := string(composite)

	s.mu.Lock()
	if v, ok := s.dataBlob[cacheKey]; ok {
		s.mu.Unlock()
		return v, v != nil, nil
	}
	s.mu.Unlock()

	rev, err := s.resolver.DataRevision(ctx, composite, s.height)
	if err != nil {
		if err == store.ErrNotFound {
			s.mu.Lock()
			s.dataBlob[cacheKey] = nil
			s.mu.Unlock()
			return nil, false, nil
		}
		return nil, false, err
	}

	value, err := s.resolver.DataBlob(ctx, composite, rev)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	s.dataBlob[cacheKey] = value
	s.mu.Unlock()
	return value, true, nil
}

// ScanPrefix resolves every storage entry under contract c whose key has
// the given byte prefix, at the scope's pinned height. It backs the host
// bridge's storage_iter_prefix import.
func (s *RequestScope) ScanPrefix(ctx context.Context, c domain.ContractID, prefix []byte) ([]DataEntry, error) {
	pattern := string(escapeGlob(prefix)) + "*"
	return s.scanAll(ctx, c, pattern, func(DataEntry) bool { return true })
}

// ScanRange resolves every storage entry under contract c whose key falls
// in [start, end) lexicographically, at the scope's pinned height. It
// backs the host bridge's storage_iter_range import.
func (s *RequestScope) ScanRange(ctx context.Context, c domain.ContractID, start, end []byte) ([]DataEntry, error) {
	return s.scanAll(ctx, c, "*", func(e DataEntry) bool {
		if bytes.Compare(e.Key, start) < 0 {
			return false
		}
		if end != nil && bytes.Compare(e.Key, end) >= 0 {
			return false
		}
		return true
	})
}

func (s *RequestScope) scanAll(ctx context.Context, c domain.ContractID, pattern string, keep func(DataEntry) bool) ([]DataEntry, error) {
	var entries []DataEntry
	cursor := "0"
	for {
		next, batch, err := s.resolver.ScanDataKeys(ctx, c, s.height, pattern, cursor, 1000)
		if err != nil {
			return nil, err
		}
		for _, e := range batch {
			if keep(e) {
				entries = append(entries, e)
			}
		}
		if next == "0" || len(entries) >= maxScanEntries {
			if len(entries) >= maxScanEntries {
				s.resolver.logger.Warnf("resolver: scan for contract=%s capped at %d entries", c, maxScanEntries)
			}
			break
		}
		cursor = next
	}
	return entries, nil
}

// escapeGlob backslash-escapes the glob metacharacters recognized by both
// Redis SCAN MATCH and Go's path.Match, so a prefix scan never
// accidentally treats contract-chosen key bytes as wildcards.
func escapeGlob(b []byte) []byte {
	var out []byte
	for _, c := range b {
		switch c {
		case '*', '?', '[', '\\':
			out = append(out, '\\', c)
		default:
			out = append(out, c)
		}
	}
	return out
}
