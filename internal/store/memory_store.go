package store

import (
	"context"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// member is one entry of an ordered set: a revision hash scored by the
// block height at which it became current.
type member struct {
	value []byte
	score uint64
}

// MemoryStore is an in-process Client used by tests in place of Redis;
// cmd/viewd always connects to Redis. It mirrors the semantics
// of RedisClient exactly (same ErrNotFound behavior, same scan cursor
// convention), grounded on the shape of the teacher's storage.MemoryStore
// interface.
type MemoryStore struct {
	mu      sync.RWMutex
	kv      map[string][]byte
	zsets   map[string][]member
}

var _ Client = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		kv:    make(map[string][]byte),
		zsets: make(map[string][]member),
	}
}

// Put sets an exact key, as the external indexer would.
func (m *MemoryStore) Put(key []byte, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[string(key)] = value
}

// AddRevision records a new revision hash for setKey at the given height,
// as the external indexer would when it observes a new block.
func (m *MemoryStore) AddRevision(setKey []byte, score uint64, revision []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := string(setKey)
	m.zsets[k] = append(m.zsets[k], member{value: revision, score: score})
	sort.Slice(m.zsets[k], func(i, j int) bool { return m.zsets[k][i].score < m.zsets[k][j].score })
}

func (m *MemoryStore) Get(_ context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.kv[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStore) RevRangeLE(_ context.Context, setKey []byte, maxScore uint64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := m.zsets[string(setKey)]
	var best *member
	for i := range members {
		mm := members[i]
		if mm.score <= maxScore && (best == nil || mm.score > best.score) {
			best = &mm
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	out := make([]byte, len(best.value))
	copy(out, best.value)
	return out, nil
}

func (m *MemoryStore) Scan(_ context.Context, cursor string, matchPattern string, countHint int64) (string, [][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Redis SCAN walks one flat keyspace shared by string keys (Get) and
	// sorted-set keys (RevRangeLE's ZADD-populated sets): match that here
	// rather than only scanning m.kv, or set-key lookups like
	// resolver.ScanDataKeys's "data:{C}:*" pattern would never see anything.
	seen := make(map[string]struct{}, len(m.kv)+len(m.zsets))
	for k := range m.kv {
		seen[k] = struct{}{}
	}
	for k := range m.zsets {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if cursor != "" && cursor != "0" {
		if n, err := strconv.Atoi(cursor); err == nil {
			start = n
		}
	}

	if countHint <= 0 {
		countHint = 10
	}

	var out [][]byte
	i := start
	for ; i < len(keys) && int64(len(out)) < countHint; i++ {
		if matchPattern == "" || matchPattern == "*" || globMatch(matchPattern, keys[i]) {
			out = append(out, []byte(keys[i]))
		}
	}

	next := "0"
	if i < len(keys) {
		next = strconv.Itoa(i)
	}
	return next, out, nil
}

func (m *MemoryStore) Close() error { return nil }

// globMatch implements the small subset of Redis glob patterns ("*" as a
// wildcard anywhere) needed by storage_iter_prefix-style scans.
func globMatch(pattern, s string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == s
	}
	ok, err := path.Match(pattern, s)
	if err != nil {
		return false
	}
	return ok
}
