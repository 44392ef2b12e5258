package resolver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weisyn/viewd/internal/domain"
	"github.com/weisyn/viewd/internal/store"
)

func TestLatestHeightMemoizesWithinTTL(t *testing.T) {
	m := store.NewMemoryStore()
	m.Put(latestHeightKey, []byte("100"))
	r := New(m, nil)

	h, err := r.LatestHeight(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 100, h)

	m.Put(latestHeightKey, []byte("200"))
	h, err = r.LatestHeight(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 100, h, "cached value should survive within the TTL window")

	time.Sleep(latestHeightTTL + 20*time.Millisecond)
	h, err = r.LatestHeight(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 200, h)
}

func TestCodeRevisionAndBlob(t *testing.T) {
	m := store.NewMemoryStore()
	c := domain.ContractID("alice.near")
	rev := domain.RevisionHash([]byte("rev-a"))

	m.AddRevision(codeSetKey(c), 10, rev)
	m.Put(codeBlobKey(c, rev), []byte("wasm-bytes"))

	r := New(m, nil)
	gotRev, err := r.CodeRevision(context.Background(), c, 50)
	require.NoError(t, err)
	require.Equal(t, rev, gotRev)

	blob, err := r.CodeBlob(context.Background(), c, gotRev)
	require.NoError(t, err)
	require.Equal(t, []byte("wasm-bytes"), blob)
}

func TestAccountRevisionNotFound(t *testing.T) {
	m := store.NewMemoryStore()
	r := New(m, nil)
	_, err := r.AccountRevision(context.Background(), "nobody.near", 10)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRequestScopeSnapshotIsolation(t *testing.T) {
	m := store.NewMemoryStore()
	c := domain.ContractID("alice.near")
	key := []byte("balance")
	composite := CompositeDataKey(c, key)

	m.AddRevision(dataSetKey(composite), 10, []byte("rev1"))
	m.Put(dataBlobKey(composite, []byte("rev1")), []byte("100"))

	r := New(m, nil)
	scope := r.NewRequestScope(10)

	v, found, err := scope.DataValue(context.Background(), c, key)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("100"), v)

	// A concurrent "indexer" writes a newer revision after the scope
	// already observed the old one; the scope must keep returning the
	// value it memoized, not the newly written one.
	m.AddRevision(dataSetKey(composite), 20, []byte("rev2"))
	m.Put(dataBlobKey(composite, []byte("rev2")), []byte("999"))

	v2, found2, err := scope.DataValue(context.Background(), c, key)
	require.NoError(t, err)
	require.True(t, found2)
	require.Equal(t, []byte("100"), v2, "request scope must not observe writes made after it was created")
}

func TestRequestScopeDataValueMissingKey(t *testing.T) {
	m := store.NewMemoryStore()
	r := New(m, nil)
	scope := r.NewRequestScope(10)

	_, found, err := scope.DataValue(context.Background(), "alice.near", []byte("nope"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestScanPrefixAndEscaping(t *testing.T) {
	m := store.NewMemoryStore()
	c := domain.ContractID("alice.near")

	seed := func(key string, height uint64, value string) {
		composite := CompositeDataKey(c, []byte(key))
		rev := []byte(fmt.Sprintf("rev-%s", key))
		m.AddRevision(dataSetKey(composite), height, rev)
		m.Put(dataBlobKey(composite, rev), []byte(value))
	}
	seed("user:1", 1, "a")
	seed("user:2", 1, "b")
	seed("other", 1, "c")
	// a key containing a literal glob metacharacter must not be treated as
	// a wildcard during prefix scans.
	seed("us*r:3", 1, "d")

	r := New(m, nil)
	scope := r.NewRequestScope(10)

	entries, err := scope.ScanPrefix(context.Background(), c, []byte("user:"))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var keys []string
	for _, e := range entries {
		keys = append(keys, string(e.Key))
	}
	require.ElementsMatch(t, []string{"user:1", "user:2"}, keys)
}

func TestScanRangeBounds(t *testing.T) {
	m := store.NewMemoryStore()
	c := domain.ContractID("alice.near")

	seed := func(key string) {
		composite := CompositeDataKey(c, []byte(key))
		rev := []byte("rev-" + key)
		m.AddRevision(dataSetKey(composite), 1, rev)
		m.Put(dataBlobKey(composite, rev), []byte("v-"+key))
	}
	seed("a")
	seed("b")
	seed("c")
	seed("d")

	r := New(m, nil)
	scope := r.NewRequestScope(10)

	entries, err := scope.ScanRange(context.Background(), c, []byte("b"), []byte("d"))
	require.NoError(t, err)

	var keys []string
	for _, e := range entries {
		keys = append(keys, string(e.Key))
	}
	require.ElementsMatch(t, []string{"b", "c"}, keys)
}

func TestEscapeGlob(t *testing.T) {
	require.Equal(t, []byte(`a\*b\?c\[d\\e`), escapeGlob([]byte("a*b?c[d\\e")))
}
