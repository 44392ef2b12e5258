package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetNotFound(t *testing.T) {
	m := NewMemoryStore()
	_, err := m.Get(context.Background(), []byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreGetRoundTrip(t *testing.T) {
	m := NewMemoryStore()
	m.Put([]byte("k"), []byte("v"))
	v, err := m.Get(context.Background(), []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
}

func TestMemoryStoreRevRangeLEPicksGreatestNotExceeding(t *testing.T) {
	m := NewMemoryStore()
	m.AddRevision([]byte("code:c1"), 10, []byte("rev10"))
	m.AddRevision([]byte("code:c1"), 20, []byte("rev20"))
	m.AddRevision([]byte("code:c1"), 30, []byte("rev30"))

	v, err := m.RevRangeLE(context.Background(), []byte("code:c1"), 25)
	require.NoError(t, err)
	require.Equal(t, []byte("rev20"), v)

	v, err = m.RevRangeLE(context.Background(), []byte("code:c1"), 30)
	require.NoError(t, err)
	require.Equal(t, []byte("rev30"), v)

	_, err = m.RevRangeLE(context.Background(), []byte("code:c1"), 5)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreScanSeesSetKeysAndStringKeys(t *testing.T) {
	m := NewMemoryStore()
	m.Put([]byte("data-value:c1:foo:rev1"), []byte("val"))
	m.AddRevision([]byte("data:c1:foo"), 1, []byte("rev1"))
	m.AddRevision([]byte("data:c1:bar"), 1, []byte("rev1"))

	cursor := "0"
	var found []string
	for {
		next, keys, err := m.Scan(context.Background(), cursor, "data:c1:*", 10)
		require.NoError(t, err)
		for _, k := range keys {
			found = append(found, string(k))
		}
		if next == "0" {
			break
		}
		cursor = next
	}

	require.ElementsMatch(t, []string{"data:c1:foo", "data:c1:bar"}, found)
}

func TestMemoryStoreScanPagination(t *testing.T) {
	m := NewMemoryStore()
	for i := 0; i < 5; i++ {
		m.Put([]byte{'k', byte('0' + i)}, []byte("v"))
	}

	cursor := "0"
	var total int
	for {
		next, keys, err := m.Scan(context.Background(), cursor, "*", 2)
		require.NoError(t, err)
		total += len(keys)
		if next == "0" {
			break
		}
		cursor = next
	}
	require.Equal(t, 5, total)
}
