package modcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	"github.com/weisyn/viewd/internal/domain"
)

// minimalWasm is the smallest valid WebAssembly module: just the magic
// number and version header, with no sections. wazero compiles it fine.
var minimalWasm = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestGetOrCompileCachesAcrossCalls(t *testing.T) {
	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	c := New(runtime, nil)
	key := NewKey(domain.ContractID("alice.near"), domain.RevisionHash([]byte("rev1")))

	var calls int32
	fetch := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return minimalWasm, nil
	}

	m1, err := c.GetOrCompile(ctx, key, fetch)
	require.NoError(t, err)
	require.NotNil(t, m1)

	m2, err := c.GetOrCompile(ctx, key, fetch)
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "second call must not refetch/recompile")
	require.Equal(t, m1, m2)
	require.Equal(t, 1, c.Len())
}

func TestGetOrCompileDeduplicatesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	c := New(runtime, nil)
	key := NewKey(domain.ContractID("alice.near"), domain.RevisionHash([]byte("rev1")))

	var calls int32
	fetch := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return minimalWasm, nil
	}

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := c.GetOrCompile(ctx, key, fetch)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent misses for the same key must collapse into one compile")
}

func TestGetOrCompileDistinctKeysProceedIndependently(t *testing.T) {
	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	c := New(runtime, nil)
	fetch := func(ctx context.Context) ([]byte, error) { return minimalWasm, nil }

	k1 := NewKey(domain.ContractID("alice.near"), domain.RevisionHash([]byte("rev1")))
	k2 := NewKey(domain.ContractID("bob.near"), domain.RevisionHash([]byte("rev2")))

	_, err := c.GetOrCompile(ctx, k1, fetch)
	require.NoError(t, err)
	_, err = c.GetOrCompile(ctx, k2, fetch)
	require.NoError(t, err)

	require.Equal(t, 2, c.Len())
}
