package hostbridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weisyn/viewd/internal/resolver"
	"github.com/weisyn/viewd/internal/store"
)

func testScope() *resolver.RequestScope {
	m := store.NewMemoryStore()
	m.Put([]byte("latest_block_height"), []byte("1"))
	res := resolver.New(m, nil)
	return res.NewRequestScope(1)
}

func TestCallRegisterRoundTrip(t *testing.T) {
	call := NewCall("alice.near", "get_value", []byte("args"), testScope())

	_, ok := call.register(5)
	require.False(t, ok)

	call.setRegister(5, []byte("hello"))
	v, ok := call.register(5)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), v)

	// setRegister copies its input so later guest-side mutation of the
	// original slice cannot corrupt the stored register.
	original := []byte("mutable")
	call.setRegister(6, original)
	original[0] = 'X'
	v2, _ := call.register(6)
	require.Equal(t, []byte("mutable"), v2)
}

func TestCallNewIterator(t *testing.T) {
	call := NewCall("alice.near", "scan", nil, testScope())
	entries := []resolver.DataEntry{{Key: []byte("a"), Value: []byte("1")}}

	id1 := call.newIterator(entries)
	id2 := call.newIterator(entries)
	require.NotEqual(t, id1, id2)
	require.Len(t, call.iterators, 2)
}

func TestWithCallAndCallFromContext(t *testing.T) {
	call := NewCall("alice.near", "m", nil, testScope())
	ctx := WithCall(context.Background(), call)
	require.Same(t, call, callFromContext(ctx))
	require.Nil(t, callFromContext(context.Background()))
}

func TestSignalError(t *testing.T) {
	sig := Signal{Kind: signalAbort, Message: "boom"}
	require.Contains(t, sig.Error(), "boom")
	require.Contains(t, sig.Error(), "abort")
}
