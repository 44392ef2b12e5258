package workerpool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weisyn/viewd/internal/hostbridge"
	"github.com/weisyn/viewd/internal/resolver"
	"github.com/weisyn/viewd/internal/store"
)

// minimalModule is a hand-assembled WebAssembly binary (no wat2wasm
// dependency) that imports one host function, "env"."panic", and exports
// two zero-arg/zero-result functions:
//
//   - "trigger_panic": calls the imported panic import.
//   - "go": does nothing and returns.
//
// It exercises the full wazero instantiate/call path without needing a
// guest toolchain in this repository.
var minimalModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic "\0asm"
	0x01, 0x00, 0x00, 0x00, // version 1

	// type section: one type, () -> ()
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,

	// import section: func "env"."panic" of type 0
	0x02, 0x0d, 0x01,
	0x03, 0x65, 0x6e, 0x76, // "env"
	0x05, 0x70, 0x61, 0x6e, 0x69, 0x63, // "panic"
	0x00, 0x00,

	// function section: two locally-defined funcs, both type 0
	0x03, 0x03, 0x02, 0x00, 0x00,

	// export section: "trigger_panic" -> func 1, "go" -> func 2
	0x07, 0x16, 0x02,
	0x0d, 0x74, 0x72, 0x69, 0x67, 0x67, 0x65, 0x72, 0x5f, 0x70, 0x61, 0x6e, 0x69, 0x63, 0x00, 0x01,
	0x02, 0x67, 0x6f, 0x00, 0x02,

	// code section: body for func 1 (call import 0; end), body for func 2 (end)
	0x0a, 0x09, 0x02,
	0x04, 0x00, 0x10, 0x00, 0x0b,
	0x02, 0x00, 0x0b,
}

// wasmAbortModule is a hand-assembled WebAssembly binary that imports the
// 4-param "env"."abort" host function (msg_ptr, filename_ptr, line, col)
// and exports "trigger_abort", which calls it with fixed arguments against
// a linear memory pre-populated (via a data segment) with two
// AssemblyScript-native strings:
//
//   - filenamePtr=12: byte-length header 2 at offset 8, content "a" (UTF-16LE) at 12.
//   - msgPtr=24: byte-length header 8 at offset 20, content "oops" (UTF-16LE) at 24.
//
// trigger_abort calls abort(24, 12, 5, 7), i.e. msg="oops", filename="a",
// line=5, col=7 — proving guestAbort's real 4-param signature decodes both
// strings from pointer alone, the way AssemblyScript's compiler-emitted
// abort call site actually looks.
var wasmAbortModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic "\0asm"
	0x01, 0x00, 0x00, 0x00, // version 1

	// type section: type0 (i32,i32,i32,i32)->(), type1 ()->()
	0x01, 0x0b, 0x02,
	0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x00,
	0x60, 0x00, 0x00,

	// import section: func "env"."abort" of type 0
	0x02, 0x0d, 0x01,
	0x03, 0x65, 0x6e, 0x76, // "env"
	0x05, 0x61, 0x62, 0x6f, 0x72, 0x74, // "abort"
	0x00, 0x00,

	// function section: two locally-defined funcs, both type 1
	0x03, 0x03, 0x02, 0x01, 0x01,

	// memory section: memory 0, min 1 page
	0x05, 0x03, 0x01, 0x00, 0x01,

	// export section: "trigger_abort" -> func 1, "go" -> func 2
	0x07, 0x16, 0x02,
	0x0d, 0x74, 0x72, 0x69, 0x67, 0x67, 0x65, 0x72, 0x5f, 0x61, 0x62, 0x6f, 0x72, 0x74, 0x00, 0x01,
	0x02, 0x67, 0x6f, 0x00, 0x02,

	// code section: func 1 pushes (24, 12, 5, 7) and calls import 0; func 2 returns.
	0x0a, 0x11, 0x02,
	0x0c, 0x00, 0x41, 0x18, 0x41, 0x0c, 0x41, 0x05, 0x41, 0x07, 0x10, 0x00, 0x0b,
	0x02, 0x00, 0x0b,

	// data section: active segment at offset 8, 24 bytes
	0x0b, 0x1e, 0x01,
	0x00, 0x41, 0x08, 0x0b, 0x18,
	0x02, 0x00, 0x00, 0x00, 0x61, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x08, 0x00, 0x00, 0x00, 0x6f, 0x00, 0x6f, 0x00, 0x70, 0x00, 0x73, 0x00,
}

func testScope(t *testing.T) *resolver.RequestScope {
	t.Helper()
	m := store.NewMemoryStore()
	m.Put([]byte("latest_block_height"), []byte("1"))
	res := resolver.New(m, nil)
	return res.NewRequestScope(1)
}

func TestPoolSubmitHappyPath(t *testing.T) {
	ctx := context.Background()
	bridge := hostbridge.New(nil)
	pool, err := New(Config{Capacity: 2}, bridge, nil, nil)
	require.NoError(t, err)
	defer pool.Close()

	rt := pool.workers[0].runtime
	compiled, err := rt.CompileModule(ctx, minimalModule)
	require.NoError(t, err)

	call := hostbridge.NewCall("alice.near", "go", nil, testScope(t))
	res, err := pool.Submit(ctx, Job{Call: call, Module: compiled, Timeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, res.Err)
}

func TestPoolSubmitMethodNotFound(t *testing.T) {
	ctx := context.Background()
	bridge := hostbridge.New(nil)
	pool, err := New(Config{Capacity: 1}, bridge, nil, nil)
	require.NoError(t, err)
	defer pool.Close()

	rt := pool.workers[0].runtime
	compiled, err := rt.CompileModule(ctx, minimalModule)
	require.NoError(t, err)

	call := hostbridge.NewCall("alice.near", "does_not_exist", nil, testScope(t))
	res, err := pool.Submit(ctx, Job{Call: call, Module: compiled, Timeout: time.Second})
	require.NoError(t, err)
	require.ErrorIs(t, res.Err, ErrMethodNotFound)
}

func TestPoolSubmitPanicDestroysAndReplacesWorker(t *testing.T) {
	ctx := context.Background()
	bridge := hostbridge.New(nil)
	pool, err := New(Config{Capacity: 1}, bridge, nil, nil)
	require.NoError(t, err)
	defer pool.Close()

	rt := pool.workers[0].runtime
	compiled, err := rt.CompileModule(ctx, minimalModule)
	require.NoError(t, err)

	call := hostbridge.NewCall("alice.near", "trigger_panic", nil, testScope(t))
	res, err := pool.Submit(ctx, Job{Call: call, Module: compiled, Timeout: time.Second})
	require.NoError(t, err)
	require.Error(t, res.Err)
	require.True(t, errors.Is(res.Err, ErrPanic) || errors.Is(res.Err, ErrAbort))

	stats := pool.Stats()
	require.Len(t, stats, 1)
	require.EqualValues(t, 1, stats[0].Destroyed)

	// The worker must still be usable after being replaced.
	call2 := hostbridge.NewCall("alice.near", "go", nil, testScope(t))
	rt2 := pool.workers[0].runtime
	compiled2, err := rt2.CompileModule(ctx, minimalModule)
	require.NoError(t, err)
	res2, err := pool.Submit(ctx, Job{Call: call2, Module: compiled2, Timeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, res2.Err)
}

func TestPoolSubmitAbortDecodesMessageFilenameLineCol(t *testing.T) {
	ctx := context.Background()
	bridge := hostbridge.New(nil)
	pool, err := New(Config{Capacity: 1}, bridge, nil, nil)
	require.NoError(t, err)
	defer pool.Close()

	rt := pool.workers[0].runtime
	compiled, err := rt.CompileModule(ctx, wasmAbortModule)
	require.NoError(t, err)

	call := hostbridge.NewCall("alice.near", "trigger_abort", nil, testScope(t))
	res, err := pool.Submit(ctx, Job{Call: call, Module: compiled, Timeout: time.Second})
	require.NoError(t, err)
	require.ErrorIs(t, res.Err, ErrAbort)
	require.Contains(t, res.Err.Error(), "abort: a:5:7 oops")
}

func TestPoolCapacityAndIdle(t *testing.T) {
	bridge := hostbridge.New(nil)
	pool, err := New(Config{Capacity: 3}, bridge, nil, nil)
	require.NoError(t, err)
	defer pool.Close()

	require.Equal(t, 3, pool.Capacity())
	require.Equal(t, 3, pool.Idle())
}
