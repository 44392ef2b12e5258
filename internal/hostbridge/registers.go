// Package hostbridge implements the Host Bridge (spec.md §4.5): the
// register-machine ABI guest modules use to exchange data with the host.
// Every import is bound once per worker's wazero.Runtime; the state for
// the in-flight call (registers, pinned height, logs, result) is threaded
// through context.Context, mirroring the teacher's "extract from ctx, don't
// close over it" pattern so one env module instantiation safely serves many
// calls in sequence.
package hostbridge

import (
	"context"
	"fmt"
	"math"

	"github.com/weisyn/viewd/internal/domain"
	"github.com/weisyn/viewd/internal/resolver"
)

// noSuchRegister is returned by register_len when the register has never
// been written, mirroring the near-style u64::MAX sentinel.
const noSuchRegister = math.MaxUint64

// signalKind classifies a guest-initiated trap so the coordinator can
// decide whether to return the worker to the pool or destroy it.
type signalKind string

const (
	signalPanic         signalKind = "panic"
	signalAbort         signalKind = "abort"
	signalNotImplemented signalKind = "not_implemented"
)

// Signal is panicked by host functions that must halt guest execution
// (panic/abort/not-implemented imports never return to the guest). wazero
// recovers the panic and surfaces it as the error from the exported
// function's Call, so the coordinator can type-assert it back out.
type Signal struct {
	Kind    signalKind
	Message string
}

func (s Signal) Error() string { return fmt.Sprintf("%s: %s", s.Kind, s.Message) }

type iterator struct {
	entries []resolver.DataEntry
	pos     int
}

// Call carries everything one view-call invocation needs from the host
// functions it triggers. It is stored on the context passed to
// exportedFunc.Call, never closed over, since the host module is
// instantiated once per worker and reused across many calls.
type Call struct {
	ContractID domain.ContractID
	MethodName string
	InputArgs  []byte
	Scope      *resolver.RequestScope

	registers map[uint64][]byte
	iterators map[uint64]*iterator
	nextIter  uint64

	Logs   []string
	Result []byte
}

// NewCall builds a fresh per-invocation state.
func NewCall(contractID domain.ContractID, method string, args []byte, scope *resolver.RequestScope) *Call {
	return &Call{
		ContractID: contractID,
		MethodName: method,
		InputArgs:  args,
		Scope:      scope,
		registers:  make(map[uint64][]byte),
		iterators:  make(map[uint64]*iterator),
	}
}

type ctxKeyType struct{}

var ctxKey = ctxKeyType{}

// WithCall returns a context carrying call, for use as the ctx argument to
// an exported guest function invocation.
func WithCall(ctx context.Context, call *Call) context.Context {
	return context.WithValue(ctx, ctxKey, call)
}

func callFromContext(ctx context.Context) *Call {
	call, _ := ctx.Value(ctxKey).(*Call)
	return call
}

func (c *Call) setRegister(id uint64, value []byte) {
	cp := make([]byte, len(value))
	copy(cp, value)
	c.registers[id] = cp
}

func (c *Call) register(id uint64) ([]byte, bool) {
	v, ok := c.registers[id]
	return v, ok
}

func (c *Call) newIterator(entries []resolver.DataEntry) uint64 {
	id := c.nextIter
	c.nextIter++
	c.iterators[id] = &iterator{entries: entries}
	return id
}
