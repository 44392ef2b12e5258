package hostbridge

import (
	"context"
	"fmt"
	"unicode/utf16"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/weisyn/viewd/pkg/log"
)

// envModuleName is the import module name guest code must declare its host
// imports against, e.g. `(import "env" "storage_read" ...)`.
const envModuleName = "env"

// Bridge builds and registers the register-machine host ABI (spec.md §4.5)
// against a worker's wazero.Runtime. One Bridge instance is shared by every
// call a worker ever executes; per-call state travels via context.Context
// (see Call/WithCall), not closures, so the "env" module is instantiated
// exactly once per runtime (wazero refuses to instantiate the same module
// name twice), mirroring the teacher's WASMAdapter.BuildHostFunctions.
type Bridge struct {
	logger log.Logger
}

// New builds a Bridge.
func New(logger log.Logger) *Bridge {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Bridge{logger: logger}
}

// Instantiate registers every host import against runtime. Call once per
// worker, before compiling or instantiating any guest module.
func (b *Bridge) Instantiate(ctx context.Context, runtime wazero.Runtime) error {
	builder := runtime.NewHostModuleBuilder(envModuleName)
	for name, fn := range b.functions() {
		builder.NewFunctionBuilder().WithFunc(fn).Export(name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("hostbridge: instantiate env module: %w", err)
	}
	return nil
}

func (b *Bridge) functions() map[string]interface{} {
	return map[string]interface{}{
		// ---- registers ----
		"input":          b.input,
		"register_len":   b.registerLen,
		"read_register":  b.readRegister,
		"value_return":   b.valueReturn,

		// ---- logging / diagnostics ----
		"log_utf8":    b.logUTF8,
		"log_utf16":   b.logUTF16,
		"panic":       b.guestPanic,
		"panic_utf8":  b.guestPanicUTF8,
		"abort":       b.guestAbort,

		// ---- call context ----
		"current_account_id":     b.currentAccountID,
		"predecessor_account_id": b.predecessorAccountID,
		"signer_account_id":      b.signerAccountID,
		"block_index":            b.blockIndex,
		"block_timestamp":        b.blockTimestamp,

		// ---- storage reads ----
		"storage_read":        b.storageRead,
		"storage_has_key":     b.storageHasKey,
		"storage_iter_prefix": b.storageIterPrefix,
		"storage_iter_range":  b.storageIterRange,
		"storage_iter_next":   b.storageIterNext,

		// ---- write-path / cross-contract imports: out of scope for a
		// read-only view-call engine, but guest code compiled against the
		// full host ABI still references them, so they must resolve at
		// link time. Any call into one aborts the call with a distinct
		// signal the coordinator reports as notImplemented rather than
		// as a guest bug (spec.md §7).
		"storage_write":       b.notImplemented("storage_write"),
		"storage_remove":      b.notImplemented("storage_remove"),
		"promise_create":      b.notImplemented("promise_create"),
		"promise_then":        b.notImplemented("promise_then"),
		"promise_and":         b.notImplemented("promise_and"),
		"promise_batch_create": b.notImplemented("promise_batch_create"),
		"promise_return":      b.notImplemented("promise_return"),
	}
}

// --- registers -------------------------------------------------------

func (b *Bridge) input(ctx context.Context, registerID uint64) {
	call := callFromContext(ctx)
	call.setRegister(registerID, call.InputArgs)
}

func (b *Bridge) registerLen(ctx context.Context, registerID uint64) uint64 {
	call := callFromContext(ctx)
	v, ok := call.register(registerID)
	if !ok {
		return noSuchRegister
	}
	return uint64(len(v))
}

func (b *Bridge) readRegister(ctx context.Context, m api.Module, registerID uint64, ptr uint32) {
	call := callFromContext(ctx)
	v, ok := call.register(registerID)
	if !ok {
		return
	}
	if !m.Memory().Write(ptr, v) {
		b.logger.Errorf("hostbridge: read_register write out of bounds ptr=%d len=%d", ptr, len(v))
	}
}

func (b *Bridge) valueReturn(ctx context.Context, registerID uint64) {
	call := callFromContext(ctx)
	v, ok := call.register(registerID)
	if !ok {
		return
	}
	call.Result = v
}

// --- logging -----------------------------------------------------------

func (b *Bridge) logUTF8(ctx context.Context, m api.Module, length, ptr uint32) {
	call := callFromContext(ctx)
	raw, ok := m.Memory().Read(ptr, length)
	if !ok {
		b.logger.Warnf("hostbridge: log_utf8 out-of-bounds read ptr=%d len=%d", ptr, length)
		return
	}
	call.Logs = append(call.Logs, string(raw))
}

func (b *Bridge) logUTF16(ctx context.Context, m api.Module, byteLen, ptr uint32) {
	call := callFromContext(ctx)
	raw, ok := m.Memory().Read(ptr, byteLen)
	if !ok || len(raw)%2 != 0 {
		b.logger.Warnf("hostbridge: log_utf16 out-of-bounds or misaligned read ptr=%d len=%d", ptr, byteLen)
		return
	}
	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
	}
	call.Logs = append(call.Logs, string(utf16.Decode(units)))
}

func (b *Bridge) readUTF8Message(m api.Module, ptr, length uint32) string {
	raw, ok := m.Memory().Read(ptr, length)
	if !ok {
		return "<out of bounds>"
	}
	return string(raw)
}

// readASString decodes an AssemblyScript-native string given only its
// pointer: the toolchain that emits abort (spec.md §4.5/§6) stores the
// string's byte length as a u32 4 bytes before ptr and the content itself
// as UTF-16LE at ptr, with no length argument passed across the ABI. A
// null ptr (the filename argument is frequently omitted) decodes to "".
func (b *Bridge) readASString(m api.Module, ptr uint32) string {
	if ptr == 0 {
		return ""
	}
	lenBytes, ok := m.Memory().Read(ptr-4, 4)
	if !ok {
		return "<out of bounds>"
	}
	byteLen := uint32(lenBytes[0]) | uint32(lenBytes[1])<<8 | uint32(lenBytes[2])<<16 | uint32(lenBytes[3])<<24

	raw, ok := m.Memory().Read(ptr, byteLen)
	if !ok || len(raw)%2 != 0 {
		return "<out of bounds>"
	}
	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
	}
	return string(utf16.Decode(units))
}

func (b *Bridge) guestPanic(ctx context.Context, m api.Module) {
	panic(Signal{Kind: signalPanic, Message: "explicit panic"})
}

func (b *Bridge) guestPanicUTF8(ctx context.Context, m api.Module, length, ptr uint32) {
	panic(Signal{Kind: signalPanic, Message: b.readUTF8Message(m, ptr, length)})
}

// guestAbort implements the abort import exactly as spec.md §4.5/§6 defines
// it: abort(msg_ptr, filename_ptr, line, col), four i32 params. This shape
// is load-bearing — it's the import AssemblyScript's own compiler emits for
// every assertion and out-of-bounds check, so a guest module compiled
// against the real ABI will fail wazero's import type-check at
// instantiation against anything narrower.
func (b *Bridge) guestAbort(ctx context.Context, m api.Module, msgPtr, filenamePtr, line, col uint32) {
	msg := b.readASString(m, msgPtr)
	filename := b.readASString(m, filenamePtr)
	panic(Signal{Kind: signalAbort, Message: fmt.Sprintf("abort: %s:%d:%d %s", filename, line, col, msg)})
}

func (b *Bridge) notImplemented(name string) func(ctx context.Context) {
	return func(ctx context.Context) {
		panic(Signal{Kind: signalNotImplemented, Message: name})
	}
}

// --- call context --------------------------------------------------------

func (b *Bridge) currentAccountID(ctx context.Context, registerID uint64) {
	call := callFromContext(ctx)
	call.setRegister(registerID, []byte(call.ContractID))
}

// predecessorAccountID and signerAccountID write the empty byte string: a
// view call has no transaction sender, only the pinned-height read path
// (spec.md §1 non-goals).
func (b *Bridge) predecessorAccountID(ctx context.Context, registerID uint64) {
	callFromContext(ctx).setRegister(registerID, nil)
}

func (b *Bridge) signerAccountID(ctx context.Context, registerID uint64) {
	callFromContext(ctx).setRegister(registerID, nil)
}

func (b *Bridge) blockIndex(ctx context.Context) uint64 {
	call := callFromContext(ctx)
	return call.Scope.Height()
}

// blockTimestamp has no store-backed source of truth in this engine
// (spec.md's versioned store indexes state by height, not wall-clock
// time); guests that call it get a zero value rather than a notImplemented
// trap, since near contracts commonly call it opportunistically.
func (b *Bridge) blockTimestamp(ctx context.Context) uint64 {
	return 0
}

// --- storage reads -----------------------------------------------------

func (b *Bridge) storageRead(ctx context.Context, m api.Module, keyLen, keyPtr uint32, registerID uint64) uint64 {
	call := callFromContext(ctx)
	key, ok := m.Memory().Read(keyPtr, keyLen)
	if !ok {
		b.logger.Errorf("hostbridge: storage_read out-of-bounds key ptr=%d len=%d", keyPtr, keyLen)
		return 0
	}
	value, found, err := call.Scope.DataValue(ctx, call.ContractID, key)
	if err != nil {
		b.logger.Errorf("hostbridge: storage_read: %v", err)
		return 0
	}
	if !found {
		return 0
	}
	call.setRegister(registerID, value)
	return 1
}

func (b *Bridge) storageHasKey(ctx context.Context, m api.Module, keyLen, keyPtr uint32) uint64 {
	call := callFromContext(ctx)
	key, ok := m.Memory().Read(keyPtr, keyLen)
	if !ok {
		return 0
	}
	_, found, err := call.Scope.DataValue(ctx, call.ContractID, key)
	if err != nil || !found {
		return 0
	}
	return 1
}

func (b *Bridge) storageIterPrefix(ctx context.Context, m api.Module, prefixLen, prefixPtr uint32) uint64 {
	call := callFromContext(ctx)
	prefix, ok := m.Memory().Read(prefixPtr, prefixLen)
	if !ok {
		return noSuchRegister
	}
	entries, err := call.Scope.ScanPrefix(ctx, call.ContractID, prefix)
	if err != nil {
		b.logger.Errorf("hostbridge: storage_iter_prefix: %v", err)
		return noSuchRegister
	}
	return call.newIterator(entries)
}

func (b *Bridge) storageIterRange(ctx context.Context, m api.Module, startLen, startPtr, endLen, endPtr uint32) uint64 {
	call := callFromContext(ctx)
	start, ok := m.Memory().Read(startPtr, startLen)
	if !ok {
		return noSuchRegister
	}
	end, ok := m.Memory().Read(endPtr, endLen)
	if !ok {
		return noSuchRegister
	}
	entries, err := call.Scope.ScanRange(ctx, call.ContractID, start, end)
	if err != nil {
		b.logger.Errorf("hostbridge: storage_iter_range: %v", err)
		return noSuchRegister
	}
	return call.newIterator(entries)
}

func (b *Bridge) storageIterNext(ctx context.Context, iteratorID, keyRegisterID, valueRegisterID uint64) uint64 {
	call := callFromContext(ctx)
	it, ok := call.iterators[iteratorID]
	if !ok || it.pos >= len(it.entries) {
		return 0
	}
	entry := it.entries[it.pos]
	it.pos++
	call.setRegister(keyRegisterID, entry.Key)
	call.setRegister(valueRegisterID, entry.Value)
	return 1
}
