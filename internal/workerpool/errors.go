package workerpool

import (
	"errors"
	"fmt"

	"github.com/weisyn/viewd/internal/hostbridge"
)

// Sentinel errors a Job's Result.Err may wrap, classifying guest-execution
// outcomes per spec.md §7. The coordinator inspects these with errors.Is to
// decide its own public error tag and whether the worker that produced them
// needed replacing (workerpool already replaced it before returning).
var (
	ErrMethodNotFound = errors.New("workerpool: method not found")
	ErrNotImplemented = errors.New("workerpool: host import not implemented")
	ErrPanic          = errors.New("workerpool: guest panicked")
	ErrAbort          = errors.New("workerpool: guest aborted")
	ErrTimeout        = errors.New("workerpool: execution timed out")
)

func errMethodNotFound(method string) error {
	return fmt.Errorf("%w: %s", ErrMethodNotFound, method)
}

func errNotImplemented(importName string) error {
	return fmt.Errorf("%w: %s", ErrNotImplemented, importName)
}

func errTimeout(method string) error {
	return fmt.Errorf("%w: %s", ErrTimeout, method)
}

func errGuestSignal(sig hostbridge.Signal) error {
	switch sig.Kind {
	case "abort":
		return fmt.Errorf("%w: %s", ErrAbort, sig.Message)
	default:
		return fmt.Errorf("%w: %s", ErrPanic, sig.Message)
	}
}

// asSignal unwraps a hostbridge.Signal out of a recovered/propagated error,
// if one is present. wazero preserves the panicked value as the error
// returned from an exported function's Call (see the Signal doc in
// internal/hostbridge/registers.go).
func asSignal(err error) (hostbridge.Signal, bool) {
	var sig hostbridge.Signal
	if errors.As(err, &sig) {
		return sig, true
	}
	return hostbridge.Signal{}, false
}
