package coordinator

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per spec.md §7 outcome tag. View wraps the
// lower-level errors surfaced by the resolver, module cache, and worker
// pool into one of these so callers can classify a failed call with a
// single errors.Is check regardless of which layer produced it. Submit
// failures and unrecognized worker errors carry none of these.
var (
	ErrCodeNotFound    = errors.New("coordinator: code not found")
	ErrCodeCompilation = errors.New("coordinator: code compilation failed")
	ErrMethodNotFound  = errors.New("coordinator: method not found")
	ErrPanic           = errors.New("coordinator: guest panicked")
	ErrAbort           = errors.New("coordinator: guest aborted")
	ErrNotImplemented  = errors.New("coordinator: host import not implemented")
	ErrTimeout         = errors.New("coordinator: execution timed out")
	ErrTransient       = errors.New("coordinator: transient store error")
)

func wrapCodeNotFound(contractID string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCodeNotFound, contractID, err)
}

func wrapCodeCompilation(contractID string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCodeCompilation, contractID, err)
}

func wrapMethodNotFound(err error) error {
	return fmt.Errorf("%w: %w", ErrMethodNotFound, err)
}

func wrapPanic(err error) error {
	return fmt.Errorf("%w: %w", ErrPanic, err)
}

func wrapAbort(err error) error {
	return fmt.Errorf("%w: %w", ErrAbort, err)
}

func wrapNotImplemented(err error) error {
	return fmt.Errorf("%w: %w", ErrNotImplemented, err)
}

func wrapTimeout(err error) error {
	return fmt.Errorf("%w: %w", ErrTimeout, err)
}

func wrapTransient(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
}
