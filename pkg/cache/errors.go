package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreInit marks failures to open or migrate the backing storage.
	// Callers treat it as fatal for caching and may run uncached instead.
	ErrStoreInit = errors.New("cache: store initialization failed")

	// ErrStoreIO marks a failed operation on an initialized store. The
	// interaction continues without the cache for that request.
	ErrStoreIO = errors.New("cache: store i/o failed")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("cache: store closed")
)

// Error describes a failed cache operation.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// InitError wraps err as an ErrStoreInit failure.
func InitError(op string, err error) error {
	return &Error{Op: op, Kind: ErrStoreInit, Err: err}
}

// IOError wraps err as an ErrStoreIO failure.
func IOError(op string, err error) error {
	return &Error{Op: op, Kind: ErrStoreIO, Err: err}
}
