package fatptr

import (
	"errors"
	"unsafe"
)

// ErrNilBorrow is the panic value raised when a borrowed wrapper is
// constructed from a nil pointer.
var ErrNilBorrow = errors.New("fatptr: cannot borrow a nil pointer")

// NoZero marks a struct whose zero value is invalid.
// Generated wrappers embed it as a blank field; the fatptrzero analyzer
// reports composite literals, var declarations, new calls and non-empty
// make calls that would produce such a zero value outside generated code.
type NoZero struct{}

// Own copies v into a fresh heap cell owned by the wrapper and returns the
// opaque reference to it. Later changes to the caller's v are not visible
// through the wrapper; the copy lives as long as any wrapper refers to it.
func Own[T any](v T) unsafe.Pointer {
	p := new(T)
	*p = v
	return unsafe.Pointer(p)
}

// Borrow returns an opaque reference aliasing caller storage. Mutations
// through the wrapper and through p are mutually visible. The garbage
// collector keeps *p alive while the wrapper exists, but the caller is
// responsible for not reusing *p for unrelated data during that time.
func Borrow[T any](p *T) unsafe.Pointer {
	if p == nil {
		panic(ErrNilBorrow)
	}
	return unsafe.Pointer(p)
}

// Deref recovers the concrete pointer from an opaque reference produced by
// Own[T] or Borrow[T]. Generated trampolines use the equivalent
// conversion inline.
func Deref[T any](data unsafe.Pointer) *T {
	return (*T)(data)
}
