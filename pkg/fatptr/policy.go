package fatptr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnsupportedPolicy is returned by Policy.Validate for recognised policy
// values that are not implemented.
var ErrUnsupportedPolicy = errors.New("fatptr: unsupported policy")

// Storage selects where a wrapper's data lives.
type Storage int

const (
	// StorageOwned copies the value into a wrapper-owned, GC-managed heap
	// cell. Safe by construction; the default.
	StorageOwned Storage = iota
	// StorageBorrowed aliases caller-owned storage (non-owning reference).
	StorageBorrowed
	// StorageLocal stores the value inline in the wrapper. Not implemented.
	StorageLocal
	// StorageSmallBuffer stores small values inline and large ones on the
	// heap. Not implemented.
	StorageSmallBuffer
	// StorageShared shares reference-counted ownership. Not implemented.
	StorageShared
)

var storageNames = map[Storage]string{
	StorageOwned:       "owned",
	StorageBorrowed:    "borrowed",
	StorageLocal:       "local",
	StorageSmallBuffer: "small-buffer",
	StorageShared:      "shared",
}

// Destruction selects how wrapped data is released.
type Destruction int

const (
	// DestructionManaged leaves release to the garbage collector.
	DestructionManaged Destruction = iota
	// DestructionExplicit requires an explicit release call. Not implemented.
	DestructionExplicit
)

var destructionNames = map[Destruction]string{
	DestructionManaged:  "managed",
	DestructionExplicit: "explicit",
}

// Dispatch selects the wrapper layout.
type Dispatch int

const (
	// DispatchIndirect stores a pointer to the interned table (<I>Ref).
	DispatchIndirect Dispatch = iota
	// DispatchEmbedded copies the table slots into the wrapper (<I>Inline),
	// trading size for one less indirection per call.
	DispatchEmbedded
)

var dispatchNames = map[Dispatch]string{
	DispatchIndirect: "indirect",
	DispatchEmbedded: "embedded",
}

func (s Storage) String() string     { return enumString(storageNames, s) }
func (d Destruction) String() string { return enumString(destructionNames, d) }
func (d Dispatch) String() string    { return enumString(dispatchNames, d) }

// MarshalText implements encoding.TextMarshaler.
func (s Storage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Storage) UnmarshalText(text []byte) error {
	return enumParse(storageNames, "storage", string(text), s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Destruction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Destruction) UnmarshalText(text []byte) error {
	return enumParse(destructionNames, "destruction", string(text), d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Dispatch) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Dispatch) UnmarshalText(text []byte) error {
	return enumParse(dispatchNames, "dispatch", string(text), d)
}

// Supported reports whether the storage policy is implemented.
func (s Storage) Supported() bool {
	return s == StorageOwned || s == StorageBorrowed
}

// Supported reports whether the destruction policy is implemented.
func (d Destruction) Supported() bool {
	return d == DestructionManaged
}

// Supported reports whether the dispatch policy is implemented.
func (d Dispatch) Supported() bool {
	return d == DispatchIndirect || d == DispatchEmbedded
}

// Policy is the full set of construction-time choices for one interface.
// Several storage and dispatch values may be selected at once; the
// generator emits one constructor per storage value and one wrapper type
// per dispatch value.
type Policy struct {
	Storage     []Storage
	Destruction Destruction
	Dispatch    []Dispatch
}

// DefaultPolicy returns owned storage, managed destruction and indirect
// dispatch.
func DefaultPolicy() Policy {
	return Policy{
		Storage:     []Storage{StorageOwned},
		Destruction: DestructionManaged,
		Dispatch:    []Dispatch{DispatchIndirect},
	}
}

// Validate checks that every selected value is implemented and that no
// value is selected twice.
func (p Policy) Validate() error {
	if len(p.Storage) == 0 {
		return fmt.Errorf("%w: no storage selected", ErrUnsupportedPolicy)
	}
	if len(p.Dispatch) == 0 {
		return fmt.Errorf("%w: no dispatch selected", ErrUnsupportedPolicy)
	}

	seenStorage := make(map[Storage]bool)
	for _, s := range p.Storage {
		if !s.Supported() {
			return fmt.Errorf("%w: storage %q", ErrUnsupportedPolicy, s)
		}
		if seenStorage[s] {
			return fmt.Errorf("storage %q selected twice", s)
		}
		seenStorage[s] = true
	}

	if !p.Destruction.Supported() {
		return fmt.Errorf("%w: destruction %q", ErrUnsupportedPolicy, p.Destruction)
	}

	seenDispatch := make(map[Dispatch]bool)
	for _, d := range p.Dispatch {
		if !d.Supported() {
			return fmt.Errorf("%w: dispatch %q", ErrUnsupportedPolicy, d)
		}
		if seenDispatch[d] {
			return fmt.Errorf("dispatch %q selected twice", d)
		}
		seenDispatch[d] = true
	}
	return nil
}

// HasStorage reports whether s is selected.
func (p Policy) HasStorage(s Storage) bool {
	for _, v := range p.Storage {
		if v == s {
			return true
		}
	}
	return false
}

// HasDispatch reports whether d is selected.
func (p Policy) HasDispatch(d Dispatch) bool {
	for _, v := range p.Dispatch {
		if v == d {
			return true
		}
	}
	return false
}

func enumString[E ~int](names map[E]string, v E) string {
	if name, ok := names[v]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(v))
}

func enumParse[E ~int](names map[E]string, kind, text string, dst *E) error {
	text = strings.ToLower(strings.TrimSpace(text))
	for v, name := range names {
		if name == text {
			*dst = v
			return nil
		}
	}
	valid := make([]string, 0, len(names))
	for _, name := range names {
		valid = append(valid, name)
	}
	sort.Strings(valid)
	return fmt.Errorf("unknown %s %q (valid: %s)", kind, text, strings.Join(valid, ", "))
}
