package fatptr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoMethods is returned for an interface declaring zero methods.
	ErrNoMethods = errors.New("fatptr: interface declares no methods")

	// ErrEmptyMethodName is returned for a method without a name.
	ErrEmptyMethodName = errors.New("fatptr: method name is empty")

	// ErrDuplicateMethod is returned when two methods share a name.
	ErrDuplicateMethod = errors.New("fatptr: duplicate method name")

	// ErrEmptyInterfaceName is returned for an interface without a name.
	ErrEmptyInterfaceName = errors.New("fatptr: interface name is empty")
)

// Qualifier is a set of call qualifiers recorded on a method.
// Qualifiers are descriptive: generated code documents them but does not
// enforce them.
type Qualifier uint8

const (
	// QualConst marks a method that does not mutate its receiver.
	QualConst Qualifier = 1 << iota
	// QualPure marks a method without observable side effects.
	QualPure
	// QualNoAlloc marks a method that does not allocate.
	QualNoAlloc
)

var qualifierNames = []struct {
	q    Qualifier
	name string
}{
	{QualConst, "const"},
	{QualPure, "pure"},
	{QualNoAlloc, "noalloc"},
}

// ParseQualifier maps a directive name ("const", "pure", "noalloc") to its
// Qualifier.
func ParseQualifier(name string) (Qualifier, bool) {
	for _, qn := range qualifierNames {
		if qn.name == name {
			return qn.q, true
		}
	}
	return 0, false
}

// Has reports whether all qualifiers in other are set in q.
func (q Qualifier) Has(other Qualifier) bool {
	return q&other == other
}

// Names returns the qualifier names in canonical order.
func (q Qualifier) Names() []string {
	var names []string
	for _, qn := range qualifierNames {
		if q.Has(qn.q) {
			names = append(names, qn.name)
		}
	}
	return names
}

func (q Qualifier) String() string {
	if q == 0 {
		return "none"
	}
	return strings.Join(q.Names(), "|")
}

// Method describes one interface method at runtime.
type Method struct {
	// Name is the Go method name.
	Name string

	// Signature is the method's func type as written by the generator,
	// e.g. "func(by int) (int, error)". Informational only.
	Signature string

	// Qualifiers are the call qualifiers declared with //fatptr: directives.
	Qualifiers Qualifier
}

// Interface is the runtime handle of an interface descriptor.
// Generated code creates exactly one per interface, at package
// initialisation, and its pointer identity is part of every dispatch table
// key. An Interface is immutable after creation.
type Interface struct {
	name    string
	methods []Method
	index   map[string]int
}

// NewInterface validates and returns an interface handle.
// The name should be fully qualified ("example.com/pkg.Describer").
func NewInterface(name string, methods ...Method) (*Interface, error) {
	if name == "" {
		return nil, ErrEmptyInterfaceName
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMethods, name)
	}

	iface := &Interface{
		name:    name,
		methods: make([]Method, len(methods)),
		index:   make(map[string]int, len(methods)),
	}
	copy(iface.methods, methods)

	for i, m := range iface.methods {
		if m.Name == "" {
			return nil, fmt.Errorf("%w: %s method %d", ErrEmptyMethodName, name, i)
		}
		if _, dup := iface.index[m.Name]; dup {
			return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateMethod, name, m.Name)
		}
		iface.index[m.Name] = i
	}

	return iface, nil
}

// MustInterface is like NewInterface but panics on error.
// It is intended for generated package-level variables.
func MustInterface(name string, methods ...Method) *Interface {
	iface, err := NewInterface(name, methods...)
	if err != nil {
		panic(err)
	}
	return iface
}

// Name returns the interface's qualified name.
func (i *Interface) Name() string { return i.name }

// NumMethods returns the number of methods (and dispatch table slots).
func (i *Interface) NumMethods() int { return len(i.methods) }

// Method returns the i'th method in slot order.
func (i *Interface) Method(n int) Method { return i.methods[n] }

// Methods returns a copy of the methods in slot order.
func (i *Interface) Methods() []Method {
	out := make([]Method, len(i.methods))
	copy(out, i.methods)
	return out
}

// Lookup returns the slot index of the named method.
func (i *Interface) Lookup(name string) (int, bool) {
	n, ok := i.index[name]
	return n, ok
}

func (i *Interface) String() string {
	return i.name
}
