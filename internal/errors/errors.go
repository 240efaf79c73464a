package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseConfig      Phase = "config"      // fatptr.yaml parsing
	PhaseLoad        Phase = "load"        // package loading
	PhaseDescribe    Phase = "describe"    // interface descriptor derivation
	PhaseConformance Phase = "conformance" // concrete type checks
	PhaseGenerate    Phase = "generate"    // source rendering
	PhaseValidate    Phase = "validate"    // type-checking generated source
	PhaseCache       Phase = "cache"       // generation cache
)

// Kind categorizes the error
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindNotInterface      Kind = "not_interface"
	KindNonMethodMember   Kind = "non_method_member"
	KindNotClosed         Kind = "not_closed"
	KindNoMethods         Kind = "no_methods"
	KindDuplicateMethod   Kind = "duplicate_method"
	KindInvalidDirective  Kind = "invalid_directive"
	KindMissingMethod     Kind = "missing_method"
	KindSignatureMismatch Kind = "signature_mismatch"
	KindPackageErrors     Kind = "package_errors"
	KindTypeCheck         Kind = "type_check"
	KindTemplate          Kind = "template"
	KindInvalidInput      Kind = "invalid_input"
	KindIO                Kind = "io"
)

// Error is the structured error type used by the generator
type Error struct {
	Cause     error
	Phase     Phase
	Kind      Kind
	Interface string
	Type      string
	Method    string
	Pos       string
	Detail    string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Pos != "" {
		b.WriteString(e.Pos)
		b.WriteString(": ")
	}

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	subject := e.subject()
	if subject != "" {
		b.WriteString(" ")
		b.WriteString(subject)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// subject renders "type T as I.M" style context.
func (e *Error) subject() string {
	var parts []string
	if e.Type != "" {
		parts = append(parts, "type "+e.Type)
	}
	if e.Interface != "" {
		target := e.Interface
		if e.Method != "" {
			target += "." + e.Method
		}
		if e.Type != "" {
			parts = append(parts, "as "+target)
		} else {
			parts = append(parts, target)
		}
	} else if e.Method != "" {
		parts = append(parts, "method "+e.Method)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Interface sets the interface name
func (b *Builder) Interface(name string) *Builder {
	b.err.Interface = name
	return b
}

// Type sets the concrete type name
func (b *Builder) Type(name string) *Builder {
	b.err.Type = name
	return b
}

// Method sets the method name
func (b *Builder) Method(name string) *Builder {
	b.err.Method = name
	return b
}

// Pos sets the source position ("file:line:col")
func (b *Builder) Pos(pos string) *Builder {
	b.err.Pos = pos
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// MissingMethod creates an error for a concrete type lacking a method
func MissingMethod(iface, typ, method string) *Error {
	return &Error{
		Phase:     PhaseConformance,
		Kind:      KindMissingMethod,
		Interface: iface,
		Type:      typ,
		Method:    method,
		Detail:    "method not provided by the type or its pointer",
	}
}

// SignatureMismatch creates an error for a method with the wrong signature
func SignatureMismatch(iface, typ, method, have, want string) *Error {
	return &Error{
		Phase:     PhaseConformance,
		Kind:      KindSignatureMismatch,
		Interface: iface,
		Type:      typ,
		Method:    method,
		Detail:    fmt.Sprintf("have %s, want %s", have, want),
	}
}

// NotFound creates an error for a name that does not resolve
func NotFound(phase Phase, pkgPath, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%q not found in package %s", name, pkgPath),
	}
}

// IsKind reports whether any error in err's tree is an *Error of the given
// kind. It descends into causes and into aggregated errors.
func IsKind(err error, kind Kind) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *Error:
		if e.Kind == kind {
			return true
		}
		return IsKind(e.Cause, kind)
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if IsKind(inner, kind) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return IsKind(e.Unwrap(), kind)
	}
	return false
}
