// Package conformance reports how concrete types fail to provide an
// interface's methods.
//
// Generated code already rejects non-conforming types at compile time
// through the table constructor's type constraint. This package runs the
// same structural check at generation time, over every configured type at
// once, so that the diagnostics name each missing or mismatched method.
package conformance

import (
	"go/types"

	"github.com/funvibe/fatptr/internal/descriptor"
	ferrors "github.com/funvibe/fatptr/internal/errors"
	"go.uber.org/multierr"
)

// Check verifies that each named type, declared in the interface's
// package, conforms to the interface through its pointer method set.
// Every failure is reported; the result is nil when all types conform.
func Check(iface *descriptor.Interface, typeNames ...string) error {
	var errs error
	for _, name := range typeNames {
		errs = multierr.Append(errs, checkName(iface, name))
	}
	return errs
}

func checkName(iface *descriptor.Interface, name string) error {
	obj := iface.Pkg.Scope().Lookup(name)
	if obj == nil {
		return ferrors.New(ferrors.PhaseConformance, ferrors.KindNotFound).
			Interface(iface.Name).Type(name).
			Detail("type not declared in package %s", iface.PkgPath).Build()
	}
	tn, ok := obj.(*types.TypeName)
	if !ok {
		return ferrors.New(ferrors.PhaseConformance, ferrors.KindNotFound).
			Interface(iface.Name).Type(name).
			Detail("%s is not a type", name).Build()
	}
	if named, ok := types.Unalias(tn.Type()).(*types.Named); ok && named.TypeParams().Len() > 0 {
		return ferrors.New(ferrors.PhaseConformance, ferrors.KindNotClosed).
			Interface(iface.Name).Type(name).
			Detail("generic type must be instantiated").Build()
	}
	return CheckType(iface, tn.Type(), name)
}

// CheckType verifies that T conforms to the interface, where T is any
// non-interface type. label names T in diagnostics.
func CheckType(iface *descriptor.Interface, T types.Type, label string) error {
	if types.IsInterface(T) {
		return ferrors.New(ferrors.PhaseConformance, ferrors.KindInvalidInput).
			Interface(iface.Name).Type(label).
			Detail("interface types cannot be wrapped; wrap a concrete type").Build()
	}

	ptr := types.NewPointer(T)
	var errs error
	for _, m := range iface.Methods {
		obj, _, _ := types.LookupFieldOrMethod(ptr, true, iface.Pkg, m.Name)
		switch have := obj.(type) {
		case nil:
			errs = multierr.Append(errs, ferrors.MissingMethod(iface.Name, label, m.Name))
		case *types.Func:
			if !types.Identical(have.Type(), m.Func.Type()) {
				errs = multierr.Append(errs, ferrors.SignatureMismatch(iface.Name, label, m.Name,
					signature(have, iface.Pkg), "func"+m.Signature))
			}
		default:
			errs = multierr.Append(errs, ferrors.New(ferrors.PhaseConformance, ferrors.KindMissingMethod).
				Interface(iface.Name).Type(label).Method(m.Name).
				Detail("%s is a field, not a method", m.Name).Build())
		}
	}
	return errs
}

// Conforms reports whether T conforms to the interface.
func Conforms(iface *descriptor.Interface, T types.Type) bool {
	return CheckType(iface, T, types.TypeString(T, nil)) == nil
}

func signature(fn *types.Func, pkg *types.Package) string {
	return types.TypeString(fn.Type(), types.RelativeTo(pkg))
}
