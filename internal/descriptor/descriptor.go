// Package descriptor derives interface descriptors from Go source.
//
// A descriptor is the static, ordered enumeration of an interface's
// methods: name, parameter and result types, variadic flag and the call
// qualifiers declared with //fatptr: directives. Descriptors are built
// from go/types information and are immutable once returned.
package descriptor

import (
	"fmt"
	"go/token"
	"go/types"
	"strings"

	"github.com/funvibe/fatptr/pkg/fatptr"
)

// Interface describes one interface type.
type Interface struct {
	// Name is the declared type name.
	Name string

	// PkgPath is the import path of the declaring package.
	PkgPath string

	// PkgName is the package name.
	PkgName string

	// Dir is the package directory. Empty for in-memory packages.
	Dir string

	// Pkg is the type-checked declaring package.
	Pkg *types.Package

	// Named is the interface's named type.
	Named *types.Named

	// Methods are ordered: explicitly declared methods in source order,
	// then methods promoted from embedded interfaces.
	Methods []*Method

	// Pos is the declaration position.
	Pos token.Position
}

// Method describes one interface method.
type Method struct {
	Name     string
	Params   []Param
	Results  []Param
	Variadic bool

	// Signature is the signature without the func keyword, qualified
	// relative to the declaring package, e.g. "(w io.Writer) (int, error)".
	Signature string

	// Qualifiers collects the method's //fatptr: directives.
	Qualifiers fatptr.Qualifier

	// Doc is the method's doc comment text with directives removed.
	Doc string

	// Promoted is set for methods inherited from an embedded interface.
	Promoted bool

	Func *types.Func
}

// Param is a parameter or result.
type Param struct {
	// Name is the declared name, possibly empty or "_".
	Name string

	Type types.Type

	// TypeString is Type qualified relative to the declaring package.
	// For the variadic parameter it is the slice type.
	TypeString string
}

// QualifiedName returns "pkgname.Name".
func (d *Interface) QualifiedName() string {
	return d.PkgName + "." + d.Name
}

// Lookup returns the method with the given name.
func (d *Interface) Lookup(name string) (*Method, bool) {
	for _, m := range d.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Runtime returns the runtime handle methods in descriptor order.
func (d *Interface) Runtime() []fatptr.Method {
	out := make([]fatptr.Method, len(d.Methods))
	for i, m := range d.Methods {
		out[i] = fatptr.Method{Name: m.Name, Signature: "func" + m.Signature, Qualifiers: m.Qualifiers}
	}
	return out
}

// Fingerprint renders the descriptor in a stable textual form. Two
// descriptors with the same fingerprint produce the same generated code.
func (d *Interface) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "interface %s (%s)\n", d.QualifiedName(), d.PkgPath)
	for _, m := range d.Methods {
		b.WriteString("  ")
		b.WriteString(m.Name)
		b.WriteString(m.Signature)
		if m.Qualifiers != 0 {
			b.WriteString(" [")
			b.WriteString(m.Qualifiers.String())
			b.WriteByte(']')
		}
		if m.Promoted {
			b.WriteString(" (promoted)")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (d *Interface) String() string {
	return d.QualifiedName()
}
