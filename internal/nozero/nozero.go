// Package nozero defines an Analyzer that reports zero values of types
// marked with fatptr.NoZero.
package nozero

import (
	"go/ast"
	"go/constant"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

const Doc = `report zero values of types marked with fatptr.NoZero

Generated fatptr wrappers carry a blank fatptr.NoZero field: their zero
value has no dispatch table and panics on the first call. Only the
generated constructors produce valid values. This analyzer reports, outside
generated files:

	T{}              composite literals of a marked type
	var x T          declarations without an initial value
	new(T)           allocation of a zero value
	make([]T, n)     slices with non-zero length

Structs with a field of a marked type and non-empty arrays of a marked type
count as marked. Their composite literals are reported only when they leave
a marked field or element unset.`

// MarkerPath is the import path of the package declaring NoZero.
const MarkerPath = "github.com/funvibe/fatptr/pkg/fatptr"

var Analyzer = &analysis.Analyzer{
	Name:     "fatptrzero",
	Doc:      Doc,
	URL:      "https://pkg.go.dev/github.com/funvibe/fatptr/internal/nozero",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	generated := make(map[*ast.File]bool)
	for _, f := range pass.Files {
		if ast.IsGenerated(f) {
			generated[f] = true
		}
	}

	nodeFilter := []ast.Node{
		(*ast.File)(nil),
		(*ast.CompositeLit)(nil),
		(*ast.ValueSpec)(nil),
		(*ast.CallExpr)(nil),
	}
	skip := false
	inspect.Preorder(nodeFilter, func(n ast.Node) {
		if f, ok := n.(*ast.File); ok {
			skip = generated[f]
			return
		}
		if skip {
			return
		}
		switch n := n.(type) {
		case *ast.CompositeLit:
			checkLit(pass, n)
		case *ast.ValueSpec:
			if len(n.Values) > 0 {
				return
			}
			for _, name := range n.Names {
				obj := pass.TypesInfo.Defs[name]
				if obj != nil && marked(obj.Type()) {
					pass.ReportRangef(name, "%s is declared as the zero %s; initialise it with a generated constructor", name.Name, typeName(pass, obj.Type()))
				}
			}
		case *ast.CallExpr:
			checkCall(pass, n)
		}
	})
	return nil, nil
}

func checkCall(pass *analysis.Pass, call *ast.CallExpr) {
	id, ok := ast.Unparen(call.Fun).(*ast.Ident)
	if !ok {
		return
	}
	b, ok := pass.TypesInfo.Uses[id].(*types.Builtin)
	if !ok || len(call.Args) == 0 {
		return
	}
	switch b.Name() {
	case "new":
		if t := pass.TypesInfo.TypeOf(call.Args[0]); marked(t) {
			pass.ReportRangef(call, "new(%s) creates an invalid value; use a generated constructor", typeName(pass, t))
		}
	case "make":
		if len(call.Args) < 2 {
			return
		}
		slice, ok := types.Unalias(pass.TypesInfo.TypeOf(call.Args[0])).Underlying().(*types.Slice)
		if !ok || !marked(slice.Elem()) {
			return
		}
		if tv, ok := pass.TypesInfo.Types[call.Args[1]]; ok && tv.Value != nil {
			if n, exact := constant.Int64Val(constant.ToInt(tv.Value)); exact && n == 0 {
				return
			}
		}
		pass.ReportRangef(call, "make fills the slice with invalid zero %s values; use length 0 and append", typeName(pass, slice.Elem()))
	}
}

func checkLit(pass *analysis.Pass, lit *ast.CompositeLit) {
	t := pass.TypesInfo.TypeOf(lit)
	if !marked(t) {
		return
	}
	switch u := types.Unalias(t).Underlying().(type) {
	case *types.Struct:
		if hasMarker(u) {
			pass.ReportRangef(lit, "composite literal of %s creates an invalid value; use a generated constructor", typeName(pass, t))
			return
		}
		set := setFields(lit, u)
		for i := 0; i < u.NumFields(); i++ {
			f := u.Field(i)
			if !set[f.Name()] && marked(f.Type()) {
				pass.ReportRangef(lit, "composite literal of %s leaves field %s as an invalid zero %s; initialise it with a generated constructor",
					typeName(pass, t), f.Name(), typeName(pass, f.Type()))
				return
			}
		}
	case *types.Array:
		if n := setElems(pass, lit); n < u.Len() {
			pass.ReportRangef(lit, "composite literal of %s sets %d of %d elements; the rest are invalid zero %s values",
				typeName(pass, t), n, u.Len(), typeName(pass, u.Elem()))
		}
	}
}

// setFields returns the names of the struct fields lit initialises.
// An unkeyed literal with elements sets every field.
func setFields(lit *ast.CompositeLit, st *types.Struct) map[string]bool {
	set := make(map[string]bool)
	for i, elt := range lit.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			if i < st.NumFields() {
				set[st.Field(i).Name()] = true
			}
			continue
		}
		if id, ok := kv.Key.(*ast.Ident); ok {
			set[id.Name] = true
		}
	}
	return set
}

// setElems counts the distinct indices an array literal initialises.
func setElems(pass *analysis.Pass, lit *ast.CompositeLit) int64 {
	set := make(map[int64]bool)
	var idx int64
	for _, elt := range lit.Elts {
		if kv, ok := elt.(*ast.KeyValueExpr); ok {
			if tv, ok := pass.TypesInfo.Types[kv.Key]; ok && tv.Value != nil {
				if n, exact := constant.Int64Val(constant.ToInt(tv.Value)); exact {
					idx = n
				}
			}
		}
		set[idx] = true
		idx++
	}
	return int64(len(set))
}

// marked reports whether the zero value of t holds the zero value of a
// struct with a fatptr.NoZero field: t is such a struct, a struct with a
// marked field, or a non-empty array of a marked type.
func marked(t types.Type) bool {
	return markedIn(t, make(map[types.Type]bool))
}

func markedIn(t types.Type, seen map[types.Type]bool) bool {
	if t == nil {
		return false
	}
	t = types.Unalias(t)
	if seen[t] {
		return false
	}
	seen[t] = true

	switch u := t.Underlying().(type) {
	case *types.Array:
		return u.Len() > 0 && markedIn(u.Elem(), seen)
	case *types.Struct:
		if hasMarker(u) {
			return true
		}
		for i := 0; i < u.NumFields(); i++ {
			if markedIn(u.Field(i).Type(), seen) {
				return true
			}
		}
	}
	return false
}

func hasMarker(st *types.Struct) bool {
	for i := 0; i < st.NumFields(); i++ {
		if isMarker(st.Field(i).Type()) {
			return true
		}
	}
	return false
}

func isMarker(t types.Type) bool {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Name() == "NoZero" && obj.Pkg() != nil && obj.Pkg().Path() == MarkerPath
}

func typeName(pass *analysis.Pass, t types.Type) string {
	return types.TypeString(t, types.RelativeTo(pass.Pkg))
}
