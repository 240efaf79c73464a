// Package codegen renders the type-erasure code for configured interfaces.
//
// For each interface the generated file declares the runtime handle, the
// dispatch table shape, the interned table constructor and the wrapper
// types selected by the interface's policy. The table constructor's type
// constraint, interface{ *T; I }, is the conformance gate: instantiating it
// with a type that does not provide I's methods is a compile error.
package codegen

import (
	"bytes"
	"context"
	"fmt"
	"go/format"
	"go/types"
	"strings"
	"text/template"

	"github.com/funvibe/fatptr/internal/config"
	"github.com/funvibe/fatptr/internal/descriptor"
	ferrors "github.com/funvibe/fatptr/internal/errors"
	"github.com/funvibe/fatptr/pkg/fatptr"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"
)

// RuntimeImportPath is the import path of the runtime package used by
// generated code.
const RuntimeImportPath = "github.com/funvibe/fatptr/pkg/fatptr"

// Version is bumped when the generated code format changes.
// This ensures stale cache stamps are regenerated.
const Version = "v1"

// wrapperMethods are declared on every wrapper in addition to the
// interface's methods; wrapperFields are the wrappers' field names.
var (
	wrapperMethods = []string{"Table", "SameType", "Ref"}
	wrapperFields  = []string{"data", "table", "id"}
)

var (
	fileTmpl    = template.Must(template.New("file").Parse(fileTemplate))
	sectionTmpl = template.Must(template.New("section").Parse(sectionTemplate))
)

// GeneratedFile is a rendered Go source file.
type GeneratedFile struct {
	// Filename is the file name within the package directory.
	Filename string

	// Content is the formatted Go source code.
	Content string
}

// Unit pairs an interface's configuration with its descriptor.
type Unit struct {
	Spec  *config.InterfaceSpec
	Iface *descriptor.Interface
}

// Generator produces the generated file for one package.
type Generator struct {
	output string
}

// NewGenerator creates a generator writing to the given file name.
func NewGenerator(output string) *Generator {
	if output == "" {
		output = config.DefaultOutput
	}
	return &Generator{output: output}
}

// Generate renders the file for units, which must all come from the same
// package. Sections are rendered concurrently and emitted in unit order.
func (g *Generator) Generate(ctx context.Context, units []Unit) (*GeneratedFile, error) {
	if err := checkUnits(units); err != nil {
		return nil, err
	}
	pkg := units[0].Iface

	imps := newImportSet(pkg.PkgPath)
	for _, u := range units {
		for _, m := range u.Iface.Methods {
			for _, p := range m.Params {
				imps.collect(p.Type)
			}
			for _, p := range m.Results {
				imps.collect(p.Type)
			}
		}
	}

	sections := make([]string, len(units))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, u := range units {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			s, err := renderSection(u, imps.qualifier)
			if err != nil {
				return err
			}
			sections[i] = s
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err := fileTmpl.Execute(&buf, struct {
		Package  string
		Imports  []importEntry
		Sections []string
	}{
		Package:  pkg.PkgName,
		Imports:  imps.entries(),
		Sections: sections,
	})
	if err != nil {
		return nil, ferrors.New(ferrors.PhaseGenerate, ferrors.KindTemplate).
			Detail("executing file template").Cause(err).Build()
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, ferrors.New(ferrors.PhaseGenerate, ferrors.KindTemplate).
			Detail("generated source does not parse").Cause(err).Build()
	}
	src, err = imports.Process(g.output, src, &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, ferrors.New(ferrors.PhaseGenerate, ferrors.KindTemplate).
			Detail("organising imports").Cause(err).Build()
	}

	log().Debug("file generated",
		zap.String("pkg", pkg.PkgPath),
		zap.String("file", g.output),
		zap.Int("interfaces", len(units)))

	return &GeneratedFile{Filename: g.output, Content: string(src)}, nil
}

// checkUnits rejects inputs the templates cannot render.
func checkUnits(units []Unit) error {
	if len(units) == 0 {
		return ferrors.New(ferrors.PhaseGenerate, ferrors.KindInvalidInput).
			Detail("no interfaces to generate").Build()
	}
	pkgPath := units[0].Iface.PkgPath

	var errs error
	for _, u := range units {
		fail := func(format string, args ...any) {
			errs = multierr.Append(errs, ferrors.New(ferrors.PhaseGenerate, ferrors.KindInvalidInput).
				Interface(u.Iface.Name).Detail(format, args...).Build())
		}
		if u.Iface.PkgPath != pkgPath {
			fail("declared in %s, expected %s", u.Iface.PkgPath, pkgPath)
		}
		if u.Spec.Name != u.Iface.Name {
			fail("configuration is for %s", u.Spec.Name)
		}
		if err := u.Spec.Policy().Validate(); err != nil {
			fail("%v", err)
		}
		for _, m := range u.Iface.Methods {
			for _, reserved := range append(wrapperMethods, wrapperFields...) {
				if m.Name == reserved {
					fail("method %s collides with a generated wrapper member", m.Name)
				}
			}
		}
	}
	return errs
}

// sectionData feeds sectionTemplate.
type sectionData struct {
	Name     string
	FullName string
	Handle   string
	Table    string
	Wrapper  string
	Inline   string

	// T and PT name the type parameters of generic declarations.
	T  string
	PT string

	Owned    bool
	Borrowed bool
	Indirect bool
	Embedded bool

	Methods []methodData
	Checks  []string
}

// CtorList names the constructors emitted for a wrapper type.
func (d sectionData) CtorList(wrapper string) string {
	var ctors []string
	if d.Owned {
		ctors = append(ctors, "New"+wrapper)
	}
	if d.Borrowed {
		ctors = append(ctors, "Borrow"+wrapper)
	}
	return strings.Join(ctors, " or ")
}

type methodData struct {
	Name        string
	RuntimeSig  string
	Qualifiers  string // Go expression, empty when none
	Doc         string // comment block ending in a newline
	Params      string // "by int, args ...any"
	SlotParams  string // ", by int, args ...any"
	Results     string // "", " int" or " (int, error)"
	CallArgs    string // "by, args..."
	ForwardArgs string // ", by, args..."
	HasResults  bool
}

func renderSection(u Unit, qual types.Qualifier) (string, error) {
	p := u.Spec.Policy()
	tp, ptp := typeParamNames(u.Iface.Pkg)
	reserved := map[string]bool{"data": true, "r": true, tp: true, ptp: true}
	d := sectionData{
		Name:     u.Iface.Name,
		FullName: u.Iface.PkgPath + "." + u.Iface.Name,
		Handle:   u.Spec.HandleName(),
		Table:    u.Spec.TableName(),
		Wrapper:  u.Spec.Wrapper,
		Inline:   u.Spec.InlineName(),
		T:        tp,
		PT:       ptp,
		Owned:    p.HasStorage(fatptr.StorageOwned),
		Borrowed: p.HasStorage(fatptr.StorageBorrowed),
		Indirect: p.HasDispatch(fatptr.DispatchIndirect),
		Embedded: p.HasDispatch(fatptr.DispatchEmbedded),
		Checks:   u.Spec.Check,
	}
	for _, m := range u.Iface.Methods {
		d.Methods = append(d.Methods, newMethodData(m, qual, reserved))
	}

	var buf bytes.Buffer
	if err := sectionTmpl.Execute(&buf, d); err != nil {
		return "", ferrors.New(ferrors.PhaseGenerate, ferrors.KindTemplate).
			Interface(u.Iface.Name).Cause(err).Build()
	}
	return buf.String(), nil
}

func newMethodData(m *descriptor.Method, qual types.Qualifier, reserved map[string]bool) methodData {
	names := paramNames(m.Params, reserved)

	var params, args []string
	for i, p := range m.Params {
		typ := types.TypeString(p.Type, qual)
		arg := names[i]
		if m.Variadic && i == len(m.Params)-1 {
			typ = "..." + types.TypeString(p.Type.(*types.Slice).Elem(), qual)
			arg += "..."
		}
		params = append(params, names[i]+" "+typ)
		args = append(args, arg)
	}

	var results []string
	for _, r := range m.Results {
		results = append(results, types.TypeString(r.Type, qual))
	}

	md := methodData{
		Name:       m.Name,
		RuntimeSig: "func" + m.Signature,
		Qualifiers: qualifierExpr(m.Qualifiers),
		Doc:        methodDoc(m),
		Params:     strings.Join(params, ", "),
		CallArgs:   strings.Join(args, ", "),
		HasResults: len(results) > 0,
	}
	if md.Params != "" {
		md.SlotParams = ", " + md.Params
		md.ForwardArgs = ", " + md.CallArgs
	}
	switch len(results) {
	case 0:
	case 1:
		md.Results = " " + results[0]
	default:
		md.Results = " (" + strings.Join(results, ", ") + ")"
	}
	return md
}

// typeParamNames picks names for the generic type parameters that do not
// hide a package-level declaration, which method signatures may mention.
func typeParamNames(pkg *types.Package) (string, string) {
	free := func(base string) string {
		name := base
		for n := 1; pkg != nil && pkg.Scope().Lookup(name) != nil; n++ {
			name = fmt.Sprintf("%s%d", base, n)
		}
		return name
	}
	return free("T"), free("PT")
}

// paramNames returns usable parameter names: the declared ones where
// possible, otherwise pN. reserved holds identifiers the generated bodies
// refer to, which a parameter must not shadow.
func paramNames(params []descriptor.Param, reserved map[string]bool) []string {
	used := make(map[string]bool)
	for _, p := range params {
		used[p.Name] = true
	}
	names := make([]string, len(params))
	for i, p := range params {
		name := p.Name
		if name == "" || name == "_" || reserved[name] {
			name = fmt.Sprintf("p%d", i)
			for used[name] || reserved[name] {
				name += "_"
			}
			used[name] = true
		}
		names[i] = name
	}
	return names
}

var qualifierIdents = map[fatptr.Qualifier]string{
	fatptr.QualConst:   "fatptr.QualConst",
	fatptr.QualPure:    "fatptr.QualPure",
	fatptr.QualNoAlloc: "fatptr.QualNoAlloc",
}

func qualifierExpr(q fatptr.Qualifier) string {
	var parts []string
	for _, bit := range []fatptr.Qualifier{fatptr.QualConst, fatptr.QualPure, fatptr.QualNoAlloc} {
		if q.Has(bit) {
			parts = append(parts, qualifierIdents[bit])
		}
	}
	return strings.Join(parts, " | ")
}

func methodDoc(m *descriptor.Method) string {
	var b strings.Builder
	if m.Doc != "" {
		for _, line := range strings.Split(m.Doc, "\n") {
			b.WriteString(strings.TrimRight("// "+line, " "))
			b.WriteByte('\n')
		}
	} else {
		fmt.Fprintf(&b, "// %s forwards to the wrapped value.\n", m.Name)
	}
	if m.Qualifiers != 0 {
		fmt.Fprintf(&b, "//\n// Qualifiers: %s.\n", strings.Join(m.Qualifiers.Names(), ", "))
	}
	return b.String()
}
