package descriptor

import (
	"bytes"
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ferrors "github.com/funvibe/fatptr/internal/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"
)

// LoadMode is the go/packages mode needed to build descriptors.
const LoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo

// LoadOptions controls Load.
type LoadOptions struct {
	// Dir is the working directory for package loading.
	Dir string

	// Pattern selects the package. Defaults to ".".
	Pattern string

	// Names lists the interfaces to describe. When empty every interface
	// declared in the package that can be described is returned, and
	// interfaces that cannot are skipped silently.
	Names []string

	// Skip names a file (relative to the package directory) whose
	// declarations are hidden while loading. The generator uses it to
	// ignore its own previous output, which may not compile against a
	// changed interface.
	Skip string

	// Overlay is passed to go/packages.
	Overlay map[string][]byte

	// Env is passed to go/packages. Defaults to the process environment.
	Env []string
}

// Source is a type-checked package together with its syntax.
type Source struct {
	Fset  *token.FileSet
	Pkg   *types.Package
	Files []*ast.File

	// Dir is the package directory, if known.
	Dir string
}

// Load loads one package and describes the requested interfaces.
// All resolution and validation failures are reported together.
func Load(ctx context.Context, opts LoadOptions) ([]*Interface, error) {
	src, err := LoadSource(ctx, opts)
	if err != nil {
		return nil, err
	}

	if len(opts.Names) == 0 {
		return describeAll(src), nil
	}

	var (
		out  []*Interface
		errs error
	)
	for _, name := range opts.Names {
		d, err := Describe(src, name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, d)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

// LoadSource loads the package selected by opts.
func LoadSource(ctx context.Context, opts LoadOptions) (*Source, error) {
	pattern := opts.Pattern
	if pattern == "" {
		pattern = "."
	}
	env := opts.Env
	if env == nil {
		env = os.Environ()
	}

	overlay, err := skipOverlay(opts)
	if err != nil {
		return nil, err
	}

	cfg := &packages.Config{
		Context: ctx,
		Mode:    LoadMode,
		Dir:     opts.Dir,
		Env:     env,
		Overlay: overlay,
	}

	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, ferrors.New(ferrors.PhaseLoad, ferrors.KindPackageErrors).
			Detail("loading %s", pattern).Cause(err).Build()
	}
	if len(pkgs) != 1 {
		return nil, ferrors.New(ferrors.PhaseLoad, ferrors.KindInvalidInput).
			Detail("pattern %q matched %d packages, want exactly one", pattern, len(pkgs)).Build()
	}
	pkg := pkgs[0]

	if len(pkg.Errors) > 0 {
		msgs := make([]string, len(pkg.Errors))
		for i, e := range pkg.Errors {
			msgs[i] = e.Error()
		}
		// With the previous output hidden, hand-written code that refers
		// to generated declarations no longer type-checks. Such errors are
		// tolerated; the new output is validated against the whole package.
		if opts.Skip == "" || !onlyTypeErrors(pkg.Errors) || pkg.Types == nil {
			return nil, ferrors.New(ferrors.PhaseLoad, ferrors.KindPackageErrors).
				Detail("package %s:\n  %s", pkg.PkgPath, strings.Join(msgs, "\n  ")).Build()
		}
		log().Debug("type errors tolerated while generating",
			zap.String("pkg", pkg.PkgPath),
			zap.Strings("errors", msgs))
	}

	dir := opts.Dir
	if len(pkg.GoFiles) > 0 {
		dir = filepath.Dir(pkg.GoFiles[0])
	}

	log().Debug("package loaded",
		zap.String("pkg", pkg.PkgPath),
		zap.Int("files", len(pkg.Syntax)))

	return &Source{
		Fset:  pkg.Fset,
		Pkg:   pkg.Types,
		Files: pkg.Syntax,
		Dir:   dir,
	}, nil
}

func onlyTypeErrors(errs []packages.Error) bool {
	for _, e := range errs {
		if e.Kind != packages.TypeError {
			return false
		}
	}
	return true
}

// skipOverlay extends opts.Overlay so that opts.Skip, if it exists, is
// seen as an empty file of the same package.
func skipOverlay(opts LoadOptions) (map[string][]byte, error) {
	if opts.Skip == "" {
		return opts.Overlay, nil
	}
	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, ferrors.New(ferrors.PhaseLoad, ferrors.KindIO).Cause(err).Build()
	}
	path := filepath.Join(dir, opts.Skip)

	f, err := parser.ParseFile(token.NewFileSet(), path, nil, parser.PackageClauseOnly)
	if err != nil {
		if os.IsNotExist(err) {
			return opts.Overlay, nil
		}
		// An unparsable previous output is hidden the same way; the
		// package name is taken from a sibling file instead.
		f = nil
	}

	var pkgName string
	if f != nil {
		pkgName = f.Name.Name
	} else {
		pkgName, err = siblingPackageName(dir, opts.Skip)
		if err != nil {
			return nil, err
		}
	}

	overlay := make(map[string][]byte, len(opts.Overlay)+1)
	for k, v := range opts.Overlay {
		overlay[k] = v
	}
	overlay[path] = []byte("package " + pkgName + "\n")
	return overlay, nil
}

func siblingPackageName(dir, skip string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", ferrors.New(ferrors.PhaseLoad, ferrors.KindIO).Cause(err).Build()
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == skip || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(token.NewFileSet(), filepath.Join(dir, name), nil, parser.PackageClauseOnly)
		if err == nil {
			return f.Name.Name, nil
		}
	}
	return "", ferrors.New(ferrors.PhaseLoad, ferrors.KindInvalidInput).
		Detail("cannot determine package name in %s", dir).Build()
}

// Describe resolves name in src and builds its descriptor.
func Describe(src *Source, name string) (*Interface, error) {
	obj := src.Pkg.Scope().Lookup(name)
	if obj == nil {
		return nil, ferrors.NotFound(ferrors.PhaseDescribe, src.Pkg.Path(), name)
	}
	tn, ok := obj.(*types.TypeName)
	if !ok {
		return nil, ferrors.New(ferrors.PhaseDescribe, ferrors.KindNotFound).
			Interface(name).Pos(src.position(obj.Pos())).
			Detail("%s is a %s, not a type", name, objectKind(obj)).Build()
	}
	return FromNamed(src, tn)
}

// FromNamed builds the descriptor of the interface declared by tn.
func FromNamed(src *Source, tn *types.TypeName) (*Interface, error) {
	name := tn.Name()
	pos := src.position(tn.Pos())
	fail := func(kind ferrors.Kind, format string, args ...any) error {
		return ferrors.New(ferrors.PhaseDescribe, kind).
			Interface(name).Pos(pos).Detail(format, args...).Build()
	}

	named, ok := types.Unalias(tn.Type()).(*types.Named)
	if !ok {
		return nil, fail(ferrors.KindNotInterface, "%s is not a named type", types.TypeString(tn.Type(), nil))
	}
	if tn.IsAlias() {
		return nil, fail(ferrors.KindNotInterface, "%s is an alias; name the interface directly", name)
	}
	if named.TypeParams().Len() > 0 {
		return nil, fail(ferrors.KindNotClosed, "generic interface with %d type parameters", named.TypeParams().Len())
	}
	iface, ok := named.Underlying().(*types.Interface)
	if !ok {
		return nil, fail(ferrors.KindNotInterface, "underlying type is %s", types.TypeString(named.Underlying(), nil))
	}
	if !iface.IsMethodSet() {
		return nil, fail(ferrors.KindNonMethodMember, "interface has type terms and can only be used as a constraint")
	}
	if iface.NumMethods() == 0 {
		return nil, fail(ferrors.KindNoMethods, "interface declares no methods")
	}

	fields := methodFields(src.Files)
	qual := types.RelativeTo(src.Pkg)

	d := &Interface{
		Name:    name,
		PkgPath: src.Pkg.Path(),
		PkgName: src.Pkg.Name(),
		Dir:     src.Dir,
		Pkg:     src.Pkg,
		Named:   named,
	}
	if src.Fset != nil {
		d.Pos = src.Fset.Position(tn.Pos())
	}

	seen := make(map[string]bool)
	var errs error
	for _, fn := range orderedMethods(iface) {
		if seen[fn.Name()] {
			errs = multierr.Append(errs, fail(ferrors.KindDuplicateMethod, "method %s declared twice", fn.Name()))
			continue
		}
		seen[fn.Name()] = true

		m := newMethod(fn, qual)
		if bad := invalidParam(m); bad != "" {
			errs = multierr.Append(errs, ferrors.New(ferrors.PhaseDescribe, ferrors.KindTypeCheck).
				Interface(name).Method(m.Name).Pos(src.position(fn.Pos())).
				Detail("%s has an invalid type", bad).Build())
			continue
		}
		m.Promoted = !isExplicit(iface, fn)
		if field, ok := fields[fn.Pos()]; ok {
			q, err := parseDirectives(src, field)
			if err != nil {
				errs = multierr.Append(errs, err)
			}
			m.Qualifiers = q
			if field.Doc != nil {
				m.Doc = strings.TrimSpace(field.Doc.Text())
			}
		}
		d.Methods = append(d.Methods, m)
	}
	if errs != nil {
		return nil, errs
	}

	log().Debug("interface described",
		zap.String("interface", d.QualifiedName()),
		zap.Int("methods", len(d.Methods)))

	return d, nil
}

// describeAll returns every describable interface in src, in declaration
// order.
func describeAll(src *Source) []*Interface {
	scope := src.Pkg.Scope()
	var out []*Interface
	for _, name := range scope.Names() {
		tn, ok := scope.Lookup(name).(*types.TypeName)
		if !ok || tn.IsAlias() {
			continue
		}
		if _, ok := tn.Type().Underlying().(*types.Interface); !ok {
			continue
		}
		d, err := FromNamed(src, tn)
		if err != nil {
			log().Debug("interface skipped", zap.String("name", name), zap.Error(err))
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Named.Obj().Pos() < out[j].Named.Obj().Pos()
	})
	return out
}

// orderedMethods returns the interface's methods with explicit ones first,
// in source order, followed by the promoted ones.
func orderedMethods(iface *types.Interface) []*types.Func {
	explicit := make([]*types.Func, iface.NumExplicitMethods())
	for i := range explicit {
		explicit[i] = iface.ExplicitMethod(i)
	}
	sort.SliceStable(explicit, func(i, j int) bool {
		return explicit[i].Pos() < explicit[j].Pos()
	})

	out := explicit
	for i := 0; i < iface.NumMethods(); i++ {
		fn := iface.Method(i)
		if !isExplicit(iface, fn) {
			out = append(out, fn)
		}
	}
	return out
}

func isExplicit(iface *types.Interface, fn *types.Func) bool {
	for i := 0; i < iface.NumExplicitMethods(); i++ {
		if iface.ExplicitMethod(i) == fn {
			return true
		}
	}
	return false
}

func newMethod(fn *types.Func, qual types.Qualifier) *Method {
	sig := fn.Type().(*types.Signature)
	m := &Method{
		Name:      fn.Name(),
		Variadic:  sig.Variadic(),
		Signature: signatureString(sig, qual),
		Func:      fn,
	}
	m.Params = params(sig.Params(), qual)
	m.Results = params(sig.Results(), qual)
	return m
}

func params(tuple *types.Tuple, qual types.Qualifier) []Param {
	if tuple.Len() == 0 {
		return nil
	}
	out := make([]Param, tuple.Len())
	for i := 0; i < tuple.Len(); i++ {
		v := tuple.At(i)
		out[i] = Param{
			Name:       v.Name(),
			Type:       v.Type(),
			TypeString: types.TypeString(v.Type(), qual),
		}
	}
	return out
}

// invalidParam names the first parameter or result whose type failed to
// type-check, or returns "".
func invalidParam(m *Method) string {
	for _, list := range [][]Param{m.Params, m.Results} {
		for i, p := range list {
			if strings.Contains(p.TypeString, "invalid type") {
				if p.Name != "" {
					return p.Name
				}
				return fmt.Sprintf("#%d", i)
			}
		}
	}
	return ""
}

func signatureString(sig *types.Signature, qual types.Qualifier) string {
	var b bytes.Buffer
	types.WriteSignature(&b, sig, qual)
	return b.String()
}

// methodFields indexes every interface method field in files by the
// position of its name, which is also the position of the *types.Func.
func methodFields(files []*ast.File) map[token.Pos]*ast.Field {
	out := make(map[token.Pos]*ast.Field)
	for _, f := range files {
		ast.Inspect(f, func(n ast.Node) bool {
			it, ok := n.(*ast.InterfaceType)
			if !ok || it.Methods == nil {
				return true
			}
			for _, field := range it.Methods.List {
				for _, name := range field.Names {
					out[name.Pos()] = field
				}
			}
			return true
		})
	}
	return out
}

func (s *Source) position(pos token.Pos) string {
	if s.Fset == nil || !pos.IsValid() {
		return ""
	}
	return s.Fset.Position(pos).String()
}

func objectKind(obj types.Object) string {
	switch obj.(type) {
	case *types.Func:
		return "func"
	case *types.Var:
		return "var"
	case *types.Const:
		return "const"
	default:
		return fmt.Sprintf("%T", obj)
	}
}
