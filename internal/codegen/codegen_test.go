package codegen

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/funvibe/fatptr/internal/config"
	"github.com/funvibe/fatptr/internal/descriptor"
	ferrors "github.com/funvibe/fatptr/internal/errors"
	"github.com/funvibe/fatptr/pkg/fatptr"
)

// units type-checks src in memory and pairs each named interface with a
// spec built from yaml.
func units(t *testing.T, src, yaml string) []Unit {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "src.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	conf := types.Config{Importer: importerFunc(importStd)}
	pkg, err := conf.Check("example.com/shapes", fset, []*ast.File{f}, nil)
	if err != nil {
		t.Fatalf("type-check: %v", err)
	}
	cfg, err := config.ParseConfig([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	source := &descriptor.Source{Fset: fset, Pkg: pkg, Files: []*ast.File{f}}

	var out []Unit
	for i := range cfg.Interfaces {
		spec := &cfg.Interfaces[i]
		d, err := descriptor.Describe(source, spec.Name)
		if err != nil {
			t.Fatalf("describe %s: %v", spec.Name, err)
		}
		out = append(out, Unit{Spec: spec, Iface: d})
	}
	return out
}

type importerFunc func(path string) (*types.Package, error)

func (f importerFunc) Import(path string) (*types.Package, error) { return f(path) }

// importStd fakes the few standard packages the test sources use.
func importStd(path string) (*types.Package, error) {
	name := path[strings.LastIndex(path, "/")+1:]
	pkg := types.NewPackage(path, name)
	switch path {
	case "io":
		writer := types.NewTypeName(token.NoPos, pkg, "Writer", nil)
		iface := types.NewInterfaceType(nil, nil)
		iface.Complete()
		types.NewNamed(writer, iface, nil)
		pkg.Scope().Insert(writer)
	case "math/rand", "crypto/rand":
		src := types.NewTypeName(token.NoPos, pkg, "Source", nil)
		types.NewNamed(src, types.NewStruct(nil, nil), nil)
		pkg.Scope().Insert(src)
	}
	pkg.MarkComplete()
	return pkg, nil
}

func generate(t *testing.T, src, yaml string) string {
	t.Helper()
	file, err := NewGenerator("").Generate(context.Background(), units(t, src, yaml))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if file.Filename != config.DefaultOutput {
		t.Errorf("Filename = %q", file.Filename)
	}
	return file.Content
}

func assertContains(t *testing.T, content string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(content, want) {
			t.Errorf("generated code missing %q", want)
		}
	}
}

const counterSrc = `package shapes

type Counter interface {
	// Inc adds by to the count.
	//fatptr:noalloc
	Inc(by int)
	Add(values ...int) int
	//fatptr:const,pure
	Value() int
}
`

func TestGenerate_Basic(t *testing.T) {
	got := generate(t, counterSrc, "interfaces:\n  - name: Counter\n")

	assertContains(t, got,
		"// Code generated by fatptr. DO NOT EDIT.",
		"package shapes",
		`"unsafe"`,
		`"github.com/funvibe/fatptr/pkg/fatptr"`,
		`var counterInterface = fatptr.MustInterface("example.com/shapes.Counter",`,
		`fatptr.Method{Name: "Inc", Signature: "func(by int)", Qualifiers: fatptr.QualNoAlloc},`,
		`fatptr.Method{Name: "Value", Signature: "func() int", Qualifiers: fatptr.QualConst | fatptr.QualPure},`,
		"type CounterTable struct",
		"func(data unsafe.Pointer, by int)",
		"func(data unsafe.Pointer, values ...int) int",
		"func CounterTableFor[T any, PT interface {",
		"return fatptr.Intern[T](counterInterface, func() *CounterTable {",
		"PT((*T)(data)).Inc(by)",
		"return PT((*T)(data)).Add(values...)",
		"type CounterRef struct",
		"_     fatptr.NoZero",
		"func NewCounterRef[T any, PT interface {",
		"return CounterRef{data: fatptr.Own(v), table: CounterTableFor[T, PT]()}",
		"// Inc adds by to the count.\n//\n// Qualifiers: noalloc.\nfunc (r CounterRef) Inc(by int) {\n\tr.table.Inc(r.data, by)\n}",
		"func (r CounterRef) Add(values ...int) int {\n\treturn r.table.Add(r.data, values...)\n}",
		"// Value forwards to the wrapped value.",
		"func (r CounterRef) SameType(other CounterRef) bool { return r.table == other.table }",
		"var _ Counter = CounterRef{}",
	)

	for _, absent := range []string{"BorrowCounterRef", "CounterInline"} {
		if strings.Contains(got, absent) {
			t.Errorf("default policy should not emit %s", absent)
		}
	}
}

func TestGenerate_Policies(t *testing.T) {
	got := generate(t, counterSrc, `
interfaces:
  - name: Counter
    wrapper: AnyCounter
    storage: [owned, borrowed]
    dispatch: [indirect, embedded]
`)
	assertContains(t, got,
		"type AnyCounter struct",
		"func NewAnyCounter[",
		"func BorrowAnyCounter[",
		"return AnyCounter{data: fatptr.Borrow(p), table: CounterTableFor[T, PT]()}",
		"build one with NewAnyCounter or BorrowAnyCounter.",
		"type CounterInline struct",
		"table CounterTable",
		"id    *CounterTable",
		"func NewCounterInline[",
		"func BorrowCounterInline[",
		"return CounterInline{data: fatptr.Own(v), table: *tab, id: tab}",
		"func (r CounterInline) Inc(by int) {\n\tr.table.Inc(r.data, by)\n}",
		"func (r CounterInline) Table() *CounterTable { return r.id }",
		"func (r CounterInline) Ref() AnyCounter { return AnyCounter{data: r.data, table: r.id} }",
		"var _ Counter = CounterInline{}",
	)
}

func TestGenerate_EmbeddedOnly(t *testing.T) {
	got := generate(t, counterSrc, "interfaces:\n  - name: Counter\n    dispatch: [embedded]\n")
	assertContains(t, got, "type CounterInline struct")
	if strings.Contains(got, "CounterRef") {
		t.Error("indirect wrapper should not be emitted")
	}
}

func TestGenerate_Checks(t *testing.T) {
	src := counterSrc + `
type Tally struct{ n int }

func (t *Tally) Inc(by int)            { t.n += by }
func (t *Tally) Add(values ...int) int { return t.n }
func (t *Tally) Value() int            { return t.n }
`
	got := generate(t, src, "interfaces:\n  - name: Counter\n    check: [Tally]\n")
	assertContains(t, got, "var _ = CounterTableFor[Tally, *Tally]")
}

func TestGenerate_ParamNames(t *testing.T) {
	src := `package shapes

type Sink interface {
	Put(int, string)
	Drop(_ int, data []byte, r rune)
	Swap(T, PT bool) (bool, error)
}
`
	got := generate(t, src, "interfaces:\n  - name: Sink\n")
	assertContains(t, got,
		"func(data unsafe.Pointer, p0 int, p1 string)",
		"func(data unsafe.Pointer, p0 int, p1 []byte, p2 rune)",
		"func(data unsafe.Pointer, p0 bool, p1 bool) (bool, error)",
		"func (r SinkRef) Put(p0 int, p1 string) {\n\tr.table.Put(r.data, p0, p1)\n}",
		"return PT((*T)(data)).Swap(p0, p1)",
	)
}

func TestGenerate_TypeParamNamesAvoidPackageTypes(t *testing.T) {
	src := `package shapes

type T struct{}

type Store interface {
	Put(v T)
}
`
	got := generate(t, src, "interfaces:\n  - name: Store\n")
	assertContains(t, got,
		"func StoreTableFor[T1 any, PT interface {",
		"func(data unsafe.Pointer, v T)",
		"PT((*T1)(data)).Put(v)",
		"func NewStoreRef[T1 any, PT interface {",
		"(v T1) StoreRef {",
	)
}

func TestGenerate_Imports(t *testing.T) {
	src := `package shapes

import (
	crand "crypto/rand"
	"io"
	"math/rand"
)

type Seeder interface {
	Seed(w io.Writer, a *rand.Source, b crand.Source)
}
`
	got := generate(t, src, "interfaces:\n  - name: Seeder\n")
	assertContains(t, got,
		`rand2 "crypto/rand"`,
		`"math/rand"`,
		`"io"`,
		"func(data unsafe.Pointer, w io.Writer, a *rand.Source, b rand2.Source)",
	)
}

func TestGenerate_Deterministic(t *testing.T) {
	src := counterSrc + `
type Describer interface{ Describe() string }

type Namer interface{ Name() string }
`
	yaml := "interfaces:\n  - name: Namer\n  - name: Counter\n  - name: Describer\n"
	first := generate(t, src, yaml)
	for range 5 {
		if got := generate(t, src, yaml); got != first {
			t.Fatal("output differs between runs")
		}
	}
	namer := strings.Index(first, "type NamerTable")
	counter := strings.Index(first, "type CounterTable")
	describer := strings.Index(first, "type DescriberTable")
	if !(namer < counter && counter < describer) {
		t.Error("sections must follow config order")
	}
}

func TestImportSet_Aliases(t *testing.T) {
	s := newImportSet("example.com/shapes")
	if got := s.addPath("example.com/other/fatptr", "fatptr"); got != "fatptr2" {
		t.Errorf("alias = %q, want fatptr2", got)
	}
	if got := s.addPath("example.com/other/fatptr", "fatptr"); got != "fatptr2" {
		t.Errorf("repeat alias = %q, want fatptr2", got)
	}
	self := types.NewPackage("example.com/shapes", "shapes")
	if s.qualifier(self) != "" {
		t.Error("own package must be unqualified")
	}
	entries := s.entries()
	if len(entries) != 3 || entries[0].Path != "example.com/other/fatptr" || entries[0].Alias != "fatptr2" {
		t.Errorf("entries = %+v", entries)
	}
}

// =============================================================================
// Negative paths
// =============================================================================

func TestGenerate_Invalid(t *testing.T) {
	src := `package shapes

type Tabled interface {
	Table() int
}

type Plain interface{ M() }
`
	tests := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{"reserved method", "interfaces:\n  - name: Tabled\n", "collides with a generated wrapper member"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator("").Generate(context.Background(), units(t, src, tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !ferrors.IsKind(err, ferrors.KindInvalidInput) || !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	t.Run("no units", func(t *testing.T) {
		if _, err := NewGenerator("").Generate(context.Background(), nil); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unsupported policy", func(t *testing.T) {
		u := units(t, src, "interfaces:\n  - name: Plain\n")
		u[0].Spec.Storage = []fatptr.Storage{fatptr.StorageShared}
		_, err := NewGenerator("").Generate(context.Background(), u)
		if err == nil || !strings.Contains(err.Error(), "unsupported policy") {
			t.Errorf("expected unsupported policy error, got %v", err)
		}
	})
}

// =============================================================================
// Pipeline
// =============================================================================

func TestValidate_ExamplePackage(t *testing.T) {
	if testing.Short() {
		t.Skip("loads packages with the go command")
	}
	dir := filepath.Join("..", "..", "examples", "shapes")
	b := NewBuilder(dir)
	us, err := b.Units(context.Background())
	if err != nil {
		t.Fatalf("Units: %v", err)
	}
	file, err := NewGenerator(config.DefaultOutput).Generate(context.Background(), us)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := Validate(context.Background(), dir, file, nil); err != nil {
		t.Fatalf("generated code does not type-check: %v", err)
	}
}

func TestValidate_RejectsBrokenOutput(t *testing.T) {
	if testing.Short() {
		t.Skip("loads packages with the go command")
	}
	dir := filepath.Join("..", "..", "examples", "shapes")
	file := &GeneratedFile{
		Filename: config.DefaultOutput,
		Content:  "package shapes\n\nvar _ = undefinedName\n",
	}
	err := Validate(context.Background(), dir, file, nil)
	if !ferrors.IsKind(err, ferrors.KindTypeCheck) {
		t.Fatalf("expected type-check error, got %v", err)
	}
}

func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files["go.mod"] = "module example.com/shapes\n\ngo 1.22\n"
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestBuilder_BuildAndCache(t *testing.T) {
	if testing.Short() {
		t.Skip("loads packages with the go command")
	}
	dir := writeModule(t, map[string]string{
		"shapes.go":   "package shapes\n\ntype Describer interface{ Describe() string }\n",
		"fatptr.yaml": "interfaces:\n  - name: Describer\n",
	})

	// The temp module cannot import the runtime package, so the output is
	// not type-checked here; TestValidate_ExamplePackage covers that.
	build := func() *BuildResult {
		t.Helper()
		res, err := NewBuilder(dir, WithValidation(false)).Build(context.Background())
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		return res
	}

	res := build()
	if res.Cached {
		t.Error("first build should not be cached")
	}
	content, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(content), "type DescriberRef struct") {
		t.Error("output missing DescriberRef")
	}

	if !build().Cached {
		t.Error("second build should hit the cache")
	}

	// A source change invalidates the stamp.
	src := "package shapes\n\ntype Describer interface {\n\tDescribe() string\n\tName() string\n}\n"
	if err := os.WriteFile(filepath.Join(dir, "shapes.go"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	if build().Cached {
		t.Error("build after a source change should regenerate")
	}
	content, _ = os.ReadFile(res.Path)
	if !strings.Contains(string(content), "func (r DescriberRef) Name() string") {
		t.Error("regenerated output missing Name")
	}

	// -force ignores a fresh stamp.
	res, err = NewBuilder(dir, WithValidation(false), WithForce(true)).Build(context.Background())
	if err != nil || res.Cached {
		t.Errorf("forced build: cached=%v err=%v", res != nil && res.Cached, err)
	}
}

func TestBuilder_CacheTracksEmbeddedInterfacePackage(t *testing.T) {
	if testing.Short() {
		t.Skip("loads packages with the go command")
	}
	root := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("go.mod", "module example.com/m\n\ngo 1.22\n")
	write("geom/geom.go", "package geom\n\ntype Area interface{ Area() float64 }\n")
	write("shapes/shapes.go", `package shapes

import "example.com/m/geom"

type Shape interface {
	geom.Area
	Describe() string
}
`)
	write("shapes/fatptr.yaml", "interfaces:\n  - name: Shape\n")
	dir := filepath.Join(root, "shapes")

	build := func() *BuildResult {
		t.Helper()
		res, err := NewBuilder(dir, WithValidation(false)).Build(context.Background())
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		return res
	}

	if build().Cached {
		t.Fatal("first build should not be cached")
	}
	if !build().Cached {
		t.Fatal("second build should hit the cache")
	}

	// Growing the embedded interface in the sibling package invalidates the stamp.
	write("geom/geom.go", "package geom\n\ntype Area interface {\n\tArea() float64\n\tPerimeter() float64\n}\n")
	res := build()
	if res.Cached {
		t.Error("build after editing an embedded interface should regenerate")
	}
	content, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(content), "func (r ShapeRef) Perimeter() float64") {
		t.Errorf("regenerated output missing Perimeter:\n%s", content)
	}
}

func TestBuilder_ReportsConformanceFailures(t *testing.T) {
	if testing.Short() {
		t.Skip("loads packages with the go command")
	}
	dir := writeModule(t, map[string]string{
		"shapes.go": `package shapes

type Describer interface{ Describe() string }

type Circle struct{}

type Square struct{}

func (Square) Describe() int { return 0 }
`,
		"fatptr.yaml": "interfaces:\n  - name: Describer\n    check: [Circle, Square]\n",
	})
	_, err := NewBuilder(dir, WithValidation(false)).Check(context.Background())
	if err == nil {
		t.Fatal("expected conformance errors")
	}
	if !ferrors.IsKind(err, ferrors.KindMissingMethod) || !ferrors.IsKind(err, ferrors.KindSignatureMismatch) {
		t.Errorf("both failures should be reported: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, config.DefaultOutput)); !os.IsNotExist(statErr) {
		t.Error("Check must not write output")
	}
}

func TestBuilder_NoConfig(t *testing.T) {
	dir := t.TempDir()
	_, err := NewBuilder(dir).Build(context.Background())
	if !ferrors.IsKind(err, ferrors.KindNotFound) {
		t.Errorf("expected config not found, got %v", err)
	}
}
