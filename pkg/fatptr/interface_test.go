package fatptr

import (
	"errors"
	"testing"
)

func TestNewInterface_Valid(t *testing.T) {
	iface, err := NewInterface("shapes.Counter",
		Method{Name: "Inc", Signature: "func(by int)", Qualifiers: QualNoAlloc},
		Method{Name: "Value", Signature: "func() int", Qualifiers: QualConst | QualPure},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if iface.Name() != "shapes.Counter" {
		t.Errorf("Name = %q", iface.Name())
	}
	if iface.NumMethods() != 2 {
		t.Fatalf("NumMethods = %d, want 2", iface.NumMethods())
	}
	if n, ok := iface.Lookup("Value"); !ok || n != 1 {
		t.Errorf("Lookup(Value) = %d, %v; want 1, true", n, ok)
	}
	if _, ok := iface.Lookup("Missing"); ok {
		t.Error("Lookup(Missing) should fail")
	}
	if !iface.Method(1).Qualifiers.Has(QualConst) {
		t.Error("Value should carry the const qualifier")
	}
}

func TestNewInterface_Errors(t *testing.T) {
	tests := []struct {
		name    string
		iname   string
		methods []Method
		want    error
	}{
		{"empty name", "", []Method{{Name: "A"}}, ErrEmptyInterfaceName},
		{"no methods", "x.I", nil, ErrNoMethods},
		{"empty method", "x.I", []Method{{Name: ""}}, ErrEmptyMethodName},
		{"duplicate", "x.I", []Method{{Name: "A"}, {Name: "A"}}, ErrDuplicateMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInterface(tt.iname, tt.methods...)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewInterface_CopiesMethods(t *testing.T) {
	methods := []Method{{Name: "A"}}
	iface := MustInterface("x.I", methods...)
	methods[0].Name = "B"

	if iface.Method(0).Name != "A" {
		t.Error("interface must not alias the caller's slice")
	}
	got := iface.Methods()
	got[0].Name = "C"
	if iface.Method(0).Name != "A" {
		t.Error("Methods must return a copy")
	}
}

func TestMustInterface_Panics(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrNoMethods) {
			t.Errorf("recovered %v, want ErrNoMethods", r)
		}
	}()
	MustInterface("x.Empty")
}

func TestQualifier(t *testing.T) {
	tests := []struct {
		q    Qualifier
		want string
	}{
		{0, "none"},
		{QualConst, "const"},
		{QualPure | QualNoAlloc, "pure|noalloc"},
		{QualConst | QualPure | QualNoAlloc, "const|pure|noalloc"},
	}
	for _, tt := range tests {
		if got := tt.q.String(); got != tt.want {
			t.Errorf("Qualifier(%d).String() = %q, want %q", tt.q, got, tt.want)
		}
	}

	for _, name := range []string{"const", "pure", "noalloc"} {
		if _, ok := ParseQualifier(name); !ok {
			t.Errorf("ParseQualifier(%q) failed", name)
		}
	}
	if _, ok := ParseQualifier("inline"); ok {
		t.Error("ParseQualifier(inline) should fail")
	}
}
