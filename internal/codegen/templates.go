package codegen

// Templates

const fileTemplate = `// Code generated by fatptr. DO NOT EDIT.

package {{.Package}}

import (
{{- range .Imports}}
	{{if .Alias}}{{.Alias}} {{end}}"{{.Path}}"
{{- end}}
)
{{range .Sections}}
{{.}}
{{- end}}
`

const constraint = `{{define "constraint"}}[{{.T}} any, {{.PT}} interface{ *{{.T}}; {{.Name}} }]{{end}}`

const sectionTemplate = constraint + `{{$I := .}}
// {{.Handle}} is the runtime handle of {{.Name}}.
var {{.Handle}} = fatptr.MustInterface({{printf "%q" .FullName}},
{{- range .Methods}}
	fatptr.Method{Name: {{printf "%q" .Name}}, Signature: {{printf "%q" .RuntimeSig}}{{if .Qualifiers}}, Qualifiers: {{.Qualifiers}}{{end}}},
{{- end}}
)

// {{.Table}} is the dispatch table of {{.Name}}. Each slot calls the method
// of the same name on the value behind data.
type {{.Table}} struct {
{{- range .Methods}}
	{{.Name}} func(data unsafe.Pointer{{.SlotParams}}){{.Results}}
{{- end}}
}

// {{.Table}}For returns the dispatch table binding {{.Name}} to {{.T}}. The table
// is built on first use and shared by every later caller.
func {{.Table}}For{{template "constraint" .}}() *{{.Table}} {
	return fatptr.Intern[{{.T}}]({{.Handle}}, func() *{{.Table}} {
		return &{{.Table}}{
{{- range .Methods}}
			{{.Name}}: func(data unsafe.Pointer{{.SlotParams}}){{.Results}} {
				{{if .HasResults}}return {{end}}{{$I.PT}}((*{{$I.T}})(data)).{{.Name}}({{.CallArgs}})
			},
{{- end}}
		}
	})
}
{{- if .Indirect}}

// {{.Wrapper}} holds a value of any type whose pointer implements {{.Name}}
// and forwards calls through its dispatch table. The zero value is invalid;
// build one with {{.CtorList .Wrapper}}.
type {{.Wrapper}} struct {
	_     fatptr.NoZero
	data  unsafe.Pointer
	table *{{.Table}}
}
{{- if .Owned}}

// New{{.Wrapper}} wraps a copy of v.
func New{{.Wrapper}}{{template "constraint" .}}(v {{.T}}) {{.Wrapper}} {
	return {{.Wrapper}}{data: fatptr.Own(v), table: {{.Table}}For[{{.T}}, {{.PT}}]()}
}
{{- end}}
{{- if .Borrowed}}

// Borrow{{.Wrapper}} wraps *p in place. Changes made through p and through
// the wrapper are visible to each other. It panics if p is nil.
func Borrow{{.Wrapper}}{{template "constraint" .}}(p *{{.T}}) {{.Wrapper}} {
	return {{.Wrapper}}{data: fatptr.Borrow(p), table: {{.Table}}For[{{.T}}, {{.PT}}]()}
}
{{- end}}
{{- range .Methods}}

{{.Doc}}func (r {{$I.Wrapper}}) {{.Name}}({{.Params}}){{.Results}} {
	{{if .HasResults}}return {{end}}r.table.{{.Name}}(r.data{{.ForwardArgs}})
}
{{- end}}

// Table returns the dispatch table of the wrapped value's type.
func (r {{.Wrapper}}) Table() *{{.Table}} { return r.table }

// SameType reports whether r and other wrap values of the same type.
func (r {{.Wrapper}}) SameType(other {{.Wrapper}}) bool { return r.table == other.table }

var _ {{.Name}} = {{.Wrapper}}{}
{{- end}}
{{- if .Embedded}}

// {{.Inline}} is a {{.Name}} wrapper that carries a copy of its dispatch
// table, so a call loads the method from the wrapper itself. The zero value
// is invalid; build one with {{.CtorList .Inline}}.
type {{.Inline}} struct {
	_     fatptr.NoZero
	data  unsafe.Pointer
	table {{.Table}}
	id    *{{.Table}}
}
{{- if .Owned}}

// New{{.Inline}} wraps a copy of v.
func New{{.Inline}}{{template "constraint" .}}(v {{.T}}) {{.Inline}} {
	tab := {{.Table}}For[{{.T}}, {{.PT}}]()
	return {{.Inline}}{data: fatptr.Own(v), table: *tab, id: tab}
}
{{- end}}
{{- if .Borrowed}}

// Borrow{{.Inline}} wraps *p in place. Changes made through p and through
// the wrapper are visible to each other. It panics if p is nil.
func Borrow{{.Inline}}{{template "constraint" .}}(p *{{.T}}) {{.Inline}} {
	tab := {{.Table}}For[{{.T}}, {{.PT}}]()
	return {{.Inline}}{data: fatptr.Borrow(p), table: *tab, id: tab}
}
{{- end}}
{{- range .Methods}}

{{.Doc}}func (r {{$I.Inline}}) {{.Name}}({{.Params}}){{.Results}} {
	{{if .HasResults}}return {{end}}r.table.{{.Name}}(r.data{{.ForwardArgs}})
}
{{- end}}

// Table returns the interned dispatch table of the wrapped value's type.
func (r {{.Inline}}) Table() *{{.Table}} { return r.id }

// SameType reports whether r and other wrap values of the same type.
func (r {{.Inline}}) SameType(other {{.Inline}}) bool { return r.id == other.id }
{{- if .Indirect}}

// Ref returns a {{.Wrapper}} for the same value.
func (r {{.Inline}}) Ref() {{.Wrapper}} { return {{.Wrapper}}{data: r.data, table: r.id} }
{{- end}}

var _ {{.Name}} = {{.Inline}}{}
{{- end}}
{{- range .Checks}}

var _ = {{$I.Table}}For[{{.}}, *{{.}}]
{{- end}}
`
