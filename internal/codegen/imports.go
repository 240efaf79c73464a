package codegen

import (
	"go/types"
	"sort"
	"strconv"
)

// importSet assigns local names to the packages referenced by a generated
// file. The file's own package is referenced unqualified.
type importSet struct {
	self   string
	byPath map[string]importEntry
	taken  map[string]bool
}

type importEntry struct {
	Path  string
	Alias string // empty when the package name is used as is
	name  string
}

func newImportSet(selfPath string) *importSet {
	s := &importSet{
		self:   selfPath,
		byPath: make(map[string]importEntry),
		taken:  make(map[string]bool),
	}
	s.addPath("unsafe", "unsafe")
	s.addPath(RuntimeImportPath, "fatptr")
	return s
}

func (s *importSet) addPath(path, name string) string {
	if e, ok := s.byPath[path]; ok {
		return e.name
	}
	local := name
	for n := 2; s.taken[local]; n++ {
		local = name + strconv.Itoa(n)
	}
	e := importEntry{Path: path, name: local}
	if local != name {
		e.Alias = local
	}
	s.byPath[path] = e
	s.taken[local] = true
	return local
}

// collect registers every package mentioned by t.
func (s *importSet) collect(t types.Type) {
	types.TypeString(t, func(p *types.Package) string {
		if p.Path() == s.self {
			return ""
		}
		return s.addPath(p.Path(), p.Name())
	})
}

// qualifier renders package references using the assigned local names.
// collect must have seen every package beforehand.
func (s *importSet) qualifier(p *types.Package) string {
	if p.Path() == s.self {
		return ""
	}
	if e, ok := s.byPath[p.Path()]; ok {
		return e.name
	}
	return p.Name()
}

func (s *importSet) entries() []importEntry {
	out := make([]importEntry, 0, len(s.byPath))
	for _, e := range s.byPath {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Path < out[j].Path
	})
	return out
}
