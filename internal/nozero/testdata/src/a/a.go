package a

import (
	"unsafe"

	"github.com/funvibe/fatptr/pkg/fatptr"
)

type Ref struct {
	_    fatptr.NoZero
	data unsafe.Pointer
}

type Plain struct {
	data unsafe.Pointer
}

type Holder struct {
	r Ref
}

type Scene struct {
	name  string
	shape Ref
}

type Gallery struct {
	title  string
	frames [2]Ref
}

type Node struct {
	next  *Node
	label string
}

var global Ref // want `global is declared as the zero Ref`

var pair [2]Ref // want `pair is declared as the zero \[2\]Ref`

var none [0]Ref

var scene Scene // want `scene is declared as the zero Scene`

var fromCtor = NewRef()

func uses(n int) {
	_ = Ref{}          // want `composite literal of Ref creates an invalid value`
	_ = []Ref{{}}      // want `composite literal of Ref creates an invalid value`
	_ = new(Ref)       // want `new\(Ref\) creates an invalid value`
	_ = make([]Ref, n) // want `make fills the slice with invalid zero Ref values`
	_ = make([]Ref, 2) // want `make fills the slice with invalid zero Ref values`

	var local Ref // want `local is declared as the zero Ref`
	_ = local

	_ = [2]Ref{NewRef()}              // want `composite literal of \[2\]Ref sets 1 of 2 elements`
	_ = [3]Ref{1: NewRef(), NewRef()} // want `composite literal of \[3\]Ref sets 2 of 3 elements`
	_ = [2]Ref{{}, NewRef()}          // want `composite literal of Ref creates an invalid value`

	_ = Scene{}                // want `composite literal of Scene leaves field shape as an invalid zero Ref`
	_ = Scene{name: "empty"}   // want `composite literal of Scene leaves field shape`
	_ = []Scene{{}}            // want `composite literal of Scene leaves field shape`
	_ = Gallery{title: "none"} // want `composite literal of Gallery leaves field frames as an invalid zero \[2\]Ref`
	_ = new(Scene)             // want `new\(Scene\) creates an invalid value`
	_ = make([]Scene, n)       // want `make fills the slice with invalid zero Scene values`

	var s Scene // want `s is declared as the zero Scene`
	_ = s

	// Allowed.
	_ = make([]Ref, 0, n)
	_ = make([]Ref, 0)
	var refs []Ref
	refs = append(refs, NewRef())
	_ = refs
	_ = Plain{}
	_ = new(Plain)
	_ = Holder{r: NewRef()}
	full := [2]Ref{NewRef(), NewRef()}
	_ = full
	_ = [...]Ref{NewRef(), NewRef(), NewRef()}
	_ = [2]Ref{1: NewRef(), 0: NewRef()}
	_ = Scene{shape: NewRef()}
	_ = Scene{"full", NewRef()}
	_ = Gallery{frames: [2]Ref{NewRef(), NewRef()}}
	_ = []Scene{{name: "one", shape: NewRef()}}
	_ = Node{label: "leaf"}
	var nd Node
	_ = nd
	var p *Ref
	_ = p
	r := NewRef()
	_ = r
}
