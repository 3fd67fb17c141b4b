package ir

import "strconv"

// Var is a reference to a function-local variable: a virtual register
// before register allocation, or a spill slot after it. It holds (kind, id);
// the id is limited to 24 bits so that it fits together with a 6-bit kind
// and a 2-bit tag into one 32-bit direct child word (see value.go).
type Var struct {
	kind Kind
	id   uint32
}

// maxDirectVarID is the largest id a Var can hold: 24 bits.
const maxDirectVarID = 1<<24 - 1

// Kind returns the variable's primitive type.
func (v Var) Kind() Kind { return v.kind }

// ID returns the variable's identifier, unique within its owning Func.
func (v Var) ID() uint32 { return v.id }

// Valid reports whether v was produced by Func.NewVar (as opposed to the
// zero Var).
func (v Var) Valid() bool { return v.kind.Valid() }

func (v Var) String() string {
	return v.kind.String() + "#" + strconv.Itoa(int(v.id))
}
