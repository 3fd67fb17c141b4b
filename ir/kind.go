// Package ir implements the arena-backed intermediate representation:
// the code buffer-addressed Node encoding, the Kind/Type/Op tables, Var,
// Label, Mem, and the Func builder that mints all of the above.
//
// Every node lives inside a single codebuf.Buffer owned by a Func. Nodes
// are identified by the offset at which they were written ("indirect"), or
// are packed directly into a 32-bit parent child slot ("direct") when they
// are a small constant, a small-id variable, or a valueless statement. See
// node.go for the exact bit layout.
package ir

import "fmt"

// Kind is a primitive type: the type of a Value, a Var, or an expression
// Node's result.
type Kind uint8

const (
	Bad Kind = iota
	Void
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Ptr

	numKinds
)

var kindNames = [...]string{
	Bad: "bad", Void: "void", Bool: "bool",
	Int8: "int8", Int16: "int16", Int32: "int32", Int64: "int64",
	Uint8: "uint8", Uint16: "uint16", Uint32: "uint32", Uint64: "uint64",
	Float32: "float32", Float64: "float64", Ptr: "ptr",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is a real, non-Bad kind.
func (k Kind) Valid() bool { return k > Bad && k < numKinds }

// IsInt reports whether k is a signed or unsigned integer kind.
func (k Kind) IsInt() bool {
	return k >= Int8 && k <= Uint64
}

// IsSigned reports whether k is a signed integer kind.
func (k Kind) IsSigned() bool {
	return k >= Int8 && k <= Int64
}

// IsFloat reports whether k is a floating-point kind.
func (k Kind) IsFloat() bool {
	return k == Float32 || k == Float64
}

// Bits returns the width, in bits, of a value of kind k.
func (k Kind) Bits() int {
	switch k {
	case Bool, Int8, Uint8:
		return 8
	case Int16, Uint16:
		return 16
	case Int32, Uint32, Float32:
		return 32
	case Int64, Uint64, Float64, Ptr:
		return 64
	default:
		return 0
	}
}
