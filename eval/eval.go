// Package eval implements constant folding arithmetic: evaluating a unary
// or binary operator over literal operands the way the target machine's
// instructions would, including two's-complement wraparound, masked shift
// counts, and IEEE-754 float semantics. The optimize package is the only
// caller; it is split out on its own so the rewrite-rule logic in optimize
// doesn't have to interleave with the arithmetic rules.
package eval

import (
	"math"

	"github.com/onejit/onejit/ir"
)

// Value is a constant scratch value used only inside the evaluator: an
// ir.Kind plus its raw bit pattern, wide enough to hold any supported
// kind without loss (64 bits covers Int64/Uint64/Float64/Ptr). Narrower
// integer kinds are stored masked to their width; Int64 sign-extends them
// on read when the kind is signed.
type Value struct {
	Kind ir.Kind
	Bits uint64
}

// Int constructs an integer Value, masked to k's width.
func Int(k ir.Kind, v int64) Value {
	return Value{Kind: k, Bits: mask(k, uint64(v))}
}

// Float constructs a floating-point Value.
func Float(k ir.Kind, v float64) Value {
	if k == ir.Float32 {
		return Value{Kind: k, Bits: uint64(math.Float32bits(float32(v)))}
	}
	return Value{Kind: k, Bits: math.Float64bits(v)}
}

// FromNode reads a Value out of a Const ir.Node.
func FromNode(n ir.Node) Value {
	k := n.Kind()
	if k.IsFloat() {
		if k == ir.Float32 {
			return Value{Kind: k, Bits: uint64(math.Float32bits(float32(n.ConstFloat())))}
		}
		return Value{Kind: k, Bits: math.Float64bits(n.ConstFloat())}
	}
	return Value{Kind: k, Bits: mask(k, uint64(n.ConstInt()))}
}

// Int64 returns v's integer interpretation, sign-extended if v.Kind is
// signed.
func (v Value) Int64() int64 {
	bits := v.Bits
	switch v.Kind.Bits() {
	case 8:
		if v.Kind.IsSigned() {
			return int64(int8(bits))
		}
		return int64(uint8(bits))
	case 16:
		if v.Kind.IsSigned() {
			return int64(int16(bits))
		}
		return int64(uint16(bits))
	case 32:
		if v.Kind.IsSigned() {
			return int64(int32(bits))
		}
		return int64(uint32(bits))
	default:
		return int64(bits)
	}
}

// Float64 returns v's floating-point interpretation.
func (v Value) Float64() float64 {
	if v.Kind == ir.Float32 {
		return float64(math.Float32frombits(uint32(v.Bits)))
	}
	return math.Float64frombits(v.Bits)
}

// IsZero reports whether v's bit pattern is all-zero, the sense in which
// Unary's Not1 treats a value as false.
func (v Value) IsZero() bool { return v.Bits == 0 }

func mask(k ir.Kind, v uint64) uint64 {
	bits := k.Bits()
	if bits == 0 || bits >= 64 {
		return v
	}
	return v & (1<<uint(bits) - 1)
}
