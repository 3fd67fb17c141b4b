package eval

import "github.com/onejit/onejit/ir"

// Unary evaluates op applied to x, producing a value of kind k (the
// operator node's own result kind: Bool for Not1, the conversion target
// for Cast/Bitcopy, x's kind otherwise). It returns the folded Value and
// true, or the zero Value and false if the op/kind combination cannot be
// constant-folded.
func Unary(k ir.Kind, op ir.Op, x Value) (Value, bool) {
	switch op {
	case ir.Cast:
		return cast(k, x)
	case ir.Bitcopy:
		return bitcopy(k, x)
	}
	if x.Kind.IsFloat() {
		if op == ir.Neg1 {
			return Float(x.Kind, -x.Float64()), true
		}
		return Value{}, false
	}
	switch op {
	case ir.Xor1:
		return Int(x.Kind, ^x.Int64()), true
	case ir.Not1:
		if x.IsZero() {
			return Int(ir.Bool, 1), true
		}
		return Int(ir.Bool, 0), true
	case ir.Neg1:
		return Int(x.Kind, -x.Int64()), true
	default:
		return Value{}, false
	}
}

// cast converts x's numeric value to kind k: int/int truncates or extends,
// int/float and float/int go through the usual numeric conversion, and
// float/float re-rounds to the target precision.
func cast(k ir.Kind, x Value) (Value, bool) {
	switch {
	case k.IsFloat() && x.Kind.IsFloat():
		return Float(k, x.Float64()), true
	case k.IsFloat():
		return Float(k, float64(x.Int64())), true
	case x.Kind.IsFloat():
		return Int(k, int64(x.Float64())), true
	default:
		return Int(k, x.Int64()), true
	}
}

// bitcopy reinterprets x's bit pattern as kind k. Only equal-width
// reinterpretation is defined; everything else fails to fold.
func bitcopy(k ir.Kind, x Value) (Value, bool) {
	if k.Bits() != x.Kind.Bits() {
		return Value{}, false
	}
	return Value{Kind: k, Bits: x.Bits}, true
}
