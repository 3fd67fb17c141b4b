package eval

import "github.com/onejit/onejit/ir"

// Binary evaluates op applied to (x, y), returning the folded Value and
// true, or the zero Value and false if it cannot be folded (division or
// remainder by zero is the common case: the optimizer leaves those nodes
// alone rather than folding them to an arbitrary sentinel).
func Binary(op ir.Op, x, y Value) (Value, bool) {
	if op.IsComparison() {
		return binaryCompare(op, x, y)
	}
	if x.Kind.IsFloat() || y.Kind.IsFloat() {
		return binaryFloat(op, x, y)
	}
	return binaryInt(op, x, y)
}

func binaryInt(op ir.Op, x, y Value) (Value, bool) {
	k := x.Kind
	a, b := x.Int64(), y.Int64()
	switch op {
	case ir.Add2, ir.Add:
		return Int(k, a+b), true
	case ir.Sub:
		return Int(k, a-b), true
	case ir.Mul2, ir.Mul:
		return Int(k, a*b), true
	case ir.Quo:
		if b == 0 {
			return Value{}, false
		}
		return Int(k, a/b), true
	case ir.Rem:
		if b == 0 {
			return Value{}, false
		}
		return Int(k, a%b), true
	case ir.And2, ir.And:
		return Int(k, a&b), true
	case ir.Or2, ir.Or:
		return Int(k, a|b), true
	case ir.Xor2, ir.Xor:
		return Int(k, a^b), true
	case ir.Shl:
		return Int(k, a<<(uint64(b)&shiftMask(k))), true
	case ir.Shr:
		if k.IsSigned() {
			return Int(k, a>>(uint64(b)&shiftMask(k))), true
		}
		return Int(k, int64(uint64(a)>>(uint64(b)&shiftMask(k)))), true
	case ir.Land:
		return Int(ir.Bool, boolToInt(a != 0 && b != 0)), true
	case ir.Lor:
		return Int(ir.Bool, boolToInt(a != 0 || b != 0)), true
	default:
		return Value{}, false
	}
}

func binaryFloat(op ir.Op, x, y Value) (Value, bool) {
	k := x.Kind
	if !k.IsFloat() {
		k = y.Kind
	}
	a, b := x.Float64(), y.Float64()
	switch op {
	case ir.Add2, ir.Add:
		return Float(k, a+b), true
	case ir.Sub:
		return Float(k, a-b), true
	case ir.Mul2, ir.Mul:
		return Float(k, a*b), true
	case ir.Quo:
		return Float(k, a/b), true
	default:
		return Value{}, false
	}
}

func binaryCompare(op ir.Op, x, y Value) (Value, bool) {
	var lt, eq bool
	if x.Kind.IsFloat() || y.Kind.IsFloat() {
		a, b := x.Float64(), y.Float64()
		lt, eq = a < b, a == b
	} else if x.Kind.IsSigned() {
		a, b := x.Int64(), y.Int64()
		lt, eq = a < b, a == b
	} else {
		a, b := uint64(x.Int64()), uint64(y.Int64())
		lt, eq = a < b, a == b
	}
	var result bool
	switch op {
	case ir.Lss:
		result = lt
	case ir.Leq:
		result = lt || eq
	case ir.Gtr:
		result = !lt && !eq
	case ir.Geq:
		result = !lt
	case ir.Eql:
		result = eq
	case ir.Neq:
		result = !eq
	default:
		return Value{}, false
	}
	return Int(ir.Bool, boolToInt(result)), true
}

func shiftMask(k ir.Kind) uint64 {
	switch k.Bits() {
	case 8:
		return 7
	case 16:
		return 15
	case 32:
		return 31
	default:
		return 63
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
