package optimize

import (
	"github.com/onejit/onejit/eval"
	"github.com/onejit/onejit/ir"
)

func (o *Optimizer) optimizeUnary(n ir.Node) (ir.Node, Result) {
	x, rx := o.Run(n.Child(0))

	if o.Flags&ConstantFolding != 0 && rx.Const {
		if v, ok := eval.Unary(n.Kind(), n.Op(), eval.FromNode(x)); ok {
			return o.constNode(n.Kind(), v), Result{Pure: true, Const: true}
		}
	}

	if o.Flags&AlgebraicSimplification != 0 {
		if simplified, ok := simplifyUnary(o.Dest, n.Kind(), n.Op(), x); ok {
			// The replacement gets one more optimize pass, but Same must
			// describe the rewrite relative to n, where a rewrite fired.
			out, r := o.Run(simplified)
			return out, Result{Pure: r.Pure, Const: r.Const}
		}
	}

	if rx.Same {
		return n, Result{Same: true, Pure: rx.Pure}
	}
	return o.Dest.Unary(n.Kind(), n.Op(), x), Result{Pure: rx.Pure}
}

// simplifyUnary applies a handful of unary identities: double negation and
// double complement cancel, mixed NOT/NEG compose into the other op, and a
// logical not over a comparison folds into the negated comparison.
func simplifyUnary(f *ir.Func, k ir.Kind, op ir.Op, x ir.Node) (ir.Node, bool) {
	if op == ir.Not1 && x.Type() == ir.Binary && x.Op().IsComparison() {
		return f.Binary(ir.Bool, x.Op().NotComparison(), x.Child(0), x.Child(1)), true
	}
	if x.Type() == ir.Unary {
		inner := x.Op()
		ix := x.Child(0)
		switch {
		case op == ir.Xor1 && inner == ir.Xor1: // ~~x -> x
			return ix, true
		case op == ir.Neg1 && inner == ir.Neg1: // --x -> x
			return ix, true
		case op == ir.Xor1 && inner == ir.Neg1: // ~(-x) -> x - 1
			return f.Binary(k, ir.Sub, ix, f.ConstInt(k, 1)), true
		case op == ir.Neg1 && inner == ir.Xor1: // -(~x) -> x + 1
			return f.Binary(k, ir.Add2, ix, f.ConstInt(k, 1)), true
		}
	}
	if (op == ir.Cast || op == ir.Bitcopy) && x.Kind() == k {
		return x, true // cast/bitcopy to the same kind is a no-op
	}
	return ir.Node{}, false
}

func (o *Optimizer) constNode(k ir.Kind, v eval.Value) ir.Node {
	if k.IsFloat() {
		return o.Dest.ConstFloat(k, v.Float64())
	}
	return o.Dest.ConstInt(k, v.Int64())
}
