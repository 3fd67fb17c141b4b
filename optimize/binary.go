package optimize

import (
	"github.com/onejit/onejit/eval"
	"github.com/onejit/onejit/ir"
)

func (o *Optimizer) optimizeBinary(n ir.Node) (ir.Node, Result) {
	x, rx := o.Run(n.Child(0))
	y, ry := o.Run(n.Child(1))
	pure := rx.Pure && ry.Pure
	if (n.Op() == ir.Quo || n.Op() == ir.Rem) && o.Checks&CheckDivisionByZero != 0 {
		pure = false
	}

	if o.Flags&ConstantFolding != 0 && rx.Const && ry.Const {
		if v, ok := eval.Binary(n.Op(), eval.FromNode(x), eval.FromNode(y)); ok {
			return o.constNode(n.Kind(), v), Result{Pure: pure, Const: true}
		}
	}

	op := n.Op()
	x0, y0 := x, y
	if o.Flags&Canonicalization != 0 {
		op, x, y = canonicalize(op, x, y)
	}

	// Replacements below get one more optimize pass, but Same must
	// describe the rewrite relative to n, where a rewrite fired.
	if o.Flags&ConstantFolding != 0 && o.Flags&AlgebraicSimplification != 0 {
		if reassoc, ok := o.reassociateBinary(n.Kind(), op, x, y); ok {
			out, r := o.Run(reassoc)
			return out, Result{Pure: r.Pure, Const: r.Const}
		}
	}

	if o.Flags&AlgebraicSimplification != 0 {
		if simplified, ok := simplifyBinary(o.Dest, n.Kind(), op, x, y); ok {
			out, r := o.Run(simplified)
			return out, Result{Pure: r.Pure, Const: r.Const}
		}
	}

	if rx.Same && ry.Same && op == n.Op() && x == x0 && y == y0 {
		return n, Result{Same: true, Pure: pure}
	}
	return o.Dest.Binary(n.Kind(), op, x, y), Result{Pure: pure}
}

// reassociateBinary implements the integer-only reassociation rule: for an
// associative op, (z op c1) op c2 folds to z op eval(c1, c2); if y is
// itself (w op c2) for a commutative op, (z op c1) op (w op c2) folds to
// (z op w) op eval(c1, c2), canonicalizing (z, w) by type ordinal the same
// way canonicalize does for a plain commutative pair. Floats never
// reassociate: reordering floating-point operands changes rounding.
func (o *Optimizer) reassociateBinary(k ir.Kind, op ir.Op, x, y ir.Node) (ir.Node, bool) {
	if k.IsFloat() || !op.IsAssociative() {
		return ir.Node{}, false
	}
	if x.Type() != ir.Binary || x.Op() != op {
		return ir.Node{}, false
	}
	z := x.Child(0)
	c1 := x.Child(1)
	if c1.Type() != ir.ConstType {
		return ir.Node{}, false
	}

	if y.Type() == ir.ConstType {
		sum, ok := eval.Binary(op, eval.FromNode(c1), eval.FromNode(y))
		if !ok {
			return ir.Node{}, false
		}
		return o.Dest.Binary(k, op, z, o.constNode(k, sum)), true
	}

	if op.IsCommutative() && y.Type() == ir.Binary && y.Op() == op {
		w := y.Child(0)
		c2 := y.Child(1)
		if c2.Type() != ir.ConstType {
			return ir.Node{}, false
		}
		sum, ok := eval.Binary(op, eval.FromNode(c1), eval.FromNode(c2))
		if !ok {
			return ir.Node{}, false
		}
		if z.Type() > w.Type() {
			z, w = w, z
		}
		inner := o.Dest.Binary(k, op, z, w)
		return o.Dest.Binary(k, op, inner, o.constNode(k, sum)), true
	}
	return ir.Node{}, false
}

// canonicalize sorts a commutative operator's operands by Type ordinal, so
// that Const (the highest expression ordinal) always drifts right; for
// comparisons, the same swap also flips the operator so the comparison's
// meaning is preserved.
func canonicalize(op ir.Op, x, y ir.Node) (ir.Op, ir.Node, ir.Node) {
	if op.IsComparison() {
		if x.Type() > y.Type() {
			return op.SwapComparison(), y, x
		}
		return op, x, y
	}
	if op.IsCommutative() && x.Type() > y.Type() {
		return op, y, x
	}
	return op, x, y
}

// simplifyBinary applies the standard algebraic identities: x+0, x-0, x*0,
// x*1, x/1, x&0, x|0, x^0, x<<0, x>>0. Identities over a constant operand
// check the node itself (not a cached flag) so they stay correct after
// canonicalize has reordered the operands.
func simplifyBinary(f *ir.Func, k ir.Kind, op ir.Op, x, y ir.Node) (ir.Node, bool) {
	xConst := x.Type() == ir.ConstType
	yConst := y.Type() == ir.ConstType
	if yConst && !k.IsFloat() {
		c := y.ConstInt()
		switch op {
		case ir.Add2, ir.Sub, ir.Or2, ir.Xor2, ir.Shl, ir.Shr:
			if c == 0 {
				return x, true
			}
		case ir.Mul2:
			if c == 0 {
				return f.ConstInt(k, 0), true
			}
			if c == 1 {
				return x, true
			}
		case ir.Quo:
			if c == 1 {
				return x, true
			}
		case ir.And2:
			if c == 0 {
				return f.ConstInt(k, 0), true
			}
		}
	}
	if xConst && !k.IsFloat() {
		c := x.ConstInt()
		switch op {
		case ir.Mul2:
			if c == 0 {
				return f.ConstInt(k, 0), true
			}
		case ir.And2:
			if c == 0 {
				return f.ConstInt(k, 0), true
			}
		}
	}
	return ir.Node{}, false
}
