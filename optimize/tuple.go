package optimize

import (
	"github.com/onejit/onejit/eval"
	"github.com/onejit/onejit/ir"
)

// binaryOpOf maps an associative n-ary operator to its binary counterpart,
// used to fold a run of constants.
var binaryOpOf = map[ir.Op]ir.Op{
	ir.Add: ir.Add2, ir.Mul: ir.Mul2, ir.And: ir.And2, ir.Or: ir.Or2, ir.Xor: ir.Xor2,
}

func (o *Optimizer) optimizeTuple(n ir.Node) (ir.Node, Result) {
	op := n.Op()
	if op == ir.Call || op == ir.Comma {
		return o.optimizeChildrenOnly(n)
	}

	binOp, associative := binaryOpOf[op]
	if !associative || n.Kind().IsFloat() {
		// Floats never reassociate: (a+b)+c != a+(b+c) in IEEE-754.
		return o.optimizeChildrenOnly(n)
	}

	var flat []ir.Node
	pure := true
	changed := false
	for i := 0; i < n.Len(); i++ {
		c, r := o.Run(n.Child(i))
		pure = pure && r.Pure
		if c != n.Child(i) {
			changed = true
		}
		if o.Flags&AlgebraicSimplification != 0 && c.Type() == ir.Tuple && c.Op() == op {
			changed = true
			for j := 0; j < c.Len(); j++ {
				flat = append(flat, c.Child(j))
			}
			continue
		}
		flat = append(flat, c)
	}

	var folded []ir.Node
	var acc eval.Value
	haveAcc := false
	if o.Flags&ConstantFolding != 0 {
		for _, c := range flat {
			if c.Type() != ir.ConstType {
				folded = append(folded, c)
				continue
			}
			changed = true
			v := eval.FromNode(c)
			if !haveAcc {
				acc, haveAcc = v, true
				continue
			}
			newAcc, ok := eval.Binary(binOp, acc, v)
			if !ok {
				folded = append(folded, c)
				continue
			}
			acc = newAcc
		}
	} else {
		folded = flat
	}

	if haveAcc {
		folded = append(folded, o.constNode(n.Kind(), acc))
	}

	if len(folded) == 0 {
		return o.constNode(n.Kind(), identityValue(op, n.Kind())), Result{Pure: true, Const: true}
	}
	if len(folded) == 1 {
		last := folded[0]
		if last.Type() == ir.ConstType {
			return last, Result{Pure: true, Const: true}
		}
		return last, Result{Pure: pure}
	}
	if !changed {
		return n, Result{Same: true, Pure: pure}
	}
	return o.Dest.Tuple(n.Kind(), op, folded...), Result{Pure: pure}
}

// identityValue returns the identity element of an associative n-ary
// operator: the value folding an empty operand list collapses to.
func identityValue(op ir.Op, k ir.Kind) eval.Value {
	switch op {
	case ir.Mul:
		return eval.Int(k, 1)
	case ir.And:
		return eval.Int(k, -1) // all bits set
	default: // Add, Or, Xor
		return eval.Int(k, 0)
	}
}
