package optimize

import (
	"testing"

	"github.com/onejit/onejit/diag"
	"github.com/onejit/onejit/ir"
)

func newOpt(f *ir.Func, flags Flags) *Optimizer {
	return New(f, f.Diagnostics(), flags, CheckNone)
}

func TestConstantFoldingBinary(t *testing.T) {
	f := ir.NewFunc()
	n := f.Binary(ir.Int32, ir.Add2, f.ConstInt(ir.Int32, 2), f.ConstInt(ir.Int32, 3))
	got, r := newOpt(f, ConstantFolding).Run(n)
	if !r.Const || got.ConstInt() != 5 {
		t.Fatalf("expected folded constant 5, got %v (const=%v)", got, r.Const)
	}
}

func TestAlgebraicSimplificationAddZero(t *testing.T) {
	f := ir.NewFunc()
	v := f.VarNode(f.NewVar(ir.Int32))
	n := f.Binary(ir.Int32, ir.Add2, v, f.ConstInt(ir.Int32, 0))
	got, _ := newOpt(f, AlgebraicSimplification).Run(n)
	if got.Type() != ir.VarType {
		t.Fatalf("expected x+0 to simplify to x, got %v", got)
	}
}

func TestAlgebraicSimplificationMulZero(t *testing.T) {
	f := ir.NewFunc()
	v := f.VarNode(f.NewVar(ir.Int32))
	n := f.Binary(ir.Int32, ir.Mul2, v, f.ConstInt(ir.Int32, 0))
	got, r := newOpt(f, AlgebraicSimplification).Run(n)
	if !r.Const || got.ConstInt() != 0 {
		t.Fatalf("expected x*0 to simplify to 0, got %v", got)
	}
}

func TestDoubleNegationCancels(t *testing.T) {
	f := ir.NewFunc()
	v := f.VarNode(f.NewVar(ir.Int32))
	n := f.Unary(ir.Int32, ir.Neg1, f.Unary(ir.Int32, ir.Neg1, v))
	got, _ := newOpt(f, AlgebraicSimplification).Run(n)
	if got.Type() != ir.VarType {
		t.Fatalf("expected --x to simplify to x, got %v", got)
	}
}

func TestNotNegComposesToSub(t *testing.T) {
	f := ir.NewFunc()
	v := f.VarNode(f.NewVar(ir.Int32))
	n := f.Unary(ir.Int32, ir.Xor1, f.Unary(ir.Int32, ir.Neg1, v))
	got, _ := newOpt(f, AlgebraicSimplification).Run(n)
	if got.Type() != ir.Binary || got.Op() != ir.Sub {
		t.Fatalf("expected ~(-x) to simplify to x-1, got %v", got)
	}
	if got.Child(1).Type() != ir.ConstType || got.Child(1).ConstInt() != 1 {
		t.Fatalf("expected right operand 1, got %v", got.Child(1))
	}
}

func TestNotOverComparisonNegatesComparison(t *testing.T) {
	f := ir.NewFunc()
	x := f.VarNode(f.NewVar(ir.Int32))
	y := f.VarNode(f.NewVar(ir.Int32))
	n := f.Unary(ir.Bool, ir.Not1, f.Binary(ir.Bool, ir.Lss, x, y))
	got, _ := newOpt(f, AlgebraicSimplification).Run(n)
	if got.Type() != ir.Binary || got.Op() != ir.Geq {
		t.Fatalf("expected !(a<b) to rewrite to a>=b, got op=%v", got.Op())
	}
}

func TestCastToSameKindIsDropped(t *testing.T) {
	f := ir.NewFunc()
	v := f.VarNode(f.NewVar(ir.Int32))
	n := f.Unary(ir.Int32, ir.Cast, v)
	got, _ := newOpt(f, AlgebraicSimplification).Run(n)
	if got.Type() != ir.VarType {
		t.Fatalf("expected cast(int32, x:int32) to simplify to x, got %v", got)
	}
}

func TestCommutativeCanonicalizationDriftsConstantRight(t *testing.T) {
	f := ir.NewFunc()
	v := f.VarNode(f.NewVar(ir.Int32))
	n := f.Binary(ir.Int32, ir.Add2, f.ConstInt(ir.Int32, 4), v) // 4 + x
	got, _ := newOpt(f, Canonicalization).Run(n)
	if got.Op() != ir.Add2 || got.Child(0).Type() != ir.VarType || got.Child(1).Type() != ir.ConstType {
		t.Fatalf("expected 4+x to canonicalize to x+4, got %v", got)
	}
}

func TestFloatReassociationIsSuppressed(t *testing.T) {
	f := ir.NewFunc()
	v := f.VarNode(f.NewVar(ir.Float64))
	inner := f.Binary(ir.Float64, ir.Add2, v, f.ConstFloat(ir.Float64, 1))
	outer := f.Binary(ir.Float64, ir.Add2, inner, f.ConstFloat(ir.Float64, 2))
	got, _ := newOpt(f, All).Run(outer)
	if got.Type() != ir.Binary || got.Child(0).Type() != ir.Binary {
		t.Fatalf("expected (x+1.0)+2.0 to stay nested for floats, got %v", got)
	}
}

func TestComparisonCanonicalizationSwapsConstantToRight(t *testing.T) {
	f := ir.NewFunc()
	v := f.VarNode(f.NewVar(ir.Int32))
	n := f.Binary(ir.Bool, ir.Lss, f.ConstInt(ir.Int32, 1), v) // 1 < x
	got, _ := newOpt(f, Canonicalization).Run(n)
	if got.Op() != ir.Gtr || got.Child(0).Type() != ir.VarType || got.Child(1).Type() != ir.ConstType {
		t.Fatalf("expected 1<x to canonicalize to x>1, got op=%v", got.Op())
	}
}

func TestTupleConstantFoldingAndReassociation(t *testing.T) {
	f := ir.NewFunc()
	v := f.VarNode(f.NewVar(ir.Int32))
	inner := f.Tuple(ir.Int32, ir.Add, f.ConstInt(ir.Int32, 1), f.ConstInt(ir.Int32, 2))
	outer := f.Tuple(ir.Int32, ir.Add, v, inner, f.ConstInt(ir.Int32, 3))
	got, _ := newOpt(f, All).Run(outer)
	if got.Type() != ir.Tuple || got.Len() != 2 {
		t.Fatalf("expected flattened 2-operand tuple (x, 6), got %v", got)
	}
	var foundVar, foundConst bool
	for i := 0; i < got.Len(); i++ {
		c := got.Child(i)
		if c.Type() == ir.VarType {
			foundVar = true
		}
		if c.Type() == ir.ConstType && c.ConstInt() == 6 {
			foundConst = true
		}
	}
	if !foundVar || !foundConst {
		t.Fatalf("expected operands {x, 6}, got tuple %v", got)
	}
}

func TestOptimizerUsesSink(t *testing.T) {
	var s diag.Sink
	f := ir.NewFunc()
	o := New(f, &s, All, CheckNone)
	if o.Sink.HasErrors() {
		t.Fatal("expected fresh sink to be empty")
	}
}

func TestBinaryReassociationFoldsChainedConstants(t *testing.T) {
	f := ir.NewFunc()
	v := f.VarNode(f.NewVar(ir.Int32))
	inner := f.Binary(ir.Int32, ir.Add2, v, f.ConstInt(ir.Int32, 1))
	outer := f.Binary(ir.Int32, ir.Add2, inner, f.ConstInt(ir.Int32, 2))

	got, _ := newOpt(f, All).Run(outer)
	if got.Type() != ir.Binary || got.Op() != ir.Add2 {
		t.Fatalf("expected a Binary Add2 node, got %v", got)
	}
	if got.Child(0).Type() != ir.VarType {
		t.Fatalf("expected left child to be the variable, got %v", got.Child(0))
	}
	if got.Child(1).Type() != ir.ConstType || got.Child(1).ConstInt() != 3 {
		t.Fatalf("expected (x+1)+2 to reassociate to x+3, got %v", got.Child(1))
	}
}

func TestLabelIsNeverPure(t *testing.T) {
	f := ir.NewFunc()
	l := f.NewLabel()
	_, r := newOpt(f, All).Run(f.LabelNode(l))
	if r.Pure {
		t.Fatal("expected a label (a jump-destination anchor) to be reported impure")
	}
}

func TestRewriteInsideStatementPropagates(t *testing.T) {
	f := ir.NewFunc()
	v := f.NewVar(ir.Int32)
	expr := f.Unary(ir.Int32, ir.Neg1, f.Unary(ir.Int32, ir.Neg1, f.VarNode(v)))
	stmt := f.Assign(f.VarNode(v), expr)
	got, r := newOpt(f, AlgebraicSimplification).Run(stmt)
	if r.Same {
		t.Fatal("expected the statement to be reported as rewritten")
	}
	if got.Child(1).Type() != ir.VarType {
		t.Fatalf("expected --v to simplify to v inside the assignment, got %v", got.Child(1))
	}
}

func TestAssignCallSignatureSurvivesOptimization(t *testing.T) {
	f := ir.NewFunc()
	target := f.NewLabel()
	res := f.NewVar(ir.Int64)
	ftype := f.Ftype(1, ir.Int64, ir.Int64)
	arg := f.Binary(ir.Int64, ir.Add2, f.ConstInt(ir.Int64, 1), f.ConstInt(ir.Int64, 2))
	call := f.AssignCall(ftype, f.LabelNode(target), []ir.Node{f.VarNode(res)}, []ir.Node{arg})

	got, _ := newOpt(f, All).Run(call)
	if got.Type() != ir.StmtN || got.Op() != ir.AssignCall {
		t.Fatalf("expected an AssignCall back, got %v", got)
	}
	sig := got.Child(0)
	if sig.Type() != ir.Ftype {
		t.Fatalf("expected the signature child to stay an Ftype, got %v", sig.Type())
	}
	if params := sig.ParamKinds(); len(params) != 1 || params[0] != ir.Int64 {
		t.Fatalf("unexpected signature params: %v", params)
	}
	if folded := got.Child(3); folded.Type() != ir.ConstType || folded.ConstInt() != 3 {
		t.Fatalf("expected the argument 1+2 folded to 3, got %v", folded)
	}
}

func TestCheckDivisionByZeroMarksQuoImpure(t *testing.T) {
	f := ir.NewFunc()
	v := f.VarNode(f.NewVar(ir.Int32))
	n := f.Binary(ir.Int32, ir.Quo, v, f.ConstInt(ir.Int32, 2))

	_, r := New(f, f.Diagnostics(), All, CheckNone).Run(n)
	if !r.Pure {
		t.Fatal("expected Quo to be reported pure when CheckDivisionByZero is unset")
	}

	_, r = New(f, f.Diagnostics(), All, CheckDivisionByZero).Run(n)
	if r.Pure {
		t.Fatal("expected Quo to be reported impure when CheckDivisionByZero is set")
	}
}

func TestCheckNullPointerAccessMarksMemImpure(t *testing.T) {
	f := ir.NewFunc()
	addr := f.VarNode(f.NewVar(ir.Ptr))
	n := f.Mem(ir.Int32, ir.GenericMem, addr)

	_, r := New(f, f.Diagnostics(), All, CheckNone).Run(n)
	if !r.Pure {
		t.Fatal("expected Mem to be reported pure when CheckNullPointerAccess is unset")
	}

	_, r = New(f, f.Diagnostics(), All, CheckNullPointerAccess).Run(n)
	if r.Pure {
		t.Fatal("expected Mem to be reported impure when CheckNullPointerAccess is set")
	}
}
