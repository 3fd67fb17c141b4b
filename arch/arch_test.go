package arch_test

import (
	"testing"

	"github.com/onejit/onejit/arch"
	"github.com/onejit/onejit/arch/x64"
	"github.com/onejit/onejit/diag"
	"github.com/onejit/onejit/ir"
	"github.com/onejit/onejit/optimize"
)

func TestCompileEndToEnd(t *testing.T) {
	f := ir.NewFunc()
	v := f.NewVar(ir.Int64)
	expr := f.Binary(ir.Int64, ir.Add2,
		f.Binary(ir.Int64, ir.Add2, f.ConstInt(ir.Int64, 2), f.ConstInt(ir.Int64, 3)),
		f.VarNode(v))
	body := []ir.Node{
		f.Assign(f.VarNode(v), expr),
		f.Return(),
	}

	var sink diag.Sink
	code := arch.Compile(f, body, x64.NewMachine(), optimize.All, optimize.CheckNone, &sink)
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Errors())
	}
	if len(code) == 0 {
		t.Fatal("expected non-empty assembled code")
	}
}

func TestFlattenIfProducesDiamond(t *testing.T) {
	f := ir.NewFunc()
	v := f.NewVar(ir.Int64)
	x := f.NewVar(ir.Int64)
	cond := f.Binary(ir.Bool, ir.Lss, f.VarNode(x), f.ConstInt(ir.Int64, 10))
	stmt := f.If(cond,
		f.Assign(f.VarNode(v), f.ConstInt(ir.Int64, 1)),
		f.Assign(f.VarNode(v), f.ConstInt(ir.Int64, 2)))

	linear := arch.Flatten(f, []ir.Node{stmt})
	var jumpIfs, gotos, labels, assigns int
	for _, s := range linear {
		switch {
		case s.Type() == ir.LabelType:
			labels++
		case s.Type() == ir.Stmt2 && s.Op() == ir.JumpIf:
			jumpIfs++
		case s.Type() == ir.Stmt1 && s.Op() == ir.Goto:
			gotos++
		case s.Type() == ir.Stmt2 && s.Op() == ir.Assign:
			assigns++
		}
	}
	if jumpIfs != 1 || gotos != 2 || labels != 3 || assigns != 2 {
		t.Fatalf("unexpected diamond shape: %d jump_if, %d goto, %d labels, %d assigns",
			jumpIfs, gotos, labels, assigns)
	}
}

func TestCompileIfEndToEnd(t *testing.T) {
	f := ir.NewFunc()
	v := f.NewVar(ir.Int64)
	x := f.NewVar(ir.Int64)
	cond := f.Binary(ir.Bool, ir.Lss, f.VarNode(x), f.ConstInt(ir.Int64, 10))
	body := []ir.Node{
		f.If(cond,
			f.Assign(f.VarNode(v), f.ConstInt(ir.Int64, 1)),
			f.Assign(f.VarNode(v), f.ConstInt(ir.Int64, 2))),
		f.Return(f.VarNode(v)),
	}
	var sink diag.Sink
	code := arch.Compile(f, body, x64.NewMachine(), optimize.All, optimize.CheckNone, &sink)
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Errors())
	}
	if len(code) == 0 {
		t.Fatal("expected non-empty assembled code for an If statement")
	}
}

func TestCompileForLoopEndToEnd(t *testing.T) {
	// for v = 0; v < 3; v++ { x += 2 }
	f := ir.NewFunc()
	v := f.NewVar(ir.Int64)
	x := f.NewVar(ir.Int64)
	loop := f.For(
		f.Assign(f.VarNode(v), f.ConstInt(ir.Int64, 0)),
		f.Binary(ir.Bool, ir.Lss, f.VarNode(v), f.ConstInt(ir.Int64, 3)),
		f.Inc(f.VarNode(v)),
		f.AssignOp(ir.AssignAdd, f.VarNode(x), f.ConstInt(ir.Int64, 2)))
	body := []ir.Node{loop, f.Return(f.VarNode(x))}

	var sink diag.Sink
	code := arch.Compile(f, body, x64.NewMachine(), optimize.All, optimize.CheckNone, &sink)
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Errors())
	}
	if len(code) == 0 {
		t.Fatal("expected non-empty assembled code for a For loop")
	}
}

func TestNoarchRecordsCompiledForm(t *testing.T) {
	f := ir.NewFunc()
	v := f.NewVar(ir.Int32)
	body := []ir.Node{
		f.Assign(f.VarNode(v), f.Binary(ir.Int32, ir.Add2, f.ConstInt(ir.Int32, 2), f.ConstInt(ir.Int32, 3))),
	}
	var sink diag.Sink
	optimized := arch.Noarch(f, body, optimize.All, optimize.CheckNone, &sink)
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Errors())
	}
	if len(optimized) != 1 || len(f.Compiled(ir.NoArch)) != 1 {
		t.Fatal("expected the portable compiled form recorded on the Func")
	}
	if src := optimized[0].Child(1); src.Type() != ir.ConstType || src.ConstInt() != 5 {
		t.Fatalf("expected 2+3 folded to 5, got %v", optimized[0].Child(1))
	}
}
