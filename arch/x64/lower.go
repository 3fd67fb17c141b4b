package x64

import (
	"github.com/onejit/onejit/arch"
	"github.com/onejit/onejit/cfg"
	"github.com/onejit/onejit/diag"
	"github.com/onejit/onejit/ir"
	"github.com/onejit/onejit/optimize"
	"github.com/onejit/onejit/regalloc"
)

// Machine is the x86-64 arch.Machine implementation.
type Machine struct {
	abi     arch.ABI
	instrs  []Instruction
	varVReg map[uint32]VReg
	nextReg VReg
	hints   regalloc.Hints

	// checks records which operations Lower was told must never be
	// treated as side-effect-free. It is not yet consumed by any
	// correctness-critical lowering decision (this backend doesn't lower
	// Quo/Rem yet), but is plumbed through so a future instruction
	// selection pass can consult it without a signature change.
	checks optimize.Check

	// liveFrom/liveTo record each VReg's [def, last use] instruction index
	// range, an approximation of true liveness that treats the
	// instruction stream as straight-line code. It is conservative for
	// acyclic control flow and only under-conservative across backward
	// (loop) edges; it is not a full backward dataflow liveness pass.
	liveFrom []int
	liveTo   []int
}

// NewMachine returns a fresh x86-64 backend using the target's default
// calling convention for register hints.
func NewMachine() *Machine { return NewMachineABI(arch.ABIAuto) }

// NewMachineABI returns a fresh x86-64 backend hinting parameter and
// result registers per the given calling convention.
func NewMachineABI(abi arch.ABI) *Machine {
	return &Machine{abi: abi, varVReg: map[uint32]VReg{}, hints: regalloc.Hints{}}
}

// Reset clears m for reuse by the next compilation.
func (m *Machine) Reset() {
	m.instrs = m.instrs[:0]
	m.varVReg = map[uint32]VReg{}
	m.nextReg = 0
	m.hints = regalloc.Hints{}
	m.liveFrom = m.liveFrom[:0]
	m.liveTo = m.liveTo[:0]
}

// Hints implements arch.Machine.
func (m *Machine) Hints() regalloc.Hints { return m.hints }

func (m *Machine) vregFor(v ir.Var) VReg {
	if r, ok := m.varVReg[v.ID()]; ok {
		return r
	}
	r := m.alloc()
	m.varVReg[v.ID()] = r
	return r
}

func (m *Machine) alloc() VReg {
	r := m.nextReg
	m.nextReg++
	m.liveFrom = append(m.liveFrom, -1)
	m.liveTo = append(m.liveTo, -1)
	return r
}

// emit appends in and records every operand register's liveness at the
// new instruction's index.
func (m *Machine) emit(in Instruction) int {
	idx := len(m.instrs)
	m.instrs = append(m.instrs, in)
	m.touchOperand(in.Dst, idx)
	m.touchOperand(in.Src, idx)
	return idx
}

func (m *Machine) touch(r VReg, idx int) {
	if m.liveFrom[r] == -1 || idx < m.liveFrom[r] {
		m.liveFrom[r] = idx
	}
	if idx > m.liveTo[r] {
		m.liveTo[r] = idx
	}
}

func (m *Machine) touchOperand(o Operand, idx int) {
	switch o.Form {
	case FormReg:
		m.touch(o.Reg, idx)
	case FormMem:
		m.touch(o.Base, idx)
		if o.Index != NoVReg {
			m.touch(o.Index, idx)
		}
	}
}

func is64(k ir.Kind) bool { return k.Bits() == 64 }

// Lower implements arch.Machine.
func (m *Machine) Lower(f *ir.Func, body []ir.Node, g *cfg.Graph, checks optimize.Check, sink *diag.Sink) int {
	m.checks = checks
	for _, s := range body {
		m.lowerStmt(s, sink)
	}
	return int(m.nextReg)
}

func (m *Machine) lowerStmt(s ir.Node, sink *diag.Sink) {
	switch s.Type() {
	case ir.LabelType:
		m.emit(Instruction{Kind: LabelMark, Label: s.AsLabel()})
	case ir.Stmt0:
		if s.Op() != ir.Fallthrough {
			sink.Add(diag.MalformedInput, diag.NoNode, "x64: unsupported Stmt0 op "+s.Op().String())
		}
	case ir.Stmt1:
		switch s.Op() {
		case ir.Goto:
			m.emit(Instruction{Kind: Jmp, Label: s.Child(0).AsLabel()})
		case ir.Inc:
			m.lowerIncDec(Inc, s.Child(0), sink)
		case ir.Dec:
			m.lowerIncDec(Dec, s.Child(0), sink)
		default:
			sink.Add(diag.MalformedInput, diag.NoNode, "x64: unsupported Stmt1 op "+s.Op().String())
		}
	case ir.Stmt2:
		switch op := s.Op(); {
		case op == ir.Assign:
			m.lowerAssign(s.Child(0), s.Child(1), sink)
		case op >= ir.AssignAdd && op <= ir.AssignShr:
			m.lowerAssignOp(op, s.Child(0), s.Child(1), sink)
		case op == ir.JumpIf:
			m.lowerJumpIf(s.Child(0), s.Child(1).AsLabel(), sink)
		default:
			sink.Add(diag.MalformedInput, diag.NoNode, "x64: unsupported Stmt2 op "+s.Op().String())
		}
	case ir.StmtN:
		switch s.Op() {
		case ir.Block:
			for i := 0; i < s.Len(); i++ {
				m.lowerStmt(s.Child(i), sink)
			}
		case ir.Return:
			m.lowerReturn(s, sink)
		case ir.AssignCall:
			m.lowerAssignCall(s, sink)
		default:
			sink.Add(diag.MalformedInput, diag.NoNode, "x64: unsupported StmtN op "+s.Op().String())
		}
	default:
		sink.Add(diag.MalformedInput, diag.NoNode, "x64: unsupported statement type "+s.Type().String())
	}
}

// assignBinOp maps an op-assign statement operator to the Alu operator
// implementing it in place.
var assignBinOp = map[ir.Op]ir.Op{
	ir.AssignAdd: ir.Add2, ir.AssignSub: ir.Sub, ir.AssignMul: ir.Mul2,
	ir.AssignAnd: ir.And2, ir.AssignOr: ir.Or2, ir.AssignXor: ir.Xor2,
	ir.AssignShl: ir.Shl, ir.AssignShr: ir.Shr,
}

// aluOp reports whether the Alu instruction kind can implement op.
func aluOp(op ir.Op) bool {
	switch op {
	case ir.Add2, ir.Sub, ir.Mul2, ir.And2, ir.Or2, ir.Xor2, ir.Shl, ir.Shr:
		return true
	}
	return false
}

func (m *Machine) lowerIncDec(kind InstrKind, target ir.Node, sink *diag.Sink) {
	place, ok := m.lowerPlace(target, sink)
	if !ok {
		return
	}
	m.emit(Instruction{Kind: kind, Dst: place, W: is64(target.Kind())})
}

// lowerPlace lowers an assignable location: a Var or a Mem reference.
func (m *Machine) lowerPlace(n ir.Node, sink *diag.Sink) (Operand, bool) {
	switch n.Type() {
	case ir.VarType:
		return RegOp(m.vregFor(n.AsVar())), true
	case ir.MemType:
		return m.memOperand(n, sink)
	default:
		sink.Add(diag.MalformedInput, diag.NoNode, "x64: assignment target must be a Var or Mem, got "+n.Type().String())
		return Operand{}, false
	}
}

// lowerValue lowers an expression into a form the ISA accepts as a source
// operand: a Var, Mem or Const passes through; anything else is
// materialized into a fresh virtual register.
func (m *Machine) lowerValue(e ir.Node, sink *diag.Sink) Operand {
	switch e.Type() {
	case ir.VarType:
		return RegOp(m.vregFor(e.AsVar()))
	case ir.ConstType:
		if e.Kind().IsFloat() {
			sink.Add(diag.MalformedInput, diag.NoNode, "x64: float constants are not supported")
			return RegOp(m.alloc())
		}
		return ImmOp(e.ConstInt())
	case ir.MemType:
		op, _ := m.memOperand(e, sink)
		return op
	case ir.Binary:
		return m.materializeBinary(e, sink)
	case ir.Tuple:
		return m.materializeTuple(e, sink)
	default:
		sink.Add(diag.MalformedInput, diag.NoNode, "x64: unsupported expression type "+e.Type().String())
		return RegOp(m.alloc())
	}
}

// toVar forces o into a register, emitting a Mov into a fresh virtual
// register unless it already is one.
func (m *Machine) toVar(o Operand, w bool) Operand {
	if o.Form == FormReg {
		return o
	}
	r := RegOp(m.alloc())
	m.emit(Instruction{Kind: Mov, Dst: r, Src: o, W: w})
	return r
}

// toVarConst passes registers and immediates through and forces anything
// else into a register.
func (m *Machine) toVarConst(o Operand, w bool) Operand {
	if o.Form == FormReg || o.Form == FormImm {
		return o
	}
	return m.toVar(o, w)
}

// toVarMemConst passes registers, memory references and immediates
// through; only a non-operand form would be forced, and lowerValue never
// produces one, so this mostly documents the operand contract.
func (m *Machine) toVarMemConst(o Operand, w bool) Operand {
	if o.Form == FormReg || o.Form == FormMem || o.Form == FormImm {
		return o
	}
	return m.toVar(o, w)
}

// materializeBinary computes a Binary expression into a fresh register:
// mov dst, x then "dst op= y", evaluating x before y.
func (m *Machine) materializeBinary(e ir.Node, sink *diag.Sink) Operand {
	op := e.Op()
	if !aluOp(op) {
		sink.Add(diag.MalformedInput, diag.NoNode, "x64: unsupported binary op "+op.String())
		return RegOp(m.alloc())
	}
	w := is64(e.Kind())
	x := m.lowerValue(e.Child(0), sink)
	y := m.lowerValue(e.Child(1), sink)
	dst := RegOp(m.alloc())
	m.emit(Instruction{Kind: Mov, Dst: dst, Src: x, W: w})
	m.emitAlu(op, dst, y, w, e.Kind().IsSigned(), sink)
	return dst
}

// materializeTuple computes an n-ary associative Tuple (Add/Mul/And/Or/
// Xor) into a fresh register by chaining two-operand ALU instructions.
func (m *Machine) materializeTuple(e ir.Node, sink *diag.Sink) Operand {
	binop, ok := tupleBinOp[e.Op()]
	if !ok || e.Len() == 0 {
		sink.Add(diag.MalformedInput, diag.NoNode, "x64: unsupported tuple op "+e.Op().String())
		return RegOp(m.alloc())
	}
	w := is64(e.Kind())
	dst := RegOp(m.alloc())
	m.emit(Instruction{Kind: Mov, Dst: dst, Src: m.lowerValue(e.Child(0), sink), W: w})
	for i := 1; i < e.Len(); i++ {
		m.emitAlu(binop, dst, m.lowerValue(e.Child(i), sink), w, e.Kind().IsSigned(), sink)
	}
	return dst
}

var tupleBinOp = map[ir.Op]ir.Op{
	ir.Add: ir.Add2, ir.Mul: ir.Mul2, ir.And: ir.And2, ir.Or: ir.Or2, ir.Xor: ir.Xor2,
}

// emitAlu emits "dst op= src", enforcing the two-operand memory constraint
// and the immediate-only shift count this encoder supports.
func (m *Machine) emitAlu(op ir.Op, dst, src Operand, w, signed bool, sink *diag.Sink) {
	if (op == ir.Shl || op == ir.Shr) && src.Form != FormImm {
		sink.Add(diag.MalformedInput, diag.NoNode, "x64: shift counts must be constant")
		return
	}
	if op == ir.Mul2 && dst.Form == FormMem {
		// IMUL cannot target memory: multiply in a register, then store.
		tmp := m.toVar(dst, w)
		m.emit(Instruction{Kind: Alu, Op: op, Dst: tmp, Src: src, W: w, Signed: signed})
		m.emit(Instruction{Kind: Mov, Dst: dst, Src: tmp, W: w})
		return
	}
	if dst.Form == FormMem && src.Form == FormMem {
		src = m.toVarConst(src, w)
	}
	m.emit(Instruction{Kind: Alu, Op: op, Dst: dst, Src: src, W: w, Signed: signed})
}

func (m *Machine) lowerAssign(dst, src ir.Node, sink *diag.Sink) {
	// "v = v op e" collapses to a single in-place ALU instruction when the
	// destination variable is one of the operands.
	if dst.Type() == ir.VarType && src.Type() == ir.Binary && aluOp(src.Op()) {
		v := dst.AsVar()
		other, ok := ir.Node{}, false
		if sameVar(src.Child(0), v) {
			other, ok = src.Child(1), true
		} else if src.Op().IsCommutative() && sameVar(src.Child(1), v) {
			other, ok = src.Child(0), true
		}
		if ok {
			w := is64(src.Kind())
			y := m.toVarMemConst(m.lowerValue(other, sink), w)
			m.emitAlu(src.Op(), RegOp(m.vregFor(v)), y, w, src.Kind().IsSigned(), sink)
			return
		}
	}

	// An Add tuple shaped like an x86 effective address becomes LEA.
	if dst.Type() == ir.VarType && src.Type() == ir.Tuple && src.Op() == ir.Add {
		if mem, ok := m.leaOperand(src); ok {
			m.emit(Instruction{Kind: Lea, Dst: RegOp(m.vregFor(dst.AsVar())), Src: mem, W: is64(src.Kind())})
			return
		}
	}

	// src lowers before dst so its side effects sequence first.
	w := is64(src.Kind())
	srcOp := m.toVarMemConst(m.lowerValue(src, sink), w)
	dstOp, ok := m.lowerPlace(dst, sink)
	if !ok {
		return
	}
	if dstOp.Form == FormMem && srcOp.Form == FormMem {
		srcOp = m.toVar(srcOp, w)
	}
	m.emit(Instruction{Kind: Mov, Dst: dstOp, Src: srcOp, W: w})
}

func sameVar(n ir.Node, v ir.Var) bool {
	return n.Type() == ir.VarType && n.AsVar() == v
}

func (m *Machine) lowerAssignOp(op ir.Op, dst, src ir.Node, sink *diag.Sink) {
	binop, ok := assignBinOp[op]
	if !ok {
		// AssignQuo/AssignRem need the IDIV fixed-register pair this
		// backend doesn't model yet.
		sink.Add(diag.MalformedInput, diag.NoNode, "x64: unsupported op-assign "+op.String())
		return
	}
	w := is64(dst.Kind())
	srcOp := m.toVarMemConst(m.lowerValue(src, sink), w)
	dstOp, ok := m.lowerPlace(dst, sink)
	if !ok {
		return
	}
	m.emitAlu(binop, dstOp, srcOp, w, dst.Kind().IsSigned(), sink)
}

func (m *Machine) lowerJumpIf(cond ir.Node, label *ir.Label, sink *diag.Sink) {
	if cond.Type() != ir.Binary || !cond.Op().IsComparison() {
		sink.Add(diag.MalformedInput, diag.NoNode, "x64: JumpIf condition must be a comparison")
		return
	}
	k := cond.Child(0).Kind()
	w := is64(k)
	x := m.lowerValue(cond.Child(0), sink)
	y := m.lowerValue(cond.Child(1), sink)
	if x.Form == FormImm {
		x = m.toVar(x, w)
	}
	if x.Form == FormMem && y.Form == FormMem {
		y = m.toVarConst(y, w)
	}
	m.emit(Instruction{Kind: Cmp, Dst: x, Src: y, W: w})
	m.emit(Instruction{Kind: Jcc, Label: label, Op: cond.Op(), Signed: k.IsSigned()})
}

func (m *Machine) lowerReturn(s ir.Node, sink *diag.Sink) {
	if s.Len() > 0 {
		// The first return value is moved into a register hinted to the
		// convention's result register; additional values have no
		// register-convention home here.
		v := m.toVar(m.lowerValue(s.Child(0), sink), is64(s.Child(0).Kind()))
		m.hints[int(v.Reg)] = resultColor
		for i := 1; i < s.Len(); i++ {
			m.toVar(m.lowerValue(s.Child(i), sink), is64(s.Child(i).Kind()))
		}
	}
	m.emit(Instruction{Kind: Ret})
}

// lowerAssignCall lowers "results... = fn(args...)": arguments move into
// registers hinted to the convention's parameter registers, the call
// itself is a relative Call to fn's label, and the first result variable
// is defined at the call with a result-register hint.
func (m *Machine) lowerAssignCall(s ir.Node, sink *diag.Sink) {
	if s.Len() < 2 {
		sink.Add(diag.MalformedInput, diag.NoNode, "x64: malformed call statement")
		return
	}
	ftype := s.Child(0)
	fn := s.Child(1)
	if ftype.Type() != ir.Ftype {
		sink.Add(diag.MalformedInput, diag.NoNode, "x64: call statement must carry a function type")
		return
	}
	if fn.Type() != ir.LabelType {
		sink.Add(diag.MalformedInput, diag.NoNode, "x64: call target must be a label")
		return
	}
	nres := len(ftype.ResultKinds())
	if s.Len() < 2+nres {
		sink.Add(diag.MalformedInput, diag.NoNode, "x64: call statement is missing result variables")
		return
	}

	argColors := paramColors(m.abi)
	var argRegs []VReg
	for i := 2 + nres; i < s.Len(); i++ {
		a := s.Child(i)
		v := m.toVar(m.lowerValue(a, sink), is64(a.Kind()))
		if n := len(argRegs); n < len(argColors) {
			m.hints[int(v.Reg)] = argColors[n]
		}
		argRegs = append(argRegs, v.Reg)
	}

	idx := m.emit(Instruction{Kind: Call, Label: fn.AsLabel()})
	for _, r := range argRegs {
		m.touch(r, idx)
	}
	if nres > 0 {
		res := s.Child(2)
		if res.Type() != ir.VarType {
			sink.Add(diag.MalformedInput, diag.NoNode, "x64: call result target must be a Var")
			return
		}
		d := m.vregFor(res.AsVar())
		m.hints[int(d)] = resultColor
		m.touch(d, idx)
	}
}

// leaOperand recognizes an Add tuple addressable as base+index*scale+disp:
// at most two variables (the second optionally scaled by a constant 1, 2,
// 4 or 8 multiplication) plus any number of constants folded into the
// displacement.
func (m *Machine) leaOperand(e ir.Node) (Operand, bool) {
	base, index := NoVReg, NoVReg
	scale := uint8(1)
	disp := int64(0)
	for i := 0; i < e.Len(); i++ {
		c := e.Child(i)
		switch {
		case c.Type() == ir.VarType:
			if base == NoVReg {
				base = m.vregFor(c.AsVar())
			} else if index == NoVReg {
				index = m.vregFor(c.AsVar())
			} else {
				return Operand{}, false
			}
		case c.Type() == ir.ConstType && c.Kind().IsInt():
			disp += c.ConstInt()
		case index == NoVReg && isScaledVar(c):
			v, s := scaledVar(c)
			index = m.vregFor(v)
			scale = s
		default:
			return Operand{}, false
		}
	}
	if base == NoVReg || disp < -1<<31 || disp >= 1<<31 {
		return Operand{}, false
	}
	if index == NoVReg {
		return MemOp(base, int32(disp)), true
	}
	return MemIndexOp(base, index, scale, int32(disp)), true
}

func isScaledVar(n ir.Node) bool {
	_, s := scaledVar(n)
	return s != 0
}

// scaledVar matches "v * c" (binary or two-element tuple) where c is one
// of the hardware scales; it returns scale 0 on no match.
func scaledVar(n ir.Node) (ir.Var, uint8) {
	var x, y ir.Node
	switch {
	case n.Type() == ir.Binary && n.Op() == ir.Mul2:
		x, y = n.Child(0), n.Child(1)
	case n.Type() == ir.Tuple && n.Op() == ir.Mul && n.Len() == 2:
		x, y = n.Child(0), n.Child(1)
	default:
		return ir.Var{}, 0
	}
	if x.Type() != ir.VarType || y.Type() != ir.ConstType {
		x, y = y, x
	}
	if x.Type() != ir.VarType || y.Type() != ir.ConstType || !y.Kind().IsInt() {
		return ir.Var{}, 0
	}
	switch y.ConstInt() {
	case 1, 2, 4, 8:
		return x.AsVar(), uint8(y.ConstInt())
	}
	return ir.Var{}, 0
}

// memOperand lowers a Mem node's children (base Var, then optionally a
// constant displacement, an index Var, and a constant scale) into a
// memory operand.
func (m *Machine) memOperand(n ir.Node, sink *diag.Sink) (Operand, bool) {
	if n.Len() < 1 || n.Child(0).Type() != ir.VarType {
		sink.Add(diag.MalformedInput, diag.NoNode, "x64: memory reference needs a base variable")
		return Operand{}, false
	}
	op := MemOp(m.vregFor(n.Child(0).AsVar()), 0)
	if n.Len() > 1 {
		d := n.Child(1)
		if d.Type() != ir.ConstType || !d.Kind().IsInt() {
			sink.Add(diag.MalformedInput, diag.NoNode, "x64: memory displacement must be an integer constant")
			return Operand{}, false
		}
		op.Disp = int32(d.ConstInt())
	}
	if n.Len() > 2 {
		idx := n.Child(2)
		if idx.Type() != ir.VarType {
			sink.Add(diag.MalformedInput, diag.NoNode, "x64: memory index must be a variable")
			return Operand{}, false
		}
		op.Index = m.vregFor(idx.AsVar())
	}
	if n.Len() > 3 {
		s := n.Child(3)
		if s.Type() != ir.ConstType {
			sink.Add(diag.MalformedInput, diag.NoNode, "x64: memory scale must be a constant")
			return Operand{}, false
		}
		switch s.ConstInt() {
		case 1, 2, 4, 8:
			op.Scale = uint8(s.ConstInt())
		default:
			sink.Add(diag.MalformedInput, diag.NoNode, "x64: memory scale must be 1, 2, 4 or 8")
			return Operand{}, false
		}
	}
	return op, true
}

// BuildInterference implements arch.Machine: two virtual registers
// interfere if their approximate [def, last use] ranges overlap.
func (m *Machine) BuildInterference(g *regalloc.Graph) {
	n := int(m.nextReg)
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			if m.liveFrom[a] == -1 || m.liveFrom[b] == -1 {
				continue
			}
			if m.liveFrom[a] <= m.liveTo[b] && m.liveFrom[b] <= m.liveTo[a] {
				g.AddEdge(a, b)
			}
		}
	}
}
