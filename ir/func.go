package ir

import (
	"github.com/onejit/onejit/codebuf"
	"github.com/onejit/onejit/diag"
)

// alignNode is the alignment, in 32-bit items, every indirect node's
// header is padded to start at. It guarantees that the relative offset
// between any two node headers is itself a multiple of alignNode, which
// in turn guarantees a real relative-offset child word can never collide
// with the small sentinel/tag values (<=3, or odd, or ==2 mod 4) that mark
// a direct leaf. See node.go's decodeChild/childWord for the encoding this
// protects.
const alignNode = 4

// Arch identifies a compilation target a Func can hold a compiled form
// for: the architecture-independent lowered form (NoArch) produced by the
// optimizer, or a machine-lowered form per backend.
type Arch uint8

const (
	NoArch Arch = iota
	X64
	Arm64

	numArchs
)

// Func builds and owns one compiled function's worth of IR: its code
// buffer, its variables, and its labels. A Func is reset and reused across
// compilations so that steady-state compilation does not allocate a fresh
// arena per function.
type Func struct {
	buf       *codebuf.Buffer
	nextVarID uint32
	labels    []*Label
	roots     []Node
	compiled  [numArchs][]Node
	sink      diag.Sink
}

// NewFunc returns an empty Func ready to build IR into.
func NewFunc() *Func {
	return &Func{buf: codebuf.New()}
}

// Reset clears f for reuse by the next compilation, retaining the
// underlying buffer pages.
func (f *Func) Reset() {
	f.buf.Reset()
	f.nextVarID = 0
	f.labels = f.labels[:0]
	f.roots = f.roots[:0]
	for i := range f.compiled {
		f.compiled[i] = nil
	}
	f.sink.Reset()
}

// Diagnostics returns the sink accumulating problems observed while
// building f, such as a constant of the wrong kind or too many variables.
func (f *Func) Diagnostics() *diag.Sink { return &f.sink }

// Good reports whether f can still be used to build more IR: its code
// buffer hasn't poisoned itself after a failed growth, and no diagnostic
// has been recorded against it. Every later stage (optimize.Run,
// arch.Compile) checks this at its boundary instead of threading a Go
// error through the pipeline.
func (f *Func) Good() bool { return !f.buf.Poisoned() && !f.sink.HasErrors() }

// Buffer returns the code buffer backing f. The pipeline stages in this
// module (cfg, regalloc, arch) do not append to it; the x64 backend keeps
// its lowered instructions in its own list.
func (f *Func) Buffer() *codebuf.Buffer { return f.buf }

// AddRoot registers n as a top-level statement of the function body, in
// order.
func (f *Func) AddRoot(n Node) { f.roots = append(f.roots, n) }

// Roots returns the function body's top-level statements.
func (f *Func) Roots() []Node { return f.roots }

// SetCompiled records the compiled root statements for a target. The
// NoArch slot holds the portable (optimized) form; each backend slot holds
// that machine's lowered form where the backend represents it as IR.
func (f *Func) SetCompiled(a Arch, roots []Node) { f.compiled[a] = roots }

// Compiled returns the compiled root statements previously recorded for a
// target, or nil if that target hasn't been compiled yet.
func (f *Func) Compiled(a Arch) []Node { return f.compiled[a] }

// NewVar mints a fresh, always-direct Var of the given kind.
func (f *Func) NewVar(k Kind) Var {
	id := f.nextVarID
	if id > maxDirectVarID {
		f.sink.Add(diag.MalformedInput, diag.NoNode, "ir: too many variables for a 24-bit id")
		id = maxDirectVarID
	} else {
		f.nextVarID++
	}
	return Var{kind: k, id: id}
}

// VarNode wraps v as a direct Node.
func (f *Func) VarNode(v Var) Node {
	return Node{f: f, off: directOff, raw: packVar(v)}
}

// NewLabel mints a fresh, unresolved Label. The returned pointer is
// stable: it stays valid however many labels are minted after it.
func (f *Func) NewLabel() *Label {
	l := &Label{index: uint32(len(f.labels))}
	f.labels = append(f.labels, l)
	return l
}

// LabelAt returns the Label with the given index, as minted by NewLabel.
func (f *Func) LabelAt(index uint32) *Label { return f.labels[index] }

// ConstInt returns a Node for a signed or unsigned integer constant,
// directly encoded when it fits in 27 bits, else stored indirectly.
func (f *Func) ConstInt(k Kind, v int64) Node {
	if !k.IsInt() && k != Bool {
		f.sink.Add(diag.MalformedInput, diag.NoNode, "ir: ConstInt: not an integer kind")
		return Node{}
	}
	if w, ok := packConst(k, v); ok {
		return Node{f: f, off: directOff, raw: w}
	}
	off := f.beginIndirect(ConstType, k, BadOp, false)
	if k.Bits() <= 32 {
		f.buf.AppendItems(uint32(int32(v)))
	} else {
		f.buf.AppendItems(uint32(v), uint32(v>>32))
	}
	return Node{f: f, off: off}
}

// ConstFloat returns an indirect Node for a floating-point constant.
// Floats are never directly encoded: even a zero value needs its IEEE-754
// bit pattern preserved exactly.
func (f *Func) ConstFloat(k Kind, v float64) Node {
	if !k.IsFloat() {
		f.sink.Add(diag.MalformedInput, diag.NoNode, "ir: ConstFloat: not a float kind")
		return Node{}
	}
	off := f.beginIndirect(ConstType, k, BadOp, false)
	if k == Float32 {
		f.buf.AppendItems(float32bits(v))
	} else {
		bits := float64bits(v)
		f.buf.AppendItems(uint32(bits), uint32(bits>>32))
	}
	return Node{f: f, off: off}
}

// beginIndirect pads the buffer to alignNode and writes a node header,
// returning its absolute offset. If withCount is true, a placeholder word
// for the child count follows the header, to be patched by the caller via
// Patch once all children are known.
func (f *Func) beginIndirect(t Type, k Kind, op Op, withCount bool) int32 {
	pad := (alignNode - f.buf.Len()%alignNode) % alignNode
	for i := 0; i < pad; i++ {
		f.buf.Append(0)
	}
	off := f.buf.Append(uint32(makeHeader(t, k, op)))
	if withCount {
		f.buf.Append(0)
	}
	return int32(off)
}

func (f *Func) appendChildren(parentOff int32, children []Node) {
	for _, c := range children {
		f.buf.Append(childWord(parentOff, c))
	}
}

func (f *Func) finishList(off int32, children []Node) Node {
	f.buf.Patch(int(off)+1, uint32(len(children)))
	f.appendChildren(off, children)
	return Node{f: f, off: off}
}

// Unary builds a one-operand expression node.
func (f *Func) Unary(k Kind, op Op, x Node) Node {
	off := f.beginIndirect(Unary, k, op, false)
	f.appendChildren(off, []Node{x})
	return Node{f: f, off: off}
}

// Binary builds a two-operand expression node.
func (f *Func) Binary(k Kind, op Op, x, y Node) Node {
	off := f.beginIndirect(Binary, k, op, false)
	f.appendChildren(off, []Node{x, y})
	return Node{f: f, off: off}
}

// Tuple builds a variadic expression node (Add, Mul, And, Or, Xor, Call,
// Comma).
func (f *Func) Tuple(k Kind, op Op, children ...Node) Node {
	off := f.beginIndirect(Tuple, k, op, true)
	return f.finishList(off, children)
}

// Mem builds a memory-reference node whose children are interpreted by an
// architecture-specific MemFormatter keyed on op (GenericMem, X86Mem,
// Arm64Mem, ...).
func (f *Func) Mem(k Kind, op Op, children ...Node) Node {
	off := f.beginIndirect(MemType, k, op, true)
	return f.finishList(off, children)
}

// --- Stmt0: valueless statements ---

func (f *Func) directStmt0(op Op) Node {
	return Node{f: f, off: directOff, raw: uint32(op)}
}

// Break returns the valueless break statement.
func (f *Func) Break() Node { return f.directStmt0(Break) }

// Continue returns the valueless continue statement.
func (f *Func) Continue() Node { return f.directStmt0(Continue) }

// Fallthrough returns the valueless fallthrough statement.
func (f *Func) Fallthrough() Node { return f.directStmt0(Fallthrough) }

// --- Stmt1 ---

func (f *Func) stmt1(op Op, x Node) Node {
	off := f.beginIndirect(Stmt1, Void, op, false)
	f.appendChildren(off, []Node{x})
	return Node{f: f, off: off}
}

// Goto builds an unconditional jump to a Label wrapped as a Node.
func (f *Func) Goto(label Node) Node { return f.stmt1(Goto, label) }

// Inc builds a variable increment statement.
func (f *Func) Inc(v Node) Node { return f.stmt1(Inc, v) }

// Dec builds a variable decrement statement.
func (f *Func) Dec(v Node) Node { return f.stmt1(Dec, v) }

// --- Stmt2 ---

func (f *Func) stmt2(op Op, x, y Node) Node {
	off := f.beginIndirect(Stmt2, Void, op, false)
	f.appendChildren(off, []Node{x, y})
	return Node{f: f, off: off}
}

// Assign builds a plain "x = y" statement.
func (f *Func) Assign(x, y Node) Node { return f.stmt2(Assign, x, y) }

// AssignOp builds a compound assignment ("x op= y"); op must be one of the
// AssignXxx operators.
func (f *Func) AssignOp(op Op, x, y Node) Node { return f.stmt2(op, x, y) }

// Case builds one switch case's (expr, body) pair.
func (f *Func) Case(expr, body Node) Node { return f.stmt2(Case, expr, body) }

// Default builds a switch's default body wrapper.
func (f *Func) Default(body Node) Node { return f.stmt2(Default, f.Fallthrough(), body) }

// JumpIf builds a conditional jump to label if cond is true.
func (f *Func) JumpIf(cond, label Node) Node { return f.stmt2(JumpIf, cond, label) }

// --- control-flow statements ---

// If builds an if/then/else statement; els may be the zero Node for a
// bodyless else.
func (f *Func) If(cond, then, els Node) Node {
	off := f.beginIndirect(Stmt3, Void, If, false)
	if !els.Valid() {
		els = f.Fallthrough()
	}
	f.appendChildren(off, []Node{cond, then, els})
	return Node{f: f, off: off}
}

// For builds a C-style for statement.
func (f *Func) For(init, cond, post, body Node) Node {
	off := f.beginIndirect(Stmt4, Void, For, false)
	f.appendChildren(off, []Node{init, cond, post, body})
	return Node{f: f, off: off}
}

// Block builds a statement sequence.
func (f *Func) Block(stmts ...Node) Node {
	off := f.beginIndirect(StmtN, Void, Block, true)
	return f.finishList(off, stmts)
}

// Return builds a return statement with zero or more result expressions.
func (f *Func) Return(values ...Node) Node {
	off := f.beginIndirect(StmtN, Void, Return, true)
	return f.finishList(off, values)
}

// Switch builds a switch statement over expr with the given Case/Default
// bodies.
func (f *Func) Switch(expr Node, cases ...Node) Node {
	off := f.beginIndirect(StmtN, Void, Switch, true)
	return f.finishList(off, append([]Node{expr}, cases...))
}

// AssignCall builds "results... = fn(args...)". ftype must be an Ftype
// node describing fn's signature; it is stored as the first child so later
// stages can recover the results/args split from its result count.
func (f *Func) AssignCall(ftype, fn Node, results, args []Node) Node {
	off := f.beginIndirect(StmtN, Void, AssignCall, true)
	children := make([]Node, 0, 2+len(results)+len(args))
	children = append(children, ftype, fn)
	children = append(children, results...)
	children = append(children, args...)
	return f.finishList(off, children)
}

// Cond builds a ternary-like "cond ? a : b" expression.
func (f *Func) Cond(k Kind, cond, a, b Node) Node {
	off := f.beginIndirect(StmtN, k, Cond, true)
	return f.finishList(off, []Node{cond, a, b})
}
