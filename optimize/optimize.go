// Package optimize implements the bottom-up, single-pass rewriter: constant
// folding plus algebraic simplification plus canonicalization, applied to
// an ir.Node tree in dependency order so that a fold performed on a child
// is visible to its parent's own simplification step. Which rewrite groups
// run is picked by an ordered set of toggleable Flags rather than one
// monolithic all-or-nothing pass.
package optimize

import (
	"github.com/onejit/onejit/diag"
	"github.com/onejit/onejit/ir"
)

// Flags selects which rewrite groups Run applies.
type Flags uint8

const (
	ConstantFolding Flags = 1 << iota
	AlgebraicSimplification
	Canonicalization

	All = ConstantFolding | AlgebraicSimplification | Canonicalization
)

// Check selects which operations must be treated as having a
// runtime-observable side effect even though Run itself performs no
// dead-code elimination: a Quo/Rem whose quotient is discarded can still
// trap on a zero divisor, and a Mem read can still fault on a bad address,
// so neither may be silently dropped by anything built on top of Result.Pure.
// Check is a separate bitmask from Flags because the two compose
// independently: a caller can fold constants and simplify algebra while
// still insisting that division and memory access are never treated as
// eliminable. Being a plain uint32-based type, it already supports the
// full &/|/^ operator set without any custom methods.
type Check uint32

const (
	CheckDivisionByZero Check = 1 << iota
	CheckNullPointerAccess

	CheckNone Check = 0
	CheckAll        = CheckDivisionByZero | CheckNullPointerAccess
)

// Result summarizes a single optimize call's outcome.
type Result struct {
	Same  bool // the returned node is identical to the input, no rewrite fired
	Pure  bool // the subtree has no side effect (safe to fold, reorder, or drop)
	Const bool // the returned node is itself a Const leaf
}

// Optimizer holds the mutable state of one optimization run: the flags
// selecting which rewrites apply, the checks marking which operations must
// never be treated as side-effect-free, the Func new (simplified) nodes
// are built into, and a diagnostic sink. Run records no diagnostics in the
// sink: an operation it cannot fold (e.g. a Bitcopy between unequal
// widths) is left unfolded.
type Optimizer struct {
	Flags  Flags
	Checks Check
	Dest   *ir.Func
	Sink   *diag.Sink
}

// New returns an Optimizer that folds and simplifies into dest, the same
// Func a Node tree was built in, using flags and checks.
func New(dest *ir.Func, sink *diag.Sink, flags Flags, checks Check) *Optimizer {
	return &Optimizer{Flags: flags, Checks: checks, Dest: dest, Sink: sink}
}

// Run recursively optimizes n bottom-up and returns the simplified node
// (possibly n itself) together with a Result describing it.
func (o *Optimizer) Run(n ir.Node) (ir.Node, Result) {
	if !o.Dest.Good() {
		return n, Result{Same: true}
	}
	switch n.Type() {
	case ir.VarType:
		return n, Result{Same: true, Pure: true}
	case ir.ConstType:
		return n, Result{Same: true, Pure: true, Const: true}
	case ir.LabelType:
		// A label is a jump-destination anchor: never pure, so nothing
		// built on Result.Pure may hoist or drop it.
		return n, Result{Same: true, Pure: false}
	case ir.Ftype, ir.Name:
		return n, Result{Same: true, Pure: true}
	case ir.Stmt0:
		return n, Result{Same: true, Pure: n.Op() != ir.Break && n.Op() != ir.Continue}
	case ir.Unary:
		return o.optimizeUnary(n)
	case ir.Binary:
		return o.optimizeBinary(n)
	case ir.Tuple:
		return o.optimizeTuple(n)
	case ir.MemType:
		return o.optimizeMem(n)
	default:
		return o.optimizeChildrenOnly(n)
	}
}

// optimizeMem optimizes a memory reference's address-expression children
// without rewriting the access itself. When CheckNullPointerAccess is set,
// the access is never reported as pure: a Mem read can fault, so nothing
// built on Result.Pure may treat it as droppable just because its value
// goes unused.
func (o *Optimizer) optimizeMem(n ir.Node) (ir.Node, Result) {
	result, r := o.optimizeChildrenOnly(n)
	if o.Checks&CheckNullPointerAccess != 0 {
		r.Pure = false
	}
	return result, r
}

// optimizeChildrenOnly rebuilds a statement node with each child optimized,
// without attempting any statement-level rewrite. Statements carry control
// flow and side effects that this package leaves to cfg/regalloc.
func (o *Optimizer) optimizeChildrenOnly(n ir.Node) (ir.Node, Result) {
	if n.Len() == 0 {
		return n, Result{Same: true}
	}
	children := make([]ir.Node, n.Len())
	same := true
	pure := true
	for i := range children {
		c, r := o.Run(n.Child(i))
		children[i] = c
		same = same && r.Same
		pure = pure && r.Pure
	}
	if same {
		return n, Result{Same: true, Pure: pure}
	}
	return o.rebuild(n, children), Result{Pure: pure}
}

// rebuild constructs a new node of n's Type/Kind/Op over the given
// (already-optimized) children, using the same constructor Func.go would
// have used to build n in the first place.
func (o *Optimizer) rebuild(n ir.Node, children []ir.Node) ir.Node {
	switch n.Type() {
	case ir.Stmt1:
		switch n.Op() {
		case ir.Goto:
			return o.Dest.Goto(children[0])
		case ir.Inc:
			return o.Dest.Inc(children[0])
		case ir.Dec:
			return o.Dest.Dec(children[0])
		default:
			return n
		}
	case ir.Stmt2:
		return o.Dest.AssignOp(n.Op(), children[0], children[1])
	case ir.Stmt3:
		return o.Dest.If(children[0], children[1], children[2])
	case ir.Stmt4:
		return o.Dest.For(children[0], children[1], children[2], children[3])
	case ir.StmtN:
		switch n.Op() {
		case ir.Block:
			return o.Dest.Block(children...)
		case ir.Return:
			return o.Dest.Return(children...)
		case ir.Switch:
			return o.Dest.Switch(children[0], children[1:]...)
		case ir.Cond:
			return o.Dest.Cond(n.Kind(), children[0], children[1], children[2])
		case ir.AssignCall:
			if len(children) < 2 || children[0].Type() != ir.Ftype {
				return n
			}
			nres := len(children[0].ResultKinds())
			if len(children) < 2+nres {
				return n
			}
			return o.Dest.AssignCall(children[0], children[1], children[2:2+nres], children[2+nres:])
		default:
			return n
		}
	case ir.Tuple:
		return o.Dest.Tuple(n.Kind(), n.Op(), children...)
	case ir.MemType:
		return o.Dest.Mem(n.Kind(), n.Op(), children...)
	default:
		return n
	}
}
