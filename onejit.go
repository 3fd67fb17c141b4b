// Package onejit ties the pipeline together: build IR with ir.Func, then
// hand a function body to a Compiler targeting one of the
// arch backends. Everything else (ir, eval, optimize, cfg, regalloc,
// arch/...) is usable standalone for anyone who wants to drive the
// pipeline by hand.
package onejit

import (
	"github.com/onejit/onejit/arch"
	"github.com/onejit/onejit/diag"
	"github.com/onejit/onejit/ir"
	"github.com/onejit/onejit/optimize"
)

// Flag selects which optimizer rewrite groups a Compiler applies.
type Flag = optimize.Flags

const (
	ConstantFolding         = optimize.ConstantFolding
	AlgebraicSimplification = optimize.AlgebraicSimplification
	Canonicalization        = optimize.Canonicalization
	AllOptimizations        = optimize.All

	// ExprSimplification groups the two rewrite passes beyond plain
	// folding, for callers that don't care to toggle them separately.
	ExprSimplification = optimize.AlgebraicSimplification | optimize.Canonicalization
)

// Check selects which operations a Compiler must never treat as
// side-effect-free, independent of which Flag rewrites it applies.
type Check = optimize.Check

const (
	CheckDivisionByZero    = optimize.CheckDivisionByZero
	CheckNullPointerAccess = optimize.CheckNullPointerAccess
	CheckNone              = optimize.CheckNone
	CheckAll               = optimize.CheckAll
)

// ABI selects the calling convention backends hint parameter and result
// registers for; see arch.ABI.
type ABI = arch.ABI

const (
	ABIAuto    = arch.ABIAuto
	ABISysV    = arch.ABISysV
	ABIWindows = arch.ABIWindows
)

// Func re-exports ir.Func so callers building IR never need to import the
// ir package directly just to hold a reference.
type Func = ir.Func

// NewFunc returns an empty Func ready to build IR into.
func NewFunc() *Func { return ir.NewFunc() }

// Assembler is anything that turns a linearized Func body into machine
// code, matching arch.Machine. x64.NewMachine and arm64.NewMachine both
// satisfy it.
type Assembler = arch.Machine

// Compiler drives one Func's body through optimize, control-flow
// analysis, register allocation, and a target Assembler.
type Compiler struct {
	Target Assembler
	Flags  Flag
	Checks Check
}

// NewCompiler returns a Compiler targeting m with the given optimizer
// flags and no extra side-effect checks. Use NewCompilerWithChecks to
// enable CheckDivisionByZero or CheckNullPointerAccess.
func NewCompiler(m Assembler, flags Flag) *Compiler {
	return &Compiler{Target: m, Flags: flags, Checks: CheckNone}
}

// NewCompilerWithChecks returns a Compiler targeting m with the given
// optimizer flags and side-effect checks.
func NewCompilerWithChecks(m Assembler, flags Flag, checks Check) *Compiler {
	return &Compiler{Target: m, Flags: flags, Checks: checks}
}

// CompilePortable runs only the architecture-independent half of the
// pipeline: the optimizer over body, recording the result as f's
// ir.NoArch compiled form and returning it. Target compilation (Compile)
// performs this same step first.
func (c *Compiler) CompilePortable(f *Func, body []ir.Node, sink *diag.Sink) []ir.Node {
	return arch.Noarch(f, body, c.Flags, c.Checks, sink)
}

// Compile assembles body, f's top-level statement list, and returns the
// resulting machine code. Structured If/For statements are flattened into
// linear jump form on the way through (see arch.Flatten). Diagnostics
// from any stage are recorded in sink rather than returned as an error,
// so a caller can inspect every problem found across the whole pipeline
// instead of only the first.
func (c *Compiler) Compile(f *Func, body []ir.Node, sink *diag.Sink) []byte {
	return arch.Compile(f, body, c.Target, c.Flags, c.Checks, sink)
}
