// Package arch defines the interface every architecture backend
// (arch/x64, arch/arm64) implements, and the orchestrator that drives a
// Func through optimize, cfg, regalloc, and the backend in sequence.
package arch

import (
	"github.com/onejit/onejit/cfg"
	"github.com/onejit/onejit/diag"
	"github.com/onejit/onejit/ir"
	"github.com/onejit/onejit/optimize"
	"github.com/onejit/onejit/regalloc"
)

// ABI selects the calling convention a backend hints parameter and result
// registers for. This library does not implement full ABI-compliant call
// frames; the ABI only steers register-allocation hints.
type ABI uint8

const (
	// ABIAuto picks the target's default convention (SysV for x64 here).
	ABIAuto ABI = iota
	ABISysV
	ABIWindows
)

// Machine is one architecture's lowering and encoding strategy.
type Machine interface {
	// Lower rewrites body's IR nodes into this architecture's own
	// instruction representation, returning the virtual-register count
	// the allocator should size its interference graph to. checks marks
	// which operations (division, memory access) must never be lowered
	// as if they were side-effect-free, even when their result is unused.
	Lower(f *ir.Func, body []ir.Node, g *cfg.Graph, checks optimize.Check, sink *diag.Sink) (numVRegs int)

	// BuildInterference populates the interference graph from the
	// lowering's live ranges.
	BuildInterference(g *regalloc.Graph)

	// Hints returns the calling-convention register preferences lowering
	// attached per virtual register, for regalloc.Color to prefer.
	Hints() regalloc.Hints

	// Encode assigns colors to the lowered instructions and emits final
	// machine code.
	Encode(colors []int, sink *diag.Sink) []byte
}

// Noarch runs the architecture-independent half of the pipeline: the
// optimizer over each root statement, with the result recorded as f's
// ir.NoArch compiled form. It is the portable lowering every target
// compilation starts from, and is also usable on its own by callers that
// only want simplified IR back.
func Noarch(f *ir.Func, body []ir.Node, flags optimize.Flags, checks optimize.Check, sink *diag.Sink) []ir.Node {
	opt := optimize.New(f, sink, flags, checks)
	optimized := make([]ir.Node, len(body))
	for i, s := range body {
		optimized[i], _ = opt.Run(s)
	}
	f.SetCompiled(ir.NoArch, optimized)
	return optimized
}

// Compile runs body through the full pipeline: optimize, flattening of
// structured control flow (If/For) into linear Label/Goto/JumpIf form,
// control-flow analysis, machine-specific lowering, register allocation,
// and encoding. It returns the assembled bytes; diagnostics from any
// stage are visible via sink.
func Compile(f *ir.Func, body []ir.Node, m Machine, flags optimize.Flags, checks optimize.Check, sink *diag.Sink) []byte {
	if !f.Good() {
		sink.Add(diag.OutOfMemory, diag.NoNode, "arch: Compile called on a poisoned Func")
		return nil
	}
	optimized := Noarch(f, body, flags, checks, sink)
	linear := Flatten(f, optimized)

	graph := cfg.Build(linear)

	numVRegs := m.Lower(f, linear, graph, checks, sink)
	ig := regalloc.NewGraph(numVRegs)
	m.BuildInterference(ig)
	result := regalloc.Color(ig, m.Hints())

	return m.Encode(result.Color, sink)
}
