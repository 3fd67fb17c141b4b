// Package arm64 is the aarch64 arch.Machine peer to arch/x64. It defines
// register-number constants only; it has no virtual-register or
// instruction types, and both Lower and Encode report a diagnostic rather
// than emitting wrong bytes.
package arm64

import (
	"github.com/onejit/onejit/cfg"
	"github.com/onejit/onejit/diag"
	"github.com/onejit/onejit/ir"
	"github.com/onejit/onejit/optimize"
	"github.com/onejit/onejit/regalloc"
)

// Reg is a physical aarch64 general-purpose register, 0..30 (w0..w30 or
// x0..x30 depending on operand width) plus the zero/stack register.
type Reg uint8

const (
	X0 Reg = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
)

const (
	// SP is the stack pointer; WZR is the hardware zero register.
	SP  Reg = 31
	WZR Reg = 32
)

// Machine is the aarch64 arch.Machine implementation. It lowers nothing,
// so its virtual-register count stays zero; Lower and Encode report
// diagnostics rather than silently producing incorrect code.
type Machine struct {
	numVRegs int
}

// NewMachine returns a fresh, largely unimplemented aarch64 backend.
func NewMachine() *Machine { return &Machine{} }

// Lower implements arch.Machine. Every statement is currently reported as
// unsupported; a real lowering pass, adapted to aarch64's three-operand
// instruction shapes, is future work. checks is accepted to satisfy
// arch.Machine but unused until lowering exists.
func (m *Machine) Lower(f *ir.Func, body []ir.Node, g *cfg.Graph, checks optimize.Check, sink *diag.Sink) int {
	for range body {
		sink.Add(diag.MalformedInput, diag.NoNode, "arm64: lowering is not implemented")
	}
	return m.numVRegs
}

// BuildInterference implements arch.Machine. With no lowering, there are
// no virtual registers to connect.
func (m *Machine) BuildInterference(g *regalloc.Graph) {}

// Hints implements arch.Machine. With no lowering, no register
// preferences exist yet.
func (m *Machine) Hints() regalloc.Hints { return nil }

// Encode implements arch.Machine.
func (m *Machine) Encode(colors []int, sink *diag.Sink) []byte {
	sink.Add(diag.EncodingError, diag.NoNode, "arm64: encoding is not implemented")
	return nil
}
