// Package x64 lowers linearized IR into x86-64 machine instructions and
// assembles those instructions into real opcode bytes: a left-to-right
// operand lowering pass feeding a find-then-emit instruction encoder that
// builds up the REX/ModRM/SIB bytes each instruction kind needs.
package x64

import "github.com/onejit/onejit/arch"

// Reg is a physical x86-64 general-purpose register, 0..15 matching the
// hardware encoding (RAX=0 .. R15=15); REX.B/R/X extend ModRM/SIB fields
// that would otherwise only reach registers 0..7.
type Reg uint8

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

var regNames = [...]string{
	RAX: "rax", RCX: "rcx", RDX: "rdx", RBX: "rbx", RSP: "rsp", RBP: "rbp",
	RSI: "rsi", RDI: "rdi", R8: "r8", R9: "r9", R10: "r10", R11: "r11",
	R12: "r12", R13: "r13", R14: "r14", R15: "r15",
}

func (r Reg) String() string { return regNames[r&0xF] }

// colorToReg maps a regalloc color (0..NumColors-1) to a physical
// register, reserving RSP/RBP for the stack and frame pointer the way a
// typical calling convention does.
var colorToReg = [...]Reg{RAX, RCX, RDX, RBX, RSI, RDI, R8, R9, R10, R11, R12, R13, R14, R15}

func regFromColor(color int) Reg {
	if color < 0 || color >= len(colorToReg) {
		return RAX
	}
	return colorToReg[color]
}

// resultColor is the allocator color of the calling convention's integer
// result register (RAX) in colorToReg.
const resultColor = 0

// paramColors lists the allocator colors of the convention's integer
// parameter registers, in argument order. This is the stub calling
// convention hook: it steers register hints only, not stack argument or
// shadow-space layout.
func paramColors(abi arch.ABI) []int {
	if abi == arch.ABIWindows {
		return []int{1, 2, 6, 7} // RCX, RDX, R8, R9
	}
	return []int{5, 4, 2, 1, 6, 7} // RDI, RSI, RDX, RCX, R8, R9 (SysV)
}
