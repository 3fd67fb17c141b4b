package x64

import "github.com/onejit/onejit/ir"

// VReg is a virtual register produced by lowering, before allocation
// assigns it a physical Reg. It indexes directly into the interference
// Graph and the Color slice regalloc.Color returns.
type VReg int32

// NoVReg marks an absent register field (no index register in a memory
// operand, for example).
const NoVReg VReg = -1

// Form discriminates the three operand shapes the ISA accepts once
// lowering is done: a register, a memory reference, or an immediate.
// Lowering guarantees no instruction reaches the encoder with an operand
// outside its descriptor's permitted forms.
type Form uint8

const (
	FormNone Form = iota
	FormReg
	FormMem
	FormImm
)

// Operand is one instruction operand in virtual-register form.
type Operand struct {
	Form  Form
	Reg   VReg  // FormReg
	Imm   int64 // FormImm
	Base  VReg  // FormMem: base register
	Index VReg  // FormMem: index register, NoVReg if absent
	Scale uint8 // FormMem: 1, 2, 4 or 8
	Disp  int32 // FormMem: displacement
}

// RegOp returns a register operand.
func RegOp(r VReg) Operand { return Operand{Form: FormReg, Reg: r} }

// ImmOp returns an immediate operand.
func ImmOp(v int64) Operand { return Operand{Form: FormImm, Imm: v} }

// MemOp returns a [base+disp] memory operand.
func MemOp(base VReg, disp int32) Operand {
	return Operand{Form: FormMem, Base: base, Index: NoVReg, Scale: 1, Disp: disp}
}

// MemIndexOp returns a [base+index*scale+disp] memory operand.
func MemIndexOp(base, index VReg, scale uint8, disp int32) Operand {
	return Operand{Form: FormMem, Base: base, Index: index, Scale: scale, Disp: disp}
}

// InstrKind identifies what an Instruction does. Only the operators this
// backend currently lowers are implemented; anything else is rejected by
// Lower with a diagnostic rather than silently miscompiled.
type InstrKind uint8

const (
	Mov  InstrKind = iota // dst = src
	Alu                   // dst = dst <op> src (Op: Add2/Sub/Mul2/And2/Or2/Xor2/Shl/Shr)
	Cmp                   // flags = dst - src
	Lea                   // dst = effective address of src (FormMem)
	Inc                   // dst++
	Dec                   // dst--
	Jmp                   // unconditional jump to Label
	Jcc                   // conditional jump on the flags Cmp set (Op: comparison)
	Call                  // call Label
	Ret
	LabelMark // not emitted; records a jump target's position

	numInstrKinds
)

// Instruction is one lowered x86-64 operation, still in virtual-register
// form. W selects the 64-bit operand size (REX.W); Signed selects the
// signed condition codes for Jcc.
type Instruction struct {
	Kind   InstrKind
	Dst    Operand
	Src    Operand
	Op     ir.Op // the ir.Op an Alu/Cmp/Jcc instruction implements
	Label  *ir.Label
	W      bool
	Signed bool
}

// argMask enumerates the operand forms an instruction descriptor permits
// in one operand position.
type argMask uint8

const (
	argNone argMask = 1 << iota
	argReg
	argMem
	argImm
)

func (m argMask) accepts(f Form) bool {
	switch f {
	case FormNone:
		return m&argNone != 0
	case FormReg:
		return m&argReg != 0
	case FormMem:
		return m&argMem != 0
	case FormImm:
		return m&argImm != 0
	}
	return false
}

// descriptor is one instruction's operand contract: which forms each
// position accepts. The encoder validates every instruction against its
// descriptor before emitting bytes and records a diagnostic on mismatch.
type descriptor struct {
	name string
	dst  argMask
	src  argMask
}

var descriptors = [numInstrKinds]descriptor{
	Mov:       {"mov", argReg | argMem, argReg | argMem | argImm},
	Alu:       {"alu", argReg | argMem, argReg | argMem | argImm},
	Cmp:       {"cmp", argReg | argMem, argReg | argMem | argImm},
	Lea:       {"lea", argReg, argMem},
	Inc:       {"inc", argReg | argMem, argNone},
	Dec:       {"dec", argReg | argMem, argNone},
	Jmp:       {"jmp", argNone, argNone},
	Jcc:       {"jcc", argNone, argNone},
	Call:      {"call", argNone, argNone},
	Ret:       {"ret", argNone, argNone},
	LabelMark: {"label", argNone, argNone},
}

// compatible reports whether in's operands match its descriptor, plus the
// x86 two-operand constraint: at most one memory operand per instruction.
func compatible(in Instruction) bool {
	d := descriptors[in.Kind]
	if !d.dst.accepts(in.Dst.Form) || !d.src.accepts(in.Src.Form) {
		return false
	}
	return in.Dst.Form != FormMem || in.Src.Form != FormMem
}
