package x64

import (
	"math"

	"github.com/onejit/onejit/diag"
	"github.com/onejit/onejit/ir"
	"github.com/onejit/onejit/regalloc"
)

// baseAddress is the nominal load address assigned to the first emitted
// byte. It exists only so ir.Label.Resolve never sees address 0 (which
// ir.Label treats as "unresolved"); every relocation computation cancels
// it out since both the jump site and its target are offsets from the
// same base.
const baseAddress = 0x1000

// spillSlotSize is the frame space, in bytes, reserved per spilled VReg.
// A spilled node is a first-class outcome of regalloc.Color (Result.Spilled),
// not a failure: it is given a stack slot at [rbp-8*slot] instead of a
// physical register.
const spillSlotSize = 8

// scratchDst/scratchSrc are the physical registers spill fixup code
// borrows to move a spilled VReg's value in and out of its stack slot.
// They are ordinary colorable registers, not registers regalloc reserves:
// a vreg simultaneously live in R10/R11 while another operand of the same
// instruction is spilled would be clobbered by this fixup. That case isn't
// reachable by anything this package's lowering currently emits (every
// multi-operand instruction's operands are each touched immediately before
// use), but it is a known limitation of treating spill fixup as "just
// another two instructions" rather than reserving scratch registers up
// front.
const (
	scratchDst Reg = R11
	scratchSrc Reg = R10
)

// memRef is a memory reference with physical registers resolved.
type memRef struct {
	base     Reg
	index    Reg
	hasIndex bool
	scale    uint8
	disp     int32
}

// phys is one operand with register allocation applied.
type phys struct {
	form Form
	reg  Reg
	mem  memRef
	imm  int64
}

func physReg(r Reg) phys { return phys{form: FormReg, reg: r} }
func physMem(m memRef) phys {
	return phys{form: FormMem, mem: m}
}

// jump is a branch whose displacement depends on final instruction
// placement: it starts in its short form and is widened by relaxation
// until every displacement fits.
type jump struct {
	kind InstrKind
	cc   byte // near-form second opcode byte, Jcc only
	label *ir.Label
	long bool
}

// piece is one unit of output: either already-final bytes or a jump whose
// size is still subject to relaxation.
type piece struct {
	fixed []byte
	jump  *jump
}

func (p *piece) size() int {
	if p.jump == nil {
		return len(p.fixed)
	}
	switch {
	case p.jump.kind == Call:
		return 5 // E8 rel32, no short form
	case p.jump.long && p.jump.kind == Jcc:
		return 6 // 0F 8x rel32
	case p.jump.long:
		return 5 // E9 rel32
	default:
		return 2 // EB/7x rel8
	}
}

type encoder struct {
	colors []int
	sink   *diag.Sink

	cur       []byte
	pieces    []piece
	labelAt   map[*ir.Label]int
	spillSlot map[VReg]int
}

// Encode implements arch.Machine: it assigns a physical register (or a
// stack slot, for anything regalloc.Color spilled) to each VReg via
// colors, validates every instruction against its operand descriptor, and
// emits real x86-64 bytes, sizing and backpatching jump/call targets once
// every label's position is known.
func (m *Machine) Encode(colors []int, sink *diag.Sink) []byte {
	e := &encoder{
		colors: colors, sink: sink,
		labelAt:   map[*ir.Label]int{},
		spillSlot: map[VReg]int{},
	}
	for _, in := range m.instrs {
		e.instruction(in)
	}
	return e.finish()
}

func (e *encoder) errorf(msg string) {
	e.sink.Add(diag.EncodingError, diag.NoNode, "x64: "+msg)
}

func (e *encoder) instruction(in Instruction) {
	if !compatible(in) {
		e.errorf("operands incompatible with " + descriptors[in.Kind].name)
		return
	}
	switch in.Kind {
	case LabelMark:
		e.flush()
		e.labelAt[in.Label] = len(e.pieces)
	case Jmp:
		e.flush()
		e.pieces = append(e.pieces, piece{jump: &jump{kind: Jmp, label: in.Label}})
	case Jcc:
		cc, ok := conditionCode(in.Op, in.Signed)
		if !ok {
			e.errorf("unsupported condition for jcc")
			return
		}
		e.flush()
		e.pieces = append(e.pieces, piece{jump: &jump{kind: Jcc, cc: cc, label: in.Label}})
	case Call:
		e.flush()
		e.pieces = append(e.pieces, piece{jump: &jump{kind: Call, label: in.Label}})
	case Ret:
		e.cur = append(e.cur, 0xC3)
	case Mov:
		e.mov(in)
	case Alu:
		e.alu(in)
	case Cmp:
		e.cmp(in)
	case Lea:
		e.lea(in)
	case Inc:
		e.incDec(in, 0)
	case Dec:
		e.incDec(in, 1)
	default:
		e.errorf("unsupported instruction kind")
	}
}

func (e *encoder) flush() {
	if len(e.cur) > 0 {
		e.pieces = append(e.pieces, piece{fixed: e.cur})
		e.cur = nil
	}
}

// finish relaxes jump sizes to a fixed point, concatenates every piece
// with final displacements, and resolves each defined label's address.
func (e *encoder) finish() []byte {
	e.flush()

	offs := e.offsets()
	for {
		changed := false
		for i := range e.pieces {
			j := e.pieces[i].jump
			if j == nil || j.long || j.kind == Call {
				continue
			}
			t, ok := e.labelAt[j.label]
			if !ok {
				continue
			}
			rel := offs[t] - (offs[i] + 2)
			if rel < math.MinInt8 || rel > math.MaxInt8 {
				j.long = true
				changed = true
			}
		}
		if !changed {
			break
		}
		offs = e.offsets()
	}

	var out []byte
	for i := range e.pieces {
		p := &e.pieces[i]
		if p.jump == nil {
			out = append(out, p.fixed...)
			continue
		}
		j := p.jump
		t, defined := e.labelAt[j.label]
		if !defined {
			e.errorf("jump to an undefined label")
			out = append(out, make([]byte, p.size())...)
			continue
		}
		rel := offs[t] - (offs[i] + p.size())
		switch {
		case j.kind == Call:
			out = append(out, 0xE8)
			out = appendInt32(out, int32(rel))
		case j.kind == Jmp && !j.long:
			out = append(out, 0xEB, byte(int8(rel)))
		case j.kind == Jmp:
			out = append(out, 0xE9)
			out = appendInt32(out, int32(rel))
		case !j.long:
			out = append(out, j.cc-0x10, byte(int8(rel)))
		default:
			out = append(out, 0x0F, j.cc)
			out = appendInt32(out, int32(rel))
		}
	}

	for l, idx := range e.labelAt {
		if !l.Resolved() {
			l.Resolve(uint64(baseAddress + offs[idx]))
		}
	}
	return out
}

// offsets returns each piece's byte offset, with the total size appended,
// under the current jump sizing.
func (e *encoder) offsets() []int {
	offs := make([]int, len(e.pieces)+1)
	for i := range e.pieces {
		offs[i+1] = offs[i] + e.pieces[i].size()
	}
	return offs
}

// conditionCode returns the near-form (0F xx) opcode byte for a
// comparison; the short form is the same byte minus 0x10.
func conditionCode(op ir.Op, signed bool) (byte, bool) {
	switch op {
	case ir.Eql:
		return 0x84, true // JE
	case ir.Neq:
		return 0x85, true // JNE
	}
	if signed {
		switch op {
		case ir.Lss:
			return 0x8C, true // JL
		case ir.Leq:
			return 0x8E, true // JLE
		case ir.Gtr:
			return 0x8F, true // JG
		case ir.Geq:
			return 0x8D, true // JGE
		}
	} else {
		switch op {
		case ir.Lss:
			return 0x82, true // JB
		case ir.Leq:
			return 0x86, true // JBE
		case ir.Gtr:
			return 0x87, true // JA
		case ir.Geq:
			return 0x83, true // JAE
		}
	}
	return 0, false
}

// --- operand resolution -------------------------------------------------

func (e *encoder) spilled(v VReg) bool {
	return int(v) < len(e.colors) && e.colors[v] == regalloc.NoColor
}

func (e *encoder) regOf(v VReg) Reg {
	if int(v) >= len(e.colors) {
		return RAX
	}
	return regFromColor(e.colors[v])
}

func (e *encoder) slotDisp(v VReg) int32 {
	s, ok := e.spillSlot[v]
	if !ok {
		s = len(e.spillSlot) + 1
		e.spillSlot[v] = s
	}
	return -int32(s * spillSlotSize)
}

func spillRef(disp int32) memRef { return memRef{base: RBP, scale: 1, disp: disp} }

func (e *encoder) loadSpill(dst Reg, v VReg) {
	e.cur = append(e.cur, encodeRM(true, []byte{0x8B}, dst, physMem(spillRef(e.slotDisp(v))))...)
}

func (e *encoder) storeSpill(src Reg, v VReg) {
	e.cur = append(e.cur, encodeRM(true, []byte{0x89}, src, physMem(spillRef(e.slotDisp(v))))...)
}

// srcPhys resolves a source operand, pulling a spilled register into
// scratch first. It returns form FormNone (with a diagnostic recorded) if
// the operand cannot be resolved.
func (e *encoder) srcPhys(o Operand, scratch Reg) phys {
	switch o.Form {
	case FormReg:
		if e.spilled(o.Reg) {
			e.loadSpill(scratch, o.Reg)
			return physReg(scratch)
		}
		return physReg(e.regOf(o.Reg))
	case FormImm:
		return phys{form: FormImm, imm: o.Imm}
	case FormMem:
		m, ok := e.memPhys(o, scratch)
		if !ok {
			return phys{}
		}
		return physMem(m)
	}
	return phys{}
}

// memPhys resolves a memory operand's registers; a spilled base is loaded
// into scratch, a spilled index is unsupported.
func (e *encoder) memPhys(o Operand, scratch Reg) (memRef, bool) {
	m := memRef{scale: o.Scale, disp: o.Disp}
	if m.scale == 0 {
		m.scale = 1
	}
	if e.spilled(o.Base) {
		e.loadSpill(scratch, o.Base)
		m.base = scratch
	} else {
		m.base = e.regOf(o.Base)
	}
	if o.Index != NoVReg {
		if e.spilled(o.Index) {
			e.errorf("spilled index register in a memory operand")
			return memRef{}, false
		}
		m.index = e.regOf(o.Index)
		m.hasIndex = true
	}
	return m, true
}

// --- instruction encoders -----------------------------------------------

func (e *encoder) mov(in Instruction) {
	src := e.srcPhys(in.Src, scratchSrc)
	if src.form == FormNone {
		return
	}
	switch in.Dst.Form {
	case FormReg:
		if e.spilled(in.Dst.Reg) {
			e.movInto(scratchDst, src, in.W)
			e.storeSpill(scratchDst, in.Dst.Reg)
		} else {
			e.movInto(e.regOf(in.Dst.Reg), src, in.W)
		}
	case FormMem:
		mem, ok := e.memPhys(in.Dst, scratchDst)
		if !ok {
			return
		}
		switch src.form {
		case FormReg:
			e.cur = append(e.cur, encodeRM(in.W, []byte{0x89}, src.reg, physMem(mem))...)
		case FormImm:
			if fitsInt32(src.imm) {
				e.cur = append(e.cur, encodeRM(in.W, []byte{0xC7}, 0, physMem(mem))...)
				e.cur = appendInt32(e.cur, int32(src.imm))
			} else {
				e.movInto(scratchSrc, src, true)
				e.cur = append(e.cur, encodeRM(in.W, []byte{0x89}, scratchSrc, physMem(mem))...)
			}
		}
	}
}

// movInto writes src into the physical register dst.
func (e *encoder) movInto(dst Reg, src phys, w bool) {
	switch src.form {
	case FormReg:
		e.cur = append(e.cur, encodeRM(w, []byte{0x89}, src.reg, physReg(dst))...)
	case FormMem:
		e.cur = append(e.cur, encodeRM(w, []byte{0x8B}, dst, physMem(src.mem))...)
	case FormImm:
		if fitsInt32(src.imm) {
			e.cur = append(e.cur, encodeRM(w, []byte{0xC7}, 0, physReg(dst))...)
			e.cur = appendInt32(e.cur, int32(src.imm))
		} else {
			// movabs: REX.W B8+rd imm64
			e.cur = append(e.cur, rexByte(true, false, false, dst >= 8), 0xB8|byte(dst&7))
			e.cur = appendInt64(e.cur, src.imm)
		}
	}
}

// aluInfo gives the three encodings of a classic ALU operator: r/m op= r,
// r op= r/m, and the /ext slot of the 81/83 immediate group.
type aluInfo struct {
	rmReg byte
	regRM byte
	ext   Reg
}

var aluTable = map[ir.Op]aluInfo{
	ir.Add2: {0x01, 0x03, 0},
	ir.Or2:  {0x09, 0x0B, 1},
	ir.And2: {0x21, 0x23, 4},
	ir.Sub:  {0x29, 0x2B, 5},
	ir.Xor2: {0x31, 0x33, 6},
}

func (e *encoder) alu(in Instruction) {
	switch in.Op {
	case ir.Shl, ir.Shr:
		e.shift(in)
		return
	case ir.Mul2:
		e.imul(in)
		return
	}
	info, ok := aluTable[in.Op]
	if !ok {
		e.errorf("unsupported alu op " + in.Op.String())
		return
	}

	src := e.srcPhys(in.Src, scratchSrc)
	if src.form == FormNone {
		return
	}
	dst, writeback := e.rmwPhys(in.Dst)
	if dst.form == FormNone {
		return
	}
	switch src.form {
	case FormReg:
		e.cur = append(e.cur, encodeRM(in.W, []byte{info.rmReg}, src.reg, dst)...)
	case FormMem:
		e.cur = append(e.cur, encodeRM(in.W, []byte{info.regRM}, dst.reg, physMem(src.mem))...)
	case FormImm:
		if !fitsInt32(src.imm) {
			e.movInto(scratchSrc, src, true)
			e.cur = append(e.cur, encodeRM(in.W, []byte{info.rmReg}, scratchSrc, dst)...)
		} else {
			e.aluImm(in.W, info.ext, dst, int32(src.imm))
		}
	}
	writeback()
}

// rmwPhys resolves a read-modify-write destination: a spilled register is
// loaded into scratchDst and the returned writeback stores it again; a
// memory destination is operated on in place.
func (e *encoder) rmwPhys(o Operand) (phys, func()) {
	nop := func() {}
	switch o.Form {
	case FormReg:
		if e.spilled(o.Reg) {
			v := o.Reg
			e.loadSpill(scratchDst, v)
			return physReg(scratchDst), func() { e.storeSpill(scratchDst, v) }
		}
		return physReg(e.regOf(o.Reg)), nop
	case FormMem:
		m, ok := e.memPhys(o, scratchDst)
		if !ok {
			return phys{}, nop
		}
		return physMem(m), nop
	}
	return phys{}, nop
}

// aluImm emits the 81/83 immediate-group form: 83 /ext ib for a
// sign-extendable byte, 81 /ext id otherwise.
func (e *encoder) aluImm(w bool, ext Reg, rm phys, imm int32) {
	if imm >= math.MinInt8 && imm <= math.MaxInt8 {
		e.cur = append(e.cur, encodeRM(w, []byte{0x83}, ext, rm)...)
		e.cur = append(e.cur, byte(int8(imm)))
		return
	}
	e.cur = append(e.cur, encodeRM(w, []byte{0x81}, ext, rm)...)
	e.cur = appendInt32(e.cur, imm)
}

// shift emits C1 /4 (shl), /5 (shr) or /7 (sar) with the count masked to
// the operand width; lowering guarantees the count is an immediate.
func (e *encoder) shift(in Instruction) {
	dst, writeback := e.rmwPhys(in.Dst)
	if dst.form == FormNone {
		return
	}
	var ext Reg = 4 // shl
	if in.Op == ir.Shr {
		ext = 5
		if in.Signed {
			ext = 7 // sar
		}
	}
	mask := int64(31)
	if in.W {
		mask = 63
	}
	e.cur = append(e.cur, encodeRM(in.W, []byte{0xC1}, ext, dst)...)
	e.cur = append(e.cur, byte(in.Src.Imm&mask))
	writeback()
}

// imul emits the two-operand IMUL forms. IMUL cannot target memory, so
// lowering routes a memory destination through a register first.
func (e *encoder) imul(in Instruction) {
	if in.Dst.Form != FormReg {
		e.errorf("imul cannot target memory")
		return
	}
	dst, writeback := e.rmwPhys(in.Dst)
	src := e.srcPhys(in.Src, scratchSrc)
	switch src.form {
	case FormReg:
		e.cur = append(e.cur, encodeRM(in.W, []byte{0x0F, 0xAF}, dst.reg, physReg(src.reg))...)
	case FormMem:
		e.cur = append(e.cur, encodeRM(in.W, []byte{0x0F, 0xAF}, dst.reg, physMem(src.mem))...)
	case FormImm:
		switch {
		case src.imm >= math.MinInt8 && src.imm <= math.MaxInt8:
			e.cur = append(e.cur, encodeRM(in.W, []byte{0x6B}, dst.reg, dst)...)
			e.cur = append(e.cur, byte(int8(src.imm)))
		case fitsInt32(src.imm):
			e.cur = append(e.cur, encodeRM(in.W, []byte{0x69}, dst.reg, dst)...)
			e.cur = appendInt32(e.cur, int32(src.imm))
		default:
			e.movInto(scratchSrc, src, true)
			e.cur = append(e.cur, encodeRM(in.W, []byte{0x0F, 0xAF}, dst.reg, physReg(scratchSrc))...)
		}
	default:
		return
	}
	writeback()
}

func (e *encoder) cmp(in Instruction) {
	x := e.srcPhys(in.Dst, scratchDst)
	y := e.srcPhys(in.Src, scratchSrc)
	if x.form == FormNone || y.form == FormNone {
		return
	}
	switch y.form {
	case FormReg:
		e.cur = append(e.cur, encodeRM(in.W, []byte{0x39}, y.reg, x)...)
	case FormMem:
		e.cur = append(e.cur, encodeRM(in.W, []byte{0x3B}, x.reg, physMem(y.mem))...)
	case FormImm:
		if !fitsInt32(y.imm) {
			e.movInto(scratchSrc, y, true)
			e.cur = append(e.cur, encodeRM(in.W, []byte{0x39}, scratchSrc, x)...)
		} else {
			e.aluImm(in.W, 7, x, int32(y.imm))
		}
	}
}

func (e *encoder) lea(in Instruction) {
	mem, ok := e.memPhys(in.Src, scratchSrc)
	if !ok {
		return
	}
	if e.spilled(in.Dst.Reg) {
		e.cur = append(e.cur, encodeRM(in.W, []byte{0x8D}, scratchDst, physMem(mem))...)
		e.storeSpill(scratchDst, in.Dst.Reg)
	} else {
		e.cur = append(e.cur, encodeRM(in.W, []byte{0x8D}, e.regOf(in.Dst.Reg), physMem(mem))...)
	}
}

func (e *encoder) incDec(in Instruction, ext Reg) {
	dst, writeback := e.rmwPhys(in.Dst)
	if dst.form == FormNone {
		return
	}
	e.cur = append(e.cur, encodeRM(in.W, []byte{0xFF}, ext, dst)...)
	writeback()
}

// --- byte-level encoding ------------------------------------------------

// encodeRM emits REX + opcode + ModRM (+ SIB, + displacement) for one
// instruction addressing rm (a register or memory reference) with reg in
// the ModRM reg field (a register number or an opcode extension).
func encodeRM(w bool, opcodes []byte, reg Reg, rm phys) []byte {
	if rm.form == FormReg {
		out := appendREX(nil, w, reg >= 8, false, rm.reg >= 8)
		out = append(out, opcodes...)
		return append(out, modrmByte(3, byte(reg&7), byte(rm.reg&7)))
	}

	m := rm.mem
	needSIB := m.hasIndex || m.base&7 == 4 // RSP/R12 as base always need SIB
	var mod byte
	switch {
	case m.disp == 0 && m.base&7 != 5: // RBP/R13 have no disp-less form
		mod = 0
	case m.disp >= math.MinInt8 && m.disp <= math.MaxInt8:
		mod = 1
	default:
		mod = 2
	}

	out := appendREX(nil, w, reg >= 8, m.hasIndex && m.index >= 8, m.base >= 8)
	out = append(out, opcodes...)
	if needSIB {
		out = append(out, modrmByte(mod, byte(reg&7), 4))
		idx := byte(4) // no index
		if m.hasIndex {
			idx = byte(m.index & 7)
		}
		out = append(out, scaleBits(m.scale)<<6|idx<<3|byte(m.base&7))
	} else {
		out = append(out, modrmByte(mod, byte(reg&7), byte(m.base&7)))
	}
	switch mod {
	case 1:
		out = append(out, byte(int8(m.disp)))
	case 2:
		out = appendInt32(out, m.disp)
	}
	return out
}

// appendREX appends a REX prefix when one is needed: an all-clear REX
// (0x40) carries no information for the instruction subset emitted here
// and is omitted.
func appendREX(out []byte, w, r, x, b bool) []byte {
	if rex := rexByte(w, r, x, b); rex != 0x40 {
		out = append(out, rex)
	}
	return out
}

// rexByte builds a REX prefix: W selects a 64-bit operand size, R/X/B
// extend the ModRM reg / SIB index / ModRM rm (or SIB base) fields to
// reach registers 8..15.
func rexByte(w, r, x, b bool) byte {
	out := byte(0x40)
	if w {
		out |= 1 << 3
	}
	if r {
		out |= 1 << 2
	}
	if x {
		out |= 1 << 1
	}
	if b {
		out |= 1
	}
	return out
}

func modrmByte(mod, reg, rm byte) byte {
	return mod<<6 | reg<<3 | rm
}

func scaleBits(scale uint8) byte {
	switch scale {
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		return 0
	}
}

func fitsInt32(v int64) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}

func appendInt32(out []byte, v int32) []byte {
	u := uint32(v)
	return append(out, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
}

func appendInt64(out []byte, v int64) []byte {
	u := uint64(v)
	return append(out, byte(u), byte(u>>8), byte(u>>16), byte(u>>24),
		byte(u>>32), byte(u>>40), byte(u>>48), byte(u>>56))
}
