package arch

import "github.com/onejit/onejit/ir"

// Flatten rewrites structured control flow into the linear
// Label/Goto/JumpIf form cfg.Build and the machine backends consume:
// If becomes a conditional jump diamond, For becomes a test-at-the-top
// loop, and nested Blocks are spliced inline. Statements already in
// linear form pass through unchanged. Break and Continue are not
// rewritten; a backend reports them as unsupported.
func Flatten(f *ir.Func, body []ir.Node) []ir.Node {
	out := make([]ir.Node, 0, len(body))
	for _, s := range body {
		flattenStmt(f, s, &out)
	}
	return out
}

func flattenStmt(f *ir.Func, s ir.Node, out *[]ir.Node) {
	switch {
	case s.Type() == ir.Stmt0 && s.Op() == ir.Fallthrough:
		// A bodyless slot (If's missing else, For's missing init/post):
		// nothing to emit.
	case s.Type() == ir.StmtN && s.Op() == ir.Block:
		for i := 0; i < s.Len(); i++ {
			flattenStmt(f, s.Child(i), out)
		}
	case s.Type() == ir.Stmt3 && s.Op() == ir.If:
		flattenIf(f, s, out)
	case s.Type() == ir.Stmt4 && s.Op() == ir.For:
		flattenFor(f, s, out)
	default:
		*out = append(*out, s)
	}
}

// flattenIf lowers "if cond { then } else { els }" as
//
//	jump_if cond, thenL
//	goto elseL
//	thenL: then...; goto endL
//	elseL: els...
//	endL:
func flattenIf(f *ir.Func, s ir.Node, out *[]ir.Node) {
	cond, then, els := s.Child(0), s.Child(1), s.Child(2)
	thenL, elseL, endL := f.NewLabel(), f.NewLabel(), f.NewLabel()
	*out = append(*out,
		f.JumpIf(cond, f.LabelNode(thenL)),
		f.Goto(f.LabelNode(elseL)),
		f.LabelNode(thenL))
	flattenStmt(f, then, out)
	*out = append(*out, f.Goto(f.LabelNode(endL)), f.LabelNode(elseL))
	flattenStmt(f, els, out)
	*out = append(*out, f.LabelNode(endL))
}

// flattenFor lowers "for init; cond; post { body }" as
//
//	init...
//	headL: jump_if cond, bodyL
//	goto endL
//	bodyL: body...; post...; goto headL
//	endL:
//
// A Fallthrough in the cond slot means no test expression: the head
// falls straight into the body and the loop only exits via a jump or
// return inside it.
func flattenFor(f *ir.Func, s ir.Node, out *[]ir.Node) {
	init, cond, post, body := s.Child(0), s.Child(1), s.Child(2), s.Child(3)
	headL, bodyL, endL := f.NewLabel(), f.NewLabel(), f.NewLabel()
	flattenStmt(f, init, out)
	*out = append(*out, f.LabelNode(headL))
	if !(cond.Type() == ir.Stmt0 && cond.Op() == ir.Fallthrough) {
		*out = append(*out,
			f.JumpIf(cond, f.LabelNode(bodyL)),
			f.Goto(f.LabelNode(endL)))
	}
	*out = append(*out, f.LabelNode(bodyL))
	flattenStmt(f, body, out)
	flattenStmt(f, post, out)
	*out = append(*out, f.Goto(f.LabelNode(headL)), f.LabelNode(endL))
}
