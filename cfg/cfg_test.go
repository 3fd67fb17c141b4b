package cfg

import (
	"testing"

	"github.com/onejit/onejit/ir"
)

// buildIfElse returns a linear statement sequence equivalent to:
//
//	if cond { goto L1 } else { goto L2 }
//	L1: x = 1; goto L3
//	L2: x = 2
//	L3: return
func buildIfElse(f *ir.Func) ([]ir.Node, *ir.Label, *ir.Label, *ir.Label) {
	l1, l2, l3 := f.NewLabel(), f.NewLabel(), f.NewLabel()
	cond := f.ConstInt(ir.Bool, 1)
	x := f.VarNode(f.NewVar(ir.Int32))
	stmts := []ir.Node{
		f.JumpIf(cond, f.LabelNode(l1)),
		f.Goto(f.LabelNode(l2)),
		f.LabelNode(l1),
		f.Assign(x, f.ConstInt(ir.Int32, 1)),
		f.Goto(f.LabelNode(l3)),
		f.LabelNode(l2),
		f.Assign(x, f.ConstInt(ir.Int32, 2)),
		f.LabelNode(l3),
		f.Return(),
	}
	return stmts, l1, l2, l3
}

func TestBuildPartitionsBlocks(t *testing.T) {
	f := ir.NewFunc()
	stmts, _, _, _ := buildIfElse(f)
	g := Build(stmts)
	if len(g.Blocks) != 5 {
		t.Fatalf("len(Blocks) = %d, want 5", len(g.Blocks))
	}
}

func TestBuildLinksSuccessorsAndPredecessors(t *testing.T) {
	f := ir.NewFunc()
	stmts, _, _, _ := buildIfElse(f)
	g := Build(stmts)

	entry := g.Blocks[0]
	if len(entry.Succs) != 2 {
		t.Fatalf("entry block should have 2 successors (JumpIf), got %d", len(entry.Succs))
	}
	last := g.Blocks[len(g.Blocks)-1]
	if len(last.Succs) != 0 {
		t.Fatal("block ending in Return should have no successors")
	}
	for _, b := range g.Blocks {
		for _, s := range b.Succs {
			found := false
			for _, p := range g.Blocks[s].Preds {
				if p == b.ID {
					found = true
				}
			}
			if !found {
				t.Fatalf("block %d lists %d as successor but not vice versa", b.ID, s)
			}
		}
	}
}

func TestDominatorsJoinBlockDominatedByEntry(t *testing.T) {
	f := ir.NewFunc()
	stmts, _, _, _ := buildIfElse(f)
	g := Build(stmts)
	last := len(g.Blocks) - 1
	if !g.Dominates(g.Entry, last) {
		t.Fatal("entry block should dominate every reachable block")
	}
	// Neither branch block individually dominates the join block.
	branch1, branch2 := 1, 2
	if g.Dominates(branch1, last) || g.Dominates(branch2, last) {
		t.Fatal("only the entry block should dominate the join point in a diamond CFG")
	}
}

func TestEmptyBody(t *testing.T) {
	g := Build(nil)
	if len(g.Blocks) != 1 {
		t.Fatalf("expected a single empty block, got %d", len(g.Blocks))
	}
}
