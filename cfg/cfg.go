// Package cfg builds the control-flow graph: basic blocks, their
// predecessor/successor links, and a dominator tree, from a flat sequence
// of already-linearized ir.Node statements (Label markers, Goto, JumpIf,
// Return, and ordinary statements in between).
package cfg

import "github.com/onejit/onejit/ir"

// Block is one basic block: a maximal run of statements with no jump into
// or out of its middle.
type Block struct {
	ID    int
	Stmts []ir.Node
	Preds []int
	Succs []int
}

// Graph is a function's control-flow graph plus its dominator tree.
type Graph struct {
	Blocks []*Block
	Entry  int

	// idom[b] is the immediate dominator of block b, or -1 for the entry
	// block. Computed by Build and exposed through IDom/Dominates; no other
	// package in this module reads it, so the allocator does not depend on
	// it.
	idom []int
}

// IDom returns the immediate dominator of block b, or -1 if b is the
// entry block or unreachable.
func (g *Graph) IDom(b int) int {
	if b < 0 || b >= len(g.idom) {
		return -1
	}
	return g.idom[b]
}

// Dominates reports whether a dominates b (every path from the entry to b
// passes through a), inclusive of a == b.
func (g *Graph) Dominates(a, b int) bool {
	for b != -1 {
		if b == a {
			return true
		}
		b = g.idom[b]
	}
	return false
}

func labelIndex(n ir.Node) uint32 { return n.AsLabel().Index() }

// Build partitions stmts into basic blocks at Label/Goto/JumpIf/Return
// boundaries, links predecessors and successors, and computes a dominator
// tree rooted at block 0.
func Build(stmts []ir.Node) *Graph {
	g := &Graph{Entry: 0}
	if len(stmts) == 0 {
		g.Blocks = []*Block{{ID: 0}}
		g.idom = []int{-1}
		return g
	}

	labelBlock := map[uint32]int{}
	cur := &Block{ID: 0}
	g.Blocks = append(g.Blocks, cur)
	afterTerminator := false

	newBlock := func() {
		cur = &Block{ID: len(g.Blocks)}
		g.Blocks = append(g.Blocks, cur)
		afterTerminator = false
	}

	for _, s := range stmts {
		if s.Type() == ir.LabelType {
			// A label is a jump target: it always starts a fresh block
			// (unless the current one is already empty), whether or not
			// the previous statement was a terminator.
			if len(cur.Stmts) > 0 {
				newBlock()
			}
			labelBlock[labelIndex(s)] = cur.ID
			continue
		}
		if afterTerminator && len(cur.Stmts) > 0 {
			newBlock()
		}
		cur.Stmts = append(cur.Stmts, s)
		afterTerminator = isTerminator(s)
	}

	for _, b := range g.Blocks {
		if len(b.Stmts) == 0 {
			continue
		}
		last := b.Stmts[len(b.Stmts)-1]
		switch {
		case last.Type() == ir.Stmt1 && last.Op() == ir.Goto:
			target := labelBlock[labelIndex(last.Child(0))]
			addEdge(g, b.ID, target)
		case last.Type() == ir.Stmt2 && last.Op() == ir.JumpIf:
			target := labelBlock[labelIndex(last.Child(1))]
			addEdge(g, b.ID, target)
			if b.ID+1 < len(g.Blocks) {
				addEdge(g, b.ID, b.ID+1)
			}
		case last.Type() == ir.StmtN && last.Op() == ir.Return:
			// no successors
		default:
			if b.ID+1 < len(g.Blocks) {
				addEdge(g, b.ID, b.ID+1)
			}
		}
	}

	g.idom = computeDominators(g)
	return g
}

func isTerminator(s ir.Node) bool {
	if s.Type() == ir.Stmt1 && s.Op() == ir.Goto {
		return true
	}
	if s.Type() == ir.Stmt2 && s.Op() == ir.JumpIf {
		return true
	}
	if s.Type() == ir.StmtN && s.Op() == ir.Return {
		return true
	}
	return false
}

func addEdge(g *Graph, from, to int) {
	g.Blocks[from].Succs = append(g.Blocks[from].Succs, to)
	g.Blocks[to].Preds = append(g.Blocks[to].Preds, from)
}
