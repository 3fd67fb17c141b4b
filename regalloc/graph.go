// Package regalloc implements interference-graph register allocation:
// a symmetric bitset-backed adjacency matrix with degree counters (Graph),
// and a greedy Kempe-style coloring allocator built on top of it.
package regalloc

import "github.com/onejit/onejit/bitset"

// Degree counts a node's live neighbors. uint16 is plenty: a function can
// plausibly have thousands of virtual registers, but never more than
// 65535 simultaneously interfering with one another.
type Degree = uint16

// Graph is a symmetric interference graph over n nodes (0..n-1), typically
// one node per Var produced during lowering.
type Graph struct {
	n      int
	bits   *bitset.Set // n*n bits; edge {a,b} is stored once, at min(a,b)+max(a,b)*n
	degree []Degree
}

// NewGraph returns an empty interference graph over n nodes.
func NewGraph(n int) *Graph {
	g := &Graph{}
	g.Reset(n)
	return g
}

// Reset reinitializes g to an empty graph over n nodes, reusing backing
// storage where possible.
func (g *Graph) Reset(n int) {
	g.n = n
	if g.bits == nil {
		g.bits = bitset.New(n * n)
	} else {
		g.bits.Reset(n * n)
	}
	if cap(g.degree) >= n {
		g.degree = g.degree[:n]
		for i := range g.degree {
			g.degree[i] = 0
		}
	} else {
		g.degree = make([]Degree, n)
	}
}

// N returns the number of nodes in g.
func (g *Graph) N() int { return g.n }

func (g *Graph) index(a, b int) int {
	if a > b {
		a, b = b, a
	}
	return a + b*g.n
}

// Has reports whether a and b interfere.
func (g *Graph) Has(a, b int) bool {
	if a == b {
		return false
	}
	return g.bits.Get(g.index(a, b))
}

// Set records or clears an interference edge between a and b, updating
// each node's degree by the net change.
func (g *Graph) Set(a, b int, value bool) {
	if a == b {
		return
	}
	idx := g.index(a, b)
	if g.bits.Get(idx) == value {
		return
	}
	g.bits.Set(idx, value)
	if value {
		g.degree[a]++
		g.degree[b]++
	} else {
		g.degree[a]--
		g.degree[b]--
	}
}

// AddEdge is shorthand for Set(a, b, true).
func (g *Graph) AddEdge(a, b int) { g.Set(a, b, true) }

// Degree returns the number of nodes a currently interferes with.
func (g *Graph) Degree(a int) Degree { return g.degree[a] }

// FirstNeighbor returns the lowest-numbered node >= start that interferes
// with a, or bitset.NoPos if none. Neighbors are enumerated in node order
// directly since a function's live-range count keeps n small enough that
// this linear scan is cheap relative to the coloring pass it serves.
func (g *Graph) FirstNeighbor(a, start int) int {
	for b := start; b < g.n; b++ {
		if g.Has(a, b) {
			return b
		}
	}
	return bitset.NoPos
}

// Remove deletes all of a's interference edges, as done when a is pushed
// onto the simplification stack during coloring.
func (g *Graph) Remove(a int) {
	for b := 0; b < g.n; b++ {
		g.Set(a, b, false)
	}
}

// Clone returns an independent copy of g.
func (g *Graph) Clone() *Graph {
	c := &Graph{n: g.n, bits: g.bits.Clone(), degree: make([]Degree, len(g.degree))}
	copy(c.degree, g.degree)
	return c
}
