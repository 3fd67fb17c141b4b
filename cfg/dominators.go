package cfg

// computeDominators implements the Cooper/Harvey/Kennedy iterative
// dominator algorithm over reverse postorder.
func computeDominators(g *Graph) []int {
	n := len(g.Blocks)
	idom := make([]int, n)
	for i := range idom {
		idom[i] = -1
	}

	rpo := reversePostorder(g)
	rpoIndex := make([]int, n)
	for i, b := range rpo {
		rpoIndex[b] = i
	}

	idom[g.Entry] = g.Entry
	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == g.Entry {
				continue
			}
			newIdom := -1
			for _, p := range g.Blocks[b].Preds {
				if idom[p] == -1 {
					continue
				}
				if newIdom == -1 {
					newIdom = p
					continue
				}
				newIdom = intersect(idom, rpoIndex, newIdom, p)
			}
			if newIdom != -1 && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	idom[g.Entry] = -1
	return idom
}

func intersect(idom, rpoIndex []int, a, b int) int {
	for a != b {
		for rpoIndex[a] > rpoIndex[b] {
			a = idom[a]
		}
		for rpoIndex[b] > rpoIndex[a] {
			b = idom[b]
		}
	}
	return a
}

func reversePostorder(g *Graph) []int {
	visited := make([]bool, len(g.Blocks))
	var post []int
	var visit func(b int)
	visit = func(b int) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range g.Blocks[b].Succs {
			visit(s)
		}
		post = append(post, b)
	}
	visit(g.Entry)
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}
