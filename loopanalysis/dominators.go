package loopanalysis

import (
	"github.com/sarchlab/wcet/cfg"
	"github.com/sarchlab/wcet/ir"
)

// Dominators maps every block reachable from the entry to its immediate
// dominator. The entry's own entry is absent from the map (it has no
// immediate dominator).
type Dominators struct {
	idom map[ir.Label]ir.Label
	rpo  []ir.Label
}

// Dominates reports whether d dominates n (every path from entry to n
// passes through d). Every block dominates itself.
func (doms *Dominators) Dominates(d, n ir.Label) bool {
	if d == n {
		return true
	}
	cur, ok := doms.idom[n]
	for ok {
		if cur == d {
			return true
		}
		cur, ok = doms.idom[cur]
	}
	return false
}

// ComputeDominators computes the dominator tree from g.Entry using the
// standard iterative fixpoint algorithm over a reverse-postorder
// traversal (semi-NCA-equivalent): initialize idom(entry) = entry,
// iterate "intersect all processed predecessors' idoms" until no idom
// changes. Unreachable blocks are simply absent from the result, per
// spec.md §4.4's failure semantics.
func ComputeDominators(g *cfg.Graph) *Dominators {
	rpo := reversePostorder(g)
	order := make(map[ir.Label]int, len(rpo))
	for i, l := range rpo {
		order[l] = i
	}

	idom := make(map[ir.Label]ir.Label)
	idom[g.Entry] = g.Entry

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == g.Entry {
				continue
			}

			var newIdom ir.Label
			haveNewIdom := false
			for _, p := range g.PredecessorLabels(b) {
				if _, ok := idom[p]; !ok {
					continue // predecessor not yet processed this pass
				}
				if !haveNewIdom {
					newIdom = p
					haveNewIdom = true
					continue
				}
				newIdom = intersect(newIdom, p, idom, order)
			}

			if !haveNewIdom {
				continue
			}
			if prev, ok := idom[b]; !ok || prev != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}

	delete(idom, g.Entry)
	return &Dominators{idom: idom, rpo: rpo}
}

func intersect(a, b ir.Label, idom map[ir.Label]ir.Label, order map[ir.Label]int) ir.Label {
	for a != b {
		for order[a] > order[b] {
			a = idom[a]
		}
		for order[b] > order[a] {
			b = idom[b]
		}
	}
	return a
}

// reversePostorder computes a DFS reverse-postorder over the CFG from
// its entry, which the dominator fixpoint converges fastest against.
func reversePostorder(g *cfg.Graph) []ir.Label {
	visited := make(map[ir.Label]bool)
	var post []ir.Label

	var visit func(ir.Label)
	visit = func(l ir.Label) {
		if visited[l] {
			return
		}
		visited[l] = true
		for _, succ := range g.SuccessorLabels(l) {
			visit(succ)
		}
		post = append(post, l)
	}
	visit(g.Entry)

	rpo := make([]ir.Label, len(post))
	for i, l := range post {
		rpo[len(post)-1-i] = l
	}
	return rpo
}
