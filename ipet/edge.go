package ipet

import (
	"github.com/sarchlab/wcet/aeg"
	"github.com/sarchlab/wcet/ir"
	"github.com/sarchlab/wcet/loopanalysis"
)

// SolveEdgeLevel computes the worst-case path through a CompressedAEG
// (aeg.CompressedGraph) using spec.md §4.8's edge-level formulation: one
// variable y_e per AEG edge, with entry/flow/loop-bound constraints
// phrased over edges rather than over blocks. It shares this package's
// solver core with Solve: CompressedEdge.MaxCycles already prices
// "execute the source block, then cross into the target", so the
// objective max(sum(y_e*e.max_cycles)) reduces to the same
// fold-loops-then-longest-path-over-a-DAG recurrence Solve uses for
// max(sum(x_b*cost_b)), just evaluated over a different graph shape.
// exitCost supplies the one cost no outgoing edge can carry: the cycles
// spent inside whichever exit block the critical path ends in.
func SolveEdgeLevel(g *aeg.CompressedGraph, exitCost map[ir.Label]uint64, loops []*loopanalysis.Loop) (*Result, error) {
	reduced, counts, err := reduceCompressedLoops(g, loops)
	if err != nil {
		return nil, err
	}

	order, err := topoOrderCompressed(reduced)
	if err != nil {
		return nil, err
	}

	dist := make(map[ir.Label]uint64, len(order))
	prev := make(map[ir.Label]ir.Label)
	var best ir.Label
	var bestDist uint64
	haveBest := false

	for _, b := range order {
		cur := dist[b]
		for _, pred := range reduced.predecessors[b] {
			w := reduced.edgeWeight[[2]ir.Label{pred, b}]
			candidate := dist[pred] + w
			if candidate > cur {
				cur = candidate
				prev[b] = pred
			}
		}
		dist[b] = cur

		if reduced.exits[b] {
			total := cur + exitCost[b]
			if !haveBest || total >= bestDist {
				haveBest = true
				bestDist = total
				best = b
			}
		}
	}

	if !haveBest {
		return nil, &ILPInfeasible{Hint: "no exit block reachable from entry in compressed AEG"}
	}

	var path []ir.Label
	for b := best; ; {
		path = append([]ir.Label{b}, path...)
		p, ok := prev[b]
		if !ok {
			break
		}
		b = p
	}

	total := make(map[ir.Label]uint64, len(counts)+len(path))
	for b, c := range counts {
		total[b] = c
	}
	// A folded loop header's count (max+1) already includes this pass.
	for _, b := range path {
		if _, folded := total[b]; !folded {
			total[b] = 1
		}
	}

	return &Result{
		WorstCaseCycles: ir.NewCycles(bestDist, bestDist),
		ExecutionCounts: total,
		CriticalPath:    path,
	}, nil
}

// reducedCompressedGraph is the acyclic graph left after folding every
// loop's header+body into a single node whose exit edges carry the
// loop's aggregate cost, mirroring ipet.go's reducedGraph but over a
// CompressedGraph's blocks and weighted edges instead of a cfg.Graph and
// a per-block cost map.
type reducedCompressedGraph struct {
	labels       []ir.Label
	predecessors map[ir.Label][]ir.Label
	successors   map[ir.Label][]ir.Label
	edgeWeight   map[[2]ir.Label]uint64
	exits        map[ir.Label]bool
}

func reduceCompressedLoops(g *aeg.CompressedGraph, loops []*loopanalysis.Loop) (*reducedCompressedGraph, map[ir.Label]uint64, error) {
	ordered := append([]*loopanalysis.Loop(nil), loops...)
	sortByNestingDesc(ordered)

	edgesFrom := make(map[ir.Label][]aeg.CompressedEdge, len(g.Blocks))
	for _, e := range g.Edges {
		edgesFrom[e.From] = append(edgesFrom[e.From], e)
	}

	weight := make(map[[2]ir.Label]uint64, len(g.Edges))
	for _, e := range g.Edges {
		weight[[2]ir.Label{e.From, e.To}] = e.MaxCycles
	}

	removed := make(map[ir.Label]bool)
	counts := make(map[ir.Label]uint64)

	edgesOf := func(from ir.Label) []aeg.CompressedEdge {
		var out []aeg.CompressedEdge
		for _, e := range edgesFrom[from] {
			w, ok := weight[[2]ir.Label{e.From, e.To}]
			if !ok {
				continue
			}
			out = append(out, aeg.CompressedEdge{From: e.From, To: e.To, MaxCycles: w})
		}
		return out
	}

	for _, loop := range ordered {
		var headerEnter, headerExit uint64
		var headerExitTargets []ir.Label
		for _, e := range edgesOf(loop.Header) {
			if loop.Body[e.To] {
				if e.MaxCycles > headerEnter {
					headerEnter = e.MaxCycles
				}
			} else {
				if e.MaxCycles > headerExit {
					headerExit = e.MaxCycles
				}
				headerExitTargets = append(headerExitTargets, e.To)
			}
		}

		bodySum := headerEnter
		for b := range loop.Body {
			if b == loop.Header || removed[b] {
				continue
			}
			var c uint64
			for _, e := range edgesOf(b) {
				if e.MaxCycles > c {
					c = e.MaxCycles
				}
			}
			bodySum += c
		}

		max := uint64(1)
		if _, mx, ok := loop.Bounds.Constant(); ok {
			max = mx
		} else {
			max = loopanalysis.DefaultConservativeBound
		}
		if max == 0 {
			max = 1
		}

		for b := range loop.Body {
			if b == loop.Header {
				continue
			}
			removed[b] = true
			counts[b] = max
		}
		counts[loop.Header] = max + 1

		// The header's aggregate cost replaces every exit edge's weight:
		// max full iterations (headerEnter+body) folded into bodySum,
		// plus one final bare header pass (headerExit) that leaves the
		// loop — the same shape as ipet.go's reduceLoops, specialized to
		// the exit edge's own weight rather than reusing headerEnter for
		// both passes.
		total := bodySum*max + headerExit

		for k := range weight {
			if k[0] == loop.Header {
				delete(weight, k)
			}
		}
		for _, to := range headerExitTargets {
			weight[[2]ir.Label{loop.Header, to}] = total
		}
	}

	out := &reducedCompressedGraph{
		predecessors: make(map[ir.Label][]ir.Label),
		successors:   make(map[ir.Label][]ir.Label),
		edgeWeight:   make(map[[2]ir.Label]uint64),
		exits:        make(map[ir.Label]bool),
	}

	for _, l := range g.Blocks {
		if removed[l] {
			continue
		}
		out.labels = append(out.labels, l)
		if g.Exits[l] {
			out.exits[l] = true
		}
	}

	for k, w := range weight {
		from, to := k[0], k[1]
		if removed[from] || removed[to] || from == to {
			continue
		}
		out.successors[from] = append(out.successors[from], to)
		out.predecessors[to] = append(out.predecessors[to], from)
		out.edgeWeight[k] = w
	}

	return out, counts, nil
}

func topoOrderCompressed(g *reducedCompressedGraph) ([]ir.Label, error) {
	indegree := make(map[ir.Label]int, len(g.labels))
	for _, l := range g.labels {
		indegree[l] = len(g.predecessors[l])
	}

	var queue []ir.Label
	for _, l := range g.labels {
		if indegree[l] == 0 {
			queue = append(queue, l)
		}
	}

	var order []ir.Label
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, succ := range g.successors[n] {
			indegree[succ]--
			if indegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if len(order) != len(g.labels) {
		return nil, &ILPInfeasible{Hint: "compressed AEG is not acyclic after loop folding"}
	}
	return order, nil
}
