// Package ipet implements the Implicit Path Enumeration Technique
// (C10): given per-block worst-case cycle costs and the loop bounds
// loopanalysis resolved, it computes the function's overall worst-case
// execution count per block and total cycles.
//
// The general IPET formulation is an ILP (maximize sum(cost_b * x_b)
// subject to flow-conservation and loop-bound constraints). No example
// repo in this corpus imports an ILP/MILP solver, so this package
// instead folds loops bottom-up into single aggregate-cost nodes (bound
// x body-cost, which is sound because it can only overestimate a loop's
// true worst path) and solves the resulting acyclic reduced graph with a
// longest-path recurrence over its topological order — the standard
// dynamic-programming solution for a DAG's critical path, and exact for
// IPET's totally-unimodular constraint structure once loops are
// collapsed. See DESIGN.md for the stdlib-only justification.
package ipet

import (
	"fmt"

	"github.com/sarchlab/wcet/cfg"
	"github.com/sarchlab/wcet/ir"
	"github.com/sarchlab/wcet/loopanalysis"
)

// BlockCost is the worst-case cycle cost of executing one block's body
// once (already incorporating its AEG's WorstCaseCycles).
type BlockCost map[ir.Label]ir.Cycles

// Result is the solved IPET: total worst-case cycles, per-block
// execution counts, and the critical path that realizes the bound.
type Result struct {
	WorstCaseCycles ir.Cycles
	ExecutionCounts map[ir.Label]uint64
	CriticalPath    []ir.Label
}

// ILPInfeasible is returned when the block/loop structure admits no
// consistent execution count assignment (e.g. an exit block is
// unreachable from entry).
type ILPInfeasible struct {
	Hint string
}

func (e *ILPInfeasible) Error() string {
	return fmt.Sprintf("ipet: infeasible: %s", e.Hint)
}

// Solve computes the worst-case path through g given per-block costs and
// resolved loop bounds, per spec.md §4.8.
func Solve(g *cfg.Graph, loops []*loopanalysis.Loop, costs BlockCost) (*Result, error) {
	reduced, counts, err := reduceLoops(g, loops, costs)
	if err != nil {
		return nil, err
	}

	order, err := topoOrder(reduced)
	if err != nil {
		return nil, err
	}

	dist := make(map[ir.Label]uint64, len(order))
	prev := make(map[ir.Label]ir.Label)
	var best ir.Label
	var bestDist uint64

	for _, b := range order {
		cost := reduced.costs[b].WorstCase
		cur := cost
		for _, pred := range reduced.predecessors[b] {
			if d, ok := dist[pred]; ok {
				candidate := d + cost
				if candidate > cur {
					cur = candidate
					prev[b] = pred
				}
			}
		}
		dist[b] = cur
		if reduced.exits[b] && cur >= bestDist {
			bestDist = cur
			best = b
		}
	}

	if len(reduced.exits) > 0 && best == "" {
		return nil, &ILPInfeasible{Hint: "no exit block reachable from entry"}
	}

	var path []ir.Label
	for b := best; b != ""; {
		path = append([]ir.Label{b}, path...)
		p, ok := prev[b]
		if !ok {
			break
		}
		b = p
	}

	// A folded loop header's count (max+1) already includes this pass.
	for _, b := range path {
		if _, folded := counts[b]; !folded {
			counts[b] = 1
		}
	}

	return &Result{
		WorstCaseCycles: ir.NewCycles(bestDist, bestDist),
		ExecutionCounts: counts,
		CriticalPath:    path,
	}, nil
}

// reducedGraph is the acyclic graph left after folding every loop into
// its header, with an aggregate cost and bypassed back-edges.
type reducedGraph struct {
	labels       []ir.Label
	predecessors map[ir.Label][]ir.Label
	successors   map[ir.Label][]ir.Label
	costs        BlockCost
	exits        map[ir.Label]bool
}

func reduceLoops(g *cfg.Graph, loops []*loopanalysis.Loop, costs BlockCost) (*reducedGraph, map[ir.Label]uint64, error) {
	// Fold innermost-first so a nested loop's aggregate cost is already
	// rolled into its body sum before the enclosing loop is folded.
	ordered := append([]*loopanalysis.Loop(nil), loops...)
	sortByNestingDesc(ordered)

	folded := make(BlockCost, len(costs))
	for k, v := range costs {
		folded[k] = v
	}
	removed := make(map[ir.Label]bool)
	counts := make(map[ir.Label]uint64, len(costs))

	for _, loop := range ordered {
		var bodySum uint64
		for b := range loop.Body {
			if removed[b] {
				continue
			}
			bodySum += folded[b].WorstCase
		}

		max := uint64(1)
		if m, mx, ok := loop.Bounds.Constant(); ok {
			_ = m
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

		// The header runs once more than the loop body: max full
		// iterations (header + body), plus one final header-only pass
		// that evaluates the exit condition and leaves the loop. Per
		// spec.md §8 Scenario B: wcet = b0 + (header+body)*max + header
		// + exit, i.e. the header's aggregate cost is bodySum*max plus
		// one extra bare header execution.
		headerAlone := folded[loop.Header].WorstCase
		total := bodySum*max + headerAlone
		counts[loop.Header] = max + 1
		folded[loop.Header] = ir.NewCycles(total, total)
	}

	out := &reducedGraph{
		predecessors: make(map[ir.Label][]ir.Label),
		successors:   make(map[ir.Label][]ir.Label),
		costs:        folded,
		exits:        make(map[ir.Label]bool),
	}

	for _, l := range g.Labels() {
		if removed[l] {
			continue
		}
		out.labels = append(out.labels, l)
		if g.IsExit(l) {
			out.exits[l] = true
		}
	}

	for _, e := range g.Edges {
		from, to := e.From, e.To
		if removed[from] || removed[to] {
			continue
		}
		if from == to {
			continue // self-loop already folded
		}
		out.successors[from] = append(out.successors[from], to)
		out.predecessors[to] = append(out.predecessors[to], from)
	}

	return out, counts, nil
}

func sortByNestingDesc(loops []*loopanalysis.Loop) {
	for i := 1; i < len(loops); i++ {
		for j := i; j > 0 && loops[j-1].NestingLevel < loops[j].NestingLevel; j-- {
			loops[j-1], loops[j] = loops[j], loops[j-1]
		}
	}
}

func topoOrder(g *reducedGraph) ([]ir.Label, error) {
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
		return nil, &ILPInfeasible{Hint: "reduced control-flow graph is not acyclic after loop folding"}
	}
	return order, nil
}
