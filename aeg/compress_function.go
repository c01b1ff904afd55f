package aeg

import (
	"github.com/sarchlab/wcet/cfg"
	"github.com/sarchlab/wcet/ir"
)

// CompressedEdge is one block-to-block transition in a CompressedGraph,
// weighted by the worst-case cycles spent in the source block before
// crossing into the target.
type CompressedEdge struct {
	From, To  ir.Label
	MaxCycles uint64
}

// CompressedGraph is spec.md §3/§4.7's CompressedAEG: one node per CFG
// block, built by collapsing a whole-function Graph (from Build) down to
// block granularity. It is the input to ipet.SolveEdgeLevel, the
// edge-level IPET formulation's y_e variables ranging over Edges.
type CompressedGraph struct {
	Blocks []ir.Label
	Edges  []CompressedEdge
	Entry  ir.Label
	Exits  map[ir.Label]bool

	// ExitCost is, for each CFG exit block reached by a full.Exits node,
	// the worst-case cycles spent inside that block since it was
	// entered — the one cost no outgoing CompressedEdge can carry, since
	// an exit block has no successor to cross into.
	ExitCost map[ir.Label]uint64
}

// CompressForFunction groups full's nodes by the CFG block their PC
// decodes to and, for each pair of blocks an AEG edge crosses between,
// keeps the maximum cycles-since-block-entry reached at the crossing —
// "the maximum over all AEG paths from any AEG node at u's exit to any
// AEG node at v's entry" that spec.md §4.7's Efficient mode describes,
// generalized from one CFG block pair to the whole function. full must
// have been produced by Build (BlockEntryCycles populated); a
// BuildForBlock graph has nothing to cross-block-compress.
func CompressForFunction(g *cfg.Graph, full *Graph) *CompressedGraph {
	bases := blockBases(g)

	weight := make(map[[2]ir.Label]uint64)
	for _, e := range full.Edges {
		fromLabel, _, ok1 := blockOfPC(full.Nodes[e.From].State.PC, bases)
		toLabel, _, ok2 := blockOfPC(full.Nodes[e.To].State.PC, bases)
		if !ok1 || !ok2 || fromLabel == toLabel {
			continue // same-block edge: already folded into the source's own cost
		}

		entryCycles, known := full.BlockEntryCycles[e.From]
		if !known {
			continue
		}
		delta := full.Nodes[e.To].State.LocalCycles - entryCycles

		key := [2]ir.Label{fromLabel, toLabel}
		if delta > weight[key] {
			weight[key] = delta
		}
	}

	exitCost := make(map[ir.Label]uint64)
	for _, nid := range full.Exits {
		label, _, ok := blockOfPC(full.Nodes[nid].State.PC, bases)
		if !ok {
			continue
		}
		entryCycles, known := full.BlockEntryCycles[nid]
		if !known {
			continue
		}
		delta := full.Nodes[nid].State.LocalCycles - entryCycles
		if delta > exitCost[label] {
			exitCost[label] = delta
		}
	}

	out := &CompressedGraph{
		Blocks:   append([]ir.Label(nil), g.Labels()...),
		Entry:    g.Entry,
		Exits:    make(map[ir.Label]bool, len(g.Exits)),
		ExitCost: exitCost,
	}
	for l := range g.Exits {
		out.Exits[l] = true
	}
	for key, w := range weight {
		out.Edges = append(out.Edges, CompressedEdge{From: key[0], To: key[1], MaxCycles: w})
	}

	return out
}
