// Package aeg builds and compresses the Abstract Execution Graph (C8,
// C9): the state-joining exploration of every cycle-by-cycle
// microarchitectural path through one basic block's instruction stream
// (BuildForBlock) or through a whole function's CFG (Build), collapsed to
// a small graph that yields the worst-case cycle cost.
package aeg

import (
	"fmt"

	"github.com/sarchlab/wcet/ir"
	"github.com/sarchlab/wcet/microarch"
	"github.com/sarchlab/wcet/platform"
	"github.com/sarchlab/wcet/simulator"
)

// NodeID indexes Graph.Nodes.
type NodeID int

// Node is one explored (or joined) MicroArchState.
type Node struct {
	Key   microarch.StateKey
	State microarch.MicroArchState
}

// Edge is a one-cycle transition between two explored states.
type Edge struct {
	From, To NodeID
	Cycles   uint64
}

// Graph is the explored state space of one block (BuildForBlock) or of a
// whole function (Build), rooted at Entry and draining into one or more
// Exits once the pipeline has both finished fetching and emptied. A join
// records an edge to an already-explored node, so the graph can contain
// cycles.
type Graph struct {
	Nodes []Node
	Edges []Edge
	Entry NodeID
	Exits []NodeID

	// BlockEntryCycles records, for a whole-function Graph built by
	// Build, the LocalCycles value at the moment each node's block was
	// entered (nil for a BuildForBlock graph, which has only one block).
	// CompressForFunction uses it to charge a cross-block edge the
	// cycles spent solely within the source block, not since function
	// entry.
	BlockEntryCycles map[NodeID]uint64
}

// WorstCaseCycles returns the maximum LocalCycles delta from Entry to
// any Exit: the block's contribution to the enclosing path's cost.
func (g *Graph) WorstCaseCycles() ir.Cycles {
	if len(g.Exits) == 0 {
		return ir.NewCycles(0, 0)
	}
	base := g.Nodes[g.Entry].State.LocalCycles
	var best uint64
	for _, e := range g.Exits {
		delta := g.Nodes[e].State.LocalCycles - base
		if delta > best {
			best = delta
		}
	}
	return ir.NewCycles(best, best)
}

// StateSpaceExplosion is returned when exploration exceeds the
// configured node budget without converging — the caller should fall
// back to a coarser, block-level IPET estimate (spec.md §4.6 / §7).
type StateSpaceExplosion struct {
	Limit int
}

func (e *StateSpaceExplosion) Error() string {
	return fmt.Sprintf("aeg: state space exceeded %d nodes without converging", e.Limit)
}

type frontierItem struct {
	id  NodeID
	idx int // next instruction index to fetch
}

// BuildForBlock explores every cycle-by-cycle path through instrs,
// starting from initial (whose PC names the block's first fetch
// address), joining states that recur at the same (pc, pipeline shape,
// cache shape) per spec.md §4.6's resolution of Open Question 2: a join
// rewrites the existing node's state rather than merely redirecting
// edges. Exploration continues until the pipeline both has fetched every
// instruction and drained (Pipeline.IsEmpty()), or until maxNodes is
// exceeded.
func BuildForBlock(initial microarch.MicroArchState, instrs []ir.InstructionClass, model *platform.Model, addr simulator.MemAddress, maxNodes int) (*Graph, error) {
	g := &Graph{}
	index := make(map[microarch.StateKey]NodeID)

	entryState := initial
	entryState.PC = initial.PC
	entry := g.addNode(entryState)
	index[entryState.Key()] = entry
	g.Entry = entry

	worklist := []frontierItem{{id: entry, idx: 0}}

	for len(worklist) > 0 {
		if len(g.Nodes) > maxNodes {
			return nil, &StateSpaceExplosion{Limit: maxNodes}
		}

		// FIFO: breadth-first over cycles, per spec.md §4.6, so
		// exploration order (and therefore which nodes are visited
		// before maxNodes triggers) is deterministic.
		item := worklist[0]
		worklist = worklist[1:]

		node := g.Nodes[item.id]
		state := node.State

		var fetch simulator.FetchInput
		if item.idx < len(instrs) {
			fetch = simulator.FetchInput{PC: initial.PC + uint64(item.idx), Class: instrs[item.idx], Present: true}
		}

		successors := simulator.Cycle(state, fetch, model, addr)

		for _, succ := range successors {
			nextIdx := item.idx
			if item.idx < len(instrs) {
				nextIdx = item.idx + 1
			}
			succ.PC = initial.PC + uint64(nextIdx)

			newID, isNew := g.joinOrAdd(index, item.id, succ, 0)
			if !isNew {
				continue
			}

			if nextIdx >= len(instrs) && succ.Pipeline.IsEmpty() {
				g.Exits = append(g.Exits, newID)
				continue
			}
			worklist = append(worklist, frontierItem{id: newID, idx: nextIdx})
		}
	}

	if len(g.Exits) == 0 {
		// Degenerate block (e.g. empty instruction stream): the entry
		// itself is the exit.
		g.Exits = []NodeID{g.Entry}
	}

	return g, nil
}

func (g *Graph) addNode(state microarch.MicroArchState) NodeID {
	id := NodeID(len(g.Nodes))
	g.Nodes = append(g.Nodes, Node{Key: state.Key(), State: state})
	return id
}

// joinOrAdd looks up succ's StateKey; a joinable match rewrites that
// node's state in place (spec.md §4.6's join semantics) and records an
// edge from `from`, returning the existing id and isNew=false. Otherwise
// a new node is created, with blockEntryCycles recorded against it when
// g.BlockEntryCycles is in use (whole-function builds only).
func (g *Graph) joinOrAdd(index map[microarch.StateKey]NodeID, from NodeID, succ microarch.MicroArchState, blockEntryCycles uint64) (id NodeID, isNew bool) {
	key := succ.Key()
	if existingID, ok := index[key]; ok {
		existing := g.Nodes[existingID]
		if existing.State.IsJoinable(succ) {
			g.Nodes[existingID].State = existing.State.Join(succ)
			g.Edges = append(g.Edges, Edge{From: from, To: existingID, Cycles: 1})
			return existingID, false
		}
	}

	newID := g.addNode(succ)
	index[key] = newID
	g.Edges = append(g.Edges, Edge{From: from, To: newID, Cycles: 1})
	if g.BlockEntryCycles != nil {
		g.BlockEntryCycles[newID] = blockEntryCycles
	}
	return newID, true
}
