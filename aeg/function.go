package aeg

import (
	"github.com/sarchlab/wcet/cacheanalysis"
	"github.com/sarchlab/wcet/cfg"
	"github.com/sarchlab/wcet/ir"
	"github.com/sarchlab/wcet/microarch"
	"github.com/sarchlab/wcet/platform"
	"github.com/sarchlab/wcet/simulator"
)

// blockPCStride spaces each block's PC range far enough apart that no
// block's instruction count can ever run into its neighbor's, letting a
// whole-function Build encode (block, instruction index) as a single
// global PC the way BuildForBlock encodes it within one block.
const blockPCStride = 1 << 20

func blockBases(g *cfg.Graph) map[ir.Label]uint64 {
	order := g.Labels()
	bases := make(map[ir.Label]uint64, len(order))
	for i, l := range order {
		bases[l] = uint64(i) * blockPCStride
	}
	return bases
}

func blockOfPC(pc uint64, bases map[ir.Label]uint64) (ir.Label, int, bool) {
	key := (pc / blockPCStride) * blockPCStride
	for l, b := range bases {
		if b == key {
			return l, int(pc - key), true
		}
	}
	return "", 0, false
}

type functionFrontierItem struct {
	id    NodeID
	label ir.Label
	idx   int // next instruction index to fetch within label
}

// Build explores the whole function's AEG (spec.md §4.6's primary
// construction entry, as opposed to BuildForBlock's narrower
// single-block alternative): once a block's instructions are exhausted
// and its pipeline has drained, exploration forks one successor per CFG
// out-edge rather than stopping, so the graph spans the function's
// control flow and joins recurring states across block boundaries, not
// just within one block. A path stops once it reaches a CFG exit with a
// drained pipeline, or once maxCycles local cycles have elapsed — the
// primary entry's termination predicate, a cycle budget rather than
// build_for_block's "done fetching this one block" predicate.
func Build(g *cfg.Graph, initial microarch.MicroArchState, model *platform.Model, oracle cacheanalysis.AddressOracle, maxCycles uint64, maxNodes int) (*Graph, error) {
	bases := blockBases(g)

	instrsOf := func(label ir.Label) []ir.InstructionClass {
		block, ok := g.Function.BlockByLabel(label)
		if !ok {
			return nil
		}
		return block.Instructions
	}

	addr := func(pc uint64) microarch.AbstractAddress {
		label, idx, ok := blockOfPC(pc, bases)
		if !ok {
			return microarch.UnknownAddress()
		}
		instrs := instrsOf(label)
		if idx < 0 || idx >= len(instrs) {
			return microarch.UnknownAddress()
		}
		resolved, ok := oracle.Address(label, idx, instrs[idx])
		if !ok {
			return microarch.UnknownAddress()
		}
		return resolved
	}

	out := &Graph{BlockEntryCycles: make(map[NodeID]uint64)}
	index := make(map[microarch.StateKey]NodeID)

	startLabel := g.Entry
	entryState := initial
	entryState.PC = bases[startLabel]
	entry := out.addNode(entryState)
	index[entryState.Key()] = entry
	out.Entry = entry
	out.BlockEntryCycles[entry] = entryState.LocalCycles
	baseCycles := entryState.LocalCycles

	worklist := []functionFrontierItem{{id: entry, label: startLabel, idx: 0}}

	for len(worklist) > 0 {
		if len(out.Nodes) > maxNodes {
			return nil, &StateSpaceExplosion{Limit: maxNodes}
		}

		// FIFO: breadth-first over cycles, per spec.md §4.6, so
		// exploration order is deterministic across block boundaries too.
		item := worklist[0]
		worklist = worklist[1:]

		node := out.Nodes[item.id]
		state := node.State

		if state.LocalCycles-baseCycles >= maxCycles {
			out.Exits = append(out.Exits, item.id)
			continue
		}

		instrs := instrsOf(item.label)

		var fetch simulator.FetchInput
		if item.idx < len(instrs) {
			fetch = simulator.FetchInput{PC: bases[item.label] + uint64(item.idx), Class: instrs[item.idx], Present: true}
		}

		successors := simulator.Cycle(state, fetch, model, addr)
		myEntryCycles := out.BlockEntryCycles[item.id]

		for _, succ := range successors {
			nextIdx := item.idx
			if item.idx < len(instrs) {
				nextIdx = item.idx + 1
			}

			if nextIdx < len(instrs) || !succ.Pipeline.IsEmpty() {
				// Still fetching, or draining, within the same block.
				succ.PC = bases[item.label] + uint64(nextIdx)
				newID, isNew := out.joinOrAdd(index, item.id, succ, myEntryCycles)
				if isNew {
					worklist = append(worklist, functionFrontierItem{id: newID, label: item.label, idx: nextIdx})
				}
				continue
			}

			// Block exhausted and drained: branch to every CFG successor.
			succLabels := g.SuccessorLabels(item.label)
			if len(succLabels) == 0 {
				succ.PC = bases[item.label] + uint64(nextIdx)
				newID, isNew := out.joinOrAdd(index, item.id, succ, myEntryCycles)
				if isNew {
					out.Exits = append(out.Exits, newID)
				}
				continue
			}

			for _, nextLabel := range succLabels {
				fork := succ
				fork.PC = bases[nextLabel]
				newID, isNew := out.joinOrAdd(index, item.id, fork, fork.LocalCycles)
				if isNew {
					worklist = append(worklist, functionFrontierItem{id: newID, label: nextLabel, idx: 0})
				}
			}
		}
	}

	if len(out.Exits) == 0 {
		out.Exits = []NodeID{out.Entry}
	}

	return out, nil
}
