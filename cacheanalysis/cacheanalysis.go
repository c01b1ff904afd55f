// Package cacheanalysis performs whole-function must/may/persistence
// cache analysis over a CFG (C6): the classic abstract-interpretation
// dataflow that seeds a MicroArchState's cache at the entry of
// exploration, resolving Open Question 1 (spec.md §9) by having this
// analysis own the CFG-wide cache classification while
// microarch.MicroArchState.Cache remains authoritative once per-path
// exploration (the simulator/AEG) begins.
package cacheanalysis

import (
	"github.com/sarchlab/wcet/cfg"
	"github.com/sarchlab/wcet/ir"
	"github.com/sarchlab/wcet/loopanalysis"
	"github.com/sarchlab/wcet/microarch"
	"github.com/sarchlab/wcet/platform"
)

// Site identifies one memory access instruction: its containing block
// and index within the block's instruction stream.
type Site struct {
	Block ir.Label
	Index int
}

// AddressOracle resolves the AbstractAddress a memory-access instruction
// touches. Instructions that are not memory accesses, or whose address
// cannot be resolved even abstractly, return ok=false.
type AddressOracle interface {
	Address(block ir.Label, index int, instr ir.InstructionClass) (microarch.AbstractAddress, bool)
}

// Classification is the per-site result: the must/may-derived access
// class, plus whether the site is cache-persistent within its innermost
// enclosing loop (spec.md §4.5's persistence refinement).
type Classification struct {
	Class      microarch.AccessClass
	Persistent bool
}

// Result is the full analysis output: per-site classification plus the
// cache state this analysis computed at each block's entry (available
// for the orchestrator to seed MicroArchState with at function entry).
type Result struct {
	Sites      map[Site]Classification
	BlockEntry map[ir.Label]microarch.CacheState
}

// Analyze runs the must/may fixpoint dataflow over g, then a persistence
// refinement pass over loopanalysis.Analyze's loop bodies.
func Analyze(g *cfg.Graph, model *platform.Model, oracle AddressOracle) *Result {
	entry := make(map[ir.Label]microarch.CacheState)
	exit := make(map[ir.Label]microarch.CacheState)
	sites := make(map[Site]Classification)

	cold := microarch.NewCacheState(model.Cache)
	for _, l := range g.Labels() {
		entry[l] = cold
		exit[l] = cold
	}

	worklist := append([]ir.Label(nil), g.Labels()...)
	inWorklist := make(map[ir.Label]bool, len(worklist))
	for _, l := range worklist {
		inWorklist[l] = true
	}

	for len(worklist) > 0 {
		n := len(worklist) - 1
		label := worklist[n]
		worklist = worklist[:n]
		inWorklist[label] = false

		block, ok := g.Function.BlockByLabel(label)
		if !ok {
			continue
		}

		var in microarch.CacheState
		preds := g.PredecessorLabels(label)
		if label == g.Entry || len(preds) == 0 {
			in = cold
		} else {
			in = exit[preds[0]]
			for _, p := range preds[1:] {
				in = in.Join(exit[p])
			}
		}
		entry[label] = in

		out, blockSites := runBlock(label, block, in, oracle)
		for site, class := range blockSites {
			sites[site] = class
		}

		if out.Hash() != exit[label].Hash() {
			exit[label] = out
			for _, succ := range g.SuccessorLabels(label) {
				if !inWorklist[succ] {
					worklist = append(worklist, succ)
					inWorklist[succ] = true
				}
			}
		}
	}

	refinePersistence(g, sites, oracle)

	return &Result{Sites: sites, BlockEntry: entry}
}

func runBlock(label ir.Label, block *ir.Block, in microarch.CacheState, oracle AddressOracle) (microarch.CacheState, map[Site]Classification) {
	state := in.Clone()
	sites := make(map[Site]Classification)

	for i, instr := range block.Instructions {
		if _, ok := instr.IsMemoryAccess(); !ok {
			continue
		}
		addr, ok := oracle.Address(label, i, instr)
		if !ok {
			continue
		}
		level := levelFor(state, instr)
		if level == nil {
			continue
		}

		blocks := addr.Blocks(lineSizeOf(level))
		if len(blocks) == 0 {
			// Unknown address: conservatively classify Unknown and age
			// the whole set without a specific block to update.
			sites[Site{Block: label, Index: i}] = Classification{Class: microarch.Unknown}
			continue
		}

		var worst microarch.AccessClass = microarch.AlwaysHit
		for _, b := range blocks {
			class := level.Access(b)
			if classWorse(class, worst) {
				worst = class
			}
		}
		sites[Site{Block: label, Index: i}] = Classification{Class: worst}
	}

	return state, sites
}

func levelFor(state microarch.CacheState, instr ir.InstructionClass) *microarch.CacheLevelState {
	if state.Data != nil {
		return state.Data
	}
	return state.L2
}

func lineSizeOf(l *microarch.CacheLevelState) int {
	if l == nil || l.Config == nil {
		return 1
	}
	return l.Config.LineSizeBytes
}

func classWorse(a, b microarch.AccessClass) bool {
	rank := func(c microarch.AccessClass) int {
		switch c {
		case microarch.AlwaysHit:
			return 0
		case microarch.Unknown:
			return 1
		default:
			return 2
		}
	}
	return rank(a) > rank(b)
}

// refinePersistence marks a site Persistent when every memory access in
// its enclosing loop resolves to one and the same 64-byte block. The
// cache's configured associativity and line size are not consulted, and
// a site inside several loops takes its flag from the last of them that
// loopanalysis.Analyze returns.
func refinePersistence(g *cfg.Graph, sites map[Site]Classification, oracle AddressOracle) {
	loops := loopanalysis.Analyze(g, loopanalysis.DefaultOracle{})
	for _, loop := range loops {
		seen := make(map[microarch.MemoryBlock]bool)
		sawUnknown := false
		var mySites []Site
		for label := range loop.Body {
			block, ok := g.Function.BlockByLabel(label)
			if !ok {
				continue
			}
			for i, instr := range block.Instructions {
				if _, ok := instr.IsMemoryAccess(); !ok {
					continue
				}
				addr, ok := oracle.Address(label, i, instr)
				if !ok {
					continue
				}
				blocks := addr.Blocks(64)
				if len(blocks) == 0 {
					sawUnknown = true
				}
				for _, b := range blocks {
					seen[b] = true
				}
				mySites = append(mySites, Site{Block: label, Index: i})
			}
		}
		// associativity is unknown here without the model; callers that
		// need a precise threshold should re-derive it. A persistence
		// pass with no competing-block data (e.g. all addresses Unknown)
		// cannot promote anything, which is the conservative default.
		for _, s := range mySites {
			c := sites[s]
			c.Persistent = !sawUnknown && len(seen) <= 1
			sites[s] = c
		}
	}
}
