// Package simulator implements the one-cycle microarchitectural
// transition function (C7): given a MicroArchState and the instruction
// next queued for fetch, it advances every pipeline stage by one cycle,
// resolves any Memory-stage cache access, and splits into hit/miss
// successor states when the access cannot be statically classified.
// CFG traversal (deciding which instruction comes next) is the AEG
// builder's job; this package only knows about cycles.
package simulator

import (
	"github.com/sarchlab/wcet/ir"
	"github.com/sarchlab/wcet/microarch"
	"github.com/sarchlab/wcet/platform"
)

// FetchInput is the instruction (if any) queued for this cycle's Fetch
// stage. Present=false models a bubble (nothing to fetch, e.g. pipeline
// draining at function exit).
type FetchInput struct {
	PC      uint64
	Class   ir.InstructionClass
	Present bool
}

// MemAddress resolves the AbstractAddress a load/store currently in the
// Memory stage targets. Implementations typically wrap an
// cacheanalysis.AddressOracle-shaped lookup keyed on the slot's PC.
type MemAddress func(pc uint64) microarch.AbstractAddress

// Cycle advances state by exactly one cycle, per spec.md §4.5 steps
// 1-6:
//  1. clone the incoming state,
//  2. resolve the Memory stage's cache access (if any) and split into
//     hit/miss successors when the classification is Unknown,
//  3. tick the memory system buffers,
//  4. advance the pipeline back-to-front with stall propagation,
//     injecting fetch into the front,
//  5. bill one cycle to local_cycles on every returned successor.
//
// Returns one state in the common case, two when a Memory-stage access
// classifies Unknown (spec.md §4.5 step 5).
func Cycle(state microarch.MicroArchState, fetch FetchInput, model *platform.Model, addr MemAddress) []microarch.MicroArchState {
	base := state.Clone()

	memSlotIdx := memoryStageIndex(base)
	if memSlotIdx < 0 || base.Pipeline.Stages[memSlotIdx].Slot == nil {
		return []microarch.MicroArchState{step(base, fetch, model)}
	}

	slot := base.Pipeline.Stages[memSlotIdx].Slot
	access, isAccess := slot.Class.IsMemoryAccess()
	if !isAccess {
		return []microarch.MicroArchState{step(base, fetch, model)}
	}

	level := dataLevel(base, access)
	if level == nil {
		return []microarch.MicroArchState{step(base, fetch, model)}
	}

	resolved := slot.MemAddr
	if addr != nil {
		resolved = addr(slot.PC)
	}
	blocks := resolved.Blocks(lineSizeOf(level))
	if len(blocks) == 0 {
		// Address truly unknown, not merely classified Unknown by a
		// resolved block: there is no block to age either way, so this
		// must not split (spec.md §4.5 step 4) — charge the single
		// worst-case (miss) latency and carry on: stall one cycle, the
		// same charge an AlwaysMiss access pays below, and release the
		// stall on the next cycle.
		base.Pipeline.Stages[memSlotIdx].Stalled = !base.Pipeline.Stages[memSlotIdx].Stalled
		return []microarch.MicroArchState{step(base, fetch, model)}
	}

	var worst microarch.AccessClass = microarch.AlwaysHit
	for _, b := range blocks {
		class := level.Classify(b)
		if classRank(class) > classRank(worst) {
			worst = class
		}
	}

	switch worst {
	case microarch.AlwaysHit:
		for _, b := range blocks {
			level.Access(b)
		}
		base.Pipeline.Stages[memSlotIdx].Stalled = false
		return []microarch.MicroArchState{step(base, fetch, model)}
	case microarch.AlwaysMiss:
		for _, b := range blocks {
			level.Access(b)
		}
		base.Pipeline.Stages[memSlotIdx].Stalled = true
		return []microarch.MicroArchState{step(base, fetch, model)}
	default: // Unknown: fork hit and miss successors
		hit := base.Clone()
		hitLevel := dataLevel(hit, access)
		for _, b := range blocks {
			hitLevel.Access(b)
		}
		hit.Pipeline.Stages[memSlotIdx].Stalled = false

		miss := base.Clone()
		missLevel := dataLevel(miss, access)
		for _, b := range blocks {
			missLevel.Access(b)
		}
		miss.Pipeline.Stages[memSlotIdx].Stalled = true

		return []microarch.MicroArchState{
			step(hit, fetch, model),
			step(miss, fetch, model),
		}
	}
}

func step(state microarch.MicroArchState, fetch FetchInput, _ *platform.Model) microarch.MicroArchState {
	state.Memory.Tick()

	var newFront *microarch.InstructionSlot
	if fetch.Present {
		newFront = &microarch.InstructionSlot{PC: fetch.PC, Class: fetch.Class}
	}
	state.Pipeline = state.Pipeline.Advance(newFront)
	state.LocalCycles++
	return state
}

func memoryStageIndex(state microarch.MicroArchState) int {
	for i, s := range state.Pipeline.Stages {
		if s.Type == microarch.StageMemory {
			return i
		}
	}
	return -1
}

func dataLevel(state microarch.MicroArchState, access ir.AccessType) *microarch.CacheLevelState {
	if access == ir.Stack || access == ir.Ram {
		if state.Cache.Data != nil {
			return state.Cache.Data
		}
	}
	return state.Cache.L2
}

func lineSizeOf(l *microarch.CacheLevelState) int {
	if l == nil || l.Config == nil {
		return 1
	}
	return l.Config.LineSizeBytes
}

func classRank(c microarch.AccessClass) int {
	switch c {
	case microarch.AlwaysHit:
		return 0
	case microarch.Unknown:
		return 1
	default:
		return 2
	}
}
