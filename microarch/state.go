package microarch

import "github.com/sarchlab/wcet/platform"

// StateKey is the lookup key the AEG builder uses to detect when two
// explored states are candidates for joining: same program point, same
// pipeline shape, same cache shape, per spec.md §4.6.
type StateKey struct {
	PC           uint64
	PipelineHash uint64
	CacheHash    uint64
}

// MicroArchState is the full abstract machine state explored by the
// simulator: program counter, pipeline occupancy, cache contents, memory
// system buffers, and accumulated local cycle count (C5).
type MicroArchState struct {
	PC          uint64
	Pipeline    PipelineState
	Cache       CacheState
	Memory      MemorySystemState
	LocalCycles uint64
}

// NewMicroArchState builds the initial (cold) state at function entry.
func NewMicroArchState(entryPC uint64, m *platform.Model) MicroArchState {
	return MicroArchState{
		PC:       entryPC,
		Pipeline: NewPipelineState(int(m.PipelineDepth)),
		Cache:    NewCacheState(m.Cache),
		Memory:   NewMemorySystemState(m.Memory),
	}
}

// Clone returns a deep copy; the simulator clones before mutating so
// each explored successor state is independent, per spec.md §4.5 step 1.
func (s MicroArchState) Clone() MicroArchState {
	return MicroArchState{
		PC:          s.PC,
		Pipeline:    s.Pipeline.Clone(),
		Cache:       s.Cache.Clone(),
		Memory:      s.Memory.Clone(),
		LocalCycles: s.LocalCycles,
	}
}

// Key returns the lookup key for AEG node deduplication/joining.
func (s MicroArchState) Key() StateKey {
	return StateKey{
		PC:           s.PC,
		PipelineHash: s.Pipeline.Hash(),
		CacheHash:    s.Cache.Hash(),
	}
}

// IsJoinable reports whether two states at the same program point have
// dimensionally compatible pipeline and cache shapes, per spec.md §4.6.
// States at different PCs are never joinable.
func (s MicroArchState) IsJoinable(other MicroArchState) bool {
	if s.PC != other.PC {
		return false
	}
	if len(s.Pipeline.Stages) != len(other.Pipeline.Stages) {
		return false
	}
	for i := range s.Pipeline.Stages {
		if s.Pipeline.Stages[i].Type != other.Pipeline.Stages[i].Type {
			return false
		}
	}
	return s.Cache.IsJoinable(other.Cache) && s.Memory.IsJoinable(other.Memory)
}

// Join merges two joinable states: must/may cache sets per CacheSet.Join,
// pending memory accesses unioned, stalls OR'd, pipeline slots merged
// with a deterministic tie-break (lower PC wins — arbitrary but stable),
// and local cycles taken as the max (the conservative, worst-case
// choice), per spec.md §4.6 and this implementation's resolution of
// Open Question 2: join rewrites state in place rather than redirecting
// edges, so the caller is expected to replace the existing node's state
// with the result.
func (s MicroArchState) Join(other MicroArchState) MicroArchState {
	out := MicroArchState{
		PC:          s.PC,
		Cache:       s.Cache.Join(other.Cache),
		Memory:      s.Memory.Join(other.Memory),
		LocalCycles: maxUint64(s.LocalCycles, other.LocalCycles),
	}
	out.Pipeline = joinPipelines(s.Pipeline, other.Pipeline)
	return out
}

func joinPipelines(a, b PipelineState) PipelineState {
	n := len(a.Stages)
	out := PipelineState{Stages: make([]PipelineStage, n)}
	for i := 0; i < n; i++ {
		sa, sb := a.Stages[i], b.Stages[i]
		merged := PipelineStage{Type: sa.Type, Stalled: sa.Stalled || sb.Stalled}
		switch {
		case sa.Slot == nil && sb.Slot == nil:
			// no occupant
		case sa.Slot == nil:
			slot := *sb.Slot
			merged.Slot = &slot
		case sb.Slot == nil:
			slot := *sa.Slot
			merged.Slot = &slot
		case sa.Slot.PC <= sb.Slot.PC:
			slot := *sa.Slot
			merged.Slot = &slot
		default:
			slot := *sb.Slot
			merged.Slot = &slot
		}
		out.Stages[i] = merged
	}
	return out
}

func maxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
