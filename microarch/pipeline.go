package microarch

import "github.com/sarchlab/wcet/ir"

// StageType names a pipeline stage role. The available stages depend on
// platform.PipelineDepth; see StagesForDepth.
type StageType int

const (
	StageFetch StageType = iota
	StageDecode
	StageIssue
	StageExecute
	StageMemory
	StageWriteback
)

func (t StageType) String() string {
	switch t {
	case StageFetch:
		return "Fetch"
	case StageDecode:
		return "Decode"
	case StageIssue:
		return "Issue"
	case StageExecute:
		return "Execute"
	case StageMemory:
		return "Memory"
	case StageWriteback:
		return "Writeback"
	default:
		return "Unknown"
	}
}

// StagesForDepth returns the fixed sequence of stage roles for a given
// pipeline depth, grounded on the classic 3/5-stage RISC pipeline and
// extended to a 6th (Issue) stage for deeper platforms, per spec.md §3.
func StagesForDepth(depth int) []StageType {
	switch depth {
	case 3:
		return []StageType{StageFetch, StageExecute, StageWriteback}
	case 6:
		return []StageType{StageFetch, StageDecode, StageIssue, StageExecute, StageMemory, StageWriteback}
	default: // 5, and any unrecognized depth falls back to the classic 5-stage shape
		return []StageType{StageFetch, StageDecode, StageExecute, StageMemory, StageWriteback}
	}
}

// InstructionSlot is the minimal payload a pipeline stage carries about
// the instruction currently occupying it: enough to classify memory
// accesses and to bill completion cycles on retire.
type InstructionSlot struct {
	PC      uint64
	Class   ir.InstructionClass
	MemAddr AbstractAddress
}

// PipelineStage is one slot of the pipeline: an occupant (if any) and
// whether it is stalled this cycle (waiting on memory or a structural
// hazard downstream).
type PipelineStage struct {
	Type    StageType
	Slot    *InstructionSlot
	Stalled bool
}

// PipelineState is the ordered sequence of stages, front (Fetch) to back
// (Writeback).
type PipelineState struct {
	Stages []PipelineStage
}

// NewPipelineState builds an empty pipeline with the stage shape for the
// given depth.
func NewPipelineState(depth int) PipelineState {
	types := StagesForDepth(depth)
	stages := make([]PipelineStage, len(types))
	for i, t := range types {
		stages[i] = PipelineStage{Type: t}
	}
	return PipelineState{Stages: stages}
}

// Clone returns a deep copy so mutation never aliases the source state.
func (p PipelineState) Clone() PipelineState {
	stages := make([]PipelineStage, len(p.Stages))
	for i, s := range p.Stages {
		cp := s
		if s.Slot != nil {
			slotCopy := *s.Slot
			cp.Slot = &slotCopy
		}
		stages[i] = cp
	}
	return PipelineState{Stages: stages}
}

// IsEmpty reports whether no stage holds an instruction.
func (p PipelineState) IsEmpty() bool {
	for _, s := range p.Stages {
		if s.Slot != nil {
			return false
		}
	}
	return true
}

// Retiring reports the slot draining out the back of the pipeline this
// cycle, if the Writeback stage holds one and is not stalled.
func (p PipelineState) Retiring() (*InstructionSlot, bool) {
	if len(p.Stages) == 0 {
		return nil, false
	}
	last := p.Stages[len(p.Stages)-1]
	if last.Slot == nil || last.Stalled {
		return nil, false
	}
	return last.Slot, true
}

// Advance shifts every non-stalled stage's occupant one slot toward the
// back, injecting newFront at Fetch once Fetch is free. A stage stalled
// this cycle holds its occupant and blocks the stage behind it (closer
// to Fetch) from advancing into it (back-pressure), matching spec.md
// §4.5 step 2's back-to-front rule. When Fetch still holds its occupant
// after the shift, newFront is not injected.
func (p PipelineState) Advance(newFront *InstructionSlot) PipelineState {
	out := p.Clone()
	n := len(out.Stages)
	if n == 0 {
		return out
	}

	// Walk back-to-front: a stage only moves its occupant forward if the
	// stage ahead of it (closer to Writeback) is free or itself advancing.
	moved := make([]bool, n)
	for i := n - 1; i >= 0; i-- {
		if out.Stages[i].Stalled {
			continue
		}
		if i == n-1 {
			// Writeback occupant retires and leaves the pipeline; Retiring()
			// reports it when called before Advance.
			out.Stages[i].Slot = nil
			moved[i] = true
			continue
		}
		next := &out.Stages[i+1]
		if next.Slot != nil && !moved[i+1] {
			// Downstream stage occupied and didn't move: structural stall.
			continue
		}
		next.Slot = out.Stages[i].Slot
		out.Stages[i].Slot = nil
		moved[i] = true
	}

	if out.Stages[0].Slot == nil {
		out.Stages[0].Slot = newFront
	}
	return out
}

// Hash is a deterministic summary for StateKey.
func (p PipelineState) Hash() uint64 {
	var h uint64 = 1469598103934665603
	for _, s := range p.Stages {
		h = fnvMix(h, uint64(s.Type))
		if s.Stalled {
			h = fnvMix(h, 1)
		}
		if s.Slot != nil {
			h = fnvMix(h, s.Slot.PC)
			h = fnvMix(h, hashString(s.Slot.Class.Key()))
		}
	}
	return h
}

func hashString(s string) uint64 {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(s); i++ {
		h = fnvMix(h, uint64(s[i]))
	}
	return h
}
