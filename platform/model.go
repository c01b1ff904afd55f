// Package platform is the target-processor model (C1): an immutable
// mapping from InstructionClass to Cycles plus cache, memory, and
// pipeline geometry. It is pure data, never mutated during analysis, the
// way the teacher's config.Platform is a read-only snapshot of tiles.
package platform

import (
	"github.com/sarchlab/wcet/ir"
)

// ReplacementPolicy is the cache eviction policy.
type ReplacementPolicy int

const (
	LRU ReplacementPolicy = iota
	PLRU
	FIFO
)

// CacheLevelConfig describes one cache level's geometry.
type CacheLevelConfig struct {
	SizeKB            int
	LineSizeBytes     int
	Associativity     int
	ReplacementPolicy ReplacementPolicy
	HitLatency        uint64
	MissLatency       uint64
}

// NumLines is the total number of cache lines this level holds.
func (c CacheLevelConfig) NumLines() int {
	if c.LineSizeBytes == 0 {
		return 0
	}
	return (c.SizeKB * 1024) / c.LineSizeBytes
}

// NumSets is the number of congruence sets given the configured
// associativity.
func (c CacheLevelConfig) NumSets() int {
	if c.Associativity == 0 {
		return 0
	}
	return c.NumLines() / c.Associativity
}

// CacheConfig bundles the (optionally absent) cache levels.
type CacheConfig struct {
	Instruction *CacheLevelConfig
	Data        *CacheLevelConfig
	L2          *CacheLevelConfig
}

// MemoryLatency is either a fixed or a ranged access latency.
type MemoryLatency struct {
	Fixed       bool
	FixedCycles uint64
	MinCycles   uint64
	MaxCycles   uint64
}

func FixedLatency(cycles uint64) MemoryLatency {
	return MemoryLatency{Fixed: true, FixedCycles: cycles}
}

func VariableLatency(min, max uint64) MemoryLatency {
	return MemoryLatency{Fixed: false, MinCycles: min, MaxCycles: max}
}

// WorstCase returns the latency that must be charged when no sharper
// classification is available.
func (m MemoryLatency) WorstCase() uint64 {
	if m.Fixed {
		return m.FixedCycles
	}
	return m.MaxCycles
}

// BestCase returns the latency that may be charged under the most
// optimistic classification.
func (m MemoryLatency) BestCase() uint64 {
	if m.Fixed {
		return m.FixedCycles
	}
	return m.MinCycles
}

// MemoryConfig describes load/store buffering and backing-store latency.
type MemoryConfig struct {
	LoadBufferSize  int
	StoreBufferSize int
	MemoryLatency   MemoryLatency
}

// MemoryRegion is a named address range with its own latency, layered in
// from the SoC configuration.
type MemoryRegion struct {
	Name    string
	Start   uint64
	Size    uint64
	Latency MemoryLatency
}

// PipelineDepth is restricted to the three stage counts the simulator
// knows stage-type sequences for.
type PipelineDepth int

const (
	Depth3 PipelineDepth = 3
	Depth5 PipelineDepth = 5
	Depth6 PipelineDepth = 6
)

// Model is the complete, immutable target-processor description: timing
// table, geometry, and clock. Different CPU families are distinct values
// of this one record, never distinct Go types — there is no inheritance
// here, matching the teacher's single concrete config.Platform record.
type Model struct {
	Name            string
	CPUFrequencyMHz float64
	PipelineDepth   PipelineDepth
	OutOfOrder      bool
	Cache           CacheConfig
	Memory          MemoryConfig
	MemoryRegions   []MemoryRegion
	ExternalMemory  *MemoryRegion

	timings map[string]ir.Cycles
}

// fallbackCycles is the contractual default returned by GetTiming for any
// class the timing table has no entry for.
var fallbackCycles = ir.NewCycles(1, 1)

// NewModel builds a Model from a timing table keyed by
// InstructionClass.Key(). The map is copied so the resulting Model is
// safe to share across concurrent analyses.
func NewModel(name string, cpuMHz float64, depth PipelineDepth, timings map[string]ir.Cycles) *Model {
	copied := make(map[string]ir.Cycles, len(timings))
	for k, v := range timings {
		copied[k] = v
	}
	return &Model{
		Name:            name,
		CPUFrequencyMHz: cpuMHz,
		PipelineDepth:   depth,
		timings:         copied,
	}
}

// GetTiming returns the defined cost of one InstructionClass. Every class
// has a defined value: classes absent from the table fall back to
// Cycles(1, 1).
func (m *Model) GetTiming(class ir.InstructionClass) ir.Cycles {
	if m.timings == nil {
		return fallbackCycles
	}
	if c, ok := m.timings[class.Key()]; ok {
		return c
	}
	return fallbackCycles
}

// SetTiming overrides (or adds) the cost of one InstructionClass. Used by
// config loading to populate a Model from a layered description.
func (m *Model) SetTiming(class ir.InstructionClass, cycles ir.Cycles) {
	if m.timings == nil {
		m.timings = make(map[string]ir.Cycles)
	}
	m.timings[class.Key()] = cycles
}

// BlockCycles sums GetTiming over a block's instruction stream plus,
// when hasTerminatorCost is true, GetTiming(terminatorCost). The caller
// chooses which class stands for the block's terminator.
func (m *Model) BlockCycles(instructions []ir.InstructionClass, terminatorCost ir.InstructionClass, hasTerminatorCost bool) ir.Cycles {
	total := ir.NewCycles(0, 0)
	for _, inst := range instructions {
		total = total.Add(m.GetTiming(inst))
	}
	if hasTerminatorCost {
		total = total.Add(m.GetTiming(terminatorCost))
	}
	return total
}

// CyclesToMicroseconds converts a cycle count to wall-clock microseconds
// using the configured CPU frequency.
func (m *Model) CyclesToMicroseconds(cycles uint64) float64 {
	if m.CPUFrequencyMHz <= 0 {
		return 0
	}
	return float64(cycles) / m.CPUFrequencyMHz
}
