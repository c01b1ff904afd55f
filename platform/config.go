package platform

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/wcet/ir"
)

// InstructionTimingsYAML is the per-class-bucket timing table an ISA
// layer contributes. This mirrors the coarse per-category schema in
// spec.md §6 (alu/load/store/branch/multiply/divide); a richer per-class
// table can still be layered on top via Model.SetTiming.
type InstructionTimingsYAML struct {
	ALU      uint64 `yaml:"alu"`
	Load     uint64 `yaml:"load"`
	Store    uint64 `yaml:"store"`
	Branch   uint64 `yaml:"branch"`
	Multiply uint64 `yaml:"multiply"`
	Divide   uint64 `yaml:"divide"`
}

// ISAConfig is the ISA-level configuration layer.
type ISAConfig struct {
	Name              string                  `yaml:"name"`
	InstructionTimings InstructionTimingsYAML `yaml:"instruction_timings"`
}

// CacheLevelYAML is the on-disk shape of one cache level.
type CacheLevelYAML struct {
	SizeKB            int    `yaml:"size_kb"`
	LineSizeBytes     int    `yaml:"line_size_bytes"`
	Associativity     int    `yaml:"associativity"`
	ReplacementPolicy string `yaml:"replacement_policy"`
	HitLatency        uint64 `yaml:"hit_latency"`
	MissLatency       uint64 `yaml:"miss_latency"`
}

func (c *CacheLevelYAML) toConfig() *CacheLevelConfig {
	if c == nil {
		return nil
	}
	policy := LRU
	switch c.ReplacementPolicy {
	case "plru", "PLRU":
		policy = PLRU
	case "fifo", "FIFO":
		policy = FIFO
	}
	return &CacheLevelConfig{
		SizeKB:            c.SizeKB,
		LineSizeBytes:     c.LineSizeBytes,
		Associativity:     c.Associativity,
		ReplacementPolicy: policy,
		HitLatency:        c.HitLatency,
		MissLatency:       c.MissLatency,
	}
}

// CacheYAML bundles the (optional) per-level cache layers.
type CacheYAML struct {
	Instruction *CacheLevelYAML `yaml:"instruction"`
	Data        *CacheLevelYAML `yaml:"data"`
	L2          *CacheLevelYAML `yaml:"l2"`
}

// MemoryLatencyYAML is the on-disk shape of MemoryLatency: either
// `fixed: {cycles: N}` or `variable: {min: N, max: M}`.
type MemoryLatencyYAML struct {
	Fixed *struct {
		Cycles uint64 `yaml:"cycles"`
	} `yaml:"fixed"`
	Variable *struct {
		Min uint64 `yaml:"min"`
		Max uint64 `yaml:"max"`
	} `yaml:"variable"`
}

func (m MemoryLatencyYAML) toConfig() MemoryLatency {
	if m.Variable != nil {
		return VariableLatency(m.Variable.Min, m.Variable.Max)
	}
	if m.Fixed != nil {
		return FixedLatency(m.Fixed.Cycles)
	}
	return FixedLatency(1)
}

// MemoryYAML is the Core-level memory subsystem layer.
type MemoryYAML struct {
	LoadBufferSize  int                `yaml:"load_buffer_size"`
	StoreBufferSize int                `yaml:"store_buffer_size"`
	MemoryLatency   MemoryLatencyYAML  `yaml:"memory_latency"`
}

// PipelineYAML is the Core-level pipeline layer.
type PipelineYAML struct {
	Stages       int    `yaml:"stages"`
	PipelineType string `yaml:"pipeline_type"`
}

// CoreConfig is the Core-level configuration layer.
type CoreConfig struct {
	Name     string       `yaml:"name"`
	Pipeline PipelineYAML `yaml:"pipeline"`
	Cache    CacheYAML    `yaml:"cache"`
	Memory   MemoryYAML   `yaml:"memory"`
}

// MemoryRegionYAML is one entry of the SoC-level memory map.
type MemoryRegionYAML struct {
	Name    string             `yaml:"name"`
	Start   uint64             `yaml:"start"`
	Size    uint64             `yaml:"size"`
	Latency MemoryLatencyYAML  `yaml:"latency"`
}

// SoCConfig is the SoC-level configuration layer.
type SoCConfig struct {
	Name             string             `yaml:"name"`
	CPUFrequencyMHz  float64            `yaml:"cpu_frequency_mhz"`
	MemoryRegions    []MemoryRegionYAML `yaml:"memory_regions"`
}

// ExternalMemoryYAML is the Board-level optional external-memory layer.
type ExternalMemoryYAML struct {
	MemoryType string             `yaml:"memory_type"`
	SizeMB     uint64             `yaml:"size_mb"`
	Latency    MemoryLatencyYAML  `yaml:"latency"`
}

// BoardConfig is the Board-level configuration layer.
type BoardConfig struct {
	Name           string              `yaml:"name"`
	ExternalMemory *ExternalMemoryYAML `yaml:"external_memory"`
}

// Loader reads the ISA -> Core -> SoC -> Board layers and merges them
// into one Model, the way core.Program parses a YAMLCoreProgram.
type Loader struct {
	ISA   ISAConfig
	Core  CoreConfig
	SoC   *SoCConfig
	Board *BoardConfig
}

// LoadLayered reads each non-empty path as a YAML document into the
// corresponding layer and merges them. A path of "" skips that
// (optional) layer.
func LoadLayered(isaPath, corePath, socPath, boardPath string) (*Model, error) {
	var l Loader

	if err := readYAML(isaPath, &l.ISA); err != nil {
		return nil, fmt.Errorf("platform: loading ISA layer: %w", err)
	}
	if err := readYAML(corePath, &l.Core); err != nil {
		return nil, fmt.Errorf("platform: loading Core layer: %w", err)
	}
	if socPath != "" {
		l.SoC = &SoCConfig{}
		if err := readYAML(socPath, l.SoC); err != nil {
			return nil, fmt.Errorf("platform: loading SoC layer: %w", err)
		}
	}
	if boardPath != "" {
		l.Board = &BoardConfig{}
		if err := readYAML(boardPath, l.Board); err != nil {
			return nil, fmt.Errorf("platform: loading Board layer: %w", err)
		}
	}

	return l.Build()
}

func readYAML(path string, out interface{}) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

// Build merges the already-populated layers into an immutable Model.
func (l Loader) Build() (*Model, error) {
	if l.Core.Pipeline.Stages != 3 && l.Core.Pipeline.Stages != 5 && l.Core.Pipeline.Stages != 6 {
		return nil, fmt.Errorf("platform: pipeline.stages must be 3, 5, or 6, got %d", l.Core.Pipeline.Stages)
	}

	cpuMHz := 1.0
	if l.SoC != nil && l.SoC.CPUFrequencyMHz > 0 {
		cpuMHz = l.SoC.CPUFrequencyMHz
	}

	timings := bucketTimings(l.ISA.InstructionTimings)

	m := NewModel(l.ISA.Name, cpuMHz, PipelineDepth(l.Core.Pipeline.Stages), timings)
	m.OutOfOrder = l.Core.Pipeline.PipelineType == "outoforder"

	m.Cache = CacheConfig{
		Instruction: l.Core.Cache.Instruction.toConfig(),
		Data:        l.Core.Cache.Data.toConfig(),
		L2:          l.Core.Cache.L2.toConfig(),
	}
	m.Memory = MemoryConfig{
		LoadBufferSize:  l.Core.Memory.LoadBufferSize,
		StoreBufferSize: l.Core.Memory.StoreBufferSize,
		MemoryLatency:   l.Core.Memory.MemoryLatency.toConfig(),
	}

	if l.SoC != nil {
		for _, r := range l.SoC.MemoryRegions {
			m.MemoryRegions = append(m.MemoryRegions, MemoryRegion{
				Name:    r.Name,
				Start:   r.Start,
				Size:    r.Size,
				Latency: r.Latency.toConfig(),
			})
		}
	}

	if l.Board != nil && l.Board.ExternalMemory != nil {
		m.ExternalMemory = &MemoryRegion{
			Name:    l.Board.ExternalMemory.MemoryType,
			Size:    l.Board.ExternalMemory.SizeMB * 1024 * 1024,
			Latency: l.Board.ExternalMemory.Latency.toConfig(),
		}
	}

	return m, nil
}

// bucketTimings expands the coarse alu/load/store/branch/multiply/divide
// buckets into the per-InstructionClass timing table GetTiming consults.
func bucketTimings(t InstructionTimingsYAML) map[string]ir.Cycles {
	alu := ir.NewCycles(t.ALU, t.ALU)
	load := ir.NewCycles(t.Load, t.Load)
	store := ir.NewCycles(t.Store, t.Store)
	branch := ir.NewCycles(t.Branch, t.Branch)
	mul := ir.NewCycles(t.Multiply, t.Multiply)
	div := ir.NewCycles(t.Divide, t.Divide)

	out := map[string]ir.Cycles{
		ir.Add().Key():  alu,
		ir.Sub().Key():  alu,
		ir.And().Key():  alu,
		ir.Or().Key():   alu,
		ir.Xor().Key():  alu,
		ir.Shl().Key():  alu,
		ir.Shr().Key():  alu,
		ir.FAdd().Key(): alu,
		ir.FSub().Key(): alu,
		ir.Mul().Key():  mul,
		ir.FMul().Key(): mul,
		ir.Div().Key():  div,
		ir.FDiv().Key(): div,
		ir.Rem().Key():  div,
		ir.Branch().Key(): branch,
		ir.Call().Key():   branch,
		ir.Ret().Key():    branch,
	}
	for _, access := range []ir.AccessType{ir.Ram, ir.Flash, ir.Peripheral, ir.Stack} {
		out[ir.Load(access).Key()] = load
		out[ir.Store(access).Key()] = store
	}
	return out
}
