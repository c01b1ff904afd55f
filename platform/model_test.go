package platform_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/wcet/ir"
	"github.com/sarchlab/wcet/platform"
)

var _ = Describe("Model", func() {
	It("falls back to Cycles(1,1) for unconfigured classes", func() {
		m := platform.NewModel("test", 100, platform.Depth5, nil)
		c := m.GetTiming(ir.Add())
		Expect(c).To(Equal(ir.NewCycles(1, 1)))
	})

	It("returns a configured timing exactly", func() {
		m := platform.NewModel("test", 100, platform.Depth5, map[string]ir.Cycles{
			ir.Add().Key(): ir.NewCycles(1, 1),
		})
		m.SetTiming(ir.Load(ir.Ram), ir.NewCycles(1, 2))
		c := m.GetTiming(ir.Load(ir.Ram))
		Expect(c).To(Equal(ir.NewCycles(1, 2)))
	})

	It("converts cycles to microseconds using cpu frequency", func() {
		m := platform.NewModel("test", 2, platform.Depth5, nil)
		Expect(m.CyclesToMicroseconds(10)).To(Equal(5.0))
	})

	It("is never mutated by GetTiming (read-only contract)", func() {
		m := platform.NewModel("test", 100, platform.Depth5, map[string]ir.Cycles{
			ir.Add().Key(): ir.NewCycles(3, 3),
		})
		before := m.GetTiming(ir.Add())
		for i := 0; i < 100; i++ {
			m.GetTiming(ir.Add())
		}
		Expect(m.GetTiming(ir.Add())).To(Equal(before))
	})
})

var _ = Describe("LoadLayered", func() {
	It("merges ISA, Core, SoC, and Board YAML layers", func() {
		dir := GinkgoT().TempDir()

		isaPath := filepath.Join(dir, "isa.yaml")
		corePath := filepath.Join(dir, "core.yaml")
		socPath := filepath.Join(dir, "soc.yaml")
		boardPath := filepath.Join(dir, "board.yaml")

		Expect(os.WriteFile(isaPath, []byte(`
name: armv7e-m
instruction_timings:
  alu: 1
  load: 2
  store: 2
  branch: 1
  multiply: 3
  divide: 10
`), 0o644)).To(Succeed())

		Expect(os.WriteFile(corePath, []byte(`
name: cortex-m4
pipeline:
  stages: 5
  pipeline_type: inorder
cache:
  data:
    size_kb: 16
    line_size_bytes: 32
    associativity: 4
    replacement_policy: lru
    hit_latency: 1
    miss_latency: 10
memory:
  load_buffer_size: 4
  store_buffer_size: 4
  memory_latency:
    fixed:
      cycles: 10
`), 0o644)).To(Succeed())

		Expect(os.WriteFile(socPath, []byte(`
name: stm32f746
cpu_frequency_mhz: 216
memory_regions:
  - name: sram
    start: 0
    size: 262144
    latency:
      fixed:
        cycles: 1
`), 0o644)).To(Succeed())

		Expect(os.WriteFile(boardPath, []byte(`
name: stm32f746-discovery
external_memory:
  memory_type: sdram
  size_mb: 8
  latency:
    variable:
      min: 5
      max: 20
`), 0o644)).To(Succeed())

		m, err := platform.LoadLayered(isaPath, corePath, socPath, boardPath)
		Expect(err).NotTo(HaveOccurred())

		Expect(m.Name).To(Equal("armv7e-m"))
		Expect(m.CPUFrequencyMHz).To(Equal(216.0))
		Expect(m.PipelineDepth).To(Equal(platform.Depth5))
		Expect(m.Cache.Data.SizeKB).To(Equal(16))
		Expect(m.Cache.Instruction).To(BeNil())
		Expect(m.Memory.MemoryLatency.WorstCase()).To(Equal(uint64(10)))
		Expect(m.MemoryRegions).To(HaveLen(1))
		Expect(m.ExternalMemory).NotTo(BeNil())
		Expect(m.ExternalMemory.Size).To(Equal(uint64(8 * 1024 * 1024)))

		Expect(m.GetTiming(ir.Mul()).WorstCase).To(Equal(uint64(3)))
		Expect(m.GetTiming(ir.Load(ir.Ram)).WorstCase).To(Equal(uint64(2)))
	})

	It("rejects an invalid pipeline stage count", func() {
		dir := GinkgoT().TempDir()
		corePath := filepath.Join(dir, "core.yaml")
		Expect(os.WriteFile(corePath, []byte(`
pipeline:
  stages: 4
`), 0o644)).To(Succeed())

		_, err := platform.LoadLayered("", corePath, "", "")
		Expect(err).To(HaveOccurred())
	})
})
