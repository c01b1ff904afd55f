package orchestrator_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/wcet/ir"
	"github.com/sarchlab/wcet/orchestrator"
	"github.com/sarchlab/wcet/platform"
)

func testModel() *platform.Model {
	m := platform.NewModel("t", 100, platform.Depth5, map[string]ir.Cycles{
		ir.Add().Key():        ir.NewCycles(1, 1),
		ir.Branch().Key():     ir.NewCycles(1, 1),
		ir.Load(ir.Ram).Key(): ir.NewCycles(1, 1),
		ir.Ret().Key():        ir.NewCycles(1, 1),
		ir.Other().Key():      ir.NewCycles(1, 1),
	})
	m.Cache = platform.CacheConfig{
		Data: &platform.CacheLevelConfig{SizeKB: 1, LineSizeBytes: 32, Associativity: 2},
	}
	m.Memory = platform.MemoryConfig{LoadBufferSize: 2, StoreBufferSize: 2}
	return m
}

func straightLineFunction() *ir.Function {
	return &ir.Function{
		Name: "straight",
		Blocks: []ir.Block{
			{Label: "B0", Instructions: []ir.InstructionClass{ir.Add(), ir.Add()}, Terminator: ir.RetTerminator()},
		},
	}
}

func loopingFunction() *ir.Function {
	return &ir.Function{
		Name: "looping",
		Blocks: []ir.Block{
			{Label: "Entry", Terminator: ir.BrTerminator("Header")},
			{Label: "Header", Instructions: []ir.InstructionClass{ir.Add()}, Terminator: ir.CondBrTerminator("Body", "Exit")},
			{Label: "Body", Instructions: []ir.InstructionClass{ir.Add()}, Terminator: ir.BrTerminator("Header")},
			{Label: "Exit", Terminator: ir.RetTerminator()},
		},
	}
}

var _ = Describe("AnalyzeFunction", func() {
	It("produces a non-zero worst-case cycle count for a straight-line function", func() {
		report, err := orchestrator.AnalyzeFunction(straightLineFunction(), testModel(), orchestrator.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		Expect(report.WorstCaseCycles.WorstCase).To(BeNumerically(">", 0))
		Expect(report.Fallback).To(BeFalse())
	})

	It("accounts for the unknown loop bound fallback in a looping function", func() {
		report, err := orchestrator.AnalyzeFunction(loopingFunction(), testModel(), orchestrator.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Loops).To(HaveLen(1))
		Expect(report.Loops[0].BoundKnown).To(BeFalse())
		// Unknown bound falls back to loopanalysis.DefaultConservativeBound,
		// so the loop dominates the function's worst-case cost.
		Expect(report.WorstCaseCycles.WorstCase).To(BeNumerically(">", 50))
	})

	It("uses the edge-level formulation for a straight-line function when enabled", func() {
		opts := orchestrator.DefaultOptions()
		opts.UseWholeFunctionAEG = true
		report, err := orchestrator.AnalyzeFunction(straightLineFunction(), testModel(), opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.WorstCaseCycles.WorstCase).To(BeNumerically(">", 0))
	})
})

var _ = Describe("AnalyzeModule", func() {
	It("returns one result per function even when functions vary", func() {
		results := orchestrator.AnalyzeModule(
			[]*ir.Function{straightLineFunction(), loopingFunction()},
			testModel(),
			orchestrator.DefaultOptions(),
		)
		Expect(results).To(HaveLen(2))
		for _, r := range results {
			Expect(r.Err).NotTo(HaveOccurred())
			Expect(r.Report).NotTo(BeNil())
		}
	})
})
