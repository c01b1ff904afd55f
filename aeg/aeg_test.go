package aeg_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/wcet/aeg"
	"github.com/sarchlab/wcet/cfg"
	"github.com/sarchlab/wcet/ir"
	"github.com/sarchlab/wcet/microarch"
	"github.com/sarchlab/wcet/platform"
)

// unknownOracle resolves every access as Unknown, mirroring
// orchestrator's noAddressOracle default.
type unknownOracle struct{}

func (unknownOracle) Address(_ ir.Label, _ int, _ ir.InstructionClass) (microarch.AbstractAddress, bool) {
	return microarch.UnknownAddress(), true
}

// loopingFunction is B0 -> Header -> (Header | Exit): a self-looping
// header whose conditional branch exploration forks back into itself
// every cycle, the simplest function-level case that forces Build to
// cross block boundaries more than once.
func loopingFunction() *ir.Function {
	return &ir.Function{
		Name: "f",
		Blocks: []ir.Block{
			{Label: "B0", Instructions: []ir.InstructionClass{ir.Add()}, Terminator: ir.BrTerminator("Header")},
			{Label: "Header", Instructions: []ir.InstructionClass{ir.Add()}, Terminator: ir.CondBrTerminator("Header", "Exit")},
			{Label: "Exit", Instructions: []ir.InstructionClass{ir.Add()}, Terminator: ir.RetTerminator()},
		},
	}
}

func testModel() *platform.Model {
	m := platform.NewModel("t", 100, platform.Depth3, nil)
	m.Cache = platform.CacheConfig{
		Data: &platform.CacheLevelConfig{SizeKB: 1, LineSizeBytes: 32, Associativity: 2},
	}
	return m
}

var _ = Describe("BuildForBlock", func() {
	It("explores a straight-line block to a single exit", func() {
		model := testModel()
		initial := microarch.NewMicroArchState(0, model)
		instrs := []ir.InstructionClass{ir.Add(), ir.Add()}

		g, err := aeg.BuildForBlock(initial, instrs, model, nil, 1000)
		Expect(err).NotTo(HaveOccurred())
		Expect(g.Exits).NotTo(BeEmpty())
		Expect(g.WorstCaseCycles().WorstCase).To(BeNumerically(">", 0))
	})

	It("fails with StateSpaceExplosion when the node budget is too small", func() {
		model := testModel()
		initial := microarch.NewMicroArchState(0, model)
		instrs := make([]ir.InstructionClass, 50)
		for i := range instrs {
			instrs[i] = ir.Add()
		}

		_, err := aeg.BuildForBlock(initial, instrs, model, nil, 2)
		Expect(err).To(HaveOccurred())
		var explosion *aeg.StateSpaceExplosion
		Expect(err).To(BeAssignableToTypeOf(explosion))
	})
})

var _ = Describe("Compress", func() {
	It("drops unreachable nodes in Precise mode without changing worst-case cycles", func() {
		model := testModel()
		initial := microarch.NewMicroArchState(0, model)
		instrs := []ir.InstructionClass{ir.Add()}

		g, err := aeg.BuildForBlock(initial, instrs, model, nil, 1000)
		Expect(err).NotTo(HaveOccurred())

		compressed := aeg.Compress(g, aeg.Precise)
		Expect(compressed.WorstCaseCycles()).To(Equal(g.WorstCaseCycles()))
	})

	It("never decreases the worst-case cycle estimate in Efficient mode", func() {
		model := platform.NewModel("t5", 100, platform.Depth5, nil)
		model.Cache = platform.CacheConfig{
			Data: &platform.CacheLevelConfig{SizeKB: 1, LineSizeBytes: 32, Associativity: 2},
		}
		initial := microarch.NewMicroArchState(0, model)
		instrs := []ir.InstructionClass{ir.Add(), ir.Load(ir.Ram), ir.Add()}

		g, err := aeg.BuildForBlock(initial, instrs, model, nil, 1000)
		Expect(err).NotTo(HaveOccurred())

		compressed := aeg.Compress(g, aeg.Efficient)
		Expect(compressed.WorstCaseCycles().WorstCase).To(BeNumerically(">=", g.WorstCaseCycles().WorstCase))
	})
})

var _ = Describe("Build", func() {
	It("explores across CFG block boundaries to a node in the exit block", func() {
		model := testModel()
		fn := loopingFunction()
		g, err := cfg.Build(fn)
		Expect(err).NotTo(HaveOccurred())

		initial := microarch.NewMicroArchState(0, model)
		built, err := aeg.Build(g, initial, model, unknownOracle{}, 20, 2000)
		Expect(err).NotTo(HaveOccurred())
		Expect(built.Exits).NotTo(BeEmpty())
		Expect(built.WorstCaseCycles().WorstCase).To(BeNumerically(">", 0))
		Expect(built.BlockEntryCycles).NotTo(BeEmpty())
	})

	It("fails with StateSpaceExplosion when the node budget is too small", func() {
		model := testModel()
		fn := loopingFunction()
		g, err := cfg.Build(fn)
		Expect(err).NotTo(HaveOccurred())

		initial := microarch.NewMicroArchState(0, model)
		_, err = aeg.Build(g, initial, model, unknownOracle{}, 20, 2)
		Expect(err).To(HaveOccurred())
		var explosion *aeg.StateSpaceExplosion
		Expect(err).To(BeAssignableToTypeOf(explosion))
	})
})

var _ = Describe("CompressForFunction", func() {
	It("produces one cross-block edge per CFG transition the AEG actually crosses", func() {
		model := testModel()
		fn := loopingFunction()
		g, err := cfg.Build(fn)
		Expect(err).NotTo(HaveOccurred())

		initial := microarch.NewMicroArchState(0, model)
		built, err := aeg.Build(g, initial, model, unknownOracle{}, 20, 2000)
		Expect(err).NotTo(HaveOccurred())

		compressed := aeg.CompressForFunction(g, built)
		Expect(compressed.Blocks).To(ConsistOf(ir.Label("B0"), ir.Label("Header"), ir.Label("Exit")))
		Expect(compressed.Exits).To(HaveKey(ir.Label("Exit")))

		seen := make(map[[2]ir.Label]bool)
		for _, e := range compressed.Edges {
			seen[[2]ir.Label{e.From, e.To}] = true
			Expect(e.MaxCycles).To(BeNumerically(">", 0))
		}
		Expect(seen[[2]ir.Label{"B0", "Header"}]).To(BeTrue())
		Expect(seen[[2]ir.Label{"Header", "Exit"}]).To(BeTrue())
	})
})
