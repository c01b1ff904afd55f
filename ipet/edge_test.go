package ipet_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/wcet/aeg"
	"github.com/sarchlab/wcet/ipet"
	"github.com/sarchlab/wcet/ir"
	"github.com/sarchlab/wcet/loopanalysis"
)

var _ = Describe("SolveEdgeLevel", func() {
	It("takes the more expensive branch of a diamond compressed AEG", func() {
		g := &aeg.CompressedGraph{
			Blocks: []ir.Label{"Entry", "Left", "Right", "Join"},
			Entry:  "Entry",
			Exits:  map[ir.Label]bool{"Join": true},
			Edges: []aeg.CompressedEdge{
				{From: "Entry", To: "Left", MaxCycles: 1},
				{From: "Entry", To: "Right", MaxCycles: 1},
				{From: "Left", To: "Join", MaxCycles: 10},
				{From: "Right", To: "Join", MaxCycles: 2},
			},
		}
		exitCost := map[ir.Label]uint64{"Join": 1}

		result, err := ipet.SolveEdgeLevel(g, exitCost, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.WorstCaseCycles.WorstCase).To(Equal(uint64(12)))
		Expect(result.CriticalPath).To(ContainElement(ir.Label("Left")))
	})

	It("reproduces spec.md Scenario B exactly over a compressed AEG", func() {
		g := &aeg.CompressedGraph{
			Blocks: []ir.Label{"B0", "Header", "Body", "Exit"},
			Entry:  "B0",
			Exits:  map[ir.Label]bool{"Exit": true},
			Edges: []aeg.CompressedEdge{
				{From: "B0", To: "Header", MaxCycles: 1},
				{From: "Header", To: "Body", MaxCycles: 2},
				{From: "Body", To: "Header", MaxCycles: 5},
				{From: "Header", To: "Exit", MaxCycles: 2},
			},
		}
		exitCost := map[ir.Label]uint64{"Exit": 1}

		loop := &loopanalysis.Loop{
			Header: "Header",
			Body:   map[ir.Label]bool{"Header": true, "Body": true},
			Bounds: loopanalysis.ConstantBounds(0, 10),
		}

		result, err := ipet.SolveEdgeLevel(g, exitCost, []*loopanalysis.Loop{loop})
		Expect(err).NotTo(HaveOccurred())
		// Same arithmetic as the block-level formulation's Scenario B
		// test: wcet_cycles = 1 + (2+5)*10 + 2 + 1 = 74.
		Expect(result.WorstCaseCycles.WorstCase).To(Equal(uint64(74)))
	})
})
