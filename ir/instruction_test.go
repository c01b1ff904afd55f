package ir_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/wcet/ir"
)

var _ = Describe("InstructionClass", func() {
	It("classifies arithmetic mnemonics deterministically", func() {
		Expect(ir.Classify(ir.Op{Mnemonic: "add"})).To(Equal(ir.Add()))
		Expect(ir.Classify(ir.Op{Mnemonic: "ADD"})).To(Equal(ir.Add()))
	})

	It("carries AccessType on Load/Store", func() {
		c := ir.Classify(ir.Op{Mnemonic: "LD", Access: ir.Flash})
		access, ok := c.IsLoad()
		Expect(ok).To(BeTrue())
		Expect(access).To(Equal(ir.Flash))
	})

	It("carries AtomicOp on Atomic", func() {
		c := ir.Classify(ir.Op{Mnemonic: "ATOMIC", Atomic: ir.AtomicCompareExchange})
		op, ok := c.AtomicOp()
		Expect(ok).To(BeTrue())
		Expect(op).To(Equal(ir.AtomicCompareExchange))
	})

	It("reports intrinsics by name", func() {
		c := ir.Classify(ir.Op{Mnemonic: "llvm.memcpy"})
		name, ok := c.IntrinsicName()
		Expect(ok).To(BeTrue())
		Expect(name).To(Equal("llvm.memcpy"))
	})

	It("falls back to Other for unrecognized mnemonics", func() {
		Expect(ir.Classify(ir.Op{Mnemonic: "frobnicate"})).To(Equal(ir.Other()))
	})

	It("gives distinct Key()s to distinct Load access types", func() {
		ram := ir.Load(ir.Ram)
		flash := ir.Load(ir.Flash)
		Expect(ram.Key()).NotTo(Equal(flash.Key()))
	})
})

var _ = Describe("Cycles", func() {
	It("clamps an inconsistent best/worst pair", func() {
		c := ir.NewCycles(10, 5)
		Expect(c.BestCase).To(Equal(uint64(5)))
		Expect(c.WorstCase).To(Equal(uint64(5)))
	})

	It("sums componentwise", func() {
		total := ir.SumCycles([]ir.Cycles{
			ir.NewCycles(1, 2),
			ir.NewCycles(3, 4),
		})
		Expect(total).To(Equal(ir.Cycles{BestCase: 4, WorstCase: 6}))
	})
})

var _ = Describe("Terminator", func() {
	It("Br has one successor", func() {
		t := ir.BrTerminator("next")
		Expect(t.Successors()).To(Equal([]ir.Label{"next"}))
		Expect(t.IsExit()).To(BeFalse())
	})

	It("CondBr has true then false successors", func() {
		t := ir.CondBrTerminator("t", "f")
		Expect(t.Successors()).To(Equal([]ir.Label{"t", "f"}))
	})

	It("Switch has default then cases in order", func() {
		t := ir.SwitchTerminator("default", []ir.SwitchCase{
			{Value: 1, Label: "case1"},
			{Value: 2, Label: "case2"},
		})
		Expect(t.Successors()).To(Equal([]ir.Label{"default", "case1", "case2"}))
	})

	It("Ret/Unreachable/Other are exits with no successors", func() {
		Expect(ir.RetTerminator().IsExit()).To(BeTrue())
		Expect(ir.RetTerminator().Successors()).To(BeEmpty())
		Expect(ir.UnreachableTerminator().IsExit()).To(BeTrue())
		Expect(ir.OtherTerminator().IsExit()).To(BeTrue())
	})
})

var _ = Describe("Function", func() {
	It("Entry is the first block in source order", func() {
		fn := &ir.Function{
			Name: "f",
			Blocks: []ir.Block{
				{Label: "b0", Terminator: ir.RetTerminator()},
				{Label: "b1", Terminator: ir.RetTerminator()},
			},
		}
		Expect(fn.Entry().Label).To(Equal(ir.Label("b0")))
	})

	It("BlockByLabel finds an existing block", func() {
		fn := &ir.Function{Blocks: []ir.Block{{Label: "only"}}}
		b, ok := fn.BlockByLabel("only")
		Expect(ok).To(BeTrue())
		Expect(b.Label).To(Equal(ir.Label("only")))
	})

	It("BlockByLabel reports absence", func() {
		fn := &ir.Function{Blocks: []ir.Block{{Label: "only"}}}
		_, ok := fn.BlockByLabel("missing")
		Expect(ok).To(BeFalse())
	})
})
