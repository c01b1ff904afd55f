package report_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/wcet/ir"
	"github.com/sarchlab/wcet/orchestrator"
	"github.com/sarchlab/wcet/report"
)

func sampleResults() []orchestrator.ModuleResult {
	return []orchestrator.ModuleResult{
		{
			FunctionName: "f",
			Report: &orchestrator.WCETReport{
				FunctionName:          "f",
				WorstCaseCycles:       ir.NewCycles(42, 42),
				WorstCaseMicroseconds: 0.42,
				Blocks: []orchestrator.BlockReport{
					{Label: "B0", WorstCaseCycles: ir.NewCycles(42, 42), ExecutionCount: 1},
				},
			},
		},
	}
}

var _ = Describe("BuildDocument", func() {
	It("flattens every function's report into the JSON shape", func() {
		doc := report.BuildDocument("1.0.0", "test-platform", "2026-07-30T00:00:00Z", sampleResults())
		Expect(doc.Functions).To(HaveLen(1))
		Expect(doc.Functions[0].WorstCaseCycles).To(Equal(uint64(42)))
	})

	It("skips results with a nil report", func() {
		results := append(sampleResults(), orchestrator.ModuleResult{FunctionName: "broken", Err: nil})
		doc := report.BuildDocument("1.0.0", "test-platform", "2026-07-30T00:00:00Z", results)
		Expect(doc.Functions).To(HaveLen(1))
	})
})

var _ = Describe("WriteJSON", func() {
	It("round-trips through encoding/json", func() {
		doc := report.BuildDocument("1.0.0", "test-platform", "2026-07-30T00:00:00Z", sampleResults())

		var buf bytes.Buffer
		Expect(report.WriteJSON(&buf, doc)).To(Succeed())

		var decoded report.Document
		Expect(json.Unmarshal(buf.Bytes(), &decoded)).To(Succeed())
		Expect(decoded.Functions[0].Name).To(Equal("f"))
	})
})

var _ = Describe("WriteTable", func() {
	It("renders a non-empty table", func() {
		doc := report.BuildDocument("1.0.0", "test-platform", "2026-07-30T00:00:00Z", sampleResults())
		var buf bytes.Buffer
		report.WriteTable(&buf, doc)
		Expect(buf.Len()).To(BeNumerically(">", 0))
	})
})
