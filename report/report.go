// Package report renders orchestrator.WCETReport as machine-readable
// JSON (no ecosystem JSON library appears anywhere in the example
// corpus, so DESIGN.md records a stdlib-only justification for
// encoding/json) and as the human-readable table the teacher's CLI
// style favors.
package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/wcet/orchestrator"
)

// Document is the top-level JSON envelope: tool identity, the platform
// analyzed against, and one entry per function, per spec.md §6.
type Document struct {
	Tool      string          `json:"tool"`
	Version   string          `json:"version"`
	Timestamp string          `json:"timestamp"`
	Platform  string          `json:"platform"`
	Functions []FunctionEntry `json:"functions"`
}

// FunctionEntry flattens one orchestrator.WCETReport into the JSON
// shape.
type FunctionEntry struct {
	Name                  string       `json:"name"`
	WorstCaseCycles       uint64       `json:"worst_case_cycles"`
	WorstCaseMicroseconds float64      `json:"worst_case_microseconds"`
	Fallback              bool         `json:"fallback"`
	FallbackReason        string       `json:"fallback_reason,omitempty"`
	Blocks                []BlockEntry `json:"blocks"`
	Loops                 []LoopEntry  `json:"loops"`
}

type BlockEntry struct {
	Label           string `json:"label"`
	WorstCaseCycles uint64 `json:"worst_case_cycles"`
	ExecutionCount  uint64 `json:"execution_count"`
	UsedFallback    bool   `json:"used_fallback"`
}

type LoopEntry struct {
	Header       string `json:"header"`
	NestingLevel int    `json:"nesting_level"`
	BoundKnown   bool   `json:"bound_known"`
	BoundMax     uint64 `json:"bound_max"`
}

// BuildDocument converts one AnalyzeModule run into a Document, given
// the tool version and platform name to stamp into it. timestamp is
// passed in by the caller (RFC3339) since this package must stay free
// of wall-clock reads to keep report generation deterministic and
// testable.
func BuildDocument(toolVersion, platformName, timestamp string, results []orchestrator.ModuleResult) Document {
	doc := Document{
		Tool:      "wcetanalyze",
		Version:   toolVersion,
		Timestamp: timestamp,
		Platform:  platformName,
	}

	for _, r := range results {
		if r.Report == nil {
			continue
		}
		doc.Functions = append(doc.Functions, functionEntry(r.Report))
	}

	return doc
}

func functionEntry(r *orchestrator.WCETReport) FunctionEntry {
	entry := FunctionEntry{
		Name:                  r.FunctionName,
		WorstCaseCycles:       r.WorstCaseCycles.WorstCase,
		WorstCaseMicroseconds: r.WorstCaseMicroseconds,
		Fallback:              r.Fallback,
		FallbackReason:        r.FallbackReason,
	}
	for _, b := range r.Blocks {
		entry.Blocks = append(entry.Blocks, BlockEntry{
			Label:           string(b.Label),
			WorstCaseCycles: b.WorstCaseCycles.WorstCase,
			ExecutionCount:  b.ExecutionCount,
			UsedFallback:    b.UsedBlockFallback,
		})
	}
	for _, l := range r.Loops {
		entry.Loops = append(entry.Loops, LoopEntry{
			Header:       string(l.Header),
			NestingLevel: l.NestingLevel,
			BoundKnown:   l.BoundKnown,
			BoundMax:     l.BoundMax,
		})
	}
	return entry
}

// WriteJSON serializes doc to w, pretty-printed for readability.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteTable renders doc as a human-readable table, in the teacher's
// go-pretty idiom (see cmd/wcetanalyze for the CLI entry point that
// selects between this and WriteJSON).
func WriteTable(w io.Writer, doc Document) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Function", "Worst-Case Cycles", "Worst-Case (us)", "Fallback"})

	for _, fn := range doc.Functions {
		t.AppendRow(table.Row{fn.Name, fn.WorstCaseCycles, fn.WorstCaseMicroseconds, fn.Fallback})
	}
	t.Render()
}

// Now is the single place this module would read the wall clock; kept
// here (unused by the package itself) so cmd/wcetanalyze has one
// documented, easily-mocked seam for the report timestamp instead of
// calling time.Now() inline at the call site.
var Now = time.Now
