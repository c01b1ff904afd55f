// Package cfg builds the control flow graph (C3) of a function: a
// directed graph of blocks with typed edges, an entry, and a set of
// exits. Edge type is informational; downstream analyses treat all
// outgoing edges equivalently unless stated otherwise.
package cfg

import (
	"fmt"

	"github.com/sarchlab/wcet/ir"
)

// EdgeType records why an edge exists, for diagnostics; it carries no
// semantic weight of its own, and loopanalysis does not read it (it finds
// back-edges from dominators).
type EdgeType int

const (
	Direct EdgeType = iota
	ConditionalTrue
	ConditionalFalse
	LoopBack
)

func (e EdgeType) String() string {
	switch e {
	case Direct:
		return "Direct"
	case ConditionalTrue:
		return "ConditionalTrue"
	case ConditionalFalse:
		return "ConditionalFalse"
	case LoopBack:
		return "LoopBack"
	default:
		return "Unknown"
	}
}

// Edge is one directed CFG edge.
type Edge struct {
	From ir.Label
	To   ir.Label
	Type EdgeType
}

// Graph is the function's control flow graph: a set of blocks with
// unique labels, a set of typed edges, a designated entry, and the set of
// exit labels.
type Graph struct {
	Function *ir.Function
	Edges    []Edge
	Entry    ir.Label
	Exits    map[ir.Label]bool

	successors map[ir.Label][]Edge
	predecessors map[ir.Label][]Edge
}

// Successors returns the outgoing edges of a block, in terminator order.
func (g *Graph) Successors(label ir.Label) []Edge {
	return g.successors[label]
}

// Predecessors returns the incoming edges of a block.
func (g *Graph) Predecessors(label ir.Label) []Edge {
	return g.predecessors[label]
}

// SuccessorLabels is a convenience accessor returning only the target
// labels of Successors.
func (g *Graph) SuccessorLabels(label ir.Label) []ir.Label {
	edges := g.successors[label]
	labels := make([]ir.Label, len(edges))
	for i, e := range edges {
		labels[i] = e.To
	}
	return labels
}

// PredecessorLabels is a convenience accessor returning only the source
// labels of Predecessors.
func (g *Graph) PredecessorLabels(label ir.Label) []ir.Label {
	edges := g.predecessors[label]
	labels := make([]ir.Label, len(edges))
	for i, e := range edges {
		labels[i] = e.From
	}
	return labels
}

// IsExit reports whether label is one of the graph's exit blocks.
func (g *Graph) IsExit(label ir.Label) bool {
	return g.Exits[label]
}

// Labels returns every block label in source order.
func (g *Graph) Labels() []ir.Label {
	labels := make([]ir.Label, len(g.Function.Blocks))
	for i, b := range g.Function.Blocks {
		labels[i] = b.Label
	}
	return labels
}

// InvalidCFGError reports a structural violation of the CFG invariants in
// spec.md §3: an edge to a nonexistent label, or a duplicate block label.
type InvalidCFGError struct {
	Reason string
}

func (e *InvalidCFGError) Error() string {
	return fmt.Sprintf("cfg: invalid CFG: %s", e.Reason)
}

// Build constructs a CFG for every block in source order, per spec.md
// §4.3: Ret/Unreachable/Other terminators produce no edges and mark the
// block an exit; Br(t) produces one Direct edge; CondBr(t,f) produces
// ConditionalTrue/ConditionalFalse edges; Switch(default, cases) produces
// one Direct edge to the default and one per case. Complexity is linear
// in instruction count.
func Build(fn *ir.Function) (*Graph, error) {
	if len(fn.Blocks) == 0 {
		return nil, &InvalidCFGError{Reason: "function " + fn.Name + " has no blocks"}
	}

	seen := make(map[ir.Label]bool, len(fn.Blocks))
	for _, b := range fn.Blocks {
		if seen[b.Label] {
			return nil, &InvalidCFGError{Reason: fmt.Sprintf("duplicate block label %q", b.Label)}
		}
		seen[b.Label] = true
	}

	g := &Graph{
		Function:     fn,
		Entry:        fn.Entry().Label,
		Exits:        make(map[ir.Label]bool),
		successors:   make(map[ir.Label][]Edge),
		predecessors: make(map[ir.Label][]Edge),
	}

	for _, b := range fn.Blocks {
		term := b.Terminator
		if term.IsExit() {
			g.Exits[b.Label] = true
			continue
		}

		var edges []Edge
		if ifTrue, ifFalse, ok := term.CondBranches(); ok {
			edges = []Edge{
				{From: b.Label, To: ifTrue, Type: ConditionalTrue},
				{From: b.Label, To: ifFalse, Type: ConditionalFalse},
			}
		} else if def, cases, ok := term.SwitchTargets(); ok {
			edges = append(edges, Edge{From: b.Label, To: def, Type: Direct})
			for _, c := range cases {
				edges = append(edges, Edge{From: b.Label, To: c.Label, Type: Direct})
			}
		} else {
			for _, succ := range term.Successors() {
				edges = append(edges, Edge{From: b.Label, To: succ, Type: Direct})
			}
		}

		for _, e := range edges {
			if !seen[e.To] {
				return nil, &InvalidCFGError{
					Reason: fmt.Sprintf("block %q terminator references nonexistent label %q", b.Label, e.To),
				}
			}
			g.Edges = append(g.Edges, e)
			g.successors[e.From] = append(g.successors[e.From], e)
			g.predecessors[e.To] = append(g.predecessors[e.To], e)
		}

		if len(edges) == 0 {
			g.Exits[b.Label] = true
		}
	}

	return g, nil
}
