// Package loopanalysis computes dominators, detects natural loops from
// back-edges, assigns nesting levels, and attaches loop bounds via a
// pluggable oracle (C4).
package loopanalysis

import (
	"github.com/sarchlab/wcet/cfg"
	"github.com/sarchlab/wcet/ir"
)

// boundsKind is the closed tag for LoopBounds.
type boundsKind int

const (
	BoundsConstant boundsKind = iota
	BoundsParametric
	BoundsUnknown
)

// LoopBounds is a closed tagged union: Constant{min, max} | Parametric{expr} | Unknown.
type LoopBounds struct {
	kind boundsKind
	min  uint64
	max  uint64
	expr string
}

func ConstantBounds(min, max uint64) LoopBounds {
	return LoopBounds{kind: BoundsConstant, min: min, max: max}
}

func ParametricBounds(expr string) LoopBounds {
	return LoopBounds{kind: BoundsParametric, expr: expr}
}

func UnknownBounds() LoopBounds {
	return LoopBounds{kind: BoundsUnknown}
}

// Constant returns (min, max, true) if these are Constant bounds.
func (b LoopBounds) Constant() (min, max uint64, ok bool) {
	if b.kind != BoundsConstant {
		return 0, 0, false
	}
	return b.min, b.max, true
}

// IsUnknown reports whether the bound is Unknown.
func (b LoopBounds) IsUnknown() bool {
	return b.kind == BoundsUnknown
}

// IsValid reports the min<=max invariant for Constant bounds (always
// true for Parametric/Unknown, which carry no numeric range to violate).
func (b LoopBounds) IsValid() bool {
	if b.kind != BoundsConstant {
		return true
	}
	return b.min <= b.max
}

// Loop is a natural loop: a single header dominating every block in its
// body, with one or more back-edges into that header.
type Loop struct {
	Header       ir.Label
	BackEdges    [][2]ir.Label // (tail, header)
	Body         map[ir.Label]bool
	NestingLevel int
	Bounds       LoopBounds
}

// NonHeaderBody returns the loop's body labels, excluding the header, in no
// particular order.
func (l *Loop) NonHeaderBody() []ir.Label {
	out := make([]ir.Label, 0, len(l.Body))
	for b := range l.Body {
		if b != l.Header {
			out = append(out, b)
		}
	}
	return out
}

// BoundOracle resolves a natural loop's bounds. Implementations may
// inspect IR annotations, perform induction-variable recognition, or
// pattern-match common loop idioms; the core treats it as an opaque
// function (spec.md §6), so no specific heuristic is load-bearing here.
type BoundOracle interface {
	Bounds(g *cfg.Graph, header ir.Label, body map[ir.Label]bool) LoopBounds
}

// DefaultOracle reports every loop's bound as Unknown; Bounds does not
// read the Default field. It is the oracle the orchestrator uses when no
// sharper one is configured: the IPET step then charges such a loop
// DefaultConservativeBound iterations, and the orchestrator's LoopReport
// records the bound as not known.
type DefaultOracle struct {
	Default uint64
}

func (o DefaultOracle) Bounds(_ *cfg.Graph, _ ir.Label, _ map[ir.Label]bool) LoopBounds {
	return UnknownBounds()
}

// DefaultConservativeBound is the value used in spec.md's examples (and
// this implementation's orchestrator) when an oracle returns Unknown.
const DefaultConservativeBound = 100

// Analyze computes dominators, back-edges, natural loop bodies, nesting
// levels, and (via oracle) bounds, per spec.md §4.4. Loops sharing a
// header are merged into a single Loop with the union of back-edge tails
// and bodies.
func Analyze(g *cfg.Graph, oracle BoundOracle) []*Loop {
	doms := ComputeDominators(g)

	headerToLoop := make(map[ir.Label]*Loop)
	var order []ir.Label

	for _, edge := range g.Edges {
		if !doms.Dominates(edge.To, edge.From) {
			continue
		}
		// edge.From -> edge.To is a back-edge: edge.To (header) dominates
		// edge.From (tail).
		header := edge.To
		tail := edge.From

		body := naturalLoopBody(g, header, tail)

		if existing, ok := headerToLoop[header]; ok {
			existing.BackEdges = append(existing.BackEdges, [2]ir.Label{tail, header})
			for b := range body {
				existing.Body[b] = true
			}
			continue
		}

		l := &Loop{
			Header:    header,
			BackEdges: [][2]ir.Label{{tail, header}},
			Body:      body,
		}
		headerToLoop[header] = l
		order = append(order, header)
	}

	loops := make([]*Loop, 0, len(order))
	for _, h := range order {
		loops = append(loops, headerToLoop[h])
	}

	computeNestingLevels(loops)

	for _, l := range loops {
		bounds := oracle.Bounds(g, l.Header, l.Body)
		if min, max, ok := bounds.Constant(); ok && min > max {
			l.Bounds = UnknownBounds()
		} else {
			l.Bounds = bounds
		}
	}

	return loops
}

// naturalLoopBody computes {header, tail} plus every predecessor of a
// body block not already the header, to fixpoint (spec.md §4.4 step 3).
func naturalLoopBody(g *cfg.Graph, header, tail ir.Label) map[ir.Label]bool {
	body := map[ir.Label]bool{header: true}
	if header == tail {
		return body
	}
	body[tail] = true

	worklist := []ir.Label{tail}
	for len(worklist) > 0 {
		n := len(worklist) - 1
		node := worklist[n]
		worklist = worklist[:n]

		for _, pred := range g.PredecessorLabels(node) {
			if pred == header || body[pred] {
				continue
			}
			body[pred] = true
			worklist = append(worklist, pred)
		}
	}
	return body
}

// computeNestingLevels assigns nesting_level = 1 + max nesting_level of
// any loop whose body contains this loop's header (0 if none), per
// spec.md §4.4 step 4. Iterated to a fixpoint so levels are correct past
// two levels of nesting (a single pass only looks one level down).
func computeNestingLevels(loops []*Loop) {
	changed := true
	for changed {
		changed = false
		for _, li := range loops {
			max := -1
			for _, lj := range loops {
				if li == lj {
					continue
				}
				if lj.Body[li.Header] {
					if lj.NestingLevel > max {
						max = lj.NestingLevel
					}
				}
			}
			if li.NestingLevel != max+1 {
				li.NestingLevel = max + 1
				changed = true
			}
		}
	}
}
