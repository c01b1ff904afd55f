// Package orchestrator wires the pipeline stages together (C11):
// CFG -> loop analysis -> cache analysis -> AEG build+compress -> IPET,
// producing one WCETReport per function, with a documented fallback to
// block-level costing when AEG exploration explodes.
package orchestrator

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/sarchlab/wcet/aeg"
	"github.com/sarchlab/wcet/cacheanalysis"
	"github.com/sarchlab/wcet/cfg"
	"github.com/sarchlab/wcet/ipet"
	"github.com/sarchlab/wcet/ir"
	"github.com/sarchlab/wcet/loopanalysis"
	"github.com/sarchlab/wcet/microarch"
	"github.com/sarchlab/wcet/platform"
	"github.com/sarchlab/wcet/simulator"
)

// noAddressOracle resolves every memory access as Unknown, the sound
// default when the caller supplies no address-resolution heuristic.
type noAddressOracle struct{}

func (noAddressOracle) Address(_ ir.Label, _ int, _ ir.InstructionClass) (microarch.AbstractAddress, bool) {
	return microarch.UnknownAddress(), true
}

// Options configures one AnalyzeFunction/AnalyzeModule call.
type Options struct {
	LoopOracle    loopanalysis.BoundOracle
	AddressOracle cacheanalysis.AddressOracle
	Compression   aeg.CompressionMode
	MaxAEGNodes   int

	// UseWholeFunctionAEG, when set, attempts spec.md §4.8's edge-level
	// IPET formulation as the primary result: a whole-function AEG
	// (aeg.Build) cross-block compressed (aeg.CompressForFunction) and
	// solved with ipet.SolveEdgeLevel. A state-space explosion or an
	// infeasible compressed graph falls back to the per-block
	// formulation below, the same way a per-block AEG explosion already
	// falls back to model.BlockCycles for that one block.
	UseWholeFunctionAEG    bool
	MaxWholeFunctionCycles uint64
}

// DefaultOptions is the conservative configuration the CLI uses. When a
// caller leaves a field zero, AnalyzeFunction fills LoopOracle,
// AddressOracle, MaxAEGNodes and MaxWholeFunctionCycles with defaults; a
// zero Compression is aeg.Precise, not DefaultOptions' aeg.Efficient.
func DefaultOptions() Options {
	return Options{
		LoopOracle:    loopanalysis.DefaultOracle{Default: loopanalysis.DefaultConservativeBound},
		AddressOracle: noAddressOracle{},
		Compression:   aeg.Efficient,
		MaxAEGNodes:   4096,
	}
}

func (o Options) filled() Options {
	if o.LoopOracle == nil {
		o.LoopOracle = loopanalysis.DefaultOracle{Default: loopanalysis.DefaultConservativeBound}
	}
	if o.AddressOracle == nil {
		o.AddressOracle = noAddressOracle{}
	}
	if o.MaxAEGNodes == 0 {
		o.MaxAEGNodes = 4096
	}
	if o.MaxWholeFunctionCycles == 0 {
		o.MaxWholeFunctionCycles = 10000
	}
	return o
}

// BlockReport is the per-block contribution to a function's WCET.
type BlockReport struct {
	Label             ir.Label
	WorstCaseCycles   ir.Cycles
	ExecutionCount    uint64
	UsedBlockFallback bool
}

// WCETReport is the full per-function result, per spec.md §6.
type WCETReport struct {
	FunctionName          string
	WorstCaseCycles       ir.Cycles
	WorstCaseMicroseconds float64
	Blocks                []BlockReport
	Loops                 []LoopReport
	Fallback              bool
	FallbackReason        string
}

// LoopReport summarizes one analyzed natural loop.
type LoopReport struct {
	Header       ir.Label
	NestingLevel int
	BoundKnown   bool
	BoundMax     uint64
}

// AnalyzeFunction runs the full pipeline for one function, per spec.md
// §4 end-to-end and §7's fallback contract: if per-block AEG exploration
// explodes, that block's cost falls back to model.BlockCycles and the
// report records Fallback=true with a human-readable reason, rather than
// failing the whole analysis.
func AnalyzeFunction(fn *ir.Function, model *platform.Model, opts Options) (*WCETReport, error) {
	opts = opts.filled()

	g, err := cfg.Build(fn)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: building CFG for %s: %w", fn.Name, err)
	}

	loops := loopanalysis.Analyze(g, opts.LoopOracle)
	cacheResult := cacheanalysis.Analyze(g, model, opts.AddressOracle)

	report := &WCETReport{FunctionName: fn.Name}
	costs := make(ipet.BlockCost, len(g.Labels()))

	for _, label := range g.Labels() {
		block, ok := g.Function.BlockByLabel(label)
		if !ok {
			continue
		}

		entryCache, hasEntry := cacheResult.BlockEntry[label]
		if !hasEntry {
			entryCache = microarch.NewCacheState(model.Cache)
		}
		initial := microarch.MicroArchState{
			PC:       0,
			Pipeline: microarch.NewPipelineState(int(model.PipelineDepth)),
			Cache:    entryCache,
			Memory:   microarch.NewMemorySystemState(model.Memory),
		}

		addrFn := addressFuncFor(label, block, opts.AddressOracle)

		blockReport := BlockReport{Label: label}

		builtGraph, buildErr := aeg.BuildForBlock(initial, block.Instructions, model, addrFn, opts.MaxAEGNodes)
		if buildErr != nil {
			report.Fallback = true
			report.FallbackReason = fmt.Sprintf("block %s: %s; used block-level cost", label, buildErr)
			blockReport.UsedBlockFallback = true
			blockReport.WorstCaseCycles = model.BlockCycles(block.Instructions, terminatorClass(block), true)
		} else {
			compressed := aeg.Compress(builtGraph, opts.Compression)
			blockReport.WorstCaseCycles = compressed.WorstCaseCycles()
		}

		costs[label] = blockReport.WorstCaseCycles
		report.Blocks = append(report.Blocks, blockReport)
	}

	result, err := ipet.Solve(g, loops, costs)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: IPET solve for %s: %w", fn.Name, err)
	}

	if opts.UseWholeFunctionAEG {
		if edgeResult, ok := solveEdgeLevel(g, model, opts, loops); ok {
			result = edgeResult
		} else if report.FallbackReason == "" {
			report.Fallback = true
			report.FallbackReason = "whole-function AEG did not converge; used block-level IPET"
		}
	}

	report.WorstCaseCycles = result.WorstCaseCycles
	report.WorstCaseMicroseconds = model.CyclesToMicroseconds(result.WorstCaseCycles.WorstCase)

	for i := range report.Blocks {
		report.Blocks[i].ExecutionCount = result.ExecutionCounts[report.Blocks[i].Label]
	}

	for _, l := range loops {
		min, max, ok := l.Bounds.Constant()
		_ = min
		report.Loops = append(report.Loops, LoopReport{
			Header:       l.Header,
			NestingLevel: l.NestingLevel,
			BoundKnown:   ok,
			BoundMax:     max,
		})
	}

	return report, nil
}

// solveEdgeLevel attempts spec.md §4.8's edge-level IPET formulation,
// per Options.UseWholeFunctionAEG: a whole-function AEG, cross-block
// compressed, solved over its edges. ok is false if the AEG explodes or
// the compressed graph admits no feasible path, signaling the caller to
// keep the block-level result it already computed.
func solveEdgeLevel(g *cfg.Graph, model *platform.Model, opts Options, loops []*loopanalysis.Loop) (*ipet.Result, bool) {
	initial := microarch.MicroArchState{
		PC:       0,
		Pipeline: microarch.NewPipelineState(int(model.PipelineDepth)),
		Cache:    microarch.NewCacheState(model.Cache),
		Memory:   microarch.NewMemorySystemState(model.Memory),
	}

	built, err := aeg.Build(g, initial, model, opts.AddressOracle, opts.MaxWholeFunctionCycles, opts.MaxAEGNodes)
	if err != nil {
		return nil, false
	}

	compressed := aeg.CompressForFunction(g, built)
	result, err := ipet.SolveEdgeLevel(compressed, compressed.ExitCost, loops)
	if err != nil {
		return nil, false
	}
	return result, true
}

func terminatorClass(block *ir.Block) ir.InstructionClass {
	if _, _, ok := block.Terminator.CondBranches(); ok {
		return ir.Branch()
	}
	if _, _, ok := block.Terminator.SwitchTargets(); ok {
		return ir.Branch()
	}
	return ir.Other()
}

func addressFuncFor(label ir.Label, block *ir.Block, oracle cacheanalysis.AddressOracle) simulator.MemAddress {
	return func(pc uint64) microarch.AbstractAddress {
		idx := int(pc)
		if idx < 0 || idx >= len(block.Instructions) {
			return microarch.UnknownAddress()
		}
		addr, ok := oracle.Address(label, idx, block.Instructions[idx])
		if !ok {
			return microarch.UnknownAddress()
		}
		return addr
	}
}

// ModuleResult pairs a function's report with any error analyzing it,
// so AnalyzeModule can return partial results per spec.md §7.
type ModuleResult struct {
	FunctionName string
	Report       *WCETReport
	Err          error
}

// AnalyzeModule dispatches AnalyzeFunction across a worker pool sized to
// GOMAXPROCS, returning one ModuleResult per function regardless of
// individual failures (a failure on one function never aborts the rest).
func AnalyzeModule(fns []*ir.Function, model *platform.Model, opts Options) []ModuleResult {
	results := make([]ModuleResult, len(fns))
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > len(fns) {
		workers = len(fns)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				report, err := AnalyzeFunction(fns[i], model, opts)
				results[i] = ModuleResult{FunctionName: fns[i].Name, Report: report, Err: err}
			}
		}()
	}
	for i := range fns {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
