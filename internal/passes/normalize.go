package passes

import (
	"stackc/internal/analysis"
	"stackc/internal/ir"
)

// Normalize prepares the CFG for stack scheduling: no block is both a
// merge and a fork, and no forking block feeds a merge directly. Edges
// that break this get a relay block. Phis left with a single incoming
// value become copies.
type Normalize struct{}

func (Normalize) Name() string { return "Normalize" }

func (Normalize) Requires() []analysis.Kind {
	return []analysis.Kind{analysis.KindCFG}
}

func (Normalize) Run(fn *ir.Function, _ *analysis.Cache) (ir.Mutation, error) {
	mut := ir.MutNone
	fn.RebuildCFG()

	for _, b := range fn.Layout() {
		if len(b.Preds) > 1 && len(b.Succs) > 1 {
			splitFork(fn, b)
			mut |= ir.MutBlocks | ir.MutTerminators | ir.MutInstructions
		}
	}
	fn.RebuildCFG()

	for _, m := range fn.Layout() {
		if len(m.Preds) < 2 {
			continue
		}
		for _, p := range append([]ir.BlockID(nil), m.Preds...) {
			pb := fn.Block(p)
			if len(pb.Succs) < 2 {
				continue
			}
			relay := fn.NewBlockAfter(p, pb.Label+"_"+m.Label)
			relay.Append(fn.NewInst(ir.OpJmp, ir.NoVar, ir.LabelOp(m.ID)))
			pb.Terminator().ReplaceLabel(m.ID, relay.ID)
			m.ReplacePhiLabel(p, relay.ID)
			mut |= ir.MutBlocks | ir.MutTerminators
		}
	}
	if collapsePhis(fn) {
		mut |= ir.MutInstructions
	}
	if mut != ir.MutNone {
		fn.RebuildCFG()
		log.Debugf("%s: normalized to %d blocks", fn.Name, fn.NumBlocks())
	}
	return mut, nil
}

// splitFork moves everything after b's phis into a new block so that b
// only merges
func splitFork(fn *ir.Function, b *ir.BasicBlock) {
	fork := fn.NewBlockAfter(b.ID, b.Label+"_fork")
	for _, inst := range b.Body() {
		fork.Append(inst)
	}
	b.Instructions = b.Instructions[:len(b.Phis())]
	b.Append(fn.NewInst(ir.OpJmp, ir.NoVar, ir.LabelOp(fork.ID)))
	for _, s := range b.Succs {
		fn.Block(s).ReplacePhiLabel(b.ID, fork.ID)
	}
}
