package passes

import (
	"stackc/internal/analysis"
	"stackc/internal/ir"
)

// SimplifyCFG removes unreachable blocks, collapses branches with equal
// targets, bypasses empty jump blocks and merges a block into its only
// predecessor.
type SimplifyCFG struct{}

func (SimplifyCFG) Name() string { return "SimplifyCFG" }

func (SimplifyCFG) Requires() []analysis.Kind {
	return []analysis.Kind{analysis.KindCFG}
}

func (SimplifyCFG) Fixpoint() bool { return true }

func (SimplifyCFG) Run(fn *ir.Function, cache *analysis.Cache) (ir.Mutation, error) {
	mut := ir.MutNone
	if removeUnreachable(fn, cache.CFG().Reachable) {
		mut |= ir.MutBlocks | ir.MutTerminators
	}

	for _, b := range fn.Layout() {
		t := b.Terminator()
		if t == nil || t.Opcode != ir.OpJnz {
			continue
		}
		if targets := t.Targets(); targets[0] == targets[1] {
			t.Opcode = ir.OpJmp
			t.Operands = []ir.Operand{ir.LabelOp(targets[0])}
			mut |= ir.MutTerminators
		}
	}
	fn.RebuildCFG()

	for changed := true; changed; {
		changed = bypassEmpty(fn) || mergeIntoPredecessor(fn)
		if changed {
			mut |= ir.MutBlocks | ir.MutTerminators | ir.MutInstructions
		}
	}
	return mut, nil
}

// bypassEmpty retargets the predecessors of a block that only jumps on
func bypassEmpty(fn *ir.Function) bool {
	for _, b := range fn.Layout() {
		if b.ID == fn.Entry || len(b.Instructions) != 1 {
			continue
		}
		t := b.Terminator()
		if t == nil || t.Opcode != ir.OpJmp {
			continue
		}
		next := t.Targets()[0]
		if next == b.ID || len(fn.Block(next).Phis()) > 0 {
			continue
		}
		for _, p := range b.Preds {
			fn.Block(p).Terminator().ReplaceLabel(b.ID, next)
		}
		fn.RemoveBlock(b.ID)
		fn.RebuildCFG()
		return true
	}
	return false
}

// mergeIntoPredecessor appends b to a when a jumps to b unconditionally
// and is b's only predecessor
func mergeIntoPredecessor(fn *ir.Function) bool {
	for _, b := range fn.Layout() {
		if b.ID == fn.Entry || len(b.Preds) != 1 {
			continue
		}
		a := fn.Block(b.Preds[0])
		if a.ID == b.ID {
			continue
		}
		t := a.Terminator()
		if t == nil || t.Opcode != ir.OpJmp {
			continue
		}

		for _, phi := range b.Phis() {
			phi.MakeAssign(ir.VarOp(phi.PhiValue(a.ID)))
		}
		a.Remove(t)
		for _, inst := range b.Instructions {
			a.Append(inst)
		}
		for _, s := range b.Succs {
			fn.Block(s).ReplacePhiLabel(b.ID, a.ID)
		}
		b.Instructions = nil
		fn.RemoveBlock(b.ID)
		fn.RebuildCFG()
		return true
	}
	return false
}
