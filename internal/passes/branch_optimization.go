package passes

import (
	"stackc/internal/analysis"
	"stackc/internal/ir"
)

// BranchOptimization rewrites jnz conditions. A branch on a literal
// becomes a jmp. A branch on `iszero %x` whose result feeds only that
// branch tests %x directly with the targets swapped, leaving the iszero
// to RemoveUnused.
type BranchOptimization struct{}

func (BranchOptimization) Name() string { return "BranchOptimization" }

func (BranchOptimization) Requires() []analysis.Kind {
	return []analysis.Kind{analysis.KindDFG}
}

func (BranchOptimization) Fixpoint() bool      { return true }
func (BranchOptimization) RunsAfter() []string { return []string{"MakeSSA"} }

func (BranchOptimization) Run(fn *ir.Function, cache *analysis.Cache) (ir.Mutation, error) {
	dfg := cache.DFG()
	mut := ir.MutNone
	for _, b := range fn.Layout() {
		t := b.Terminator()
		if t == nil || t.Opcode != ir.OpJnz {
			continue
		}
		cond := t.Operands[0]
		if cond.IsLiteral() {
			targets := t.Targets()
			keep, drop := targets[0], targets[1]
			if cond.Lit.IsZero() {
				keep, drop = drop, keep
			}
			t.Opcode = ir.OpJmp
			t.Operands = []ir.Operand{ir.LabelOp(keep)}
			dropEdge(fn, b.ID, drop)
			mut |= ir.MutTerminators
			continue
		}
		if !cond.IsVar() || len(dfg.Uses(cond.Var)) != 1 {
			continue
		}
		def := dfg.Def(cond.Var)
		if def == nil || def.Opcode != ir.OpIszero {
			continue
		}
		t.Operands[0] = def.Operands[0]
		t.Operands[1], t.Operands[2] = t.Operands[2], t.Operands[1]
		mut |= ir.MutOperands | ir.MutTerminators
	}
	if mut&ir.MutTerminators != 0 {
		fn.RebuildCFG()
		if removeUnreachable(fn, analysis.NewCache(fn).CFG().Reachable) {
			mut |= ir.MutBlocks
		}
		if collapsePhis(fn) {
			mut |= ir.MutInstructions
		}
	}
	return mut, nil
}
