package passes

import (
	"stackc/internal/analysis"
	"stackc/internal/ir"
)

// RemoveUnused deletes effect-free instructions whose output is never read
type RemoveUnused struct{}

func (RemoveUnused) Name() string              { return "RemoveUnused" }
func (RemoveUnused) Requires() []analysis.Kind { return nil }
func (RemoveUnused) Fixpoint() bool            { return true }

func (RemoveUnused) Run(fn *ir.Function, _ *analysis.Cache) (ir.Mutation, error) {
	uses := map[ir.Var]int{}
	defs := map[ir.Var]*ir.Instruction{}
	fn.Instructions(func(_ *ir.BasicBlock, inst *ir.Instruction) bool {
		for _, v := range inst.Inputs() {
			uses[v]++
		}
		if inst.Output != ir.NoVar {
			defs[inst.Output] = inst
		}
		return true
	})

	var work []*ir.Instruction
	fn.Instructions(func(_ *ir.BasicBlock, inst *ir.Instruction) bool {
		if inst.Output != ir.NoVar && uses[inst.Output] == 0 {
			work = append(work, inst)
		}
		return true
	})

	mut := ir.MutNone
	removed := map[*ir.Instruction]bool{}
	for len(work) > 0 {
		inst := work[len(work)-1]
		work = work[:len(work)-1]
		if removed[inst] || inst.Output == ir.NoVar || uses[inst.Output] > 0 {
			continue
		}
		if !inst.Opcode.Removable() {
			// calls keep running; only their result is dropped
			if inst.Opcode == ir.OpInvoke {
				inst.Output = ir.NoVar
				mut |= ir.MutOperands
			}
			continue
		}
		fn.Block(inst.Block).Remove(inst)
		removed[inst] = true
		mut |= ir.MutInstructions
		for _, v := range inst.Inputs() {
			uses[v]--
			if uses[v] == 0 {
				if def, ok := defs[v]; ok && !removed[def] {
					work = append(work, def)
				}
			}
		}
	}
	return mut, nil
}
