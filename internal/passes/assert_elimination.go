package passes

import (
	"stackc/internal/analysis"
	"stackc/internal/ir"
)

// AssertElimination drops asserts whose condition is already known to be
// nonzero: a nonzero literal, a variable asserted in a dominating
// position, or the condition of the branch that is the only way into the
// block.
type AssertElimination struct{}

func (AssertElimination) Name() string { return "AssertElimination" }

func (AssertElimination) Requires() []analysis.Kind {
	return []analysis.Kind{analysis.KindCFG, analysis.KindDominators}
}

func (AssertElimination) RunsAfter() []string { return []string{"MakeSSA"} }

func (AssertElimination) Run(fn *ir.Function, cache *analysis.Cache) (ir.Mutation, error) {
	dom := cache.Dominators()
	known := map[ir.Var]int{}
	mut := ir.MutNone

	type frame struct {
		id    ir.BlockID
		facts []ir.Var
		child int
		done  bool
	}
	stack := []*frame{{id: fn.Entry}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if !f.done {
			f.done = true
			b := fn.Block(f.id)
			if v, ok := branchFact(fn, b); ok {
				known[v]++
				f.facts = append(f.facts, v)
			}
			for _, inst := range append([]*ir.Instruction(nil), b.Instructions...) {
				if inst.Opcode != ir.OpAssert {
					continue
				}
				cond := inst.Operands[0]
				switch {
				case cond.IsLiteral():
					if cond.Lit.IsZero() {
						continue
					}
				case cond.IsVar():
					if known[cond.Var] == 0 {
						known[cond.Var]++
						f.facts = append(f.facts, cond.Var)
						continue
					}
				default:
					continue
				}
				b.Remove(inst)
				mut |= ir.MutInstructions
			}
		}
		children := dom.Children(f.id)
		if f.child < len(children) {
			stack = append(stack, &frame{id: children[f.child]})
			f.child++
			continue
		}
		for _, v := range f.facts {
			known[v]--
		}
		stack = stack[:len(stack)-1]
	}
	return mut, nil
}

// branchFact returns the condition tested by b's only predecessor when b
// is reached on the nonzero edge alone
func branchFact(fn *ir.Function, b *ir.BasicBlock) (ir.Var, bool) {
	if b.ID == fn.Entry || len(b.Preds) != 1 {
		return ir.NoVar, false
	}
	t := fn.Block(b.Preds[0]).Terminator()
	if t == nil || t.Opcode != ir.OpJnz || !t.Operands[0].IsVar() {
		return ir.NoVar, false
	}
	targets := t.Targets()
	if targets[0] != b.ID || targets[1] == b.ID {
		return ir.NoVar, false
	}
	return t.Operands[0].Var, true
}
