package analysis

import (
	"stackc/internal/errors"
	"stackc/internal/ir"
)

// VerifySSA checks the single-assignment invariant: every variable has
// exactly one definition and each use is dominated by it. A phi operand
// must be dominated along its incoming edge.
func VerifySSA(fn *ir.Function, cache *Cache) error {
	dfg := cache.DFG()
	cfg := cache.CFG()
	dom := cache.Dominators()

	position := map[*ir.Instruction]int{}
	for _, b := range fn.Layout() {
		for i, inst := range b.Instructions {
			position[inst] = i
		}
	}

	for _, b := range fn.Layout() {
		for i, inst := range b.Instructions {
			at := ir.Coordinates(fn, b, i)
			if inst.Output != ir.NoVar && len(dfg.Defs(inst.Output)) != 1 {
				return errors.NewInvariant(errors.ErrorSSAViolation, at,
					"%%%s has %d definitions", fn.VarName(inst.Output), len(dfg.Defs(inst.Output)))
			}
			if !cfg.Reachable(b.ID) {
				continue
			}
			if inst.IsPhi() {
				for _, e := range inst.PhiEdges() {
					def := dfg.Def(e.Value)
					if def == nil {
						return errors.NewInvariant(errors.ErrorSSAViolation, at,
							"phi operand %%%s has no definition", fn.VarName(e.Value))
					}
					if cfg.Reachable(e.Pred) && !dom.Dominates(def.Block, e.Pred) {
						return errors.NewInvariant(errors.ErrorSSAViolation, at,
							"phi operand %%%s does not dominate its incoming edge", fn.VarName(e.Value))
					}
				}
				continue
			}
			for _, v := range inst.Inputs() {
				def := dfg.Def(v)
				if def == nil {
					return errors.NewInvariant(errors.ErrorSSAViolation, at,
						"%%%s is used without a definition", fn.VarName(v))
				}
				if def.Block == b.ID {
					if position[def] >= i {
						return errors.NewInvariant(errors.ErrorSSAViolation, at,
							"%%%s is used before its definition", fn.VarName(v))
					}
					continue
				}
				if !dom.Dominates(def.Block, b.ID) {
					return errors.NewInvariant(errors.ErrorSSAViolation, at,
						"use of %%%s is not dominated by its definition", fn.VarName(v))
				}
			}
		}
	}
	return nil
}

// IsSSA is the boolean form of the single-definition check
func IsSSA(fn *ir.Function) bool {
	seen := make([]bool, len(fn.Vars))
	ok := true
	fn.Instructions(func(_ *ir.BasicBlock, inst *ir.Instruction) bool {
		if inst.Output == ir.NoVar {
			return true
		}
		if seen[inst.Output] {
			ok = false
			return false
		}
		seen[inst.Output] = true
		return true
	})
	return ok
}
