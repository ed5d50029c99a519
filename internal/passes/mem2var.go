package passes

import (
	"stackc/internal/analysis"
	"stackc/internal/ir"
)

// Mem2Var promotes alloca slots that are only loaded and stored as whole
// words at their base address into a variable. The variable is assigned
// at every store, so MakeSSA has to follow.
type Mem2Var struct{}

func (Mem2Var) Name() string { return "Mem2Var" }

func (Mem2Var) Requires() []analysis.Kind {
	return []analysis.Kind{analysis.KindDFG}
}

func (Mem2Var) RunsImmediatelyBefore() []string { return []string{"MakeSSA"} }

func (Mem2Var) Run(fn *ir.Function, cache *analysis.Cache) (ir.Mutation, error) {
	dfg := cache.DFG()
	var allocas []*ir.Instruction
	fn.Instructions(func(_ *ir.BasicBlock, inst *ir.Instruction) bool {
		if inst.Opcode == ir.OpAlloca {
			allocas = append(allocas, inst)
		}
		return true
	})

	mut := ir.MutNone
	for _, alloca := range allocas {
		slot, ok := traceSlot(dfg, alloca)
		if !ok {
			log.Debugf("%s: %%%s escapes, not promoted", fn.Name, fn.VarName(alloca.Output))
			continue
		}
		promote(fn, alloca, slot)
		mut |= ir.MutInstructions | ir.MutOperands
	}
	return mut, nil
}

// slotAccess is the provenance of one alloca
type slotAccess struct {
	aliases map[ir.Var]bool
	copies  []*ir.Instruction // assign/phi forwarding the pointer
	loads   []*ir.Instruction
	stores  []*ir.Instruction
}

// traceSlot follows the pointer through assign and phi and classifies each
// use. Any other use makes the slot escape.
func traceSlot(dfg *analysis.DFG, alloca *ir.Instruction) (*slotAccess, bool) {
	s := &slotAccess{aliases: map[ir.Var]bool{alloca.Output: true}}
	visited := map[ir.InstID]bool{alloca.ID: true}
	work := []ir.Var{alloca.Output}

	for len(work) > 0 {
		p := work[len(work)-1]
		work = work[:len(work)-1]
		if len(dfg.Defs(p)) != 1 {
			return nil, false
		}
		for _, use := range dfg.Uses(p) {
			if visited[use.ID] {
				continue
			}
			visited[use.ID] = true
			switch use.Opcode {
			case ir.OpMload:
				s.loads = append(s.loads, use)
			case ir.OpMstore:
				if !use.Operands[0].IsVar() || use.Operands[0].Var != p {
					return nil, false
				}
				s.stores = append(s.stores, use)
			case ir.OpAssign, ir.OpPhi:
				s.copies = append(s.copies, use)
				s.aliases[use.Output] = true
				work = append(work, use.Output)
			default:
				return nil, false
			}
		}
	}

	// a stored value must not be another alias, and phis may only merge aliases
	for _, st := range s.stores {
		if v := st.Operands[1]; v.IsVar() && s.aliases[v.Var] {
			return nil, false
		}
	}
	for _, c := range s.copies {
		for _, v := range c.Inputs() {
			if !s.aliases[v] {
				return nil, false
			}
		}
	}
	return s, true
}

func promote(fn *ir.Function, alloca *ir.Instruction, s *slotAccess) {
	slot := fn.NewVar(ir.BaseName(fn.VarName(alloca.Output)) + ".slot")

	for _, st := range s.stores {
		st.Output = slot
		st.MakeAssign(st.Operands[1])
	}
	for _, ld := range s.loads {
		ld.MakeAssign(ir.VarOp(slot))
	}
	for _, c := range s.copies {
		if b := fn.Block(c.Block); b != nil {
			b.Remove(c)
		}
	}

	// fresh memory reads as zero
	alloca.Output = slot
	alloca.MakeAssign(ir.LitOp(0))
}
