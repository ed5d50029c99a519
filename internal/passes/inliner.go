package passes

import (
	"stackc/internal/analysis"
	"stackc/internal/errors"
	"stackc/internal/ir"
)

// Inliner replaces invoke of small internal functions with a copy of the
// callee body. Recursive callees are never inlined.
type Inliner struct {
	// Budget is the largest callee, in instructions, that is inlined
	Budget int
	// Depth bounds the number of rounds; each round may expose new sites
	Depth int
	// MaxGrowth caps the instructions added over all rounds; 0 disables
	MaxGrowth int
}

func (*Inliner) Name() string { return "Inliner" }

type callSite struct {
	caller *ir.Function
	inst   *ir.Instruction
	callee *ir.Function
}

func (in *Inliner) RunContext(ctx *ir.Context) (bool, error) {
	changed := false
	growth := 0
	for round := 0; round < in.Depth; round++ {
		sites := in.plan(ctx)
		if len(sites) == 0 {
			break
		}
		for _, s := range sites {
			growth += s.callee.InstCount()
		}
		if in.MaxGrowth > 0 && growth > in.MaxGrowth {
			return changed, errors.NewInlineBudget(ctx.Entry, growth, in.MaxGrowth)
		}
		for _, s := range sites {
			inlineCall(s.caller, s.inst, s.callee)
		}
		log.Debugf("inlining round %d: %d call sites, growth %d", round+1, len(sites), growth)
		changed = true
	}
	return changed, nil
}

// plan collects the call sites of this round, callees first
func (in *Inliner) plan(ctx *ir.Context) []callSite {
	cg := analysis.BuildCallGraph(ctx)
	var sites []callSite
	for _, name := range cg.CalleesFirst() {
		caller := ctx.Function(name)
		caller.Instructions(func(_ *ir.BasicBlock, inst *ir.Instruction) bool {
			if inst.Opcode != ir.OpInvoke {
				return true
			}
			callee := ctx.Function(inst.Symbol())
			if callee == nil || callee == caller || !callee.Internal || cg.IsRecursive(callee.Name) {
				return true
			}
			if callee.InstCount() > in.Budget || !inlinable(callee, inst) {
				return true
			}
			sites = append(sites, callSite{caller: caller, inst: inst, callee: callee})
			return true
		})
	}
	return sites
}

// inlinable checks that arguments match parameters and every ret carries
// at most the single value the call site expects
func inlinable(callee *ir.Function, call *ir.Instruction) bool {
	if len(callee.Params()) != len(call.Operands)-1 {
		return false
	}
	ok := true
	callee.Instructions(func(_ *ir.BasicBlock, inst *ir.Instruction) bool {
		if inst.Opcode == ir.OpRet {
			if len(inst.Operands) > 1 || (call.Output != ir.NoVar && len(inst.Operands) == 0) {
				ok = false
			}
		}
		return ok
	})
	return ok
}

// inlineCall splits the caller block at the call and wires a renamed copy
// of the callee in between
func inlineCall(caller *ir.Function, call *ir.Instruction, callee *ir.Function) {
	caller.RebuildCFG()
	b := caller.Block(call.Block)
	idx := b.IndexOf(call)

	cont := caller.NewBlockAfter(b.ID, b.Label+".cont")
	for _, inst := range b.Instructions[idx+1:] {
		cont.Append(inst)
	}
	for _, s := range b.Succs {
		caller.Block(s).ReplacePhiLabel(b.ID, cont.ID)
	}
	b.Instructions = b.Instructions[:idx]

	vars := map[ir.Var]ir.Var{}
	mapVar := func(v ir.Var) ir.Var {
		if nv, ok := vars[v]; ok {
			return nv
		}
		nv := caller.NewVar(callee.Name + "." + callee.VarName(v))
		vars[v] = nv
		return nv
	}
	blocks := map[ir.BlockID]ir.BlockID{}
	anchor := b.ID
	for _, cb := range callee.Layout() {
		nb := caller.NewBlockAfter(anchor, callee.Name+"."+cb.Label)
		blocks[cb.ID] = nb.ID
		anchor = nb.ID
	}
	b.Append(caller.NewInst(ir.OpJmp, ir.NoVar, ir.LabelOp(blocks[callee.Entry])))

	args := call.Operands[1:]
	param := 0
	var returns []ir.PhiEdge
	for _, cb := range callee.Layout() {
		nb := caller.Block(blocks[cb.ID])
		for _, inst := range cb.Instructions {
			ops := make([]ir.Operand, len(inst.Operands))
			for i, op := range inst.Operands {
				switch op.Kind {
				case ir.OperandVar:
					ops[i] = ir.VarOp(mapVar(op.Var))
				case ir.OperandLabel:
					ops[i] = ir.LabelOp(blocks[op.Block])
				default:
					ops[i] = op
				}
			}
			out := ir.NoVar
			if inst.Output != ir.NoVar {
				out = mapVar(inst.Output)
			}

			switch inst.Opcode {
			case ir.OpParam:
				nb.Append(caller.NewInst(ir.OpAssign, out, args[param]))
				param++
			case ir.OpRet:
				if call.Output != ir.NoVar {
					value := ops[0]
					if !value.IsVar() {
						tmp := caller.NewTemp()
						nb.Append(caller.NewInst(ir.OpAssign, tmp, value))
						value = ir.VarOp(tmp)
					}
					returns = append(returns, ir.PhiEdge{Pred: nb.ID, Value: value.Var})
				}
				nb.Append(caller.NewInst(ir.OpJmp, ir.NoVar, ir.LabelOp(cont.ID)))
			default:
				nb.Append(caller.NewInst(inst.Opcode, out, ops...))
			}
		}
	}

	if call.Output != ir.NoVar && len(returns) > 0 {
		if len(returns) == 1 {
			cont.Insert(0, caller.NewInst(ir.OpAssign, call.Output, ir.VarOp(returns[0].Value)))
		} else {
			phi := caller.NewInst(ir.OpPhi, call.Output)
			phi.SetPhiEdges(returns)
			cont.Insert(0, phi)
		}
	}
	caller.RebuildCFG()
}
