package passes

import (
	"fmt"

	"stackc/internal/errors"
	"stackc/internal/ir"
)

// Spill moves v to memory at offset: the value is stored right after its
// definition and reloaded into a fresh variable before every use. Phi uses
// reload at the end of the incoming block.
func Spill(fn *ir.Function, v ir.Var, offset uint64) error {
	var def *ir.Instruction
	fn.Instructions(func(_ *ir.BasicBlock, inst *ir.Instruction) bool {
		if inst.Output == v {
			def = inst
			return false
		}
		return true
	})
	if def == nil {
		return errors.NewInvariant(errors.ErrorMalformedIR, errors.At(fn.Name),
			"cannot spill %%%s: no definition", fn.VarName(v))
	}

	base := ir.BaseName(fn.VarName(v))
	reloads := 0
	reload := func() ir.Var {
		reloads++
		return fn.NewVar(fmt.Sprintf("%s.spill%d", base, reloads))
	}

	for _, b := range fn.Layout() {
		for _, inst := range append([]*ir.Instruction(nil), b.Instructions...) {
			if inst == def || !inst.Uses(v) {
				continue
			}
			if inst.IsPhi() {
				for j := 0; j+1 < len(inst.Operands); j += 2 {
					if inst.Operands[j+1].Var != v {
						continue
					}
					pred := fn.Block(inst.Operands[j].Block)
					r := reload()
					pred.InsertBeforeTerminator(fn.NewInst(ir.OpMload, r, ir.LitOp(offset)))
					inst.Operands[j+1] = ir.VarOp(r)
				}
				continue
			}
			r := reload()
			b.Insert(b.IndexOf(inst), fn.NewInst(ir.OpMload, r, ir.LitOp(offset)))
			inst.ReplaceUses(v, ir.VarOp(r))
		}
	}

	b := fn.Block(def.Block)
	at := b.IndexOf(def) + 1
	for at < len(b.Instructions) && (b.Instructions[at].IsPhi() || b.Instructions[at].Opcode == ir.OpParam) {
		at++
	}
	b.Insert(at, fn.NewInst(ir.OpMstore, ir.NoVar, ir.LitOp(offset), ir.VarOp(v)))
	log.Debugf("%s: spilled %%%s to offset %d with %d reloads", fn.Name, fn.VarName(v), offset, reloads)
	return nil
}
