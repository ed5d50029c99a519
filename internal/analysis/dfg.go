package analysis

import (
	"stackc/internal/ir"
)

// DFG maps each variable to its definitions and its using instructions
type DFG struct {
	defs [][]*ir.Instruction
	uses [][]*ir.Instruction
}

func computeDFG(fn *ir.Function) *DFG {
	d := &DFG{
		defs: make([][]*ir.Instruction, len(fn.Vars)),
		uses: make([][]*ir.Instruction, len(fn.Vars)),
	}
	fn.Instructions(func(_ *ir.BasicBlock, inst *ir.Instruction) bool {
		if inst.Output != ir.NoVar {
			d.defs[inst.Output] = append(d.defs[inst.Output], inst)
		}
		var seen []ir.Var
	operands:
		for _, v := range inst.Inputs() {
			for _, s := range seen {
				if s == v {
					continue operands
				}
			}
			seen = append(seen, v)
			d.uses[v] = append(d.uses[v], inst)
		}
		return true
	})
	return d
}

func (d *DFG) inRange(v ir.Var) bool { return v >= 0 && int(v) < len(d.defs) }

// Def returns the single definition of v, or nil when v has none or many
func (d *DFG) Def(v ir.Var) *ir.Instruction {
	if !d.inRange(v) || len(d.defs[v]) != 1 {
		return nil
	}
	return d.defs[v][0]
}

func (d *DFG) Defs(v ir.Var) []*ir.Instruction {
	if !d.inRange(v) {
		return nil
	}
	return d.defs[v]
}

// Uses returns the instructions reading v in layout order, each once
func (d *DFG) Uses(v ir.Var) []*ir.Instruction {
	if !d.inRange(v) {
		return nil
	}
	return d.uses[v]
}

// MultiplyDefined lists variables with more than one definition
func (d *DFG) MultiplyDefined() []ir.Var {
	var out []ir.Var
	for v, defs := range d.defs {
		if len(defs) > 1 {
			out = append(out, ir.Var(v))
		}
	}
	return out
}
