package passes

import (
	"fmt"
	"sort"
	"strings"

	"stackc/internal/analysis"
	"stackc/internal/ir"
)

// CSE removes recomputations of effect-free expressions already available
// in a dominating block
type CSE struct{}

func (CSE) Name() string { return "CSE" }

func (CSE) Requires() []analysis.Kind {
	return []analysis.Kind{analysis.KindDominators, analysis.KindDFG}
}

func (CSE) Fixpoint() bool      { return true }
func (CSE) RunsAfter() []string { return []string{"MakeSSA"} }

func (CSE) Run(fn *ir.Function, cache *analysis.Cache) (ir.Mutation, error) {
	dom := cache.Dominators()
	dfg := cache.DFG()
	available := map[string][]ir.Var{}
	mut := ir.MutNone

	type frame struct {
		id    ir.BlockID
		keys  []string
		child int
		done  bool
	}
	stack := []*frame{{id: fn.Entry}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if !f.done {
			f.done = true
			b := fn.Block(f.id)
			for _, inst := range append([]*ir.Instruction(nil), b.Instructions...) {
				if !inst.Opcode.IsPure() || inst.Opcode == ir.OpAssign || dfg.Def(inst.Output) != inst {
					continue
				}
				key := expressionKey(inst)
				if prev := available[key]; len(prev) > 0 {
					replaceUses(fn, inst.Output, ir.VarOp(prev[len(prev)-1]))
					b.Remove(inst)
					mut |= ir.MutInstructions | ir.MutOperands
					continue
				}
				available[key] = append(available[key], inst.Output)
				f.keys = append(f.keys, key)
			}
		}
		children := dom.Children(f.id)
		if f.child < len(children) {
			stack = append(stack, &frame{id: children[f.child]})
			f.child++
			continue
		}
		for _, k := range f.keys {
			available[k] = available[k][:len(available[k])-1]
		}
		stack = stack[:len(stack)-1]
	}
	return mut, nil
}

func operandKey(op ir.Operand) string {
	switch op.Kind {
	case ir.OperandVar:
		return fmt.Sprintf("v%d", op.Var)
	case ir.OperandLiteral:
		return "l" + op.Lit.Hex()
	case ir.OperandSymbol:
		return "s" + op.Sym
	}
	return fmt.Sprintf("b%d", op.Block)
}

// expressionKey identifies an expression; commutative operands are sorted
func expressionKey(inst *ir.Instruction) string {
	keys := make([]string, len(inst.Operands))
	for i, op := range inst.Operands {
		keys[i] = operandKey(op)
	}
	if inst.Opcode.IsCommutative() {
		sort.Strings(keys)
	}
	return inst.Opcode.String() + "(" + strings.Join(keys, ",") + ")"
}
