package passes

import (
	"github.com/holiman/uint256"
	"stackc/internal/analysis"
	"stackc/internal/ir"
)

// Algebraic applies arithmetic identities and propagates copies
type Algebraic struct{}

func (Algebraic) Name() string { return "Algebraic" }

func (Algebraic) Requires() []analysis.Kind {
	return []analysis.Kind{analysis.KindDFG}
}

func (Algebraic) Fixpoint() bool { return true }

func (Algebraic) RunsAfter() []string { return []string{"MakeSSA"} }

func (Algebraic) Run(fn *ir.Function, cache *analysis.Cache) (ir.Mutation, error) {
	dfg := cache.DFG()
	mut := ir.MutNone

	fn.Instructions(func(_ *ir.BasicBlock, inst *ir.Instruction) bool {
		if !inst.Opcode.IsPure() || inst.Opcode == ir.OpAssign {
			return true
		}
		if src, ok := simplify(inst); ok {
			inst.MakeAssign(src)
			mut |= ir.MutInstructions
		}
		return true
	})

	// copy propagation over single definitions
	for _, b := range fn.Layout() {
		for _, inst := range append([]*ir.Instruction(nil), b.Instructions...) {
			if inst.Opcode != ir.OpAssign || dfg.Def(inst.Output) != inst {
				continue
			}
			src := inst.Operands[0]
			if src.IsVar() {
				if len(dfg.Defs(src.Var)) != 1 || src.Var == inst.Output {
					continue
				}
				replaceUses(fn, inst.Output, src)
				b.Remove(inst)
				mut |= ir.MutInstructions | ir.MutOperands
				continue
			}
			if n, remaining := replaceUses(fn, inst.Output, src); n > 0 {
				mut |= ir.MutOperands
				if !remaining {
					b.Remove(inst)
					mut |= ir.MutInstructions
				}
			}
		}
	}
	return mut, nil
}

func isWord(op ir.Operand, x uint64) bool {
	return op.IsLiteral() && op.Lit.IsUint64() && op.Lit.Uint64() == x
}

func isAllOnes(op ir.Operand) bool {
	var ones uint256.Int
	ones.Not(&ones)
	return op.IsLiteral() && op.Lit.Eq(&ones)
}

// simplify returns the value an instruction reduces to, if any
func simplify(inst *ir.Instruction) (ir.Operand, bool) {
	ops := inst.Operands

	allLiteral := true
	for _, op := range ops {
		if !op.IsLiteral() {
			allLiteral = false
		}
	}
	if allLiteral {
		args := make([]*uint256.Int, len(ops))
		for i := range ops {
			w := ops[i].Lit
			args[i] = &w
		}
		if out, ok := fold(inst.Opcode, args); ok {
			return ir.WordOp(out), true
		}
		return ir.Operand{}, false
	}
	if len(ops) != 2 {
		return ir.Operand{}, false
	}

	a, b := ops[0], ops[1]
	same := a.Same(b)
	if inst.Opcode.IsCommutative() && a.IsLiteral() {
		a, b = b, a
	}
	switch inst.Opcode {
	case ir.OpAdd, ir.OpOr, ir.OpXor:
		if isWord(b, 0) {
			return a, true
		}
		if same && inst.Opcode == ir.OpOr {
			return a, true
		}
		if same && inst.Opcode == ir.OpXor {
			return ir.LitOp(0), true
		}
	case ir.OpSub:
		if isWord(b, 0) {
			return a, true
		}
		if same {
			return ir.LitOp(0), true
		}
	case ir.OpMul:
		if isWord(b, 1) {
			return a, true
		}
		if isWord(b, 0) {
			return ir.LitOp(0), true
		}
	case ir.OpDiv, ir.OpSdiv:
		if isWord(b, 1) {
			return a, true
		}
	case ir.OpAnd:
		if isWord(b, 0) {
			return ir.LitOp(0), true
		}
		if isAllOnes(b) || same {
			return a, true
		}
	case ir.OpEq:
		if same {
			return ir.LitOp(1), true
		}
	case ir.OpLt, ir.OpGt, ir.OpSlt, ir.OpSgt:
		if same {
			return ir.LitOp(0), true
		}
	case ir.OpShl, ir.OpShr, ir.OpSar:
		if isWord(a, 0) {
			return b, true
		}
	case ir.OpExp:
		if isWord(b, 0) {
			return ir.LitOp(1), true
		}
		if isWord(b, 1) {
			return a, true
		}
	}
	return ir.Operand{}, false
}
