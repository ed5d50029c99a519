package ir

// Instruction is one operation with an optional single output
type Instruction struct {
	ID       InstID
	Opcode   Opcode
	Operands []Operand
	Output   Var
	Block    BlockID
}

// PhiEdge is one incoming (predecessor, value) pair of a phi
type PhiEdge struct {
	Pred  BlockID
	Value Var
}

func (inst *Instruction) IsTerminator() bool { return inst.Opcode.IsTerminator() }
func (inst *Instruction) IsPhi() bool        { return inst.Opcode == OpPhi }
func (inst *Instruction) HasOutput() bool    { return inst.Output != NoVar }

// Inputs returns the variables read by the instruction, in operand order
func (inst *Instruction) Inputs() []Var {
	var vars []Var
	for _, op := range inst.Operands {
		if op.IsVar() {
			vars = append(vars, op.Var)
		}
	}
	return vars
}

// Uses reports whether v appears among the operands
func (inst *Instruction) Uses(v Var) bool {
	for _, op := range inst.Operands {
		if op.IsVar() && op.Var == v {
			return true
		}
	}
	return false
}

// StackOperands returns the operands consumed from the stack, operand 0 first
func (inst *Instruction) StackOperands() []Operand {
	if inst.Opcode == OpPhi {
		return nil
	}
	ops := make([]Operand, 0, len(inst.Operands))
	for _, op := range inst.Operands {
		if op.OnStack() {
			ops = append(ops, op)
		}
	}
	return ops
}

// Targets returns the successor labels of a terminator in operand order
func (inst *Instruction) Targets() []BlockID {
	if !inst.IsTerminator() {
		return nil
	}
	var out []BlockID
	for _, op := range inst.Operands {
		if op.IsLabel() {
			out = append(out, op.Block)
		}
	}
	return out
}

// Symbol returns the symbol operand of invoke/dataload, or ""
func (inst *Instruction) Symbol() string {
	for _, op := range inst.Operands {
		if op.Kind == OperandSymbol {
			return op.Sym
		}
	}
	return ""
}

// PhiEdges returns the incoming pairs of a phi
func (inst *Instruction) PhiEdges() []PhiEdge {
	edges := make([]PhiEdge, 0, len(inst.Operands)/2)
	for i := 0; i+1 < len(inst.Operands); i += 2 {
		edges = append(edges, PhiEdge{Pred: inst.Operands[i].Block, Value: inst.Operands[i+1].Var})
	}
	return edges
}

// PhiValue returns the value flowing in from pred, or NoVar
func (inst *Instruction) PhiValue(pred BlockID) Var {
	for _, e := range inst.PhiEdges() {
		if e.Pred == pred {
			return e.Value
		}
	}
	return NoVar
}

// SetPhiEdges replaces the incoming pairs of a phi
func (inst *Instruction) SetPhiEdges(edges []PhiEdge) {
	ops := make([]Operand, 0, 2*len(edges))
	for _, e := range edges {
		ops = append(ops, LabelOp(e.Pred), VarOp(e.Value))
	}
	inst.Operands = ops
}

// ReplaceUses rewrites every use of from into to and reports how many changed
func (inst *Instruction) ReplaceUses(from Var, to Operand) int {
	n := 0
	for i, op := range inst.Operands {
		if op.IsVar() && op.Var == from {
			inst.Operands[i] = to
			n++
		}
	}
	return n
}

// ReplaceLabel rewrites label operands pointing at from
func (inst *Instruction) ReplaceLabel(from, to BlockID) bool {
	changed := false
	for i, op := range inst.Operands {
		if op.IsLabel() && op.Block == from {
			inst.Operands[i].Block = to
			changed = true
		}
	}
	return changed
}

// MakeAssign turns the instruction into "%out = assign src" in place
func (inst *Instruction) MakeAssign(src Operand) {
	inst.Opcode = OpAssign
	inst.Operands = []Operand{src}
}

func (inst *Instruction) clone() *Instruction {
	c := *inst
	c.Operands = append([]Operand(nil), inst.Operands...)
	return &c
}
