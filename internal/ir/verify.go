package ir

import (
	"fmt"

	"stackc/internal/errors"
)

// Coordinates locates an instruction for diagnostics. idx is -1 for the
// block as a whole.
func Coordinates(fn *Function, b *BasicBlock, idx int) errors.Coordinates {
	at := errors.At(fn.Name)
	if b == nil {
		return at
	}
	return at.InBlock(b.Label, fn.LayoutIndex(b.ID)).AtInstruction(idx)
}

// CoordinatesOf locates an instruction by its back-reference
func CoordinatesOf(fn *Function, inst *Instruction) errors.Coordinates {
	b := fn.Block(inst.Block)
	if b == nil {
		return errors.At(fn.Name)
	}
	return Coordinates(fn, b, b.IndexOf(inst))
}

// Verify checks structural well-formedness and CFG/terminator consistency
func Verify(fn *Function) error {
	entry := fn.EntryBlock()
	if entry == nil || fn.LayoutIndex(fn.Entry) != 0 {
		return errors.NewInvariant(errors.ErrorMalformedIR, errors.At(fn.Name), "entry block must exist and come first")
	}
	for _, b := range fn.Layout() {
		if err := verifyBlock(fn, b); err != nil {
			return err
		}
	}
	if err := VerifyCFG(fn); err != nil {
		return err
	}
	if len(entry.Preds) > 0 {
		return errors.NewInvariant(errors.ErrorCFGMismatch, Coordinates(fn, entry, -1), "entry block has predecessors")
	}
	return nil
}

func verifyBlock(fn *Function, b *BasicBlock) error {
	if len(b.Instructions) == 0 {
		return errors.NewInvariant(errors.ErrorMalformedIR, Coordinates(fn, b, -1), "empty block")
	}
	inPhis := true
	for i, inst := range b.Instructions {
		at := Coordinates(fn, b, i)
		if inst.Block != b.ID {
			return errors.NewInvariant(errors.ErrorMalformedIR, at, "instruction back-reference names block %d", int(inst.Block))
		}
		last := i == len(b.Instructions)-1
		if inst.IsTerminator() != last {
			if last {
				return errors.NewInvariant(errors.ErrorMalformedIR, at, "block does not end in a terminator")
			}
			return errors.NewInvariant(errors.ErrorMalformedIR, at, "terminator %s before the end of the block", inst.Opcode)
		}
		if inst.IsPhi() {
			if !inPhis {
				return errors.NewInvariant(errors.ErrorMalformedIR, at, "phi after a non-phi instruction")
			}
			if err := verifyPhi(fn, b, inst); err != nil {
				return errors.NewInvariant(errors.ErrorMalformedIR, at, "%v", err)
			}
		} else {
			inPhis = false
		}
		if err := CheckShape(fn, inst); err != nil {
			return errors.NewInvariant(errors.ErrorMalformedIR, at, "%v", err)
		}
	}
	return nil
}

func verifyPhi(fn *Function, b *BasicBlock, phi *Instruction) error {
	seen := map[BlockID]bool{}
	for _, e := range phi.PhiEdges() {
		if seen[e.Pred] {
			return fmt.Errorf("phi lists predecessor %s twice", FormatOperand(fn, LabelOp(e.Pred)))
		}
		seen[e.Pred] = true
		if !b.HasPred(e.Pred) {
			return fmt.Errorf("phi names %s which is not a predecessor", FormatOperand(fn, LabelOp(e.Pred)))
		}
	}
	if len(seen) != len(b.Preds) {
		return fmt.Errorf("phi has %d incoming values for %d predecessors", len(seen), len(b.Preds))
	}
	return nil
}

// CheckShape validates operand kinds and counts against the opcode table
func CheckShape(fn *Function, inst *Instruction) error {
	info := inst.Opcode.info()
	if inst.Opcode == OpInvalid {
		return fmt.Errorf("invalid opcode")
	}
	switch info.out {
	case outRequired:
		if inst.Output == NoVar {
			return fmt.Errorf("%s requires an output", inst.Opcode)
		}
	case outNone:
		if inst.Output != NoVar {
			return fmt.Errorf("%s does not produce a value", inst.Opcode)
		}
	}
	for _, op := range inst.Operands {
		if op.IsLabel() && fn.Block(op.Block) == nil {
			return fmt.Errorf("label operand names a removed block")
		}
		if op.IsVar() && (op.Var < 0 || int(op.Var) >= len(fn.Vars)) {
			return fmt.Errorf("operand names unknown variable %d", int(op.Var))
		}
	}

	if inst.Opcode == OpPhi {
		if len(inst.Operands) == 0 || len(inst.Operands)%2 != 0 {
			return fmt.Errorf("phi needs label/value pairs")
		}
		for i, op := range inst.Operands {
			want := OperandLabel
			if i%2 == 1 {
				want = OperandVar
			}
			if op.Kind != want {
				return fmt.Errorf("phi operand %d has the wrong kind", i)
			}
		}
		return nil
	}

	stack, labels, syms := 0, 0, 0
	for i, op := range inst.Operands {
		switch op.Kind {
		case OperandVar, OperandLiteral:
			if labels > 0 {
				return fmt.Errorf("%s: stack operand after a label", inst.Opcode)
			}
			stack++
		case OperandLabel:
			if info.imm != immLabels {
				return fmt.Errorf("%s takes no label operands", inst.Opcode)
			}
			labels++
		case OperandSymbol:
			if info.imm != immSymbol || i != 0 {
				return fmt.Errorf("%s: unexpected symbol operand", inst.Opcode)
			}
			syms++
		}
	}
	if stack < info.minIn || (info.maxIn >= 0 && stack > info.maxIn) {
		return fmt.Errorf("%s: %d stack operands out of range", inst.Opcode, stack)
	}
	if info.imm == immSymbol && syms != 1 {
		return fmt.Errorf("%s needs a symbol operand", inst.Opcode)
	}
	if info.imm == immLabels {
		if (info.labels >= 0 && labels != info.labels) || (info.labels < 0 && labels == 0) {
			return fmt.Errorf("%s: %d label operands", inst.Opcode, labels)
		}
	}
	return nil
}

// VerifyCFG checks that stored predecessor/successor sets equal what the
// terminators imply
func VerifyCFG(fn *Function) error {
	derivedPreds := map[BlockID][]BlockID{}
	for _, b := range fn.Layout() {
		succs := DeriveSuccs(b)
		if !sameSet(succs, b.Succs) {
			return errors.NewInvariant(errors.ErrorCFGMismatch, Coordinates(fn, b, -1),
				"stored successors %v differ from terminator targets %v", labels(fn, b.Succs), labels(fn, succs))
		}
		for _, s := range succs {
			derivedPreds[s] = append(derivedPreds[s], b.ID)
		}
	}
	for _, b := range fn.Layout() {
		if !sameSet(derivedPreds[b.ID], b.Preds) {
			return errors.NewInvariant(errors.ErrorCFGMismatch, Coordinates(fn, b, -1),
				"stored predecessors %v differ from derived %v", labels(fn, b.Preds), labels(fn, derivedPreds[b.ID]))
		}
	}
	return nil
}

// VerifyNormalized checks that no block is both a merge and a fork and
// that every predecessor of a merge has a single successor
func VerifyNormalized(fn *Function) error {
	for _, b := range fn.Layout() {
		if len(b.Preds) > 1 && len(b.Succs) > 1 {
			return errors.NewInvariant(errors.ErrorNotNormalized, Coordinates(fn, b, -1),
				"block has %d predecessors and %d successors", len(b.Preds), len(b.Succs))
		}
		if len(b.Preds) > 1 {
			for _, p := range b.Preds {
				if pb := fn.Block(p); pb != nil && len(pb.Succs) > 1 {
					return errors.NewInvariant(errors.ErrorNotNormalized, Coordinates(fn, pb, -1),
						"critical edge to merge block %s", b.Label)
				}
			}
		}
	}
	return nil
}

func sameSet(a, b []BlockID) bool {
	if len(a) != len(b) {
		return false
	}
	count := map[BlockID]int{}
	for _, x := range a {
		count[x]++
	}
	for _, x := range b {
		count[x]--
		if count[x] < 0 {
			return false
		}
	}
	return true
}

func labels(fn *Function, ids []BlockID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = FormatOperand(fn, LabelOp(id))
	}
	return out
}
