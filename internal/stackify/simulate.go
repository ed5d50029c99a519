package stackify

import (
	"stackc/internal/errors"
	"stackc/internal/ir"
)

// sentinels sit below every block's entry layout so that a stream reaching
// under its own values is caught
const sentinels = 16

// maxManip is the widest DUP/SWAP the target encodes
const maxManip = 16

type simulator struct {
	fn       *ir.Function
	canon    map[ir.Var]value
	segments map[ir.BlockID]*Segment
	stack    []value
	at       errors.Coordinates
}

// Simulate replays out symbolically against fn. Every opcode must pop
// exactly the values its instruction names, every block must be entered
// with the layout its segment declares, and ret must leave nothing behind.
// Copies are compared by value, so an assign and its source are
// interchangeable.
func Simulate(fn *ir.Function, out *Function) error {
	s := &simulator{
		fn:       fn,
		canon:    map[ir.Var]value{},
		segments: map[ir.BlockID]*Segment{},
	}
	for _, seg := range out.Segments {
		s.segments[seg.Block] = seg
	}
	for _, seg := range out.Segments {
		if err := s.segment(seg); err != nil {
			return err
		}
	}
	return nil
}

// value resolves assign chains down to their root variable or literal
func (s *simulator) value(v ir.Var) value {
	if c, ok := s.canon[v]; ok {
		return c
	}
	c := varValue(v)
	s.fn.Instructions(func(_ *ir.BasicBlock, inst *ir.Instruction) bool {
		if inst.Output != v {
			return true
		}
		if inst.Opcode == ir.OpAssign {
			if src := inst.Operands[0]; src.IsLiteral() {
				c = litValue(src.Lit)
			} else {
				c = s.value(src.Var)
			}
		}
		return false
	})
	s.canon[v] = c
	return c
}

func (s *simulator) operand(op ir.Operand) value {
	if op.IsLiteral() {
		return litValue(op.Lit)
	}
	return s.value(op.Var)
}

func (s *simulator) fail(format string, args ...interface{}) error {
	return errors.NewInvariant(errors.ErrorMalformedIR, s.at, "stack simulation: "+format, args...)
}

func (s *simulator) describe(v value) string {
	switch {
	case v.isLiteral():
		return ir.FormatWord(&v.lit)
	case v.v < 0:
		return "<below entry>"
	}
	return "%" + s.fn.VarName(v.v)
}

func (s *simulator) depth() int { return len(s.stack) - sentinels }

func (s *simulator) peek(d int) value { return s.stack[len(s.stack)-1-d] }

func (s *simulator) segment(seg *Segment) error {
	b := s.fn.Block(seg.Block)
	if b == nil {
		return s.fail("segment %s names a removed block", seg.Label)
	}
	s.at = ir.Coordinates(s.fn, b, -1)

	s.stack = s.stack[:0]
	for i := 0; i < sentinels; i++ {
		s.stack = append(s.stack, value{v: ir.Var(-2 - i)})
	}
	for _, v := range seg.Entry {
		s.stack = append(s.stack, s.value(v))
	}

	var expect []*ir.Instruction
	for _, inst := range b.Instructions {
		switch inst.Opcode {
		case ir.OpPhi, ir.OpParam, ir.OpAssign:
			continue
		}
		expect = append(expect, inst)
	}

	next := 0
	for _, it := range seg.Items {
		switch it.Kind {
		case ItemPush:
			s.stack = append(s.stack, litValue(it.Value))
		case ItemDup:
			if it.N < 1 || it.N > maxManip || it.N > s.depth() {
				return s.fail("DUP%d with %d values on the stack", it.N, s.depth())
			}
			s.stack = append(s.stack, s.peek(it.N-1))
		case ItemSwap:
			if it.N < 1 || it.N > maxManip || it.N >= s.depth() {
				return s.fail("SWAP%d with %d values on the stack", it.N, s.depth())
			}
			top := len(s.stack) - 1
			s.stack[top], s.stack[top-it.N] = s.stack[top-it.N], s.stack[top]
		case ItemPop:
			if s.depth() < 1 {
				return s.fail("POP on an empty stack")
			}
			s.stack = s.stack[:len(s.stack)-1]
		case ItemOp:
			if next >= len(expect) || it.Inst != expect[next] {
				return s.fail("%s out of order", it.Op)
			}
			inst := expect[next]
			next++
			s.at = ir.CoordinatesOf(s.fn, inst)
			if err := s.apply(inst); err != nil {
				return err
			}
			if inst.IsTerminator() {
				if err := s.leave(b, inst); err != nil {
					return err
				}
			}
		default:
			return s.fail("unexpected item %s", it)
		}
	}
	if next != len(expect) {
		s.at = ir.Coordinates(s.fn, b, -1)
		return s.fail("%d of %d instructions emitted", next, len(expect))
	}
	return nil
}

func (s *simulator) apply(inst *ir.Instruction) error {
	ops := inst.StackOperands()
	if len(ops) > s.depth() {
		return s.fail("%s needs %d values, %d on the stack", inst.Opcode, len(ops), s.depth())
	}
	for j, op := range ops {
		want, got := s.operand(op), s.peek(j)
		if want != got {
			return s.fail("%s operand %d is %s, expected %s", inst.Opcode, j, s.describe(got), s.describe(want))
		}
	}
	s.stack = s.stack[:len(s.stack)-len(ops)]
	if inst.Output != ir.NoVar {
		s.stack = append(s.stack, s.value(inst.Output))
	}
	return nil
}

// leave checks the stack against what each successor expects
func (s *simulator) leave(b *ir.BasicBlock, inst *ir.Instruction) error {
	live := s.stack[sentinels:]
	switch inst.Opcode {
	case ir.OpRet:
		if len(live) != 0 {
			return s.fail("%d values left behind by ret", len(live))
		}
		return nil
	case ir.OpJmp, ir.OpJnz, ir.OpDjmp:
	default:
		return nil
	}
	for _, t := range inst.Targets() {
		seg, ok := s.segments[t]
		if !ok {
			return s.fail("jump to unscheduled block %s", s.fn.Block(t).Label)
		}
		sb := s.fn.Block(t)
		sources := map[ir.Var]ir.Var{}
		if len(sb.Preds) > 1 {
			for _, phi := range sb.Phis() {
				sources[phi.Output] = phi.PhiValue(b.ID)
			}
		}
		if err := s.matches(live, seg, sources); err != nil {
			return err
		}
	}
	return nil
}

func (s *simulator) matches(live []value, seg *Segment, sources map[ir.Var]ir.Var) error {
	if len(live) != len(seg.Entry) {
		return s.fail("%d values on the stack, %s expects %d", len(live), seg.Label, len(seg.Entry))
	}
	for i, v := range seg.Entry {
		if src, ok := sources[v]; ok {
			v = src
		}
		if want := s.value(v); live[i] != want {
			return s.fail("slot %d entering %s holds %s, expected %s",
				len(live)-1-i, seg.Label, s.describe(live[i]), s.describe(want))
		}
	}
	return nil
}

