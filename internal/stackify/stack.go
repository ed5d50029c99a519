package stackify

import (
	"github.com/holiman/uint256"
	"stackc/internal/errors"
	"stackc/internal/ir"
)

// value is what a stack slot holds: a variable, or a literal when v is NoVar
type value struct {
	v   ir.Var
	lit uint256.Int
}

func varValue(v ir.Var) value { return value{v: v} }

func litValue(w uint256.Int) value { return value{v: ir.NoVar, lit: w} }

func operandValue(op ir.Operand) value {
	if op.IsLiteral() {
		return litValue(op.Lit)
	}
	return varValue(op.Var)
}

func (v value) isLiteral() bool { return v.v == ir.NoVar }

// machine is the emitter's model of the operand stack. Every manipulation
// is recorded as an Item and checked against the reach and depth limits.
type machine struct {
	fn    *ir.Function
	reach int
	limit int
	slots []value // bottom first
	items []Item
	at    errors.Coordinates
}

func (m *machine) size() int { return len(m.slots) }

// peek returns the slot at depth d, 0 being the top
func (m *machine) peek(d int) value { return m.slots[len(m.slots)-1-d] }

func (m *machine) set(d int, v value) { m.slots[len(m.slots)-1-d] = v }

// find returns the depth of the shallowest slot holding v that skip does
// not exclude, or -1
func (m *machine) find(v value, skip func(d int) bool) int {
	for d := 0; d < len(m.slots); d++ {
		if m.peek(d) == v && (skip == nil || !skip(d)) {
			return d
		}
	}
	return -1
}

func (m *machine) count(v value) int {
	n := 0
	for _, s := range m.slots {
		if s == v {
			n++
		}
	}
	return n
}

func (m *machine) name(v value) string {
	if v.isLiteral() {
		return ir.FormatWord(&v.lit)
	}
	return "%" + m.fn.VarName(v.v)
}

func (m *machine) tooDeep(v value, depth, limit int) error {
	return errors.NewStackTooDeep(m.at, m.name(v), depth, limit)
}

func (m *machine) grow(v value) error {
	m.slots = append(m.slots, v)
	if len(m.slots) > m.limit {
		return m.tooDeep(v, len(m.slots), m.limit)
	}
	return nil
}

func (m *machine) push(w uint256.Int) error {
	m.items = append(m.items, Item{Kind: ItemPush, Value: w})
	return m.grow(litValue(w))
}

func (m *machine) dup(d int) error {
	v := m.peek(d)
	if d+1 > m.reach {
		return m.tooDeep(v, d+1, m.reach)
	}
	m.items = append(m.items, Item{Kind: ItemDup, N: d + 1})
	return m.grow(v)
}

func (m *machine) swap(d int) error {
	if d == 0 {
		return nil
	}
	if d > m.reach {
		return m.tooDeep(m.peek(d), d, m.reach)
	}
	m.items = append(m.items, Item{Kind: ItemSwap, N: d})
	top := len(m.slots) - 1
	m.slots[top], m.slots[top-d] = m.slots[top-d], m.slots[top]
	return nil
}

func (m *machine) pop() {
	m.items = append(m.items, Item{Kind: ItemPop})
	m.slots = m.slots[:len(m.slots)-1]
}

// removeAt drops the slot at depth d
func (m *machine) removeAt(d int) error {
	if err := m.swap(d); err != nil {
		return err
	}
	m.pop()
	return nil
}

// op records an instruction consuming n slots and pushing its output
func (m *machine) op(inst *ir.Instruction, labels []string, n int) error {
	m.items = append(m.items, Item{Kind: ItemOp, Op: inst.Opcode, Inst: inst, Labels: labels, Symbol: inst.Symbol()})
	m.slots = m.slots[:len(m.slots)-n]
	if inst.Output != ir.NoVar {
		return m.grow(varValue(inst.Output))
	}
	return nil
}

func (m *machine) vars() []ir.Var {
	out := make([]ir.Var, len(m.slots))
	for i, s := range m.slots {
		out[i] = s.v
	}
	return out
}
