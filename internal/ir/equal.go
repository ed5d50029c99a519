package ir

import (
	"fmt"
)

// Equal reports structural equality up to variable renaming
func Equal(a, b *Context) bool {
	return Compare(a, b) == nil
}

// Compare returns a description of the first structural difference
// between two contexts, or nil. Variables are matched through a
// bijection built while walking both functions in layout order.
func Compare(a, b *Context) error {
	if a.Entry != b.Entry {
		return fmt.Errorf("entry function %q != %q", a.Entry, b.Entry)
	}
	an, bn := a.DataNames(), b.DataNames()
	if len(an) != len(bn) {
		return fmt.Errorf("%d data items != %d", len(an), len(bn))
	}
	for i := range an {
		av, _ := a.Data(an[i])
		bv, _ := b.Data(bn[i])
		if an[i] != bn[i] || !av.Eq(&bv) {
			return fmt.Errorf("data item %d differs: %s != %s", i, an[i], bn[i])
		}
	}
	if len(a.Functions) != len(b.Functions) {
		return fmt.Errorf("%d functions != %d", len(a.Functions), len(b.Functions))
	}
	for i := range a.Functions {
		if err := CompareFunctions(a.Functions[i], b.Functions[i]); err != nil {
			return err
		}
	}
	return nil
}

// CompareFunctions is Compare for a single function
func CompareFunctions(fa, fb *Function) error {
	if fa.Name != fb.Name || fa.IsEntry != fb.IsEntry || fa.Internal != fb.Internal {
		return fmt.Errorf("function header %s != %s", fa.Name, fb.Name)
	}
	la, lb := fa.Layout(), fb.Layout()
	if len(la) != len(lb) {
		return fmt.Errorf("%s: %d blocks != %d", fa.Name, len(la), len(lb))
	}
	if fa.EntryBlock() == nil || fb.EntryBlock() == nil || fa.EntryBlock().Label != fb.EntryBlock().Label {
		return fmt.Errorf("%s: entry blocks differ", fa.Name)
	}

	m := &varBijection{ab: map[Var]Var{}, ba: map[Var]Var{}}
	for i := range la {
		ba, bb := la[i], lb[i]
		if ba.Label != bb.Label {
			return fmt.Errorf("%s: block %d label %q != %q", fa.Name, i, ba.Label, bb.Label)
		}
		if len(ba.Instructions) != len(bb.Instructions) {
			return fmt.Errorf("%s/%s: %d instructions != %d", fa.Name, ba.Label, len(ba.Instructions), len(bb.Instructions))
		}
		for j := range ba.Instructions {
			ia, ib := ba.Instructions[j], bb.Instructions[j]
			if !sameInstruction(fa, fb, ia, ib, m) {
				return fmt.Errorf("%s/%s[%d]: %q != %q", fa.Name, ba.Label, j,
					FormatInstruction(fa, ia), FormatInstruction(fb, ib))
			}
		}
	}
	return nil
}

type varBijection struct {
	ab, ba map[Var]Var
}

func (m *varBijection) match(x, y Var) bool {
	if x == NoVar || y == NoVar {
		return x == y
	}
	if mx, ok := m.ab[x]; ok {
		return mx == y
	}
	if my, ok := m.ba[y]; ok {
		return my == x
	}
	m.ab[x] = y
	m.ba[y] = x
	return true
}

func sameInstruction(fa, fb *Function, ia, ib *Instruction, m *varBijection) bool {
	if ia.Opcode != ib.Opcode || len(ia.Operands) != len(ib.Operands) {
		return false
	}
	if !m.match(ia.Output, ib.Output) {
		return false
	}
	for k := range ia.Operands {
		oa, ob := ia.Operands[k], ib.Operands[k]
		if oa.Kind != ob.Kind {
			return false
		}
		switch oa.Kind {
		case OperandVar:
			if !m.match(oa.Var, ob.Var) {
				return false
			}
		case OperandLiteral:
			if !oa.Lit.Eq(&ob.Lit) {
				return false
			}
		case OperandLabel:
			a, b := fa.Block(oa.Block), fb.Block(ob.Block)
			if a == nil || b == nil || a.Label != b.Label {
				return false
			}
		case OperandSymbol:
			if oa.Sym != ob.Sym {
				return false
			}
		}
	}
	return true
}
