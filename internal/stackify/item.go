// Package stackify schedules SSA values onto the operand stack of the
// target VM. The output is a stream of opcodes interleaved with pushes
// and DUP/SWAP/POP manipulation.
package stackify

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"stackc/internal/ir"
)

type ItemKind uint8

const (
	ItemOp ItemKind = iota
	ItemPush
	ItemDup
	ItemSwap
	ItemPop
	ItemLabel
)

// Item is one element of the emitted stream
type Item struct {
	Kind ItemKind

	// ItemOp
	Op     ir.Opcode
	Inst   *ir.Instruction
	Labels []string
	Symbol string

	// ItemPush
	Value uint256.Int

	// ItemDup and ItemSwap: DUPn copies depth n-1, SWAPn exchanges the
	// top with depth n
	N int

	// ItemLabel
	Label string
}

func (it Item) String() string {
	switch it.Kind {
	case ItemPush:
		return "PUSH " + ir.FormatWord(&it.Value)
	case ItemDup:
		return fmt.Sprintf("DUP%d", it.N)
	case ItemSwap:
		return fmt.Sprintf("SWAP%d", it.N)
	case ItemPop:
		return "POP"
	case ItemLabel:
		return it.Label + ":"
	}
	var sb strings.Builder
	sb.WriteString(strings.ToUpper(it.Op.String()))
	if it.Symbol != "" {
		sb.WriteString(" @" + it.Symbol)
	}
	for _, l := range it.Labels {
		sb.WriteString(" @" + l)
	}
	return sb.String()
}

// Segment is the code of one basic block. Entry lists the variables on
// the stack when control arrives, bottom first.
type Segment struct {
	Label string
	Block ir.BlockID
	Entry []ir.Var
	Items []Item
}

// Function is the scheduled form of one IR function
type Function struct {
	Name     string
	Segments []*Segment

	fn *ir.Function
}

// Segment returns the code of a block, or nil if it was not emitted
func (f *Function) Segment(label string) *Segment {
	for _, s := range f.Segments {
		if s.Label == label {
			return s
		}
	}
	return nil
}

// Flatten returns the linear stream with a Label marker before each block
func (f *Function) Flatten() []Item {
	var out []Item
	for _, s := range f.Segments {
		out = append(out, Item{Kind: ItemLabel, Label: s.Label})
		out = append(out, s.Items...)
	}
	return out
}

// Counts tallies the stack manipulation overhead
func (f *Function) Counts() (ops, pushes, dups, swaps, pops int) {
	for _, s := range f.Segments {
		for _, it := range s.Items {
			switch it.Kind {
			case ItemOp:
				ops++
			case ItemPush:
				pushes++
			case ItemDup:
				dups++
			case ItemSwap:
				swaps++
			case ItemPop:
				pops++
			}
		}
	}
	return
}

// String renders the stream one item per line, blocks annotated with
// their entry layout
func (f *Function) String() string {
	var sb strings.Builder
	sb.WriteString("function " + f.Name + ":\n")
	for _, s := range f.Segments {
		names := make([]string, len(s.Entry))
		for i, v := range s.Entry {
			names[i] = "%" + f.fn.VarName(v)
		}
		fmt.Fprintf(&sb, "%s: ; [%s]\n", s.Label, strings.Join(names, " "))
		for _, it := range s.Items {
			sb.WriteString("    " + it.String() + "\n")
		}
	}
	return sb.String()
}
