package ir

import (
	"github.com/holiman/uint256"
)

// Var identifies a variable in its Function's namespace
type Var int

// NoVar marks an instruction without output
const NoVar Var = -1

// BlockID is a stable index into a Function's block arena
type BlockID int

const NoBlock BlockID = -1

// InstID is a per-function stable instruction identity
type InstID int

type OperandKind uint8

const (
	OperandVar OperandKind = iota
	OperandLiteral
	OperandLabel
	OperandSymbol
)

// Operand is a lookup into the owning Function or Context; it never owns
// what it refers to.
type Operand struct {
	Kind  OperandKind
	Var   Var
	Lit   uint256.Int
	Block BlockID
	Sym   string
}

func VarOp(v Var) Operand { return Operand{Kind: OperandVar, Var: v} }

func LitOp(x uint64) Operand {
	o := Operand{Kind: OperandLiteral}
	o.Lit.SetUint64(x)
	return o
}

func WordOp(w *uint256.Int) Operand {
	o := Operand{Kind: OperandLiteral}
	o.Lit.Set(w)
	return o
}

func LabelOp(b BlockID) Operand { return Operand{Kind: OperandLabel, Block: b} }

func SymOp(name string) Operand { return Operand{Kind: OperandSymbol, Sym: name} }

func (o Operand) IsVar() bool     { return o.Kind == OperandVar }
func (o Operand) IsLiteral() bool { return o.Kind == OperandLiteral }
func (o Operand) IsLabel() bool   { return o.Kind == OperandLabel }

// OnStack reports whether the operand is consumed from the operand stack
// rather than encoded as an immediate.
func (o Operand) OnStack() bool {
	return o.Kind == OperandVar || o.Kind == OperandLiteral
}

// Same compares operands by identity: same variable, same word, same block
// or same symbol.
func (o Operand) Same(other Operand) bool {
	if o.Kind != other.Kind {
		return false
	}
	switch o.Kind {
	case OperandVar:
		return o.Var == other.Var
	case OperandLiteral:
		return o.Lit.Eq(&other.Lit)
	case OperandLabel:
		return o.Block == other.Block
	case OperandSymbol:
		return o.Sym == other.Sym
	}
	return false
}
