package ast

type Expr interface {
	Node
	isExpr()
}

func (*IdentExpr) isExpr()   {}
func (*LiteralExpr) isExpr() {}
func (*BinaryExpr) isExpr()  {}
func (*UnaryExpr) isExpr()   {}
func (*CallExpr) isExpr()    {}
func (*BuiltinExpr) isExpr() {}

// IdentExpr reads a bound local or parameter
type IdentExpr struct {
	Pos  Position
	Name string
}

// LiteralExpr is an integer literal in decimal or 0x-prefixed hex
type LiteralExpr struct {
	Pos   Position
	Value string
}

// BinaryExpr is an arithmetic, bitwise or comparison operation
// Example: "x + 1", "a <= b", "flags & 0xff"
type BinaryExpr struct {
	Pos   Position
	Op    string
	Left  Expr
	Right Expr
}

// UnaryExpr is "!" (logical not) or "~" (bitwise not)
type UnaryExpr struct {
	Pos     Position
	Op      string
	Operand Expr
}

// CallExpr calls another function of the same module
type CallExpr struct {
	Pos    Position
	Callee string
	Args   []Expr
}

// BuiltinExpr is an intrinsic backed by one machine operation,
// e.g. "sload(slot)", "caller()", "mstore(p, v)", "log(p, n)"
type BuiltinExpr struct {
	Pos  Position
	Name string
	Args []Expr
}
