package ast

type Stmt interface {
	Node
	isStmt()
}

func (*LetStmt) isStmt()      {}
func (*AssignStmt) isStmt()   {}
func (*IfStmt) isStmt()       {}
func (*WhileStmt) isStmt()    {}
func (*BreakStmt) isStmt()    {}
func (*ContinueStmt) isStmt() {}
func (*ReturnStmt) isStmt()   {}
func (*RevertStmt) isStmt()   {}
func (*ExprStmt) isStmt()     {}

// LetStmt introduces a mutable local binding
// Example: "let y = 1"
type LetStmt struct {
	Pos   Position
	Name  string
	Value Expr
}

// AssignStmt writes to an existing binding
// Example: "y = y + 1"
type AssignStmt struct {
	Pos    Position
	Target string
	Value  Expr
}

// IfStmt is a two-way conditional; Else may be empty
type IfStmt struct {
	Pos  Position
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// WhileStmt loops while Cond is non-zero
type WhileStmt struct {
	Pos  Position
	Cond Expr
	Body []Stmt
}

type BreakStmt struct {
	Pos Position
}

type ContinueStmt struct {
	Pos Position
}

// ReturnStmt returns from the function; Value may be nil
type ReturnStmt struct {
	Pos   Position
	Value Expr
}

// RevertStmt aborts execution and rolls back all state changes
type RevertStmt struct {
	Pos Position
}

// ExprStmt evaluates an expression for its side effects
type ExprStmt struct {
	Pos  Position
	Expr Expr
}
