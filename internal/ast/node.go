package ast

// Position tracks location information for error reporting and tooling
type Position struct {
	Filename string
	Offset   int
	Line     int
	Column   int
}

type Node interface {
	NodePos() Position
	NodeType() NodeType
	String() string
}

type NodeType string

const (
	MODULE      NodeType = "Module"
	FUNCTION    NodeType = "Function"
	LET_STMT    NodeType = "LetStmt"
	ASSIGN_STMT NodeType = "AssignStmt"
	IF_STMT     NodeType = "IfStmt"
	WHILE_STMT  NodeType = "WhileStmt"
	BREAK_STMT  NodeType = "BreakStmt"
	CONT_STMT   NodeType = "ContinueStmt"
	RETURN_STMT NodeType = "ReturnStmt"
	REVERT_STMT NodeType = "RevertStmt"
	EXPR_STMT   NodeType = "ExprStmt"
	IDENT_EXPR  NodeType = "IdentExpr"
	LIT_EXPR    NodeType = "LiteralExpr"
	BINARY_EXPR NodeType = "BinaryExpr"
	UNARY_EXPR  NodeType = "UnaryExpr"
	CALL_EXPR   NodeType = "CallExpr"
	BUILTIN     NodeType = "BuiltinExpr"
)

func (m *Module) NodePos() Position { return m.Pos }
func (*Module) NodeType() NodeType  { return MODULE }

func (f *Function) NodePos() Position { return f.Pos }
func (*Function) NodeType() NodeType  { return FUNCTION }

func (s *LetStmt) NodePos() Position { return s.Pos }
func (*LetStmt) NodeType() NodeType  { return LET_STMT }

func (s *AssignStmt) NodePos() Position { return s.Pos }
func (*AssignStmt) NodeType() NodeType  { return ASSIGN_STMT }

func (s *IfStmt) NodePos() Position { return s.Pos }
func (*IfStmt) NodeType() NodeType  { return IF_STMT }

func (s *WhileStmt) NodePos() Position { return s.Pos }
func (*WhileStmt) NodeType() NodeType  { return WHILE_STMT }

func (s *BreakStmt) NodePos() Position { return s.Pos }
func (*BreakStmt) NodeType() NodeType  { return BREAK_STMT }

func (s *ContinueStmt) NodePos() Position { return s.Pos }
func (*ContinueStmt) NodeType() NodeType  { return CONT_STMT }

func (s *ReturnStmt) NodePos() Position { return s.Pos }
func (*ReturnStmt) NodeType() NodeType  { return RETURN_STMT }

func (s *RevertStmt) NodePos() Position { return s.Pos }
func (*RevertStmt) NodeType() NodeType  { return REVERT_STMT }

func (s *ExprStmt) NodePos() Position { return s.Pos }
func (*ExprStmt) NodeType() NodeType  { return EXPR_STMT }

func (e *IdentExpr) NodePos() Position { return e.Pos }
func (*IdentExpr) NodeType() NodeType  { return IDENT_EXPR }

func (e *LiteralExpr) NodePos() Position { return e.Pos }
func (*LiteralExpr) NodeType() NodeType  { return LIT_EXPR }

func (e *BinaryExpr) NodePos() Position { return e.Pos }
func (*BinaryExpr) NodeType() NodeType  { return BINARY_EXPR }

func (e *UnaryExpr) NodePos() Position { return e.Pos }
func (*UnaryExpr) NodeType() NodeType  { return UNARY_EXPR }

func (e *CallExpr) NodePos() Position { return e.Pos }
func (*CallExpr) NodeType() NodeType  { return CALL_EXPR }

func (e *BuiltinExpr) NodePos() Position { return e.Pos }
func (*BuiltinExpr) NodeType() NodeType  { return BUILTIN }
