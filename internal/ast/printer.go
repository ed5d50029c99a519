package ast

import (
	"fmt"
	"strings"
)

func (m *Module) String() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("module %s {\n", m.Name))
	for _, fn := range m.Functions {
		b.WriteString("  " + strings.ReplaceAll(fn.String(), "\n", "\n  ") + "\n")
	}
	b.WriteString("}")
	return b.String()
}

func (f *Function) String() string {
	var b strings.Builder
	if f.Internal {
		b.WriteString("internal ")
	}
	b.WriteString(fmt.Sprintf("fn %s(%s) ", f.Name, strings.Join(f.Params, ", ")))
	b.WriteString(blockString(f.Body))
	return b.String()
}

func blockString(stmts []Stmt) string {
	if len(stmts) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteString("{\n")
	for _, s := range stmts {
		b.WriteString("  " + strings.ReplaceAll(s.String(), "\n", "\n  ") + "\n")
	}
	b.WriteString("}")
	return b.String()
}

func (s *LetStmt) String() string    { return fmt.Sprintf("let %s = %s", s.Name, exprString(s.Value)) }
func (s *AssignStmt) String() string { return fmt.Sprintf("%s = %s", s.Target, exprString(s.Value)) }

func (s *IfStmt) String() string {
	out := fmt.Sprintf("if %s %s", exprString(s.Cond), blockString(s.Then))
	if len(s.Else) > 0 {
		out += " else " + blockString(s.Else)
	}
	return out
}

func (s *WhileStmt) String() string {
	return fmt.Sprintf("while %s %s", exprString(s.Cond), blockString(s.Body))
}

func (*BreakStmt) String() string    { return "break" }
func (*ContinueStmt) String() string { return "continue" }
func (*RevertStmt) String() string   { return "revert" }

func (s *ReturnStmt) String() string {
	if s.Value == nil {
		return "return"
	}
	return "return " + exprString(s.Value)
}

func (s *ExprStmt) String() string { return exprString(s.Expr) }

func (e *IdentExpr) String() string   { return e.Name }
func (e *LiteralExpr) String() string { return e.Value }

func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", exprString(e.Left), e.Op, exprString(e.Right))
}

func (e *UnaryExpr) String() string { return e.Op + exprString(e.Operand) }

func (e *CallExpr) String() string    { return e.Callee + "(" + argsString(e.Args) + ")" }
func (e *BuiltinExpr) String() string { return e.Name + "(" + argsString(e.Args) + ")" }

func argsString(args []Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = exprString(a)
	}
	return strings.Join(parts, ", ")
}

// exprString tolerates nil so malformed trees can still be printed in diagnostics
func exprString(e Expr) string {
	if e == nil {
		return "<nil>"
	}
	return e.String()
}
