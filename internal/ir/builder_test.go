package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stackc/internal/ast"
	"stackc/internal/errors"
)

func ident(n string) *ast.IdentExpr { return &ast.IdentExpr{Name: n} }
func lit(v string) *ast.LiteralExpr { return &ast.LiteralExpr{Value: v} }

// fn f(x) { if x > 0 { y = 1 } else { y = 2 } return y }
func ifElseFunction() *ast.Function {
	return &ast.Function{
		Name:     "f",
		Params:   []string{"x"},
		Internal: true,
		Body: []ast.Stmt{
			&ast.IfStmt{
				Cond: &ast.BinaryExpr{Op: ">", Left: ident("x"), Right: lit("0")},
				Then: []ast.Stmt{&ast.LetStmt{Name: "y", Value: lit("1")}},
				Else: []ast.Stmt{&ast.LetStmt{Name: "y", Value: lit("2")}},
			},
			&ast.ReturnStmt{Value: ident("y")},
		},
	}
}

func TestBuildIfElse(t *testing.T) {
	fn, err := Build(ifElseFunction())
	require.NoError(t, err)
	require.NoError(t, Verify(fn))

	assert.Equal(t, 4, fn.NumBlocks())
	y, ok := fn.LookupVar("y")
	require.True(t, ok)

	defs := 0
	fn.Instructions(func(_ *BasicBlock, inst *Instruction) bool {
		if inst.Output == y {
			defs++
		}
		return true
	})
	assert.Equal(t, 2, defs, "non-SSA form writes y once per branch")

	entry := fn.EntryBlock()
	assert.Equal(t, OpParam, entry.Instructions[0].Opcode)
	assert.Equal(t, OpJnz, entry.Terminator().Opcode)

	join := fn.BlockByLabel("join")
	require.NotNil(t, join)
	assert.Equal(t, OpRet, join.Terminator().Opcode)
	assert.Len(t, join.Preds, 2)
}

func TestBuildLoopWithBreak(t *testing.T) {
	src := &ast.Function{
		Name:   "count",
		Params: []string{"n"},
		Body: []ast.Stmt{
			&ast.LetStmt{Name: "i", Value: lit("0")},
			&ast.WhileStmt{
				Cond: &ast.BinaryExpr{Op: "<", Left: ident("i"), Right: ident("n")},
				Body: []ast.Stmt{
					&ast.AssignStmt{Target: "i", Value: &ast.BinaryExpr{Op: "+", Left: ident("i"), Right: lit("1")}},
					&ast.IfStmt{
						Cond: &ast.BinaryExpr{Op: "==", Left: ident("i"), Right: lit("10")},
						Then: []ast.Stmt{&ast.BreakStmt{}},
					},
				},
			},
			&ast.ReturnStmt{Value: ident("i")},
		},
	}
	fn, err := Build(src)
	require.NoError(t, err)
	require.NoError(t, Verify(fn))

	head := fn.BlockByLabel("cond")
	require.NotNil(t, head)
	assert.Len(t, head.Preds, 2, "loop header is entered from the entry and the latch")

	exit := fn.BlockByLabel("exit")
	assert.Len(t, exit.Preds, 2, "exit is reached from the header and the break")
}

func TestBuildContext(t *testing.T) {
	m := &ast.Module{
		Name:      "Token",
		Entry:     "main",
		Constants: []*ast.Constant{{Name: "FEE", Value: "3"}},
		Functions: []*ast.Function{
			{
				Name: "main",
				Body: []ast.Stmt{
					&ast.LetStmt{Name: "c", Value: &ast.BuiltinExpr{Name: "caller"}},
					&ast.LetStmt{Name: "fee", Value: &ast.BuiltinExpr{Name: "dataload", Args: []ast.Expr{ident("FEE")}}},
					&ast.ExprStmt{Expr: &ast.BuiltinExpr{Name: "sstore", Args: []ast.Expr{ident("c"), ident("fee")}}},
					&ast.ReturnStmt{Value: &ast.CallExpr{Callee: "f", Args: []ast.Expr{ident("fee")}}},
				},
			},
			ifElseFunction(),
		},
	}
	ctx, err := BuildContext(m)
	require.NoError(t, err)
	require.Len(t, ctx.Functions, 2)

	main := ctx.EntryFunction()
	require.NotNil(t, main)
	assert.True(t, main.IsEntry)
	require.NoError(t, Verify(main))

	text := PrintFunction(main)
	assert.Contains(t, text, "%c = caller")
	assert.Contains(t, text, "%fee = dataload @FEE")
	assert.Contains(t, text, "sstore %c, %fee")
	assert.Contains(t, text, "invoke @f, %fee")
	assert.Contains(t, text, "return 0, 32")

	// the printed form of a built context parses back to the same structure
	again, err := Parse("built.ir", Print(ctx))
	require.NoError(t, err)
	assert.NoError(t, Compare(ctx, again))
}

func TestBuildMalformed(t *testing.T) {
	cases := map[string]*ast.Function{
		"nil expression":  {Name: "f", Body: []ast.Stmt{&ast.LetStmt{Name: "x"}}},
		"unbound":         {Name: "f", Body: []ast.Stmt{&ast.ReturnStmt{Value: ident("nope")}}},
		"assign unbound":  {Name: "f", Body: []ast.Stmt{&ast.AssignStmt{Target: "x", Value: lit("1")}}},
		"break":           {Name: "f", Body: []ast.Stmt{&ast.BreakStmt{}}},
		"unknown op":      {Name: "f", Params: []string{"a"}, Body: []ast.Stmt{&ast.ReturnStmt{Value: &ast.BinaryExpr{Op: "**", Left: ident("a"), Right: ident("a")}}}},
		"builtin arity":   {Name: "f", Body: []ast.Stmt{&ast.ExprStmt{Expr: &ast.BuiltinExpr{Name: "sstore", Args: []ast.Expr{lit("1")}}}}},
		"void value":      {Name: "f", Body: []ast.Stmt{&ast.LetStmt{Name: "x", Value: &ast.BuiltinExpr{Name: "sstore", Args: []ast.Expr{lit("1"), lit("2")}}}}},
		"unknown builtin": {Name: "f", Body: []ast.Stmt{&ast.ExprStmt{Expr: &ast.BuiltinExpr{Name: "selfdestruct"}}}},
		"bad literal":     {Name: "f", Body: []ast.Stmt{&ast.ReturnStmt{Value: lit("12zz")}}},
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Build(src)
			require.Error(t, err)
			irErr, ok := errors.AsIRError(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrorMalformedInput, irErr.Code)
			assert.Equal(t, errors.ProgrammerFatal, irErr.Class)
		})
	}

	_, err := Build(nil)
	assert.Error(t, err)

	_, err = BuildContext(&ast.Module{Name: "M", Entry: "main"})
	assert.Error(t, err)
}

func TestDeadCodeAfterReturnIsDropped(t *testing.T) {
	fn, err := Build(&ast.Function{
		Name: "f",
		Body: []ast.Stmt{
			&ast.ReturnStmt{},
			&ast.ExprStmt{Expr: &ast.BuiltinExpr{Name: "sstore", Args: []ast.Expr{lit("0"), lit("1")}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fn.InstCount())
	assert.Equal(t, OpRet, fn.EntryBlock().Terminator().Opcode)
}
