// SPDX-License-Identifier: Apache-2.0
package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFunctionString(t *testing.T) {
	fn := &Function{
		Name:   "f",
		Params: []string{"x"},
		Body: []Stmt{
			&IfStmt{
				Cond: &BinaryExpr{Op: ">", Left: &IdentExpr{Name: "x"}, Right: &LiteralExpr{Value: "0"}},
				Then: []Stmt{&LetStmt{Name: "y", Value: &LiteralExpr{Value: "1"}}},
				Else: []Stmt{&LetStmt{Name: "y", Value: &LiteralExpr{Value: "2"}}},
			},
			&ReturnStmt{Value: &IdentExpr{Name: "y"}},
		},
	}

	out := fn.String()
	assert.Contains(t, out, "fn f(x)")
	assert.Contains(t, out, "if (x > 0)")
	assert.Contains(t, out, "else")
	assert.Contains(t, out, "return y")
}

func TestNilExpressionPrints(t *testing.T) {
	stmt := &LetStmt{Name: "broken"}
	assert.Equal(t, "let broken = <nil>", stmt.String())
}

func TestFindFunction(t *testing.T) {
	m := &Module{Name: "M", Functions: []*Function{{Name: "a"}, {Name: "b", Internal: true}}}
	assert.NotNil(t, m.FindFunction("b"))
	assert.True(t, m.FindFunction("b").Internal)
	assert.Nil(t, m.FindFunction("c"))
	assert.Equal(t, MODULE, m.NodeType())
}
