// SPDX-License-Identifier: Apache-2.0
package grammar_test

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stackc/grammar"
)

const branchy = `; constants first
data FEE = 3

function main entry {
main:
    %x = param
    %c = gt %x, 0          ; compare
    jnz %c, @then, @else
then:
    %y = assign 1
    jmp @join
else:
    %y = assign -1
    jmp @join
join:
    %y:2 = phi @then, %y, @else, %y
    %f = dataload @FEE
    ret %y:2
}
`

func TestParseFunction(t *testing.T) {
	file, err := grammar.ParseString("branchy.ir", branchy)
	require.NoError(t, err)
	require.Len(t, file.Items, 2)

	data := file.Items[0].Data
	require.NotNil(t, data)
	assert.Equal(t, "FEE", data.Name)
	assert.Equal(t, "3", data.Value)

	fn := file.Items[1].Function
	require.NotNil(t, fn)
	assert.Equal(t, "main", fn.Name)
	assert.True(t, fn.HasFlag("entry"))
	assert.False(t, fn.HasFlag("internal"))
	require.Len(t, fn.Blocks, 4)

	assert.Equal(t, "main", fn.Blocks[0].LabelName())
	require.Len(t, fn.Blocks[0].Instructions, 3)
	jnz := fn.Blocks[0].Instructions[2]
	assert.Equal(t, "jnz", jnz.Opcode)
	assert.Empty(t, jnz.Output)
	require.Len(t, jnz.Operands, 3)
	assert.Equal(t, "%c", jnz.Operands[0].Var)
	assert.Equal(t, "@then", jnz.Operands[1].Ref)

	assign := fn.Blocks[2].Instructions[0]
	assert.Equal(t, "%y", assign.Output)
	assert.Equal(t, "-1", assign.Operands[0].Number)

	phi := fn.Blocks[3].Instructions[0]
	assert.Equal(t, "%y:2", phi.Output)
	assert.Len(t, phi.Operands, 4)
	assert.Equal(t, 16, phi.Pos.Line)
}

func TestParseNoTrailingNewline(t *testing.T) {
	file, err := grammar.ParseString("t.ir", "function f {\nf:\n    stop\n}")
	require.NoError(t, err)
	require.Len(t, file.Items, 1)
	assert.Equal(t, "stop", file.Items[0].Function.Blocks[0].Instructions[0].Opcode)
}

func TestParseErrorPosition(t *testing.T) {
	src := "function f {\nf:\n    %x = add %a,, 1\n}\n"
	_, err := grammar.ParseString("bad.ir", src)
	require.Error(t, err)

	pos, msg, ok := grammar.ErrorPosition(err)
	require.True(t, ok)
	assert.Equal(t, 3, pos.Line)
	assert.NotEmpty(t, msg)

	color.NoColor = true
	var out bytes.Buffer
	grammar.ReportParseError(&out, src, err)
	assert.Contains(t, out.String(), "line 3")
	assert.Contains(t, out.String(), "%x = add %a,, 1")
}
