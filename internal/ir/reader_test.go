package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stackc/internal/errors"
)

const diamond = `data FEE = 3
data BIG = 0x10000000000000000

function main entry {
main:
    %x = param
    %c = gt %x, 0
    jnz %c, @then, @else
then:
    %y = assign 1
    jmp @join
else:
    %y = assign -1
    jmp @join
join:
    %f = dataload @FEE
    %r = invoke @helper, %y, %f
    ret %r
}

function helper internal {
helper:
    %a = param
    %b = param
    %s = add %a, %b
    ret %s
}
`

func TestParseDiamond(t *testing.T) {
	ctx, err := Parse("diamond.ir", diamond)
	require.NoError(t, err)

	require.Len(t, ctx.Functions, 2)
	assert.Equal(t, "main", ctx.Entry)

	fee, ok := ctx.Data("FEE")
	require.True(t, ok)
	assert.Equal(t, uint64(3), fee.Uint64())
	big, _ := ctx.Data("BIG")
	assert.False(t, big.IsUint64())

	main := ctx.EntryFunction()
	require.NoError(t, Verify(main))
	assert.Equal(t, 4, main.NumBlocks())

	join := main.BlockByLabel("join")
	require.NotNil(t, join)
	assert.Len(t, join.Preds, 2)

	minusOne := main.BlockByLabel("else").Instructions[0].Operands[0]
	assert.True(t, minusOne.IsLiteral())
	assert.Equal(t, "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff", minusOne.Lit.Hex())

	invoke := join.Instructions[1]
	assert.Equal(t, OpInvoke, invoke.Opcode)
	assert.Equal(t, "helper", invoke.Symbol())
	assert.Len(t, invoke.StackOperands(), 2)

	helper := ctx.Function("helper")
	assert.True(t, helper.Internal)
	assert.Len(t, helper.Params(), 2)
}

func TestRoundTrip(t *testing.T) {
	ctx, err := Parse("diamond.ir", diamond)
	require.NoError(t, err)

	printed := Print(ctx)
	again, err := Parse("printed.ir", printed)
	require.NoError(t, err)

	assert.NoError(t, Compare(ctx, again))
	assert.Equal(t, printed, Print(again))
}

func TestEqualIgnoresVariableNames(t *testing.T) {
	a, err := Parse("a.ir", "function f entry {\nf:\n    %x = param\n    %y = add %x, 1\n    ret %y\n}\n")
	require.NoError(t, err)
	b, err := Parse("b.ir", "function f entry {\nf:\n    %p = param\n    %q = add %p, 1\n    ret %q\n}\n")
	require.NoError(t, err)
	c, err := Parse("c.ir", "function f entry {\nf:\n    %p = param\n    %q = add %p, 1\n    ret %p\n}\n")
	require.NoError(t, err)

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"unknown opcode":  "function f {\nf:\n    %x = frobnicate 1\n    stop\n}\n",
		"undefined label": "function f {\nf:\n    jmp @nowhere\n}\n",
		"duplicate label": "function f {\nf:\n    stop\nf:\n    stop\n}\n",
		"output on store": "function f {\nf:\n    %x = mstore 0, 1\n    stop\n}\n",
		"syntax":          "function f {\nf:\n    %x = add 1,\n}\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("bad.ir", src)
			require.Error(t, err)
			irErr, ok := errors.AsIRError(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrorParse, irErr.Code)
		})
	}
}

func TestParseWord(t *testing.T) {
	w, err := ParseWord("0x00ff")
	require.NoError(t, err)
	assert.Equal(t, uint64(255), w.Uint64())

	w, err = ParseWord("-1")
	require.NoError(t, err)
	assert.Equal(t, "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff", w.Hex())

	_, err = ParseWord("12a")
	assert.Error(t, err)
}

func TestSourceMapLocate(t *testing.T) {
	ctx, err := Parse("diamond.ir", diamond)
	require.NoError(t, err)
	_, sm := PrintWithMap(ctx)

	main := ctx.EntryFunction()
	join := main.BlockByLabel("join")
	pos, _ := sm.Locate(Coordinates(main, join, 1))
	assert.Equal(t, 17, pos.Line)
}

func TestParseWithMapLocatesSource(t *testing.T) {
	ctx, sm, err := ParseWithMap("diamond.ir", diamond)
	require.NoError(t, err)

	main := ctx.EntryFunction()
	pos, _ := sm.Locate(Coordinates(main, main.BlockByLabel("else"), 0))
	assert.Equal(t, 13, pos.Line)
	assert.Equal(t, "diamond.ir", pos.Filename)

	pos, _ = sm.Locate(errors.At("helper"))
	assert.Equal(t, 21, pos.Line)
}
