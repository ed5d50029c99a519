package ir

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stackc/internal/errors"
)

func mustParse(t *testing.T, src string) *Context {
	t.Helper()
	ctx, err := Parse("test.ir", src)
	require.NoError(t, err)
	return ctx
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	irErr, ok := errors.AsIRError(err)
	require.True(t, ok, "expected a structured error, got %v", err)
	assert.Equal(t, code, irErr.Code, err.Error())
}

func TestVerifyDetectsStaleCFG(t *testing.T) {
	ctx := mustParse(t, diamond)
	fn := ctx.EntryFunction()
	require.NoError(t, VerifyCFG(fn))

	// retarget a jump without rebuilding the CFG
	then := fn.BlockByLabel("then")
	then.Terminator().Operands[0] = LabelOp(fn.BlockByLabel("else").ID)
	requireCode(t, Verify(fn), errors.ErrorCFGMismatch)

	fn.RebuildCFG()
	assert.NoError(t, Verify(fn))
}

func TestVerifyStructure(t *testing.T) {
	ctx := mustParse(t, "function f {\nf:\n    %x = param\n    stop\n}\n")
	fn := ctx.Functions[0]
	b := fn.EntryBlock()

	// a terminator in the middle of the block
	b.Insert(1, fn.NewInst(OpStop, NoVar))
	requireCode(t, Verify(fn), errors.ErrorMalformedIR)
	b.Remove(b.Instructions[1])
	require.NoError(t, Verify(fn))

	// wrong arity
	b.Insert(1, fn.NewInst(OpAdd, fn.NewVar("y"), LitOp(1)))
	err := Verify(fn)
	requireCode(t, err, errors.ErrorMalformedIR)
	assert.Contains(t, err.Error(), "instruction 1")
}

func TestVerifyNormalized(t *testing.T) {
	ctx := mustParse(t, `function f {
f:
    %c = param
    jnz %c, @a, @m
a:
    jmp @m
m:
    jnz %c, @x, @y
x:
    stop
y:
    stop
}
`)
	fn := ctx.Functions[0]
	require.NoError(t, Verify(fn))
	requireCode(t, VerifyNormalized(fn), errors.ErrorNotNormalized)
}

func TestPhiMustCoverPredecessors(t *testing.T) {
	ctx := mustParse(t, `function f {
f:
    %c = param
    jnz %c, @a, @b
a:
    %x = assign 1
    jmp @m
b:
    %y = assign 2
    jmp @m
m:
    %z = phi @a, %x
    ret %z
}
`)
	requireCode(t, Verify(ctx.Functions[0]), errors.ErrorMalformedIR)
}

func TestCloneIsIndependent(t *testing.T) {
	ctx := mustParse(t, diamond)
	cp := ctx.Clone()
	require.NoError(t, Compare(ctx, cp))

	fn := cp.EntryFunction()
	fn.BlockByLabel("then").Instructions[0].Operands[0] = LitOp(7)
	assert.Error(t, Compare(ctx, cp))
	assert.Same(t, cp, fn.Context())
}

func TestFrozenDataTable(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.SetData("A", uint256.NewInt(1)))
	ctx.Freeze()
	assert.Error(t, ctx.SetData("B", uint256.NewInt(2)))
	v, ok := ctx.Data("A")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), v.Uint64())
}
