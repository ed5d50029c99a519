package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stackc/internal/analysis"
	"stackc/internal/errors"
	"stackc/internal/ir"
)

const callProgram = `function main entry {
main:
    %a = param
    %r = invoke @helper, %a, 2
    %s = invoke @pick, %r
    ret %s
}

function helper internal {
helper:
    %x = param
    %y = param
    %m = mul %x, %y
    ret %m
}

function pick internal {
pick:
    %c = param
    jnz %c, @yes, @no
yes:
    ret 1
no:
    ret 2
}
`

func TestInlinerInlinesInternalCallees(t *testing.T) {
	ctx := parse(t, callProgram)
	inliner := &Inliner{Budget: 16, Depth: 2}
	changed, err := inliner.RunContext(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	main := ctx.EntryFunction()
	require.NoError(t, ir.Verify(main))
	assert.Zero(t, count(main, ir.OpInvoke))
	assert.Equal(t, 1, count(main, ir.OpMul))
	require.NotNil(t, main.BlockByLabel("helper.helper"))

	// pick returns from two blocks, so the continuation merges them
	assert.Equal(t, 1, count(main, ir.OpPhi))

	p, err := BuildPipeline(LevelO2, nil, 0)
	require.NoError(t, err)
	p.VerifyEach = true
	_, err = p.Run(main)
	require.NoError(t, err)
	require.NoError(t, analysis.VerifySSA(main, analysis.NewCache(main)))
	assert.Equal(t, 1, count(main, ir.OpMul))
	assert.Equal(t, 1, count(main, ir.OpParam), "callee parameters became copies")
}

func TestInlinerSkipsRecursiveAndLarge(t *testing.T) {
	ctx := parse(t, `function main entry {
main:
    %a = param
    %r = invoke @loop, %a
    %s = invoke @big, %r
    ret %s
}

function loop internal {
loop:
    %n = param
    %m = invoke @loop, %n
    ret %m
}

function big internal {
big:
    %x = param
    %a = add %x, 1
    %b = add %a, 2
    %c = add %b, 3
    ret %c
}
`)
	changed, err := (&Inliner{Budget: 3, Depth: 3}).RunContext(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 2, count(ctx.EntryFunction(), ir.OpInvoke))

	cg := analysis.BuildCallGraph(ctx)
	assert.True(t, cg.IsRecursive("loop"))
}

func TestInlinerGrowthBudget(t *testing.T) {
	ctx := parse(t, callProgram)
	_, err := (&Inliner{Budget: 16, Depth: 2, MaxGrowth: 4}).RunContext(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsResourceExceeded(err))
	budget, ok := errors.AsInlineBudget(err)
	require.True(t, ok)
	assert.Equal(t, 4, budget.Limit)
	assert.Greater(t, budget.Planned, 4)
}
