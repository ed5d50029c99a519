package compiler

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stackc/internal/config"
	"stackc/internal/errors"
	"stackc/internal/ir"
)

const program = `function main entry {
main:
    %x = caller
    %a = invoke @helper, %x
    %b = invoke @helper, %a
    sstore %a, %b
    stop
}

function helper internal {
helper:
    %p = param
    %q = mul %p, 3
    %r = add %q, 1
    ret %r
}

function orphan internal {
orphan:
    stop
}
`

func parse(t *testing.T, src string) *ir.Context {
	t.Helper()
	ctx, err := ir.Parse("test.ir", src)
	require.NoError(t, err)
	return ctx
}

func TestCompileInlinesAndPrunes(t *testing.T) {
	cfg := config.Default()
	cfg.Jobs = 4
	result, err := Compile(parse(t, program), cfg)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"helper", "orphan"}, result.Removed)
	require.Len(t, result.Functions, 1)
	main := result.Function("main")
	require.NotNil(t, main)
	assert.NotContains(t, main.String(), "INVOKE")
	assert.Contains(t, main.String(), "SSTORE")
	assert.Empty(t, result.Notices)
	assert.True(t, result.Context.IsFrozen())
}

func TestCompileWithoutOptimization(t *testing.T) {
	cfg := config.Default()
	cfg.Optimize = "none"
	result, err := Compile(parse(t, program), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"orphan"}, result.Removed)
	require.NotNil(t, result.Function("helper"))
	assert.Contains(t, result.Function("main").String(), "INVOKE @helper")
}

func TestCompileZeroInlineBudget(t *testing.T) {
	cfg, err := config.Parse([]byte("inline_budget = 0\n"))
	require.NoError(t, err)
	result, err := Compile(parse(t, program), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"orphan"}, result.Removed)
	assert.Contains(t, result.Function("main").String(), "INVOKE @helper")
}

func TestCompileRetriesInlineBudget(t *testing.T) {
	cfg := config.Default()
	budget, growth := 4, 5
	cfg.InlineBudget = &budget
	cfg.InlineMaxGrowth = &growth
	original := parse(t, program)
	result, err := Compile(original, cfg)
	require.NoError(t, err)

	assert.Contains(t, result.Function("main").String(), "INVOKE @helper", "the retry inlines nothing")
	assert.NotSame(t, original, result.Context)
	assert.False(t, original.IsFrozen())
}

func TestCompileFixpointNotice(t *testing.T) {
	cfg := config.Default()
	cfg.MaxIterations = 1
	result, err := Compile(parse(t, `function main entry {
main:
    %x = caller
    %y = add %x, 0
    sstore 0, %y
    stop
}
`), cfg)
	require.NoError(t, err)
	require.Len(t, result.Notices, 1)
	assert.Equal(t, errors.WarningFixpointNotReached, result.Notices[0].Code)
	assert.False(t, result.Reports[0].FixpointReached)
}

func deep() string {
	var sb strings.Builder
	sb.WriteString("function f entry {\nf:\n    %a = caller\n")
	for k := 1; k <= 17; k++ {
		sb.WriteString("    %v" + strconv.Itoa(k) + " = calldataload " + strconv.Itoa(k*32) + "\n")
	}
	sb.WriteString("    %s17 = add %a, %v17\n")
	for k := 16; k >= 1; k-- {
		sb.WriteString("    %s" + strconv.Itoa(k) + " = add %s" + strconv.Itoa(k+1) + ", %v" + strconv.Itoa(k) + "\n")
	}
	sb.WriteString("    ret %s1\n}\n")
	return sb.String()
}

func TestCompileSpillsOnce(t *testing.T) {
	cfg := config.Default()
	result, err := Compile(parse(t, deep()), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"%a"}, result.Spilled["f"])
	assert.Contains(t, result.Function("f").String(), "MSTORE")

	cfg.StackLimit = 17
	_, err = Compile(parse(t, deep()), cfg)
	require.Error(t, err)
	assert.True(t, errors.IsResourceExceeded(err))
}

func TestCompileRejectsMalformed(t *testing.T) {
	ctx := parse(t, program)
	main := ctx.EntryFunction()
	entry := main.EntryBlock()
	entry.Instructions = entry.Instructions[:len(entry.Instructions)-1]
	_, err := Compile(ctx, nil)
	require.Error(t, err)
	irErr, ok := errors.AsIRError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ProgrammerFatal, irErr.Class)
}
