package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stackc/internal/errors"
	"stackc/internal/ir"
)

func parse(t *testing.T, src string) *ir.Context {
	t.Helper()
	ctx, err := ir.Parse("test.ir", src)
	require.NoError(t, err)
	return ctx
}

func block(t *testing.T, fn *ir.Function, label string) ir.BlockID {
	t.Helper()
	b := fn.BlockByLabel(label)
	require.NotNil(t, b, label)
	return b.ID
}

const loop = `function f entry {
entry:
    %n = param
    %i = assign 0
    jmp @head
head:
    %c = lt %i, %n
    jnz %c, @body, @done
body:
    %i = add %i, 1
    jmp @head
done:
    ret %i
dead:
    stop
}
`

func TestCFGOrders(t *testing.T) {
	fn := parse(t, loop).Functions[0]
	cache := NewCache(fn)
	cfg := cache.CFG()

	assert.True(t, cfg.Reachable(block(t, fn, "body")))
	assert.False(t, cfg.Reachable(block(t, fn, "dead")))
	assert.Equal(t, []ir.BlockID{block(t, fn, "dead")}, cfg.Unreachable())

	rpo := cfg.ReversePostorder()
	require.Len(t, rpo, 4)
	assert.Equal(t, fn.Entry, rpo[0])
	assert.True(t, cfg.IsBackEdge(block(t, fn, "body"), block(t, fn, "head")))
	assert.False(t, cfg.IsBackEdge(block(t, fn, "entry"), block(t, fn, "head")))
}

func TestDominators(t *testing.T) {
	fn := parse(t, loop).Functions[0]
	dom := NewCache(fn).Dominators()

	entry, head, body, done := fn.Entry, block(t, fn, "head"), block(t, fn, "body"), block(t, fn, "done")
	assert.Equal(t, ir.NoBlock, dom.Idom(entry))
	assert.Equal(t, entry, dom.Idom(head))
	assert.Equal(t, head, dom.Idom(body))
	assert.Equal(t, head, dom.Idom(done))

	assert.True(t, dom.Dominates(head, done))
	assert.True(t, dom.Dominates(head, head))
	assert.False(t, dom.StrictlyDominates(head, head))
	assert.False(t, dom.Dominates(body, done))
	assert.False(t, dom.Dominates(entry, block(t, fn, "dead")))

	assert.Equal(t, []ir.BlockID{head}, dom.Frontier(body))
	assert.Equal(t, []ir.BlockID{head}, dom.IteratedFrontier([]ir.BlockID{entry, body}))
	assert.Equal(t, entry, dom.Preorder()[0])
}

func TestDiamondFrontier(t *testing.T) {
	fn := parse(t, `function f {
f:
    %x = param
    jnz %x, @a, @b
a:
    jmp @m
b:
    jmp @m
m:
    ret
}
`).Functions[0]
	dom := NewCache(fn).Dominators()
	m := block(t, fn, "m")
	assert.Equal(t, []ir.BlockID{m}, dom.Frontier(block(t, fn, "a")))
	assert.Equal(t, []ir.BlockID{m}, dom.Frontier(block(t, fn, "b")))
	assert.Empty(t, dom.Frontier(fn.Entry))
	assert.Equal(t, fn.Entry, dom.Idom(m))
}

func TestLiveness(t *testing.T) {
	fn := parse(t, loop).Functions[0]
	live := NewCache(fn).Liveness()

	n, _ := fn.LookupVar("n")
	i, _ := fn.LookupVar("i")
	c, _ := fn.LookupVar("c")

	head := block(t, fn, "head")
	assert.True(t, live.LiveIn(head).Has(n))
	assert.True(t, live.LiveIn(head).Has(i))
	assert.False(t, live.LiveIn(head).Has(c))
	assert.True(t, live.LiveOut(block(t, fn, "body")).Has(n), "n is live around the loop")
	assert.False(t, live.LiveOut(block(t, fn, "done")).Has(i))

	// after "%c = lt %i, %n" both inputs stay live; c is consumed by jnz
	after := live.LiveAfter(head, 0)
	assert.True(t, after.Has(c))
	assert.True(t, after.Has(i))
	assert.False(t, live.IsLiveAfter(c, head, 1))
}

func TestPhiOperandsLiveOnTheirEdgeOnly(t *testing.T) {
	fn := parse(t, `function f {
f:
    %x = param
    jnz %x, @a, @b
a:
    %p = assign 1
    jmp @m
b:
    %q = assign 2
    jmp @m
m:
    %r = phi @a, %p, @b, %q
    ret %r
}
`).Functions[0]
	live := NewCache(fn).Liveness()
	p, _ := fn.LookupVar("p")
	q, _ := fn.LookupVar("q")
	r, _ := fn.LookupVar("r")

	assert.True(t, live.LiveOut(block(t, fn, "a")).Has(p))
	assert.False(t, live.LiveOut(block(t, fn, "a")).Has(q))
	assert.True(t, live.LiveOut(block(t, fn, "b")).Has(q))
	assert.False(t, live.LiveIn(block(t, fn, "m")).Has(r))
	assert.False(t, live.LiveIn(block(t, fn, "m")).Has(p))
}

func TestDFG(t *testing.T) {
	fn := parse(t, loop).Functions[0]
	dfg := NewCache(fn).DFG()
	i, _ := fn.LookupVar("i")
	n, _ := fn.LookupVar("n")

	assert.Nil(t, dfg.Def(i), "i is written twice before SSA")
	assert.Len(t, dfg.Defs(i), 2)
	assert.Equal(t, []ir.Var{i}, dfg.MultiplyDefined())
	assert.Len(t, dfg.Uses(i), 3)
	require.NotNil(t, dfg.Def(n))
	assert.Equal(t, ir.OpParam, dfg.Def(n).Opcode)
}

func TestCacheInvalidation(t *testing.T) {
	fn := parse(t, loop).Functions[0]
	cache := NewCache(fn)
	cache.Ensure(KindCFG, KindDominators, KindLiveness, KindDFG)
	for k := Kind(0); k < numKinds; k++ {
		assert.True(t, cache.Valid(k), k.String())
		assert.Equal(t, 1, cache.Generation(k))
	}

	cache.Invalidate(ir.MutOperands)
	assert.True(t, cache.Valid(KindCFG))
	assert.True(t, cache.Valid(KindDominators))
	assert.False(t, cache.Valid(KindLiveness))
	assert.False(t, cache.Valid(KindDFG))

	cache.Invalidate(ir.MutNone)
	assert.True(t, cache.Valid(KindCFG))

	cache.Liveness()
	cache.Drop(KindCFG)
	assert.False(t, cache.Valid(KindDominators), "dominators depend on the CFG")
	assert.False(t, cache.Valid(KindLiveness), "liveness depends on the CFG")

	cache.Dominators()
	assert.Equal(t, 2, cache.Generation(KindCFG))
	assert.Equal(t, 2, cache.Generation(KindDominators))
}

func TestVerifySSA(t *testing.T) {
	good := parse(t, `function f {
f:
    %x = param
    jnz %x, @a, @b
a:
    %p = assign 1
    jmp @m
b:
    %q = assign 2
    jmp @m
m:
    %r = phi @a, %p, @b, %q
    ret %r
}
`).Functions[0]
	assert.NoError(t, VerifySSA(good, NewCache(good)))
	assert.True(t, IsSSA(good))

	notSSA := parse(t, loop).Functions[0]
	err := VerifySSA(notSSA, NewCache(notSSA))
	require.Error(t, err)
	irErr, ok := errors.AsIRError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorSSAViolation, irErr.Code)
	assert.False(t, IsSSA(notSSA))

	undominated := parse(t, `function f {
f:
    %x = param
    jnz %x, @a, @b
a:
    %p = assign 1
    jmp @m
b:
    jmp @m
m:
    ret %p
}
`).Functions[0]
	err = VerifySSA(undominated, NewCache(undominated))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not dominated")
}

func TestCallGraph(t *testing.T) {
	ctx := parse(t, `function main entry {
main:
    %a = invoke @leaf
    invoke @loop, %a
    stop
}

function leaf internal {
leaf:
    ret 1
}

function loop internal {
loop:
    %x = param
    invoke @loop, %x
    ret
}

function orphan internal {
orphan:
    invoke @leaf
    ret
}
`)
	g := BuildCallGraph(ctx)
	assert.Equal(t, []string{"leaf", "loop"}, g.Callees("main"))
	assert.ElementsMatch(t, []string{"main", "orphan"}, g.Callers("leaf"))
	assert.True(t, g.Reachable("loop"))
	assert.Equal(t, []string{"orphan"}, g.Unreachable())
	assert.True(t, g.IsRecursive("loop"))
	assert.False(t, g.IsRecursive("main"))
	assert.Equal(t, []string{"leaf", "loop", "main"}, g.CalleesFirst())
}
