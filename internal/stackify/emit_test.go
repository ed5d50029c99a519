package stackify

import (
	"strconv"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stackc/internal/analysis"
	"stackc/internal/errors"
	"stackc/internal/ir"
	"stackc/internal/passes"
)

func parseFunction(t *testing.T, src string) *ir.Function {
	t.Helper()
	ctx, err := ir.Parse("test.ir", src)
	require.NoError(t, err)
	return ctx.Functions[0]
}

func schedule(t *testing.T, fn *ir.Function) *Function {
	t.Helper()
	out, err := Emit(fn, Options{})
	require.NoError(t, err)
	require.NoError(t, Simulate(fn, out))
	return out
}

func TestEmitStraightLine(t *testing.T) {
	fn := parseFunction(t, `function f entry {
f:
    %a = param
    %b = param
    %c = add %a, %b
    %d = mul %c, %a
    ret %d
}
`)
	out := schedule(t, fn)
	require.Len(t, out.Segments, 1)

	seg := out.Segments[0]
	a, _ := fn.LookupVar("a")
	b, _ := fn.LookupVar("b")
	assert.Equal(t, []ir.Var{b, a}, seg.Entry, "first parameter on top")

	ops, _, dups, _, pops := out.Counts()
	assert.Equal(t, 3, ops)
	assert.Equal(t, 1, dups, "a is needed twice")
	assert.Equal(t, 0, pops)
	assert.Equal(t, "RET", seg.Items[len(seg.Items)-1].String())
}

const ifElse = `function f entry {
f:
    %x = param
    %c = gt %x, 10
    jnz %c, @then, @else
then:
    %y1 = add %x, 1
    jmp @join
else:
    %y2 = mul %x, 2
    jmp @join
join:
    %y = phi @then, %y1, @else, %y2
    %z = add %y, %x
    ret %z
}
`

func TestEmitJoinLayout(t *testing.T) {
	fn := parseFunction(t, ifElse)
	out := schedule(t, fn)
	require.Len(t, out.Segments, 4)
	assert.Equal(t, "f", out.Segments[0].Label)
	assert.Equal(t, "join", out.Segments[3].Label)

	x, _ := fn.LookupVar("x")
	y, _ := fn.LookupVar("y")
	assert.Equal(t, []ir.Var{x, y}, out.Segment("join").Entry)
	assert.Equal(t, []ir.Var{x}, out.Segment("then").Entry)
	assert.Equal(t, []ir.Var{x}, out.Segment("else").Entry)

	text := out.String()
	assert.Contains(t, text, "JNZ @then @else")
	assert.Contains(t, text, "join: ; [%x %y]")
}

func TestEmitJoinPermutesLaterPredecessor(t *testing.T) {
	fn := parseFunction(t, `function f entry {
f:
    %x = param
    %c = gt %x, 10
    jnz %c, @then, @else
then:
    %a1 = add %x, 1
    %b1 = mul %x, 2
    jmp @join
else:
    %b2 = mul %x, 2
    %a2 = add %x, 1
    jmp @join
join:
    %p = phi @then, %a1, @else, %a2
    %q = phi @then, %b1, @else, %b2
    %r = sub %p, %q
    ret %r
}
`)
	out := schedule(t, fn)
	require.Len(t, out.Segments, 4)

	p, _ := fn.LookupVar("p")
	q, _ := fn.LookupVar("q")
	assert.ElementsMatch(t, []ir.Var{p, q}, out.Segment("join").Entry)

	// the first predecessor fixes the join layout, the second swaps into it
	first, second := out.Segments[1], out.Segments[2]
	require.ElementsMatch(t, []string{"then", "else"}, []string{first.Label, second.Label})
	assert.NotContains(t, kinds(reconcileTail(first)), ItemSwap)
	assert.Contains(t, kinds(reconcileTail(second)), ItemSwap)
	assert.Equal(t, "JMP @join", second.Items[len(second.Items)-1].String())
}

func TestEmitAssign(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		first ItemKind
		dups  int
	}{
		{
			name: "live source is duplicated",
			src: `function f entry {
f:
    %x = param
    %y = assign %x
    %z = add %y, %x
    ret %z
}
`,
			first: ItemDup,
			dups:  1,
		},
		{
			name: "dead source is renamed in place",
			src: `function f entry {
f:
    %x = param
    %w = param
    %y = assign %w
    %z = add %x, %y
    ret %z
}
`,
			first: ItemOp,
			dups:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := parseFunction(t, tt.src)
			out := schedule(t, fn)
			ops, pushes, dups, swaps, pops := out.Counts()
			assert.Equal(t, 2, ops, "assign emits no instruction")
			assert.Equal(t, tt.dups, dups)
			assert.Zero(t, pushes)
			assert.Zero(t, swaps)
			assert.Zero(t, pops)
			assert.Equal(t, tt.first, out.Segments[0].Items[0].Kind)
		})
	}
}

// reconcileTail returns the items between the last instruction of a
// segment and its terminator
func reconcileTail(seg *Segment) []Item {
	items := seg.Items[:len(seg.Items)-1]
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Kind == ItemOp {
			return items[i+1:]
		}
	}
	return items
}

func kinds(items []Item) []ItemKind {
	out := make([]ItemKind, len(items))
	for i, it := range items {
		out[i] = it.Kind
	}
	return out
}

func TestEmitLoop(t *testing.T) {
	fn := parseFunction(t, `function f entry {
f:
    %n = param
    %i0 = assign 0
    jmp @head
head:
    %i = phi @f, %i0, @body, %i1
    %c = lt %i, %n
    jnz %c, @body, @exit
body:
    %i1 = add %i, 1
    jmp @head
exit:
    ret %i
}
`)
	_, err := Emit(fn, Options{})
	require.Error(t, err)
	irErr, ok := errors.AsIRError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorNotNormalized, irErr.Code)

	_, err = passes.Normalize{}.Run(fn, analysis.NewCache(fn))
	require.NoError(t, err)
	out := schedule(t, fn)

	head := out.Segment("head")
	require.NotNil(t, head)
	assert.Len(t, head.Entry, 2)

	exit := out.Segment("exit")
	require.NotNil(t, exit)
	pops := 0
	for _, it := range exit.Items {
		if it.Kind == ItemPop {
			pops++
		}
	}
	assert.Equal(t, 1, pops, "the bound is dropped on exit")
}

func TestEmitInvoke(t *testing.T) {
	ctx, err := ir.Parse("test.ir", `function main entry {
main:
    %x = caller
    %y = callvalue
    %r = invoke @g, %x, %y
    sstore %x, %r
    stop
}

function g internal {
g:
    %a = param
    %b = param
    %s = sub %a, %b
    ret %s
}
`)
	require.NoError(t, err)
	for _, fn := range ctx.Functions {
		out := schedule(t, fn)
		if fn.Name == "main" {
			assert.Contains(t, out.String(), "INVOKE @g")
		}
	}
}

func TestEmitRejectsSinglePredecessorPhi(t *testing.T) {
	fn := parseFunction(t, `function f entry {
f:
    %x = param
    jmp @next
next:
    %p = phi @f, %x
    ret %p
}
`)
	_, err := Emit(fn, Options{})
	require.Error(t, err)
	irErr, ok := errors.AsIRError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorNotNormalized, irErr.Code)
}

// deep keeps %a under seventeen live values when it is first used
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

func TestEmitStackTooDeep(t *testing.T) {
	fn := parseFunction(t, deep())
	_, err := Emit(fn, Options{})
	require.Error(t, err)

	tooDeep, ok := errors.AsStackTooDeep(err)
	require.True(t, ok)
	assert.Equal(t, "%a", tooDeep.Var)
	assert.Equal(t, 17, tooDeep.Depth)
	assert.Equal(t, 16, tooDeep.Limit)
	assert.True(t, errors.IsResourceExceeded(err))

	a, _ := fn.LookupVar("a")
	require.NoError(t, passes.Spill(fn, a, 0x1000))
	schedule(t, fn)
}

func TestEmitDepthLimit(t *testing.T) {
	fn := parseFunction(t, deep())
	_, err := Emit(fn, Options{Limit: 8})
	tooDeep, ok := errors.AsStackTooDeep(err)
	require.True(t, ok)
	assert.Equal(t, 8, tooDeep.Limit)
}

func TestSimulateCatchesCorruption(t *testing.T) {
	fn := parseFunction(t, `function f entry {
f:
    %a = param
    %b = param
    %c = add %a, %b
    %d = mul %c, %a
    ret %d
}
`)
	out := schedule(t, fn)
	items := out.Segments[0].Items
	for i, it := range items {
		if it.Kind == ItemDup {
			items[i] = Item{Kind: ItemPush, Value: *uint256.NewInt(7)}
			break
		}
	}
	err := Simulate(fn, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stack simulation")

	out = schedule(t, fn)
	seg := out.Segments[0]
	seg.Items = seg.Items[:len(seg.Items)-1]
	assert.Error(t, Simulate(fn, out), "missing ret")
}
